package enums

import "fmt"

// OperationType classifies what a payment intent charges for.
type OperationType string

const (
	OperationTypeMonthlyFee OperationType = "monthly_fee"
	OperationTypeEnrollment OperationType = "enrollment"
	OperationTypeAnnualFee  OperationType = "annual_fee"
	OperationTypeRefund     OperationType = "refund"
	OperationTypeAdjustment OperationType = "adjustment"
)

var validOperationTypes = []OperationType{
	OperationTypeMonthlyFee,
	OperationTypeEnrollment,
	OperationTypeAnnualFee,
	OperationTypeRefund,
	OperationTypeAdjustment,
}

// String implements fmt.Stringer.
func (o OperationType) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OperationType.
func (o OperationType) IsValid() bool {
	for _, candidate := range validOperationTypes {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseOperationType converts raw input into an OperationType.
func ParseOperationType(value string) (OperationType, error) {
	for _, candidate := range validOperationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid operation type %q", value)
}
