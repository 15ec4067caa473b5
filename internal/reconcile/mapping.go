package reconcile

import (
	"github.com/shopspring/decimal"

	"github.com/mrioscamacho/memberfees-backend/pkg/enums"
)

var (
	commissionRate = decimal.NewFromFloat(0.029)
	commissionFlat = decimal.NewFromFloat(2.99)
)

// MapProviderStatus converts a provider payment status into the local intent
// status. A chargeback reverses the funds, so it lands on refunded. Unknown
// values map to pending so an unexpected provider state never terminates an
// intent.
func MapProviderStatus(providerStatus string) enums.IntentStatus {
	switch providerStatus {
	case "approved":
		return enums.IntentStatusApproved
	case "authorized":
		return enums.IntentStatusAuthorized
	case "in_process":
		return enums.IntentStatusInProcess
	case "in_mediation":
		return enums.IntentStatusInMediation
	case "rejected":
		return enums.IntentStatusRejected
	case "cancelled":
		return enums.IntentStatusCancelled
	case "refunded", "charged_back":
		return enums.IntentStatusRefunded
	case "pending":
		return enums.IntentStatusPending
	default:
		return enums.IntentStatusPending
	}
}

// Commission returns the provider fee charged on an approved payment: 2.9%
// of the final amount plus a fixed 2.99.
func Commission(finalAmount decimal.Decimal) decimal.Decimal {
	return finalAmount.Mul(commissionRate).Add(commissionFlat)
}
