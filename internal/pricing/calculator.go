package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mrioscamacho/memberfees-backend/pkg/db/models"
	pkgerrors "github.com/mrioscamacho/memberfees-backend/pkg/errors"
)

// DefaultAnnualDiscountPercent applies to annual computations when the
// category has no configured annual discount.
var DefaultAnnualDiscountPercent = decimal.NewFromInt(10)

var oneHundred = decimal.NewFromInt(100)

// Params are the inputs to one amount computation. Pure data; Compute never
// touches storage or the network.
type Params struct {
	BasePrice decimal.Decimal
	UnitCount int
	// DiscountType selects an entry of Table; empty means no explicit discount.
	DiscountType string
	Table        models.DiscountTable
	// AnnualDiscountPercent is the category's configured annual discount,
	// consulted only when Annual is set and DiscountType is empty.
	AnnualDiscountPercent *decimal.Decimal
	Annual                bool
}

// Quote is the computed amount breakdown. Values keep full precision;
// rounding to currency precision happens only at presentation time so
// recomputation never compounds rounding error.
type Quote struct {
	Original   decimal.Decimal
	Discount   decimal.Decimal
	Final      decimal.Decimal
	Percentage decimal.Decimal
}

// Compute derives original, discount, and final amounts for a fee.
func Compute(params Params) (Quote, error) {
	if params.UnitCount <= 0 {
		return Quote{}, pkgerrors.New(pkgerrors.CodeValidation, "unit count must be positive")
	}
	if params.BasePrice.IsNegative() {
		return Quote{}, pkgerrors.New(pkgerrors.CodeValidation, "base price must not be negative")
	}

	percentage, err := resolvePercentage(params)
	if err != nil {
		return Quote{}, err
	}

	original := params.BasePrice.Mul(decimal.NewFromInt(int64(params.UnitCount)))
	discount := original.Mul(percentage.Div(oneHundred))
	return Quote{
		Original:   original,
		Discount:   discount,
		Final:      original.Sub(discount),
		Percentage: percentage,
	}, nil
}

func resolvePercentage(params Params) (decimal.Decimal, error) {
	if params.DiscountType != "" {
		pct, ok := params.Table.Percentage(params.DiscountType)
		if !ok {
			return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("unknown discount type %q", params.DiscountType))
		}
		return pct, nil
	}
	if params.Annual {
		if params.AnnualDiscountPercent != nil {
			return *params.AnnualDiscountPercent, nil
		}
		return DefaultAnnualDiscountPercent, nil
	}
	return decimal.Zero, nil
}
