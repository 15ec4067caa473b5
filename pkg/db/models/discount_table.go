package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// DiscountTable maps a discount type name to its percentage. Stored as jsonb.
type DiscountTable map[string]decimal.Decimal

func (d *DiscountTable) Scan(src any) error {
	if src == nil {
		*d = DiscountTable{}
		return nil
	}

	switch v := src.(type) {
	case string:
		return json.Unmarshal([]byte(v), d)
	case []byte:
		return json.Unmarshal(v, d)
	default:
		return fmt.Errorf("DiscountTable: unsupported Scan type %T", src)
	}
}

func (d DiscountTable) Value() (driver.Value, error) {
	if d == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("DiscountTable: marshal: %w", err)
	}
	return string(raw), nil
}

// Percentage resolves a discount type, reporting whether it exists.
func (d DiscountTable) Percentage(discountType string) (decimal.Decimal, bool) {
	if d == nil {
		return decimal.Zero, false
	}
	pct, ok := d[discountType]
	return pct, ok
}
