package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// FeeCategory is a subscription-catalog entry. CRUD for categories lives in
// the catalog service; this model is read-only here.
type FeeCategory struct {
	ID       uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name     string          `gorm:"column:name;not null"`
	Price    decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	// DiscountTable maps discount type (e.g. "sibling") to a percentage.
	DiscountTable         DiscountTable    `gorm:"column:discount_table;type:jsonb"`
	AnnualDiscountPercent *decimal.Decimal `gorm:"column:annual_discount_percent;type:numeric(5,2)"`
	Active                bool             `gorm:"column:active;not null;default:true"`

	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt gorm.DeletedAt `gorm:"column:deleted_at;index"`
}
