package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mrioscamacho/memberfees-backend/pkg/enums"
)

// PaymentIntent is the local record of one attempted fee payment, from
// creation through terminal resolution. Rows are never physically deleted;
// lifecycle end is a terminal status. The deleted_at column exists for the
// shared soft-delete tooling but is not managed by this service.
type PaymentIntent struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID     uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	CategoryID uuid.UUID `gorm:"column:category_id;type:uuid;not null"`

	OperationType enums.OperationType `gorm:"column:operation_type;type:operation_type;not null"`
	// PeriodMonth is 0 for annual and enrollment operations.
	PeriodYear  int `gorm:"column:period_year;not null"`
	PeriodMonth int `gorm:"column:period_month;not null;default:0"`

	OriginalAmount decimal.Decimal  `gorm:"column:original_amount;type:numeric(12,2);not null"`
	DiscountAmount decimal.Decimal  `gorm:"column:discount_amount;type:numeric(12,2);not null"`
	FinalAmount    decimal.Decimal  `gorm:"column:final_amount;type:numeric(12,2);not null"`
	Commission     *decimal.Decimal `gorm:"column:commission;type:numeric(12,2)"`

	// ExternalReference is generated locally and embedded in the provider
	// request so responses can be matched before a provider-assigned ID exists.
	ExternalReference string  `gorm:"column:external_reference;not null;unique"`
	PreferenceID      *string `gorm:"column:preference_id"`
	CheckoutURL       *string `gorm:"column:checkout_url"`
	SandboxURL        *string `gorm:"column:sandbox_url"`
	ProviderPaymentID *string `gorm:"column:provider_payment_id;index"`
	ProviderOrderID   *string `gorm:"column:provider_order_id;index"`
	ProviderStatus    *string `gorm:"column:provider_status"`
	StatusDetail      *string `gorm:"column:status_detail"`

	PaymentMethodID   *string `gorm:"column:payment_method_id"`
	PaymentMethodType *string `gorm:"column:payment_method_type"`
	PaymentIssuerID   *string `gorm:"column:payment_issuer_id"`
	Installments      *int    `gorm:"column:installments"`
	CardLastFour      *string `gorm:"column:card_last_four"`

	ProviderCreatedAt  *time.Time `gorm:"column:provider_created_at"`
	ProviderApprovedAt *time.Time `gorm:"column:provider_approved_at"`
	// ProviderUpdatedAt carries the provider's date_last_updated; notifications
	// older than this value are discarded as stale.
	ProviderUpdatedAt *time.Time `gorm:"column:provider_updated_at"`

	Status   enums.IntentStatus `gorm:"column:status;type:intent_status;not null;default:'pending'"`
	Attempts int                `gorm:"column:attempts;not null;default:0"`

	Notifications []PaymentNotification `gorm:"foreignKey:IntentID"`

	CreatedBy *uuid.UUID     `gorm:"column:created_by;type:uuid"`
	UpdatedBy *uuid.UUID     `gorm:"column:updated_by;type:uuid"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt gorm.DeletedAt `gorm:"column:deleted_at;index"`
}
