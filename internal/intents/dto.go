package intents

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mrioscamacho/memberfees-backend/pkg/enums"
)

// CreateMonthlyParams describes one monthly fee intent request.
type CreateMonthlyParams struct {
	UserID       uuid.UUID
	CategoryID   uuid.UUID
	Month        int
	Year         int
	DiscountType string
}

// CreateAnnualParams describes one annual fee intent request.
type CreateAnnualParams struct {
	UserID       uuid.UUID
	CategoryID   uuid.UUID
	Year         int
	DiscountType string
}

// CreateResult is returned to the caller after the provider preference is
// opened.
type CreateResult struct {
	IntentID           uuid.UUID
	PreferenceID       string
	CheckoutURL        string
	SandboxCheckoutURL string
	Amount             decimal.Decimal
	DiscountPercentage decimal.Decimal
	CategoryName       string
	PeriodYear         int
	PeriodMonth        int
}

// StatusParams selects an intent by provider payment ID or by external
// reference; exactly one must be set.
type StatusParams struct {
	ProviderPaymentID string
	ExternalReference string
}

// StatusResult is the public status projection of an intent.
type StatusResult struct {
	IntentID     uuid.UUID          `json:"intent_id"`
	Status       enums.IntentStatus `json:"status"`
	StatusDetail string             `json:"status_detail,omitempty"`
	Amount       decimal.Decimal    `json:"amount"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// ListParams pages through a user's intents.
type ListParams struct {
	UserID uuid.UUID
	Limit  int
	Cursor string
}

// ListItem is one row of a user's intent history.
type ListItem struct {
	IntentID      uuid.UUID           `json:"intent_id"`
	CategoryID    uuid.UUID           `json:"category_id"`
	OperationType enums.OperationType `json:"operation_type"`
	PeriodYear    int                 `json:"period_year"`
	PeriodMonth   int                 `json:"period_month,omitempty"`
	Status        enums.IntentStatus  `json:"status"`
	Amount        decimal.Decimal     `json:"amount"`
	CreatedAt     time.Time           `json:"created_at"`
}

// ListResult carries one page plus the next cursor.
type ListResult struct {
	Items  []ListItem `json:"items"`
	Cursor string     `json:"cursor,omitempty"`
}

// StatsParams filters the admin aggregation.
type StatsParams struct {
	From       *time.Time
	To         *time.Time
	CategoryID *uuid.UUID
}
