package mercadopago

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Notification type values delivered by the provider.
const (
	NotificationTypePayment = "payment"
	NotificationTypeOrder   = "merchant_order"
)

// WebhookEvent is the envelope of an inbound provider notification.
type WebhookEvent struct {
	ID          int64  `json:"id"`
	LiveMode    bool   `json:"live_mode"`
	Type        string `json:"type"`
	Action      string `json:"action"`
	APIVersion  string `json:"api_version"`
	DateCreated string `json:"date_created"`
	Data        struct {
		ID string `json:"id"`
	} `json:"data"`
}

// PaymentNotification and OrderNotification are the two validated variants of
// a webhook event. ParseWebhookEvent returns exactly one of them.
type PaymentNotification struct {
	DataID string
	Raw    json.RawMessage
}

type OrderNotification struct {
	DataID string
	Raw    json.RawMessage
}

// PreferenceCreateParams describes one checkout line item plus metadata.
type PreferenceCreateParams struct {
	Title             string
	Description       string
	Quantity          int
	UnitPrice         decimal.Decimal
	ExternalReference string
	PayerEmail        string
	SuccessURL        string
	FailureURL        string
	PendingURL        string
	NotificationURL   string
	StatementPrefix   string
}

// Preference is the provider-side checkout session.
type Preference struct {
	ID                string `json:"id"`
	InitPoint         string `json:"init_point"`
	SandboxInitPoint  string `json:"sandbox_init_point"`
	ExternalReference string `json:"external_reference"`
	DateCreated       string `json:"date_created"`
}

// Payment is the authoritative provider payment record.
type Payment struct {
	ID                int64           `json:"id"`
	Status            string          `json:"status"`
	StatusDetail      string          `json:"status_detail"`
	ExternalReference string          `json:"external_reference"`
	TransactionAmount decimal.Decimal `json:"transaction_amount"`
	CurrencyID        string          `json:"currency_id"`
	PaymentMethodID   string          `json:"payment_method_id"`
	PaymentTypeID     string          `json:"payment_type_id"`
	Installments      int             `json:"installments"`
	DateCreated       *time.Time      `json:"date_created"`
	DateApproved      *time.Time      `json:"date_approved"`
	DateLastUpdated   *time.Time      `json:"date_last_updated"`
	Issuer            struct {
		ID string `json:"id"`
	} `json:"issuer"`
	Card struct {
		LastFourDigits string `json:"last_four_digits"`
	} `json:"card"`
	Order struct {
		ID int64 `json:"id"`
	} `json:"order"`
	Payer struct {
		Email string `json:"email"`
	} `json:"payer"`
}

// MerchantOrder groups the payments behind one preference.
type MerchantOrder struct {
	ID                int64  `json:"id"`
	Status            string `json:"status"`
	ExternalReference string `json:"external_reference"`
	PreferenceID      string `json:"preference_id"`
	Payments          []struct {
		ID     int64  `json:"id"`
		Status string `json:"status"`
	} `json:"payments"`
}

type preferenceRequest struct {
	Items             []preferenceItem `json:"items"`
	Payer             *preferencePayer `json:"payer,omitempty"`
	ExternalReference string           `json:"external_reference"`
	BackURLs          *backURLs        `json:"back_urls,omitempty"`
	NotificationURL   string           `json:"notification_url,omitempty"`
	StatementDescriptor string         `json:"statement_descriptor,omitempty"`
}

type preferenceItem struct {
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

type preferencePayer struct {
	Email string `json:"email,omitempty"`
}

type backURLs struct {
	Success string `json:"success,omitempty"`
	Failure string `json:"failure,omitempty"`
	Pending string `json:"pending,omitempty"`
}

type paymentSearchResponse struct {
	Results []Payment `json:"results"`
}
