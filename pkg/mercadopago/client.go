package mercadopago

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/mrioscamacho/memberfees-backend/pkg/config"
	pkgerrors "github.com/mrioscamacho/memberfees-backend/pkg/errors"
	"github.com/mrioscamacho/memberfees-backend/pkg/logger"
)

const (
	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 3
	retryBaseDelay    = 500 * time.Millisecond
)

var (
	errAccessTokenRequired   = errors.New("mercadopago access token is required")
	errWebhookSecretRequired = errors.New("mercadopago webhook secret is required")
	errLoggerRequired        = errors.New("mercadopago logger is required")
)

// PreferenceClient, PaymentFetcher and OrderFetcher are the three narrow
// surfaces the core consumes; Client satisfies all of them.
type PreferenceClient interface {
	CreatePreference(ctx context.Context, params PreferenceCreateParams) (*Preference, error)
}

type PaymentFetcher interface {
	GetPayment(ctx context.Context, paymentID string) (*Payment, error)
	SearchPaymentsByReference(ctx context.Context, externalReference string) ([]Payment, error)
}

type OrderFetcher interface {
	GetMerchantOrder(ctx context.Context, orderID string) (*MerchantOrder, error)
}

// Client wraps the provider REST API with centralized auth, logging, bounded
// timeouts, retry with exponential backoff, and error mapping. Retries are
// safe for preference creation because the external reference pins the
// request to one intent.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	accessToken   string
	webhookSecret string
	maxRetries    int
	logger        *logger.Logger
}

// NewClient initializes the wrapper and validates the credentials.
func NewClient(ctx context.Context, cfg config.MercadoPagoConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}

	accessToken := strings.TrimSpace(cfg.AccessToken)
	if accessToken == "" {
		return nil, errAccessTokenRequired
	}

	webhookSecret := strings.TrimSpace(cfg.WebhookSecret)
	if webhookSecret == "" {
		return nil, errWebhookSecretRequired
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	baseURL := strings.TrimSuffix(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.mercadopago.com"
	}

	c := &Client{
		httpClient:    &http.Client{Timeout: timeout},
		baseURL:       baseURL,
		accessToken:   accessToken,
		webhookSecret: webhookSecret,
		maxRetries:    maxRetries,
		logger:        logg,
	}

	logg.Info(ctx, "mercadopago client initialized")
	return c, nil
}

// SigningSecret returns the shared webhook secret.
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.webhookSecret
}

// CreatePreference opens a checkout session for one line item.
func (c *Client) CreatePreference(ctx context.Context, params PreferenceCreateParams) (*Preference, error) {
	if strings.TrimSpace(params.ExternalReference) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "external reference is required")
	}
	quantity := params.Quantity
	if quantity <= 0 {
		quantity = 1
	}

	req := preferenceRequest{
		Items: []preferenceItem{{
			Title:       params.Title,
			Description: params.Description,
			Quantity:    quantity,
			UnitPrice:   params.UnitPrice,
		}},
		ExternalReference:   params.ExternalReference,
		NotificationURL:     params.NotificationURL,
		StatementDescriptor: params.StatementPrefix,
	}
	if params.PayerEmail != "" {
		req.Payer = &preferencePayer{Email: params.PayerEmail}
	}
	if params.SuccessURL != "" || params.FailureURL != "" || params.PendingURL != "" {
		req.BackURLs = &backURLs{
			Success: params.SuccessURL,
			Failure: params.FailureURL,
			Pending: params.PendingURL,
		}
	}

	c.log(ctx, "request", "create_preference", map[string]any{
		"external_reference": params.ExternalReference,
		"unit_price":         params.UnitPrice.String(),
	})

	var pref Preference
	if err := c.do(ctx, http.MethodPost, "/checkout/preferences", req, &pref); err != nil {
		c.log(ctx, "error", "create_preference", map[string]any{"error": err.Error()})
		return nil, err
	}

	c.log(ctx, "response", "create_preference", map[string]any{"preference_id": pref.ID})
	return &pref, nil
}

// GetPayment fetches the authoritative payment record by provider ID.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	if strings.TrimSpace(paymentID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}

	c.log(ctx, "request", "get_payment", map[string]any{"payment_id": paymentID})

	var payment Payment
	if err := c.do(ctx, http.MethodGet, "/v1/payments/"+url.PathEscape(paymentID), nil, &payment); err != nil {
		c.log(ctx, "error", "get_payment", map[string]any{"error": err.Error()})
		return nil, err
	}

	c.log(ctx, "response", "get_payment", map[string]any{
		"payment_id": payment.ID,
		"status":     payment.Status,
	})
	return &payment, nil
}

// SearchPaymentsByReference lists the payments carrying an external reference.
func (c *Client) SearchPaymentsByReference(ctx context.Context, externalReference string) ([]Payment, error) {
	if strings.TrimSpace(externalReference) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "external reference is required")
	}

	c.log(ctx, "request", "search_payments", map[string]any{"external_reference": externalReference})

	var resp paymentSearchResponse
	path := "/v1/payments/search?external_reference=" + url.QueryEscape(externalReference)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		c.log(ctx, "error", "search_payments", map[string]any{"error": err.Error()})
		return nil, err
	}

	c.log(ctx, "response", "search_payments", map[string]any{"results": len(resp.Results)})
	return resp.Results, nil
}

// GetMerchantOrder fetches an order by provider ID.
func (c *Client) GetMerchantOrder(ctx context.Context, orderID string) (*MerchantOrder, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}

	c.log(ctx, "request", "get_merchant_order", map[string]any{"order_id": orderID})

	var order MerchantOrder
	if err := c.do(ctx, http.MethodGet, "/merchant_orders/"+url.PathEscape(orderID), nil, &order); err != nil {
		c.log(ctx, "error", "get_merchant_order", map[string]any{"error": err.Error()})
		return nil, err
	}

	c.log(ctx, "response", "get_merchant_order", map[string]any{
		"order_id": order.ID,
		"status":   order.Status,
	})
	return &order, nil
}

// ParseWebhookEvent validates the raw body into its tagged variant before any
// field is read downstream.
func ParseWebhookEvent(raw []byte) (*PaymentNotification, *OrderNotification, error) {
	var event WebhookEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode webhook event")
	}
	if strings.TrimSpace(event.Data.ID) == "" {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "webhook data id missing")
	}
	switch event.Type {
	case NotificationTypePayment:
		return &PaymentNotification{DataID: event.Data.ID, Raw: raw}, nil, nil
	case NotificationTypeOrder, "order":
		return nil, &OrderNotification{DataID: event.Data.ID, Raw: raw}, nil
	default:
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported notification type %q", event.Type))
	}
}

func (c *Client) do(ctx context.Context, method, path string, body any, dest any) error {
	var payload []byte
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode request body")
		}
		payload = raw
	}

	backoff := retry.WithMaxRetries(uint64(c.maxRetries), retry.NewExponential(retryBaseDelay))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build provider request")
		}
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return retry.RetryableError(pkgerrors.Wrap(pkgerrors.CodeDependency, err, "provider unreachable"))
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return retry.RetryableError(pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read provider response"))
		}

		if resp.StatusCode >= http.StatusInternalServerError {
			return retry.RetryableError(pkgerrors.New(pkgerrors.CodeDependency,
				fmt.Sprintf("provider returned %d", resp.StatusCode)))
		}
		if resp.StatusCode >= http.StatusBadRequest {
			return c.mapProviderError(resp.StatusCode, raw)
		}

		if dest == nil {
			return nil
		}
		if err := json.Unmarshal(raw, dest); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode provider response")
		}
		return nil
	})
}

func (c *Client) mapProviderError(status int, raw []byte) error {
	var body struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal(raw, &body)
	msg := strings.TrimSpace(body.Message)
	if msg == "" {
		msg = fmt.Sprintf("provider returned %d", status)
	}
	return pkgerrors.New(domainCodeForStatus(status), msg)
}

func domainCodeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusUnauthorized:
		return pkgerrors.CodeUnauthorized
	case http.StatusForbidden:
		return pkgerrors.CodeForbidden
	case http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case http.StatusConflict:
		return pkgerrors.CodeConflict
	case http.StatusTooManyRequests:
		return pkgerrors.CodeRateLimit
	case http.StatusBadRequest:
		return pkgerrors.CodeValidation
	default:
		if status >= 400 && status < 500 {
			return pkgerrors.CodeValidation
		}
		return pkgerrors.CodeDependency
	}
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = c.redact(k, v)
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("mercadopago %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("mercadopago %s", phase))
	}
}

func (c *Client) redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"card", "token", "secret", "email", "phone"} {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}
