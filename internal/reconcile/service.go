package reconcile

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/mrioscamacho/memberfees-backend/internal/intents"
	"github.com/mrioscamacho/memberfees-backend/pkg/db/models"
	"github.com/mrioscamacho/memberfees-backend/pkg/enums"
	pkgerrors "github.com/mrioscamacho/memberfees-backend/pkg/errors"
	"github.com/mrioscamacho/memberfees-backend/pkg/logger"
	"github.com/mrioscamacho/memberfees-backend/pkg/mercadopago"
	"github.com/mrioscamacho/memberfees-backend/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams groups dependencies for the reconciliation service.
type ServiceParams struct {
	IntentsRepo       intents.Repository
	Payments          mercadopago.PaymentFetcher
	Orders            mercadopago.OrderFetcher
	TransactionRunner txRunner
	Logger            *logger.Logger
	Metrics           *metrics.WebhookMetrics
	Now               func() time.Time
}

// Service applies provider notifications to local payment intents. Every
// delivery is appended to the notification log; only deliveries that survive
// the staleness and terminal-state guards mutate the intent.
type Service struct {
	repo     intents.Repository
	payments mercadopago.PaymentFetcher
	orders   mercadopago.OrderFetcher
	txRunner txRunner
	logg     *logger.Logger
	metrics  *metrics.WebhookMetrics
	now      func() time.Time
}

// NewService builds a reconciliation service.
func NewService(params ServiceParams) (*Service, error) {
	if params.IntentsRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "intents repo required")
	}
	if params.Payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment fetcher required")
	}
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order fetcher required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:     params.IntentsRepo,
		payments: params.Payments,
		orders:   params.Orders,
		txRunner: params.TransactionRunner,
		logg:     params.Logger,
		metrics:  params.Metrics,
		now:      now,
	}, nil
}

// HandlePayment reconciles one payment notification. The returned flag
// reports whether the intent changed. Orphan notifications are logged and
// counted, never surfaced as errors.
func (s *Service) HandlePayment(ctx context.Context, notification *mercadopago.PaymentNotification, requestID string) (bool, error) {
	if notification == nil || notification.DataID == "" {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "payment notification with data id required")
	}
	s.metrics.IncReceived(mercadopago.NotificationTypePayment)

	payment, err := s.payments.GetPayment(ctx, notification.DataID)
	if err != nil {
		if pkgerrors.As(err).Code() == pkgerrors.CodeNotFound {
			return false, s.logOrphan(ctx, enums.NotificationTypePayment, notification.DataID, requestID, notification.Raw)
		}
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch provider payment")
	}

	intent, err := s.locateIntent(ctx, payment)
	if err != nil {
		return false, err
	}
	if intent == nil {
		return false, s.logOrphan(ctx, enums.NotificationTypePayment, notification.DataID, requestID, notification.Raw)
	}

	applied := false
	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		locked, err := repo.FindByIDForUpdate(ctx, intent.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock intent")
		}
		if locked == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "intent vanished under lock")
		}

		entry := &models.PaymentNotification{
			IntentID:       &locked.ID,
			Type:           enums.NotificationTypePayment,
			ProviderDataID: notification.DataID,
			RequestID:      requestID,
			Payload:        json.RawMessage(notification.Raw),
		}

		outcome := s.apply(ctx, locked, payment)
		if outcome == outcomeApplied {
			if err := repo.Update(ctx, locked); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update intent")
			}
			entry.Applied = true
			applied = true
		}
		if err := repo.AppendNotification(ctx, entry); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append notification")
		}
		switch outcome {
		case outcomeApplied:
			s.metrics.IncApplied()
		case outcomeStale:
			s.metrics.IncStale()
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

// HandleOrder records a merchant order notification. Orders carry no payment
// state of their own; the handler links the provider order ID to the intent
// and appends the delivery to the log.
func (s *Service) HandleOrder(ctx context.Context, notification *mercadopago.OrderNotification, requestID string) (bool, error) {
	if notification == nil || notification.DataID == "" {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "order notification with data id required")
	}
	s.metrics.IncReceived(mercadopago.NotificationTypeOrder)

	order, err := s.orders.GetMerchantOrder(ctx, notification.DataID)
	if err != nil {
		if pkgerrors.As(err).Code() == pkgerrors.CodeNotFound {
			return false, s.logOrphan(ctx, enums.NotificationTypeOrder, notification.DataID, requestID, notification.Raw)
		}
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch merchant order")
	}

	intent, err := s.repo.FindByProviderOrderID(ctx, notification.DataID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load intent by order")
	}
	if intent == nil && order.ExternalReference != "" {
		intent, err = s.repo.FindByExternalReference(ctx, order.ExternalReference)
		if err != nil {
			return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load intent by reference")
		}
	}
	if intent == nil {
		return false, s.logOrphan(ctx, enums.NotificationTypeOrder, notification.DataID, requestID, notification.Raw)
	}

	if intent.ProviderOrderID == nil {
		orderID := strconv.FormatInt(order.ID, 10)
		intent.ProviderOrderID = &orderID
		if err := s.repo.Update(ctx, intent); err != nil {
			return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "link order to intent")
		}
	}

	entry := &models.PaymentNotification{
		IntentID:       &intent.ID,
		Type:           enums.NotificationTypeOrder,
		ProviderDataID: notification.DataID,
		RequestID:      requestID,
		Payload:        json.RawMessage(notification.Raw),
	}
	if err := s.repo.AppendNotification(ctx, entry); err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append notification")
	}
	return false, nil
}

type applyOutcome int

const (
	outcomeUnchanged applyOutcome = iota
	outcomeApplied
	outcomeStale
)

// apply folds the provider payment into the intent. The staleness guard
// compares the provider's date_last_updated against the stored value so a
// delayed delivery can never roll a newer state back.
func (s *Service) apply(ctx context.Context, intent *models.PaymentIntent, payment *mercadopago.Payment) applyOutcome {
	ctx = s.logg.WithIntentID(ctx, intent.ID.String())
	ctx = s.logg.WithPaymentID(ctx, strconv.FormatInt(payment.ID, 10))

	if intent.ProviderUpdatedAt != nil && payment.DateLastUpdated != nil &&
		payment.DateLastUpdated.Before(*intent.ProviderUpdatedAt) {
		ctx = s.logg.WithFields(ctx, map[string]any{
			"notification_updated_at": payment.DateLastUpdated,
			"stored_updated_at":       intent.ProviderUpdatedAt,
		})
		s.logg.Warn(ctx, "discarding stale payment notification")
		return outcomeStale
	}

	next := MapProviderStatus(payment.Status)
	if intent.Status.IsTerminal() {
		if intent.Status != next {
			ctx = s.logg.WithFields(ctx, map[string]any{
				"current_status":  intent.Status.String(),
				"provider_status": payment.Status,
			})
			s.logg.Warn(ctx, "ignoring transition out of terminal status")
		}
		return outcomeUnchanged
	}

	changed := intent.Status != next

	paymentID := strconv.FormatInt(payment.ID, 10)
	if intent.ProviderPaymentID == nil || *intent.ProviderPaymentID != paymentID {
		intent.ProviderPaymentID = &paymentID
		changed = true
	}
	if payment.Order.ID != 0 {
		orderID := strconv.FormatInt(payment.Order.ID, 10)
		if intent.ProviderOrderID == nil || *intent.ProviderOrderID != orderID {
			intent.ProviderOrderID = &orderID
			changed = true
		}
	}
	if intent.ProviderStatus == nil || *intent.ProviderStatus != payment.Status {
		intent.ProviderStatus = &payment.Status
		changed = true
	}
	if payment.StatusDetail != "" {
		if intent.StatusDetail == nil || *intent.StatusDetail != payment.StatusDetail {
			intent.StatusDetail = &payment.StatusDetail
			changed = true
		}
	}
	setPaymentMethod(intent, payment)

	intent.ProviderCreatedAt = payment.DateCreated
	intent.ProviderUpdatedAt = payment.DateLastUpdated

	if next == enums.IntentStatusApproved {
		if intent.ProviderApprovedAt == nil {
			approvedAt := s.now().UTC()
			if payment.DateApproved != nil {
				approvedAt = *payment.DateApproved
			}
			intent.ProviderApprovedAt = &approvedAt
		}
		// Commission is computed once, on the first approval.
		if intent.Commission == nil {
			commission := Commission(intent.FinalAmount)
			intent.Commission = &commission
		}
	}

	intent.Status = next
	if !changed {
		return outcomeUnchanged
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"status":        next.String(),
		"status_detail": payment.StatusDetail,
	})
	s.logg.Info(ctx, "payment notification applied")
	return outcomeApplied
}

func setPaymentMethod(intent *models.PaymentIntent, payment *mercadopago.Payment) {
	if payment.PaymentMethodID != "" {
		intent.PaymentMethodID = &payment.PaymentMethodID
	}
	if payment.PaymentTypeID != "" {
		intent.PaymentMethodType = &payment.PaymentTypeID
	}
	if payment.Issuer.ID != "" {
		intent.PaymentIssuerID = &payment.Issuer.ID
	}
	if payment.Installments > 0 {
		installments := payment.Installments
		intent.Installments = &installments
	}
	if payment.Card.LastFourDigits != "" {
		intent.CardLastFour = &payment.Card.LastFourDigits
	}
}

// locateIntent matches a provider payment to a local intent, preferring the
// stored provider payment ID and falling back to the external reference the
// preference was created with.
func (s *Service) locateIntent(ctx context.Context, payment *mercadopago.Payment) (*models.PaymentIntent, error) {
	paymentID := strconv.FormatInt(payment.ID, 10)
	intent, err := s.repo.FindByProviderPaymentID(ctx, paymentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load intent by payment id")
	}
	if intent != nil {
		return intent, nil
	}
	if payment.ExternalReference == "" {
		return nil, nil
	}
	intent, err = s.repo.FindByExternalReference(ctx, payment.ExternalReference)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load intent by reference")
	}
	return intent, nil
}

func (s *Service) logOrphan(ctx context.Context, notificationType enums.NotificationType, dataID, requestID string, raw []byte) error {
	ctx = s.logg.WithFields(ctx, map[string]any{
		"type":             notificationType.String(),
		"provider_data_id": dataID,
		"request_id":       requestID,
	})
	s.logg.Warn(ctx, "notification matched no payment intent")
	s.metrics.IncOrphaned()

	entry := &models.PaymentNotification{
		Type:           notificationType,
		ProviderDataID: dataID,
		RequestID:      requestID,
		Payload:        json.RawMessage(raw),
	}
	if err := s.repo.AppendNotification(ctx, entry); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append orphan notification")
	}
	return nil
}
