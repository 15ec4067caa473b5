package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	"github.com/mrioscamacho/memberfees-backend/pkg/logger"
	"github.com/mrioscamacho/memberfees-backend/pkg/mercadopago"
	"github.com/mrioscamacho/memberfees-backend/pkg/metrics"
)

// MercadoPagoReconciler applies validated notifications to payment intents.
type MercadoPagoReconciler interface {
	HandlePayment(ctx context.Context, notification *mercadopago.PaymentNotification, requestID string) (bool, error)
	HandleOrder(ctx context.Context, notification *mercadopago.OrderNotification, requestID string) (bool, error)
}

type mercadoPagoVerifier interface {
	Verify(header http.Header, query url.Values) bool
}

type mercadoPagoGuard interface {
	CheckAndMark(ctx context.Context, notificationType, dataID string) (bool, error)
	Release(ctx context.Context, notificationType, dataID string) error
}

// webhookAck is the provider-facing acknowledgement. The provider retries any
// non-2xx delivery, so every outcome after reading the body answers 200;
// processed reports whether the notification changed local state.
type webhookAck struct {
	Success   bool `json:"success"`
	Processed bool `json:"processed"`
}

func writeAck(w http.ResponseWriter, processed bool) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(webhookAck{Success: true, Processed: processed})
}

// MercadoPagoWebhook receives payment and merchant order notifications.
func MercadoPagoWebhook(
	svc MercadoPagoReconciler,
	verifier mercadoPagoVerifier,
	guard mercadoPagoGuard,
	webhookMetrics *metrics.WebhookMetrics,
	logg *logger.Logger,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := r.Header.Get("x-request-id")
		if logg != nil && requestID != "" {
			ctx = logg.WithRequestID(ctx, requestID)
		}

		if svc == nil || verifier == nil || guard == nil {
			if logg != nil {
				logg.Warn(ctx, "webhook dependencies unavailable; acknowledging without processing")
			}
			writeAck(w, false)
			return
		}

		if !verifier.Verify(r.Header, r.URL.Query()) {
			webhookMetrics.IncRejected()
			if logg != nil {
				logg.Warn(ctx, "webhook signature rejected")
			}
			writeAck(w, false)
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			if logg != nil {
				logg.Error(ctx, "read webhook body", err)
			}
			writeAck(w, false)
			return
		}

		payment, order, err := mercadopago.ParseWebhookEvent(payload)
		if err != nil {
			if logg != nil {
				logg.Warn(logg.WithField(ctx, "error", err.Error()), "unrecognized webhook payload")
			}
			writeAck(w, false)
			return
		}

		notificationType := mercadopago.NotificationTypePayment
		dataID := ""
		if payment != nil {
			dataID = payment.DataID
		} else {
			notificationType = mercadopago.NotificationTypeOrder
			dataID = order.DataID
		}

		// The dedup guard sheds load; it must never drop a delivery. When the
		// guard store is unreachable the notification still reconciles,
		// idempotently, without a mark.
		seen, guardErr := guard.CheckAndMark(ctx, notificationType, dataID)
		if guardErr != nil {
			if logg != nil {
				logg.Error(ctx, "webhook idempotency check unavailable; processing without dedup", guardErr)
			}
		} else if seen {
			webhookMetrics.IncDuplicate()
			writeAck(w, false)
			return
		}

		var processed bool
		if payment != nil {
			processed, err = svc.HandlePayment(ctx, payment, requestID)
		} else {
			processed, err = svc.HandleOrder(ctx, order, requestID)
		}
		if err != nil {
			if guardErr == nil {
				// Release the delivery mark so the provider retry gets another run.
				_ = guard.Release(ctx, notificationType, dataID)
			}
			if logg != nil {
				logg.Error(ctx, "webhook reconciliation failed", err)
			}
			writeAck(w, false)
			return
		}

		writeAck(w, processed)
	}
}
