package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// WebhookMetrics records provider notification processing outcomes.
type WebhookMetrics struct {
	received  *prometheus.CounterVec
	rejected  prometheus.Counter
	duplicate prometheus.Counter
	orphaned  prometheus.Counter
	stale     prometheus.Counter
	applied   prometheus.Counter
}

// NewWebhookMetrics registers the webhook metrics on the provided registerer.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	received := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_notifications_received",
		Help: "Provider notifications received, by type.",
	}, []string{"type"})
	rejected := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "webhook_signature_rejected",
		Help: "Notifications rejected for an invalid or missing signature.",
	})
	duplicate := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "webhook_notifications_duplicate",
		Help: "Notifications skipped by the delivery idempotency guard.",
	})
	orphaned := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "webhook_notifications_orphaned",
		Help: "Notifications that matched no local payment intent.",
	})
	stale := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "webhook_notifications_stale",
		Help: "Notifications discarded as older than the stored provider state.",
	})
	applied := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "webhook_notifications_applied",
		Help: "Notifications that changed a payment intent.",
	})
	reg.MustRegister(received, rejected, duplicate, orphaned, stale, applied)
	return &WebhookMetrics{
		received:  received,
		rejected:  rejected,
		duplicate: duplicate,
		orphaned:  orphaned,
		stale:     stale,
		applied:   applied,
	}
}

// IncReceived increments the received counter for the notification type.
func (w *WebhookMetrics) IncReceived(notificationType string) {
	if w == nil || w.received == nil {
		return
	}
	w.received.WithLabelValues(normalizeLabel(notificationType)).Inc()
}

// IncRejected increments the signature rejection counter.
func (w *WebhookMetrics) IncRejected() {
	if w == nil || w.rejected == nil {
		return
	}
	w.rejected.Inc()
}

// IncDuplicate increments the duplicate delivery counter.
func (w *WebhookMetrics) IncDuplicate() {
	if w == nil || w.duplicate == nil {
		return
	}
	w.duplicate.Inc()
}

// IncOrphaned increments the orphan notification counter.
func (w *WebhookMetrics) IncOrphaned() {
	if w == nil || w.orphaned == nil {
		return
	}
	w.orphaned.Inc()
}

// IncStale increments the stale notification counter.
func (w *WebhookMetrics) IncStale() {
	if w == nil || w.stale == nil {
		return
	}
	w.stale.Inc()
}

// IncApplied increments the applied notification counter.
func (w *WebhookMetrics) IncApplied() {
	if w == nil || w.applied == nil {
		return
	}
	w.applied.Inc()
}
