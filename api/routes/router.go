package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mrioscamacho/memberfees-backend/api/controllers"
	webhookcontrollers "github.com/mrioscamacho/memberfees-backend/api/controllers/webhooks"
	"github.com/mrioscamacho/memberfees-backend/api/middleware"
	"github.com/mrioscamacho/memberfees-backend/internal/intents"
	"github.com/mrioscamacho/memberfees-backend/internal/reconcile"
	"github.com/mrioscamacho/memberfees-backend/pkg/auth/session"
	"github.com/mrioscamacho/memberfees-backend/pkg/config"
	"github.com/mrioscamacho/memberfees-backend/pkg/db"
	"github.com/mrioscamacho/memberfees-backend/pkg/logger"
	"github.com/mrioscamacho/memberfees-backend/pkg/mercadopago"
	"github.com/mrioscamacho/memberfees-backend/pkg/metrics"
	"github.com/mrioscamacho/memberfees-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	sessionChecker session.AccessSessionChecker,
	intentsService *intents.Service,
	reconcileService *reconcile.Service,
	webhookVerifier *mercadopago.Verifier,
	webhookGuard *reconcile.DeliveryGuard,
	webhookMetrics *metrics.WebhookMetrics,
	metricsGatherer prometheus.Gatherer,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.CORS(),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	if metricsGatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(metricsGatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/mercadopago", webhookcontrollers.MercadoPagoWebhook(reconcileService, webhookVerifier, webhookGuard, webhookMetrics, logg))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessionChecker, logg))
		if redisClient != nil {
			policy := middleware.NewRateLimitPolicy("intents", cfg.RateLimit.Window, cfg.RateLimit.Limit)
			r.Use(middleware.RateLimit(policy, redisClient, logg))
		}
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Route("/v1/intents", func(r chi.Router) {
			r.Post("/monthly", controllers.IntentCreateMonthly(intentsService, logg))
			r.Post("/annual", controllers.IntentCreateAnnual(intentsService, logg))
			r.Get("/", controllers.IntentList(intentsService, logg))
			r.Get("/status", controllers.IntentStatus(intentsService, logg))
		})
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessionChecker, logg))
		r.Use(middleware.RequireRole("admin", logg))
		r.Use(middleware.Idempotency(redisClient, logg))
		r.Route("/v1/intents", func(r chi.Router) {
			r.Get("/stats", controllers.AdminPaymentStats(intentsService, logg))
		})
	})

	return r
}
