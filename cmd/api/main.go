package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mrioscamacho/memberfees-backend/api/routes"
	"github.com/mrioscamacho/memberfees-backend/internal/catalog"
	"github.com/mrioscamacho/memberfees-backend/internal/intents"
	"github.com/mrioscamacho/memberfees-backend/internal/reconcile"
	"github.com/mrioscamacho/memberfees-backend/internal/users"
	"github.com/mrioscamacho/memberfees-backend/pkg/auth/session"
	"github.com/mrioscamacho/memberfees-backend/pkg/config"
	"github.com/mrioscamacho/memberfees-backend/pkg/db"
	"github.com/mrioscamacho/memberfees-backend/pkg/logger"
	"github.com/mrioscamacho/memberfees-backend/pkg/mercadopago"
	"github.com/mrioscamacho/memberfees-backend/pkg/metrics"
	"github.com/mrioscamacho/memberfees-backend/pkg/migrate"
	"github.com/mrioscamacho/memberfees-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	providerClient, err := mercadopago.NewClient(context.Background(), cfg.MercadoPago, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment provider client", err)
		os.Exit(1)
	}

	webhookVerifier, err := mercadopago.NewVerifier(cfg.MercadoPago.WebhookSecret)
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook verifier", err)
		os.Exit(1)
	}

	intentsRepo := intents.NewRepository(dbClient.DB())

	intentsService, err := intents.NewService(intents.ServiceParams{
		Repo:        intentsRepo,
		CatalogRepo: catalog.NewRepository(dbClient.DB()),
		UserRepo:    users.NewRepository(dbClient.DB()),
		Provider:    providerClient,
		ProviderCfg: cfg.MercadoPago,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create intents service", err)
		os.Exit(1)
	}

	webhookMetrics := metrics.NewWebhookMetrics(prometheus.DefaultRegisterer)

	reconcileService, err := reconcile.NewService(reconcile.ServiceParams{
		IntentsRepo:       intentsRepo,
		Payments:          providerClient,
		Orders:            providerClient,
		TransactionRunner: dbClient,
		Logger:            logg,
		Metrics:           webhookMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reconcile service", err)
		os.Exit(1)
	}

	webhookGuard, err := reconcile.NewDeliveryGuard(redisClient, cfg.Webhook.DedupTTL, "webhook:mp")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook delivery guard", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			sessionManager,
			intentsService,
			reconcileService,
			webhookVerifier,
			webhookGuard,
			webhookMetrics,
			prometheus.DefaultGatherer,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
