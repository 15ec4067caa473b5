package cron

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/mrioscamacho/memberfees-backend/internal/intents"
	"github.com/mrioscamacho/memberfees-backend/pkg/db/models"
	"github.com/mrioscamacho/memberfees-backend/pkg/enums"
	"github.com/mrioscamacho/memberfees-backend/pkg/logger"
	"github.com/mrioscamacho/memberfees-backend/pkg/mercadopago"
)

const (
	defaultPendingTTL        = 72 * time.Hour
	defaultPendingSweepLimit = 250

	expiredStatusDetail = "expired"
)

type paymentReconciler interface {
	HandlePayment(ctx context.Context, notification *mercadopago.PaymentNotification, requestID string) (bool, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// PendingIntentJobParams configures the stale intent sweep.
type PendingIntentJobParams struct {
	Logger      *logger.Logger
	DB          txRunner
	IntentsRepo intents.Repository
	Payments    mercadopago.PaymentFetcher
	Reconciler  paymentReconciler
	TTL         time.Duration
	Limit       int
	Now         func() time.Time
}

// NewPendingIntentJob builds the sweep that resolves PENDING intents the
// provider never notified about. Intents with a payment on the provider side
// are reconciled in place; the rest are expired.
func NewPendingIntentJob(params PendingIntentJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.IntentsRepo == nil {
		return nil, fmt.Errorf("intents repository required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payment fetcher required")
	}
	if params.Reconciler == nil {
		return nil, fmt.Errorf("reconciler required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultPendingTTL
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultPendingSweepLimit
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &pendingIntentJob{
		logg:       params.Logger,
		db:         params.DB,
		repo:       params.IntentsRepo,
		payments:   params.Payments,
		reconciler: params.Reconciler,
		ttl:        ttl,
		limit:      limit,
		now:        now,
	}, nil
}

type pendingIntentJob struct {
	logg       *logger.Logger
	db         txRunner
	repo       intents.Repository
	payments   mercadopago.PaymentFetcher
	reconciler paymentReconciler
	ttl        time.Duration
	limit      int
	now        func() time.Time
}

func (j *pendingIntentJob) Name() string { return "pending-intent-sweep" }

func (j *pendingIntentJob) Run(ctx context.Context) error {
	logCtx := j.logg.WithField(ctx, "job", j.Name())
	logCtx = j.logg.WithField(logCtx, "event", "cron.job")

	cutoff := j.now().UTC().Add(-j.ttl)
	stale, err := j.repo.ListStalePending(logCtx, cutoff, j.limit)
	if err != nil {
		return fmt.Errorf("list stale pending intents: %w", err)
	}

	var errs error
	reconciled := 0
	expired := 0
	for i := range stale {
		outcome, err := j.sweep(logCtx, &stale[i])
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		switch outcome {
		case sweepReconciled:
			reconciled++
		case sweepExpired:
			expired++
		}
	}

	reportCtx := j.logg.WithFields(logCtx, map[string]any{
		"candidates": len(stale),
		"reconciled": reconciled,
		"expired":    expired,
	})
	j.logg.Info(reportCtx, "pending intent sweep complete")
	return errs
}

type sweepOutcome int

const (
	sweepSkipped sweepOutcome = iota
	sweepReconciled
	sweepExpired
)

func (j *pendingIntentJob) sweep(ctx context.Context, intent *models.PaymentIntent) (sweepOutcome, error) {
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"intent_id":          intent.ID,
		"external_reference": intent.ExternalReference,
	})

	payments, err := j.payments.SearchPaymentsByReference(logCtx, intent.ExternalReference)
	if err != nil {
		return sweepSkipped, fmt.Errorf("search payments for %s: %w", intent.ID, err)
	}

	if latest := latestPayment(payments); latest != nil {
		j.logg.Info(logCtx, "stale intent has a provider payment; reconciling")
		notification := &mercadopago.PaymentNotification{
			DataID: strconv.FormatInt(latest.ID, 10),
		}
		if _, err := j.reconciler.HandlePayment(logCtx, notification, j.Name()); err != nil {
			return sweepSkipped, fmt.Errorf("reconcile intent %s: %w", intent.ID, err)
		}
		return sweepReconciled, nil
	}

	err = j.db.WithTx(logCtx, func(tx *gorm.DB) error {
		repo := j.repo.WithTx(tx)
		locked, err := repo.FindByIDForUpdate(logCtx, intent.ID)
		if err != nil {
			return err
		}
		if locked == nil || locked.Status != enums.IntentStatusPending {
			return nil
		}
		locked.Status = enums.IntentStatusCancelled
		detail := expiredStatusDetail
		locked.StatusDetail = &detail
		return repo.Update(logCtx, locked)
	})
	if err != nil {
		return sweepSkipped, fmt.Errorf("expire intent %s: %w", intent.ID, err)
	}
	j.logg.Info(logCtx, "stale intent expired")
	return sweepExpired, nil
}

func latestPayment(payments []mercadopago.Payment) *mercadopago.Payment {
	var latest *mercadopago.Payment
	for i := range payments {
		candidate := &payments[i]
		if latest == nil {
			latest = candidate
			continue
		}
		switch {
		case latest.DateLastUpdated == nil:
			latest = candidate
		case candidate.DateLastUpdated != nil && candidate.DateLastUpdated.After(*latest.DateLastUpdated):
			latest = candidate
		}
	}
	return latest
}
