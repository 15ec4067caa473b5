package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mrioscamacho/memberfees-backend/pkg/redis"
)

// DeliveryGuard deduplicates provider webhook deliveries. The provider
// retries every notification until it sees a 2xx, so the same delivery can
// arrive several times; the guard short-circuits replays within the TTL.
// Reconciliation itself stays idempotent, the guard only saves work.
type DeliveryGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	scope string
}

// NewDeliveryGuard builds a guard scoped to one notification source.
func NewDeliveryGuard(store redis.IdempotencyStore, ttl time.Duration, scope string) (*DeliveryGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	return &DeliveryGuard{
		store: store,
		ttl:   ttl,
		scope: scope,
	}, nil
}

// CheckAndMark records the delivery and reports whether it was already seen.
func (g *DeliveryGuard) CheckAndMark(ctx context.Context, notificationType, dataID string) (bool, error) {
	if notificationType == "" || dataID == "" {
		return false, errors.New("notification type and data id are required")
	}
	key := g.store.IdempotencyKey(g.scope, fmt.Sprintf("%s:%s", notificationType, dataID))
	set, err := g.store.SetNX(ctx, key, "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("set idempotency key: %w", err)
	}
	return !set, nil
}

// Release drops the delivery mark so a failed reconciliation can be retried.
func (g *DeliveryGuard) Release(ctx context.Context, notificationType, dataID string) error {
	if notificationType == "" || dataID == "" {
		return errors.New("notification type and data id are required")
	}
	key := g.store.IdempotencyKey(g.scope, fmt.Sprintf("%s:%s", notificationType, dataID))
	return g.store.Del(ctx, key)
}
