package intents

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrioscamacho/memberfees-backend/pkg/db"
	"github.com/mrioscamacho/memberfees-backend/pkg/db/models"
	"github.com/mrioscamacho/memberfees-backend/pkg/enums"
	pkgerrors "github.com/mrioscamacho/memberfees-backend/pkg/errors"
	"github.com/mrioscamacho/memberfees-backend/pkg/pagination"
)

// ActiveIntentConstraint is the partial unique index that backs the duplicate
// guard. A violation of it is the canonical duplicate-intent signal.
const ActiveIntentConstraint = "uniq_active_intent"

// ErrDuplicateIntent is returned when an active intent already exists for the
// (user, category, period) tuple, whether caught at check time or at write
// time.
var ErrDuplicateIntent = pkgerrors.New(pkgerrors.CodeConflict,
	"an active payment intent already exists for this period")

// StatsQuery filters the status aggregation.
type StatsQuery struct {
	From       *time.Time
	To         *time.Time
	CategoryID *uuid.UUID
}

// StatsRow is one aggregation bucket.
type StatsRow struct {
	Status        enums.IntentStatus `gorm:"column:status" json:"status"`
	Count         int64              `gorm:"column:count" json:"count"`
	TotalAmount   decimal.Decimal    `gorm:"column:total_amount" json:"total_amount"`
	AverageAmount decimal.Decimal    `gorm:"column:average_amount" json:"average_amount"`
}

// Repository handles payment intent persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, intent *models.PaymentIntent) error
	Update(ctx context.Context, intent *models.PaymentIntent) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentIntent, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.PaymentIntent, error)
	FindByProviderPaymentID(ctx context.Context, providerPaymentID string) (*models.PaymentIntent, error)
	FindByExternalReference(ctx context.Context, externalReference string) (*models.PaymentIntent, error)
	FindByProviderOrderID(ctx context.Context, providerOrderID string) (*models.PaymentIntent, error)
	FindActiveForPeriod(ctx context.Context, userID, categoryID uuid.UUID, year, month int) (*models.PaymentIntent, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.PaymentIntent, *pagination.Cursor, error)
	ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.PaymentIntent, error)
	AppendNotification(ctx context.Context, notification *models.PaymentNotification) error
	ListNotifications(ctx context.Context, intentID uuid.UUID) ([]models.PaymentNotification, error)
	Stats(ctx context.Context, query StatsQuery) ([]StatsRow, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an intents repository bound to the provided database.
func NewRepository(gdb *gorm.DB) Repository {
	return &repository{db: gdb}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, intent *models.PaymentIntent) error {
	if err := r.db.WithContext(ctx).Create(intent).Error; err != nil {
		if db.IsUniqueViolation(err, ActiveIntentConstraint) {
			return ErrDuplicateIntent
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment intent")
	}
	return nil
}

func (r *repository) Update(ctx context.Context, intent *models.PaymentIntent) error {
	return r.db.WithContext(ctx).Save(intent).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentIntent, error) {
	return r.findOne(ctx, r.db, "id = ?", id)
}

// FindByIDForUpdate locks the row until the surrounding transaction ends so
// concurrent notification deliveries serialize their writes.
func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.PaymentIntent, error) {
	tx := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"})
	return r.findOne(ctx, tx, "id = ?", id)
}

func (r *repository) FindByProviderPaymentID(ctx context.Context, providerPaymentID string) (*models.PaymentIntent, error) {
	return r.findOne(ctx, r.db, "provider_payment_id = ?", providerPaymentID)
}

func (r *repository) FindByExternalReference(ctx context.Context, externalReference string) (*models.PaymentIntent, error) {
	return r.findOne(ctx, r.db, "external_reference = ?", externalReference)
}

func (r *repository) FindByProviderOrderID(ctx context.Context, providerOrderID string) (*models.PaymentIntent, error) {
	return r.findOne(ctx, r.db, "provider_order_id = ?", providerOrderID)
}

func (r *repository) findOne(ctx context.Context, tx *gorm.DB, query string, args ...any) (*models.PaymentIntent, error) {
	var intent models.PaymentIntent
	if err := tx.WithContext(ctx).Where(query, args...).First(&intent).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &intent, nil
}

func (r *repository) FindActiveForPeriod(ctx context.Context, userID, categoryID uuid.UUID, year, month int) (*models.PaymentIntent, error) {
	var intent models.PaymentIntent
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND category_id = ? AND period_year = ? AND period_month = ?", userID, categoryID, year, month).
		Where("status IN ?", statusStrings(enums.ActiveIntentStatuses)).
		First(&intent).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &intent, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.PaymentIntent, *pagination.Cursor, error) {
	normalized := pagination.NormalizeLimit(limit)

	query := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(normalized + 1)
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var rows []models.PaymentIntent
	if err := query.Find(&rows).Error; err != nil {
		return nil, nil, err
	}

	var next *pagination.Cursor
	if len(rows) > normalized {
		rows = rows[:normalized]
		last := rows[len(rows)-1]
		next = &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	return rows, next, nil
}

// ListStalePending returns PENDING intents created before the cutoff, oldest
// first.
func (r *repository) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.PaymentIntent, error) {
	if limit <= 0 {
		limit = 250
	}
	var rows []models.PaymentIntent
	if err := r.db.WithContext(ctx).
		Where("status = ?", enums.IntentStatusPending.String()).
		Where("created_at < ?", cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) AppendNotification(ctx context.Context, notification *models.PaymentNotification) error {
	return r.db.WithContext(ctx).Create(notification).Error
}

func (r *repository) ListNotifications(ctx context.Context, intentID uuid.UUID) ([]models.PaymentNotification, error) {
	var rows []models.PaymentNotification
	if err := r.db.WithContext(ctx).
		Where("intent_id = ?", intentID).
		Order("received_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) Stats(ctx context.Context, query StatsQuery) ([]StatsRow, error) {
	q := r.db.WithContext(ctx).
		Model(&models.PaymentIntent{}).
		Select("status, COUNT(*) AS count, COALESCE(SUM(final_amount), 0) AS total_amount, COALESCE(AVG(final_amount), 0) AS average_amount").
		Group("status")
	if query.From != nil {
		q = q.Where("created_at >= ?", *query.From)
	}
	if query.To != nil {
		q = q.Where("created_at <= ?", *query.To)
	}
	if query.CategoryID != nil {
		q = q.Where("category_id = ?", *query.CategoryID)
	}

	var rows []StatsRow
	if err := q.Order("status").Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func statusStrings(statuses []enums.IntentStatus) []string {
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, s.String())
	}
	return out
}
