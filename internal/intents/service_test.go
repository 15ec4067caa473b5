package intents

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mrioscamacho/memberfees-backend/pkg/db/models"
	"github.com/mrioscamacho/memberfees-backend/pkg/enums"
	pkgerrors "github.com/mrioscamacho/memberfees-backend/pkg/errors"
	"github.com/mrioscamacho/memberfees-backend/pkg/mercadopago"
	"github.com/mrioscamacho/memberfees-backend/pkg/pagination"
)

type stubRepo struct {
	createFn          func(ctx context.Context, intent *models.PaymentIntent) error
	updateFn          func(ctx context.Context, intent *models.PaymentIntent) error
	findActiveFn      func(ctx context.Context, userID, categoryID uuid.UUID, year, month int) (*models.PaymentIntent, error)
	findByPaymentIDFn func(ctx context.Context, paymentID string) (*models.PaymentIntent, error)
	findByRefFn       func(ctx context.Context, reference string) (*models.PaymentIntent, error)
	listByUserFn      func(ctx context.Context, userID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.PaymentIntent, *pagination.Cursor, error)
	statsFn           func(ctx context.Context, query StatsQuery) ([]StatsRow, error)
}

func (s *stubRepo) WithTx(tx *gorm.DB) Repository { return s }
func (s *stubRepo) Create(ctx context.Context, intent *models.PaymentIntent) error {
	if s.createFn != nil {
		return s.createFn(ctx, intent)
	}
	return nil
}
func (s *stubRepo) Update(ctx context.Context, intent *models.PaymentIntent) error {
	if s.updateFn != nil {
		return s.updateFn(ctx, intent)
	}
	return nil
}
func (s *stubRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentIntent, error) {
	return nil, nil
}
func (s *stubRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.PaymentIntent, error) {
	return nil, nil
}
func (s *stubRepo) FindByProviderPaymentID(ctx context.Context, paymentID string) (*models.PaymentIntent, error) {
	if s.findByPaymentIDFn != nil {
		return s.findByPaymentIDFn(ctx, paymentID)
	}
	return nil, nil
}
func (s *stubRepo) FindByExternalReference(ctx context.Context, reference string) (*models.PaymentIntent, error) {
	if s.findByRefFn != nil {
		return s.findByRefFn(ctx, reference)
	}
	return nil, nil
}
func (s *stubRepo) FindByProviderOrderID(ctx context.Context, orderID string) (*models.PaymentIntent, error) {
	return nil, nil
}
func (s *stubRepo) FindActiveForPeriod(ctx context.Context, userID, categoryID uuid.UUID, year, month int) (*models.PaymentIntent, error) {
	if s.findActiveFn != nil {
		return s.findActiveFn(ctx, userID, categoryID, year, month)
	}
	return nil, nil
}
func (s *stubRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.PaymentIntent, *pagination.Cursor, error) {
	if s.listByUserFn != nil {
		return s.listByUserFn(ctx, userID, limit, cursor)
	}
	return nil, nil, nil
}
func (s *stubRepo) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.PaymentIntent, error) {
	return nil, nil
}
func (s *stubRepo) AppendNotification(ctx context.Context, notification *models.PaymentNotification) error {
	return nil
}
func (s *stubRepo) ListNotifications(ctx context.Context, intentID uuid.UUID) ([]models.PaymentNotification, error) {
	return nil, nil
}
func (s *stubRepo) Stats(ctx context.Context, query StatsQuery) ([]StatsRow, error) {
	if s.statsFn != nil {
		return s.statsFn(ctx, query)
	}
	return nil, nil
}

type stubCatalog struct {
	findFn func(ctx context.Context, id uuid.UUID) (*models.FeeCategory, error)
}

func (s *stubCatalog) FindByID(ctx context.Context, id uuid.UUID) (*models.FeeCategory, error) {
	if s.findFn != nil {
		return s.findFn(ctx, id)
	}
	return nil, nil
}

type stubUsers struct {
	findFn func(ctx context.Context, id uuid.UUID) (*models.User, error)
}

func (s *stubUsers) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if s.findFn != nil {
		return s.findFn(ctx, id)
	}
	return &models.User{ID: id, Email: "member@example.com"}, nil
}

type stubProvider struct {
	createFn func(ctx context.Context, params mercadopago.PreferenceCreateParams) (*mercadopago.Preference, error)
}

func (s *stubProvider) CreatePreference(ctx context.Context, params mercadopago.PreferenceCreateParams) (*mercadopago.Preference, error) {
	if s.createFn != nil {
		return s.createFn(ctx, params)
	}
	return &mercadopago.Preference{
		ID:               "pref-1",
		InitPoint:        "https://checkout.example/init",
		SandboxInitPoint: "https://checkout.example/sandbox",
	}, nil
}

func siblingCategory() *models.FeeCategory {
	pct := decimal.NewFromInt(20)
	return &models.FeeCategory{
		ID:    uuid.New(),
		Name:  "Youth",
		Price: decimal.NewFromInt(15000),
		DiscountTable: models.DiscountTable{
			"sibling": decimal.NewFromInt(15),
		},
		AnnualDiscountPercent: &pct,
		Active:                true,
	}
}

func newTestService(t *testing.T, repo Repository, cat *stubCatalog, provider *stubProvider) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Repo:        repo,
		CatalogRepo: cat,
		UserRepo:    &stubUsers{},
		Provider:    provider,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestCreateMonthlyPersistsAndOpensPreference(t *testing.T) {
	category := siblingCategory()
	var created *models.PaymentIntent
	repo := &stubRepo{
		createFn: func(ctx context.Context, intent *models.PaymentIntent) error {
			created = intent
			return nil
		},
	}
	var prefParams mercadopago.PreferenceCreateParams
	provider := &stubProvider{
		createFn: func(ctx context.Context, params mercadopago.PreferenceCreateParams) (*mercadopago.Preference, error) {
			prefParams = params
			return &mercadopago.Preference{
				ID:               "pref-77",
				InitPoint:        "https://checkout.example/init",
				SandboxInitPoint: "https://checkout.example/sandbox",
			}, nil
		},
	}
	svc := newTestService(t, repo, &stubCatalog{
		findFn: func(ctx context.Context, id uuid.UUID) (*models.FeeCategory, error) {
			return category, nil
		},
	}, provider)

	result, err := svc.CreateMonthly(context.Background(), CreateMonthlyParams{
		UserID:       uuid.New(),
		CategoryID:   category.ID,
		Month:        3,
		Year:         2026,
		DiscountType: "sibling",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created == nil {
		t.Fatal("intent was not persisted")
	}
	if created.Status != enums.IntentStatusPending {
		t.Fatalf("expected pending intent, got %s", created.Status)
	}
	if created.ExternalReference == "" {
		t.Fatal("external reference not generated")
	}
	if !created.FinalAmount.Equal(decimal.NewFromInt(12750)) {
		t.Fatalf("expected final amount 12750, got %s", created.FinalAmount)
	}
	if !prefParams.UnitPrice.Equal(created.FinalAmount) {
		t.Fatalf("preference priced at %s, intent at %s", prefParams.UnitPrice, created.FinalAmount)
	}
	if prefParams.ExternalReference != created.ExternalReference {
		t.Fatal("preference external reference does not match intent")
	}
	if result.PreferenceID != "pref-77" {
		t.Fatalf("expected preference id pref-77, got %s", result.PreferenceID)
	}
	if created.PreferenceID == nil || *created.PreferenceID != "pref-77" {
		t.Fatal("preference id not stored on intent")
	}
}

func TestCreateMonthlyRejectsInvalidMonth(t *testing.T) {
	svc := newTestService(t, &stubRepo{}, &stubCatalog{}, &stubProvider{})
	_, err := svc.CreateMonthly(context.Background(), CreateMonthlyParams{
		UserID:     uuid.New(),
		CategoryID: uuid.New(),
		Month:      13,
		Year:       2026,
	})
	if err == nil {
		t.Fatal("expected error for month 13")
	} else if pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateMonthlyUnknownCategory(t *testing.T) {
	svc := newTestService(t, &stubRepo{}, &stubCatalog{
		findFn: func(ctx context.Context, id uuid.UUID) (*models.FeeCategory, error) {
			return nil, nil
		},
	}, &stubProvider{})

	_, err := svc.CreateMonthly(context.Background(), CreateMonthlyParams{
		UserID:     uuid.New(),
		CategoryID: uuid.New(),
		Month:      1,
		Year:       2026,
	})
	if err == nil {
		t.Fatal("expected error for unknown category")
	} else if pkgerrors.As(err).Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCreateMonthlyDuplicateActiveIntent(t *testing.T) {
	category := siblingCategory()
	repo := &stubRepo{
		findActiveFn: func(ctx context.Context, userID, categoryID uuid.UUID, year, month int) (*models.PaymentIntent, error) {
			return &models.PaymentIntent{ID: uuid.New(), Status: enums.IntentStatusPending}, nil
		},
	}
	svc := newTestService(t, repo, &stubCatalog{
		findFn: func(ctx context.Context, id uuid.UUID) (*models.FeeCategory, error) {
			return category, nil
		},
	}, &stubProvider{})

	_, err := svc.CreateMonthly(context.Background(), CreateMonthlyParams{
		UserID:     uuid.New(),
		CategoryID: category.ID,
		Month:      3,
		Year:       2026,
	})
	if !errors.Is(err, ErrDuplicateIntent) {
		t.Fatalf("expected duplicate intent error, got %v", err)
	}
}

func TestCreateMonthlyProviderFailureLeavesPending(t *testing.T) {
	category := siblingCategory()
	var created *models.PaymentIntent
	var updated *models.PaymentIntent
	repo := &stubRepo{
		createFn: func(ctx context.Context, intent *models.PaymentIntent) error {
			created = intent
			return nil
		},
		updateFn: func(ctx context.Context, intent *models.PaymentIntent) error {
			updated = intent
			return nil
		},
	}
	provider := &stubProvider{
		createFn: func(ctx context.Context, params mercadopago.PreferenceCreateParams) (*mercadopago.Preference, error) {
			return nil, pkgerrors.New(pkgerrors.CodeDependency, "provider unavailable")
		},
	}
	svc := newTestService(t, repo, &stubCatalog{
		findFn: func(ctx context.Context, id uuid.UUID) (*models.FeeCategory, error) {
			return category, nil
		},
	}, provider)

	_, err := svc.CreateMonthly(context.Background(), CreateMonthlyParams{
		UserID:     uuid.New(),
		CategoryID: category.ID,
		Month:      3,
		Year:       2026,
	})
	if err == nil {
		t.Fatal("expected provider error")
	} else if pkgerrors.As(err).Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if created == nil {
		t.Fatal("intent should be persisted before the provider call")
	}
	if updated == nil || updated.Status != enums.IntentStatusPending {
		t.Fatal("intent should remain pending after provider failure")
	}
	if updated.PreferenceID != nil {
		t.Fatal("no preference id should be stored on failure")
	}
	if updated.Attempts != 1 {
		t.Fatalf("expected one recorded attempt, got %d", updated.Attempts)
	}
}

func TestCreateAnnualUsesTwelveUnitsAndAnnualDiscount(t *testing.T) {
	category := siblingCategory()
	var created *models.PaymentIntent
	repo := &stubRepo{
		createFn: func(ctx context.Context, intent *models.PaymentIntent) error {
			created = intent
			return nil
		},
	}
	svc := newTestService(t, repo, &stubCatalog{
		findFn: func(ctx context.Context, id uuid.UUID) (*models.FeeCategory, error) {
			return category, nil
		},
	}, &stubProvider{})

	result, err := svc.CreateAnnual(context.Background(), CreateAnnualParams{
		UserID:     uuid.New(),
		CategoryID: category.ID,
		Year:       2026,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 15000 * 12 = 180000, minus the category's 20% annual discount.
	if !created.OriginalAmount.Equal(decimal.NewFromInt(180000)) {
		t.Fatalf("expected original 180000, got %s", created.OriginalAmount)
	}
	if !created.FinalAmount.Equal(decimal.NewFromInt(144000)) {
		t.Fatalf("expected final 144000, got %s", created.FinalAmount)
	}
	if created.PeriodMonth != 0 {
		t.Fatalf("annual intent must use period month 0, got %d", created.PeriodMonth)
	}
	if created.OperationType != enums.OperationTypeAnnualFee {
		t.Fatalf("expected annual_fee operation, got %s", created.OperationType)
	}
	if !result.DiscountPercentage.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("expected 20%% discount, got %s", result.DiscountPercentage)
	}
}

func TestStatusRequiresExactlyOneSelector(t *testing.T) {
	svc := newTestService(t, &stubRepo{}, &stubCatalog{}, &stubProvider{})

	if _, err := svc.Status(context.Background(), StatusParams{}); err == nil {
		t.Fatal("expected error with no selector")
	}
	_, err := svc.Status(context.Background(), StatusParams{
		ProviderPaymentID: "123",
		ExternalReference: "ref",
	})
	if err == nil {
		t.Fatal("expected error with both selectors")
	} else if pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestStatusByPaymentID(t *testing.T) {
	intentID := uuid.New()
	detail := "accredited"
	repo := &stubRepo{
		findByPaymentIDFn: func(ctx context.Context, paymentID string) (*models.PaymentIntent, error) {
			if paymentID != "9001" {
				t.Fatalf("unexpected payment id %s", paymentID)
			}
			return &models.PaymentIntent{
				ID:           intentID,
				Status:       enums.IntentStatusApproved,
				StatusDetail: &detail,
				FinalAmount:  decimal.NewFromInt(12750),
			}, nil
		},
	}
	svc := newTestService(t, repo, &stubCatalog{}, &stubProvider{})

	result, err := svc.Status(context.Background(), StatusParams{ProviderPaymentID: "9001"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IntentID != intentID {
		t.Fatal("wrong intent returned")
	}
	if result.Status != enums.IntentStatusApproved || result.StatusDetail != "accredited" {
		t.Fatalf("unexpected status projection: %+v", result)
	}
}

func TestStatusNotFound(t *testing.T) {
	svc := newTestService(t, &stubRepo{}, &stubCatalog{}, &stubProvider{})
	_, err := svc.Status(context.Background(), StatusParams{ExternalReference: "missing"})
	if err == nil {
		t.Fatal("expected not found")
	} else if pkgerrors.As(err).Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListForwardsCursorAndLimit(t *testing.T) {
	now := time.Now().UTC()
	next := pagination.Cursor{CreatedAt: now.Add(-time.Hour), ID: uuid.New()}
	var captured struct {
		limit  int
		cursor *pagination.Cursor
	}
	repo := &stubRepo{
		listByUserFn: func(ctx context.Context, userID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.PaymentIntent, *pagination.Cursor, error) {
			captured.limit = limit
			captured.cursor = cursor
			return []models.PaymentIntent{{ID: uuid.New(), Status: enums.IntentStatusApproved, CreatedAt: now}}, &next, nil
		},
	}
	svc := newTestService(t, repo, &stubCatalog{}, &stubProvider{})

	result, err := svc.List(context.Background(), ListParams{
		UserID: uuid.New(),
		Limit:  5,
		Cursor: pagination.EncodeCursor(next),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if captured.limit != 5 {
		t.Fatalf("expected limit 5, got %d", captured.limit)
	}
	if captured.cursor == nil || captured.cursor.ID != next.ID {
		t.Fatal("cursor not forwarded")
	}
	if len(result.Items) != 1 {
		t.Fatalf("expected one item, got %d", len(result.Items))
	}
	if result.Cursor == "" {
		t.Fatal("next cursor not encoded")
	}
}

func TestListRejectsBadCursor(t *testing.T) {
	svc := newTestService(t, &stubRepo{}, &stubCatalog{}, &stubProvider{})
	_, err := svc.List(context.Background(), ListParams{UserID: uuid.New(), Cursor: "!!"})
	if err == nil {
		t.Fatal("expected cursor error")
	} else if pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestStatsValidatesRange(t *testing.T) {
	svc := newTestService(t, &stubRepo{}, &stubCatalog{}, &stubProvider{})
	from := time.Now()
	to := from.Add(-time.Hour)
	_, err := svc.Stats(context.Background(), StatsParams{From: &from, To: &to})
	if err == nil {
		t.Fatal("expected range error")
	} else if pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}
