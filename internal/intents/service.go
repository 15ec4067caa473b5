package intents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mrioscamacho/memberfees-backend/internal/catalog"
	"github.com/mrioscamacho/memberfees-backend/internal/pricing"
	"github.com/mrioscamacho/memberfees-backend/pkg/config"
	"github.com/mrioscamacho/memberfees-backend/pkg/db/models"
	"github.com/mrioscamacho/memberfees-backend/pkg/enums"
	pkgerrors "github.com/mrioscamacho/memberfees-backend/pkg/errors"
	"github.com/mrioscamacho/memberfees-backend/pkg/mercadopago"
	"github.com/mrioscamacho/memberfees-backend/pkg/pagination"
)

const annualUnitCount = 12

type userDirectory interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// ServiceParams groups dependencies for the intents service.
type ServiceParams struct {
	Repo        Repository
	CatalogRepo catalog.Repository
	UserRepo    userDirectory
	Provider    mercadopago.PreferenceClient
	ProviderCfg config.MercadoPagoConfig
	Now         func() time.Time
}

// Service builds payment intents: it prices the fee, guards against duplicate
// active intents, persists the PENDING record, and opens the provider
// checkout preference.
type Service struct {
	repo        Repository
	catalogRepo catalog.Repository
	userRepo    userDirectory
	provider    mercadopago.PreferenceClient
	providerCfg config.MercadoPagoConfig
	now         func() time.Time
}

// NewService builds an intents service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "intents repo required")
	}
	if params.CatalogRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "catalog repo required")
	}
	if params.UserRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "user repo required")
	}
	if params.Provider == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "provider client required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:        params.Repo,
		catalogRepo: params.CatalogRepo,
		userRepo:    params.UserRepo,
		provider:    params.Provider,
		providerCfg: params.ProviderCfg,
		now:         now,
	}, nil
}

// CreateMonthly opens a monthly fee intent for the given period.
func (s *Service) CreateMonthly(ctx context.Context, params CreateMonthlyParams) (*CreateResult, error) {
	if params.Month < 1 || params.Month > 12 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "month must be between 1 and 12")
	}
	if err := validateYear(params.Year); err != nil {
		return nil, err
	}

	return s.create(ctx, createSpec{
		userID:       params.UserID,
		categoryID:   params.CategoryID,
		operation:    enums.OperationTypeMonthlyFee,
		year:         params.Year,
		month:        params.Month,
		unitCount:    1,
		discountType: params.DiscountType,
		annual:       false,
	})
}

// CreateAnnual opens an annual fee intent covering twelve monthly units.
func (s *Service) CreateAnnual(ctx context.Context, params CreateAnnualParams) (*CreateResult, error) {
	if err := validateYear(params.Year); err != nil {
		return nil, err
	}

	return s.create(ctx, createSpec{
		userID:       params.UserID,
		categoryID:   params.CategoryID,
		operation:    enums.OperationTypeAnnualFee,
		year:         params.Year,
		month:        0,
		unitCount:    annualUnitCount,
		discountType: params.DiscountType,
		annual:       true,
	})
}

type createSpec struct {
	userID       uuid.UUID
	categoryID   uuid.UUID
	operation    enums.OperationType
	year         int
	month        int
	unitCount    int
	discountType string
	annual       bool
}

func (s *Service) create(ctx context.Context, spec createSpec) (*CreateResult, error) {
	user, err := s.userRepo.FindByID(ctx, spec.userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	if user == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}

	category, err := s.catalogRepo.FindByID(ctx, spec.categoryID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load category")
	}
	if category == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "category not found")
	}

	quote, err := pricing.Compute(pricing.Params{
		BasePrice:             category.Price,
		UnitCount:             spec.unitCount,
		DiscountType:          spec.discountType,
		Table:                 category.DiscountTable,
		AnnualDiscountPercent: category.AnnualDiscountPercent,
		Annual:                spec.annual,
	})
	if err != nil {
		return nil, err
	}

	// Fast-path duplicate check; the partial unique index closes the race on
	// insert, and both paths surface the same conflict.
	existing, err := s.repo.FindActiveForPeriod(ctx, spec.userID, spec.categoryID, spec.year, spec.month)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check active intents")
	}
	if existing != nil {
		return nil, ErrDuplicateIntent
	}

	now := s.now().UTC()
	intent := &models.PaymentIntent{
		UserID:            spec.userID,
		CategoryID:        spec.categoryID,
		OperationType:     spec.operation,
		PeriodYear:        spec.year,
		PeriodMonth:       spec.month,
		OriginalAmount:    quote.Original,
		DiscountAmount:    quote.Discount,
		FinalAmount:       quote.Final,
		ExternalReference: NewExternalReference(spec.userID, spec.operation, spec.year, spec.month, now),
		Status:            enums.IntentStatusPending,
		CreatedBy:         &spec.userID,
	}
	if intent.ID == uuid.Nil {
		intent.ID = uuid.New()
	}

	if err := s.repo.Create(ctx, intent); err != nil {
		return nil, err
	}

	pref, err := s.provider.CreatePreference(ctx, mercadopago.PreferenceCreateParams{
		Title:             preferenceTitle(category.Name, spec.operation, spec.year, spec.month),
		Quantity:          1,
		UnitPrice:         quote.Final,
		ExternalReference: intent.ExternalReference,
		PayerEmail:        user.Email,
		SuccessURL:        s.providerCfg.SuccessURL,
		FailureURL:        s.providerCfg.FailureURL,
		PendingURL:        s.providerCfg.PendingURL,
		NotificationURL:   s.providerCfg.NotificationURL,
		StatementPrefix:   s.providerCfg.StatementPrefix,
	})
	if err != nil {
		// The PENDING record stays behind without a preference ID; the sweep
		// worker picks it up later.
		intent.Attempts++
		_ = s.repo.Update(ctx, intent)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create provider preference")
	}

	intent.PreferenceID = &pref.ID
	intent.CheckoutURL = &pref.InitPoint
	intent.SandboxURL = &pref.SandboxInitPoint
	if err := s.repo.Update(ctx, intent); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store preference on intent")
	}

	return &CreateResult{
		IntentID:           intent.ID,
		PreferenceID:       pref.ID,
		CheckoutURL:        pref.InitPoint,
		SandboxCheckoutURL: pref.SandboxInitPoint,
		Amount:             quote.Final,
		DiscountPercentage: quote.Percentage,
		CategoryName:       category.Name,
		PeriodYear:         spec.year,
		PeriodMonth:        spec.month,
	}, nil
}

// Status resolves an intent by provider payment ID or external reference.
func (s *Service) Status(ctx context.Context, params StatusParams) (*StatusResult, error) {
	paymentID := strings.TrimSpace(params.ProviderPaymentID)
	reference := strings.TrimSpace(params.ExternalReference)
	if (paymentID == "") == (reference == "") {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			"exactly one of paymentId or externalReference is required")
	}

	var intent *models.PaymentIntent
	var err error
	if paymentID != "" {
		intent, err = s.repo.FindByProviderPaymentID(ctx, paymentID)
	} else {
		intent, err = s.repo.FindByExternalReference(ctx, reference)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load intent")
	}
	if intent == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment intent not found")
	}

	result := &StatusResult{
		IntentID:  intent.ID,
		Status:    intent.Status,
		Amount:    intent.FinalAmount,
		CreatedAt: intent.CreatedAt,
		UpdatedAt: intent.UpdatedAt,
	}
	if intent.StatusDetail != nil {
		result.StatusDetail = *intent.StatusDetail
	}
	return result, nil
}

// List pages through a user's intent history, newest first.
func (s *Service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	rows, next, err := s.repo.ListByUser(ctx, params.UserID, params.Limit, cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list intents")
	}

	result := &ListResult{Items: make([]ListItem, 0, len(rows))}
	for _, row := range rows {
		result.Items = append(result.Items, ListItem{
			IntentID:      row.ID,
			CategoryID:    row.CategoryID,
			OperationType: row.OperationType,
			PeriodYear:    row.PeriodYear,
			PeriodMonth:   row.PeriodMonth,
			Status:        row.Status,
			Amount:        row.FinalAmount,
			CreatedAt:     row.CreatedAt,
		})
	}
	if next != nil {
		result.Cursor = pagination.EncodeCursor(*next)
	}
	return result, nil
}

// Stats aggregates intents by status for the admin dashboard.
func (s *Service) Stats(ctx context.Context, params StatsParams) ([]StatsRow, error) {
	if params.From != nil && params.To != nil && params.From.After(*params.To) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "from must not be after to")
	}
	rows, err := s.repo.Stats(ctx, StatsQuery{
		From:       params.From,
		To:         params.To,
		CategoryID: params.CategoryID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "aggregate intents")
	}
	return rows, nil
}

func validateYear(year int) error {
	if year < 2000 || year > 2100 {
		return pkgerrors.New(pkgerrors.CodeValidation, "year out of range")
	}
	return nil
}

func preferenceTitle(categoryName string, op enums.OperationType, year, month int) string {
	switch op {
	case enums.OperationTypeAnnualFee:
		return fmt.Sprintf("%s annual fee %d", categoryName, year)
	default:
		return fmt.Sprintf("%s monthly fee %04d-%02d", categoryName, year, month)
	}
}
