package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/mrioscamacho/memberfees-backend/api/middleware"
	"github.com/mrioscamacho/memberfees-backend/api/responses"
	"github.com/mrioscamacho/memberfees-backend/api/validators"
	"github.com/mrioscamacho/memberfees-backend/internal/intents"
	pkgerrors "github.com/mrioscamacho/memberfees-backend/pkg/errors"
	"github.com/mrioscamacho/memberfees-backend/pkg/logger"
	"github.com/mrioscamacho/memberfees-backend/pkg/pagination"
)

// IntentsService is the slice of the intents service the HTTP layer drives.
type IntentsService interface {
	CreateMonthly(ctx context.Context, params intents.CreateMonthlyParams) (*intents.CreateResult, error)
	CreateAnnual(ctx context.Context, params intents.CreateAnnualParams) (*intents.CreateResult, error)
	Status(ctx context.Context, params intents.StatusParams) (*intents.StatusResult, error)
	List(ctx context.Context, params intents.ListParams) (*intents.ListResult, error)
	Stats(ctx context.Context, params intents.StatsParams) ([]intents.StatsRow, error)
}

type monthlyIntentRequest struct {
	CategoryID   string `json:"category_id" validate:"required"`
	Month        int    `json:"month" validate:"required,min=1,max=12"`
	Year         int    `json:"year" validate:"required"`
	DiscountType string `json:"discount_type"`
}

type annualIntentRequest struct {
	CategoryID   string `json:"category_id" validate:"required"`
	Year         int    `json:"year" validate:"required"`
	DiscountType string `json:"discount_type"`
}

type intentCreateResponse struct {
	IntentID           string `json:"intent_id"`
	PreferenceID       string `json:"preference_id"`
	CheckoutURL        string `json:"checkout_url"`
	SandboxCheckoutURL string `json:"sandbox_checkout_url,omitempty"`
	Amount             string `json:"amount"`
	DiscountPercentage string `json:"discount_percentage"`
	CategoryName       string `json:"category_name"`
	PeriodYear         int    `json:"period_year"`
	PeriodMonth        int    `json:"period_month,omitempty"`
}

func intentCreateResponseFrom(result *intents.CreateResult) intentCreateResponse {
	return intentCreateResponse{
		IntentID:           result.IntentID.String(),
		PreferenceID:       result.PreferenceID,
		CheckoutURL:        result.CheckoutURL,
		SandboxCheckoutURL: result.SandboxCheckoutURL,
		Amount:             result.Amount.StringFixed(2),
		DiscountPercentage: result.DiscountPercentage.StringFixed(2),
		CategoryName:       result.CategoryName,
		PeriodYear:         result.PeriodYear,
		PeriodMonth:        result.PeriodMonth,
	}
}

// IntentCreateMonthly opens a checkout for one monthly fee period.
func IntentCreateMonthly(svc IntentsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "intents service unavailable"))
			return
		}

		userID, err := requestUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload monthlyIntentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		categoryID, err := uuid.Parse(strings.TrimSpace(payload.CategoryID))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category_id"))
			return
		}

		result, err := svc.CreateMonthly(r.Context(), intents.CreateMonthlyParams{
			UserID:       userID,
			CategoryID:   categoryID,
			Month:        payload.Month,
			Year:         payload.Year,
			DiscountType: strings.TrimSpace(payload.DiscountType),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, intentCreateResponseFrom(result))
	}
}

// IntentCreateAnnual opens a checkout covering a full year of fees.
func IntentCreateAnnual(svc IntentsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "intents service unavailable"))
			return
		}

		userID, err := requestUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload annualIntentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		categoryID, err := uuid.Parse(strings.TrimSpace(payload.CategoryID))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category_id"))
			return
		}

		result, err := svc.CreateAnnual(r.Context(), intents.CreateAnnualParams{
			UserID:       userID,
			CategoryID:   categoryID,
			Year:         payload.Year,
			DiscountType: strings.TrimSpace(payload.DiscountType),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, intentCreateResponseFrom(result))
	}
}

// IntentStatus resolves one intent by provider payment id or external reference.
func IntentStatus(svc IntentsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "intents service unavailable"))
			return
		}

		result, err := svc.Status(r.Context(), intents.StatusParams{
			ProviderPaymentID: r.URL.Query().Get("payment_id"),
			ExternalReference: r.URL.Query().Get("external_reference"),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// IntentList pages through the authenticated user's intents.
func IntentList(svc IntentsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "intents service unavailable"))
			return
		}

		userID, err := requestUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.List(r.Context(), intents.ListParams{
			UserID: userID,
			Limit:  limit,
			Cursor: r.URL.Query().Get("cursor"),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func requestUserID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id")
	}
	return userID, nil
}
