package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mrioscamacho/memberfees-backend/api/responses"
	"github.com/mrioscamacho/memberfees-backend/internal/intents"
	pkgerrors "github.com/mrioscamacho/memberfees-backend/pkg/errors"
	"github.com/mrioscamacho/memberfees-backend/pkg/logger"
)

// AdminPaymentStats aggregates intents by status for the back office.
func AdminPaymentStats(svc IntentsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "intents service unavailable"))
			return
		}

		params := intents.StatsParams{}

		if raw := strings.TrimSpace(r.URL.Query().Get("from")); raw != "" {
			from, err := parseStatsTime(raw, "from")
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			params.From = from
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("to")); raw != "" {
			to, err := parseStatsTime(raw, "to")
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			params.To = to
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("category_id")); raw != "" {
			categoryID, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category_id"))
				return
			}
			params.CategoryID = &categoryID
		}

		rows, err := svc.Stats(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"stats": rows})
	}
}

func parseStatsTime(raw, field string) (*time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return &parsed, nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid time filter").
		WithDetails(map[string]any{"field": field})
}
