package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mrioscamacho/memberfees-backend/internal/intents"
)

func TestAdminPaymentStatsForwardsFilters(t *testing.T) {
	categoryID := uuid.New()
	svc := &testIntentsService{
		statsFn: func(ctx context.Context, params intents.StatsParams) ([]intents.StatsRow, error) {
			if params.From == nil || !params.From.Equal(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)) {
				t.Fatalf("unexpected from %v", params.From)
			}
			if params.To == nil || !params.To.Equal(time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)) {
				t.Fatalf("unexpected to %v", params.To)
			}
			if params.CategoryID == nil || *params.CategoryID != categoryID {
				t.Fatalf("unexpected category %v", params.CategoryID)
			}
			return []intents.StatsRow{
				{Status: "approved", Count: 2, TotalAmount: decimal.RequireFromString("30000"), AverageAmount: decimal.RequireFromString("15000")},
			}, nil
		},
	}

	target := "/api/admin/v1/intents/stats?from=2026-01-01&to=2026-06-30&category_id=" + categoryID.String()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	resp := httptest.NewRecorder()
	AdminPaymentStats(svc, testControllerLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	var envelope struct {
		Data struct {
			Stats []intents.StatsRow `json:"stats"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(envelope.Data.Stats) != 1 {
		t.Fatalf("expected one bucket got %d", len(envelope.Data.Stats))
	}
	if envelope.Data.Stats[0].Count != 2 {
		t.Fatalf("unexpected count %d", envelope.Data.Stats[0].Count)
	}
}

func TestAdminPaymentStatsAcceptsRFC3339(t *testing.T) {
	svc := &testIntentsService{
		statsFn: func(ctx context.Context, params intents.StatsParams) ([]intents.StatsRow, error) {
			if params.From == nil || params.From.Hour() != 12 {
				t.Fatalf("unexpected from %v", params.From)
			}
			return nil, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/intents/stats?from=2026-01-01T12:00:00Z", nil)
	resp := httptest.NewRecorder()
	AdminPaymentStats(svc, testControllerLogger())(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
}

func TestAdminPaymentStatsRejectsBadTimeFilter(t *testing.T) {
	called := false
	svc := &testIntentsService{
		statsFn: func(ctx context.Context, params intents.StatsParams) ([]intents.StatsRow, error) {
			called = true
			return nil, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/intents/stats?from=yesterday", nil)
	resp := httptest.NewRecorder()
	AdminPaymentStats(svc, testControllerLogger())(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if called {
		t.Fatal("service should not run for invalid filter")
	}
}

func TestAdminPaymentStatsRejectsBadCategory(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/intents/stats?category_id=nope", nil)
	resp := httptest.NewRecorder()
	AdminPaymentStats(&testIntentsService{}, testControllerLogger())(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}
