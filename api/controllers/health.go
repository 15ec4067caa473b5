package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/mrioscamacho/memberfees-backend/api/responses"
	"github.com/mrioscamacho/memberfees-backend/pkg/config"
	"github.com/mrioscamacho/memberfees-backend/pkg/db"
	pkgerrors "github.com/mrioscamacho/memberfees-backend/pkg/errors"
	"github.com/mrioscamacho/memberfees-backend/pkg/logger"
	"github.com/mrioscamacho/memberfees-backend/pkg/redis"
)

const readinessPingTimeout = 2 * time.Second

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-MemberFees-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports whether downstream dependencies answer. A nil pinger is
// treated as not wired and skipped.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, redisP redis.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-MemberFees-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessPingTimeout)
		defer cancel()

		if dbP != nil {
			if err := dbP.Ping(ctx); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "database unreachable"))
				return
			}
		}
		if redisP != nil {
			if err := redisP.Ping(ctx); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis unreachable"))
				return
			}
		}

		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
