package controllers

import (
	"net/http"

	"github.com/distrihogar/storefront-backend/api/responses"
	"github.com/distrihogar/storefront-backend/pkg/config"
	"github.com/distrihogar/storefront-backend/pkg/db"
	pkgerrors "github.com/distrihogar/storefront-backend/pkg/errors"
	"github.com/distrihogar/storefront-backend/pkg/logger"
	"github.com/distrihogar/storefront-backend/pkg/redis"
)

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Storefront-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports ready only when the database answers. The cache is
// reported but never gates readiness: the API serves from the database when
// redis is down.
func HealthReady(cfg *config.Config, database db.Pinger, cache redis.Pinger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Storefront-Env", cfg.App.Env)

		if database == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, "database unavailable"))
			return
		}
		if err := database.Ping(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "database unavailable"))
			return
		}

		cacheStatus := "ok"
		if cache == nil {
			cacheStatus = "disabled"
		} else if err := cache.Ping(r.Context()); err != nil {
			cacheStatus = "degraded"
			if logg != nil {
				ctx := logg.WithField(r.Context(), "error", err.Error())
				logg.Warn(ctx, "health.cache_unreachable")
			}
		}

		responses.WriteSuccess(w, map[string]string{
			"status": "ready",
			"cache":  cacheStatus,
		})
	}
}
