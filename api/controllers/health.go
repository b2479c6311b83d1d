package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/storefront-gateway/api/responses"
	"github.com/angelmondragon/storefront-gateway/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-gateway/pkg/errors"
	"github.com/angelmondragon/storefront-gateway/pkg/logger"
	pkgredis "github.com/angelmondragon/storefront-gateway/pkg/redis"
)

const envHeader = "X-Storefront-Env"

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports ready once the state store answers a ping.
func HealthReady(cfg *config.Config, logg *logger.Logger, store pkgredis.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if store != nil {
			if err := store.Ping(ctx); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "state store unreachable"))
				return
			}
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "store": cfg.Store.Backend})
	}
}
