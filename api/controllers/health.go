package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/warrantyvault/backend/api/responses"
	"github.com/warrantyvault/backend/pkg/config"
	pkgerrors "github.com/warrantyvault/backend/pkg/errors"
	"github.com/warrantyvault/backend/pkg/logger"
)

const readyProbeTimeout = 5 * time.Second

type pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-WarrantyVault-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady probes every dependency the request path needs. A single
// failing dependency reports not-ready.
func HealthReady(cfg *config.Config, logg *logger.Logger, db, redis, gcs pinger) http.HandlerFunc {
	probes := []struct {
		name   string
		target pinger
	}{
		{"db", db},
		{"redis", redis},
		{"gcs", gcs},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-WarrantyVault-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readyProbeTimeout)
		defer cancel()

		status := map[string]string{}
		failed := false
		for _, probe := range probes {
			if probe.target == nil {
				status[probe.name] = "not configured"
				failed = true
				continue
			}
			if err := probe.target.Ping(ctx); err != nil {
				status[probe.name] = err.Error()
				failed = true
				if logg != nil {
					probeCtx := logg.WithFields(ctx, map[string]any{"dependency": probe.name})
					logg.Error(probeCtx, "readiness probe failed", err)
				}
				continue
			}
			status[probe.name] = "ok"
		}

		if failed {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeDependency, "dependency unavailable").WithDetails(status))
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "dependencies": status})
	}
}
