// Package httptransport assembles the HTTP surface: the shared middleware
// chain, operational endpoints, and the versioned API routes. Handlers stay in
// their domain packages so transport concerns remain isolated.
package httptransport

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	platformmetrics "veridoc/internal/platform/metrics"
	platformredis "veridoc/internal/platform/redis"
	"veridoc/pkg/platform/middleware/metadata"
	"veridoc/pkg/platform/middleware/request"
	"veridoc/pkg/platform/middleware/requesttime"
)

// APIHandler registers the versioned API routes on a sub-router.
type APIHandler interface {
	Register(r chi.Router)
}

// Dependencies carries the shared resources the router needs beyond the API
// handler itself. Nil members are skipped in health checks.
type Dependencies struct {
	Logger  *slog.Logger
	Metrics *platformmetrics.Metrics
	DB      *sql.DB
	Redis   *platformredis.Client
}

// NewRouter wires all public endpoints behind the shared middleware chain.
func NewRouter(api APIHandler, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(request.Middleware)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Instrument)
	}

	r.Get("/healthz", handleHealth(deps))
	r.Handle("/metrics", promhttp.Handler())
	r.Route("/v1", api.Register)
	return r
}

// handleHealth pings every configured backend. Unconfigured backends are
// healthy by definition.
func handleHealth(deps Dependencies) http.HandlerFunc {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if deps.DB != nil {
			if err := deps.DB.PingContext(ctx); err != nil {
				logger.ErrorContext(ctx, "health check failed", "component", "postgres", "error", err)
				writeHealth(w, http.StatusServiceUnavailable, `{"status":"unhealthy","component":"postgres"}`)
				return
			}
		}
		if deps.Redis != nil {
			if err := deps.Redis.Health(ctx); err != nil {
				logger.ErrorContext(ctx, "health check failed", "component", "redis", "error", err)
				writeHealth(w, http.StatusServiceUnavailable, `{"status":"unhealthy","component":"redis"}`)
				return
			}
		}
		writeHealth(w, http.StatusOK, `{"status":"ok"}`)
	}
}

func writeHealth(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
