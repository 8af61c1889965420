package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/openjobspec/ojs-retry/internal/api"
	"github.com/openjobspec/ojs-retry/internal/core"
	"github.com/openjobspec/ojs-retry/internal/engine"
	"github.com/openjobspec/ojs-retry/internal/metrics"
	"github.com/openjobspec/ojs-retry/internal/remediation"
)

// Deps are the components the router serves.
type Deps struct {
	Engine   *engine.Engine
	Hooks    *remediation.Registry
	Attempts core.AttemptReader  // nil disables attempt lookups
	Events   api.EventSubscriber // nil disables the event stream
	Checks   map[string]api.Pinger
	Version  string
}

// NewRouter creates and configures the HTTP router with all OJS retry routes.
func NewRouter(deps Deps, logger *slog.Logger, cfg Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Recoverer)
	r.Use(metricsMiddleware)
	r.Use(api.OJSHeaders)
	r.Use(api.RequestLogger(logger))
	r.Use(api.ValidateContentType)

	// Optional API key authentication
	if cfg.APIKey != "" {
		r.Use(api.KeyAuth(cfg.APIKey, "/metrics", "/ojs/v1/health"))
	}

	// Prometheus metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	version := deps.Version
	if version == "" {
		version = core.OJSVersion
	}

	// Create handlers
	systemHandler := api.NewSystemHandler(version, cfg.Store, deps.Checks)
	retryHandler := api.NewRetryHandler(deps.Engine)
	categoryHandler := api.NewCategoryHandler(deps.Engine, deps.Hooks)
	policyHandler := api.NewPolicyHandler(deps.Engine)
	attemptHandler := api.NewAttemptHandler(deps.Attempts)

	// System endpoints
	r.Get("/ojs/manifest", systemHandler.Manifest)
	r.Get("/ojs/v1/health", systemHandler.Health)

	// Decision endpoints
	r.Post("/ojs/v1/retry/decide", retryHandler.Decide)
	r.Post("/ojs/v1/retry/classify", retryHandler.Classify)

	// Admin endpoints
	r.Get("/ojs/v1/retry/categories", categoryHandler.List)
	r.Post("/ojs/v1/retry/categories", categoryHandler.Create)
	r.Get("/ojs/v1/retry/policy", policyHandler.Get)
	r.Patch("/ojs/v1/retry/policy", policyHandler.Update)
	r.Get("/ojs/v1/retry/attempts/{id}", attemptHandler.Get)

	// Real-time events
	if deps.Events != nil {
		r.Get("/ojs/v1/retry/events", api.NewEventsHandler(deps.Events, logger).Stream)
	}

	return r
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		duration := time.Since(start).Seconds()
		path := metricRoutePattern(r)
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, fmt.Sprintf("%d", ww.Status())).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, path, fmt.Sprintf("%d", ww.Status())).Observe(duration)
	})
}

func metricRoutePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}
