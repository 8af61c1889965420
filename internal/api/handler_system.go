package api

import (
	"context"
	"net/http"
	"time"

	"github.com/openjobspec/ojs-retry/internal/core"
)

// Pinger is a dependency with a health check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthResponse is the body of GET /ojs/v1/health.
type HealthResponse struct {
	Status        string                     `json:"status"`
	Version       string                     `json:"version"`
	UptimeSeconds int64                      `json:"uptime_seconds"`
	Dependencies  map[string]DependencyState `json:"dependencies,omitempty"`
}

// DependencyState reports one dependency check.
type DependencyState struct {
	Status    string `json:"status"`
	LatencyMs int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// SystemHandler handles system-related HTTP endpoints.
type SystemHandler struct {
	version   string
	store     string
	checks    map[string]Pinger
	startedAt time.Time
}

// NewSystemHandler creates a new SystemHandler. checks are pinged on every
// health request, keyed by the name reported in the response.
func NewSystemHandler(version, store string, checks map[string]Pinger) *SystemHandler {
	return &SystemHandler{
		version:   version,
		store:     store,
		checks:    checks,
		startedAt: time.Now(),
	}
}

// Manifest handles GET /ojs/manifest
func (h *SystemHandler) Manifest(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{
		"specversion": core.OJSVersion,
		"implementation": map[string]any{
			"name":    "ojs-retry",
			"version": h.version,
			"store":   h.store,
		},
		"capabilities": []string{
			"retry-decide", "classify", "categories", "default-policy",
			"attempts", "events", "catalog-reload",
		},
	})
}

// Health handles GET /ojs/v1/health
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:        "ok",
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
	}
	if len(h.checks) > 0 {
		resp.Dependencies = make(map[string]DependencyState, len(h.checks))
	}
	for name, p := range h.checks {
		start := time.Now()
		err := p.Ping(ctx)
		dep := DependencyState{Status: "ok", LatencyMs: time.Since(start).Milliseconds()}
		if err != nil {
			dep.Status = "error"
			dep.Error = err.Error()
			resp.Status = "degraded"
		}
		resp.Dependencies[name] = dep
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	WriteJSON(w, status, resp)
}
