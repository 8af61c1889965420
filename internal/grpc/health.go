package grpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the service name reported to health checkers.
const ServiceName = "ojs.retry.v1.RetryService"

// Pinger is a dependency with a health check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthService serves grpc.health.v1 backed by dependency probes.
type HealthService struct {
	server *health.Server
	checks map[string]Pinger
	logger *slog.Logger
}

// NewHealthService creates a health service that reports SERVING until the
// first failing probe.
func NewHealthService(checks map[string]Pinger, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	srv := health.NewServer()
	srv.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	return &HealthService{server: srv, checks: checks, logger: logger}
}

// Register registers the health service with s.
func (h *HealthService) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.server)
}

// Check answers a health request directly, without a transport.
func (h *HealthService) Check(ctx context.Context, service string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	resp, err := h.server.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}
	return resp.GetStatus(), nil
}

// Probe pings every dependency and updates the serving status. It returns
// the joined ping errors.
func (h *HealthService) Probe(ctx context.Context) error {
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []error
	for _, name := range names {
		if err := h.checks[name].Ping(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	status := healthpb.HealthCheckResponse_SERVING
	if len(errs) > 0 {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.server.SetServingStatus("", status)
	h.server.SetServingStatus(ServiceName, status)

	err := errors.Join(errs...)
	if err != nil {
		h.logger.Warn("dependency probe failed", "error", err)
	}
	return err
}

// Shutdown marks every service NOT_SERVING ahead of a graceful stop.
func (h *HealthService) Shutdown() {
	h.server.Shutdown()
}
