// Package metrics provides Prometheus instrumentation for the OJS retry engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DecisionsTotal counts retry decisions by category and outcome.
	DecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ojs",
		Subsystem: "retry",
		Name:      "decisions_total",
		Help:      "Total number of retry decisions.",
	}, []string{"category", "outcome"})

	// DeadLettered counts decisions that routed a job to dead-letter.
	DeadLettered = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ojs",
		Subsystem: "retry",
		Name:      "dead_lettered_total",
		Help:      "Total number of jobs routed to dead-letter.",
	}, []string{"category"})

	// RetryDelay tracks the delays handed out for scheduled retries.
	RetryDelay = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ojs",
		Subsystem: "retry",
		Name:      "delay_ms",
		Help:      "Scheduled retry delay in milliseconds.",
		Buckets:   []float64{100, 500, 1000, 2500, 5000, 10000, 30000, 60000, 120000, 300000},
	}, []string{"category"})

	// DecisionDuration tracks how long the decision path takes.
	DecisionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "ojs",
		Subsystem: "retry",
		Name:      "decision_duration_seconds",
		Help:      "Duration of retry decisions in seconds.",
		Buckets:   []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
	})

	// SideChannelFailures counts failed recorder and publisher calls.
	SideChannelFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ojs",
		Subsystem: "retry",
		Name:      "side_channel_failures_total",
		Help:      "Total number of failed attempt-record or event-publish calls.",
	}, []string{"channel"})

	// RemediationVetoes counts retries vetoed by remediation hooks.
	RemediationVetoes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ojs",
		Subsystem: "retry",
		Name:      "remediation_vetoes_total",
		Help:      "Total number of retries vetoed by remediation hooks.",
	}, []string{"category"})

	// Categories tracks the number of registered error categories.
	Categories = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ojs",
		Subsystem: "retry",
		Name:      "categories",
		Help:      "Number of registered error categories.",
	})

	// CatalogReloads counts catalog reload runs by result.
	CatalogReloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ojs",
		Subsystem: "retry",
		Name:      "catalog_reloads_total",
		Help:      "Total number of catalog reloads.",
	}, []string{"result"})

	// ServerInfo exposes static server metadata as labels.
	ServerInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "ojs",
		Name:      "server_info",
		Help:      "Static server metadata.",
	}, []string{"version", "store"})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status code.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ojs",
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks HTTP request latency.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ojs",
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds.",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"method", "path", "status"})
)

// Init sets static server metadata on the info metric.
func Init(version, store string) {
	ServerInfo.WithLabelValues(version, store).Set(1)
}
