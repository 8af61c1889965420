// Package tracing provides OpenTelemetry helpers for the retry engine and a
// Setup function for initializing OTLP gRPC export.
package tracing

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/openjobspec/ojs-retry"

// Tracer returns the package tracer from the global provider. Without Setup
// it is a no-op tracer.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSpan starts an internal span with the given attributes.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// RecordError marks the span as failed.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// SetOK marks the span as successful.
func SetOK(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// Attribute helpers.
func JobID(id string) attribute.KeyValue    { return attribute.String("ojs.job.id", id) }
func JobQueue(q string) attribute.KeyValue  { return attribute.String("ojs.job.queue", q) }
func JobAttempt(n int) attribute.KeyValue   { return attribute.Int("ojs.job.attempt", n) }
func Category(c string) attribute.KeyValue  { return attribute.String("ojs.retry.category", c) }
func Outcome(o string) attribute.KeyValue   { return attribute.String("ojs.retry.outcome", o) }
func DelayMs(ms int64) attribute.KeyValue   { return attribute.Int64("ojs.retry.delay_ms", ms) }
func ShouldRetry(b bool) attribute.KeyValue { return attribute.Bool("ojs.retry.should_retry", b) }
func DeadLetter(b bool) attribute.KeyValue  { return attribute.Bool("ojs.retry.dead_letter", b) }

// Setup initializes OpenTelemetry tracing.
// It reads OTEL_EXPORTER_OTLP_ENDPOINT (standard) and OJS_OTEL_ENDPOINT (override).
// Returns a shutdown function. No-op if neither env var is set and
// OJS_OTEL_ENABLED is not "true".
func Setup(serviceName string) (func(), error) {
	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if ep := os.Getenv("OJS_OTEL_ENDPOINT"); ep != "" {
		endpoint = ep
	}

	enabled := os.Getenv("OJS_OTEL_ENABLED") == "true" || endpoint != ""
	if !enabled {
		return func() {}, nil
	}

	ctx := context.Background()
	opts := []otlptracegrpc.Option{otlptracegrpc.WithInsecure()}
	if endpoint != "" {
		opts = append(opts, otlptracegrpc.WithEndpoint(endpoint))
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp exporter: %w", err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", serviceName),
	))
	if err != nil {
		return nil, fmt.Errorf("build otel resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))

	return func() { _ = tp.Shutdown(context.Background()) }, nil
}
