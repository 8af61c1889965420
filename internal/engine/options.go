package engine

import (
	"log/slog"
	"time"

	"github.com/openjobspec/ojs-retry/internal/core"
)

// DefaultSideChannelTimeout bounds each recorder and publisher call.
const DefaultSideChannelTimeout = 250 * time.Millisecond

// Option configures an Engine.
type Option func(*Engine)

// WithRecorder sets the attempt recorder.
func WithRecorder(r core.AttemptRecorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithPublisher sets the event publisher.
func WithPublisher(p core.EventPublisher) Option {
	return func(e *Engine) { e.publisher = p }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithRandom sets the jitter source. It must return values in [0, 1) and be
// safe for concurrent use.
func WithRandom(rnd func() float64) Option {
	return func(e *Engine) {
		if rnd != nil {
			e.rnd = rnd
		}
	}
}

// WithSideChannelTimeout bounds each recorder and publisher call.
func WithSideChannelTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.sideChannelTimeout = d
		}
	}
}

// WithDefaultPolicy replaces the global default policy. An invalid policy is
// ignored and logged by New.
func WithDefaultPolicy(p core.RetryPolicy) Option {
	return func(e *Engine) {
		e.initialPolicy = &p
	}
}

// WithClock sets the time source used for record and event timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}
