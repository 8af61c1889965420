package core

import (
	"context"
	"time"
)

// Retry lifecycle event types.
const (
	EventRetryScheduled = "retry.scheduled"
	EventRetryExhausted = "retry.exhausted"
	EventRetryAbandoned = "retry.abandoned"
)

// RetryEvent is emitted once per decision.
type RetryEvent struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	JobID     string         `json:"job_id"`
	Queue     string         `json:"queue"`
	Timestamp string         `json:"timestamp"`
	Metadata  map[string]any `json:"metadata"`
}

// EventTypeFor maps a decision outcome to the event type it publishes.
// Remediator rejections and fallbacks that give up are reported as
// abandoned; a fallback that retries is reported as scheduled.
func EventTypeFor(d RetryDecision) string {
	switch {
	case d.ShouldRetry:
		return EventRetryScheduled
	case d.Outcome == OutcomeExhausted:
		return EventRetryExhausted
	default:
		return EventRetryAbandoned
	}
}

// NewRetryEvent builds the event describing decision d for failure f.
func NewRetryEvent(f *JobFailure, d RetryDecision, now time.Time) *RetryEvent {
	return &RetryEvent{
		ID:        NewUUIDv7(),
		Type:      EventTypeFor(d),
		JobID:     f.JobID,
		Queue:     f.Queue,
		Timestamp: FormatTime(now),
		Metadata: map[string]any{
			"category":            d.Category,
			"attempts_made":       f.AttemptsMade,
			"delay_ms":            d.DelayMs,
			"reason":              d.Reason,
			"outcome":             d.Outcome,
			"move_to_dead_letter": d.MoveToDeadLetter,
		},
	}
}

// EventPublisher delivers retry events to an event bus. Callers treat it as
// fire-and-forget.
type EventPublisher interface {
	PublishRetryEvent(ctx context.Context, event *RetryEvent) error
}
