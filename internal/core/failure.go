package core

import "time"

const (
	OJSVersion   = "1.0.0-rc.1"
	OJSMediaType = "application/openjobspec+json"
	TimeFormat   = "2006-01-02T15:04:05.000Z"
)

// FormatTime formats a time as ISO 8601 UTC with millisecond precision.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeFormat)
}

// FailureError is the raw error reported by a worker.
type FailureError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// JobFailure is the input to one retry decision. Payload may be mutated by
// remediators; everything else is read-only.
type JobFailure struct {
	JobID        string         `json:"job_id"`
	Queue        string         `json:"queue"`
	AttemptsMade int            `json:"attempts_made"`
	Error        FailureError   `json:"error"`
	Payload      map[string]any `json:"payload,omitempty"`
}

// Decision outcomes, used for event types and metric labels.
const (
	OutcomeRetry     = "retry"
	OutcomeExhausted = "exhausted"
	OutcomeAbandoned = "abandoned"
	OutcomeRejected  = "rejected"
	OutcomeFallback  = "fallback"
)

// RetryDecision is what the queue runtime applies after a failure.
// DelayMs is meaningful only when ShouldRetry is set, MoveToDeadLetter only
// when it is not.
type RetryDecision struct {
	ShouldRetry      bool   `json:"should_retry"`
	DelayMs          int64  `json:"delay_ms"`
	Category         string `json:"category"`
	Reason           string `json:"reason"`
	MoveToDeadLetter bool   `json:"move_to_dead_letter"`
	Outcome          string `json:"outcome"`
}

// Remediator inspects a failure before a retry is committed. It may mutate
// failure.Payload and returns false to veto the retry. Implementations can be
// invoked more than once for the same job and must tolerate that.
type Remediator interface {
	Attempt(err FailureError, failure *JobFailure) (bool, error)
}

// RemediatorFunc adapts a function to Remediator.
type RemediatorFunc func(err FailureError, failure *JobFailure) (bool, error)

// Attempt calls f.
func (f RemediatorFunc) Attempt(err FailureError, failure *JobFailure) (bool, error) {
	return f(err, failure)
}
