package core

import (
	"context"
	"time"
	"unicode/utf8"
)

// MaxErrorSummaryBytes bounds the error text persisted per attempt.
const MaxErrorSummaryBytes = 500

// AttemptRecord is the persisted state of the current run of a job. There is
// at most one per job id; every failure upserts it.
type AttemptRecord struct {
	JobID            string    `json:"job_id"`
	Queue            string    `json:"queue"`
	Category         string    `json:"category"`
	AttemptsMade     int       `json:"attempts_made"`
	LastErrorSummary string    `json:"last_error_summary"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// AttemptRecorder persists attempt records. Callers treat it as best effort.
type AttemptRecorder interface {
	RecordAttempt(ctx context.Context, record *AttemptRecord) error
}

// AttemptReader is implemented by stores that can serve diagnostics reads.
type AttemptReader interface {
	GetAttempt(ctx context.Context, jobID string) (*AttemptRecord, error)
}

// SummarizeError truncates msg to MaxErrorSummaryBytes without splitting a
// UTF-8 sequence, marking truncation with an ellipsis.
func SummarizeError(msg string) string {
	if len(msg) <= MaxErrorSummaryBytes {
		return msg
	}
	const ellipsis = "…"
	cut := MaxErrorSummaryBytes - len(ellipsis)
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut] + ellipsis
}
