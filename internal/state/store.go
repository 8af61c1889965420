// Package state holds the attempt record stores used by the retry engine.
package state

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/openjobspec/ojs-retry/internal/core"
)

// ErrNotFound is returned by GetAttempt when a job has no attempt record.
var ErrNotFound = errors.New("attempt record not found")

// Store is an attempt record store. RecordAttempt is an upsert keyed by job
// id; a write carrying fewer attempts than the stored record is ignored so
// that late side-channel writes cannot move a counter backwards.
type Store interface {
	core.AttemptRecorder
	core.AttemptReader

	// Health check
	Ping(ctx context.Context) error

	// Close the store
	Close() error
}

// Backend names accepted by OJS_STORE.
const (
	BackendMemory   = "memory"
	BackendDynamoDB = "dynamodb"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// AttemptItem is an attempt record as stored in DynamoDB.
type AttemptItem struct {
	PK               string `dynamodbav:"PK"` // ATTEMPT#<jobID>
	SK               string `dynamodbav:"SK"` // ATTEMPT
	JobID            string `dynamodbav:"job_id"`
	Queue            string `dynamodbav:"queue,omitempty"`
	Category         string `dynamodbav:"category"`
	AttemptsMade     int    `dynamodbav:"attempts_made"`
	LastErrorSummary string `dynamodbav:"last_error_summary,omitempty"`
	CreatedAt        string `dynamodbav:"created_at,omitempty"`
	UpdatedAt        string `dynamodbav:"updated_at"`
}

const (
	attemptPKPrefix = "ATTEMPT#"
	attemptSK       = "ATTEMPT"
)

func attemptPK(jobID string) string {
	return attemptPKPrefix + jobID
}

// ItemToRecord converts a stored item to a core.AttemptRecord.
func ItemToRecord(item *AttemptItem) *core.AttemptRecord {
	rec := &core.AttemptRecord{
		JobID:            item.JobID,
		Queue:            item.Queue,
		Category:         item.Category,
		AttemptsMade:     item.AttemptsMade,
		LastErrorSummary: item.LastErrorSummary,
	}
	if rec.JobID == "" {
		rec.JobID = strings.TrimPrefix(item.PK, attemptPKPrefix)
	}
	if t, err := time.Parse(core.TimeFormat, item.UpdatedAt); err == nil {
		rec.UpdatedAt = t
	}
	return rec
}

// RecordToItem converts a core.AttemptRecord to its stored form.
func RecordToItem(rec *core.AttemptRecord) *AttemptItem {
	return &AttemptItem{
		PK:               attemptPK(rec.JobID),
		SK:               attemptSK,
		JobID:            rec.JobID,
		Queue:            rec.Queue,
		Category:         rec.Category,
		AttemptsMade:     rec.AttemptsMade,
		LastErrorSummary: core.SummarizeError(rec.LastErrorSummary),
		UpdatedAt:        core.FormatTime(updatedAt(rec)),
	}
}

func updatedAt(rec *core.AttemptRecord) time.Time {
	if rec.UpdatedAt.IsZero() {
		return time.Now()
	}
	return rec.UpdatedAt
}

func validateRecord(rec *core.AttemptRecord) error {
	if rec == nil || rec.JobID == "" {
		return errors.New("attempt record requires a job id")
	}
	return nil
}
