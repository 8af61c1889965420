package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openjobspec/ojs-retry/internal/core"
)

const createAttemptsTable = `
CREATE TABLE IF NOT EXISTS retry_attempts (
	job_id             TEXT PRIMARY KEY,
	queue              TEXT NOT NULL DEFAULT '',
	category           TEXT NOT NULL,
	attempts_made      INTEGER NOT NULL,
	last_error_summary TEXT NOT NULL DEFAULT '',
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS retry_attempts_category_idx ON retry_attempts (category, updated_at);
`

const upsertAttempt = `
INSERT INTO retry_attempts (job_id, queue, category, attempts_made, last_error_summary, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (job_id) DO UPDATE SET
	queue              = EXCLUDED.queue,
	category           = EXCLUDED.category,
	attempts_made      = EXCLUDED.attempts_made,
	last_error_summary = EXCLUDED.last_error_summary,
	updated_at         = EXCLUDED.updated_at
WHERE retry_attempts.attempts_made <= EXCLUDED.attempts_made`

const selectAttempt = `
SELECT job_id, queue, category, attempts_made, last_error_summary, updated_at
FROM retry_attempts WHERE job_id = $1`

// PostgresStore implements Store on a PostgreSQL table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an existing pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// OpenPostgresStore connects to connString and verifies the connection.
func OpenPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// EnsureSchema creates the attempts table if it doesn't exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, createAttemptsTable); err != nil {
		return fmt.Errorf("failed to create retry_attempts table: %w", err)
	}
	return nil
}

// RecordAttempt upserts the attempt record for a job.
func (s *PostgresStore) RecordAttempt(ctx context.Context, rec *core.AttemptRecord) error {
	if err := validateRecord(rec); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, upsertAttempt,
		rec.JobID,
		rec.Queue,
		rec.Category,
		rec.AttemptsMade,
		core.SummarizeError(rec.LastErrorSummary),
		updatedAt(rec).UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record attempt: %w", err)
	}
	return nil
}

// GetAttempt retrieves the attempt record for a job.
func (s *PostgresStore) GetAttempt(ctx context.Context, jobID string) (*core.AttemptRecord, error) {
	var rec core.AttemptRecord
	err := s.pool.QueryRow(ctx, selectAttempt, jobID).Scan(
		&rec.JobID,
		&rec.Queue,
		&rec.Category,
		&rec.AttemptsMade,
		&rec.LastErrorSummary,
		&rec.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return &rec, nil
}

// Ping checks the connection to PostgreSQL.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping postgres: %w", err)
	}
	return nil
}

// Close closes the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
