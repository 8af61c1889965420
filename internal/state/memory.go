package state

import (
	"context"
	"sync"

	"github.com/openjobspec/ojs-retry/internal/core"
)

// MemoryStore keeps attempt records in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]core.AttemptRecord
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]core.AttemptRecord)}
}

// RecordAttempt upserts the record for rec.JobID.
func (s *MemoryStore) RecordAttempt(_ context.Context, rec *core.AttemptRecord) error {
	if err := validateRecord(rec); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.records[rec.JobID]; ok && cur.AttemptsMade > rec.AttemptsMade {
		return nil
	}
	stored := *rec
	stored.LastErrorSummary = core.SummarizeError(rec.LastErrorSummary)
	stored.UpdatedAt = updatedAt(rec).UTC()
	s.records[rec.JobID] = stored
	return nil
}

// GetAttempt returns the record for jobID.
func (s *MemoryStore) GetAttempt(_ context.Context, jobID string) (*core.AttemptRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[jobID]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }
