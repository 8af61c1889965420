package state

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/openjobspec/ojs-retry/internal/core"
)

// DefaultRedisPrefix namespaces attempt keys.
const DefaultRedisPrefix = "ojs:retry:attempt:"

// recordScript upserts the attempt hash unless the stored counter is ahead.
var recordScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'attempts_made')
if cur and tonumber(cur) > tonumber(ARGV[4]) then
	return 0
end
redis.call('HSET', KEYS[1],
	'job_id', ARGV[1],
	'queue', ARGV[2],
	'category', ARGV[3],
	'attempts_made', ARGV[4],
	'last_error_summary', ARGV[5],
	'updated_at', ARGV[6])
redis.call('HSETNX', KEYS[1], 'created_at', ARGV[6])
return 1
`)

// RedisStore implements Store with one hash per job.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

// OpenRedisStore connects to url and verifies the connection.
func OpenRedisStore(url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisStore(client, DefaultRedisPrefix), nil
}

func (s *RedisStore) key(jobID string) string {
	return s.prefix + jobID
}

// RecordAttempt upserts the attempt hash for a job.
func (s *RedisStore) RecordAttempt(ctx context.Context, rec *core.AttemptRecord) error {
	if err := validateRecord(rec); err != nil {
		return err
	}
	err := recordScript.Run(ctx, s.client, []string{s.key(rec.JobID)},
		rec.JobID,
		rec.Queue,
		rec.Category,
		rec.AttemptsMade,
		core.SummarizeError(rec.LastErrorSummary),
		core.FormatTime(updatedAt(rec)),
	).Err()
	if err != nil {
		return fmt.Errorf("failed to record attempt: %w", err)
	}
	return nil
}

// GetAttempt retrieves the attempt hash for a job.
func (s *RedisStore) GetAttempt(ctx context.Context, jobID string) (*core.AttemptRecord, error) {
	vals, err := s.client.HGetAll(ctx, s.key(jobID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}
	if len(vals) == 0 {
		return nil, ErrNotFound
	}
	return mapToRecord(vals), nil
}

func mapToRecord(vals map[string]string) *core.AttemptRecord {
	attempts, _ := strconv.Atoi(vals["attempts_made"])
	rec := &core.AttemptRecord{
		JobID:            vals["job_id"],
		Queue:            vals["queue"],
		Category:         vals["category"],
		AttemptsMade:     attempts,
		LastErrorSummary: vals["last_error_summary"],
	}
	if t, err := time.Parse(core.TimeFormat, vals["updated_at"]); err == nil {
		rec.UpdatedAt = t
	}
	return rec
}

// Ping checks the connection to Redis.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}
	return nil
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
