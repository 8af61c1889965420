package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/openjobspec/ojs-retry/internal/classifier"
	"github.com/openjobspec/ojs-retry/internal/core"
)

type fakeRecorder struct {
	mu      sync.Mutex
	records []core.AttemptRecord
	err     error
	block   bool
}

func (f *fakeRecorder) RecordAttempt(ctx context.Context, rec *core.AttemptRecord) error {
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, *rec)
	return f.err
}

func (f *fakeRecorder) all() []core.AttemptRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]core.AttemptRecord(nil), f.records...)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []core.RetryEvent
	err    error
}

func (f *fakePublisher) PublishRetryEvent(_ context.Context, ev *core.RetryEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, *ev)
	return f.err
}

func (f *fakePublisher) all() []core.RetryEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]core.RetryEvent(nil), f.events...)
}

func noJitter() float64 { return 0.5 }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	base := []Option{WithLogger(quietLogger()), WithRandom(noJitter)}
	return New(classifier.NewDefaultRegistry(), append(base, opts...)...)
}

func failure(msg string, attempts int) *core.JobFailure {
	return &core.JobFailure{
		JobID:        "job-1",
		Queue:        "default",
		AttemptsMade: attempts,
		Error:        core.FailureError{Message: msg},
	}
}

func flush(t *testing.T, e *Engine) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := e.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
}

func TestDecide_Scenarios(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	t.Run("connection reset retries with network policy", func(t *testing.T) {
		d := e.Decide(ctx, failure("ECONNRESET", 0))
		want := core.RetryDecision{
			ShouldRetry: true,
			DelayMs:     2000,
			Category:    classifier.NetworkTimeout,
			Reason:      "retrying after network_timeout error (attempt 1/5)",
			Outcome:     core.OutcomeRetry,
		}
		if d != want {
			t.Errorf("Decide() = %+v, want %+v", d, want)
		}
	})

	t.Run("rate limit with one attempt left", func(t *testing.T) {
		d := e.Decide(ctx, failure("429 Too Many Requests", 9))
		if !d.ShouldRetry || d.Category != classifier.RateLimit || d.DelayMs != 300000 {
			t.Errorf("Decide() = %+v, want rate_limit retry after 300000ms", d)
		}
	})

	t.Run("invalid api key dead-letters at any attempt", func(t *testing.T) {
		for _, attempts := range []int{0, 1, 4, 50} {
			d := e.Decide(ctx, failure("invalid api key", attempts))
			if d.ShouldRetry || !d.MoveToDeadLetter || d.Category != classifier.AuthError || d.Outcome != core.OutcomeAbandoned {
				t.Errorf("attempts=%d: Decide() = %+v, want abandoned auth_error in dead-letter", attempts, d)
			}
		}
	})

	t.Run("unrecognised error uses default policy", func(t *testing.T) {
		d := e.Decide(ctx, failure("flux capacitor overload", 0))
		if !d.ShouldRetry || d.Category != core.UnknownCategory || d.DelayMs != 1000 {
			t.Errorf("attempts=0: Decide() = %+v, want unknown retry after 1000ms", d)
		}

		d = e.Decide(ctx, failure("flux capacitor overload", 3))
		if d.ShouldRetry || !d.MoveToDeadLetter || d.Outcome != core.OutcomeExhausted {
			t.Errorf("attempts=3: Decide() = %+v, want exhausted", d)
		}
	})

	t.Run("exhaustion with incidental numbers stays retryable", func(t *testing.T) {
		for _, msg := range []string{
			"write /data/chunk-404.bin: no space left on device",
			"CUDA out of memory. Tried to allocate 512.00 MiB",
		} {
			d := e.Decide(ctx, failure(msg, 0))
			if !d.ShouldRetry || d.Category != classifier.ResourceExhausted {
				t.Errorf("%q: Decide() = %+v, want resource_exhausted retry", msg, d)
			}
		}
	})
}

func TestDecide_JitteredDelayWithinBounds(t *testing.T) {
	e := New(classifier.NewDefaultRegistry(), WithLogger(quietLogger()))
	policy := e.EffectivePolicy(mustGet(t, classifier.NetworkTimeout))
	lo, hi := core.DelayBounds(0, policy)
	if lo != 1800 || hi != 2200 {
		t.Fatalf("DelayBounds() = [%d, %d], want [1800, 2200]", lo, hi)
	}

	for i := 0; i < 200; i++ {
		d := e.Decide(context.Background(), failure("ECONNRESET", 0))
		if !d.ShouldRetry {
			t.Fatalf("Decide() = %+v, want retry", d)
		}
		if d.DelayMs < lo || d.DelayMs > hi {
			t.Fatalf("DelayMs = %d, want within [%d, %d]", d.DelayMs, lo, hi)
		}
	}
}

func TestDecide_NonRetryableNeverRetries(t *testing.T) {
	e := newTestEngine(t)
	messages := []string{
		"content policy violation",
		"schema validation failed",
		"403 Forbidden",
		"400 Bad Request",
	}
	for _, msg := range messages {
		for attempts := 0; attempts < 12; attempts++ {
			d := e.Decide(context.Background(), failure(msg, attempts))
			if d.ShouldRetry || d.DelayMs != 0 {
				t.Errorf("%q attempts=%d: Decide() = %+v, want no retry", msg, attempts, d)
			}
		}
	}
}

func TestDecide_DeadLetterAfterThreshold(t *testing.T) {
	e := newTestEngine(t)
	if err := e.AddErrorCategory(core.ErrorCategory{
		Name:            "billing",
		Codes:           []string{"PAYMENT_REQUIRED"},
		DeadLetterAfter: core.IntPtr(3),
	}); err != nil {
		t.Fatalf("AddErrorCategory() error = %v", err)
	}

	f := &core.JobFailure{JobID: "j", Error: core.FailureError{Message: "no", Code: "PAYMENT_REQUIRED"}}
	for attempts, want := range []bool{false, false, true, true} {
		f.AttemptsMade = attempts
		d := e.Decide(context.Background(), f)
		if d.ShouldRetry {
			t.Errorf("attempts=%d: ShouldRetry = true", attempts)
		}
		if d.MoveToDeadLetter != want {
			t.Errorf("attempts=%d: MoveToDeadLetter = %v, want %v", attempts, d.MoveToDeadLetter, want)
		}
	}
}

func TestDecide_ExhaustedMovesToDeadLetter(t *testing.T) {
	e := newTestEngine(t)

	tests := []struct {
		msg         string
		maxAttempts int
	}{
		{"ECONNRESET", 5},
		{"rate limit exceeded", 10},
		{"invalid json", 3},
		{"503 Service Unavailable", 4},
		{"quota exceeded", 3},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			if d := e.Decide(context.Background(), failure(tt.msg, tt.maxAttempts-1)); !d.ShouldRetry {
				t.Fatalf("last attempt: Decide() = %+v, want retry", d)
			}

			for attempts := tt.maxAttempts; attempts < tt.maxAttempts+3; attempts++ {
				d := e.Decide(context.Background(), failure(tt.msg, attempts))
				if d.ShouldRetry || !d.MoveToDeadLetter || d.Outcome != core.OutcomeExhausted {
					t.Errorf("attempts=%d: Decide() = %+v, want exhausted", attempts, d)
				}
			}
		})
	}
}

func TestDecide_RemediatorVeto(t *testing.T) {
	tests := []struct {
		name string
		hook core.RemediatorFunc
	}{
		{"returns false", func(core.FailureError, *core.JobFailure) (bool, error) { return false, nil }},
		{"returns error", func(core.FailureError, *core.JobFailure) (bool, error) { return true, errors.New("boom") }},
		{"panics", func(core.FailureError, *core.JobFailure) (bool, error) { panic("hook exploded") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t)
			mustInsert(t, e, core.ErrorCategory{
				Name:       "needs_repair",
				Patterns:   core.MustCompilePatterns(`repairable`),
				Retryable:  true,
				Remediator: tt.hook,
			})

			d := e.Decide(context.Background(), failure("repairable failure", 0))
			if d.ShouldRetry || !d.MoveToDeadLetter || d.Reason != ReasonHookRejected || d.Outcome != core.OutcomeRejected {
				t.Errorf("Decide() = %+v, want rejected by hook", d)
			}
		})
	}
}

func TestDecide_RemediatorMutatesPayload(t *testing.T) {
	e := newTestEngine(t)
	mustInsert(t, e, core.ErrorCategory{
		Name:      "needs_repair",
		Patterns:  core.MustCompilePatterns(`repairable`),
		Retryable: true,
		Remediator: core.RemediatorFunc(func(_ core.FailureError, f *core.JobFailure) (bool, error) {
			f.Payload["repaired"] = true
			return true, nil
		}),
	})

	f := failure("repairable failure", 0)
	f.Payload = map[string]any{}
	if d := e.Decide(context.Background(), f); !d.ShouldRetry {
		t.Errorf("Decide() = %+v, want retry", d)
	}
	if f.Payload["repaired"] != true {
		t.Errorf("payload = %v, want repaired=true", f.Payload)
	}
}

func TestDecide_HookSkippedForNonRetryableCategory(t *testing.T) {
	e := newTestEngine(t)

	f := failure("schema validation failed", 0)
	f.Payload = map[string]any{}
	d := e.Decide(context.Background(), f)

	if d.Category != classifier.StructuralValidationError || d.ShouldRetry || !d.MoveToDeadLetter {
		t.Errorf("Decide() = %+v, want abandoned structural_validation_error", d)
	}
	if len(f.Payload) != 0 {
		t.Errorf("payload = %v, structural repair must not run for a non-retryable category", f.Payload)
	}
}

func TestDecide_HookNotInvokedWhenExhausted(t *testing.T) {
	e := newTestEngine(t)
	called := false
	mustInsert(t, e, core.ErrorCategory{
		Name:      "needs_repair",
		Patterns:  core.MustCompilePatterns(`repairable`),
		Retryable: true,
		Policy:    &core.PolicyOverride{MaxAttempts: core.IntPtr(1)},
		Remediator: core.RemediatorFunc(func(core.FailureError, *core.JobFailure) (bool, error) {
			called = true
			return true, nil
		}),
	})

	d := e.Decide(context.Background(), failure("repairable", 1))
	if d.Outcome != core.OutcomeExhausted {
		t.Errorf("Outcome = %q, want %q", d.Outcome, core.OutcomeExhausted)
	}
	if called {
		t.Error("hook should not run once attempts are exhausted")
	}
}

func TestDecide_Idempotent(t *testing.T) {
	e := newTestEngine(t)
	for _, msg := range []string{"ECONNRESET", "invalid api key", "flux capacitor overload", "502 bad gateway"} {
		for attempts := 0; attempts < 6; attempts++ {
			a := e.Decide(context.Background(), failure(msg, attempts))
			b := e.Decide(context.Background(), failure(msg, attempts))
			if a != b {
				t.Errorf("%q attempts=%d: %+v != %+v", msg, attempts, a, b)
			}
		}
	}
}

func TestDecide_SideChannels(t *testing.T) {
	rec := &fakeRecorder{}
	pub := &fakePublisher{}
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	e := newTestEngine(t, WithRecorder(rec), WithPublisher(pub), WithClock(func() time.Time { return fixed }))

	e.Decide(context.Background(), failure("ECONNRESET", 0))
	e.Decide(context.Background(), failure("invalid api key", 0))
	e.Decide(context.Background(), failure("flux capacitor overload", 3))
	flush(t, e)

	records := rec.all()
	if len(records) != 3 {
		t.Fatalf("len(records) = %d, want 3", len(records))
	}
	byCategory := map[string]core.AttemptRecord{}
	for _, r := range records {
		byCategory[r.Category] = r
	}
	network := byCategory[classifier.NetworkTimeout]
	if network.AttemptsMade != 1 || network.LastErrorSummary != "ECONNRESET" || !network.UpdatedAt.Equal(fixed) {
		t.Errorf("network_timeout record = %+v", network)
	}
	if got := byCategory[core.UnknownCategory].AttemptsMade; got != 4 {
		t.Errorf("unknown AttemptsMade = %d, want 4", got)
	}

	events := pub.all()
	if len(events) != 3 {
		t.Fatalf("len(events) = %d, want 3", len(events))
	}
	types := map[string]core.RetryEvent{}
	for _, ev := range events {
		types[ev.Type] = ev
	}
	for _, typ := range []string{core.EventRetryScheduled, core.EventRetryAbandoned, core.EventRetryExhausted} {
		if _, ok := types[typ]; !ok {
			t.Errorf("missing %s event", typ)
		}
	}

	scheduled := types[core.EventRetryScheduled]
	if scheduled.JobID != "job-1" || scheduled.Queue != "default" {
		t.Errorf("scheduled identity = %q/%q", scheduled.JobID, scheduled.Queue)
	}
	if scheduled.Metadata["category"] != classifier.NetworkTimeout {
		t.Errorf("category = %v", scheduled.Metadata["category"])
	}
	if scheduled.Metadata["delay_ms"] != int64(2000) {
		t.Errorf("delay_ms = %v (%T), want int64 2000", scheduled.Metadata["delay_ms"], scheduled.Metadata["delay_ms"])
	}
	if scheduled.Timestamp != core.FormatTime(fixed) {
		t.Errorf("Timestamp = %q, want %q", scheduled.Timestamp, core.FormatTime(fixed))
	}
}

func TestDecide_TruncatesErrorSummary(t *testing.T) {
	rec := &fakeRecorder{}
	e := newTestEngine(t, WithRecorder(rec))

	long := "ECONNRESET " + string(make([]byte, 2000))
	e.Decide(context.Background(), failure(long, 0))
	flush(t, e)

	records := rec.all()
	if len(records) != 1 {
		t.Fatalf("len(records) = %d, want 1", len(records))
	}
	if got := len(records[0].LastErrorSummary); got > core.MaxErrorSummaryBytes {
		t.Errorf("summary length = %d, want <= %d", got, core.MaxErrorSummaryBytes)
	}
}

func TestDecide_FailingCollaboratorsDoNotChangeDecision(t *testing.T) {
	plain := newTestEngine(t)
	broken := newTestEngine(t,
		WithRecorder(&fakeRecorder{err: errors.New("dynamodb down")}),
		WithPublisher(&fakePublisher{err: errors.New("sqs down")}),
	)

	for _, msg := range []string{"ECONNRESET", "invalid api key", "flux capacitor overload"} {
		want := plain.Decide(context.Background(), failure(msg, 1))
		if got := broken.Decide(context.Background(), failure(msg, 1)); got != want {
			t.Errorf("%q: Decide() = %+v, want %+v", msg, got, want)
		}
	}
	flush(t, broken)
}

func TestDecide_SlowRecorderDoesNotBlock(t *testing.T) {
	rec := &fakeRecorder{block: true}
	e := newTestEngine(t, WithRecorder(rec), WithSideChannelTimeout(50*time.Millisecond))

	start := time.Now()
	d := e.Decide(context.Background(), failure("ECONNRESET", 0))
	if !d.ShouldRetry {
		t.Errorf("Decide() = %+v, want retry", d)
	}
	if elapsed := time.Since(start); elapsed >= 40*time.Millisecond {
		t.Errorf("Decide() took %v, want it not to wait for the recorder", elapsed)
	}

	// the blocked call is released by its own timeout
	flush(t, e)
}

func TestDecide_CancelledContextStillDecidesAndRecords(t *testing.T) {
	rec := &fakeRecorder{}
	e := newTestEngine(t, WithRecorder(rec))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if d := e.Decide(ctx, failure("ECONNRESET", 0)); !d.ShouldRetry {
		t.Errorf("Decide() = %+v, want retry", d)
	}
	flush(t, e)
	if got := len(rec.all()); got != 1 {
		t.Errorf("len(records) = %d, want 1", got)
	}
}

func TestDecide_FallbackOnInternalPanic(t *testing.T) {
	rec := &fakeRecorder{}
	pub := &fakePublisher{}
	reg, err := classifier.NewRegistry(core.ErrorCategory{
		Name:     "broken",
		Patterns: []*regexp.Regexp{nil},
	})
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	e := New(reg, WithLogger(quietLogger()), WithRandom(noJitter), WithRecorder(rec), WithPublisher(pub))

	d := e.Decide(context.Background(), failure("anything", 0))
	if !d.ShouldRetry || d.Outcome != core.OutcomeFallback || d.DelayMs != 1000 {
		t.Errorf("attempts=0: Decide() = %+v, want fallback retry after 1000ms", d)
	}

	d = e.Decide(context.Background(), failure("anything", 3))
	if d.ShouldRetry || !d.MoveToDeadLetter || d.Outcome != core.OutcomeFallback {
		t.Errorf("attempts=3: Decide() = %+v, want fallback dead-letter", d)
	}

	flush(t, e)
	if got := len(rec.all()); got != 2 {
		t.Errorf("len(records) = %d, want 2", got)
	}
	if got := len(pub.all()); got != 2 {
		t.Errorf("len(events) = %d, want 2", got)
	}
}

func TestDecide_PanickingRandomSourceFallsBack(t *testing.T) {
	rec := &fakeRecorder{}
	pub := &fakePublisher{}
	e := newTestEngine(t,
		WithRandom(func() float64 { panic("rng broken") }),
		WithRecorder(rec),
		WithPublisher(pub),
	)

	var d core.RetryDecision
	func() {
		defer func() {
			if r := recover(); r != nil {
				t.Fatalf("Decide() panicked: %v", r)
			}
		}()
		d = e.Decide(context.Background(), failure("ECONNRESET", 0))
	}()

	if !d.ShouldRetry || d.Outcome != core.OutcomeFallback || d.DelayMs != 1000 {
		t.Errorf("Decide() = %+v, want fallback retry after the unjittered 1000ms", d)
	}
	if d.Category != classifier.NetworkTimeout {
		t.Errorf("Category = %q, want %q", d.Category, classifier.NetworkTimeout)
	}

	flush(t, e)
	if got := len(rec.all()); got != 1 {
		t.Errorf("len(records) = %d, want 1", got)
	}
	if got := len(pub.all()); got != 1 {
		t.Errorf("len(events) = %d, want 1", got)
	}
}

// debugPanicHandler panics on debug records, which Decide only emits after
// the decision has been published.
type debugPanicHandler struct{}

func (debugPanicHandler) Enabled(context.Context, slog.Level) bool { return true }
func (debugPanicHandler) Handle(_ context.Context, r slog.Record) error {
	if r.Level == slog.LevelDebug {
		panic("log sink failed")
	}
	return nil
}
func (h debugPanicHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h debugPanicHandler) WithGroup(string) slog.Handler      { return h }

func TestDecide_PanicAfterPublishKeepsDecision(t *testing.T) {
	pub := &fakePublisher{}
	e := newTestEngine(t, WithPublisher(pub), WithLogger(slog.New(debugPanicHandler{})))

	d := e.Decide(context.Background(), failure("ECONNRESET", 0))
	if !d.ShouldRetry || d.Outcome != core.OutcomeRetry || d.DelayMs != 2000 {
		t.Errorf("Decide() = %+v, want the computed network_timeout retry", d)
	}

	flush(t, e)
	events := pub.all()
	if len(events) != 1 {
		t.Fatalf("len(events) = %d, want exactly 1", len(events))
	}
	if events[0].Type != core.EventRetryScheduled {
		t.Errorf("event type = %q, want %q", events[0].Type, core.EventRetryScheduled)
	}
}

func TestDecide_NilFailure(t *testing.T) {
	e := newTestEngine(t)
	d := e.Decide(context.Background(), nil)
	if d.Category != core.UnknownCategory || !d.ShouldRetry {
		t.Errorf("Decide(nil) = %+v, want unknown retry", d)
	}
}

func TestDecide_Concurrent(t *testing.T) {
	rec := &fakeRecorder{}
	e := newTestEngine(t, WithRecorder(rec))
	messages := []string{"ECONNRESET", "429", "invalid api key", "flux", "schema validation"}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				msg := messages[(i+j)%len(messages)]
				f := failure(msg, j%4)
				f.JobID = fmt.Sprintf("job-%d-%d", i, j)
				e.Decide(context.Background(), f)
			}
		}(i)
	}
	var updateErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, updateErr = e.UpdateDefaultPolicy(&core.PolicyOverride{MaxAttempts: core.IntPtr(4)})
	}()
	wg.Wait()
	if updateErr != nil {
		t.Errorf("UpdateDefaultPolicy() error = %v", updateErr)
	}
	flush(t, e)
	if got := len(rec.all()); got != 16*50 {
		t.Errorf("len(records) = %d, want %d", got, 16*50)
	}
}

func TestUpdateDefaultPolicy(t *testing.T) {
	e := newTestEngine(t)

	if d := e.Decide(context.Background(), failure("flux capacitor overload", 3)); d.ShouldRetry {
		t.Fatalf("before update: Decide() = %+v, want exhausted", d)
	}

	p, err := e.UpdateDefaultPolicy(&core.PolicyOverride{MaxAttempts: core.IntPtr(5), BaseDelayMs: core.Int64Ptr(200)})
	if err != nil {
		t.Fatalf("UpdateDefaultPolicy() error = %v", err)
	}
	if p.MaxAttempts != 5 || p.BaseDelayMs != 200 || p.MaxDelayMs != 300000 {
		t.Errorf("merged policy = %+v", p)
	}

	d := e.Decide(context.Background(), failure("flux capacitor overload", 3))
	if !d.ShouldRetry || d.DelayMs != 1600 {
		t.Errorf("after update: Decide() = %+v, want retry after 1600ms", d)
	}

	// categories with their own max attempts are unaffected
	if d := e.Decide(context.Background(), failure("ECONNRESET", 5)); d.ShouldRetry {
		t.Errorf("network_timeout at 5: Decide() = %+v, want exhausted", d)
	}
}

func TestUpdateDefaultPolicy_RejectsInvalid(t *testing.T) {
	e := newTestEngine(t)
	before := e.DefaultPolicy()

	_, err := e.UpdateDefaultPolicy(&core.PolicyOverride{MaxAttempts: core.IntPtr(0)})
	var ojsErr *core.OJSError
	if !errors.As(err, &ojsErr) {
		t.Fatalf("error = %v, want *core.OJSError", err)
	}
	if ojsErr.Code != core.ErrCodeValidationError {
		t.Errorf("code = %q, want %q", ojsErr.Code, core.ErrCodeValidationError)
	}

	if _, err := e.UpdateDefaultPolicy(&core.PolicyOverride{MaxDelayMs: core.Int64Ptr(10)}); err == nil {
		t.Error("expected error for max delay below base delay")
	}

	if got := e.DefaultPolicy(); got != before {
		t.Errorf("DefaultPolicy() = %+v, want unchanged %+v", got, before)
	}
}

func TestNew_WithDefaultPolicy(t *testing.T) {
	custom := core.RetryPolicy{MaxAttempts: 7, BaseDelayMs: 10, MaxDelayMs: 100, BackoffMultiplier: 3, JitterFactor: 0}
	if got := New(nil, WithLogger(quietLogger()), WithDefaultPolicy(custom)).DefaultPolicy(); got != custom {
		t.Errorf("DefaultPolicy() = %+v, want %+v", got, custom)
	}

	if got := New(nil, WithLogger(quietLogger()), WithDefaultPolicy(core.RetryPolicy{})).DefaultPolicy(); got != core.DefaultRetryPolicy() {
		t.Errorf("invalid policy: DefaultPolicy() = %+v, want defaults", got)
	}
}

func TestAddErrorCategory(t *testing.T) {
	e := newTestEngine(t)

	err := e.AddErrorCategory(core.ErrorCategory{
		Name:      "gpu_oom",
		Patterns:  core.MustCompilePatterns(`cuda error`),
		Retryable: true,
		Policy:    &core.PolicyOverride{MaxAttempts: core.IntPtr(2), BaseDelayMs: core.Int64Ptr(100), MaxDelayMs: core.Int64Ptr(100)},
	})
	if err != nil {
		t.Fatalf("AddErrorCategory() error = %v", err)
	}
	if !e.HasCategory("gpu_oom") || e.IndexOf("gpu_oom") != len(classifier.Builtins()) {
		t.Errorf("gpu_oom not appended after builtins: %d", e.IndexOf("gpu_oom"))
	}

	d := e.Decide(context.Background(), failure("CUDA error: device-side assert", 1))
	if d.Category != "gpu_oom" || d.DelayMs != 100 {
		t.Errorf("Decide() = %+v, want gpu_oom retry after 100ms", d)
	}

	err = e.AddErrorCategory(core.ErrorCategory{
		Name:     "bad_policy",
		Patterns: core.MustCompilePatterns(`x`),
		Policy:   &core.PolicyOverride{MaxAttempts: core.IntPtr(0)},
	})
	if err == nil || e.HasCategory("bad_policy") {
		t.Errorf("bad_policy: error = %v, registered = %v", err, e.HasCategory("bad_policy"))
	}

	err = e.AddErrorCategory(core.ErrorCategory{Name: "gpu_oom", Codes: []string{"X"}})
	if !errors.Is(err, classifier.ErrDuplicateCategory) {
		t.Errorf("duplicate: error = %v, want ErrDuplicateCategory", err)
	}
}

func mustInsert(t *testing.T, e *Engine, c core.ErrorCategory) {
	t.Helper()
	if err := e.InsertErrorCategory(0, c); err != nil {
		t.Fatalf("InsertErrorCategory(%q) error = %v", c.Name, err)
	}
}

func mustGet(t *testing.T, name string) core.ErrorCategory {
	t.Helper()
	for _, c := range classifier.Builtins() {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("no builtin category %q", name)
	return core.ErrorCategory{}
}
