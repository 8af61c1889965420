// Package engine implements the retry decision engine: it classifies a job
// failure, resolves the category's policy, runs remediation hooks and
// computes the backoff delay.
//
// Decide always returns a decision. Recorder and publisher failures, hook
// errors and internal panics are logged and absorbed; none of them can change
// or block the decision handed back to the queue runtime.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/openjobspec/ojs-retry/internal/classifier"
	"github.com/openjobspec/ojs-retry/internal/core"
	"github.com/openjobspec/ojs-retry/internal/metrics"
	"github.com/openjobspec/ojs-retry/internal/tracing"
)

// Reason used when a remediation hook vetoes a retry.
const ReasonHookRejected = "custom handler rejected retry"

// Engine decides what happens to failed jobs. It is safe for concurrent use.
type Engine struct {
	registry  *classifier.Registry
	recorder  core.AttemptRecorder
	publisher core.EventPublisher
	logger    *slog.Logger
	rnd       func() float64
	now       func() time.Time

	sideChannelTimeout time.Duration
	initialPolicy      *core.RetryPolicy

	policyMu      sync.Mutex // serialises UpdateDefaultPolicy
	defaultPolicy atomic.Pointer[core.RetryPolicy]

	inflight sync.WaitGroup
}

// New creates an engine over registry. A nil registry gets the built-in
// categories.
func New(registry *classifier.Registry, opts ...Option) *Engine {
	if registry == nil {
		registry = classifier.NewDefaultRegistry()
	}
	e := &Engine{
		registry:           registry,
		logger:             slog.Default(),
		now:                time.Now,
		sideChannelTimeout: DefaultSideChannelTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}

	policy := core.DefaultRetryPolicy()
	if e.initialPolicy != nil {
		if err := e.initialPolicy.Validate(); err != nil {
			e.logger.Warn("ignoring invalid default retry policy", "error", err)
		} else {
			policy = *e.initialPolicy
		}
	}
	e.defaultPolicy.Store(&policy)
	metrics.Categories.Set(float64(len(registry.Names())))
	return e
}

// Decide returns the retry decision for one job failure. The failure's
// payload may be mutated by remediation hooks. ctx only carries trace and
// log values; the decision itself is not cancellable.
func (e *Engine) Decide(ctx context.Context, failure *core.JobFailure) core.RetryDecision {
	start := time.Now()
	if failure == nil {
		failure = &core.JobFailure{}
	}

	ctx, span := tracing.StartSpan(ctx, "ojs.retry.decide",
		tracing.JobID(failure.JobID),
		tracing.JobQueue(failure.Queue),
		tracing.JobAttempt(failure.AttemptsMade),
	)
	defer span.End()

	st := &decideState{category: core.UnknownCategory}
	if err := e.decide(ctx, failure, st); err != nil {
		e.logger.Error("retry decision failed, using fallback",
			"job_id", failure.JobID,
			"queue", failure.Queue,
			"category", st.category,
			"error", err,
		)
		tracing.RecordError(span, err)
		if !st.decided {
			st.decision = e.fallback(st.category, failure)
			st.decided = true
		}
		e.finishSideChannels(ctx, failure, st)
	}

	decision := st.decision
	span.SetAttributes(
		tracing.Category(decision.Category),
		tracing.Outcome(decision.Outcome),
		tracing.ShouldRetry(decision.ShouldRetry),
		tracing.DeadLetter(decision.MoveToDeadLetter),
		tracing.DelayMs(decision.DelayMs),
	)
	observe(decision, time.Since(start))
	return decision
}

// decideState tracks how far one decision got, so a failure part way through
// neither repeats side channels nor discards a decision already made.
type decideState struct {
	category  string
	recorded  bool
	published bool
	decided   bool
	decision  core.RetryDecision
}

// decide runs the decision and converts a panic into an error.
func (e *Engine) decide(ctx context.Context, failure *core.JobFailure, st *decideState) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	// Classifying
	c := e.registry.ClassifyError(failure.Error)
	st.category = c.Name
	st.recorded = true
	e.record(ctx, failure, c.Name)

	st.decision = e.evaluate(c, failure)
	st.decided = true
	st.published = true
	e.publish(ctx, failure, st.decision)

	e.logger.Debug("retry decision",
		"job_id", failure.JobID,
		"queue", failure.Queue,
		"category", st.decision.Category,
		"attempts_made", failure.AttemptsMade,
		"outcome", st.decision.Outcome,
		"delay_ms", st.decision.DelayMs,
	)
	return nil
}

// finishSideChannels records and publishes whatever the failed decision did
// not reach. Panics here are logged and dropped.
func (e *Engine) finishSideChannels(ctx context.Context, failure *core.JobFailure, st *decideState) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("retry fallback side channels failed", "job_id", failure.JobID, "error", r)
		}
	}()
	if !st.recorded {
		st.recorded = true
		e.record(ctx, failure, st.category)
	}
	if !st.published {
		st.published = true
		e.publish(ctx, failure, st.decision)
	}
}

// evaluate runs the decision steps after classification. It has no side
// channels of its own.
func (e *Engine) evaluate(c core.ErrorCategory, failure *core.JobFailure) core.RetryDecision {
	attempts := failure.AttemptsMade

	if !c.Retryable {
		// The failure being decided counts towards the dead-letter threshold.
		return core.RetryDecision{
			Category:         c.Name,
			Reason:           fmt.Sprintf("%s errors are not retryable", c.Name),
			MoveToDeadLetter: attempts+1 >= c.DeadLetterThreshold(),
			Outcome:          core.OutcomeAbandoned,
		}
	}

	// PolicyResolved
	policy := e.DefaultPolicy().Merge(c.Policy)
	if attempts >= policy.MaxAttempts {
		return core.RetryDecision{
			Category:         c.Name,
			Reason:           fmt.Sprintf("max attempts reached for %s error (%d/%d)", c.Name, attempts, policy.MaxAttempts),
			MoveToDeadLetter: true,
			Outcome:          core.OutcomeExhausted,
		}
	}

	// HookCheck
	if c.Remediator != nil && !e.remediate(c, failure) {
		metrics.RemediationVetoes.WithLabelValues(c.Name).Inc()
		return core.RetryDecision{
			Category:         c.Name,
			Reason:           ReasonHookRejected,
			MoveToDeadLetter: true,
			Outcome:          core.OutcomeRejected,
		}
	}

	// DelayComputed
	return core.RetryDecision{
		ShouldRetry: true,
		DelayMs:     core.ComputeDelay(attempts, policy, e.rnd),
		Category:    c.Name,
		Reason:      fmt.Sprintf("retrying after %s error (attempt %d/%d)", c.Name, attempts+1, policy.MaxAttempts),
		Outcome:     core.OutcomeRetry,
	}
}

// remediate invokes the category's hook. Errors and panics count as a veto.
func (e *Engine) remediate(c core.ErrorCategory, failure *core.JobFailure) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("remediation hook panicked",
				"job_id", failure.JobID,
				"category", c.Name,
				"error", r,
			)
			ok = false
		}
	}()

	ok, err := c.Remediator.Attempt(failure.Error, failure)
	if err != nil {
		e.logger.Warn("remediation hook failed",
			"job_id", failure.JobID,
			"category", c.Name,
			"error", err,
		)
		return false
	}
	return ok
}

// fallback is the conservative decision used when evaluation fails: retry
// under the default policy while attempts remain, else dead-letter.
func (e *Engine) fallback(category string, failure *core.JobFailure) core.RetryDecision {
	policy := e.DefaultPolicy()
	if failure.AttemptsMade < policy.MaxAttempts {
		return core.RetryDecision{
			ShouldRetry: true,
			DelayMs:     core.ComputeDelay(failure.AttemptsMade, policy, safeRandom(e.rnd)),
			Category:    category,
			Reason:      "internal error, retrying with default policy",
			Outcome:     core.OutcomeFallback,
		}
	}
	return core.RetryDecision{
		Category:         category,
		Reason:           "internal error, attempts exhausted under default policy",
		MoveToDeadLetter: true,
		Outcome:          core.OutcomeFallback,
	}
}

// safeRandom wraps rnd so that a panicking source yields no jitter.
func safeRandom(rnd func() float64) func() float64 {
	if rnd == nil {
		return rand.Float64
	}
	return func() (v float64) {
		defer func() {
			if r := recover(); r != nil {
				v = 0.5
			}
		}()
		return rnd()
	}
}

func observe(d core.RetryDecision, elapsed time.Duration) {
	metrics.DecisionsTotal.WithLabelValues(d.Category, d.Outcome).Inc()
	metrics.DecisionDuration.Observe(elapsed.Seconds())
	if d.ShouldRetry {
		metrics.RetryDelay.WithLabelValues(d.Category).Observe(float64(d.DelayMs))
	} else if d.MoveToDeadLetter {
		metrics.DeadLettered.WithLabelValues(d.Category).Inc()
	}
}

// record upserts the attempt record. AttemptsMade on the record includes the
// failure being decided.
func (e *Engine) record(ctx context.Context, failure *core.JobFailure, category string) {
	if e.recorder == nil {
		return
	}
	rec := &core.AttemptRecord{
		JobID:            failure.JobID,
		Queue:            failure.Queue,
		Category:         category,
		AttemptsMade:     failure.AttemptsMade + 1,
		LastErrorSummary: core.SummarizeError(failure.Error.Message),
		UpdatedAt:        e.now().UTC(),
	}
	e.sideChannel(ctx, "recorder", failure.JobID, func(ctx context.Context) error {
		return e.recorder.RecordAttempt(ctx, rec)
	})
}

func (e *Engine) publish(ctx context.Context, failure *core.JobFailure, d core.RetryDecision) {
	if e.publisher == nil {
		return
	}
	event := core.NewRetryEvent(failure, d, e.now())
	e.sideChannel(ctx, "publisher", failure.JobID, func(ctx context.Context) error {
		return e.publisher.PublishRetryEvent(ctx, event)
	})
}

// sideChannel runs fn in the background with a bounded timeout. The caller's
// cancellation does not propagate; its values do.
func (e *Engine) sideChannel(ctx context.Context, channel, jobID string, fn func(context.Context) error) {
	e.inflight.Add(1)
	go func() {
		defer e.inflight.Done()
		defer func() {
			if r := recover(); r != nil {
				metrics.SideChannelFailures.WithLabelValues(channel).Inc()
				e.logger.Warn("retry side channel panicked", "channel", channel, "job_id", jobID, "error", r)
			}
		}()

		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.sideChannelTimeout)
		defer cancel()
		if err := fn(cctx); err != nil {
			metrics.SideChannelFailures.WithLabelValues(channel).Inc()
			e.logger.Warn("retry side channel failed", "channel", channel, "job_id", jobID, "error", err)
		}
	}()
}

// Flush waits for in-flight recorder and publisher calls.
func (e *Engine) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
