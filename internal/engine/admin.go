package engine

import (
	"fmt"

	"github.com/openjobspec/ojs-retry/internal/core"
	"github.com/openjobspec/ojs-retry/internal/metrics"
)

// AddErrorCategory appends a category after all registered ones. It affects
// decisions that start after it returns.
func (e *Engine) AddErrorCategory(c core.ErrorCategory) error {
	return e.InsertErrorCategory(-1, c)
}

// InsertErrorCategory registers a category at index in evaluation order. A
// negative index appends.
func (e *Engine) InsertErrorCategory(index int, c core.ErrorCategory) error {
	if c.Policy != nil {
		if err := e.DefaultPolicy().Merge(c.Policy).Validate(); err != nil {
			return core.NewValidationError(fmt.Sprintf("category %q: %v", c.Name, err), nil)
		}
	}
	if err := e.registry.Insert(index, c); err != nil {
		return err
	}
	metrics.Categories.Set(float64(len(e.registry.Names())))
	e.logger.Info("error category registered", "category", c.Name, "index", e.registry.IndexOf(c.Name))
	return nil
}

// UpdateDefaultPolicy merges o onto the current default and returns the
// result. The update is rejected if the merged policy is invalid.
func (e *Engine) UpdateDefaultPolicy(o *core.PolicyOverride) (core.RetryPolicy, error) {
	e.policyMu.Lock()
	defer e.policyMu.Unlock()

	next := e.DefaultPolicy().Merge(o)
	if err := next.Validate(); err != nil {
		return core.RetryPolicy{}, core.NewValidationError(err.Error(), nil)
	}
	e.defaultPolicy.Store(&next)
	e.logger.Info("default retry policy updated",
		"max_attempts", next.MaxAttempts,
		"base_delay_ms", next.BaseDelayMs,
		"max_delay_ms", next.MaxDelayMs,
		"backoff_multiplier", next.BackoffMultiplier,
		"jitter_factor", next.JitterFactor,
	)
	return next, nil
}

// DefaultPolicy returns the current global default policy.
func (e *Engine) DefaultPolicy() core.RetryPolicy {
	return *e.defaultPolicy.Load()
}

// EffectivePolicy returns the policy a category resolves to right now.
func (e *Engine) EffectivePolicy(c core.ErrorCategory) core.RetryPolicy {
	return e.DefaultPolicy().Merge(c.Policy)
}

// Categories returns the registered categories in evaluation order.
func (e *Engine) Categories() []core.ErrorCategory {
	return e.registry.Categories()
}

// Classify exposes the classifier without making a decision.
func (e *Engine) Classify(err core.FailureError) core.ErrorCategory {
	return e.registry.ClassifyError(err)
}

// IndexOf returns the evaluation position of the named category, or -1.
func (e *Engine) IndexOf(name string) int {
	return e.registry.IndexOf(name)
}

// HasCategory reports whether name is registered.
func (e *Engine) HasCategory(name string) bool {
	_, ok := e.registry.Get(name)
	return ok
}
