package core

import "fmt"

// RetryPolicy defines how failed jobs of a category should be retried.
// A resolved policy is a value and is never mutated during a decision.
type RetryPolicy struct {
	MaxAttempts       int     `json:"max_attempts"`
	BaseDelayMs       int64   `json:"base_delay_ms"`
	MaxDelayMs        int64   `json:"max_delay_ms"`
	BackoffMultiplier float64 `json:"backoff_multiplier"`
	JitterFactor      float64 `json:"jitter_factor"`
}

// PolicyOverride is a partial RetryPolicy. Nil fields keep the value of the
// policy it is merged onto.
type PolicyOverride struct {
	MaxAttempts       *int     `json:"max_attempts,omitempty"`
	BaseDelayMs       *int64   `json:"base_delay_ms,omitempty"`
	MaxDelayMs        *int64   `json:"max_delay_ms,omitempty"`
	BackoffMultiplier *float64 `json:"backoff_multiplier,omitempty"`
	JitterFactor      *float64 `json:"jitter_factor,omitempty"`
}

// DefaultRetryPolicy returns the global default retry policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       3,
		BaseDelayMs:       1000,
		MaxDelayMs:        300000,
		BackoffMultiplier: 2.0,
		JitterFactor:      0.1,
	}
}

// Merge returns p with every non-nil field of o applied.
func (p RetryPolicy) Merge(o *PolicyOverride) RetryPolicy {
	if o == nil {
		return p
	}
	if o.MaxAttempts != nil {
		p.MaxAttempts = *o.MaxAttempts
	}
	if o.BaseDelayMs != nil {
		p.BaseDelayMs = *o.BaseDelayMs
	}
	if o.MaxDelayMs != nil {
		p.MaxDelayMs = *o.MaxDelayMs
	}
	if o.BackoffMultiplier != nil {
		p.BackoffMultiplier = *o.BackoffMultiplier
	}
	if o.JitterFactor != nil {
		p.JitterFactor = *o.JitterFactor
	}
	return p
}

// Validate checks the policy invariants.
func (p RetryPolicy) Validate() error {
	switch {
	case p.MaxAttempts < 1:
		return fmt.Errorf("max_attempts must be >= 1, got %d", p.MaxAttempts)
	case p.BaseDelayMs < 0:
		return fmt.Errorf("base_delay_ms must be >= 0, got %d", p.BaseDelayMs)
	case p.MaxDelayMs < p.BaseDelayMs:
		return fmt.Errorf("max_delay_ms (%d) must be >= base_delay_ms (%d)", p.MaxDelayMs, p.BaseDelayMs)
	case p.BackoffMultiplier <= 0:
		return fmt.Errorf("backoff_multiplier must be > 0, got %v", p.BackoffMultiplier)
	case p.JitterFactor < 0 || p.JitterFactor > 1:
		return fmt.Errorf("jitter_factor must be within [0, 1], got %v", p.JitterFactor)
	}
	return nil
}

// IntPtr, Int64Ptr and Float64Ptr build PolicyOverride literals.
func IntPtr(v int) *int { return &v }

func Int64Ptr(v int64) *int64 { return &v }

func Float64Ptr(v float64) *float64 { return &v }
