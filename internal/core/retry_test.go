package core

import (
	"regexp"
	"strings"
	"testing"
)

func TestDefaultRetryPolicy_IsValid(t *testing.T) {
	if err := DefaultRetryPolicy().Validate(); err != nil {
		t.Fatalf("default policy invalid: %v", err)
	}
	if got := DefaultRetryPolicy().MaxAttempts; got != 3 {
		t.Errorf("default MaxAttempts = %d, want 3", got)
	}
}

func TestRetryPolicy_Merge(t *testing.T) {
	base := DefaultRetryPolicy()

	merged := base.Merge(&PolicyOverride{
		MaxAttempts: IntPtr(7),
		MaxDelayMs:  Int64Ptr(9000),
	})

	if merged.MaxAttempts != 7 {
		t.Errorf("MaxAttempts = %d, want 7", merged.MaxAttempts)
	}
	if merged.MaxDelayMs != 9000 {
		t.Errorf("MaxDelayMs = %d, want 9000", merged.MaxDelayMs)
	}
	if merged.BaseDelayMs != base.BaseDelayMs {
		t.Errorf("BaseDelayMs = %d, want untouched %d", merged.BaseDelayMs, base.BaseDelayMs)
	}
	if merged.JitterFactor != base.JitterFactor {
		t.Errorf("JitterFactor = %v, want untouched %v", merged.JitterFactor, base.JitterFactor)
	}
	if base.MaxAttempts != 3 {
		t.Error("Merge must not modify the receiver")
	}
}

func TestRetryPolicy_MergeNil(t *testing.T) {
	base := DefaultRetryPolicy()
	if got := base.Merge(nil); got != base {
		t.Errorf("Merge(nil) = %+v, want %+v", got, base)
	}
}

func TestRetryPolicy_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*RetryPolicy)
		wantErr string
	}{
		{"zero attempts", func(p *RetryPolicy) { p.MaxAttempts = 0 }, "max_attempts"},
		{"negative base", func(p *RetryPolicy) { p.BaseDelayMs = -1 }, "base_delay_ms"},
		{"max below base", func(p *RetryPolicy) { p.MaxDelayMs = p.BaseDelayMs - 1 }, "max_delay_ms"},
		{"zero multiplier", func(p *RetryPolicy) { p.BackoffMultiplier = 0 }, "backoff_multiplier"},
		{"jitter above one", func(p *RetryPolicy) { p.JitterFactor = 1.5 }, "jitter_factor"},
		{"negative jitter", func(p *RetryPolicy) { p.JitterFactor = -0.1 }, "jitter_factor"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultRetryPolicy()
			tt.mutate(&p)
			err := p.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestErrorCategory_Matches(t *testing.T) {
	cat := ErrorCategory{
		Name:     "rate_limit",
		Patterns: MustCompilePatterns(`rate.?limit`, `\b429\b`),
		Codes:    []string{"RATE_LIMITED"},
	}

	tests := []struct {
		err  FailureError
		want bool
	}{
		{FailureError{Message: "Rate Limit reached"}, true},
		{FailureError{Message: "HTTP 429 Too Many Requests"}, true},
		{FailureError{Message: "boom", Code: "rate_limited"}, true},
		{FailureError{Message: "boom", Code: "OTHER"}, false},
		{FailureError{Message: "status 4290"}, false},
	}

	for _, tt := range tests {
		if got := cat.Matches(tt.err); got != tt.want {
			t.Errorf("Matches(%+v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestErrorCategory_Validate(t *testing.T) {
	if err := (&ErrorCategory{Name: "x"}).Validate(); err == nil {
		t.Error("expected error for category without patterns or codes")
	}
	if err := (&ErrorCategory{Patterns: []*regexp.Regexp{regexp.MustCompile("x")}}).Validate(); err == nil {
		t.Error("expected error for unnamed category")
	}
	if err := (&ErrorCategory{Name: "x", Codes: []string{"X"}}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestErrorCategory_DeadLetterThreshold(t *testing.T) {
	if got := (&ErrorCategory{}).DeadLetterThreshold(); got != 1 {
		t.Errorf("default threshold = %d, want 1", got)
	}
	if got := (&ErrorCategory{DeadLetterAfter: IntPtr(3)}).DeadLetterThreshold(); got != 3 {
		t.Errorf("threshold = %d, want 3", got)
	}
}

func TestCompilePatterns_Invalid(t *testing.T) {
	if _, err := CompilePatterns("ok", "(unclosed"); err == nil {
		t.Fatal("expected compile error")
	}
}

func TestPatternStrings(t *testing.T) {
	cat := ErrorCategory{Patterns: MustCompilePatterns("econnreset", "timed? ?out")}
	got := cat.PatternStrings()
	if len(got) != 2 || got[0] != "econnreset" || got[1] != "timed? ?out" {
		t.Errorf("PatternStrings() = %v", got)
	}
}
