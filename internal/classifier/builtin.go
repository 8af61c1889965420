package classifier

import (
	"github.com/openjobspec/ojs-retry/internal/core"
	"github.com/openjobspec/ojs-retry/internal/remediation"
)

// Built-in category names.
const (
	NetworkTimeout            = "network_timeout"
	RateLimit                 = "rate_limit"
	TransientParseError       = "transient_parse_error"
	ContentPolicyViolation    = "content_policy_violation"
	StructuralValidationError = "structural_validation_error"
	AuthError                 = "auth_error"
	ServerError               = "server_error"
	InputValidationError      = "input_validation_error"
	ResourceExhausted         = "resource_exhausted"
)

func policy(maxAttempts int, baseMs, maxMs int64, mult float64) *core.PolicyOverride {
	return &core.PolicyOverride{
		MaxAttempts:       core.IntPtr(maxAttempts),
		BaseDelayMs:       core.Int64Ptr(baseMs),
		MaxDelayMs:        core.Int64Ptr(maxMs),
		BackoffMultiplier: core.Float64Ptr(mult),
	}
}

func deadLetterAfter(n int) *int { return &n }

// statusPattern matches an HTTP status of the given class only where it reads
// as a status: at the start of the message or after a status keyword. Bare
// numbers in paths, ports and sizes do not match.
func statusPattern(class string) string {
	return `(?:^\s*|\b(?:status|http|code|response)\D{0,3})` + class + `\d\d\b`
}

// Builtins returns the built-in categories in evaluation order. Status-code
// families come last so that named causes win: a 429 is a rate limit and an
// out-of-memory error is resource exhaustion before either is a 4xx or 5xx.
func Builtins() []core.ErrorCategory {
	return []core.ErrorCategory{
		{
			Name: NetworkTimeout,
			Patterns: core.MustCompilePatterns(
				`econnreset`, `econnrefused`, `etimedout`, `timed? ?out`,
				`socket hang up`, `network (is )?unreachable`,
				`connection (reset|refused|closed)`, `enotfound`, `eai_again`,
				`deadline exceeded`, `broken pipe`,
			),
			Codes:     []string{"ETIMEDOUT", "ECONNRESET", "ECONNREFUSED"},
			Retryable: true,
			Policy:    policy(5, 2000, 60000, 1.5),
		},
		{
			Name:      RateLimit,
			Patterns:  core.MustCompilePatterns(`\b429\b`, `rate.?limit`, `too many requests`),
			Codes:     []string{"429", "RATE_LIMITED"},
			Retryable: true,
			Policy:    policy(10, 5000, 300000, 2),
		},
		{
			Name: TransientParseError,
			Patterns: core.MustCompilePatterns(
				`unexpected token`, `json parse`, `invalid json`,
				`malformed (json|output|response)`, `unexpected end of (json|input)`,
				`failed to parse`,
			),
			Codes:     []string{"PARSE_ERROR"},
			Retryable: true,
			Policy:    policy(3, 500, 5000, 1.5),
		},
		{
			Name:            ContentPolicyViolation,
			Patterns:        core.MustCompilePatterns(`content.?policy`, `content.?filter`, `safety filter`, `flagged`),
			Codes:           []string{"CONTENT_POLICY_VIOLATION"},
			DeadLetterAfter: deadLetterAfter(1),
		},
		// Non-retryable, so decisions stop before the repair hook runs. A
		// catalog entry with retryable: true enables the policy and hook.
		{
			Name: StructuralValidationError,
			Patterns: core.MustCompilePatterns(
				`schema validation`, `structural validation`,
				`missing required (field|property)`, `does not match schema`,
			),
			Codes:           []string{"SCHEMA_VALIDATION"},
			Policy:          policy(2, 1000, 10000, 2),
			DeadLetterAfter: deadLetterAfter(1),
			Remediator:      remediation.NewStructuralRepair(remediation.DefaultMaxRepairs),
		},
		{
			Name: AuthError,
			Patterns: core.MustCompilePatterns(
				`invalid api key`, `unauthori[sz]ed`, `\b401\b`, `\b403\b`, `forbidden`,
				`authentication`, `permission denied`, `invalid.?token`,
			),
			Codes:           []string{"401", "403", "UNAUTHENTICATED", "PERMISSION_DENIED"},
			DeadLetterAfter: deadLetterAfter(1),
		},
		{
			Name: ResourceExhausted,
			Patterns: core.MustCompilePatterns(
				`resource.?exhausted`, `out of memory`, `enospc`, `no space left`,
				`quota`, `\bcapacity\b`,
			),
			Codes:     []string{"RESOURCE_EXHAUSTED"},
			Retryable: true,
			Policy:    policy(3, 30000, 300000, 2),
		},
		{
			Name: ServerError,
			Patterns: core.MustCompilePatterns(
				statusPattern("5"), `internal server error`, `bad gateway`,
				`service unavailable`, `overloaded`,
			),
			Codes:     []string{"500", "502", "503", "504", "INTERNAL", "UNAVAILABLE"},
			Retryable: true,
			Policy:    policy(4, 3000, 60000, 2),
		},
		{
			Name: InputValidationError,
			Patterns: core.MustCompilePatterns(
				statusPattern("4"), `bad request`, `invalid (input|argument|parameter|request)`,
				`unprocessable`,
			),
			Codes:           []string{"400", "404", "422", "INVALID_ARGUMENT"},
			DeadLetterAfter: deadLetterAfter(1),
		},
	}
}
