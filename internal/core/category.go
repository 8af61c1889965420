package core

import (
	"fmt"
	"regexp"
	"strings"
)

// UnknownCategory is the name of the fallback category returned when no
// registered category matches an error.
const UnknownCategory = "unknown"

// ErrorCategory groups job failures that share a retry treatment.
// Categories are evaluated in registration order and the first match wins.
type ErrorCategory struct {
	Name            string
	Patterns        []*regexp.Regexp
	Codes           []string
	Retryable       bool
	Policy          *PolicyOverride
	DeadLetterAfter *int
	Remediator      Remediator
}

// Matches reports whether the category claims the given error. Message
// patterns are checked first, then the error code.
func (c *ErrorCategory) Matches(e FailureError) bool {
	for _, re := range c.Patterns {
		if re.MatchString(e.Message) {
			return true
		}
	}
	if e.Code == "" {
		return false
	}
	for _, code := range c.Codes {
		if strings.EqualFold(code, e.Code) {
			return true
		}
	}
	return false
}

// DeadLetterThreshold returns DeadLetterAfter, defaulting to 1.
func (c *ErrorCategory) DeadLetterThreshold() int {
	if c.DeadLetterAfter != nil {
		return *c.DeadLetterAfter
	}
	return 1
}

// Validate checks that the category can be registered.
func (c *ErrorCategory) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("category name is required")
	}
	if len(c.Patterns) == 0 && len(c.Codes) == 0 {
		return fmt.Errorf("category %q needs at least one pattern or code", c.Name)
	}
	if c.DeadLetterAfter != nil && *c.DeadLetterAfter < 0 {
		return fmt.Errorf("category %q: dead_letter_after must be >= 0", c.Name)
	}
	return nil
}

// CompilePatterns compiles expressions case-insensitively. Plain substrings
// are valid expressions, so "rate limit" matches anywhere in the message.
func CompilePatterns(exprs ...string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, expr := range exprs {
		re, err := regexp.Compile("(?i)" + expr)
		if err != nil {
			return nil, fmt.Errorf("compile pattern %q: %w", expr, err)
		}
		out = append(out, re)
	}
	return out, nil
}

// MustCompilePatterns is CompilePatterns for static tables.
func MustCompilePatterns(exprs ...string) []*regexp.Regexp {
	out, err := CompilePatterns(exprs...)
	if err != nil {
		panic(err)
	}
	return out
}

// PatternStrings returns the source of the category's patterns without the
// case-insensitivity flag.
func (c *ErrorCategory) PatternStrings() []string {
	out := make([]string, len(c.Patterns))
	for i, re := range c.Patterns {
		out[i] = strings.TrimPrefix(re.String(), "(?i)")
	}
	return out
}
