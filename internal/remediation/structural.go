// Package remediation holds category-specific hooks that run before a retry
// is committed. A hook may enrich the job payload for the next attempt and
// may veto the retry.
package remediation

import (
	"github.com/openjobspec/ojs-retry/internal/core"
)

// Payload keys written by StructuralRepair.
const (
	KeyRepairAttempts = "repair_attempts"
	KeyRepairContext  = "repair_context"
	KeyLastOutput     = "last_output"
)

const repairInstructions = "The previous output failed structural validation. " +
	"Return output that satisfies the declared schema; keep valid parts unchanged."

// StructuralRepair turns a structural validation failure into a repair pass:
// it attaches the failed output and error to the payload so the next attempt
// can fix it, and vetoes once MaxRepairs passes have been spent.
type StructuralRepair struct {
	MaxRepairs int
}

// NewStructuralRepair creates a StructuralRepair allowing maxRepairs passes.
func NewStructuralRepair(maxRepairs int) *StructuralRepair {
	if maxRepairs < 0 {
		maxRepairs = 0
	}
	return &StructuralRepair{MaxRepairs: maxRepairs}
}

// Attempt implements core.Remediator. Calling it again for the same attempt
// number does not spend another repair pass.
func (s *StructuralRepair) Attempt(err core.FailureError, failure *core.JobFailure) (bool, error) {
	if failure.Payload == nil {
		failure.Payload = make(map[string]any)
	}

	used := toInt(failure.Payload[KeyRepairAttempts])
	if prev, ok := failure.Payload[KeyRepairContext].(map[string]any); ok {
		if attempt, ok := prev["attempt"]; ok && toInt(attempt) == failure.AttemptsMade {
			return used <= s.MaxRepairs, nil
		}
	}
	if used >= s.MaxRepairs {
		return false, nil
	}

	repair := map[string]any{
		"attempt":        failure.AttemptsMade,
		"previous_error": core.SummarizeError(err.Message),
		"instructions":   repairInstructions,
	}
	if out, ok := failure.Payload[KeyLastOutput]; ok {
		repair["previous_output"] = out
	}
	failure.Payload[KeyRepairContext] = repair
	failure.Payload[KeyRepairAttempts] = used + 1
	return true, nil
}

// toInt reads counters that may have round-tripped through JSON.
func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	case float64:
		return int(n)
	case float32:
		return int(n)
	default:
		return 0
	}
}
