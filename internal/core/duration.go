package core

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var isoDurationPattern = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+(?:\.\d+)?)S)?$`)

// ParsePolicyDuration parses a delay given either as an ISO 8601 time
// duration (PT2S, PT5M, PT1H30M) or as a Go duration (2s, 1m30s).
// Zero is allowed since a base delay of zero is a valid policy.
func ParsePolicyDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}
	if !strings.HasPrefix(strings.ToUpper(s), "PT") {
		d, err := time.ParseDuration(s)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", s, err)
		}
		if d < 0 {
			return 0, fmt.Errorf("negative duration %q", s)
		}
		return d, nil
	}

	m := isoDurationPattern.FindStringSubmatch(strings.ToUpper(s))
	if m == nil || strings.ToUpper(s) == "PT" {
		return 0, fmt.Errorf("invalid ISO 8601 duration: %q", s)
	}

	var d time.Duration
	if m[1] != "" {
		h, _ := strconv.Atoi(m[1])
		d += time.Duration(h) * time.Hour
	}
	if m[2] != "" {
		mins, _ := strconv.Atoi(m[2])
		d += time.Duration(mins) * time.Minute
	}
	if m[3] != "" {
		secs, _ := strconv.ParseFloat(m[3], 64)
		d += time.Duration(secs * float64(time.Second))
	}
	return d, nil
}
