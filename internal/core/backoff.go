package core

import (
	"math"
	"math/rand/v2"
)

// ComputeDelay returns the retry delay in milliseconds for a job that has
// already made attemptsMade attempts.
//
// delay = min(base * multiplier^attemptsMade, max), then symmetric jitter of
// +/- jitterFactor is applied. The result is kept within [0, max].
// rnd must return values in [0, 1); nil uses math/rand.
func ComputeDelay(attemptsMade int, policy RetryPolicy, rnd func() float64) int64 {
	if attemptsMade < 0 {
		attemptsMade = 0
	}

	delay := float64(policy.BaseDelayMs) * math.Pow(policy.BackoffMultiplier, float64(attemptsMade))
	if math.IsNaN(delay) || delay > float64(policy.MaxDelayMs) {
		delay = float64(policy.MaxDelayMs)
	}

	if policy.JitterFactor > 0 {
		if rnd == nil {
			rnd = rand.Float64
		}
		// Map [0,1) to [-1,1).
		offset := (rnd() - 0.5) * 2.0
		delay += delay * policy.JitterFactor * offset
	}

	if delay > float64(policy.MaxDelayMs) {
		delay = float64(policy.MaxDelayMs)
	}
	if delay < 0 {
		return 0
	}
	return int64(math.Round(delay))
}

// DelayBounds returns the inclusive range ComputeDelay can produce for the
// given attempt count.
func DelayBounds(attemptsMade int, policy RetryPolicy) (lo, hi int64) {
	noJitter := policy
	noJitter.JitterFactor = 0
	center := float64(ComputeDelay(attemptsMade, noJitter, nil))
	const eps = 1e-9
	lo = int64(math.Floor(center*(1-policy.JitterFactor) + eps))
	hi = int64(math.Ceil(center*(1+policy.JitterFactor) - eps))
	if lo < 0 {
		lo = 0
	}
	if hi > policy.MaxDelayMs {
		hi = policy.MaxDelayMs
	}
	return lo, hi
}
