// Package backoff computes the delay before a job retry, given the
// attempt number the worker pool is about to re-push.
package backoff

import (
	"math"
	"math/rand/v2"
	"time"
)

// Strategy computes the delay before a retry attempt.
type Strategy interface {
	// Delay returns how long to wait before retry attempt n (1-indexed).
	// Attempt 1 is the first retry after the initial failure.
	Delay(attempt int) time.Duration
}

// Constant always returns the same delay regardless of attempt number.
// Tests use it to make retry timing deterministic when overriding a
// pool's default strategy via WithBackoff.
type Constant struct {
	Interval time.Duration
}

// NewConstant creates a constant backoff strategy.
func NewConstant(interval time.Duration) *Constant {
	return &Constant{Interval: interval}
}

// Delay returns the fixed interval.
func (c *Constant) Delay(_ int) time.Duration {
	return c.Interval
}

// fullJitter implements the worker pool's retry formula: delay =
// uniform(0, min(maxInterval, baseDelay*2^n)) for the nth retry. Full
// jitter, not decorrelated, spreads retries across the whole window
// instead of clustering them near the exponential curve.
type fullJitter struct {
	baseDelay   time.Duration
	maxInterval time.Duration
}

// Delay returns a random duration in [0, min(maxInterval, baseDelay*2^attempt)].
func (f fullJitter) Delay(attempt int) time.Duration {
	upperBound := float64(f.baseDelay) * math.Pow(2, float64(attempt))
	if maxInterval := float64(f.maxInterval); upperBound > maxInterval {
		upperBound = maxInterval
	}

	return time.Duration(rand.Float64() * upperBound) //nolint:gosec // jitter intentionally uses non-crypto rand
}

// Default returns the worker pool's default retry strategy: full-jitter
// exponential backoff with a 250ms base delay and a 60s cap.
func Default() Strategy {
	return fullJitter{baseDelay: 250 * time.Millisecond, maxInterval: 60 * time.Second}
}
