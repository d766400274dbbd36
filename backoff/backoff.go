// Package backoff defines retry delay policies for failed jobs. Policies
// carry no mutable state, so a single value can serve every worker.
package backoff

import (
	"math"
	"math/rand/v2"
	"time"
)

// Strategy computes the delay before a retry attempt.
type Strategy interface {
	// Delay returns the wait before retry attempt n. Attempts are
	// 1-indexed: attempt 1 follows the first failure.
	Delay(attempt int) time.Duration
}

// grow returns initial doubled attempt-1 times, clamped to limit.
// A limit of zero means unbounded; int64 overflow also clamps.
func grow(initial, limit time.Duration, attempt int) time.Duration {
	d := initial
	for i := 1; i < attempt; i++ {
		next := d * 2
		if next <= 0 {
			if limit > 0 {
				return limit
			}
			return time.Duration(math.MaxInt64)
		}
		d = next
		if limit > 0 && d >= limit {
			return limit
		}
	}
	if limit > 0 && d > limit {
		return limit
	}
	return d
}

// Constant waits the same Interval before every retry.
type Constant struct {
	Interval time.Duration
}

// NewConstant creates a constant backoff strategy.
func NewConstant(interval time.Duration) *Constant {
	return &Constant{Interval: interval}
}

// Delay returns the fixed interval.
func (c *Constant) Delay(int) time.Duration {
	return c.Interval
}

// Exponential doubles the wait with every attempt, starting at Initial
// and never exceeding Max. A zero Max leaves the growth uncapped.
type Exponential struct {
	Initial time.Duration
	Max     time.Duration
}

// NewExponential creates an exponential backoff strategy.
func NewExponential(initial, maxDelay time.Duration) *Exponential {
	return &Exponential{Initial: initial, Max: maxDelay}
}

// Delay returns Initial * 2^(attempt-1), capped at Max.
func (e *Exponential) Delay(attempt int) time.Duration {
	return grow(e.Initial, e.Max, attempt)
}

// ExponentialWithJitter draws a uniform delay between zero and the
// exponential bound for the attempt. Spreading retries out like this
// keeps a burst of simultaneous failures from retrying in lockstep.
type ExponentialWithJitter struct {
	Initial time.Duration
	Max     time.Duration
}

// NewExponentialWithJitter creates an exponential backoff with full jitter.
func NewExponentialWithJitter(initial, maxDelay time.Duration) *ExponentialWithJitter {
	return &ExponentialWithJitter{Initial: initial, Max: maxDelay}
}

// Delay returns a random duration in [0, min(Initial * 2^(attempt-1), Max)].
func (e *ExponentialWithJitter) Delay(attempt int) time.Duration {
	upper := grow(e.Initial, e.Max, attempt)
	if upper <= 0 {
		return 0
	}
	return rand.N(upper) //nolint:gosec // scheduling jitter, not security sensitive
}

// DefaultStrategy returns the engine default: exponential growth from one
// second to a one minute ceiling, with full jitter.
func DefaultStrategy() Strategy {
	return NewExponentialWithJitter(time.Second, time.Minute)
}
