// Package backoff provides delay schedules for retry strategies.
package backoff

import (
	"math"
	"time"
)

// Strategy returns the delay before the next attempt. Attempts start at 1.
type Strategy func(attempts uint) time.Duration

// Constant always waits interval.
func Constant(interval time.Duration) Strategy {
	return func(uint) time.Duration {
		return interval
	}
}

// Linear waits baseDelay * attempts.
//
// Ex. Linear(2*time.Second) = 2s, 4s, 6s, 8s, ...
func Linear(baseDelay time.Duration) Strategy {
	return func(attempts uint) time.Duration {
		return clamp(float64(baseDelay) * float64(attempts))
	}
}

// Exponential waits baseDelay * base^(attempts-1).
//
// Ex. Exponential(2*time.Second, 3) = 2s, 6s, 18s, 54s, ...
func Exponential(baseDelay time.Duration, base float64) Strategy {
	return func(attempts uint) time.Duration {
		if attempts == 0 {
			attempts = 1
		}
		return clamp(float64(baseDelay) * math.Pow(base, float64(attempts-1)))
	}
}

// BinaryExponential is Exponential with a base of 2.
//
// Ex. BinaryExponential(100*time.Millisecond) = 100ms, 200ms, 400ms, ...
func BinaryExponential(baseDelay time.Duration) Strategy {
	return Exponential(baseDelay, 2)
}

func clamp(delay float64) time.Duration {
	if delay >= math.MaxInt64 || math.IsInf(delay, 1) || math.IsNaN(delay) {
		return math.MaxInt64
	}
	if delay < 0 {
		return 0
	}
	return time.Duration(delay)
}
