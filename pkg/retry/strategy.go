package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/code-payments/wallet-server/pkg/retry/backoff"
)

// Strategy decides whether a failed action should be attempted again.
// attempts counts the executions so far, including the failed one.
// Strategies may sleep before returning.
type Strategy func(attempts uint, err error) bool

// Limit allows at most maxAttempts executions in total.
func Limit(maxAttempts uint) Strategy {
	return func(attempts uint, _ error) bool {
		return attempts < maxAttempts
	}
}

// RetriableErrors only retries errors matching one of targets.
func RetriableErrors(targets ...error) Strategy {
	return func(_ uint, err error) bool {
		return matchesAny(err, targets)
	}
}

// NonRetriableErrors retries everything except errors matching targets.
func NonRetriableErrors(targets ...error) Strategy {
	return func(_ uint, err error) bool {
		return !matchesAny(err, targets)
	}
}

func matchesAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Backoff sleeps for the delay produced by strategy, capped at maxBackoff,
// and always allows the retry.
func Backoff(strategy backoff.Strategy, maxBackoff time.Duration) Strategy {
	return BackoffWithJitter(strategy, maxBackoff, 0)
}

// BackoffWithJitter is Backoff with the capped delay randomly shifted by up
// to jitter (a fraction, e.g. 0.1 for +/-10%) in either direction.
func BackoffWithJitter(strategy backoff.Strategy, maxBackoff time.Duration, jitter float64) Strategy {
	return func(attempts uint, _ error) bool {
		delay := strategy(attempts)
		if delay > maxBackoff {
			delay = maxBackoff
		}
		if jitter > 0 {
			delay = time.Duration(float64(delay) * (1 + jitter*(2*rand.Float64()-1)))
		}
		sleeperImpl.Sleep(delay)
		return true
	}
}

// StatusCoder is implemented by errors that carry a transport status code.
type StatusCoder interface {
	StatusCode() int
}

// RetriableStatusCodes only retries errors exposing one of codes. Errors
// without a status code are not retried.
func RetriableStatusCodes(codes ...int) Strategy {
	return func(_ uint, err error) bool {
		var coder StatusCoder
		if !errors.As(err, &coder) {
			return false
		}
		for _, code := range codes {
			if coder.StatusCode() == code {
				return true
			}
		}
		return false
	}
}

// Context stops retrying once ctx is done. Place it ahead of any backoff.
func Context(ctx context.Context) Strategy {
	return func(uint, error) bool {
		return ctx.Err() == nil
	}
}

type sleeper interface {
	Sleep(time.Duration)
}

type timeSleeper struct{}

func (timeSleeper) Sleep(d time.Duration) { time.Sleep(d) }

var sleeperImpl sleeper = timeSleeper{}
