// Package bounded wraps every call to an external collaborator in a timeout
// and retry policy, and provides the bounded fan-out used by parallel stages.
package bounded

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/jackzampolin/popsci/internal/failure"
)

// Policy describes how one external call is bounded.
type Policy struct {
	// Timeout caps each attempt. Zero means the parent context alone bounds it.
	Timeout time.Duration
	// Attempts is the total number of tries (default 1).
	Attempts uint
	// Delay is the base for exponential backoff between attempts (default 1s).
	Delay time.Duration
	// MaxDelay caps backoff (default 30s).
	MaxDelay time.Duration
	// RetryIf decides whether an error is worth another attempt.
	// Nil retries everything except the parent context ending.
	RetryIf func(error) bool
	// OnRetry is called before each retry.
	OnRetry func(attempt uint, err error)
}

// Once returns a single-attempt policy with the given timeout.
func Once(timeout time.Duration) Policy {
	return Policy{Timeout: timeout, Attempts: 1}
}

// Backoff returns a policy with exponential backoff.
func Backoff(timeout time.Duration, attempts uint, delay time.Duration) Policy {
	return Policy{Timeout: timeout, Attempts: attempts, Delay: delay}
}

// ErrTimeout marks an attempt that outlived its policy timeout.
var ErrTimeout = errors.New("call timed out")

// Call runs fn under policy p. The returned error is the last attempt's error.
// A RateLimited error carrying a RetryAfter hint delays the next attempt by that hint.
func Call[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	if p.Attempts == 0 {
		p.Attempts = 1
	}
	if p.Delay <= 0 {
		p.Delay = time.Second
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 30 * time.Second
	}

	attempt := func() (T, error) {
		callCtx := ctx
		cancel := context.CancelFunc(func() {})
		if p.Timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, p.Timeout)
		}
		defer cancel()

		v, err := fn(callCtx)
		if err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w after %s: %w", ErrTimeout, p.Timeout, err)
		}
		return v, err
	}

	opts := []retry.Option{
		retry.Context(ctx),
		retry.Attempts(p.Attempts),
		retry.Delay(p.Delay),
		retry.MaxDelay(p.MaxDelay),
		retry.DelayType(delayFor),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			if ctx.Err() != nil {
				return false
			}
			if p.RetryIf != nil {
				return p.RetryIf(err)
			}
			return true
		}),
	}
	if p.OnRetry != nil {
		opts = append(opts, retry.OnRetry(p.OnRetry))
	}

	return retry.DoWithData(attempt, opts...)
}

// Do is Call for functions without a result value.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	_, err := Call(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// delayFor honors a collaborator's RetryAfter hint, otherwise backs off exponentially.
func delayFor(n uint, err error, cfg *retry.Config) time.Duration {
	if fe, ok := failure.As(err); ok && fe.Kind == failure.RateLimited && fe.RetryAfter > 0 {
		return fe.RetryAfter
	}
	return retry.BackOffDelay(n, err, cfg)
}
