package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// RetryPolicy bounds how an external capability call is attempted.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts (default 3).
	MaxAttempts int
	// InitialBackoff is the wait before the second attempt (default 100ms).
	InitialBackoff time.Duration
	// MaxBackoff caps the exponential backoff (default 2s).
	MaxBackoff time.Duration
	// Timeout bounds each attempt. Zero means no per-attempt deadline.
	Timeout time.Duration
}

// DefaultRetryPolicy returns the policy applied when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
		Timeout:        60 * time.Second,
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	d := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}

	if p.InitialBackoff <= 0 {
		p.InitialBackoff = d.InitialBackoff
	}

	if p.MaxBackoff <= 0 {
		p.MaxBackoff = d.MaxBackoff
	}

	return p
}

// Retry runs fn until it succeeds, fails with a non-transient error, or the
// attempts are exhausted. Each attempt waits on limiter (when non-nil) and
// runs under the policy's per-attempt timeout. A deadline hit by an attempt
// counts as transient. Failures are returned as *CapabilityError; if the
// parent context ends, its error is returned as is.
func Retry[T any](ctx context.Context, p RetryPolicy, limiter *rate.Limiter, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	p = p.normalized()

	var (
		zero     T
		lastErr  error
		timedOut bool
		backoff  = p.InitialBackoff
	)

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return zero, err
			}
		}

		res, err := runAttempt(ctx, p.Timeout, fn)
		if err == nil {
			return res, nil
		}

		// The caller gave up; don't disguise it as a capability failure.
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}

		lastErr = err
		timedOut = errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrCapabilityTimeout)

		if !timedOut && !IsTransient(err) {
			return zero, &CapabilityError{Op: op, Attempts: attempt, Err: err}
		}

		if attempt == p.MaxAttempts {
			return zero, &CapabilityError{Op: op, Attempts: attempt, Timeout: timedOut, Err: err}
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > p.MaxBackoff {
			backoff = p.MaxBackoff
		}
	}

	return zero, &CapabilityError{Op: op, Attempts: p.MaxAttempts, Timeout: timedOut, Err: lastErr}
}

// runAttempt runs fn on its own goroutine so a callee that ignores its
// context cannot outlive the attempt deadline. A late result is dropped.
func runAttempt[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	var (
		attemptCtx context.Context
		cancel     context.CancelFunc
	)

	if timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		attemptCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	type outcome struct {
		res T
		err error
	}

	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				var zero T
				done <- outcome{res: zero, err: fmt.Errorf("panic recovered: %v", r)}
			}
		}()

		res, err := fn(attemptCtx)
		done <- outcome{res: res, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil && ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			return out.res, errors.Join(context.DeadlineExceeded, out.err)
		}

		return out.res, out.err
	case <-attemptCtx.Done():
		var zero T

		if err := ctx.Err(); err != nil {
			return zero, err
		}

		return zero, errors.Join(context.DeadlineExceeded, fmt.Errorf("attempt exceeded %s", timeout))
	}
}
