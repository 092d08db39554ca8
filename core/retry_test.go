package core

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func fastPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0

	res, err := Retry(context.Background(), fastPolicy(), nil, "model.generate", func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", Transient(errors.New("connection reset"))
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", res)
	assert.Equal(t, 3, calls)
}

func TestRetry_DoesNotRetryPermanentErrors(t *testing.T) {
	calls := 0

	_, err := Retry(context.Background(), fastPolicy(), nil, "tool.invoke", func(context.Context) (int, error) {
		calls++
		return 0, errors.New("bad request")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, errors.Is(err, ErrCapability))
	assert.False(t, errors.Is(err, ErrCapabilityTimeout))

	var ce *CapabilityError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "tool.invoke", ce.Op)
	assert.Equal(t, 1, ce.Attempts)
}

func TestRetry_AttemptTimeoutSurfacesAsCapabilityTimeout(t *testing.T) {
	p := fastPolicy()
	p.Timeout = 5 * time.Millisecond
	var calls atomic.Int32

	_, err := Retry(context.Background(), p, nil, "model.generate", func(ctx context.Context) (string, error) {
		calls.Add(1)
		<-ctx.Done()
		return "", ctx.Err()
	})

	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.True(t, errors.Is(err, ErrCapabilityTimeout))
}

func TestRetry_AttemptTimeoutBoundsCallsIgnoringContext(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, Timeout: 20 * time.Millisecond}

	start := time.Now()
	res, err := Retry(context.Background(), p, nil, "tool.slow", func(context.Context) (string, error) {
		time.Sleep(300 * time.Millisecond)
		return "late", nil
	})
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Empty(t, res)
	assert.Less(t, elapsed, 250*time.Millisecond)
	assert.ErrorIs(t, err, ErrCapabilityTimeout)

	var ce *CapabilityError
	require.True(t, errors.As(err, &ce))
	assert.True(t, ce.Timeout)
	assert.Equal(t, 2, ce.Attempts)
}

func TestRetry_ParentCancellationIsReturnedAsIs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Retry(ctx, fastPolicy(), nil, "model.generate", func(context.Context) (string, error) {
		t.Fatal("must not be called")
		return "", nil
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetry_WaitsOnLimiter(t *testing.T) {
	limiter := rate.NewLimiter(rate.Inf, 1)

	res, err := Retry(context.Background(), fastPolicy(), limiter, "op", func(context.Context) (int, error) {
		return 7, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 7, res)
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(errors.New("x")))
	assert.True(t, IsTransient(Transient(errors.New("x"))))
	assert.True(t, IsTransient(context.DeadlineExceeded))
	assert.Nil(t, Transient(nil))
}

func TestValidationErrorMatchesSentinel(t *testing.T) {
	err := error(&ValidationError{Field: "location", Message: "required field is missing"})
	assert.True(t, errors.Is(err, ErrValidation))
	assert.Contains(t, err.Error(), "location")

	unhandled := error(&UnhandledEventError{Step: "chat", Event: EventIntroComplete})
	assert.True(t, errors.Is(unhandled, ErrValidation))
}
