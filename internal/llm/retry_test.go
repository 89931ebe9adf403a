package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetry_SucceedsAfterFailure(t *testing.T) {
	var calls []int
	res, err := retry(context.Background(), RetryPolicy{MaxAttempts: 3, Delay: time.Millisecond},
		func(ctx context.Context, attempt int) (string, error) {
			calls = append(calls, attempt)
			if attempt < 2 {
				return "", ErrServerError
			}
			return "ok", nil
		})

	require.NoError(t, err)
	assert.Equal(t, "ok", res)
	assert.Equal(t, []int{1, 2}, calls)
}

func TestRetry_ReturnsLastError(t *testing.T) {
	first := statusError(KindServerError, 500)
	last := statusError(KindRateLimited, 429)

	_, err := retry(context.Background(), RetryPolicy{MaxAttempts: 2},
		func(ctx context.Context, attempt int) (int, error) {
			if attempt == 1 {
				return 0, first
			}
			return 0, last
		})

	assert.Same(t, last, err)
}

func TestRetry_ConditionStopsEarly(t *testing.T) {
	calls := 0
	_, err := retry(context.Background(), RetryPolicy{MaxAttempts: 5, RetryIf: RetryTransient},
		func(ctx context.Context, attempt int) (int, error) {
			calls++
			return 0, ErrInvalidCredential
		})

	assert.True(t, errors.Is(err, ErrInvalidCredential))
	assert.Equal(t, 1, calls)
}

func TestRetry_ZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	_, _ = retry(context.Background(), RetryPolicy{},
		func(ctx context.Context, attempt int) (int, error) {
			calls++
			return 0, ErrNetwork
		})
	assert.Equal(t, 1, calls)
}

func TestRetry_CancelDuringDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	start := time.Now()
	_, err := retry(ctx, RetryPolicy{MaxAttempts: 2, Delay: time.Minute},
		func(ctx context.Context, attempt int) (int, error) {
			calls++
			go cancel()
			return 0, ErrServerError
		})

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, 1, calls)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, KindNetwork, KindOf(err))
}

func TestRetryTransient(t *testing.T) {
	assert.True(t, RetryTransient(ErrNetwork))
	assert.True(t, RetryTransient(ErrRateLimited))
	assert.True(t, RetryTransient(statusError(KindServerError, 503)))
	assert.False(t, RetryTransient(ErrInvalidCredential))
	assert.False(t, RetryTransient(ErrIncompleteResponse))
	assert.False(t, RetryTransient(errors.New("plain")))
}
