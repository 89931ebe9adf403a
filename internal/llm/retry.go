package llm

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultMaxAttempts = 2
	DefaultRetryDelay  = 2 * time.Second
)

// RetryCondition reports whether a failed attempt should be retried.
type RetryCondition func(err error) bool

// RetryAll retries every failure.
func RetryAll(error) bool { return true }

// RetryTransient retries only failures that can plausibly succeed on a
// second try: transport errors, rate limiting and server errors.
func RetryTransient(err error) bool {
	switch KindOf(err) {
	case KindNetwork, KindInvalidResponse, KindRateLimited, KindServerError:
		return true
	default:
		return false
	}
}

// RetryPolicy bounds how often an analysis is attempted. Attempts are
// counted inclusive of the first try.
type RetryPolicy struct {
	MaxAttempts int
	// Delay is waited between attempts. It is fixed: no backoff, no jitter.
	Delay time.Duration
	// RetryIf decides whether a failure is retried. Nil retries everything.
	RetryIf RetryCondition
}

// DefaultRetryPolicy makes two attempts two seconds apart, retrying any
// failure.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultMaxAttempts,
		Delay:       DefaultRetryDelay,
		RetryIf:     RetryAll,
	}
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

func (p RetryPolicy) shouldRetry(err error) bool {
	if p.RetryIf == nil {
		return true
	}
	return p.RetryIf(err)
}

// retry runs op until it succeeds, the policy is exhausted, the failure is not
// retryable, or ctx is done. The error of the last attempt is returned.
func retry[T any](ctx context.Context, p RetryPolicy, op func(ctx context.Context, attempt int) (T, error)) (T, error) {
	var zero T
	var lastErr error

	attempts := p.attempts()
	for attempt := 1; attempt <= attempts; attempt++ {
		res, err := op(ctx, attempt)
		if err == nil {
			return res, nil
		}
		lastErr = err

		if attempt == attempts || !p.shouldRetry(err) {
			break
		}
		if err := sleep(ctx, p.Delay); err != nil {
			return zero, err
		}
	}

	if lastErr == nil {
		lastErr = ErrUnknown
	}
	return zero, lastErr
}

// sleep waits for d or until ctx is done, whichever comes first.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		if err := ctx.Err(); err != nil {
			return newError(KindNetwork, err)
		}
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return newError(KindNetwork, ctx.Err())
	case <-t.C:
		return nil
	}
}

// isContextErr reports whether err came from a cancelled or expired context.
func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func logFailure(logger zerolog.Logger, err error, start time.Time) {
	if isContextErr(err) {
		logger.Info().Err(err).Dur("elapsed", time.Since(start)).Msg("analysis cancelled")
		return
	}
	logger.Error().
		Err(err).
		Str("kind", KindOf(err).String()).
		Dur("elapsed", time.Since(start)).
		Msg("analysis failed")
}
