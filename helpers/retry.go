package helpers

import (
	"context"
	"fmt"
	"time"

	"sjsage522/communitysync/pkg/errors"
)

// SleepFunc waits for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// RetryPolicy bounds how often a retryable operation is attempted
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
	Sleep    SleepFunc
	// Retryable decides which errors earn another attempt; nil means errors.IsRetryable
	Retryable func(error) bool
}

// SleepContext blocks for d unless ctx is cancelled first
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Retry runs fn until it succeeds, returns a non-retryable error,
// or the policy's attempts are used up. The wait before attempt n is
// (n-1)^2 * Backoff, or the server's Retry-After when that is longer.
func Retry(ctx context.Context, policy RetryPolicy, fn func() error) error {
	attempts := policy.Attempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := policy.Sleep
	if sleep == nil {
		sleep = SleepContext
	}
	retryable := policy.Retryable
	if retryable == nil {
		retryable = errors.IsRetryable
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			wait := time.Duration(attempt*attempt) * policy.Backoff
			if pe, ok := errors.As(lastErr); ok && pe.RetryAfter > wait {
				wait = pe.RetryAfter
			}
			if err := sleep(ctx, wait); err != nil {
				return err
			}
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) {
			return lastErr
		}
	}

	if attempts == 1 {
		return lastErr
	}
	return fmt.Errorf("all %d attempts failed, last error: %w", attempts, lastErr)
}
