package internal

import (
	"context"
	"errors"
	"time"
)

// DefaultAttempts is the retry budget adapters give transient platform
// errors (throttling, conflicts, flaky endpoints).
const DefaultAttempts = 3

// PermanentError marks a failure that will not heal with time; the retry
// loop gives up on it immediately.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so Retry and RetryResult stop retrying it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// Retry calls fn up to maxAttempts times with exponential backoff
// (100ms, 200ms, 400ms, ...). Returns ctx.Err() if the context is cancelled
// before all attempts are exhausted, and the last error otherwise.
func Retry(ctx context.Context, maxAttempts int, fn func() error) error {
	_, err := RetryResult(ctx, maxAttempts, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// RetryResult is like Retry but for functions that return a value.
func RetryResult[T any](ctx context.Context, maxAttempts int, fn func() (T, error)) (T, error) {
	var result T
	var err error
	for i := 0; i < maxAttempts; i++ {
		if result, err = fn(); err == nil {
			return result, nil
		}
		var permanent *PermanentError
		if errors.As(err, &permanent) {
			return result, permanent.Err
		}
		if i < maxAttempts-1 {
			select {
			case <-time.After(time.Duration(100*(1<<i)) * time.Millisecond):
			case <-ctx.Done():
				return result, ctx.Err()
			}
		}
	}
	return result, err
}
