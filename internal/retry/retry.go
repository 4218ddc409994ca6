// Package retry provides a single generic bounded-retry wrapper, used by the
// size verifier so the attempt count and backoff delay have one source of
// truth instead of being inlined at every call site.
package retry

import (
	"context"
	"time"
)

// Do calls fn up to attempts times (attempts >= 1), waiting delay between
// tries. It returns as soon as fn succeeds (err == nil), returns fn's result
// immediately when fn returns a nil error on any attempt, and returns the
// last error if every attempt fails. The context is checked between
// attempts so a caller can abandon the retry loop early.
func Do[T any](ctx context.Context, attempts int, delay time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	var (
		result T
		err    error
	)
	if attempts < 1 {
		attempts = 1
	}
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				var zero T
				return zero, ctx.Err()
			case <-time.After(delay):
			}
		}
		result, err = fn(ctx)
		if err == nil {
			return result, nil
		}
	}
	return result, err
}
