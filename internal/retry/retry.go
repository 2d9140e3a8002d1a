// Package retry runs idempotent operations again after transient failures,
// using one backoff policy for the whole service.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy is the number of attempts and the wait before the second one. Later
// waits grow exponentially.
type Policy struct {
	Attempts int
	Interval time.Duration
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = max(p.Interval, time.Millisecond)
	b.MaxInterval = 30 * b.InitialInterval
	b.MaxElapsedTime = 0

	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(max(1, p.Attempts)-1)), ctx)
}

// Do calls fn until it succeeds, returns an error retryable rejects, or the
// attempts run out. The last error is returned; when ctx ends during a wait it
// is joined with ctx.Err().
func Do[T any](ctx context.Context, p Policy, op string, retryable func(error) bool, fn func(context.Context) (T, error)) (T, error) {
	var lastErr error
	attempt := 0

	operation := func() (T, error) {
		attempt++
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if !retryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}

	notify := func(err error, wait time.Duration) {
		slog.Warn("retrying", "op", op, "attempt", attempt, "wait", wait, "error", err)
	}

	v, err := backoff.RetryNotifyWithData(operation, p.backOff(ctx), notify)
	if err != nil && ctx.Err() != nil && lastErr != nil && !errors.Is(lastErr, ctx.Err()) {
		return v, errors.Join(lastErr, ctx.Err())
	}

	return v, err
}
