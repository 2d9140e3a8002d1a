package settlement

import (
	"context"
	"errors"

	"github.com/gigmatch-dev/settlement/backend/internal/domain"
	"github.com/gigmatch-dev/settlement/backend/internal/retry"
)

func isStorageError(err error) bool {
	return errors.Is(err, domain.ErrStorage)
}

// withRetry runs fn again after storage errors. Only idempotent operations may
// be wrapped in it.
func withRetry[T any](ctx context.Context, s *Service, op string, fn func(context.Context) (T, error)) (T, error) {
	return retry.Do(ctx, s.retryPolicy, op, isStorageError, fn)
}
