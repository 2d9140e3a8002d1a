package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/gigmatch-dev/settlement/backend/internal/domain"
	"github.com/jackc/pgx/v5/pgconn"
)

// wrapError translates driver errors into the domain error taxonomy.
// Constraint violations are returned untouched so callers can switch on the
// constraint name.
func wrapError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("%w: %w", domain.ErrNotFound, err)
	case errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "23"):
		return err
	case errors.As(err, &pgErr) && pgErr.Code == "22P02":
		// invalid_text_representation, e.g. a malformed uuid
		return fmt.Errorf("%w: %w", domain.ErrValidation, err)
	default:
		return fmt.Errorf("%w: %w", domain.ErrStorage, err)
	}
}

// IsTransient reports whether err is worth retrying: connection loss before the
// statement reached the server, timeouts, serialization failures and deadlocks.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "40001", pgErr.Code == "40P01":
			return true
		case strings.HasPrefix(pgErr.Code, "08"):
			return true
		}
	}

	return false
}
