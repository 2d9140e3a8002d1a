// Package directory resolves user ids to display names for administrator views.
package directory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gigmatch-dev/settlement/backend/internal/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type UserGetter interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// Cache is the subset of redis.Cmdable used for name caching.
type Cache interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

type Directory struct {
	users      UserGetter
	cache      Cache
	expiration time.Duration
}

// New builds a Directory. A nil cache disables caching.
func New(users UserGetter, cache Cache, expiration time.Duration) *Directory {
	return &Directory{
		users:      users,
		cache:      cache,
		expiration: expiration,
	}
}

func cacheKey(userID uuid.UUID) string {
	return fmt.Sprintf("user_%s_display_name", userID)
}

// DisplayName returns the user's full name, falling back to the username.
// Cache failures are logged and the database is consulted instead.
func (d *Directory) DisplayName(ctx context.Context, userID uuid.UUID) (string, error) {
	key := cacheKey(userID)

	if d.cache != nil {
		name, err := d.cache.Get(ctx, key).Result()
		switch {
		case err == nil:
			return name, nil
		case errors.Is(err, redis.Nil):
		default:
			slog.Warn("failed to read display name from cache", "user_id", userID, "error", err)
		}
	}

	user, err := d.users.GetUserByID(ctx, userID)
	if err != nil {
		return "", err
	}

	name := user.FullName
	if name == "" {
		name = user.Username
	}

	if d.cache != nil {
		if err := d.cache.Set(ctx, key, name, d.expiration).Err(); err != nil {
			slog.Warn("failed to cache display name", "user_id", userID, "error", err)
		}
	}

	return name, nil
}
