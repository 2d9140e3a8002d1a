// Package idempotency remembers the response to a request carrying an
// Idempotency-Key so that a retry replays it instead of running again.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const inProgress = "in_progress"

type State int

const (
	// Started means the caller owns the key and must Complete or Release it.
	Started State = iota
	// InProgress means another request with the same key has not finished yet.
	InProgress
	// Completed means a stored response is available for replay.
	Completed
)

// Response is what gets replayed.
type Response struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

// Client is the subset of redis.Cmdable the store needs.
type Client interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type Store struct {
	client     Client
	expiration time.Duration
}

func NewStore(client Client, expiration time.Duration) *Store {
	return &Store{
		client:     client,
		expiration: expiration,
	}
}

// Begin claims key. When the key was already claimed it reports whether the
// earlier request is still running or returns its stored response.
func (s *Store) Begin(ctx context.Context, key string) (State, *Response, error) {
	claimed, err := s.client.SetNX(ctx, key, inProgress, s.expiration).Result()
	if err != nil {
		return 0, nil, err
	}
	if claimed {
		return Started, nil, nil
	}

	raw, err := s.client.Get(ctx, key).Result()
	switch {
	case errors.Is(err, redis.Nil):
		// expired between SETNX and GET; try once more
		claimed, err := s.client.SetNX(ctx, key, inProgress, s.expiration).Result()
		if err != nil {
			return 0, nil, err
		}
		if claimed {
			return Started, nil, nil
		}
		return InProgress, nil, nil
	case err != nil:
		return 0, nil, err
	}

	if raw == inProgress {
		return InProgress, nil, nil
	}

	resp := &Response{}
	if err := json.Unmarshal([]byte(raw), resp); err != nil {
		return 0, nil, err
	}
	return Completed, resp, nil
}

func (s *Store) Complete(ctx context.Context, key string, resp Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, data, s.expiration).Err()
}

// Release gives the key up so the request can be retried.
func (s *Store) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}
