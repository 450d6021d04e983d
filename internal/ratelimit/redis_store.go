package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps last-seen timestamps in Redis, sharing the cooldown
// window across processes. Expiry rides on the key TTL.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore constructs a store over an established client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "ratelimit:"}
}

// LastSeen returns the recorded timestamp for key.
func (s *RedisStore) LastSeen(ctx context.Context, key string) (time.Time, bool, error) {
	val, err := s.client.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	at, err := time.Parse(time.RFC3339Nano, val)
	if err != nil {
		return time.Time{}, false, err
	}
	return at, true, nil
}

// Touch records a timestamp for key with the window as TTL.
func (s *RedisStore) Touch(ctx context.Context, key string, at time.Time, window time.Duration) error {
	return s.client.Set(ctx, s.prefix+key, at.Format(time.RFC3339Nano), window).Err()
}

// Reset removes the entry for key.
func (s *RedisStore) Reset(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}
