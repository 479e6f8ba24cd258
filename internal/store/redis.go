package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/authgate/authgate/pkg/redis"
)

const keyPrefix = "authgate:refresh:"

// replaceScript compares the stored token with the presented one and
// overwrites it in a single server-side step, closing the TOCTOU window
// between read and write.
//
// Returns 1 on success, 0 on mismatch, -1 when no token is stored.
const replaceScript = `
local current = redis.call('GET', KEYS[1])
if not current then
  return -1
end
if current ~= ARGV[1] then
  return 0
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`

// RedisStore is a RefreshTokenStore backed by Redis. The key TTL tracks
// the refresh token lifetime so logged-out slots expire on their own.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed store. ttl should match the
// refresh token TTL.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) key(userID string) string {
	return keyPrefix + userID
}

func (s *RedisStore) Put(ctx context.Context, userID, token string) error {
	if err := s.client.Set(ctx, s.key(userID), token, s.ttl).Err(); err != nil {
		return fmt.Errorf("store: redis put: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, userID string) (string, error) {
	token, err := s.client.Get(ctx, s.key(userID)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("store: redis get: %w", err)
	}
	return token, nil
}

func (s *RedisStore) Delete(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, s.key(userID)).Err(); err != nil {
		return fmt.Errorf("store: redis delete: %w", err)
	}
	return nil
}

func (s *RedisStore) Replace(ctx context.Context, userID, old, next string) error {
	res, err := s.client.EvalWithFallback(ctx, "refresh_replace", replaceScript,
		[]string{s.key(userID)}, old, next, s.ttl.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("store: redis replace: %w", err)
	}
	switch res {
	case 1:
		return nil
	case 0:
		return ErrTokenMismatch
	default:
		return ErrNotFound
	}
}
