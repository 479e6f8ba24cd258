package store

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authgate/authgate/pkg/redis"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(redis.NewFromClient(client), time.Hour), mr
}

func TestRedisStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestRedisStore(t)

	_, err := s.Get(ctx, "u1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Put(ctx, "u1", "tok-1"))
	got, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", got)

	require.NoError(t, s.Delete(ctx, "u1"))
	_, err = s.Get(ctx, "u1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStoreKeyExpiry(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestRedisStore(t)

	require.NoError(t, s.Put(ctx, "u1", "tok-1"))
	mr.FastForward(2 * time.Hour)

	_, err := s.Get(ctx, "u1")
	assert.ErrorIs(t, err, ErrNotFound, "slot must expire with the refresh TTL")
}

func TestRedisStoreReplace(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestRedisStore(t)

	err := s.Replace(ctx, "u1", "tok-1", "tok-2")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Put(ctx, "u1", "tok-1"))

	err = s.Replace(ctx, "u1", "stale", "tok-2")
	assert.ErrorIs(t, err, ErrTokenMismatch)
	got, _ := s.Get(ctx, "u1")
	assert.Equal(t, "tok-1", got, "failed replace must not modify the slot")

	require.NoError(t, s.Replace(ctx, "u1", "tok-1", "tok-2"))
	got, _ = s.Get(ctx, "u1")
	assert.Equal(t, "tok-2", got)

	// Rotation resets the TTL.
	ttl := mr.TTL("authgate:refresh:u1")
	assert.Equal(t, time.Hour, ttl)

	err = s.Replace(ctx, "u1", "tok-1", "tok-3")
	assert.ErrorIs(t, err, ErrTokenMismatch, "spent token must not rotate again")
}

func TestRedisStoreReplaceConcurrentSingleWinner(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestRedisStore(t)
	require.NoError(t, s.Put(ctx, "u1", "tok-0"))

	const n = 16
	var wins atomic.Int64
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			if err := s.Replace(ctx, "u1", "tok-0", fmt.Sprintf("tok-%d", i+1)); err == nil {
				wins.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), wins.Load(), "exactly one concurrent replace may win")
}
