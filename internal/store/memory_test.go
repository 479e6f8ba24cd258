package store

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.Get(ctx, "u1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Put(ctx, "u1", "tok-1"))
	got, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", got)

	// Put overwrites the slot; the previous session is gone.
	require.NoError(t, s.Put(ctx, "u1", "tok-2"))
	got, err = s.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "tok-2", got)

	require.NoError(t, s.Delete(ctx, "u1"))
	_, err = s.Get(ctx, "u1")
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting an absent slot is not an error.
	require.NoError(t, s.Delete(ctx, "u1"))
}

func TestMemoryStoreReplace(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

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

	// The old token is spent; replaying it fails.
	err = s.Replace(ctx, "u1", "tok-1", "tok-3")
	assert.ErrorIs(t, err, ErrTokenMismatch)
}

func TestMemoryStoreReplaceConcurrentSingleWinner(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Put(ctx, "u1", "tok-0"))

	const n = 32
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
