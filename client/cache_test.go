package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCachePairMovesAsUnit(t *testing.T) {
	storage := NewMemoryStorage()
	cache := NewCache(storage)

	_, ok := cache.Pair()
	assert.False(t, ok)

	cache.Set(Credentials{AccessToken: "a1", RefreshToken: "r1"})
	creds, ok := cache.Pair()
	require.True(t, ok)
	assert.Equal(t, "a1", creds.AccessToken)
	assert.Equal(t, "r1", creds.RefreshToken)

	tok, ok := cache.AccessToken()
	require.True(t, ok)
	assert.Equal(t, "a1", tok)

	cache.Clear()
	_, ok = cache.Pair()
	assert.False(t, ok)
	_, ok = cache.AccessToken()
	assert.False(t, ok)

	// The backing storage is cleared too.
	_, ok = storage.Load()
	assert.False(t, ok)
}

func TestCacheLoadsPersistedPair(t *testing.T) {
	storage := NewMemoryStorage()
	storage.Save(Credentials{AccessToken: "a1", RefreshToken: "r1"})

	cache := NewCache(storage)
	creds, ok := cache.Pair()
	require.True(t, ok)
	assert.Equal(t, "a1", creds.AccessToken)
}

func TestCacheRejectsPartialPair(t *testing.T) {
	cache := NewCache(NewMemoryStorage())
	cache.Set(Credentials{AccessToken: "a1"})
	_, ok := cache.Pair()
	assert.False(t, ok, "a half pair is not usable")
}

func TestMemoryStorageLoadRequiresBothSlots(t *testing.T) {
	storage := NewMemoryStorage()
	storage.Save(Credentials{AccessToken: "a1", RefreshToken: "r1"})
	storage.Save(Credentials{AccessToken: "a2"})
	_, ok := storage.Load()
	assert.False(t, ok)
}
