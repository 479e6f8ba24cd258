package store

import (
	"context"
	"sync"
)

// MemoryStore is an in-process RefreshTokenStore. Tokens do not survive a
// restart; production deployments should use the Redis store instead.
type MemoryStore struct {
	mu     sync.Mutex
	tokens map[string]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tokens: make(map[string]string)}
}

func (s *MemoryStore) Put(ctx context.Context, userID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[userID] = token
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, userID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.tokens[userID]
	if !ok {
		return "", ErrNotFound
	}
	return token, nil
}

func (s *MemoryStore) Delete(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, userID)
	return nil
}

// Replace compares and swaps under the store mutex, so concurrent refresh
// calls for the same user see exactly one winner.
func (s *MemoryStore) Replace(ctx context.Context, userID, old, next string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.tokens[userID]
	if !ok {
		return ErrNotFound
	}
	if current != old {
		return ErrTokenMismatch
	}
	s.tokens[userID] = next
	return nil
}
