package client

import "sync"

// Storage slot names. Implementations persist the pair under these two
// keys and must always read, write and clear them together.
const (
	SlotAccessToken  = "access_token"
	SlotRefreshToken = "refresh_token"
)

// Credentials is the token pair held by the client process.
type Credentials struct {
	AccessToken  string
	RefreshToken string
}

// Valid reports whether both tokens are present.
func (c Credentials) Valid() bool {
	return c.AccessToken != "" && c.RefreshToken != ""
}

// Storage persists the credential pair between process runs.
type Storage interface {
	Load() (Credentials, bool)
	Save(Credentials)
	Clear()
}

// MemoryStorage keeps the pair in process memory only.
type MemoryStorage struct {
	mu    sync.Mutex
	slots map[string]string
}

// NewMemoryStorage creates an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{slots: make(map[string]string)}
}

func (s *MemoryStorage) Load() (Credentials, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	creds := Credentials{
		AccessToken:  s.slots[SlotAccessToken],
		RefreshToken: s.slots[SlotRefreshToken],
	}
	return creds, creds.Valid()
}

func (s *MemoryStorage) Save(creds Credentials) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots[SlotAccessToken] = creds.AccessToken
	s.slots[SlotRefreshToken] = creds.RefreshToken
}

func (s *MemoryStorage) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.slots, SlotAccessToken)
	delete(s.slots, SlotRefreshToken)
}

// Cache is the in-process view of the credential pair, backed by a
// Storage. Set and Clear always move the pair as a unit.
type Cache struct {
	mu      sync.RWMutex
	storage Storage
	creds   Credentials
	ok      bool
}

// NewCache creates a Cache over the given storage, loading any persisted
// pair.
func NewCache(storage Storage) *Cache {
	c := &Cache{storage: storage}
	if storage != nil {
		c.creds, c.ok = storage.Load()
	}
	return c
}

// Pair returns the current pair and whether one is held.
func (c *Cache) Pair() (Credentials, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.creds, c.ok
}

// AccessToken returns the current access token if present.
func (c *Cache) AccessToken() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.ok {
		return "", false
	}
	return c.creds.AccessToken, true
}

// Set overwrites the pair.
func (c *Cache) Set(creds Credentials) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.creds = creds
	c.ok = creds.Valid()
	if c.storage != nil {
		c.storage.Save(creds)
	}
}

// Clear drops the pair atomically.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.creds = Credentials{}
	c.ok = false
	if c.storage != nil {
		c.storage.Clear()
	}
}
