package client

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrSessionExpired is returned when the refresh path cannot recover and
// the caller must re-authenticate.
var ErrSessionExpired = errors.New("client: session expired")

// DefaultRefreshTimeout bounds a single refresh call so a hung server
// fails the waiter queue open instead of stalling it forever.
const DefaultRefreshTimeout = 30 * time.Second

// RefreshFunc exchanges a refresh token for a new credential pair.
type RefreshFunc func(ctx context.Context, refreshToken string) (Credentials, error)

type waitResult struct {
	token string
	err   error
}

// Coordinator serializes token refreshes for one client process. For any
// burst of expired-access failures it issues exactly one refresh call;
// every other caller is queued and released with the same outcome.
//
// The refreshing flag and the waiter queue are only touched under mu, so
// enqueueing cannot interleave with the leader's resolve-and-clear.
type Coordinator struct {
	mu         sync.Mutex
	refreshing bool
	waiters    []chan waitResult

	cache            *Cache
	refresh          RefreshFunc
	timeout          time.Duration
	onSessionExpired func()
}

// NewCoordinator creates a Coordinator over the given cache and refresh
// call. onSessionExpired may be nil; when set it fires exactly once per
// failed refresh cascade.
func NewCoordinator(cache *Cache, refresh RefreshFunc, timeout time.Duration, onSessionExpired func()) *Coordinator {
	if timeout <= 0 {
		timeout = DefaultRefreshTimeout
	}
	return &Coordinator{
		cache:            cache,
		refresh:          refresh,
		timeout:          timeout,
		onSessionExpired: onSessionExpired,
	}
}

// AccessToken returns the cached access token for attaching to outgoing
// requests.
func (c *Coordinator) AccessToken() (string, bool) {
	return c.cache.AccessToken()
}

// Token returns a fresh access token after an expired-access failure.
// The first caller becomes the leader and performs the refresh; callers
// arriving while it is in flight wait for the leader's outcome.
func (c *Coordinator) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.refreshing {
		ch := make(chan waitResult, 1)
		c.waiters = append(c.waiters, ch)
		c.mu.Unlock()

		select {
		case res := <-ch:
			return res.token, res.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	c.refreshing = true
	creds, ok := c.cache.Pair()
	c.mu.Unlock()

	hadSession := ok && creds.RefreshToken != ""

	var next Credentials
	var err error
	if !hadSession {
		err = ErrSessionExpired
	} else {
		// Detached from the leader's context: one caller's cancellation
		// must not fail the whole queue.
		rctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		next, err = c.refresh(rctx, creds.RefreshToken)
		cancel()
	}

	c.mu.Lock()
	waiters := c.waiters
	c.waiters = nil

	if err != nil {
		// Clear credentials before anyone observes the failure, so no
		// caller can retry with a pair already known to be invalid.
		c.cache.Clear()
		c.refreshing = false
		c.mu.Unlock()

		for _, ch := range waiters {
			ch <- waitResult{err: err}
		}
		// Anonymous callers have no session to lose; only notify when
		// held credentials actually died.
		if hadSession && c.onSessionExpired != nil {
			c.onSessionExpired()
		}
		return "", err
	}

	c.cache.Set(next)
	c.refreshing = false
	c.mu.Unlock()

	// FIFO release, same token for all.
	for _, ch := range waiters {
		ch <- waitResult{token: next.AccessToken}
	}
	return next.AccessToken, nil
}
