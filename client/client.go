// Package client is the Go client for the authgate service. It holds the
// credential pair for the process and transparently refreshes expired
// access tokens, guaranteeing a single in-flight refresh no matter how
// many requests fail at once.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const apiPrefix = "/api/v1"

// UserInfo is the user payload returned by the service.
type UserInfo struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Role      string `json:"role"`
	CreatedAt string `json:"createdAt"`
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	User         UserInfo `json:"user"`
	AccessToken  string   `json:"accessToken"`
	RefreshToken string   `json:"refreshToken"`
	ExpiresIn    int64    `json:"expiresIn"`
}

// RegisterParams are the fields accepted by Register.
type RegisterParams struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// APIError is a non-2xx response decoded from the service envelope.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("authgate: %d %s: %s", e.Status, e.Code, e.Message)
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details string `json:"details"`
	} `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client used for auth calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithStorage sets the credential storage backing the cache.
func WithStorage(s Storage) Option {
	return func(c *Client) { c.storage = s }
}

// WithRefreshTimeout bounds a single coordinated refresh call.
func WithRefreshTimeout(d time.Duration) Option {
	return func(c *Client) { c.refreshTimeout = d }
}

// WithSessionExpiredHandler registers the hook fired exactly once when a
// refresh cascade fails and the session cannot be recovered.
func WithSessionExpiredHandler(fn func()) Option {
	return func(c *Client) { c.onSessionExpired = fn }
}

// Client talks to an authgate server.
type Client struct {
	baseURL string
	http    *http.Client

	storage          Storage
	refreshTimeout   time.Duration
	onSessionExpired func()

	cache  *Cache
	coord  *Coordinator
	authed *http.Client
}

// New creates a Client for the given base URL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.storage == nil {
		c.storage = NewMemoryStorage()
	}

	c.cache = NewCache(c.storage)
	c.coord = NewCoordinator(c.cache, c.refreshCall, c.refreshTimeout, c.onSessionExpired)
	c.authed = &http.Client{
		Timeout:   c.http.Timeout,
		Transport: NewTransport(c.http.Transport, c.coord),
	}
	return c
}

// Cache exposes the credential cache, mainly for tests and UIs that need
// to observe auth state.
func (c *Client) Cache() *Cache {
	return c.cache
}

// Coordinator exposes the refresh coordinator.
func (c *Client) Coordinator() *Coordinator {
	return c.coord
}

// HTTPClient returns an http.Client that attaches bearer credentials and
// transparently refreshes them. Use it for any protected endpoint.
func (c *Client) HTTPClient() *http.Client {
	return c.authed
}

// Register creates an account and stores the issued pair.
func (c *Client) Register(ctx context.Context, params RegisterParams) (*AuthResult, error) {
	var result AuthResult
	if err := c.doJSON(ctx, c.http, http.MethodPost, "/auth/register", params, &result); err != nil {
		return nil, err
	}
	c.cache.Set(Credentials{AccessToken: result.AccessToken, RefreshToken: result.RefreshToken})
	return &result, nil
}

// Login authenticates and stores the issued pair.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	body := map[string]string{"email": email, "password": password}
	var result AuthResult
	if err := c.doJSON(ctx, c.http, http.MethodPost, "/auth/login", body, &result); err != nil {
		return nil, err
	}
	c.cache.Set(Credentials{AccessToken: result.AccessToken, RefreshToken: result.RefreshToken})
	return &result, nil
}

// Logout revokes the session server-side, best effort. The call rides
// the refreshing transport so an expired access token does not get in
// the way; local credentials are cleared regardless of the outcome.
func (c *Client) Logout(ctx context.Context) error {
	_, ok := c.cache.Pair()
	defer c.cache.Clear()
	if !ok {
		return nil
	}
	return c.doJSON(ctx, c.authed, http.MethodPost, "/auth/logout", nil, nil)
}

// ChangePassword rotates the account password, refreshing the access
// token transparently when it has expired. On success the stored refresh
// token is invalidated server-side, so local credentials are cleared and
// the caller must log in again.
func (c *Client) ChangePassword(ctx context.Context, currentPassword, newPassword string) error {
	if _, ok := c.cache.Pair(); !ok {
		return ErrSessionExpired
	}
	body := map[string]string{
		"currentPassword": currentPassword,
		"newPassword":     newPassword,
	}
	if err := c.doJSON(ctx, c.authed, http.MethodPost, "/auth/change-password", body, nil); err != nil {
		return err
	}
	c.cache.Clear()
	return nil
}

// Me returns the current user, refreshing the access token transparently
// when it has expired.
func (c *Client) Me(ctx context.Context) (*UserInfo, error) {
	var user UserInfo
	if err := c.doJSON(ctx, c.authed, http.MethodGet, "/auth/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// refreshCall is the RefreshFunc wired into the coordinator. Any 401
// means the session is unrecoverable.
func (c *Client) refreshCall(ctx context.Context, refreshToken string) (Credentials, error) {
	body := map[string]string{"refreshToken": refreshToken}
	var result struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	if err := c.doJSON(ctx, c.http, http.MethodPost, "/auth/refresh", body, &result); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
			return Credentials{}, ErrSessionExpired
		}
		return Credentials{}, err
	}
	return Credentials{AccessToken: result.AccessToken, RefreshToken: result.RefreshToken}, nil
}

func (c *Client) doJSON(ctx context.Context, hc *http.Client, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("client: encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+apiPrefix+path, reader)
	if err != nil {
		return fmt.Errorf("client: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("client: decode response: %w", err)
	}

	if resp.StatusCode >= 400 || !env.Success {
		apiErr := &APIError{Status: resp.StatusCode}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}

	if out != nil && env.Data != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("client: decode data: %w", err)
		}
	}
	return nil
}
