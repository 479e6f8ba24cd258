package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authgate/authgate/internal/domain"
	"github.com/authgate/authgate/internal/token"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestTokens(t *testing.T) *token.Manager {
	t.Helper()
	m, err := token.NewManager(token.Config{
		Secret:    "middleware-test-secret",
		AccessTTL: 15 * time.Minute,
	})
	require.NoError(t, err)
	return m
}

func issuePair(t *testing.T, m *token.Manager, role domain.Role) *domain.TokenPair {
	t.Helper()
	pair, err := m.Issue(&domain.User{
		ID:    "user-1",
		Email: "alice@example.com",
		Role:  role,
	})
	require.NoError(t, err)
	return pair
}

// whoami echoes the identity the middleware attached, if any.
func whoami(c *gin.Context) {
	identity, ok := Identity(c)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"anonymous": true})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": identity.UserID, "role": string(identity.Role)})
}

func doRequest(router *gin.Engine, path, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRequireAuth(t *testing.T) {
	m := newTestTokens(t)
	router := gin.New()
	router.GET("/protected", RequireAuth(m), whoami)

	t.Run("missing header", func(t *testing.T) {
		w := doRequest(router, "/protected", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "MISSING_TOKEN")
	})

	t.Run("malformed token", func(t *testing.T) {
		w := doRequest(router, "/protected", "garbage")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "INVALID_TOKEN")
	})

	t.Run("refresh token rejected", func(t *testing.T) {
		pair := issuePair(t, m, domain.RoleUser)
		w := doRequest(router, "/protected", pair.RefreshToken)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "INVALID_TOKEN")
	})

	t.Run("valid token", func(t *testing.T) {
		pair := issuePair(t, m, domain.RoleUser)
		w := doRequest(router, "/protected", pair.AccessToken)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "user-1")
	})
}

func TestRequireAuthExpired(t *testing.T) {
	verifier := newTestTokens(t)
	router := gin.New()
	router.GET("/protected", RequireAuth(verifier), whoami)

	// Same secret, nanosecond TTL: the token is already expired by the
	// time the request is served.
	expired, err := token.NewManager(token.Config{
		Secret:    "middleware-test-secret",
		AccessTTL: time.Nanosecond,
	})
	require.NoError(t, err)
	pair := issuePair(t, expired, domain.RoleUser)
	time.Sleep(10 * time.Millisecond)

	w := doRequest(router, "/protected", pair.AccessToken)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "TOKEN_EXPIRED")
}

func TestOptionalAuth(t *testing.T) {
	m := newTestTokens(t)
	router := gin.New()
	router.GET("/feed", OptionalAuth(m), whoami)

	t.Run("anonymous", func(t *testing.T) {
		w := doRequest(router, "/feed", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "anonymous")
	})

	t.Run("invalid token proceeds anonymously", func(t *testing.T) {
		w := doRequest(router, "/feed", "garbage")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "anonymous")
	})

	t.Run("valid token attaches identity", func(t *testing.T) {
		pair := issuePair(t, m, domain.RoleUser)
		w := doRequest(router, "/feed", pair.AccessToken)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "user-1")
	})
}

func TestRequireRole(t *testing.T) {
	m := newTestTokens(t)
	router := gin.New()
	router.GET("/admin", RequireAuth(m), RequireRole(domain.RoleAdmin), whoami)

	t.Run("user role rejected", func(t *testing.T) {
		pair := issuePair(t, m, domain.RoleUser)
		w := doRequest(router, "/admin", pair.AccessToken)
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Contains(t, w.Body.String(), "FORBIDDEN")
	})

	t.Run("admin role allowed", func(t *testing.T) {
		pair := issuePair(t, m, domain.RoleAdmin)
		w := doRequest(router, "/admin", pair.AccessToken)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("no identity", func(t *testing.T) {
		bare := gin.New()
		bare.GET("/admin", RequireRole(domain.RoleAdmin), whoami)
		w := doRequest(bare, "/admin", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestRequireOwner(t *testing.T) {
	m := newTestTokens(t)
	router := gin.New()
	router.GET("/users/:id", RequireAuth(m), RequireOwner("id"), whoami)

	t.Run("owner allowed", func(t *testing.T) {
		pair := issuePair(t, m, domain.RoleUser)
		w := doRequest(router, "/users/user-1", pair.AccessToken)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("other user rejected", func(t *testing.T) {
		pair := issuePair(t, m, domain.RoleUser)
		w := doRequest(router, "/users/user-2", pair.AccessToken)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("admin bypasses ownership", func(t *testing.T) {
		pair := issuePair(t, m, domain.RoleAdmin)
		w := doRequest(router, "/users/user-2", pair.AccessToken)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}
