package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authgate/authgate/internal/domain"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(Config{
		Secret:     "test-secret-at-least-32-characters!",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
		Issuer:     "authgate-test",
	})
	require.NoError(t, err)
	return m
}

func testUser() *domain.User {
	return &domain.User{
		ID:       "user-123",
		Email:    "alice@example.com",
		Role:     domain.RoleUser,
		IsActive: true,
	}
}

func TestNewManagerRequiresSecret(t *testing.T) {
	_, err := NewManager(Config{Secret: ""})
	require.Error(t, err)
}

func TestIssueAndVerifyRoundtrip(t *testing.T) {
	m := newTestManager(t)
	pair, err := m.Issue(testUser())
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)
	assert.Equal(t, int64(900), pair.ExpiresIn)

	access, err := m.VerifyAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-123", access.UserID)
	assert.Equal(t, "alice@example.com", access.Email)
	assert.Equal(t, domain.RoleUser, access.Role)
	assert.Equal(t, KindAccess, access.Kind)
	assert.NotEmpty(t, access.ID)

	refresh, err := m.VerifyRefresh(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "user-123", refresh.UserID)
	assert.Equal(t, KindRefresh, refresh.Kind)
}

func TestVerifyRejectsWrongKind(t *testing.T) {
	m := newTestManager(t)
	pair, err := m.Issue(testUser())
	require.NoError(t, err)

	// A refresh token must never authenticate a request.
	_, err = m.VerifyAccess(pair.RefreshToken)
	assert.ErrorIs(t, err, ErrWrongKind)

	// And an access token must never rotate a session.
	_, err = m.VerifyRefresh(pair.AccessToken)
	assert.ErrorIs(t, err, ErrWrongKind)
}

func TestVerifyExpired(t *testing.T) {
	m := newTestManager(t)
	pair, err := m.Issue(testUser())
	require.NoError(t, err)

	m.now = func() time.Time { return time.Now().Add(16 * time.Minute) }
	_, err = m.VerifyAccess(pair.AccessToken)
	assert.ErrorIs(t, err, ErrExpired)

	// The refresh token is still within its longer TTL.
	_, err = m.VerifyRefresh(pair.RefreshToken)
	assert.NoError(t, err)

	m.now = func() time.Time { return time.Now().Add(8 * 24 * time.Hour) }
	_, err = m.VerifyRefresh(pair.RefreshToken)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestVerifyRejectsForeignSignature(t *testing.T) {
	m := newTestManager(t)
	other, err := NewManager(Config{Secret: "a-completely-different-signing-key!"})
	require.NoError(t, err)

	pair, err := other.Issue(testUser())
	require.NoError(t, err)

	_, err = m.VerifyAccess(pair.AccessToken)
	assert.ErrorIs(t, err, ErrSignature)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	m := newTestManager(t)

	for _, raw := range []string{"", "not-a-jwt", "a.b.c"} {
		_, err := m.VerifyAccess(raw)
		assert.ErrorIs(t, err, ErrMalformed, "input %q", raw)
	}
}

func TestVerifyRejectsTamperedPayload(t *testing.T) {
	m := newTestManager(t)
	pair, err := m.Issue(testUser())
	require.NoError(t, err)

	tampered := []byte(pair.AccessToken)
	// Flip a byte in the payload segment; the signature no longer matches.
	tampered[len(tampered)/2] ^= 0x01

	_, err = m.VerifyAccess(string(tampered))
	require.Error(t, err)
}

func TestDefaultTTLs(t *testing.T) {
	m, err := NewManager(Config{Secret: "some-secret"})
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, m.AccessTTL())
	assert.Equal(t, 7*24*time.Hour, m.RefreshTTL())
}
