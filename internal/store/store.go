// Package store holds the single currently valid refresh token per user.
// Issuing a new pair overwrites the slot, which invalidates any previous
// session for that user (single-active-session policy).
package store

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when no refresh token is stored for the user.
	ErrNotFound = errors.New("store: refresh token not found")

	// ErrTokenMismatch is returned by Replace when the presented token is
	// not the stored one, i.e. a stale or replayed refresh token.
	ErrTokenMismatch = errors.New("store: refresh token mismatch")
)

// RefreshTokenStore maps a user ID to its current refresh token.
//
// Replace is the rotation primitive: it atomically compares the stored
// token with old and overwrites it with next. Implementations must
// serialize the read-modify-write per user so two concurrent refresh
// calls cannot both pass the comparison.
type RefreshTokenStore interface {
	Put(ctx context.Context, userID, token string) error
	Get(ctx context.Context, userID string) (string, error)
	Delete(ctx context.Context, userID string) error
	Replace(ctx context.Context, userID, old, next string) error
}
