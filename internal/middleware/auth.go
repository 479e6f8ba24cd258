// Package middleware provides the request authenticators. All variants
// share one verification core; they differ only in how a failure or a
// missing identity is handled.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/authgate/authgate/internal/domain"
	"github.com/authgate/authgate/internal/token"
	"github.com/authgate/authgate/pkg/response"
)

const (
	ctxUserIDKey = "user_id"
	ctxEmailKey  = "email"
	ctxRoleKey   = "role"
)

// Identity returns the authenticated identity attached by RequireAuth or
// OptionalAuth, and false when the request is anonymous.
func Identity(c *gin.Context) (domain.Identity, bool) {
	userID, ok := c.Get(ctxUserIDKey)
	if !ok {
		return domain.Identity{}, false
	}
	email, _ := c.Get(ctxEmailKey)
	role, _ := c.Get(ctxRoleKey)
	return domain.Identity{
		UserID: userID.(string),
		Email:  email.(string),
		Role:   domain.Role(role.(string)),
	}, true
}

func setIdentity(c *gin.Context, claims *token.AccessClaims) {
	c.Set(ctxUserIDKey, claims.UserID)
	c.Set(ctxEmailKey, claims.Email)
	c.Set(ctxRoleKey, string(claims.Role))
}

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", false
	}
	const bearerPrefix = "Bearer "
	if !strings.HasPrefix(authHeader, bearerPrefix) || len(authHeader) <= len(bearerPrefix) {
		return "", false
	}
	return authHeader[len(bearerPrefix):], true
}

// RequireAuth rejects requests without a valid access token and attaches
// the identity to the request context.
func RequireAuth(tokens *token.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c)
		if !ok {
			response.AbortError(c, http.StatusUnauthorized, "MISSING_TOKEN", "Authorization header is required")
			return
		}

		claims, err := tokens.VerifyAccess(raw)
		if err != nil {
			code := "INVALID_TOKEN"
			if err == token.ErrExpired {
				code = "TOKEN_EXPIRED"
			}
			response.AbortError(c, http.StatusUnauthorized, code, "Invalid or expired token")
			return
		}

		setIdentity(c, claims)
		c.Next()
	}
}

// OptionalAuth attaches the identity when a valid access token is present
// and proceeds anonymously otherwise. Used by endpoints with dual
// authenticated/anonymous behavior.
func OptionalAuth(tokens *token.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c)
		if ok {
			if claims, err := tokens.VerifyAccess(raw); err == nil {
				setIdentity(c, claims)
			}
		}
		c.Next()
	}
}

// RequireRole runs after RequireAuth and rejects identities whose role is
// not in the allowed set.
func RequireRole(roles ...domain.Role) gin.HandlerFunc {
	allowed := make(map[domain.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		identity, ok := Identity(c)
		if !ok {
			response.AbortError(c, http.StatusUnauthorized, "MISSING_TOKEN", "Authentication required")
			return
		}
		if _, ok := allowed[identity.Role]; !ok {
			response.AbortError(c, http.StatusForbidden, "FORBIDDEN", "Insufficient role")
			return
		}
		c.Next()
	}
}

// RequireOwner runs after RequireAuth and allows the request when the
// identity is an admin or owns the resource named by the path parameter.
func RequireOwner(param string) gin.HandlerFunc {
	if param == "" {
		param = "id"
	}
	return func(c *gin.Context) {
		identity, ok := Identity(c)
		if !ok {
			response.AbortError(c, http.StatusUnauthorized, "MISSING_TOKEN", "Authentication required")
			return
		}
		if identity.IsAdmin() || identity.UserID == c.Param(param) {
			c.Next()
			return
		}
		response.AbortError(c, http.StatusForbidden, "FORBIDDEN", "Not the resource owner")
	}
}
