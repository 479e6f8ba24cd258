package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/authgate/authgate/internal/dto"
	"github.com/authgate/authgate/internal/middleware"
	"github.com/authgate/authgate/internal/service"
	"github.com/authgate/authgate/pkg/response"
)

// AuthHandler handles authentication HTTP requests
type AuthHandler struct {
	authService service.AuthService
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(authService service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Register handles user registration
// POST /auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if valid, msg := req.ValidateEmail(); !valid {
		response.Error(c, http.StatusBadRequest, "INVALID_EMAIL", msg, "")
		return
	}
	if valid, msg := req.ValidatePassword(); !valid {
		response.Error(c, http.StatusBadRequest, "WEAK_PASSWORD", msg, "")
		return
	}

	result, err := h.authService.Register(c.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserAlreadyExists):
			response.Conflict(c, "User with this email already exists")
		case errors.Is(err, service.ErrUsernameAlreadyExists):
			response.Conflict(c, "Username is already taken")
		default:
			response.InternalError(c)
		}
		return
	}

	response.Created(c, result)
}

// Login handles user login
// POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.authService.Login(c.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			response.Error(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", "")
		case errors.Is(err, service.ErrUserInactive):
			response.Forbidden(c, "User account is deactivated")
		default:
			response.InternalError(c)
		}
		return
	}

	response.Success(c, result)
}

// Refresh handles token rotation
// POST /auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req dto.RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.authService.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTokenExpired):
			response.Error(c, http.StatusUnauthorized, "TOKEN_EXPIRED", "Refresh token has expired", "")
		case errors.Is(err, service.ErrInvalidToken),
			errors.Is(err, service.ErrSessionNotFound),
			errors.Is(err, service.ErrUserNotFound):
			response.Error(c, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid or stale refresh token", "")
		case errors.Is(err, service.ErrUserInactive):
			response.Forbidden(c, "User account is deactivated")
		default:
			response.InternalError(c)
		}
		return
	}

	response.Success(c, result)
}

// Logout invalidates the caller's stored refresh token
// POST /auth/logout (Bearer)
func (h *AuthHandler) Logout(c *gin.Context) {
	identity, ok := middleware.Identity(c)
	if !ok {
		response.Unauthorized(c, "User not authenticated")
		return
	}

	if err := h.authService.Logout(c.Request.Context(), identity.UserID); err != nil {
		response.InternalError(c)
		return
	}

	response.SuccessMessage(c, "Logged out successfully")
}

// ChangePassword rotates the caller's password
// POST /auth/change-password (Bearer)
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	identity, ok := middleware.Identity(c)
	if !ok {
		response.Unauthorized(c, "User not authenticated")
		return
	}

	var req dto.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.authService.ChangePassword(c.Request.Context(), identity.UserID, &req); err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			response.Error(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Current password is incorrect", "")
		case errors.Is(err, service.ErrWeakPassword):
			response.Error(c, http.StatusBadRequest, "WEAK_PASSWORD", "New password does not meet strength requirements", "")
		case errors.Is(err, service.ErrUserNotFound):
			response.NotFound(c, "User not found")
		default:
			response.InternalError(c)
		}
		return
	}

	response.SuccessMessage(c, "Password changed successfully")
}

// Me returns current user info
// GET /auth/me (Bearer)
func (h *AuthHandler) Me(c *gin.Context) {
	identity, ok := middleware.Identity(c)
	if !ok {
		response.Unauthorized(c, "User not authenticated")
		return
	}

	user, err := h.authService.GetUser(c.Request.Context(), identity.UserID)
	if err != nil {
		response.InternalError(c)
		return
	}
	if user == nil {
		response.NotFound(c, "User not found")
		return
	}

	response.Success(c, dto.UserResponse{
		ID:        user.ID,
		Email:     user.Email,
		Username:  user.Username,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Role:      string(user.Role),
		CreatedAt: user.CreatedAt.Format(time.RFC3339),
	})
}
