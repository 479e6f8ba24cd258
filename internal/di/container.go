package di

import (
	"github.com/authgate/authgate/internal/handler"
	"github.com/authgate/authgate/internal/repository"
	"github.com/authgate/authgate/internal/service"
	"github.com/authgate/authgate/internal/store"
	"github.com/authgate/authgate/internal/token"
)

// Container holds all dependencies for the auth service
type Container struct {
	// Infrastructure
	UserRepo     repository.UserRepository
	RefreshStore store.RefreshTokenStore
	Tokens       *token.Manager

	// Services
	AuthService service.AuthService

	// Handlers
	HealthHandler *handler.HealthHandler
	AuthHandler   *handler.AuthHandler
}

// ContainerConfig contains configuration for building the container
type ContainerConfig struct {
	UserRepo      repository.UserRepository
	RefreshStore  store.RefreshTokenStore
	Tokens        *token.Manager
	ServiceConfig *service.AuthServiceConfig
	HealthDeps    map[string]handler.Pinger
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *ContainerConfig) *Container {
	c := &Container{
		UserRepo:     cfg.UserRepo,
		RefreshStore: cfg.RefreshStore,
		Tokens:       cfg.Tokens,
	}

	c.AuthService = service.NewAuthService(
		c.UserRepo,
		c.Tokens,
		c.RefreshStore,
		cfg.ServiceConfig,
	)

	c.HealthHandler = handler.NewHealthHandler(cfg.HealthDeps)
	c.AuthHandler = handler.NewAuthHandler(c.AuthService)

	return c
}
