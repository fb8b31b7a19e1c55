package service

import (
	"github.com/drakleaf/rpc-hub/internal/config"
	"github.com/drakleaf/rpc-hub/internal/repository"
)

type Services struct {
	Auth     *AuthService
	APIKey   *APIKeyService
	Presence *PresenceService
}

func NewServices(repos *repository.Repositories, manager PresenceManager, cfg *config.Config) *Services {
	return &Services{
		Auth:     NewAuthService(repos.User, cfg),
		APIKey:   NewAPIKeyService(repos.APIKey, cfg.Auth.APIKeyCacheTTL),
		Presence: NewPresenceService(repos.PresenceConfig, repos.User, manager),
	}
}
