package repository

import (
	"context"

	"github.com/drakleaf/rpc-hub/internal/domain"
	"github.com/google/uuid"
)

type UserRepository interface {
	Upsert(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	// GetActiveConfigID returns nil when the user has no active config or does not exist.
	GetActiveConfigID(ctx context.Context, userID int64) (*uuid.UUID, error)
	SetActiveConfigID(ctx context.Context, userID int64, configID *uuid.UUID) error
	ListActive(ctx context.Context) ([]domain.ActiveAssignment, error)
}

type PresenceConfigRepository interface {
	Create(ctx context.Context, cfg *domain.PresenceConfig) error
	// GetByID returns domain.ErrConfigNotFound when no row matches.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.PresenceConfig, error)
	GetByOwner(ctx context.Context, ownerID int64) ([]*domain.PresenceConfig, error)
	Update(ctx context.Context, cfg *domain.PresenceConfig) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type APIKeyRepository interface {
	// Replace stores key as the user's only key.
	Replace(ctx context.Context, key *domain.APIKey) error
	GetByPrefix(ctx context.Context, prefix string) (*domain.APIKey, error)
}

type Repositories struct {
	User           UserRepository
	PresenceConfig PresenceConfigRepository
	APIKey         APIKeyRepository
}
