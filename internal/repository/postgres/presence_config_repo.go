package postgres

import (
	"context"
	"errors"

	"github.com/drakleaf/rpc-hub/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type presenceConfigRepository struct {
	db *gorm.DB
}

func NewPresenceConfigRepository(db *gorm.DB) *presenceConfigRepository {
	return &presenceConfigRepository{db: db}
}

func (r *presenceConfigRepository) Create(ctx context.Context, cfg *domain.PresenceConfig) error {
	return r.db.WithContext(ctx).Create(cfg).Error
}

func (r *presenceConfigRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.PresenceConfig, error) {
	var cfg domain.PresenceConfig
	err := r.db.WithContext(ctx).First(&cfg, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrConfigNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (r *presenceConfigRepository) GetByOwner(ctx context.Context, ownerID int64) ([]*domain.PresenceConfig, error) {
	var configs []*domain.PresenceConfig
	err := r.db.WithContext(ctx).
		Where("owner_user_id = ?", ownerID).
		Order("created_at ASC").
		Find(&configs).Error
	return configs, err
}

func (r *presenceConfigRepository) Update(ctx context.Context, cfg *domain.PresenceConfig) error {
	return r.db.WithContext(ctx).Save(cfg).Error
}

func (r *presenceConfigRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&domain.PresenceConfig{}, "id = ?", id).Error
}
