package postgres

import (
	"context"

	"github.com/drakleaf/rpc-hub/internal/domain"
	"gorm.io/gorm"
)

type apiKeyRepository struct {
	db *gorm.DB
}

func NewAPIKeyRepository(db *gorm.DB) *apiKeyRepository {
	return &apiKeyRepository{db: db}
}

func (r *apiKeyRepository) Replace(ctx context.Context, key *domain.APIKey) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&domain.APIKey{}, "user_id = ?", key.UserID).Error; err != nil {
			return err
		}
		return tx.Create(key).Error
	})
}

func (r *apiKeyRepository) GetByPrefix(ctx context.Context, prefix string) (*domain.APIKey, error) {
	var key domain.APIKey
	err := r.db.WithContext(ctx).First(&key, "prefix = ?", prefix).Error
	if err != nil {
		return nil, err
	}
	return &key, nil
}
