package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/drakleaf/rpc-hub/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *userRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Upsert(ctx context.Context, user *domain.User) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "updated_at"}),
	}).Create(user).Error
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	var user domain.User
	err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetActiveConfigID(ctx context.Context, userID int64) (*uuid.UUID, error) {
	var user domain.User
	err := r.db.WithContext(ctx).Select("id", "active_config_id").First(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user.ActiveConfigID, nil
}

// SetActiveConfigID writes the reference even when the user row does not exist yet, since
// accounts are created by the login flow independently of presence activity.
func (r *userRepository) SetActiveConfigID(ctx context.Context, userID int64, configID *uuid.UUID) error {
	now := time.Now()
	user := &domain.User{
		ID:             userID,
		ActiveConfigID: configID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"active_config_id", "updated_at"}),
	}).Create(user).Error
}

// ListActive joins users that have an active reference with the config it points at.
// References to deleted configs are skipped.
func (r *userRepository) ListActive(ctx context.Context) ([]domain.ActiveAssignment, error) {
	var users []domain.User
	err := r.db.WithContext(ctx).
		Where("active_config_id IS NOT NULL").
		Order("id ASC").
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, nil
	}

	ids := make([]uuid.UUID, 0, len(users))
	for _, u := range users {
		ids = append(ids, *u.ActiveConfigID)
	}

	var configs []*domain.PresenceConfig
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&configs).Error; err != nil {
		return nil, err
	}

	byID := make(map[uuid.UUID]*domain.PresenceConfig, len(configs))
	for _, c := range configs {
		byID[c.ID] = c
	}

	assignments := make([]domain.ActiveAssignment, 0, len(users))
	for _, u := range users {
		cfg, ok := byID[*u.ActiveConfigID]
		if !ok {
			continue
		}
		assignments = append(assignments, domain.ActiveAssignment{UserID: u.ID, Config: cfg})
	}
	return assignments, nil
}
