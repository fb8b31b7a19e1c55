package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/drakleaf/rpc-hub/internal/domain"
	"github.com/drakleaf/rpc-hub/internal/presence"
	"github.com/drakleaf/rpc-hub/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PresenceManager is the part of presence.Manager the service drives.
type PresenceManager interface {
	Activate(ctx context.Context, userID int64, cfg *domain.PresenceConfig) error
	Deactivate(ctx context.Context, userID int64) error
	Session(userID int64) (presence.SessionInfo, bool)
	ListActive() []int64
}

type PresenceService struct {
	configRepo repository.PresenceConfigRepository
	userRepo   repository.UserRepository
	manager    PresenceManager
}

func NewPresenceService(configRepo repository.PresenceConfigRepository, userRepo repository.UserRepository, manager PresenceManager) *PresenceService {
	return &PresenceService{
		configRepo: configRepo,
		userRepo:   userRepo,
		manager:    manager,
	}
}

type ConfigInput struct {
	Name           string               `json:"name"`
	ApplicationID  string               `json:"applicationId"`
	ActivityType   domain.ActivityType  `json:"activityType"`
	Details        *string              `json:"details"`
	State          *string              `json:"state"`
	TimestampMode  domain.TimestampMode `json:"timestampMode"`
	FixedTimestamp *string              `json:"fixedTimestamp"`
	LargeImage     *string              `json:"largeImage"`
	LargeImageText *string              `json:"largeImageText"`
	SmallImage     *string              `json:"smallImage"`
	SmallImageText *string              `json:"smallImageText"`
	Buttons        []domain.Button      `json:"buttons"`
}

// ActivationResult reports a saved config and whether it went live.
type ActivationResult struct {
	Config    *domain.PresenceConfig `json:"config"`
	Activated bool                   `json:"activated"`
	Message   string                 `json:"message,omitempty"`
}

type Status struct {
	ActiveConfigID *uuid.UUID            `json:"activeConfigId"`
	Live           bool                  `json:"live"`
	Session        *presence.SessionInfo `json:"session,omitempty"`
}

// CreateConfig saves the config and then activates it. An activation failure does not fail
// the call; the result says the config was saved but is not live.
func (s *PresenceService) CreateConfig(ctx context.Context, ownerID int64, input ConfigInput) (*ActivationResult, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	now := time.Now()
	cfg := &domain.PresenceConfig{
		ID:          uuid.New(),
		OwnerUserID: ownerID,
		CreatedAt:   now,
	}
	applyInput(cfg, input, now)

	if err := s.configRepo.Create(ctx, cfg); err != nil {
		return nil, fmt.Errorf("create presence config: %w", err)
	}

	return s.activate(ctx, ownerID, cfg), nil
}

// UpdateConfig rewrites the config. If it is the user's active config the live session is
// re-rendered with the new content, or torn down when the new content cannot be activated.
func (s *PresenceService) UpdateConfig(ctx context.Context, ownerID int64, configID uuid.UUID, input ConfigInput) (*ActivationResult, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	cfg, err := s.GetConfig(ctx, ownerID, configID)
	if err != nil {
		return nil, err
	}

	applyInput(cfg, input, time.Now())
	if err := s.configRepo.Update(ctx, cfg); err != nil {
		return nil, fmt.Errorf("update presence config: %w", err)
	}

	active, err := s.isActive(ctx, ownerID, configID)
	if err != nil {
		return nil, err
	}
	if !active {
		return &ActivationResult{Config: cfg}, nil
	}

	result := s.activate(ctx, ownerID, cfg)
	if !result.Activated && !cfg.Activatable() {
		// Activate rejected it without touching the old session
		if err := s.manager.Deactivate(ctx, ownerID); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// DeleteConfig removes the config, deactivating the user first when it is the active one.
func (s *PresenceService) DeleteConfig(ctx context.Context, ownerID int64, configID uuid.UUID) error {
	if _, err := s.GetConfig(ctx, ownerID, configID); err != nil {
		return err
	}

	active, err := s.isActive(ctx, ownerID, configID)
	if err != nil {
		return err
	}
	if active {
		if err := s.manager.Deactivate(ctx, ownerID); err != nil {
			return err
		}
	}

	return s.configRepo.Delete(ctx, configID)
}

func (s *PresenceService) ListConfigs(ctx context.Context, ownerID int64) ([]*domain.PresenceConfig, error) {
	return s.configRepo.GetByOwner(ctx, ownerID)
}

func (s *PresenceService) GetConfig(ctx context.Context, ownerID int64, configID uuid.UUID) (*domain.PresenceConfig, error) {
	cfg, err := s.configRepo.GetByID(ctx, configID)
	if err != nil {
		return nil, err
	}
	if cfg.OwnerUserID != ownerID {
		return nil, domain.ErrNotConfigOwner
	}
	return cfg, nil
}

// ActivateConfig makes one of the user's configs live. Unlike CreateConfig the activation
// error is returned.
func (s *PresenceService) ActivateConfig(ctx context.Context, ownerID int64, configID uuid.UUID) (*domain.PresenceConfig, error) {
	cfg, err := s.GetConfig(ctx, ownerID, configID)
	if err != nil {
		return nil, err
	}
	if err := s.manager.Activate(ctx, ownerID, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (s *PresenceService) DeactivateUser(ctx context.Context, ownerID int64) error {
	return s.manager.Deactivate(ctx, ownerID)
}

// Status combines the persisted reference with the live registry entry. The two disagree
// when a session died and has not been recovered yet.
func (s *PresenceService) Status(ctx context.Context, ownerID int64) (*Status, error) {
	ref, err := s.userRepo.GetActiveConfigID(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	status := &Status{ActiveConfigID: ref}
	if info, ok := s.manager.Session(ownerID); ok {
		status.Live = true
		status.Session = &info
	}
	return status, nil
}

func (s *PresenceService) ListSessions() []int64 {
	return s.manager.ListActive()
}

func (s *PresenceService) activate(ctx context.Context, ownerID int64, cfg *domain.PresenceConfig) *ActivationResult {
	result := &ActivationResult{Config: cfg}
	if err := s.manager.Activate(ctx, ownerID, cfg); err != nil {
		zap.S().Infow("presence config saved but not live",
			"user_id", ownerID,
			"config_id", cfg.ID,
			"error", err,
		)
		result.Message = fmt.Sprintf("saved but not live: %v", err)
		return result
	}
	result.Activated = true
	return result
}

func (s *PresenceService) isActive(ctx context.Context, ownerID int64, configID uuid.UUID) (bool, error) {
	ref, err := s.userRepo.GetActiveConfigID(ctx, ownerID)
	if err != nil {
		return false, err
	}
	return ref != nil && *ref == configID, nil
}

func validateInput(input ConfigInput) error {
	if len(input.Buttons) > domain.MaxButtons {
		return domain.ErrTooManyButtons
	}
	for _, b := range input.Buttons {
		if strings.TrimSpace(b.Label) == "" || strings.TrimSpace(b.URL) == "" {
			return domain.ErrInvalidButton
		}
	}
	return nil
}

func applyInput(cfg *domain.PresenceConfig, input ConfigInput, now time.Time) {
	cfg.Name = input.Name
	cfg.ApplicationID = strings.TrimSpace(input.ApplicationID)
	cfg.ActivityType = input.ActivityType
	if cfg.ActivityType == "" {
		cfg.ActivityType = domain.ActivityTypePlaying
	}
	cfg.Details = input.Details
	cfg.State = input.State
	cfg.TimestampMode = input.TimestampMode
	if cfg.TimestampMode == "" {
		cfg.TimestampMode = domain.TimestampModeLive
	}
	cfg.FixedTimestamp = input.FixedTimestamp
	cfg.LargeImage = input.LargeImage
	cfg.LargeImageText = input.LargeImageText
	cfg.SmallImage = input.SmallImage
	cfg.SmallImageText = input.SmallImageText
	cfg.Buttons = append([]domain.Button(nil), input.Buttons...)
	cfg.UpdatedAt = now
}
