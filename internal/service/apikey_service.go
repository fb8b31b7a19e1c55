package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/drakleaf/rpc-hub/internal/domain"
	"github.com/drakleaf/rpc-hub/internal/repository"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"golang.org/x/crypto/bcrypt"
)

const apiKeyScheme = "rpk"

var ErrInvalidAPIKey = errors.New("invalid api key")

// APIKeyService issues and verifies per-user API keys of the form rpk_<prefix>_<secret>.
// Only a bcrypt hash of the full key is stored; successful verifications are cached so the
// hash is not recomputed on every request.
type APIKeyService struct {
	keyRepo  repository.APIKeyRepository
	verified *cache.Cache
}

func NewAPIKeyService(keyRepo repository.APIKeyRepository, ttl time.Duration) *APIKeyService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &APIKeyService{
		keyRepo:  keyRepo,
		verified: cache.New(ttl, 2*ttl),
	}
}

// Issue creates a new key for the user, replacing any previous one. The plaintext key is
// only ever returned here.
func (s *APIKeyService) Issue(ctx context.Context, userID int64) (string, error) {
	prefix := randomToken()[:8]
	plaintext := fmt.Sprintf("%s_%s_%s", apiKeyScheme, prefix, randomToken())

	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	key := &domain.APIKey{
		ID:        uuid.New(),
		UserID:    userID,
		Prefix:    prefix,
		KeyHash:   string(hash),
		CreatedAt: time.Now(),
	}
	if err := s.keyRepo.Replace(ctx, key); err != nil {
		return "", fmt.Errorf("store api key: %w", err)
	}

	// the previous key stops working immediately
	for k, item := range s.verified.Items() {
		if id, ok := item.Object.(int64); ok && id == userID {
			s.verified.Delete(k)
		}
	}

	return plaintext, nil
}

// Verify returns the owner of key.
func (s *APIKeyService) Verify(ctx context.Context, key string) (int64, error) {
	if cached, ok := s.verified.Get(key); ok {
		return cached.(int64), nil
	}

	parts := strings.SplitN(key, "_", 3)
	if len(parts) != 3 || parts[0] != apiKeyScheme || parts[1] == "" || parts[2] == "" {
		return 0, ErrInvalidAPIKey
	}

	stored, err := s.keyRepo.GetByPrefix(ctx, parts[1])
	if err != nil {
		return 0, ErrInvalidAPIKey
	}
	if err := bcrypt.CompareHashAndPassword([]byte(stored.KeyHash), []byte(key)); err != nil {
		return 0, ErrInvalidAPIKey
	}

	s.verified.SetDefault(key, stored.UserID)
	return stored.UserID, nil
}

func randomToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
