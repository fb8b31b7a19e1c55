package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand/v2"
	"net/http"
	"testing"
	"time"

	"github.com/drakleaf/rpc-hub/internal/domain"
	"github.com/drakleaf/rpc-hub/internal/repository"
	"github.com/google/uuid"
)

// NewUserID returns a random snowflake-sized user id.
func NewUserID() int64 {
	return 100000000000000000 + rand.Int64N(900000000000000000)
}

// PresenceConfigBuilder creates test presence configs with a builder pattern
type PresenceConfigBuilder struct {
	cfg domain.PresenceConfig
}

// NewPresenceConfigBuilder creates a builder with an activatable default config
func NewPresenceConfigBuilder() *PresenceConfigBuilder {
	now := time.Now()
	return &PresenceConfigBuilder{cfg: domain.PresenceConfig{
		ID:            uuid.New(),
		OwnerUserID:   NewUserID(),
		Name:          "test presence",
		ApplicationID: "1419030874640613446",
		ActivityType:  domain.ActivityTypePlaying,
		TimestampMode: domain.TimestampModeLive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}}
}

func (b *PresenceConfigBuilder) WithOwner(userID int64) *PresenceConfigBuilder {
	b.cfg.OwnerUserID = userID
	return b
}

func (b *PresenceConfigBuilder) WithApplicationID(id string) *PresenceConfigBuilder {
	b.cfg.ApplicationID = id
	return b
}

func (b *PresenceConfigBuilder) WithDetails(details string) *PresenceConfigBuilder {
	b.cfg.Details = &details
	return b
}

func (b *PresenceConfigBuilder) WithState(state string) *PresenceConfigBuilder {
	b.cfg.State = &state
	return b
}

func (b *PresenceConfigBuilder) WithActivityType(t domain.ActivityType) *PresenceConfigBuilder {
	b.cfg.ActivityType = t
	return b
}

// WithTimestamp sets the mode and, for fixed mode, the raw epoch text
func (b *PresenceConfigBuilder) WithTimestamp(mode domain.TimestampMode, fixed *string) *PresenceConfigBuilder {
	b.cfg.TimestampMode = mode
	b.cfg.FixedTimestamp = fixed
	return b
}

func (b *PresenceConfigBuilder) WithLargeImage(url, text string) *PresenceConfigBuilder {
	b.cfg.LargeImage = &url
	b.cfg.LargeImageText = &text
	return b
}

func (b *PresenceConfigBuilder) WithSmallImage(url, text string) *PresenceConfigBuilder {
	b.cfg.SmallImage = &url
	b.cfg.SmallImageText = &text
	return b
}

func (b *PresenceConfigBuilder) WithButton(label, url string) *PresenceConfigBuilder {
	b.cfg.Buttons = append(b.cfg.Buttons, domain.Button{Label: label, URL: url})
	return b
}

// Build returns the config without persisting it
func (b *PresenceConfigBuilder) Build() *domain.PresenceConfig {
	cfg := b.cfg
	cfg.Buttons = append(cfg.Buttons[:0:0], b.cfg.Buttons...)
	return &cfg
}

// Create persists the config through repo
func (b *PresenceConfigBuilder) Create(t *testing.T, repo repository.PresenceConfigRepository) *domain.PresenceConfig {
	t.Helper()

	cfg := b.Build()
	if err := repo.Create(context.Background(), cfg); err != nil {
		t.Fatalf("failed to create presence config: %v", err)
	}
	return cfg
}

// StringPtr returns a pointer to s
func StringPtr(s string) *string {
	return &s
}

// CreateAuthenticatedRequest creates an HTTP request with auth token
func CreateAuthenticatedRequest(t *testing.T, method, url string, body interface{}, token string) *http.Request {
	t.Helper()

	var bodyReader *bytes.Buffer
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		bodyReader = bytes.NewBuffer(jsonBody)
	} else {
		bodyReader = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, url, bodyReader)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return req
}
