package service_test

import (
	"context"
	"strings"
	"testing"

	"github.com/drakleaf/rpc-hub/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIKeyService_IssueAndVerify(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	key, err := f.services.APIKey.Issue(ctx, 42)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "rpk_"))
	assert.Len(t, strings.Split(key, "_"), 3)

	userID, err := f.services.APIKey.Verify(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(42), userID)

	// cached path
	userID, err = f.services.APIKey.Verify(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(42), userID)
}

func TestAPIKeyService_ReissueRevokesOldKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	old, err := f.services.APIKey.Issue(ctx, 42)
	require.NoError(t, err)
	_, err = f.services.APIKey.Verify(ctx, old)
	require.NoError(t, err)

	fresh, err := f.services.APIKey.Issue(ctx, 42)
	require.NoError(t, err)
	assert.NotEqual(t, old, fresh)

	_, err = f.services.APIKey.Verify(ctx, old)
	assert.ErrorIs(t, err, service.ErrInvalidAPIKey)

	userID, err := f.services.APIKey.Verify(ctx, fresh)
	require.NoError(t, err)
	assert.Equal(t, int64(42), userID)
}

func TestAPIKeyService_VerifyRejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	key, err := f.services.APIKey.Issue(ctx, 42)
	require.NoError(t, err)
	parts := strings.Split(key, "_")

	tests := []struct {
		name string
		key  string
	}{
		{name: "empty", key: ""},
		{name: "wrong scheme", key: "abc_" + parts[1] + "_" + parts[2]},
		{name: "unknown prefix", key: "rpk_deadbeef_" + parts[2]},
		{name: "wrong secret", key: "rpk_" + parts[1] + "_00000000000000000000000000000000"},
		{name: "missing secret", key: "rpk_" + parts[1]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.services.APIKey.Verify(ctx, tt.key)
			assert.ErrorIs(t, err, service.ErrInvalidAPIKey)
		})
	}
}
