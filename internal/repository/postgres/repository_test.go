package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/drakleaf/rpc-hub/internal/domain"
	"github.com/drakleaf/rpc-hub/internal/repository/postgres"
	"github.com/drakleaf/rpc-hub/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepositories(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repos := postgres.NewRepositories(testDB.DB)
	ctx := context.Background()

	t.Run("user upsert keeps active reference", func(t *testing.T) {
		testDB.Truncate(t)

		cfg := testutil.NewPresenceConfigBuilder().WithOwner(42).Create(t, repos.PresenceConfig)
		require.NoError(t, repos.User.Upsert(ctx, &domain.User{ID: 42, Username: "first"}))
		require.NoError(t, repos.User.SetActiveConfigID(ctx, 42, &cfg.ID))
		require.NoError(t, repos.User.Upsert(ctx, &domain.User{ID: 42, Username: "second"}))

		user, err := repos.User.GetByID(ctx, 42)
		require.NoError(t, err)
		assert.Equal(t, "second", user.Username)
		require.NotNil(t, user.ActiveConfigID)
		assert.Equal(t, cfg.ID, *user.ActiveConfigID)
	})

	t.Run("active reference for unknown user", func(t *testing.T) {
		testDB.Truncate(t)

		ref, err := repos.User.GetActiveConfigID(ctx, 7)
		require.NoError(t, err)
		assert.Nil(t, ref)

		id := uuid.New()
		require.NoError(t, repos.User.SetActiveConfigID(ctx, 7, &id))
		ref, err = repos.User.GetActiveConfigID(ctx, 7)
		require.NoError(t, err)
		require.NotNil(t, ref)
		assert.Equal(t, id, *ref)

		require.NoError(t, repos.User.SetActiveConfigID(ctx, 7, nil))
		ref, err = repos.User.GetActiveConfigID(ctx, 7)
		require.NoError(t, err)
		assert.Nil(t, ref)
	})

	t.Run("list active joins configs", func(t *testing.T) {
		testDB.Truncate(t)

		c1 := testutil.NewPresenceConfigBuilder().WithOwner(1).WithDetails("one").Create(t, repos.PresenceConfig)
		c3 := testutil.NewPresenceConfigBuilder().WithOwner(3).Create(t, repos.PresenceConfig)
		dangling := uuid.New()

		require.NoError(t, repos.User.SetActiveConfigID(ctx, 3, &c3.ID))
		require.NoError(t, repos.User.SetActiveConfigID(ctx, 1, &c1.ID))
		require.NoError(t, repos.User.SetActiveConfigID(ctx, 2, nil))
		require.NoError(t, repos.User.SetActiveConfigID(ctx, 4, &dangling))

		assignments, err := repos.User.ListActive(ctx)
		require.NoError(t, err)
		require.Len(t, assignments, 2)
		assert.Equal(t, int64(1), assignments[0].UserID)
		assert.Equal(t, c1.ID, assignments[0].Config.ID)
		require.NotNil(t, assignments[0].Config.Details)
		assert.Equal(t, "one", *assignments[0].Config.Details)
		assert.Equal(t, int64(3), assignments[1].UserID)
	})

	t.Run("presence config round trip", func(t *testing.T) {
		testDB.Truncate(t)

		cfg := testutil.NewPresenceConfigBuilder().
			WithOwner(42).
			WithActivityType(domain.ActivityTypeListening).
			WithTimestamp(domain.TimestampModeFixed, testutil.StringPtr("1690000000")).
			WithButton("Discord", "https://discord.gg/9HC8RANtJ9").
			Create(t, repos.PresenceConfig)

		got, err := repos.PresenceConfig.GetByID(ctx, cfg.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.ActivityTypeListening, got.ActivityType)
		assert.Equal(t, domain.TimestampModeFixed, got.TimestampMode)
		require.Len(t, got.Buttons, 1)
		assert.Equal(t, "Discord", got.Buttons[0].Label)

		got.Name = "renamed"
		require.NoError(t, repos.PresenceConfig.Update(ctx, got))
		owned, err := repos.PresenceConfig.GetByOwner(ctx, 42)
		require.NoError(t, err)
		require.Len(t, owned, 1)
		assert.Equal(t, "renamed", owned[0].Name)

		require.NoError(t, repos.PresenceConfig.Delete(ctx, cfg.ID))
		_, err = repos.PresenceConfig.GetByID(ctx, cfg.ID)
		assert.ErrorIs(t, err, domain.ErrConfigNotFound)
	})

	t.Run("api key replace", func(t *testing.T) {
		testDB.Truncate(t)

		first := &domain.APIKey{ID: uuid.New(), UserID: 42, Prefix: "aaaa1111", KeyHash: "h1", CreatedAt: time.Now()}
		second := &domain.APIKey{ID: uuid.New(), UserID: 42, Prefix: "bbbb2222", KeyHash: "h2", CreatedAt: time.Now()}
		require.NoError(t, repos.APIKey.Replace(ctx, first))
		require.NoError(t, repos.APIKey.Replace(ctx, second))

		_, err := repos.APIKey.GetByPrefix(ctx, "aaaa1111")
		assert.Error(t, err)

		got, err := repos.APIKey.GetByPrefix(ctx, "bbbb2222")
		require.NoError(t, err)
		assert.Equal(t, int64(42), got.UserID)
		assert.Equal(t, "h2", got.KeyHash)
	})
}
