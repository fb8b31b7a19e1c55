package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/drakleaf/rpc-hub/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("RPCHUB_AUTH_JWT_SECRET", "secret")

	cfg, err := config.Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "secret", cfg.Auth.JWTSecret)
	assert.Equal(t, 24, cfg.Auth.JWTExpirationHours)
	assert.Equal(t, 30*time.Second, cfg.RPC.ReconcileInterval)
	assert.Equal(t, 5*time.Second, cfg.RPC.Timeout)
	assert.Empty(t, cfg.NATS.URL)
	assert.Equal(t, "rpchub", cfg.NATS.SubjectPrefix)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("RPCHUB_AUTH_JWT_SECRET", "secret")
	t.Setenv("RPCHUB_PORT", "9090")
	t.Setenv("RPCHUB_RPC_RECONCILE_INTERVAL", "45s")
	t.Setenv("RPCHUB_NATS_URL", "nats://localhost:4222")
	t.Setenv("RPCHUB_DEFAULT_PRESENCE_APPLICATION_ID", "1419030874640613446")

	cfg, err := config.Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 45*time.Second, cfg.RPC.ReconcileInterval)
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
	assert.Equal(t, "1419030874640613446", cfg.DefaultPresence.ApplicationID)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "environment: production\nauth:\n  jwt_secret: from-file\nrpc:\n  timeout: 2s\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := config.Load([]string{"--config", path})
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.Auth.JWTSecret)
	assert.Equal(t, 2*time.Second, cfg.RPC.Timeout)
	assert.True(t, cfg.IsProduction())
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing jwt secret", env: map[string]string{}},
		{name: "zero interval", env: map[string]string{
			"RPCHUB_AUTH_JWT_SECRET":        "secret",
			"RPCHUB_RPC_RECONCILE_INTERVAL": "0s",
		}},
		{name: "negative timeout", env: map[string]string{
			"RPCHUB_AUTH_JWT_SECRET": "secret",
			"RPCHUB_RPC_TIMEOUT":     "-1s",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("RPCHUB_AUTH_JWT_SECRET", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := config.Load(nil)
			assert.Error(t, err)
		})
	}
}
