package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DAEDALUS_STAGING_DIR", "DAEDALUS_PARTITIONS", "DAEDALUS_EXEC_TIMEOUT",
		"DAEDALUS_CONTEXT_CACHE_SIZE", "DAEDALUS_OTLP_ENDPOINT", "DAEDALUS_NATS_URL",
		"SENTRY_DSN", "AZURE_STORAGE_CONNECTION_STRING", "DAEDALUS_SETTINGS_CONTAINER",
	} {
		t.Setenv(key, "")
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, SourceAutoDetect, cfg.PartitionsSource)
	assert.GreaterOrEqual(t, cfg.Partitions, 1)
	assert.Equal(t, 30*time.Second, cfg.ExecTimeout)
	assert.Equal(t, 256, cfg.ContextCacheSize)
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.NATSURL)
	assert.Equal(t, "daedalus-settings", cfg.SettingsContainer)
	assert.NotContains(t, cfg.String(), "AccountKey")
}

func TestFromEnv_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DAEDALUS_PARTITIONS", "6")
	t.Setenv("DAEDALUS_EXEC_TIMEOUT", "2m")
	t.Setenv("DAEDALUS_STAGING_DIR", "/srv/staging")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.Partitions)
	assert.Equal(t, SourceEnvVar, cfg.PartitionsSource)
	assert.Equal(t, 2*time.Minute, cfg.ExecTimeout)
	assert.Equal(t, "/srv/staging", cfg.StagingDir)
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		key, value, want string
	}{
		{"DAEDALUS_PARTITIONS", "many", "invalid DAEDALUS_PARTITIONS"},
		{"DAEDALUS_EXEC_TIMEOUT", "soon", "invalid DAEDALUS_EXEC_TIMEOUT"},
		{"DAEDALUS_CONTEXT_CACHE_SIZE", "0", "must be positive"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)
			_, err := FromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	// godotenv does not override variables that are already set.
	require.NoError(t, os.Unsetenv("DAEDALUS_NATS_URL"))
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("DAEDALUS_NATS_URL=nats://queue:4222\n"), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "nats://queue:4222", cfg.NATSURL)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}
