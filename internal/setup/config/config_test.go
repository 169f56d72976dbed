package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/akguild/guildkeeper/internal/setup/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()

	for _, key := range []string{"DATABASE_URL", "DATABASE_PATH", "PORT", "DISCORD_TOKEN", "REDIS_URL", "LOG_LEVEL"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.FileName), []byte(content), 0o600))

	return dir
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, usedPath, err := config.Load([]string{t.TempDir()})
	require.NoError(t, err)

	assert.Empty(t, usedPath)
	assert.Empty(t, cfg.Database.URL)
	assert.Equal(t, "data/guildkeeper.db", cfg.Database.Path)
	assert.Equal(t, 8080, cfg.Health.Port)
	assert.Equal(t, 60, cfg.Scheduler.TickInterval)
	assert.Equal(t, "info", cfg.Debug.LogLevel)
}

func TestLoadEnvironmentOverridesFile(t *testing.T) {
	clearEnv(t)

	dir := writeConfig(t, `
version = 1

[database]
url = "postgres://file@localhost/guild"

[health]
port = 9000
`)

	t.Setenv("DATABASE_URL", "postgres://env@localhost/guild")
	t.Setenv("PORT", "9100")
	t.Setenv("DISCORD_TOKEN", "secret")

	cfg, usedPath, err := config.Load([]string{dir})
	require.NoError(t, err)

	assert.Equal(t, dir, usedPath)
	assert.Equal(t, "postgres://env@localhost/guild", cfg.Database.URL)
	assert.Equal(t, 9100, cfg.Health.Port)
	assert.Equal(t, "secret", cfg.Discord.Token)
}

func TestLoadVersionChecks(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{
			name:    "missing version",
			content: "[health]\nport = 8081\n",
			wantErr: config.ErrConfigVersionMissing,
		},
		{
			name:    "version mismatch",
			content: "version = 99\n",
			wantErr: config.ErrConfigVersionMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)

			_, _, err := config.Load([]string{writeConfig(t, tt.content)})
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLoadRejectsInvalidPort(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "70000")

	_, _, err := config.Load([]string{t.TempDir()})
	require.ErrorIs(t, err, config.ErrInvalidConfig)
}
