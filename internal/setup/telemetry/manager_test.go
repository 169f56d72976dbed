package telemetry_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/akguild/guildkeeper/internal/setup/config"
	"github.com/akguild/guildkeeper/internal/setup/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetLoggersWritesSessionFiles(t *testing.T) {
	t.Parallel()

	logDir := t.TempDir()
	manager := telemetry.NewManager(telemetry.ServiceRun, logDir, &config.Debug{LogLevel: "info", MaxLogsToKeep: 3}, false)

	logger, dbLogger, err := manager.GetLoggers()
	require.NoError(t, err)

	logger.Info("hello from main")
	dbLogger.Info("hello from database")
	manager.GetWorkerLogger("war_scheduler").Info("hello from worker")
	manager.Stop()

	sessionDir := manager.GetCurrentSessionDir()
	assert.Equal(t, logDir, filepath.Dir(sessionDir))

	for file, want := range map[string]string{
		"main.log":          "hello from main",
		"database.log":      "hello from database",
		"war_scheduler.log": "hello from worker",
	} {
		data, err := os.ReadFile(filepath.Join(sessionDir, file))
		require.NoError(t, err)
		assert.Contains(t, string(data), want)
	}

	mainLog, err := os.ReadFile(filepath.Join(sessionDir, "main.log"))
	require.NoError(t, err)
	assert.Contains(t, string(mainLog), manager.GetInstanceID())
}

func TestGetLoggersRotatesOldSessions(t *testing.T) {
	t.Parallel()

	logDir := t.TempDir()
	old := time.Now().Add(-time.Hour)

	for _, name := range []string{"2026-01-01_00-00-00", "2026-01-02_00-00-00", "2026-01-03_00-00-00"} {
		dir := filepath.Join(logDir, name)
		require.NoError(t, os.Mkdir(dir, 0o755))
		require.NoError(t, os.Chtimes(dir, old, old))
		old = old.Add(time.Minute)
	}

	manager := telemetry.NewManager(telemetry.ServiceCLI, logDir, &config.Debug{LogLevel: "debug", MaxLogsToKeep: 2}, false)

	_, _, err := manager.GetLoggers()
	require.NoError(t, err)
	t.Cleanup(manager.Stop)

	entries, err := os.ReadDir(logDir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	_, err = os.Stat(filepath.Join(logDir, "2026-01-03_00-00-00"))
	require.NoError(t, err)
}

func TestGetLoggersRejectsUnknownLevel(t *testing.T) {
	t.Parallel()

	manager := telemetry.NewManager(telemetry.ServiceRun, t.TempDir(), &config.Debug{LogLevel: "loud", MaxLogsToKeep: 1}, false)

	_, _, err := manager.GetLoggers()
	require.Error(t, err)
}
