package export_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/akguild/guildkeeper/internal/database/dbtest"
	"github.com/akguild/guildkeeper/internal/database/service"
	"github.com/akguild/guildkeeper/internal/export"
	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestExportGuild(t *testing.T) {
	t.Parallel()

	client := dbtest.Open(t)
	services := client.Service()
	guildID := dbtest.NewID()
	memberID := dbtest.NewID()
	now := time.Date(2026, 10, 16, 18, 0, 0, 0, time.UTC)

	_, err := services.Profile().Setup(t.Context(), service.SetupRequest{
		GuildID: guildID, MemberID: memberID, InGameName: "Swift Crane", Build: "tank", Weapons: []string{"Thunder Blade"},
	})
	require.NoError(t, err)

	_, err = services.War().OpenNow(t.Context(), guildID, now)
	require.NoError(t, err)

	_, err = services.War().Respond(t.Context(), guildID, memberID, "yes", now.Add(time.Minute))
	require.NoError(t, err)

	outDir := t.TempDir()
	exporter := export.New(services.War(), outDir, zaptest.NewLogger(t), export.FormatSQLite, export.FormatCSV)

	result, err := exporter.ExportGuild(t.Context(), guildID, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Cycles)
	assert.Equal(t, 1, result.Participants)
	require.Len(t, result.Files, 3)

	for _, file := range result.Files {
		assert.FileExists(t, file)
	}

	data, err := os.ReadFile(filepath.Join(outDir, guildID.String(), "manifest.json"))
	require.NoError(t, err)

	var manifest export.Manifest
	require.NoError(t, sonic.Unmarshal(data, &manifest))
	assert.Equal(t, guildID.String(), manifest.GuildID)
	assert.Equal(t, export.EngineVersion, manifest.EngineVersion)
	assert.Equal(t, "2026-10-16T19:00:00Z", manifest.ExportedAt)
	assert.Len(t, manifest.Files, 3)
}

func TestExportGuildUnsupportedFormat(t *testing.T) {
	t.Parallel()

	client := dbtest.Open(t)
	exporter := export.New(client.Service().War(), t.TempDir(), zaptest.NewLogger(t), export.Format("xml"))

	_, err := exporter.ExportGuild(t.Context(), dbtest.NewID(), time.Now())
	require.ErrorIs(t, err, export.ErrUnsupportedFormat)
}
