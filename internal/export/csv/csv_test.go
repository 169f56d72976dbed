package csv

import (
	"encoding/csv"
	"os"
	"testing"
	"time"

	"github.com/akguild/guildkeeper/internal/export/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)

	return rows
}

func TestExporterExport(t *testing.T) {
	t.Parallel()

	opened := time.Date(2026, 10, 16, 15, 0, 0, 0, time.UTC)
	archive := &types.Archive{
		GuildID: 9,
		Cycles: []*types.CycleRecord{
			{ID: 3, ScheduledAt: opened, OpenedAt: opened, ClosesAt: opened.Add(time.Hour), Status: "reset", Tentative: 1},
		},
		Participants: []*types.ParticipantRecord{
			{CycleID: 3, MemberID: 500, Response: "tentative", RespondedAt: opened.Add(time.Minute)},
		},
	}

	paths, err := New(t.TempDir()).Export(archive)
	require.NoError(t, err)
	require.Len(t, paths, 2)

	cycles := readCSV(t, paths[0])
	require.Len(t, cycles, 2)
	assert.Equal(t, "id", cycles[0][0])
	assert.Equal(t, []string{
		"3", "2026-10-16T15:00:00Z", "2026-10-16T15:00:00Z", "2026-10-16T16:00:00Z", "", "reset", "0", "0", "0", "1",
	}, cycles[1])

	participants := readCSV(t, paths[1])
	require.Len(t, participants, 2)
	assert.Equal(t, []string{"3", "500", "tentative", "2026-10-16T15:01:00Z"}, participants[1])
}
