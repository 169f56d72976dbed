package csv

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/akguild/guildkeeper/internal/export/types"
)

// Exporter writes war archives to csv files.
type Exporter struct {
	outDir string
}

// New creates a new csv exporter instance.
func New(outDir string) *Exporter {
	return &Exporter{outDir: outDir}
}

// Export writes one file for cycles and one for participants, returning both paths.
func (e *Exporter) Export(archive *types.Archive) ([]string, error) {
	cyclesFile := fmt.Sprintf("war_%d_cycles.csv", archive.GuildID)
	participantsFile := fmt.Sprintf("war_%d_participants.csv", archive.GuildID)

	cycleRows := make([][]string, 0, len(archive.Cycles))
	for _, c := range archive.Cycles {
		cycleRows = append(cycleRows, []string{
			strconv.FormatInt(c.ID, 10),
			formatTime(c.ScheduledAt),
			formatTime(c.OpenedAt),
			formatTime(c.ClosesAt),
			formatTime(c.ClosedAt),
			c.Status,
			strconv.Itoa(c.Reminders),
			strconv.Itoa(c.Yes),
			strconv.Itoa(c.No),
			strconv.Itoa(c.Tentative),
		})
	}

	if err := e.writeFile(cyclesFile, []string{
		"id", "scheduled_at", "opened_at", "closes_at", "closed_at", "status", "reminders", "yes", "no", "tentative",
	}, cycleRows); err != nil {
		return nil, fmt.Errorf("failed to export cycles: %w", err)
	}

	participantRows := make([][]string, 0, len(archive.Participants))
	for _, p := range archive.Participants {
		participantRows = append(participantRows, []string{
			strconv.FormatInt(p.CycleID, 10),
			strconv.FormatUint(p.MemberID, 10),
			p.Response,
			formatTime(p.RespondedAt),
		})
	}

	if err := e.writeFile(participantsFile, []string{
		"cycle_id", "member_id", "response", "responded_at",
	}, participantRows); err != nil {
		return nil, fmt.Errorf("failed to export participants: %w", err)
	}

	return []string{filepath.Join(e.outDir, cyclesFile), filepath.Join(e.outDir, participantsFile)}, nil
}

// writeFile writes a header and rows to a csv file, replacing any existing one.
func (e *Exporter) writeFile(filename string, header []string, rows [][]string) error {
	file, err := os.Create(filepath.Join(e.outDir, filename))
	if err != nil {
		return fmt.Errorf("failed to create csv file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	if err := writer.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write records: %w", err)
	}

	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	return t.UTC().Format(time.RFC3339)
}
