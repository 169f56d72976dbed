package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/akguild/guildkeeper/internal/database/service"
	dbTypes "github.com/akguild/guildkeeper/internal/database/types"
	"github.com/akguild/guildkeeper/internal/export/csv"
	"github.com/akguild/guildkeeper/internal/export/sqlite"
	"github.com/akguild/guildkeeper/internal/export/types"
	"github.com/bytedance/sonic"
	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"
)

var ErrUnsupportedFormat = errors.New("unsupported export format")

// Format represents a supported export format.
type Format string

const (
	FormatSQLite Format = "sqlite"
	FormatCSV    Format = "csv"
)

// EngineVersion is bumped on breaking changes to the archive layout.
const EngineVersion = "1.0.0"

// Manifest describes an export run and is written next to the archive files.
type Manifest struct {
	GuildID       string   `json:"guildId"`
	ExportedAt    string   `json:"exportedAt"`
	EngineVersion string   `json:"engineVersion"`
	Cycles        int      `json:"cycles"`
	Participants  int      `json:"participants"`
	Files         []string `json:"files"`
}

// Result lists what an export produced.
type Result struct {
	Files        []string
	Cycles       int
	Participants int
}

// Exporter writes war poll archives.
type Exporter struct {
	war     *service.WarService
	outDir  string
	formats []Format
	logger  *zap.Logger
}

// New creates a new exporter. Without formats, only the SQLite archive is written.
func New(war *service.WarService, outDir string, logger *zap.Logger, formats ...Format) *Exporter {
	if len(formats) == 0 {
		formats = []Format{FormatSQLite}
	}

	return &Exporter{
		war:     war,
		outDir:  outDir,
		formats: formats,
		logger:  logger.Named("exporter"),
	}
}

// ExportGuild writes the full war history of a guild in every configured format.
func (e *Exporter) ExportGuild(ctx context.Context, guildID snowflake.ID, now time.Time) (*Result, error) {
	cycles, participants, err := e.war.Archive(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to load war archive: %w", err)
	}

	outDir := filepath.Join(e.outDir, guildID.String())
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}

	archive := buildArchive(guildID, now, cycles, participants)
	result := &Result{
		Cycles:       len(archive.Cycles),
		Participants: len(archive.Participants),
	}

	for _, format := range e.formats {
		files, err := export(format, outDir, archive)
		if err != nil {
			return nil, fmt.Errorf("failed to export %s format: %w", format, err)
		}

		result.Files = append(result.Files, files...)
	}

	if err := writeManifest(outDir, archive, result); err != nil {
		return nil, err
	}

	e.logger.Info("Exported war archive",
		zap.Uint64("guildID", uint64(guildID)),
		zap.Int("cycles", result.Cycles),
		zap.Int("participants", result.Participants),
		zap.Strings("files", result.Files))

	return result, nil
}

// export handles exporting data in the specified format.
func export(format Format, outDir string, archive *types.Archive) ([]string, error) {
	switch format {
	case FormatSQLite:
		path, err := sqlite.New(outDir).Export(archive)
		if err != nil {
			return nil, err
		}

		return []string{path}, nil
	case FormatCSV:
		return csv.New(outDir).Export(archive)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

func writeManifest(outDir string, archive *types.Archive, result *Result) error {
	files := make([]string, len(result.Files))
	for i, file := range result.Files {
		files[i] = filepath.Base(file)
	}

	data, err := sonic.MarshalIndent(Manifest{
		GuildID:       fmt.Sprintf("%d", archive.GuildID),
		ExportedAt:    archive.ExportedAt.UTC().Format(time.RFC3339),
		EngineVersion: EngineVersion,
		Cycles:        result.Cycles,
		Participants:  result.Participants,
		Files:         files,
	}, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal export manifest: %w", err)
	}

	if err := os.WriteFile(filepath.Join(outDir, "manifest.json"), data, 0o600); err != nil {
		return fmt.Errorf("failed to write export manifest: %w", err)
	}

	return nil
}

func buildArchive(
	guildID snowflake.ID, now time.Time, cycles []*dbTypes.WarCycle, participants []*dbTypes.WarParticipant,
) *types.Archive {
	archive := &types.Archive{
		GuildID:      uint64(guildID),
		ExportedAt:   now,
		Cycles:       make([]*types.CycleRecord, 0, len(cycles)),
		Participants: make([]*types.ParticipantRecord, 0, len(participants)),
	}

	for _, c := range cycles {
		archive.Cycles = append(archive.Cycles, &types.CycleRecord{
			ID:          c.ID,
			ScheduledAt: c.ScheduledAt,
			OpenedAt:    c.OpenedAt,
			ClosesAt:    c.ClosesAt,
			ClosedAt:    c.ClosedAt,
			Status:      c.Status.String(),
			Reminders:   c.RemindersSent,
			ResetBy:     uint64(c.ResetBy),
			Yes:         c.YesCount,
			No:          c.NoCount,
			Tentative:   c.TentativeCount,
		})
	}

	for _, p := range participants {
		archive.Participants = append(archive.Participants, &types.ParticipantRecord{
			CycleID:     p.CycleID,
			MemberID:    uint64(p.MemberID),
			Response:    p.Response.String(),
			RespondedAt: p.RespondedAt,
		})
	}

	return archive
}
