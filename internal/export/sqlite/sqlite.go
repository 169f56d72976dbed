package sqlite

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/akguild/guildkeeper/internal/export/types"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

const schema = `
CREATE TABLE cycles (
	id INTEGER PRIMARY KEY,
	scheduled_at TEXT NOT NULL,
	opened_at TEXT NOT NULL,
	closes_at TEXT NOT NULL,
	closed_at TEXT,
	status TEXT NOT NULL,
	reminders INTEGER NOT NULL,
	reset_by TEXT,
	yes_count INTEGER NOT NULL,
	no_count INTEGER NOT NULL,
	tentative_count INTEGER NOT NULL
);
CREATE TABLE participants (
	cycle_id INTEGER NOT NULL REFERENCES cycles(id),
	member_id TEXT NOT NULL,
	response TEXT NOT NULL,
	responded_at TEXT NOT NULL,
	PRIMARY KEY (cycle_id, member_id)
);
CREATE TABLE meta (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// Exporter writes war archives to standalone SQLite databases.
type Exporter struct {
	outDir string
}

// New creates a new SQLite exporter instance.
func New(outDir string) *Exporter {
	return &Exporter{outDir: outDir}
}

// FileName returns the archive file name for a guild.
func FileName(guildID uint64) string {
	return fmt.Sprintf("war_%d.db", guildID)
}

// Export writes the archive and returns the path of the database file.
// An existing archive for the guild is replaced.
func (e *Exporter) Export(archive *types.Archive) (string, error) {
	path := filepath.Join(e.outDir, FileName(archive.GuildID))
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to remove existing file %s: %w", path, err)
	}

	conn, err := sqlite.OpenConn(path, sqlite.OpenCreate|sqlite.OpenReadWrite)
	if err != nil {
		return "", fmt.Errorf("failed to open SQLite database: %w", err)
	}
	defer conn.Close()

	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		return "", fmt.Errorf("failed to create tables: %w", err)
	}

	if err := write(conn, archive); err != nil {
		return "", err
	}

	return path, nil
}

// write inserts all records in a single transaction.
func write(conn *sqlite.Conn, archive *types.Archive) (err error) {
	endFn, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer endFn(&err)

	for key, value := range map[string]string{
		"guild_id":    fmt.Sprintf("%d", archive.GuildID),
		"exported_at": formatTime(archive.ExportedAt),
	} {
		if err := sqlitex.Execute(conn, "INSERT INTO meta (key, value) VALUES (?, ?)", &sqlitex.ExecOptions{
			Args: []any{key, value},
		}); err != nil {
			return fmt.Errorf("failed to insert meta %s: %w", key, err)
		}
	}

	for _, cycle := range archive.Cycles {
		var resetBy any
		if cycle.ResetBy != 0 {
			resetBy = fmt.Sprintf("%d", cycle.ResetBy)
		}

		var closedAt any
		if !cycle.ClosedAt.IsZero() {
			closedAt = formatTime(cycle.ClosedAt)
		}

		err := sqlitex.Execute(conn, `INSERT INTO cycles (
			id, scheduled_at, opened_at, closes_at, closed_at, status,
			reminders, reset_by, yes_count, no_count, tentative_count
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, &sqlitex.ExecOptions{
			Args: []any{
				cycle.ID, formatTime(cycle.ScheduledAt), formatTime(cycle.OpenedAt), formatTime(cycle.ClosesAt),
				closedAt, cycle.Status, cycle.Reminders, resetBy, cycle.Yes, cycle.No, cycle.Tentative,
			},
		})
		if err != nil {
			return fmt.Errorf("failed to insert cycle %d: %w", cycle.ID, err)
		}
	}

	for _, p := range archive.Participants {
		err := sqlitex.Execute(conn,
			"INSERT INTO participants (cycle_id, member_id, response, responded_at) VALUES (?, ?, ?, ?)",
			&sqlitex.ExecOptions{
				Args: []any{p.CycleID, fmt.Sprintf("%d", p.MemberID), p.Response, formatTime(p.RespondedAt)},
			})
		if err != nil {
			return fmt.Errorf("failed to insert participant %d of cycle %d: %w", p.MemberID, p.CycleID, err)
		}
	}

	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
