package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

// Statements run one at a time because the PostgreSQL extended protocol rejects
// multi-statement queries.
var initialIndexes = []string{
	// At most one live cycle per guild
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_war_cycles_live
	ON war_cycles (guild_id)
	WHERE status IN ('open', 'reminded')`,

	// One cycle per scheduled slot
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_war_cycles_slot
	ON war_cycles (guild_id, scheduled_at)`,

	`CREATE INDEX IF NOT EXISTS idx_war_cycles_history
	ON war_cycles (guild_id, opened_at DESC)`,

	`CREATE INDEX IF NOT EXISTS idx_war_participants_guild
	ON war_participants (guild_id, member_id)`,

	// One pending request per requester
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_join_requests_pending
	ON join_requests (guild_id, requester_id)
	WHERE status = 'pending'`,

	`CREATE INDEX IF NOT EXISTS idx_join_requests_requester
	ON join_requests (guild_id, requester_id, id DESC)`,

	`CREATE INDEX IF NOT EXISTS idx_join_requests_guild_status
	ON join_requests (guild_id, status, submitted_at DESC)`,

	`CREATE INDEX IF NOT EXISTS idx_profiles_leaderboard
	ON profiles (guild_id, mastery_points DESC, level DESC)`,
}

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		for _, stmt := range initialIndexes {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to create index: %w", err)
			}
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		for _, name := range []string{
			"idx_war_cycles_live",
			"idx_war_cycles_slot",
			"idx_war_cycles_history",
			"idx_war_participants_guild",
			"idx_join_requests_pending",
			"idx_join_requests_requester",
			"idx_join_requests_guild_status",
			"idx_profiles_leaderboard",
		} {
			if _, err := db.ExecContext(ctx, "DROP INDEX IF EXISTS "+name); err != nil {
				return fmt.Errorf("failed to drop index %s: %w", name, err)
			}
		}

		return nil
	})
}
