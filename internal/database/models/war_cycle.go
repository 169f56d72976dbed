package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/akguild/guildkeeper/internal/database/dbretry"
	"github.com/akguild/guildkeeper/internal/database/types"
	"github.com/akguild/guildkeeper/internal/database/types/enum"
	"github.com/disgoorg/snowflake/v2"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

var liveStatuses = []enum.CycleStatus{enum.CycleStatusOpen, enum.CycleStatusReminded}

// WarCycleModel handles database operations for war poll cycles.
type WarCycleModel struct {
	db     *bun.DB
	policy dbretry.Policy
	logger *zap.Logger
}

// NewWarCycle creates a WarCycleModel with database access.
func NewWarCycle(db *bun.DB, policy dbretry.Policy, logger *zap.Logger) *WarCycleModel {
	return &WarCycleModel{
		db:     db,
		policy: policy,
		logger: logger.Named("db_war_cycle"),
	}
}

// GetLive retrieves the open or reminded cycle of a guild. Returns nil when there is none.
func (r *WarCycleModel) GetLive(ctx context.Context, guildID snowflake.ID) (*types.WarCycle, error) {
	return dbretry.Operation(ctx, r.policy, func(ctx context.Context) (*types.WarCycle, error) {
		return r.getLive(ctx, r.db, guildID, false)
	})
}

// GetLiveWithTx retrieves and locks the live cycle of a guild.
func (r *WarCycleModel) GetLiveWithTx(ctx context.Context, tx bun.IDB, guildID snowflake.ID) (*types.WarCycle, error) {
	return r.getLive(ctx, tx, guildID, true)
}

func (r *WarCycleModel) getLive(
	ctx context.Context, tx bun.IDB, guildID snowflake.ID, lock bool,
) (*types.WarCycle, error) {
	cycle := new(types.WarCycle)

	q := tx.NewSelect().Model(cycle).
		Where("guild_id = ?", guildID).
		Where("status IN (?)", bun.In(liveStatuses)).
		Order("scheduled_at DESC").
		Limit(1)
	if lock {
		q = forUpdate(q)
	}

	if err := q.Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to get live cycle: %w (guildID=%d)", err, guildID)
	}

	return cycle, nil
}

// ListLive retrieves every live cycle across guilds.
func (r *WarCycleModel) ListLive(ctx context.Context) ([]*types.WarCycle, error) {
	return dbretry.Operation(ctx, r.policy, func(ctx context.Context) ([]*types.WarCycle, error) {
		var cycles []*types.WarCycle

		err := r.db.NewSelect().Model(&cycles).
			Where("status IN (?)", bun.In(liveStatuses)).
			Order("guild_id").
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list live cycles: %w", err)
		}

		return cycles, nil
	})
}

// Get retrieves a cycle by ID. Returns nil when it does not exist.
func (r *WarCycleModel) Get(ctx context.Context, cycleID int64) (*types.WarCycle, error) {
	return dbretry.Operation(ctx, r.policy, func(ctx context.Context) (*types.WarCycle, error) {
		cycle := &types.WarCycle{ID: cycleID}

		err := r.db.NewSelect().Model(cycle).
			WherePK().
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, nil
			}

			return nil, fmt.Errorf("failed to get cycle: %w (cycleID=%d)", err, cycleID)
		}

		return cycle, nil
	})
}

// ExistsForSlotWithTx checks whether a cycle was already created for a scheduled slot.
func (r *WarCycleModel) ExistsForSlotWithTx(
	ctx context.Context, tx bun.IDB, guildID snowflake.ID, scheduledAt time.Time,
) (bool, error) {
	exists, err := tx.NewSelect().Model((*types.WarCycle)(nil)).
		Where("guild_id = ?", guildID).
		Where("scheduled_at = ?", scheduledAt.UTC()).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check cycle slot: %w (guildID=%d)", err, guildID)
	}

	return exists, nil
}

// CreateWithTx inserts a new cycle and fills in its ID.
func (r *WarCycleModel) CreateWithTx(ctx context.Context, tx bun.IDB, cycle *types.WarCycle) error {
	if _, err := tx.NewInsert().Model(cycle).Returning("id").Exec(ctx); err != nil {
		return fmt.Errorf("failed to create cycle: %w (guildID=%d)", err, cycle.GuildID)
	}

	return nil
}

// UpdateWithTx writes the mutable state of a cycle.
func (r *WarCycleModel) UpdateWithTx(ctx context.Context, tx bun.IDB, cycle *types.WarCycle) error {
	_, err := tx.NewUpdate().Model(cycle).
		Column("status", "reminders_sent", "reminded_at", "closed_at", "reset_by",
			"yes_count", "no_count", "tentative_count").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update cycle: %w (cycleID=%d)", err, cycle.ID)
	}

	return nil
}

// ListHistory retrieves the most recent cycles of a guild, newest first.
func (r *WarCycleModel) ListHistory(ctx context.Context, guildID snowflake.ID, limit int) ([]*types.WarCycle, error) {
	return dbretry.Operation(ctx, r.policy, func(ctx context.Context) ([]*types.WarCycle, error) {
		var cycles []*types.WarCycle

		err := r.db.NewSelect().Model(&cycles).
			Where("guild_id = ?", guildID).
			Order("scheduled_at DESC", "id DESC").
			Limit(limit).
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list cycle history: %w (guildID=%d)", err, guildID)
		}

		return cycles, nil
	})
}

// ListAll retrieves every cycle of a guild, oldest first.
func (r *WarCycleModel) ListAll(ctx context.Context, guildID snowflake.ID) ([]*types.WarCycle, error) {
	return dbretry.Operation(ctx, r.policy, func(ctx context.Context) ([]*types.WarCycle, error) {
		var cycles []*types.WarCycle

		err := r.db.NewSelect().Model(&cycles).
			Where("guild_id = ?", guildID).
			Order("scheduled_at ASC", "id ASC").
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list cycles: %w (guildID=%d)", err, guildID)
		}

		return cycles, nil
	})
}

// PruneBefore removes finished cycles scheduled before the cutoff, with their participants.
func (r *WarCycleModel) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var removed int64

	err := dbretry.Transaction(ctx, r.db, r.policy, func(ctx context.Context, tx bun.Tx) error {
		finished := tx.NewSelect().Model((*types.WarCycle)(nil)).
			Column("id").
			Where("status NOT IN (?)", bun.In(liveStatuses)).
			Where("scheduled_at < ?", cutoff.UTC())

		if _, err := tx.NewDelete().Model((*types.WarParticipant)(nil)).
			Where("cycle_id IN (?)", finished).
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to prune participants: %w", err)
		}

		res, err := tx.NewDelete().Model((*types.WarCycle)(nil)).
			Where("status NOT IN (?)", bun.In(liveStatuses)).
			Where("scheduled_at < ?", cutoff.UTC()).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to prune cycles: %w", err)
		}

		removed, err = res.RowsAffected()

		return err
	})
	if err != nil {
		return 0, err
	}

	return removed, nil
}

// DeleteEndedWithTx removes the finished cycles of a guild whose window closed
// at or before now. Participants go with them through the foreign key.
func (r *WarCycleModel) DeleteEndedWithTx(ctx context.Context, tx bun.IDB, guildID snowflake.ID, now time.Time) (int64, error) {
	res, err := tx.NewDelete().Model((*types.WarCycle)(nil)).
		Where("guild_id = ?", guildID).
		Where("status NOT IN (?)", bun.In(liveStatuses)).
		Where("closes_at <= ?", now.UTC()).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to delete ended cycles: %w (guildID=%d)", err, guildID)
	}

	return res.RowsAffected()
}

// ClearSummariesWithTx zeroes the frozen response counts of every cycle of a guild.
func (r *WarCycleModel) ClearSummariesWithTx(ctx context.Context, tx bun.IDB, guildID snowflake.ID) error {
	_, err := tx.NewUpdate().Model((*types.WarCycle)(nil)).
		Set("yes_count = 0").
		Set("no_count = 0").
		Set("tentative_count = 0").
		Where("guild_id = ?", guildID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to clear cycle summaries: %w (guildID=%d)", err, guildID)
	}

	return nil
}

// DeleteByGuildWithTx removes every cycle of a guild.
func (r *WarCycleModel) DeleteByGuildWithTx(ctx context.Context, tx bun.IDB, guildID snowflake.ID) error {
	_, err := tx.NewDelete().Model((*types.WarCycle)(nil)).
		Where("guild_id = ?", guildID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete guild cycles: %w (guildID=%d)", err, guildID)
	}

	return nil
}
