package models

import (
	"context"
	"fmt"

	"github.com/akguild/guildkeeper/internal/database/dbretry"
	"github.com/akguild/guildkeeper/internal/database/types"
	"github.com/akguild/guildkeeper/internal/database/types/enum"
	"github.com/disgoorg/snowflake/v2"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// WarParticipantModel handles database operations for war poll responses.
type WarParticipantModel struct {
	db     *bun.DB
	policy dbretry.Policy
	logger *zap.Logger
}

// NewWarParticipant creates a WarParticipantModel with database access.
func NewWarParticipant(db *bun.DB, policy dbretry.Policy, logger *zap.Logger) *WarParticipantModel {
	return &WarParticipantModel{
		db:     db,
		policy: policy,
		logger: logger.Named("db_war_participant"),
	}
}

// UpsertWithTx records a response, replacing the member's earlier answer for the cycle.
func (r *WarParticipantModel) UpsertWithTx(ctx context.Context, tx bun.IDB, participant *types.WarParticipant) error {
	_, err := tx.NewInsert().Model(participant).
		On("CONFLICT (cycle_id, member_id) DO UPDATE").
		Set("response = EXCLUDED.response").
		Set("responded_at = EXCLUDED.responded_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to record response: %w (cycleID=%d, memberID=%d)",
			err, participant.CycleID, participant.MemberID)
	}

	return nil
}

// ListByCycle retrieves the responses of a cycle in answer order.
func (r *WarParticipantModel) ListByCycle(ctx context.Context, cycleID int64) ([]*types.WarParticipant, error) {
	return dbretry.Operation(ctx, r.policy, func(ctx context.Context) ([]*types.WarParticipant, error) {
		var participants []*types.WarParticipant

		err := r.db.NewSelect().Model(&participants).
			Where("cycle_id = ?", cycleID).
			Order("responded_at ASC", "member_id ASC").
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list participants: %w (cycleID=%d)", err, cycleID)
		}

		return participants, nil
	})
}

// CountByCycleWithTx tallies the responses of a cycle.
func (r *WarParticipantModel) CountByCycleWithTx(ctx context.Context, tx bun.IDB, cycleID int64) (types.WarSummary, error) {
	var rows []struct {
		Response enum.WarResponse `bun:"response"`
		Count    int              `bun:"count"`
	}

	err := tx.NewSelect().Model((*types.WarParticipant)(nil)).
		Column("response").
		ColumnExpr("COUNT(*) AS count").
		Where("cycle_id = ?", cycleID).
		Group("response").
		Scan(ctx, &rows)
	if err != nil {
		return types.WarSummary{}, fmt.Errorf("failed to count responses: %w (cycleID=%d)", err, cycleID)
	}

	var summary types.WarSummary
	for _, row := range rows {
		summary.Add(row.Response, row.Count)
	}

	return summary, nil
}

// ListByGuild retrieves every response recorded in a guild.
func (r *WarParticipantModel) ListByGuild(ctx context.Context, guildID snowflake.ID) ([]*types.WarParticipant, error) {
	return dbretry.Operation(ctx, r.policy, func(ctx context.Context) ([]*types.WarParticipant, error) {
		var participants []*types.WarParticipant

		err := r.db.NewSelect().Model(&participants).
			Where("guild_id = ?", guildID).
			Order("cycle_id ASC", "responded_at ASC").
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list guild participants: %w (guildID=%d)", err, guildID)
		}

		return participants, nil
	})
}

// DeleteByGuildWithTx removes every response recorded in a guild.
func (r *WarParticipantModel) DeleteByGuildWithTx(ctx context.Context, tx bun.IDB, guildID snowflake.ID) error {
	_, err := tx.NewDelete().Model((*types.WarParticipant)(nil)).
		Where("guild_id = ?", guildID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete guild participants: %w (guildID=%d)", err, guildID)
	}

	return nil
}
