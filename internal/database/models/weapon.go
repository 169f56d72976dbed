package models

import (
	"context"
	"fmt"

	"github.com/akguild/guildkeeper/internal/database/dbretry"
	"github.com/akguild/guildkeeper/internal/database/types"
	"github.com/disgoorg/snowflake/v2"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// WeaponModel handles database operations for profile weapon selections.
type WeaponModel struct {
	db     *bun.DB
	policy dbretry.Policy
	logger *zap.Logger
}

// NewWeapon creates a WeaponModel with database access.
func NewWeapon(db *bun.DB, policy dbretry.Policy, logger *zap.Logger) *WeaponModel {
	return &WeaponModel{
		db:     db,
		policy: policy,
		logger: logger.Named("db_weapon"),
	}
}

// List retrieves a member's weapons in selection order.
func (r *WeaponModel) List(ctx context.Context, guildID, memberID snowflake.ID) ([]*types.ProfileWeapon, error) {
	return dbretry.Operation(ctx, r.policy, func(ctx context.Context) ([]*types.ProfileWeapon, error) {
		return r.ListWithTx(ctx, r.db, guildID, memberID)
	})
}

// ListWithTx retrieves a member's weapons using the given connection.
func (r *WeaponModel) ListWithTx(
	ctx context.Context, tx bun.IDB, guildID, memberID snowflake.ID,
) ([]*types.ProfileWeapon, error) {
	var weapons []*types.ProfileWeapon

	err := tx.NewSelect().Model(&weapons).
		Where("guild_id = ?", guildID).
		Where("member_id = ?", memberID).
		Order("position").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list weapons: %w (guildID=%d, memberID=%d)", err, guildID, memberID)
	}

	return weapons, nil
}

// ReplaceWithTx swaps a member's whole selection for the given weapons.
func (r *WeaponModel) ReplaceWithTx(
	ctx context.Context, tx bun.IDB, guildID, memberID snowflake.ID, weapons []string,
) ([]*types.ProfileWeapon, error) {
	if err := r.ClearWithTx(ctx, tx, guildID, memberID); err != nil {
		return nil, err
	}

	if len(weapons) == 0 {
		return nil, nil
	}

	rows := make([]*types.ProfileWeapon, len(weapons))
	for i, weapon := range weapons {
		rows[i] = &types.ProfileWeapon{
			GuildID:  guildID,
			MemberID: memberID,
			Position: i,
			Weapon:   weapon,
		}
	}

	if _, err := tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to insert weapons: %w (guildID=%d, memberID=%d)", err, guildID, memberID)
	}

	return rows, nil
}

// ClearWithTx removes every weapon of a member.
func (r *WeaponModel) ClearWithTx(ctx context.Context, tx bun.IDB, guildID, memberID snowflake.ID) error {
	_, err := tx.NewDelete().Model((*types.ProfileWeapon)(nil)).
		Where("guild_id = ?", guildID).
		Where("member_id = ?", memberID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to clear weapons: %w (guildID=%d, memberID=%d)", err, guildID, memberID)
	}

	return nil
}
