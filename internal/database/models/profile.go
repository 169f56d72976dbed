package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/akguild/guildkeeper/internal/database/dberr"
	"github.com/akguild/guildkeeper/internal/database/dbretry"
	"github.com/akguild/guildkeeper/internal/database/types"
	"github.com/akguild/guildkeeper/internal/database/types/enum"
	"github.com/disgoorg/snowflake/v2"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// ProfileModel handles database operations for member profiles.
type ProfileModel struct {
	db      *bun.DB
	weapons *WeaponModel
	policy  dbretry.Policy
	logger  *zap.Logger
}

// NewProfile creates a ProfileModel with database access.
func NewProfile(db *bun.DB, weapons *WeaponModel, policy dbretry.Policy, logger *zap.Logger) *ProfileModel {
	return &ProfileModel{
		db:      db,
		weapons: weapons,
		policy:  policy,
		logger:  logger.Named("db_profile"),
	}
}

// Get retrieves a profile with its weapons. Returns nil when the member has no profile.
func (r *ProfileModel) Get(ctx context.Context, guildID, memberID snowflake.ID) (*types.Profile, error) {
	return dbretry.Operation(ctx, r.policy, func(ctx context.Context) (*types.Profile, error) {
		return r.GetWithTx(ctx, r.db, guildID, memberID)
	})
}

// GetWithTx retrieves a profile with its weapons using the given connection.
func (r *ProfileModel) GetWithTx(ctx context.Context, tx bun.IDB, guildID, memberID snowflake.ID) (*types.Profile, error) {
	profile := &types.Profile{GuildID: guildID, MemberID: memberID}

	err := tx.NewSelect().Model(profile).
		WherePK().
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to get profile: %w (guildID=%d, memberID=%d)", err, guildID, memberID)
	}

	profile.Weapons, err = r.weapons.ListWithTx(ctx, tx, guildID, memberID)
	if err != nil {
		return nil, err
	}

	return profile, nil
}

// SaveBuild sets the build and replaces the weapon selection in one transaction.
// The profile is created when missing; stats of an existing profile are kept.
func (r *ProfileModel) SaveBuild(
	ctx context.Context, guildID, memberID snowflake.ID, inGameName string, build enum.BuildType, weapons []string,
) (*types.Profile, error) {
	var profile *types.Profile

	err := dbretry.Transaction(ctx, r.db, r.policy, func(ctx context.Context, tx bun.Tx) error {
		now := time.Now().UTC()
		profile = &types.Profile{
			GuildID:    guildID,
			MemberID:   memberID,
			InGameName: inGameName,
			Build:      build,
			CreatedAt:  now,
			UpdatedAt:  now,
		}

		q := tx.NewInsert().Model(profile).
			On("CONFLICT (guild_id, member_id) DO UPDATE").
			Set("build = EXCLUDED.build").
			Set("updated_at = EXCLUDED.updated_at")
		if inGameName != "" {
			q = q.Set("in_game_name = EXCLUDED.in_game_name")
		}

		if _, err := q.Exec(ctx); err != nil {
			return fmt.Errorf("failed to save build: %w (guildID=%d, memberID=%d)", err, guildID, memberID)
		}

		if _, err := r.weapons.ReplaceWithTx(ctx, tx, guildID, memberID, weapons); err != nil {
			return err
		}

		var err error

		profile, err = r.GetWithTx(ctx, tx, guildID, memberID)

		return err
	})
	if err != nil {
		return nil, err
	}

	return profile, nil
}

// ResetBuild clears the build and weapons of an existing profile.
func (r *ProfileModel) ResetBuild(ctx context.Context, guildID, memberID snowflake.ID) error {
	return dbretry.Transaction(ctx, r.db, r.policy, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().Model((*types.Profile)(nil)).
			Set("build = ?", enum.BuildTypeUnset).
			Set("updated_at = ?", time.Now().UTC()).
			Where("guild_id = ?", guildID).
			Where("member_id = ?", memberID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to reset build: %w (guildID=%d, memberID=%d)", err, guildID, memberID)
		}

		if err := requireAffected(res, "profile"); err != nil {
			return err
		}

		return r.weapons.ClearWithTx(ctx, tx, guildID, memberID)
	})
}

// UpdateStats sets mastery points and level of an existing profile.
func (r *ProfileModel) UpdateStats(ctx context.Context, guildID, memberID snowflake.ID, masteryPoints int64, level int) error {
	return dbretry.NoResult(ctx, r.policy, func(ctx context.Context) error {
		res, err := r.db.NewUpdate().Model((*types.Profile)(nil)).
			Set("mastery_points = ?", masteryPoints).
			Set("level = ?", level).
			Set("updated_at = ?", time.Now().UTC()).
			Where("guild_id = ?", guildID).
			Where("member_id = ?", memberID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to update stats: %w (guildID=%d, memberID=%d)", err, guildID, memberID)
		}

		return requireAffected(res, "profile")
	})
}

// UpdateName sets the in-game name of an existing profile.
func (r *ProfileModel) UpdateName(ctx context.Context, guildID, memberID snowflake.ID, name string) error {
	return dbretry.NoResult(ctx, r.policy, func(ctx context.Context) error {
		res, err := r.db.NewUpdate().Model((*types.Profile)(nil)).
			Set("in_game_name = ?", name).
			Set("updated_at = ?", time.Now().UTC()).
			Where("guild_id = ?", guildID).
			Where("member_id = ?", memberID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to update name: %w (guildID=%d, memberID=%d)", err, guildID, memberID)
		}

		return requireAffected(res, "profile")
	})
}

// UpsertWithTx creates a profile or refreshes its name and stats, leaving the build untouched.
func (r *ProfileModel) UpsertWithTx(ctx context.Context, tx bun.IDB, profile *types.Profile) error {
	_, err := tx.NewInsert().Model(profile).
		On("CONFLICT (guild_id, member_id) DO UPDATE").
		Set("in_game_name = EXCLUDED.in_game_name").
		Set("mastery_points = EXCLUDED.mastery_points").
		Set("level = EXCLUDED.level").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to upsert profile: %w (guildID=%d, memberID=%d)",
			err, profile.GuildID, profile.MemberID)
	}

	return nil
}

// DeleteWithTx removes a profile; its weapons go with it through the foreign key.
// Returns whether a profile existed.
func (r *ProfileModel) DeleteWithTx(ctx context.Context, tx bun.IDB, guildID, memberID snowflake.ID) (bool, error) {
	// Explicit weapon removal keeps this correct even if foreign keys are disabled
	if err := r.weapons.ClearWithTx(ctx, tx, guildID, memberID); err != nil {
		return false, err
	}

	res, err := tx.NewDelete().Model((*types.Profile)(nil)).
		Where("guild_id = ?", guildID).
		Where("member_id = ?", memberID).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to delete profile: %w (guildID=%d, memberID=%d)", err, guildID, memberID)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

// DeleteByGuildWithTx removes every profile and weapon of a guild.
func (r *ProfileModel) DeleteByGuildWithTx(ctx context.Context, tx bun.IDB, guildID snowflake.ID) error {
	if _, err := tx.NewDelete().Model((*types.ProfileWeapon)(nil)).
		Where("guild_id = ?", guildID).
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete guild weapons: %w (guildID=%d)", err, guildID)
	}

	if _, err := tx.NewDelete().Model((*types.Profile)(nil)).
		Where("guild_id = ?", guildID).
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete guild profiles: %w (guildID=%d)", err, guildID)
	}

	return nil
}

// Leaderboard retrieves the top profiles of a guild by mastery points, then level.
func (r *ProfileModel) Leaderboard(ctx context.Context, guildID snowflake.ID, limit int) ([]*types.Profile, error) {
	return dbretry.Operation(ctx, r.policy, func(ctx context.Context) ([]*types.Profile, error) {
		var profiles []*types.Profile

		err := r.db.NewSelect().Model(&profiles).
			Where("guild_id = ?", guildID).
			Order("mastery_points DESC", "level DESC", "member_id ASC").
			Limit(limit).
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get leaderboard: %w (guildID=%d)", err, guildID)
		}

		return profiles, nil
	})
}

// ListByMembers retrieves the profiles of the given members of a guild. Members
// without a profile are left out.
func (r *ProfileModel) ListByMembers(ctx context.Context, guildID snowflake.ID, memberIDs []snowflake.ID) ([]*types.Profile, error) {
	if len(memberIDs) == 0 {
		return nil, nil
	}

	return dbretry.Operation(ctx, r.policy, func(ctx context.Context) ([]*types.Profile, error) {
		var profiles []*types.Profile

		err := r.db.NewSelect().Model(&profiles).
			Where("guild_id = ?", guildID).
			Where("member_id IN (?)", bun.In(memberIDs)).
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list profiles: %w (guildID=%d, members=%d)", err, guildID, len(memberIDs))
		}

		return profiles, nil
	})
}

// requireAffected turns an update that matched nothing into ErrNotFound.
func requireAffected(res sql.Result, entity string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("%s: %w", entity, dberr.ErrNotFound)
	}

	return nil
}
