package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/akguild/guildkeeper/internal/database/dbretry"
	"github.com/akguild/guildkeeper/internal/database/types"
	"github.com/disgoorg/snowflake/v2"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// SettingsModel handles database operations for per-guild settings.
type SettingsModel struct {
	db     *bun.DB
	policy dbretry.Policy
	logger *zap.Logger
}

// NewSettings creates a SettingsModel with database access.
func NewSettings(db *bun.DB, policy dbretry.Policy, logger *zap.Logger) *SettingsModel {
	return &SettingsModel{
		db:     db,
		policy: policy,
		logger: logger.Named("db_settings"),
	}
}

// Get retrieves the settings of a guild, or the defaults when none are stored.
func (r *SettingsModel) Get(ctx context.Context, guildID snowflake.ID) (*types.ServerSettings, error) {
	return dbretry.Operation(ctx, r.policy, func(ctx context.Context) (*types.ServerSettings, error) {
		return r.GetWithTx(ctx, r.db, guildID)
	})
}

// GetWithTx retrieves the settings of a guild using the given connection.
func (r *SettingsModel) GetWithTx(ctx context.Context, tx bun.IDB, guildID snowflake.ID) (*types.ServerSettings, error) {
	settings := types.NewServerSettings(guildID)

	err := tx.NewSelect().Model(settings).
		WherePK().
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.NewServerSettings(guildID), nil
		}

		return nil, fmt.Errorf("failed to get server settings: %w (guildID=%d)", err, guildID)
	}

	return settings, nil
}

// Save updates or creates the settings of a guild.
func (r *SettingsModel) Save(ctx context.Context, settings *types.ServerSettings) error {
	settings.UpdatedAt = time.Now().UTC()

	return dbretry.NoResult(ctx, r.policy, func(ctx context.Context) error {
		_, err := r.db.NewInsert().Model(settings).
			On("CONFLICT (guild_id) DO UPDATE").
			Set("poll_enabled = EXCLUDED.poll_enabled").
			Set("poll_weekday = EXCLUDED.poll_weekday").
			Set("poll_hour = EXCLUDED.poll_hour").
			Set("poll_minute = EXCLUDED.poll_minute").
			Set("timezone = EXCLUDED.timezone").
			Set("reminder_offsets = EXCLUDED.reminder_offsets").
			Set("close_after_minutes = EXCLUDED.close_after_minutes").
			Set("join_threshold = EXCLUDED.join_threshold").
			Set("member_role_id = EXCLUDED.member_role_id").
			Set("applicant_role_id = EXCLUDED.applicant_role_id").
			Set("war_channel_id = EXCLUDED.war_channel_id").
			Set("admin_channel_id = EXCLUDED.admin_channel_id").
			Set("dps_role_id = EXCLUDED.dps_role_id").
			Set("tank_role_id = EXCLUDED.tank_role_id").
			Set("healer_role_id = EXCLUDED.healer_role_id").
			Set("support_role_id = EXCLUDED.support_role_id").
			Set("default_language = EXCLUDED.default_language").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to save server settings: %w (guildID=%d)", err, settings.GuildID)
		}

		return nil
	})
}

// ListPollEnabled retrieves the settings of every guild with scheduled polls.
func (r *SettingsModel) ListPollEnabled(ctx context.Context) ([]*types.ServerSettings, error) {
	return dbretry.Operation(ctx, r.policy, func(ctx context.Context) ([]*types.ServerSettings, error) {
		var settings []*types.ServerSettings

		err := r.db.NewSelect().Model(&settings).
			Where("poll_enabled = ?", true).
			Order("guild_id").
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list poll-enabled guilds: %w", err)
		}

		return settings, nil
	})
}

// DeleteWithTx removes the settings of a guild.
func (r *SettingsModel) DeleteWithTx(ctx context.Context, tx bun.IDB, guildID snowflake.ID) error {
	_, err := tx.NewDelete().Model((*types.ServerSettings)(nil)).
		Where("guild_id = ?", guildID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete server settings: %w (guildID=%d)", err, guildID)
	}

	return nil
}
