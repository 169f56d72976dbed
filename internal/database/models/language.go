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

// LanguageModel handles database operations for member language preferences.
type LanguageModel struct {
	db     *bun.DB
	policy dbretry.Policy
	logger *zap.Logger
}

// NewLanguage creates a LanguageModel with database access.
func NewLanguage(db *bun.DB, policy dbretry.Policy, logger *zap.Logger) *LanguageModel {
	return &LanguageModel{
		db:     db,
		policy: policy,
		logger: logger.Named("db_language"),
	}
}

// Get retrieves a member's preferred language. Returns an empty string when none is stored.
func (r *LanguageModel) Get(ctx context.Context, guildID, memberID snowflake.ID) (string, error) {
	return dbretry.Operation(ctx, r.policy, func(ctx context.Context) (string, error) {
		pref := &types.LanguagePreference{GuildID: guildID, MemberID: memberID}

		err := r.db.NewSelect().Model(pref).
			WherePK().
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return "", nil
			}

			return "", fmt.Errorf("failed to get language: %w (guildID=%d, memberID=%d)", err, guildID, memberID)
		}

		return pref.Language, nil
	})
}

// Set stores a member's preferred language.
func (r *LanguageModel) Set(ctx context.Context, guildID, memberID snowflake.ID, language string) error {
	return dbretry.NoResult(ctx, r.policy, func(ctx context.Context) error {
		_, err := r.db.NewInsert().Model(&types.LanguagePreference{
			GuildID:   guildID,
			MemberID:  memberID,
			Language:  language,
			UpdatedAt: time.Now().UTC(),
		}).
			On("CONFLICT (guild_id, member_id) DO UPDATE").
			Set("language = EXCLUDED.language").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to set language: %w (guildID=%d, memberID=%d)", err, guildID, memberID)
		}

		return nil
	})
}

// DeleteWithTx removes a member's preference.
func (r *LanguageModel) DeleteWithTx(ctx context.Context, tx bun.IDB, guildID, memberID snowflake.ID) error {
	_, err := tx.NewDelete().Model((*types.LanguagePreference)(nil)).
		Where("guild_id = ?", guildID).
		Where("member_id = ?", memberID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete language: %w (guildID=%d, memberID=%d)", err, guildID, memberID)
	}

	return nil
}

// DeleteByGuildWithTx removes every preference in a guild.
func (r *LanguageModel) DeleteByGuildWithTx(ctx context.Context, tx bun.IDB, guildID snowflake.ID) error {
	_, err := tx.NewDelete().Model((*types.LanguagePreference)(nil)).
		Where("guild_id = ?", guildID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete guild languages: %w (guildID=%d)", err, guildID)
	}

	return nil
}
