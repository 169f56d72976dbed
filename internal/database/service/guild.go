package service

import (
	"context"

	"github.com/akguild/guildkeeper/internal/database/dbretry"
	"github.com/akguild/guildkeeper/internal/database/models"
	"github.com/disgoorg/snowflake/v2"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// GuildService handles guild-wide maintenance.
type GuildService struct {
	db           *bun.DB
	settings     *models.SettingsModel
	profiles     *models.ProfileModel
	cycles       *models.WarCycleModel
	participants *models.WarParticipantModel
	requests     *models.JoinRequestModel
	languages    *models.LanguageModel
	policy       dbretry.Policy
	logger       *zap.Logger
}

// NewGuild creates a new guild service.
func NewGuild(
	db *bun.DB,
	settings *models.SettingsModel,
	profiles *models.ProfileModel,
	cycles *models.WarCycleModel,
	participants *models.WarParticipantModel,
	requests *models.JoinRequestModel,
	languages *models.LanguageModel,
	policy dbretry.Policy,
	logger *zap.Logger,
) *GuildService {
	return &GuildService{
		db:           db,
		settings:     settings,
		profiles:     profiles,
		cycles:       cycles,
		participants: participants,
		requests:     requests,
		languages:    languages,
		policy:       policy,
		logger:       logger.Named("guild_service"),
	}
}

// ClearAll removes every stored row of a guild in one transaction.
func (s *GuildService) ClearAll(ctx context.Context, guildID snowflake.ID) error {
	err := dbretry.Transaction(ctx, s.db, s.policy, func(ctx context.Context, tx bun.Tx) error {
		// Children before parents so the foreign keys never block a delete
		if err := s.participants.DeleteByGuildWithTx(ctx, tx, guildID); err != nil {
			return err
		}

		if err := s.cycles.DeleteByGuildWithTx(ctx, tx, guildID); err != nil {
			return err
		}

		if err := s.profiles.DeleteByGuildWithTx(ctx, tx, guildID); err != nil {
			return err
		}

		if err := s.requests.DeleteByGuildWithTx(ctx, tx, guildID); err != nil {
			return err
		}

		if err := s.languages.DeleteByGuildWithTx(ctx, tx, guildID); err != nil {
			return err
		}

		return s.settings.DeleteWithTx(ctx, tx, guildID)
	})
	if err != nil {
		return err
	}

	s.logger.Warn("Cleared all guild data", zap.Uint64("guildID", uint64(guildID)))

	return nil
}
