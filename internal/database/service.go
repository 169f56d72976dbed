package database

import (
	"github.com/akguild/guildkeeper/internal/database/dbretry"
	"github.com/akguild/guildkeeper/internal/database/service"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// Service provides access to all business logic services.
type Service struct {
	settings *service.SettingsService
	profile  *service.ProfileService
	war      *service.WarService
	language *service.LanguageService
	guild    *service.GuildService
}

// NewService creates a new service instance with all services.
func NewService(db *bun.DB, repository *Repository, policy dbretry.Policy, logger *zap.Logger) *Service {
	settingsModel := repository.Settings()
	profileModel := repository.Profile()
	languageModel := repository.Language()
	warCycleModel := repository.WarCycle()
	warParticipantModel := repository.WarParticipant()

	return &Service{
		settings: service.NewSettings(settingsModel, logger),
		profile:  service.NewProfile(db, profileModel, languageModel, policy, logger),
		war:      service.NewWar(db, warCycleModel, warParticipantModel, profileModel, settingsModel, policy, logger),
		language: service.NewLanguage(languageModel, settingsModel, logger),
		guild: service.NewGuild(db, settingsModel, profileModel, warCycleModel, warParticipantModel,
			repository.JoinRequest(), languageModel, policy, logger),
	}
}

// Settings returns the settings service.
func (s *Service) Settings() *service.SettingsService {
	return s.settings
}

// Profile returns the profile service.
func (s *Service) Profile() *service.ProfileService {
	return s.profile
}

// War returns the war poll service.
func (s *Service) War() *service.WarService {
	return s.war
}

// Language returns the language service.
func (s *Service) Language() *service.LanguageService {
	return s.language
}

// Guild returns the guild-wide maintenance service.
func (s *Service) Guild() *service.GuildService {
	return s.guild
}
