package database

import (
	"github.com/akguild/guildkeeper/internal/database/dbretry"
	"github.com/akguild/guildkeeper/internal/database/models"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// Repository provides access to all database models.
type Repository struct {
	settings       *models.SettingsModel
	profile        *models.ProfileModel
	weapon         *models.WeaponModel
	warCycle       *models.WarCycleModel
	warParticipant *models.WarParticipantModel
	joinRequest    *models.JoinRequestModel
	language       *models.LanguageModel
}

// NewRepository creates a new repository instance with all models.
func NewRepository(db *bun.DB, policy dbretry.Policy, logger *zap.Logger) *Repository {
	weapon := models.NewWeapon(db, policy, logger)

	return &Repository{
		settings:       models.NewSettings(db, policy, logger),
		profile:        models.NewProfile(db, weapon, policy, logger),
		weapon:         weapon,
		warCycle:       models.NewWarCycle(db, policy, logger),
		warParticipant: models.NewWarParticipant(db, policy, logger),
		joinRequest:    models.NewJoinRequest(db, policy, logger),
		language:       models.NewLanguage(db, policy, logger),
	}
}

// Settings returns the server settings model repository.
func (r *Repository) Settings() *models.SettingsModel {
	return r.settings
}

// Profile returns the profile model repository.
func (r *Repository) Profile() *models.ProfileModel {
	return r.profile
}

// Weapon returns the weapon model repository.
func (r *Repository) Weapon() *models.WeaponModel {
	return r.weapon
}

// WarCycle returns the war cycle model repository.
func (r *Repository) WarCycle() *models.WarCycleModel {
	return r.warCycle
}

// WarParticipant returns the war participant model repository.
func (r *Repository) WarParticipant() *models.WarParticipantModel {
	return r.warParticipant
}

// JoinRequest returns the join request model repository.
func (r *Repository) JoinRequest() *models.JoinRequestModel {
	return r.joinRequest
}

// Language returns the language preference model repository.
func (r *Repository) Language() *models.LanguageModel {
	return r.language
}
