package service

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/akguild/guildkeeper/internal/database/dberr"
	"github.com/akguild/guildkeeper/internal/database/dbretry"
	"github.com/akguild/guildkeeper/internal/database/models"
	"github.com/akguild/guildkeeper/internal/database/types"
	"github.com/akguild/guildkeeper/internal/database/types/enum"
	"github.com/akguild/guildkeeper/pkg/utils"
	"github.com/disgoorg/snowflake/v2"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

const (
	// MaxNameLength is the longest accepted in-game name, in runes.
	MaxNameLength = 32
	// MaxLevel is the highest character level.
	MaxLevel = 100
	// DefaultLeaderboardSize is used when no size is requested.
	DefaultLeaderboardSize = 10
	// MaxLeaderboardSize caps a leaderboard page.
	MaxLeaderboardSize = 25
)

// SetupRequest holds the answers of the guided profile setup.
type SetupRequest struct {
	GuildID    snowflake.ID
	MemberID   snowflake.ID
	InGameName string
	Build      string
	Weapons    []string
}

// ProfileService handles profile-related business logic.
type ProfileService struct {
	db       *bun.DB
	model    *models.ProfileModel
	language *models.LanguageModel
	policy   dbretry.Policy
	logger   *zap.Logger
}

// NewProfile creates a new profile service.
func NewProfile(
	db *bun.DB, model *models.ProfileModel, language *models.LanguageModel, policy dbretry.Policy, logger *zap.Logger,
) *ProfileService {
	return &ProfileService{
		db:       db,
		model:    model,
		language: language,
		policy:   policy,
		logger:   logger.Named("profile_service"),
	}
}

// Setup validates the build and weapons and stores them, creating the profile if needed.
func (s *ProfileService) Setup(ctx context.Context, req SetupRequest) (*types.Profile, error) {
	build, err := enum.BuildTypeString(req.Build)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBuild, req.Build)
	}

	weapons, err := ValidateWeapons(build, req.Weapons)
	if err != nil {
		return nil, err
	}

	var name string
	if req.InGameName != "" {
		if name, err = NormalizeName(req.InGameName); err != nil {
			return nil, err
		}
	}

	profile, err := s.model.SaveBuild(ctx, req.GuildID, req.MemberID, name, build, weapons)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("Profile build saved",
		zap.Uint64("guildID", uint64(req.GuildID)),
		zap.Uint64("memberID", uint64(req.MemberID)),
		zap.String("build", build.String()),
		zap.Strings("weapons", weapons))

	return profile, nil
}

// Get retrieves a member's profile.
func (s *ProfileService) Get(ctx context.Context, guildID, memberID snowflake.ID) (*types.Profile, error) {
	profile, err := s.model.Get(ctx, guildID, memberID)
	if err != nil {
		return nil, err
	}

	if profile == nil {
		return nil, ErrProfileNotFound
	}

	return profile, nil
}

// ResetBuild clears the build and weapons so the member can pick again.
func (s *ProfileService) ResetBuild(ctx context.Context, guildID, memberID snowflake.ID) error {
	if err := s.model.ResetBuild(ctx, guildID, memberID); err != nil {
		return profileLookupError(err)
	}

	return nil
}

// Delete removes a member's profile, weapons and language preference.
// War responses stay for history.
func (s *ProfileService) Delete(ctx context.Context, guildID, memberID snowflake.ID) error {
	return dbretry.Transaction(ctx, s.db, s.policy, func(ctx context.Context, tx bun.Tx) error {
		existed, err := s.model.DeleteWithTx(ctx, tx, guildID, memberID)
		if err != nil {
			return err
		}

		if !existed {
			return ErrProfileNotFound
		}

		return s.language.DeleteWithTx(ctx, tx, guildID, memberID)
	})
}

// UpdateStats sets mastery points and level.
func (s *ProfileService) UpdateStats(ctx context.Context, guildID, memberID snowflake.ID, masteryPoints int64, level int) error {
	if masteryPoints < 0 {
		return fmt.Errorf("%w: mastery points must not be negative", ErrInvalidStats)
	}

	if level < 1 || level > MaxLevel {
		return fmt.Errorf("%w: level must be between 1 and %d", ErrInvalidStats, MaxLevel)
	}

	if err := s.model.UpdateStats(ctx, guildID, memberID, masteryPoints, level); err != nil {
		return profileLookupError(err)
	}

	return nil
}

// ChangeName sets a new in-game name and returns the stored form.
func (s *ProfileService) ChangeName(ctx context.Context, guildID, memberID snowflake.ID, name string) (string, error) {
	name, err := NormalizeName(name)
	if err != nil {
		return "", err
	}

	if err := s.model.UpdateName(ctx, guildID, memberID, name); err != nil {
		return "", profileLookupError(err)
	}

	return name, nil
}

// Leaderboard returns the top profiles of a guild. Sizes outside 1..MaxLeaderboardSize are clamped.
func (s *ProfileService) Leaderboard(ctx context.Context, guildID snowflake.ID, size int) ([]*types.Profile, error) {
	switch {
	case size <= 0:
		size = DefaultLeaderboardSize
	case size > MaxLeaderboardSize:
		size = MaxLeaderboardSize
	}

	return s.model.Leaderboard(ctx, guildID, size)
}

// ByMembers returns the profiles of the given members keyed by member ID.
func (s *ProfileService) ByMembers(
	ctx context.Context, guildID snowflake.ID, memberIDs []snowflake.ID,
) (map[snowflake.ID]*types.Profile, error) {
	profiles, err := s.model.ListByMembers(ctx, guildID, memberIDs)
	if err != nil {
		return nil, err
	}

	byMember := make(map[snowflake.ID]*types.Profile, len(profiles))
	for _, p := range profiles {
		byMember[p.MemberID] = p
	}

	return byMember, nil
}

// ValidateWeapons checks a weapon selection against the build catalog.
func ValidateWeapons(build enum.BuildType, weapons []string) ([]string, error) {
	if len(weapons) == 0 {
		return nil, ErrNoWeapons
	}

	if len(weapons) > types.MaxWeapons {
		return nil, fmt.Errorf("%w: %d selected, at most %d allowed", ErrTooManyWeapons, len(weapons), types.MaxWeapons)
	}

	selected := make([]string, 0, len(weapons))
	seen := make(map[string]struct{}, len(weapons))

	for _, weapon := range weapons {
		weapon = utils.CompressAllWhitespace(weapon)
		if !types.IsWeaponAllowed(build, weapon) {
			return nil, fmt.Errorf("%w: %q for %s", ErrWeaponNotAllowed, weapon, build)
		}

		if _, ok := seen[weapon]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateWeapon, weapon)
		}

		seen[weapon] = struct{}{}
		selected = append(selected, weapon)
	}

	return selected, nil
}

// NormalizeName collapses whitespace and checks the length of an in-game name.
func NormalizeName(name string) (string, error) {
	name = utils.CompressAllWhitespace(name)

	if name == "" {
		return "", fmt.Errorf("%w: name is empty", ErrInvalidName)
	}

	if utf8.RuneCountInString(name) > MaxNameLength {
		return "", fmt.Errorf("%w: name is longer than %d characters", ErrInvalidName, MaxNameLength)
	}

	return name, nil
}

// profileLookupError reports a missing profile with the service error.
func profileLookupError(err error) error {
	if errors.Is(err, dberr.ErrNotFound) {
		return ErrProfileNotFound
	}

	return err
}
