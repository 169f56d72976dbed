package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/akguild/guildkeeper/internal/database/models"
	"github.com/akguild/guildkeeper/internal/database/types"
	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"
)

// Bounds for the poll timing settings, in minutes.
const (
	MinCloseAfterMinutes = 60
	MaxCloseAfterMinutes = 7 * 24 * 60
	MaxReminderOffset    = 7 * 24 * 60
)

// WarTiming holds the cycle timing an admin may change. Zero values keep the current setting.
type WarTiming struct {
	ReminderOffsets   []int
	CloseAfterMinutes int
	Timezone          string
	WarChannelID      snowflake.ID
}

// SettingsService handles per-guild configuration.
type SettingsService struct {
	model  *models.SettingsModel
	logger *zap.Logger
}

// NewSettings creates a new settings service.
func NewSettings(model *models.SettingsModel, logger *zap.Logger) *SettingsService {
	return &SettingsService{
		model:  model,
		logger: logger.Named("settings_service"),
	}
}

// Get retrieves the settings of a guild, or the defaults when none are stored.
func (s *SettingsService) Get(ctx context.Context, guildID snowflake.ID) (*types.ServerSettings, error) {
	return s.model.Get(ctx, guildID)
}

// ListPollEnabled retrieves the settings of every guild with scheduled polls.
func (s *SettingsService) ListPollEnabled(ctx context.Context) ([]*types.ServerSettings, error) {
	return s.model.ListPollEnabled(ctx)
}

// SetPollSchedule sets the weekly poll start and enables scheduled polls.
func (s *SettingsService) SetPollSchedule(
	ctx context.Context, guildID snowflake.ID, weekday time.Weekday, hour, minute int,
) (*types.ServerSettings, error) {
	return s.update(ctx, guildID, func(settings *types.ServerSettings) {
		settings.PollEnabled = true
		settings.PollWeekday = int(weekday)
		settings.PollHour = hour
		settings.PollMinute = minute
	})
}

// SetPollEnabled turns scheduled polls on or off.
func (s *SettingsService) SetPollEnabled(ctx context.Context, guildID snowflake.ID, enabled bool) (*types.ServerSettings, error) {
	return s.update(ctx, guildID, func(settings *types.ServerSettings) {
		settings.PollEnabled = enabled
	})
}

// SetWarTiming changes reminder offsets, close delay, timezone and the poll channel.
func (s *SettingsService) SetWarTiming(ctx context.Context, guildID snowflake.ID, timing WarTiming) (*types.ServerSettings, error) {
	return s.update(ctx, guildID, func(settings *types.ServerSettings) {
		if timing.ReminderOffsets != nil {
			settings.ReminderOffsets = types.ReminderOffsets(timing.ReminderOffsets)
		}

		if timing.CloseAfterMinutes != 0 {
			settings.CloseAfterMinutes = timing.CloseAfterMinutes
		}

		if timing.Timezone != "" {
			settings.Timezone = strings.TrimSpace(timing.Timezone)
		}

		if timing.WarChannelID != 0 {
			settings.WarChannelID = timing.WarChannelID
		}
	})
}

// SetJoinThreshold sets the minimum power for join requests.
func (s *SettingsService) SetJoinThreshold(ctx context.Context, guildID snowflake.ID, threshold int64) (*types.ServerSettings, error) {
	return s.update(ctx, guildID, func(settings *types.ServerSettings) {
		settings.JoinThreshold = threshold
	})
}

// SetJoinRoles sets the role granted on approval and the applicant role revoked on decision.
func (s *SettingsService) SetJoinRoles(
	ctx context.Context, guildID, memberRoleID, applicantRoleID snowflake.ID,
) (*types.ServerSettings, error) {
	return s.update(ctx, guildID, func(settings *types.ServerSettings) {
		settings.MemberRoleID = memberRoleID
		settings.ApplicantRoleID = applicantRoleID
	})
}

// BuildRoles holds the roles mirrored onto members for each build. A zero ID
// leaves that build without a role.
type BuildRoles struct {
	DPS     snowflake.ID
	Tank    snowflake.ID
	Healer  snowflake.ID
	Support snowflake.ID
}

// SetBuildRoles sets the roles granted for each build.
func (s *SettingsService) SetBuildRoles(ctx context.Context, guildID snowflake.ID, roles BuildRoles) (*types.ServerSettings, error) {
	return s.update(ctx, guildID, func(settings *types.ServerSettings) {
		settings.DPSRoleID = roles.DPS
		settings.TankRoleID = roles.Tank
		settings.HealerRoleID = roles.Healer
		settings.SupportRoleID = roles.Support
	})
}

// SetAdminChannel sets where join requests are announced.
func (s *SettingsService) SetAdminChannel(ctx context.Context, guildID, channelID snowflake.ID) (*types.ServerSettings, error) {
	return s.update(ctx, guildID, func(settings *types.ServerSettings) {
		settings.AdminChannelID = channelID
	})
}

// SetDefaultLanguage sets the language used for members without a preference.
func (s *SettingsService) SetDefaultLanguage(ctx context.Context, guildID snowflake.ID, language string) (*types.ServerSettings, error) {
	code, err := NormalizeLanguage(language)
	if err != nil {
		return nil, err
	}

	return s.update(ctx, guildID, func(settings *types.ServerSettings) {
		settings.DefaultLanguage = code
	})
}

// update applies a change to the current settings, validates and stores the result.
func (s *SettingsService) update(
	ctx context.Context, guildID snowflake.ID, apply func(*types.ServerSettings),
) (*types.ServerSettings, error) {
	settings, err := s.model.Get(ctx, guildID)
	if err != nil {
		return nil, err
	}

	apply(settings)

	if err := ValidateSettings(settings); err != nil {
		return nil, err
	}

	if err := s.model.Save(ctx, settings); err != nil {
		return nil, err
	}

	s.logger.Debug("Server settings updated", zap.Uint64("guildID", uint64(guildID)))

	return settings, nil
}

// ValidateSettings checks every field of the settings.
func ValidateSettings(settings *types.ServerSettings) error {
	if settings.PollWeekday < int(time.Sunday) || settings.PollWeekday > int(time.Saturday) {
		return fmt.Errorf("%w: weekday %d", ErrInvalidSchedule, settings.PollWeekday)
	}

	if settings.PollHour < 0 || settings.PollHour > 23 {
		return fmt.Errorf("%w: hour must be between 0 and 23", ErrInvalidSchedule)
	}

	if settings.PollMinute < 0 || settings.PollMinute > 59 {
		return fmt.Errorf("%w: minute must be between 0 and 59", ErrInvalidSchedule)
	}

	if _, err := time.LoadLocation(settings.Timezone); err != nil || settings.Timezone == "" {
		return fmt.Errorf("%w: %q", ErrInvalidTimezone, settings.Timezone)
	}

	if settings.CloseAfterMinutes < MinCloseAfterMinutes || settings.CloseAfterMinutes > MaxCloseAfterMinutes {
		return fmt.Errorf("%w: close after must be between %d and %d minutes",
			ErrInvalidSchedule, MinCloseAfterMinutes, MaxCloseAfterMinutes)
	}

	for _, offset := range settings.ReminderOffsets {
		if offset < 1 || offset > MaxReminderOffset {
			return fmt.Errorf("%w: %d is outside 1..%d", ErrInvalidOffsets, offset, MaxReminderOffset)
		}

		if offset >= settings.CloseAfterMinutes {
			return fmt.Errorf("%w: %d is not before the close at %d", ErrInvalidOffsets, offset, settings.CloseAfterMinutes)
		}
	}

	if settings.JoinThreshold < 0 {
		return fmt.Errorf("%w: join threshold must not be negative", ErrInvalidSetting)
	}

	if _, err := NormalizeLanguage(settings.DefaultLanguage); err != nil {
		return err
	}

	return nil
}

// ParseWeekday accepts a weekday name, its three-letter abbreviation, or 0 (Sunday) to 6.
func ParseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))

	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 || n > 6 {
			return 0, fmt.Errorf("%w: weekday %d", ErrInvalidSchedule, n)
		}

		return time.Weekday(n), nil
	}

	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if s == name || (len(s) >= 3 && strings.HasPrefix(name, s)) {
			return d, nil
		}
	}

	return 0, fmt.Errorf("%w: weekday %q", ErrInvalidSchedule, s)
}

// ParseClock parses a 24-hour "HH:MM" time of day.
func ParseClock(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: time %q, expected HH:MM", ErrInvalidSchedule, s)
	}

	return t.Hour(), t.Minute(), nil
}

// ParseOffsets parses a comma separated list of reminder offsets in minutes.
func ParseOffsets(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "none") {
		return []int{}, nil
	}

	parts := strings.Split(s, ",")
	offsets := make([]int, 0, len(parts))

	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a number of minutes", ErrInvalidOffsets, part)
		}

		offsets = append(offsets, n)
	}

	return offsets, nil
}
