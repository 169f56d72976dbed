package types

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"time"
	_ "time/tzdata" // guild timezones must load on hosts without zoneinfo

	"github.com/akguild/guildkeeper/internal/database/types/enum"
	"github.com/bytedance/sonic"
	"github.com/disgoorg/snowflake/v2"
	"github.com/uptrace/bun"
)

// ErrUnsupportedOffsets is returned when a stored offsets value has an unexpected type.
var ErrUnsupportedOffsets = errors.New("unsupported reminder offsets value")

// Defaults applied to guilds without stored settings.
const (
	DefaultPollWeekday       = time.Friday
	DefaultPollHour          = 15
	DefaultPollMinute        = 0
	DefaultTimezone          = "Africa/Cairo"
	DefaultCloseAfterMinutes = 24 * 60
	DefaultLanguage          = "en"
)

// DefaultReminderOffsets is the reminder schedule in minutes after the poll opens.
func DefaultReminderOffsets() ReminderOffsets {
	return ReminderOffsets{120}
}

// ReminderOffsets lists reminder times in minutes after a cycle opens.
// It is stored as a JSON array so both backends share one column layout.
type ReminderOffsets []int

// Value implements driver.Valuer.
func (o ReminderOffsets) Value() (driver.Value, error) {
	if o == nil {
		return "[]", nil
	}

	b, err := sonic.Marshal([]int(o))
	if err != nil {
		return nil, err
	}

	return string(b), nil
}

// Scan implements sql.Scanner.
func (o *ReminderOffsets) Scan(src any) error {
	var data []byte

	switch v := src.(type) {
	case nil:
		*o = ReminderOffsets{}
		return nil
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedOffsets, src)
	}

	var offsets []int
	if err := sonic.Unmarshal(data, &offsets); err != nil {
		return fmt.Errorf("failed to decode reminder offsets: %w", err)
	}

	*o = offsets

	return nil
}

// Durations converts the offsets to durations.
func (o ReminderOffsets) Durations() []time.Duration {
	durations := make([]time.Duration, len(o))
	for i, minutes := range o {
		durations[i] = time.Duration(minutes) * time.Minute
	}

	return durations
}

// ServerSettings stores per-guild configuration.
type ServerSettings struct {
	bun.BaseModel `bun:"table:server_settings"`

	GuildID           snowflake.ID    `bun:",pk"`
	PollEnabled       bool            `bun:",notnull"`
	PollWeekday       int             `bun:",notnull"`
	PollHour          int             `bun:",notnull"`
	PollMinute        int             `bun:",notnull"`
	Timezone          string          `bun:",notnull"`
	ReminderOffsets   ReminderOffsets `bun:",type:varchar(512),notnull"`
	CloseAfterMinutes int             `bun:",notnull"`
	JoinThreshold     int64           `bun:",notnull"`
	MemberRoleID      snowflake.ID    `bun:",notnull"`
	ApplicantRoleID   snowflake.ID    `bun:",notnull"`
	WarChannelID      snowflake.ID    `bun:",notnull"`
	AdminChannelID    snowflake.ID    `bun:",notnull"`
	DPSRoleID         snowflake.ID    `bun:"dps_role_id,notnull"`
	TankRoleID        snowflake.ID    `bun:"tank_role_id,notnull"`
	HealerRoleID      snowflake.ID    `bun:"healer_role_id,notnull"`
	SupportRoleID     snowflake.ID    `bun:"support_role_id,notnull"`
	DefaultLanguage   string          `bun:",notnull"`
	UpdatedAt         time.Time       `bun:",notnull"`
}

// NewServerSettings returns the default settings for a guild.
func NewServerSettings(guildID snowflake.ID) *ServerSettings {
	return &ServerSettings{
		GuildID:           guildID,
		PollWeekday:       int(DefaultPollWeekday),
		PollHour:          DefaultPollHour,
		PollMinute:        DefaultPollMinute,
		Timezone:          DefaultTimezone,
		ReminderOffsets:   DefaultReminderOffsets(),
		CloseAfterMinutes: DefaultCloseAfterMinutes,
		DefaultLanguage:   DefaultLanguage,
		UpdatedAt:         time.Now().UTC(),
	}
}

// BuildRoleID returns the role mirrored for a build, 0 when none is configured.
func (s *ServerSettings) BuildRoleID(build enum.BuildType) snowflake.ID {
	switch build {
	case enum.BuildTypeDPS:
		return s.DPSRoleID
	case enum.BuildTypeTank:
		return s.TankRoleID
	case enum.BuildTypeHealer:
		return s.HealerRoleID
	case enum.BuildTypeSupport:
		return s.SupportRoleID
	default:
		return 0
	}
}

// HasBuildRoles reports whether any build role is configured.
func (s *ServerSettings) HasBuildRoles() bool {
	return s.DPSRoleID != 0 || s.TankRoleID != 0 || s.HealerRoleID != 0 || s.SupportRoleID != 0
}

// CloseAfter returns how long a cycle stays open.
func (s *ServerSettings) CloseAfter() time.Duration {
	return time.Duration(s.CloseAfterMinutes) * time.Minute
}

// Location loads the configured timezone, falling back to UTC.
func (s *ServerSettings) Location() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}

	return loc
}

// LastPollStart returns the most recent scheduled poll start at or before now.
func (s *ServerSettings) LastPollStart(now time.Time) time.Time {
	local := now.In(s.Location())

	start := time.Date(local.Year(), local.Month(), local.Day(), s.PollHour, s.PollMinute, 0, 0, local.Location())
	start = start.AddDate(0, 0, -((int(local.Weekday()) - s.PollWeekday + 7) % 7))

	if start.After(local) {
		start = start.AddDate(0, 0, -7)
	}

	return start.UTC()
}

// NextPollStart returns the first scheduled poll start strictly after now.
func (s *ServerSettings) NextPollStart(now time.Time) time.Time {
	return s.LastPollStart(now).In(s.Location()).AddDate(0, 0, 7).UTC()
}
