package types

import (
	"time"

	"github.com/akguild/guildkeeper/internal/database/types/enum"
	"github.com/disgoorg/snowflake/v2"
	"github.com/uptrace/bun"
)

// WarCycle is one war poll window of a guild.
type WarCycle struct {
	bun.BaseModel `bun:"table:war_cycles"`

	ID             int64            `bun:",pk,autoincrement"`
	GuildID        snowflake.ID     `bun:",notnull"`
	ScheduledAt    time.Time        `bun:",notnull"`
	Status         enum.CycleStatus `bun:",notnull"`
	OpenedAt       time.Time        `bun:",notnull"`
	ClosesAt       time.Time        `bun:",notnull"`
	RemindersSent  int              `bun:",notnull"`
	RemindedAt     time.Time        `bun:",nullzero"`
	ClosedAt       time.Time        `bun:",nullzero"`
	ResetBy        snowflake.ID     `bun:",notnull"`
	YesCount       int              `bun:",notnull"`
	NoCount        int              `bun:",notnull"`
	TentativeCount int              `bun:",notnull"`
}

// Summary returns the response counts frozen on the cycle.
func (c *WarCycle) Summary() WarSummary {
	return WarSummary{
		Yes:       c.YesCount,
		No:        c.NoCount,
		Tentative: c.TentativeCount,
	}
}

// WarParticipant is a member's response to a cycle.
type WarParticipant struct {
	bun.BaseModel `bun:"table:war_participants"`

	CycleID     int64            `bun:",pk"`
	MemberID    snowflake.ID     `bun:",pk"`
	GuildID     snowflake.ID     `bun:",notnull"`
	Response    enum.WarResponse `bun:",notnull"`
	RespondedAt time.Time        `bun:",notnull"`
}

// WarSummary counts responses per answer.
type WarSummary struct {
	Yes       int
	No        int
	Tentative int
}

// Total returns the number of members that answered.
func (s WarSummary) Total() int {
	return s.Yes + s.No + s.Tentative
}

// Add counts one response.
func (s *WarSummary) Add(response enum.WarResponse, n int) {
	switch response {
	case enum.WarResponseYes:
		s.Yes += n
	case enum.WarResponseNo:
		s.No += n
	case enum.WarResponseTentative:
		s.Tentative += n
	}
}
