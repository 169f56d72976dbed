package types

import (
	"time"

	"github.com/akguild/guildkeeper/internal/database/types/enum"
	"github.com/disgoorg/snowflake/v2"
	"github.com/uptrace/bun"
)

// Profile is a member's guild profile.
type Profile struct {
	bun.BaseModel `bun:"table:profiles"`

	GuildID       snowflake.ID   `bun:",pk"`
	MemberID      snowflake.ID   `bun:",pk"`
	InGameName    string         `bun:",notnull"`
	Build         enum.BuildType `bun:",notnull"`
	MasteryPoints int64          `bun:",notnull"`
	Level         int            `bun:",notnull"`
	CreatedAt     time.Time      `bun:",notnull"`
	UpdatedAt     time.Time      `bun:",notnull"`

	Weapons []*ProfileWeapon `bun:"-"`
}

// IsFinalized reports whether the member completed build setup.
func (p *Profile) IsFinalized() bool {
	return p.Build != enum.BuildTypeUnset
}

// WeaponNames returns the selected weapons in order.
func (p *Profile) WeaponNames() []string {
	names := make([]string, 0, len(p.Weapons))
	for _, w := range p.Weapons {
		names = append(names, w.Weapon)
	}

	return names
}

// ProfileWeapon is one entry of a profile's ordered weapon selection.
type ProfileWeapon struct {
	bun.BaseModel `bun:"table:profile_weapons"`

	GuildID  snowflake.ID `bun:",pk"`
	MemberID snowflake.ID `bun:",pk"`
	Position int          `bun:",pk"`
	Weapon   string       `bun:",notnull"`
}
