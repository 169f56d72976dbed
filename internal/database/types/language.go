package types

import (
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/uptrace/bun"
)

// LanguagePreference is a member's chosen language in a guild.
type LanguagePreference struct {
	bun.BaseModel `bun:"table:language_preferences"`

	GuildID   snowflake.ID `bun:",pk"`
	MemberID  snowflake.ID `bun:",pk"`
	Language  string       `bun:",notnull"`
	UpdatedAt time.Time    `bun:",notnull"`
}
