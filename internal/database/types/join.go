package types

import (
	"time"

	"github.com/akguild/guildkeeper/internal/database/types/enum"
	"github.com/disgoorg/snowflake/v2"
	"github.com/uptrace/bun"
)

// JoinRequest is a membership application awaiting or past an admin decision.
type JoinRequest struct {
	bun.BaseModel `bun:"table:join_requests"`

	ID          int64                  `bun:",pk,autoincrement"`
	GuildID     snowflake.ID           `bun:",notnull"`
	RequesterID snowflake.ID           `bun:",notnull"`
	Power       int64                  `bun:",notnull"`
	InGameName  string                 `bun:",notnull"`
	Level       int                    `bun:",notnull"`
	Language    string                 `bun:",notnull"`
	Status      enum.JoinRequestStatus `bun:",notnull"`
	Reason      string                 `bun:",notnull"`
	SubmittedAt time.Time              `bun:",notnull"`
	DecidedAt   time.Time              `bun:",nullzero"`
	DecidedBy   snowflake.ID           `bun:",notnull"`
}
