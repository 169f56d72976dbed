package migrations

import (
	"context"
	"fmt"

	"github.com/akguild/guildkeeper/internal/database/types"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		tables := []struct {
			model       any
			foreignKeys []string
		}{
			{model: (*types.ServerSettings)(nil)},
			{model: (*types.Profile)(nil)},
			{
				model: (*types.ProfileWeapon)(nil),
				foreignKeys: []string{
					`("guild_id", "member_id") REFERENCES "profiles" ("guild_id", "member_id") ON DELETE CASCADE`,
				},
			},
			{model: (*types.WarCycle)(nil)},
			{
				model: (*types.WarParticipant)(nil),
				foreignKeys: []string{
					`("cycle_id") REFERENCES "war_cycles" ("id") ON DELETE CASCADE`,
				},
			},
			{model: (*types.JoinRequest)(nil)},
			{model: (*types.LanguagePreference)(nil)},
		}

		for _, table := range tables {
			q := db.NewCreateTable().Model(table.model).IfNotExists()
			for _, fk := range table.foreignKeys {
				q = q.ForeignKey(fk)
			}

			if _, err := q.Exec(ctx); err != nil {
				return fmt.Errorf("failed to create table for %T: %w", table.model, err)
			}
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		// Children first so foreign keys never block the drop
		models := []any{
			(*types.LanguagePreference)(nil),
			(*types.JoinRequest)(nil),
			(*types.WarParticipant)(nil),
			(*types.WarCycle)(nil),
			(*types.ProfileWeapon)(nil),
			(*types.Profile)(nil),
			(*types.ServerSettings)(nil),
		}

		for _, model := range models {
			if _, err := db.NewDropTable().Model(model).IfExists().Exec(ctx); err != nil {
				return fmt.Errorf("failed to drop table for %T: %w", model, err)
			}
		}

		return nil
	})
}
