package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/akguild/guildkeeper/internal/database/migrations"
	"github.com/akguild/guildkeeper/internal/setup"
	"github.com/akguild/guildkeeper/internal/setup/telemetry"
	"github.com/uptrace/bun/migrate"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

var ErrNameRequired = errors.New("NAME argument required")

// migratorAction opens the database and hands a migrator to fn.
func migratorAction(fn func(ctx context.Context, c *cli.Command, migrator *migrate.Migrator, logger *zap.Logger) error) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		app, err := setup.InitializeApp(ctx, telemetry.ServiceCLI, CLILogDir)
		if err != nil {
			return fmt.Errorf("failed to initialize application: %w", err)
		}
		defer app.Cleanup(ctx)

		return fn(ctx, c, migrate.NewMigrator(app.DB.DB(), migrations.Migrations), app.Logger)
	}
}

func dbCommand() *cli.Command {
	return &cli.Command{
		Name:  "db",
		Usage: "Database management",
		Commands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Initialize migration tables",
				Action: migratorAction(func(ctx context.Context, _ *cli.Command, migrator *migrate.Migrator, _ *zap.Logger) error {
					return migrator.Init(ctx)
				}),
			},
			{
				Name:  "migrate",
				Usage: "Run pending migrations",
				Action: migratorAction(func(ctx context.Context, _ *cli.Command, migrator *migrate.Migrator, logger *zap.Logger) error {
					if err := migrator.Init(ctx); err != nil {
						return err
					}

					if err := migrator.Lock(ctx); err != nil {
						return err
					}
					defer migrator.Unlock(ctx) //nolint:errcheck

					group, err := migrator.Migrate(ctx)
					if err != nil {
						return err
					}

					if group.IsZero() {
						logger.Info("No new migrations to run (database is up to date)")
						return nil
					}

					logger.Info("Successfully migrated", zap.String("group", group.String()))

					return nil
				}),
			},
			{
				Name:  "rollback",
				Usage: "Rollback the last migration group",
				Action: migratorAction(func(ctx context.Context, _ *cli.Command, migrator *migrate.Migrator, logger *zap.Logger) error {
					if err := migrator.Lock(ctx); err != nil {
						return err
					}
					defer migrator.Unlock(ctx) //nolint:errcheck

					group, err := migrator.Rollback(ctx)
					if err != nil {
						return err
					}

					if group.IsZero() {
						logger.Info("No groups to roll back")
						return nil
					}

					logger.Info("Successfully rolled back", zap.String("group", group.String()))

					return nil
				}),
			},
			{
				Name:  "status",
				Usage: "Show migration status",
				Action: migratorAction(func(ctx context.Context, _ *cli.Command, migrator *migrate.Migrator, logger *zap.Logger) error {
					ms, err := migrator.MigrationsWithStatus(ctx)
					if err != nil {
						return err
					}

					logger.Info("Migration status",
						zap.String("migrations", ms.String()),
						zap.String("unapplied", ms.Unapplied().String()),
						zap.String("lastGroup", ms.LastGroup().String()))

					return nil
				}),
			},
			{
				Name:      "create",
				Usage:     "Create a new Go migration file",
				ArgsUsage: "NAME",
				Action: migratorAction(func(ctx context.Context, c *cli.Command, migrator *migrate.Migrator, logger *zap.Logger) error {
					if c.Args().Len() != 1 {
						return ErrNameRequired
					}

					mf, err := migrator.CreateGoMigration(ctx, c.Args().First())
					if err != nil {
						return err
					}

					logger.Info("Created Go migration", zap.String("name", mf.Name), zap.String("path", mf.Path))

					return nil
				}),
			},
		},
	}
}
