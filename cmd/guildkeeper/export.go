package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/akguild/guildkeeper/internal/export"
	"github.com/akguild/guildkeeper/internal/setup"
	"github.com/akguild/guildkeeper/internal/setup/telemetry"
	"github.com/disgoorg/snowflake/v2"
	"github.com/urfave/cli/v3"
)

var ErrGuildRequired = errors.New("--guild is required")

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export-war",
		Usage: "Export a guild's war poll history",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "guild",
				Usage: "Guild ID to export",
			},
			&cli.StringFlag{
				Name:  "out",
				Usage: "Output directory, defaults to export.dir from the config",
			},
			&cli.StringSliceFlag{
				Name:  "format",
				Value: []string{string(export.FormatSQLite)},
				Usage: "Formats to write (sqlite, csv)",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.String("guild") == "" {
				return ErrGuildRequired
			}

			guildID, err := snowflake.Parse(c.String("guild"))
			if err != nil {
				return fmt.Errorf("invalid guild ID: %w", err)
			}

			formats := make([]export.Format, 0, len(c.StringSlice("format")))
			for _, f := range c.StringSlice("format") {
				formats = append(formats, export.Format(f))
			}

			app, err := setup.InitializeApp(ctx, telemetry.ServiceCLI, CLILogDir)
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}
			defer app.Cleanup(ctx)

			if err := app.DB.EnsureSchema(ctx); err != nil {
				return fmt.Errorf("failed to ensure schema: %w", err)
			}

			outDir := c.String("out")
			if outDir == "" {
				outDir = app.Config.Export.Dir
			}

			result, err := export.New(app.DB.Service().War(), outDir, app.Logger, formats...).
				ExportGuild(ctx, guildID, time.Now())
			if err != nil {
				return err
			}

			fmt.Printf("Exported %d cycles and %d responses\n", result.Cycles, result.Participants)

			for _, file := range result.Files {
				fmt.Printf("  %s\n", file)
			}

			return nil
		},
	}
}
