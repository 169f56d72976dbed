package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
)

const (
	// RunLogDir specifies where service log files are stored.
	RunLogDir = "logs/run_logs"
	// CLILogDir specifies where maintenance command log files are stored.
	CLILogDir = "logs/cli_logs"
)

func main() {
	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := &cli.Command{
		Name:  "guildkeeper",
		Usage: "Guild management bot with war polls and join requests",
		Action: func(ctx context.Context, _ *cli.Command) error {
			return runService(ctx)
		},
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Start the bot, the war poll scheduler and the health listener",
				Action: func(ctx context.Context, _ *cli.Command) error {
					return runService(ctx)
				},
			},
			dbCommand(),
			exportCommand(),
		},
	}

	return app.Run(ctx, os.Args)
}
