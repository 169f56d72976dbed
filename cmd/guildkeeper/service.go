package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/akguild/guildkeeper/internal/bot"
	"github.com/akguild/guildkeeper/internal/bot/commands"
	"github.com/akguild/guildkeeper/internal/database/service"
	"github.com/akguild/guildkeeper/internal/discord"
	"github.com/akguild/guildkeeper/internal/export"
	"github.com/akguild/guildkeeper/internal/health"
	"github.com/akguild/guildkeeper/internal/setup"
	"github.com/akguild/guildkeeper/internal/setup/telemetry"
	"github.com/akguild/guildkeeper/internal/worker/core"
	"github.com/akguild/guildkeeper/internal/worker/war"
	"github.com/akguild/guildkeeper/pkg/utils"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrTokenRequired is returned when the service starts without a bot token.
var ErrTokenRequired = errors.New("DISCORD_TOKEN is required")

// restartDelay is how long a crashed worker waits before it starts again.
const restartDelay = 5 * time.Second

// runService starts every long-running component and blocks until ctx is
// cancelled or one of them fails.
func runService(ctx context.Context) error {
	app, err := setup.InitializeApp(ctx, telemetry.ServiceRun, RunLogDir)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer app.Cleanup(ctx)

	logger := app.Logger

	if app.Config.Discord.Token == "" {
		return ErrTokenRequired
	}

	// Health stays unhealthy until the schema is in place
	if err := app.DB.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}

	discordBot, err := bot.New(app.Config.Discord.Token, logger)
	if err != nil {
		return err
	}

	adapter := discord.NewAdapter(discordBot.Rest(), logger)

	join := service.NewJoin(
		app.DB.DB(),
		app.DB.Model().JoinRequest(),
		app.DB.Model().Profile(),
		app.DB.Model().Settings(),
		adapter,
		adapter,
		app.DB.Policy(),
		logger,
		service.WithGrantTimeout(app.Config.Join.GrantTimeout()),
	)

	registry := commands.New(commands.Deps{
		DB:       app.DB,
		Join:     join,
		Notifier: adapter,
		Members:  adapter,
		Exporter: export.New(app.DB.Service().War(), app.Config.Export.Dir, logger),
		Logger:   logger,
	})

	workerLogger := app.LogManager.GetWorkerLogger("war_scheduler")
	reporter := core.NewStatusReporter(app.StatusClient, war.WorkerType, workerLogger)
	scheduler := war.New(app.DB, adapter, reporter, &app.Config.Scheduler, workerLogger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return health.Serve(gctx, app.Config.Health.Port, health.NewRouter(app.DB, logger), logger)
	})

	g.Go(func() error {
		runWorker(gctx, scheduler.Start, workerLogger)
		return nil
	})

	g.Go(func() error {
		return discordBot.Start(gctx, registry)
	})

	logger.Info("Service started",
		zap.String("backend", string(app.DB.Backend())),
		zap.Int("healthPort", app.Config.Health.Port))

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Service stopped with error", zap.Error(err))
		return err
	}

	logger.Info("Service stopped")

	return nil
}

// runWorker runs a worker until ctx is cancelled, restarting it after a panic.
func runWorker(ctx context.Context, start func(context.Context), logger *zap.Logger) {
	for ctx.Err() == nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("Worker execution failed", zap.Any("panic", r))
				}
			}()

			start(ctx)
		}()

		if ctx.Err() != nil {
			return
		}

		logger.Warn("Worker stopped unexpectedly, restarting", zap.Duration("delay", restartDelay))

		if !utils.ErrorSleep(ctx, restartDelay, logger, "worker") {
			return
		}
	}
}
