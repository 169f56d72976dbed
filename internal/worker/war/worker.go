package war

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/akguild/guildkeeper/internal/database"
	"github.com/akguild/guildkeeper/internal/database/service"
	"github.com/akguild/guildkeeper/internal/database/types"
	"github.com/akguild/guildkeeper/internal/setup/config"
	"github.com/akguild/guildkeeper/internal/worker/core"
	"github.com/akguild/guildkeeper/pkg/utils"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

const (
	// WorkerType identifies the scheduler in status reports.
	WorkerType = "war_scheduler"

	pruneInterval  = 24 * time.Hour
	notifyTimeout  = 10 * time.Second
	errorSleepTime = 30 * time.Second
)

// Notifier delivers committed cycle transitions to the chat platform.
type Notifier interface {
	Notify(ctx context.Context, event service.Event) error
}

// Worker drives the war poll state machine of every guild on a fixed tick.
type Worker struct {
	db             database.Client
	notifier       Notifier
	reporter       *core.StatusReporter
	tickInterval   time.Duration
	guildTimeout   time.Duration
	retention      time.Duration
	maxConcurrency int
	lastPrune      time.Time
	now            func() time.Time
	logger         *zap.Logger
}

// Option configures a Worker.
type Option func(*Worker)

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(w *Worker) {
		w.now = now
	}
}

// New creates a new war poll scheduler.
func New(
	db database.Client, notifier Notifier, reporter *core.StatusReporter,
	cfg *config.Scheduler, logger *zap.Logger, opts ...Option,
) *Worker {
	w := &Worker{
		db:             db,
		notifier:       notifier,
		reporter:       reporter,
		tickInterval:   cfg.TickEvery(),
		guildTimeout:   cfg.GuildDeadline(),
		retention:      cfg.Retention(),
		maxConcurrency: max(cfg.MaxConcurrency, 1),
		now:            time.Now,
		logger:         logger.Named("war_worker"),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Start runs the tick loop until the context is cancelled.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("War scheduler started",
		zap.String("workerID", w.reporter.GetWorkerID()),
		zap.Duration("tickInterval", w.tickInterval))

	w.reporter.Start(ctx)
	defer w.reporter.Stop()

	ticker := time.NewTicker(w.tickInterval)
	defer ticker.Stop()

	for {
		if _, err := w.RunOnce(ctx); err != nil {
			w.logger.Error("War scheduler tick failed", zap.Error(err))
			w.reporter.SetHealthy(false)

			if !utils.ErrorSleep(ctx, errorSleepTime, w.logger, "war scheduler") {
				return
			}
		}

		select {
		case <-ctx.Done():
			w.reporter.UpdateStatus("Shutting down")
			w.logger.Info("War scheduler stopped")

			return
		case <-ticker.C:
		}
	}
}

// RunOnce ticks every guild that has polls enabled or a live cycle, then prunes
// old history when due. Failures of a single guild are logged and skipped.
// Returns the number of events delivered.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	now := w.now()

	w.reporter.UpdateStatus("Listing guilds")

	guilds, err := w.guildsToTick(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list guilds: %w", err)
	}

	w.reporter.UpdateStatus("Ticking guilds")

	var (
		delivered atomic.Int64
		failed    atomic.Int64
		p         = pool.New().WithMaxGoroutines(w.maxConcurrency)
	)

	for _, settings := range guilds {
		p.Go(func() {
			n, err := w.tickGuild(ctx, settings, now)
			if err != nil {
				failed.Add(1)
				guildFailures.Inc()
				w.logger.Error("Failed to tick guild",
					zap.Uint64("guildID", uint64(settings.GuildID)),
					zap.Error(err))
			}

			delivered.Add(int64(n))
		})
	}

	p.Wait()

	w.reporter.RecordTick(now, len(guilds))
	w.reporter.SetHealthy(failed.Load() == 0)

	if now.Sub(w.lastPrune) >= pruneInterval {
		w.prune(ctx, now)
	}

	w.reporter.UpdateStatus("Idle")

	return int(delivered.Load()), nil
}

// guildsToTick returns the settings of guilds with scheduled polls plus those
// with a manually opened cycle.
func (w *Worker) guildsToTick(ctx context.Context) ([]*types.ServerSettings, error) {
	guilds, err := w.db.Service().Settings().ListPollEnabled(ctx)
	if err != nil {
		return nil, err
	}

	live, err := w.db.Service().War().ListLive(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[snowflake.ID]struct{}, len(guilds))
	for _, settings := range guilds {
		seen[settings.GuildID] = struct{}{}
	}

	for _, cycle := range live {
		if _, ok := seen[cycle.GuildID]; ok {
			continue
		}

		settings, err := w.db.Service().Settings().Get(ctx, cycle.GuildID)
		if err != nil {
			return nil, err
		}

		seen[cycle.GuildID] = struct{}{}
		guilds = append(guilds, settings)
	}

	return guilds, nil
}

// tickGuild advances one guild and hands its events to the notifier.
func (w *Worker) tickGuild(ctx context.Context, settings *types.ServerSettings, now time.Time) (int, error) {
	tickCtx, cancel := context.WithTimeout(ctx, w.guildTimeout)
	defer cancel()

	events, err := w.db.Service().War().Tick(tickCtx, settings, now)
	if err != nil {
		return 0, err
	}

	delivered := 0

	for _, event := range events {
		notifyCtx, cancel := context.WithTimeout(ctx, notifyTimeout)
		err := w.notifier.Notify(notifyCtx, event)
		cancel()

		if err != nil {
			notifyFailures.WithLabelValues(string(event.Kind)).Inc()
			w.logger.Warn("Failed to deliver war poll notification",
				zap.Uint64("guildID", uint64(event.GuildID)),
				zap.Int64("cycleID", event.Cycle.ID),
				zap.String("kind", string(event.Kind)),
				zap.Error(err))

			continue
		}

		delivered++
	}

	return delivered, nil
}

// prune removes finished cycles older than the retention.
func (w *Worker) prune(ctx context.Context, now time.Time) {
	w.reporter.UpdateStatus("Pruning history")

	removed, err := w.db.Service().War().Prune(ctx, now.Add(-w.retention))
	if err != nil {
		w.logger.Error("Failed to prune war history", zap.Error(err))
		return
	}

	w.lastPrune = now

	if removed > 0 {
		w.logger.Info("Pruned war history", zap.Int64("cycles", removed))
	}
}
