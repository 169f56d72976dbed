package war_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/akguild/guildkeeper/internal/database"
	"github.com/akguild/guildkeeper/internal/database/dbtest"
	"github.com/akguild/guildkeeper/internal/database/service"
	"github.com/akguild/guildkeeper/internal/setup/config"
	"github.com/akguild/guildkeeper/internal/worker/core"
	"github.com/akguild/guildkeeper/internal/worker/war"
	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// pollStart is a Friday 15:00 UTC.
var pollStart = time.Date(2026, 10, 16, 15, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	mu      sync.Mutex
	failFor snowflake.ID
	events  []service.Event
}

func (n *recordingNotifier) Notify(_ context.Context, event service.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.events = append(n.events, event)

	if event.GuildID == n.failFor {
		return errors.New("channel unavailable")
	}

	return nil
}

func (n *recordingNotifier) kinds() map[snowflake.ID][]service.EventKind {
	n.mu.Lock()
	defer n.mu.Unlock()

	kinds := make(map[snowflake.ID][]service.EventKind)
	for _, e := range n.events {
		kinds[e.GuildID] = append(kinds[e.GuildID], e.Kind)
	}

	return kinds
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = t
}

func enablePolls(t *testing.T, client database.Client, guildID snowflake.ID) {
	t.Helper()

	settings := client.Service().Settings()

	_, err := settings.SetWarTiming(t.Context(), guildID, service.WarTiming{
		ReminderOffsets:   []int{120},
		CloseAfterMinutes: 24 * 60,
		Timezone:          "UTC",
		WarChannelID:      snowflake.ID(777),
	})
	require.NoError(t, err)

	_, err = settings.SetPollSchedule(t.Context(), guildID, pollStart.Weekday(), pollStart.Hour(), pollStart.Minute())
	require.NoError(t, err)
}

func newWorker(t *testing.T, client database.Client, notifier war.Notifier, c *clock) *war.Worker {
	t.Helper()

	logger := zaptest.NewLogger(t)

	return war.New(client, notifier, core.NewStatusReporter(nil, war.WorkerType, logger), &config.Scheduler{
		TickInterval:     1,
		MaxConcurrency:   4,
		GuildTimeout:     10,
		HistoryRetention: 7,
	}, logger, war.WithClock(c.Now))
}

func TestRunOnceTicksScheduledAndManualGuilds(t *testing.T) {
	t.Parallel()

	client := dbtest.Open(t)
	ctx := t.Context()
	first, second, manual := dbtest.NewID(), dbtest.NewID(), dbtest.NewID()

	enablePolls(t, client, first)
	enablePolls(t, client, second)

	// A manual poll in a guild without a schedule still has to close
	_, err := client.Service().War().OpenNow(ctx, manual, pollStart.Add(-25*time.Hour))
	require.NoError(t, err)

	notifier := &recordingNotifier{failFor: second}
	c := &clock{now: pollStart}
	worker := newWorker(t, client, notifier, c)

	delivered, err := worker.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, delivered)

	kinds := notifier.kinds()
	assert.Equal(t, []service.EventKind{service.EventOpened}, kinds[first])
	assert.Equal(t, []service.EventKind{service.EventOpened}, kinds[second])
	assert.Equal(t, []service.EventKind{service.EventClosed}, kinds[manual])

	// A failed delivery is not retried on the next tick
	c.Set(pollStart.Add(time.Minute))

	delivered, err = worker.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, delivered)
	assert.Len(t, notifier.kinds()[second], 1)

	cycle, _, err := client.Service().War().Current(ctx, second)
	require.NoError(t, err)
	require.NotNil(t, cycle)
	assert.True(t, cycle.Status.IsLive())
}

func TestRunOnceRemindsAndCloses(t *testing.T) {
	t.Parallel()

	client := dbtest.Open(t)
	ctx := t.Context()
	guildID := dbtest.NewID()
	enablePolls(t, client, guildID)

	notifier := &recordingNotifier{}
	c := &clock{now: pollStart}
	worker := newWorker(t, client, notifier, c)

	for _, at := range []time.Duration{0, 2*time.Hour + time.Minute, 2*time.Hour + 5*time.Minute, 24 * time.Hour} {
		c.Set(pollStart.Add(at))

		_, err := worker.RunOnce(ctx)
		require.NoError(t, err)
	}

	assert.Equal(t, []service.EventKind{
		service.EventOpened, service.EventReminder, service.EventClosed,
	}, notifier.kinds()[guildID])
}

func TestRunOncePrunesOldHistory(t *testing.T) {
	t.Parallel()

	client := dbtest.Open(t)
	ctx := t.Context()
	guildID := dbtest.NewID()
	enablePolls(t, client, guildID)

	c := &clock{now: pollStart}
	worker := newWorker(t, client, &recordingNotifier{}, c)

	_, err := worker.RunOnce(ctx)
	require.NoError(t, err)

	c.Set(pollStart.Add(24 * time.Hour))
	_, err = worker.RunOnce(ctx)
	require.NoError(t, err)

	history, err := client.Service().War().History(ctx, guildID, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)

	// Two weeks later the closed cycle falls out of the 7 day retention
	c.Set(pollStart.AddDate(0, 0, 14))
	_, err = worker.RunOnce(ctx)
	require.NoError(t, err)

	history, err = client.Service().War().History(ctx, guildID, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, history[0].Status.IsLive())
	assert.True(t, history[0].ScheduledAt.Equal(pollStart.AddDate(0, 0, 14)))
}

func TestStartStopsOnCancel(t *testing.T) {
	t.Parallel()

	client := dbtest.Open(t)
	ctx, cancel := context.WithCancel(t.Context())

	worker := newWorker(t, client, &recordingNotifier{}, &clock{now: pollStart})

	done := make(chan struct{})
	go func() {
		worker.Start(ctx)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop after cancellation")
	}
}
