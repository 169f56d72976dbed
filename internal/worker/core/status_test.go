package core_test

import (
	"testing"
	"time"

	"github.com/akguild/guildkeeper/internal/worker/core"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/rueidis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, rueidis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{mr.Addr()},
		DisableCache: true,
	})
	require.NoError(t, err)
	t.Cleanup(client.Close)

	return mr, client
}

func TestMonitorReportAndList(t *testing.T) {
	t.Parallel()

	mr, client := newRedis(t)
	ctx := t.Context()
	monitor := core.NewMonitor(client, zaptest.NewLogger(t))

	tick := time.Date(2026, 10, 16, 15, 0, 0, 0, time.UTC)
	require.NoError(t, monitor.ReportStatus(ctx, core.Status{
		WorkerID:   "abc",
		WorkerType: "war_scheduler",
		LastTick:   tick,
		Guilds:     3,
		IsHealthy:  true,
	}))

	key := "guildkeeper:worker:war_scheduler:abc"
	assert.True(t, mr.Exists(key))
	assert.Equal(t, core.HeartbeatTTL, mr.TTL(key))

	// Garbage under the prefix is skipped
	require.NoError(t, mr.Set("guildkeeper:worker:broken:1", "{not json"))

	statuses, err := monitor.GetAllStatuses(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, "abc", statuses[0].WorkerID)
	assert.Equal(t, 3, statuses[0].Guilds)
	assert.True(t, statuses[0].LastTick.Equal(tick))
	assert.False(t, statuses[0].IsStale(time.Now()))
	assert.True(t, statuses[0].IsStale(time.Now().Add(2*core.StaleThreshold)))

	require.NoError(t, monitor.RemoveStatus(ctx, "war_scheduler", "abc"))
	assert.False(t, mr.Exists(key))
}

func TestStatusReporterHeartbeat(t *testing.T) {
	t.Parallel()

	mr, client := newRedis(t)
	reporter := core.NewStatusReporter(client, "war_scheduler", zaptest.NewLogger(t))
	key := "guildkeeper:worker:war_scheduler:" + reporter.GetWorkerID()

	reporter.RecordTick(time.Now(), 2)
	reporter.Start(t.Context())

	require.Eventually(t, func() bool {
		return mr.Exists(key)
	}, 2*time.Second, 10*time.Millisecond)

	reporter.Stop()
	reporter.Stop()

	assert.False(t, mr.Exists(key))
}

func TestStatusReporterRestartsAfterStop(t *testing.T) {
	t.Parallel()

	mr, client := newRedis(t)
	reporter := core.NewStatusReporter(client, "war_scheduler", zaptest.NewLogger(t))
	key := "guildkeeper:worker:war_scheduler:" + reporter.GetWorkerID()

	for range 2 {
		reporter.Start(t.Context())

		require.Eventually(t, func() bool {
			return mr.Exists(key)
		}, 2*time.Second, 10*time.Millisecond)

		reporter.Stop()
		assert.False(t, mr.Exists(key))
	}
}

func TestStatusReporterWithoutClient(t *testing.T) {
	t.Parallel()

	reporter := core.NewStatusReporter(nil, "war_scheduler", zaptest.NewLogger(t))
	reporter.Start(t.Context())
	reporter.SetHealthy(false)
	reporter.UpdateStatus("ticking")
	reporter.Stop()

	status := reporter.Snapshot()
	assert.False(t, status.IsHealthy)
	assert.Equal(t, "ticking", status.CurrentTask)
	assert.NotEmpty(t, reporter.GetWorkerID())
}
