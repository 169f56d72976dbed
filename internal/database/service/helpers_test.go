package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/akguild/guildkeeper/internal/database"
	"github.com/akguild/guildkeeper/internal/database/dbretry"
	"github.com/akguild/guildkeeper/internal/database/dbtest"
	"github.com/akguild/guildkeeper/internal/database/service"
	"github.com/akguild/guildkeeper/internal/database/types"
	"github.com/akguild/guildkeeper/pkg/utils"
	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// pollStart is a Friday 15:00 UTC.
var pollStart = time.Date(2026, 10, 16, 15, 0, 0, 0, time.UTC)

type roleChange struct {
	memberID snowflake.ID
	roleID   snowflake.ID
}

type fakeGranter struct {
	mu       sync.Mutex
	grantErr error
	granted  []roleChange
	revoked  []roleChange
}

func (f *fakeGranter) GrantRole(_ context.Context, _, memberID, roleID snowflake.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.grantErr != nil {
		return f.grantErr
	}

	f.granted = append(f.granted, roleChange{memberID: memberID, roleID: roleID})

	return nil
}

func (f *fakeGranter) RevokeRole(_ context.Context, _, memberID, roleID snowflake.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.revoked = append(f.revoked, roleChange{memberID: memberID, roleID: roleID})

	return nil
}

// blockingGranter holds every grant until release is closed.
type blockingGranter struct {
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func newBlockingGranter() *blockingGranter {
	return &blockingGranter{started: make(chan struct{}), release: make(chan struct{})}
}

func (b *blockingGranter) GrantRole(ctx context.Context, _, _, _ snowflake.ID) error {
	b.once.Do(func() { close(b.started) })

	select {
	case <-b.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *blockingGranter) RevokeRole(context.Context, snowflake.ID, snowflake.ID, snowflake.ID) error {
	return nil
}

type fakeJoinNotifier struct {
	mu       sync.Mutex
	err      error
	requests []int64
}

func (f *fakeJoinNotifier) NotifyJoinRequest(_ context.Context, _ *types.ServerSettings, request *types.JoinRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, request.ID)

	return f.err
}

func newJoinService(t *testing.T, client database.Client, granter service.RoleGranter, notifier service.JoinNotifier) *service.JoinService {
	t.Helper()

	return service.NewJoin(
		client.DB(),
		client.Model().JoinRequest(),
		client.Model().Profile(),
		client.Model().Settings(),
		granter,
		notifier,
		dbretry.DefaultPolicy(),
		zaptest.NewLogger(t),
		service.WithGrantTimeout(time.Second),
		service.WithRetryOptions(utils.RetryOptions{
			MaxElapsedTime:  time.Second,
			InitialInterval: 10 * time.Millisecond,
			MaxInterval:     20 * time.Millisecond,
			MaxRetries:      1,
		}),
	)
}

// enablePolls schedules weekly polls at pollStart with a 2h reminder and a 24h window.
func enablePolls(t *testing.T, client database.Client, guildID snowflake.ID) *types.ServerSettings {
	t.Helper()

	ctx := t.Context()
	settingsService := client.Service().Settings()

	_, err := settingsService.SetWarTiming(ctx, guildID, service.WarTiming{
		ReminderOffsets:   []int{120},
		CloseAfterMinutes: 24 * 60,
		Timezone:          "UTC",
		WarChannelID:      snowflake.ID(777),
	})
	require.NoError(t, err)

	settings, err := settingsService.SetPollSchedule(ctx, guildID, pollStart.Weekday(), pollStart.Hour(), pollStart.Minute())
	require.NoError(t, err)

	return settings
}

// createProfile gives a member a finalized profile.
func createProfile(t *testing.T, client database.Client, guildID, memberID snowflake.ID) {
	t.Helper()

	_, err := client.Service().Profile().Setup(t.Context(), service.SetupRequest{
		GuildID:    guildID,
		MemberID:   memberID,
		InGameName: "Member",
		Build:      "dps",
		Weapons:    []string{"Twinblade"},
	})
	require.NoError(t, err)
}

func openClient(t *testing.T) database.Client {
	t.Helper()
	return dbtest.Open(t)
}
