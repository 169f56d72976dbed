package service_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/akguild/guildkeeper/internal/database"
	"github.com/akguild/guildkeeper/internal/database/dberr"
	"github.com/akguild/guildkeeper/internal/database/dbretry"
	"github.com/akguild/guildkeeper/internal/database/dbtest"
	"github.com/akguild/guildkeeper/internal/database/service"
	"github.com/akguild/guildkeeper/internal/database/types/enum"
	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	memberRole    = snowflake.ID(9001)
	applicantRole = snowflake.ID(9002)
)

func configureJoin(t *testing.T, client database.Client, guildID snowflake.ID, threshold int64) {
	t.Helper()

	settings := client.Service().Settings()

	_, err := settings.SetJoinThreshold(t.Context(), guildID, threshold)
	require.NoError(t, err)

	_, err = settings.SetJoinRoles(t.Context(), guildID, memberRole, applicantRole)
	require.NoError(t, err)
}

func TestJoinSubmitDuplicatePending(t *testing.T) {
	t.Parallel()

	client := openClient(t)
	ctx := t.Context()
	guildID, requesterID, adminID := dbtest.NewID(), dbtest.NewID(), dbtest.NewID()
	configureJoin(t, client, guildID, 0)

	notifier := &fakeJoinNotifier{}
	join := newJoinService(t, client, &fakeGranter{}, notifier)

	first, err := join.Submit(ctx, service.SubmitRequest{GuildID: guildID, RequesterID: requesterID, Power: 1200})
	require.NoError(t, err)
	assert.Equal(t, enum.JoinRequestStatusPending, first.Status)
	assert.Equal(t, []int64{first.ID}, notifier.requests)

	_, err = join.Submit(ctx, service.SubmitRequest{GuildID: guildID, RequesterID: requesterID, Power: 1300})
	require.ErrorIs(t, err, service.ErrDuplicatePending)
	require.ErrorIs(t, err, dberr.ErrValidation)

	// A denied requester may apply again
	_, err = join.Decide(ctx, guildID, first.ID, enum.JoinDecisionDeny, adminID, "try later")
	require.NoError(t, err)

	second, err := join.Submit(ctx, service.SubmitRequest{GuildID: guildID, RequesterID: requesterID, Power: 1300})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	pending, err := join.ListPending(ctx, guildID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, second.ID, pending[0].ID)
}

func TestJoinSubmitBelowThreshold(t *testing.T) {
	t.Parallel()

	client := openClient(t)
	ctx := t.Context()
	guildID, requesterID := dbtest.NewID(), dbtest.NewID()
	configureJoin(t, client, guildID, 1000)

	notifier := &fakeJoinNotifier{}
	join := newJoinService(t, client, &fakeGranter{}, notifier)

	request, err := join.Submit(ctx, service.SubmitRequest{GuildID: guildID, RequesterID: requesterID, Power: 500})
	require.ErrorIs(t, err, service.ErrBelowThreshold)
	require.NotNil(t, request)
	assert.Equal(t, enum.JoinRequestStatusDenied, request.Status)
	assert.Equal(t, service.ReasonBelowThreshold, request.Reason)
	assert.Empty(t, notifier.requests)

	history, err := join.ListForRequester(ctx, guildID, requesterID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, enum.JoinRequestStatusDenied, history[0].Status)
	assert.Equal(t, "below threshold", history[0].Reason)

	pending, err := join.ListPending(ctx, guildID)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestJoinApproveCreatesProfileAndGrantsRole(t *testing.T) {
	t.Parallel()

	client := openClient(t)
	ctx := t.Context()
	guildID, requesterID, adminID := dbtest.NewID(), dbtest.NewID(), dbtest.NewID()
	configureJoin(t, client, guildID, 1000)

	granter := &fakeGranter{}
	join := newJoinService(t, client, granter, nil)

	request, err := join.Submit(ctx, service.SubmitRequest{
		GuildID:     guildID,
		RequesterID: requesterID,
		Power:       1500,
		InGameName:  "  Swift   Crane ",
		Level:       42,
		Language:    "Arabic",
	})
	require.NoError(t, err)
	assert.Equal(t, "Swift Crane", request.InGameName)
	assert.Equal(t, "ar", request.Language)

	decided, err := join.Decide(ctx, guildID, request.ID, enum.JoinDecisionApprove, adminID, "")
	require.NoError(t, err)
	assert.Equal(t, enum.JoinRequestStatusApproved, decided.Status)
	assert.Equal(t, adminID, decided.DecidedBy)

	profile, err := client.Service().Profile().Get(ctx, guildID, requesterID)
	require.NoError(t, err)
	assert.Equal(t, "Swift Crane", profile.InGameName)
	assert.Equal(t, int64(1500), profile.MasteryPoints)
	assert.Equal(t, 42, profile.Level)
	assert.False(t, profile.IsFinalized())

	assert.Equal(t, []roleChange{{memberID: requesterID, roleID: memberRole}}, granter.granted)
	assert.Equal(t, []roleChange{{memberID: requesterID, roleID: applicantRole}}, granter.revoked)

	_, err = join.Submit(ctx, service.SubmitRequest{GuildID: guildID, RequesterID: requesterID, Power: 2000})
	require.ErrorIs(t, err, service.ErrAlreadyMember)
}

func TestJoinApproveRollsBackOnGrantFailure(t *testing.T) {
	t.Parallel()

	client := openClient(t)
	ctx := t.Context()
	guildID, requesterID, adminID := dbtest.NewID(), dbtest.NewID(), dbtest.NewID()
	configureJoin(t, client, guildID, 0)

	granter := &fakeGranter{grantErr: errors.New("missing permissions")}
	join := newJoinService(t, client, granter, nil)

	request, err := join.Submit(ctx, service.SubmitRequest{GuildID: guildID, RequesterID: requesterID, Power: 10})
	require.NoError(t, err)

	_, err = join.Decide(ctx, guildID, request.ID, enum.JoinDecisionApprove, adminID, "")
	require.ErrorIs(t, err, service.ErrRoleGrantFailed)

	pending, err := join.ListPending(ctx, guildID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, enum.JoinRequestStatusPending, pending[0].Status)

	_, err = client.Service().Profile().Get(ctx, guildID, requesterID)
	require.ErrorIs(t, err, service.ErrProfileNotFound)
	assert.Empty(t, granter.granted)
	assert.Equal(t, []roleChange{{memberID: requesterID, roleID: memberRole}}, granter.revoked)

	// Once the platform recovers the same request can be approved
	granter.mu.Lock()
	granter.grantErr = nil
	granter.mu.Unlock()

	_, err = join.Decide(ctx, guildID, request.ID, enum.JoinDecisionApprove, adminID, "")
	require.NoError(t, err)
}

func TestJoinGrantFailureRestoresExistingProfile(t *testing.T) {
	t.Parallel()

	client := openClient(t)
	ctx := t.Context()
	guildID, requesterID, adminID := dbtest.NewID(), dbtest.NewID(), dbtest.NewID()
	configureJoin(t, client, guildID, 0)
	createProfile(t, client, guildID, requesterID)

	granter := &fakeGranter{grantErr: errors.New("unknown member")}
	join := newJoinService(t, client, granter, nil)

	request, err := join.Submit(ctx, service.SubmitRequest{
		GuildID:     guildID,
		RequesterID: requesterID,
		Power:       777,
		InGameName:  "Newcomer",
		Level:       9,
	})
	require.NoError(t, err)

	_, err = join.Decide(ctx, guildID, request.ID, enum.JoinDecisionApprove, adminID, "")
	require.ErrorIs(t, err, service.ErrRoleGrantFailed)

	profile, err := client.Service().Profile().Get(ctx, guildID, requesterID)
	require.NoError(t, err)
	assert.Equal(t, "Member", profile.InGameName)
	assert.Equal(t, enum.BuildTypeDPS, profile.Build)
	assert.NotEqual(t, int64(777), profile.MasteryPoints)
	assert.True(t, profile.IsFinalized())
}

func TestJoinGrantDoesNotBlockOtherGuilds(t *testing.T) {
	t.Parallel()

	client := openClient(t)
	ctx := t.Context()
	guildID, requesterID, adminID := dbtest.NewID(), dbtest.NewID(), dbtest.NewID()
	otherGuildID := dbtest.NewID()
	configureJoin(t, client, guildID, 0)
	otherSettings := enablePolls(t, client, otherGuildID)

	granter := newBlockingGranter()
	join := service.NewJoin(
		client.DB(),
		client.Model().JoinRequest(),
		client.Model().Profile(),
		client.Model().Settings(),
		granter,
		nil,
		dbretry.DefaultPolicy(),
		zaptest.NewLogger(t),
		service.WithGrantTimeout(30*time.Second),
	)

	request, err := join.Submit(ctx, service.SubmitRequest{GuildID: guildID, RequesterID: requesterID, Power: 10})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := join.Decide(ctx, guildID, request.ID, enum.JoinDecisionApprove, adminID, "")
		done <- err
	}()

	select {
	case <-granter.started:
	case <-time.After(5 * time.Second):
		t.Fatal("role grant was never requested")
	}

	// The approval is committed before the grant goes out
	stored, err := client.Model().JoinRequest().Get(ctx, guildID, request.ID)
	require.NoError(t, err)
	assert.Equal(t, enum.JoinRequestStatusApproved, stored.Status)

	tickCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	events, err := client.Service().War().Tick(tickCtx, otherSettings, pollStart)
	require.NoError(t, err)
	require.Equal(t, []service.EventKind{service.EventOpened}, eventKinds(events))

	close(granter.release)
	require.NoError(t, <-done)
}

func TestJoinConcurrentApprovalsGrantOnce(t *testing.T) {
	t.Parallel()

	client := openClient(t)
	ctx := t.Context()
	guildID, requesterID := dbtest.NewID(), dbtest.NewID()
	configureJoin(t, client, guildID, 0)

	granter := &fakeGranter{}
	join := newJoinService(t, client, granter, nil)

	request, err := join.Submit(ctx, service.SubmitRequest{GuildID: guildID, RequesterID: requesterID, Power: 10})
	require.NoError(t, err)

	const admins = 4

	var wg sync.WaitGroup
	errs := make([]error, admins)

	for i := range admins {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = join.Decide(ctx, guildID, request.ID, enum.JoinDecisionApprove, dbtest.NewID(), "")
		}(i)
	}

	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		require.ErrorIs(t, err, service.ErrRequestNotFound)
	}

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, []roleChange{{memberID: requesterID, roleID: memberRole}}, granter.granted)
}

func TestJoinDecideErrors(t *testing.T) {
	t.Parallel()

	client := openClient(t)
	ctx := t.Context()
	guildID, requesterID, adminID := dbtest.NewID(), dbtest.NewID(), dbtest.NewID()
	join := newJoinService(t, client, nil, nil)

	_, err := join.Decide(ctx, guildID, 12345, enum.JoinDecisionApprove, adminID, "")
	require.ErrorIs(t, err, service.ErrRequestNotFound)

	request, err := join.Submit(ctx, service.SubmitRequest{GuildID: guildID, RequesterID: requesterID})
	require.NoError(t, err)

	_, err = join.Decide(ctx, guildID, request.ID, enum.JoinDecision("maybe"), adminID, "")
	require.ErrorIs(t, err, service.ErrInvalidDecision)

	// Another guild cannot decide the request
	_, err = join.Decide(ctx, dbtest.NewID(), request.ID, enum.JoinDecisionDeny, adminID, "")
	require.ErrorIs(t, err, service.ErrRequestNotFound)

	_, err = join.Decide(ctx, guildID, request.ID, enum.JoinDecisionDeny, adminID, "")
	require.NoError(t, err)

	_, err = join.Decide(ctx, guildID, request.ID, enum.JoinDecisionApprove, adminID, "")
	require.ErrorIs(t, err, service.ErrRequestNotFound)
	require.ErrorIs(t, err, dberr.ErrNotFound)
}

func TestJoinSubmitValidation(t *testing.T) {
	t.Parallel()

	client := openClient(t)
	join := newJoinService(t, client, nil, nil)
	guildID := dbtest.NewID()

	tests := []struct {
		name    string
		req     service.SubmitRequest
		wantErr error
	}{
		{
			name:    "negative power",
			req:     service.SubmitRequest{GuildID: guildID, RequesterID: dbtest.NewID(), Power: -1},
			wantErr: service.ErrInvalidPower,
		},
		{
			name:    "name too long",
			req:     service.SubmitRequest{GuildID: guildID, RequesterID: dbtest.NewID(), InGameName: strings.Repeat("a", 40)},
			wantErr: service.ErrInvalidName,
		},
		{
			name:    "unsupported language",
			req:     service.SubmitRequest{GuildID: guildID, RequesterID: dbtest.NewID(), Language: "klingon"},
			wantErr: service.ErrInvalidLanguage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := join.Submit(t.Context(), tt.req)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestJoinNotifierFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	client := openClient(t)
	guildID, requesterID := dbtest.NewID(), dbtest.NewID()

	notifier := &fakeJoinNotifier{err: errors.New("channel gone")}
	join := newJoinService(t, client, nil, notifier)

	request, err := join.Submit(t.Context(), service.SubmitRequest{GuildID: guildID, RequesterID: requesterID, Power: 1})
	require.NoError(t, err)
	assert.Equal(t, enum.JoinRequestStatusPending, request.Status)
	assert.Equal(t, []int64{request.ID}, notifier.requests)
}
