package service_test

import (
	"testing"

	"github.com/akguild/guildkeeper/internal/database/dbtest"
	"github.com/akguild/guildkeeper/internal/database/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuildClearAll(t *testing.T) {
	t.Parallel()

	client := openClient(t)
	ctx := t.Context()
	guildID, otherGuildID, memberID := dbtest.NewID(), dbtest.NewID(), dbtest.NewID()
	settings := enablePolls(t, client, guildID)

	createProfile(t, client, guildID, memberID)
	createProfile(t, client, otherGuildID, memberID)

	_, err := client.Service().Language().Set(ctx, guildID, memberID, "ar")
	require.NoError(t, err)

	_, err = client.Service().War().Tick(ctx, settings, pollStart)
	require.NoError(t, err)
	_, err = client.Service().War().Respond(ctx, guildID, memberID, "no", pollStart)
	require.NoError(t, err)

	join := newJoinService(t, client, nil, nil)
	_, err = join.Submit(ctx, service.SubmitRequest{GuildID: guildID, RequesterID: dbtest.NewID()})
	require.NoError(t, err)

	require.NoError(t, client.Service().Guild().ClearAll(ctx, guildID))

	_, err = client.Service().Profile().Get(ctx, guildID, memberID)
	require.ErrorIs(t, err, service.ErrProfileNotFound)

	cycle, _, err := client.Service().War().Current(ctx, guildID)
	require.NoError(t, err)
	assert.Nil(t, cycle)

	pending, err := join.ListPending(ctx, guildID)
	require.NoError(t, err)
	assert.Empty(t, pending)

	stored, err := client.Service().Settings().Get(ctx, guildID)
	require.NoError(t, err)
	assert.False(t, stored.PollEnabled)

	_, explicit, err := client.Service().Language().Resolve(ctx, guildID, memberID)
	require.NoError(t, err)
	assert.False(t, explicit)

	// Other guilds are untouched
	_, err = client.Service().Profile().Get(ctx, otherGuildID, memberID)
	require.NoError(t, err)
}
