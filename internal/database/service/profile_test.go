package service_test

import (
	"testing"

	"github.com/akguild/guildkeeper/internal/database/dbtest"
	"github.com/akguild/guildkeeper/internal/database/service"
	"github.com/akguild/guildkeeper/internal/database/types/enum"
	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateWeapons(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		build   enum.BuildType
		weapons []string
		want    []string
		wantErr error
	}{
		{
			name:    "two weapons of the build",
			build:   enum.BuildTypeDPS,
			weapons: []string{"Twinblade", " Heaven  Spear "},
			want:    []string{"Twinblade", "Heaven Spear"},
		},
		{
			name:    "no weapons",
			build:   enum.BuildTypeTank,
			wantErr: service.ErrNoWeapons,
		},
		{
			name:    "too many weapons",
			build:   enum.BuildTypeDPS,
			weapons: []string{"Twinblade", "Heaven Spear", "Mortal Rope"},
			wantErr: service.ErrTooManyWeapons,
		},
		{
			name:    "weapon from another build",
			build:   enum.BuildTypeHealer,
			weapons: []string{"Thunder Blade"},
			wantErr: service.ErrWeaponNotAllowed,
		},
		{
			name:    "same weapon twice",
			build:   enum.BuildTypeSupport,
			weapons: []string{"Inkwell Fan", "Inkwell Fan"},
			wantErr: service.ErrDuplicateWeapon,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := service.ValidateWeapons(tt.build, tt.weapons)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProfileSetupAndEdits(t *testing.T) {
	t.Parallel()

	client := openClient(t)
	ctx := t.Context()
	guildID, memberID := dbtest.NewID(), dbtest.NewID()
	profiles := client.Service().Profile()

	_, err := profiles.Setup(ctx, service.SetupRequest{GuildID: guildID, MemberID: memberID, Build: "wizard", Weapons: []string{"Twinblade"}})
	require.ErrorIs(t, err, service.ErrInvalidBuild)

	profile, err := profiles.Setup(ctx, service.SetupRequest{
		GuildID:    guildID,
		MemberID:   memberID,
		InGameName: "Iron Lotus",
		Build:      "tank",
		Weapons:    []string{"StormBreaker Spear", "Thunder Blade"},
	})
	require.NoError(t, err)
	assert.Equal(t, enum.BuildTypeTank, profile.Build)
	assert.Equal(t, []string{"StormBreaker Spear", "Thunder Blade"}, profile.WeaponNames())

	name, err := profiles.ChangeName(ctx, guildID, memberID, "  Iron   Lotus II ")
	require.NoError(t, err)
	assert.Equal(t, "Iron Lotus II", name)

	require.ErrorIs(t, profiles.UpdateStats(ctx, guildID, memberID, 100, 0), service.ErrInvalidStats)
	require.ErrorIs(t, profiles.UpdateStats(ctx, guildID, memberID, -5, 10), service.ErrInvalidStats)
	require.NoError(t, profiles.UpdateStats(ctx, guildID, memberID, 8800, 61))

	require.NoError(t, profiles.ResetBuild(ctx, guildID, memberID))

	profile, err = profiles.Get(ctx, guildID, memberID)
	require.NoError(t, err)
	assert.False(t, profile.IsFinalized())
	assert.Empty(t, profile.Weapons)
	assert.Equal(t, "Iron Lotus II", profile.InGameName)
	assert.Equal(t, int64(8800), profile.MasteryPoints)
	assert.Equal(t, 61, profile.Level)

	other := dbtest.NewID()
	require.ErrorIs(t, profiles.ResetBuild(ctx, guildID, other), service.ErrProfileNotFound)
	require.ErrorIs(t, profiles.UpdateStats(ctx, guildID, other, 1, 1), service.ErrProfileNotFound)

	_, err = profiles.ChangeName(ctx, guildID, other, "Nobody")
	require.ErrorIs(t, err, service.ErrProfileNotFound)
}

func TestProfileDeleteKeepsWarHistory(t *testing.T) {
	t.Parallel()

	client := openClient(t)
	ctx := t.Context()
	guildID, memberID := dbtest.NewID(), dbtest.NewID()

	createProfile(t, client, guildID, memberID)

	_, err := client.Service().Language().Set(ctx, guildID, memberID, "ar")
	require.NoError(t, err)

	_, err = client.Service().War().OpenNow(ctx, guildID, pollStart)
	require.NoError(t, err)
	_, err = client.Service().War().Respond(ctx, guildID, memberID, "yes", pollStart)
	require.NoError(t, err)

	require.NoError(t, client.Service().Profile().Delete(ctx, guildID, memberID))
	require.ErrorIs(t, client.Service().Profile().Delete(ctx, guildID, memberID), service.ErrProfileNotFound)

	_, err = client.Service().Profile().Get(ctx, guildID, memberID)
	require.ErrorIs(t, err, service.ErrProfileNotFound)

	code, explicit, err := client.Service().Language().Resolve(ctx, guildID, memberID)
	require.NoError(t, err)
	assert.False(t, explicit)
	assert.Equal(t, "en", code)

	_, participants, err := client.Service().War().Current(ctx, guildID)
	require.NoError(t, err)
	require.Len(t, participants, 1)
	assert.Equal(t, memberID, participants[0].MemberID)
}

func TestProfileLeaderboard(t *testing.T) {
	t.Parallel()

	client := openClient(t)
	ctx := t.Context()
	guildID := dbtest.NewID()
	profiles := client.Service().Profile()

	stats := []struct {
		mastery int64
		level   int
	}{
		{mastery: 500, level: 30},
		{mastery: 900, level: 20},
		{mastery: 900, level: 45},
		{mastery: 100, level: 80},
	}

	for _, s := range stats {
		memberID := dbtest.NewID()
		createProfile(t, client, guildID, memberID)
		require.NoError(t, profiles.UpdateStats(ctx, guildID, memberID, s.mastery, s.level))
	}

	// Another guild's members never show up
	createProfile(t, client, dbtest.NewID(), dbtest.NewID())

	top, err := profiles.Leaderboard(ctx, guildID, 3)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, 45, top[0].Level)
	assert.Equal(t, 20, top[1].Level)
	assert.Equal(t, int64(500), top[2].MasteryPoints)

	all, err := profiles.Leaderboard(ctx, guildID, 0)
	require.NoError(t, err)
	assert.Len(t, all, len(stats))
}

func TestProfileByMembers(t *testing.T) {
	t.Parallel()

	client := openClient(t)
	ctx := t.Context()
	guildID, otherGuildID := dbtest.NewID(), dbtest.NewID()
	first, second, missing := dbtest.NewID(), dbtest.NewID(), dbtest.NewID()
	profiles := client.Service().Profile()

	createProfile(t, client, guildID, first)
	createProfile(t, client, guildID, second)
	createProfile(t, client, otherGuildID, missing)

	byMember, err := profiles.ByMembers(ctx, guildID, []snowflake.ID{first, second, missing})
	require.NoError(t, err)
	require.Len(t, byMember, 2)
	assert.Equal(t, enum.BuildTypeDPS, byMember[first].Build)
	assert.Equal(t, second, byMember[second].MemberID)
	assert.Nil(t, byMember[missing])

	byMember, err = profiles.ByMembers(ctx, guildID, nil)
	require.NoError(t, err)
	assert.Empty(t, byMember)
}
