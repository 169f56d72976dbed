package service_test

import (
	"testing"

	"github.com/akguild/guildkeeper/internal/database/dbtest"
	"github.com/akguild/guildkeeper/internal/database/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeLanguage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{input: "en", want: "en"},
		{input: "en-US", want: "en"},
		{input: "English", want: "en"},
		{input: "ar-EG", want: "ar"},
		{input: "العربية", want: "ar"},
		{input: "de", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			got, err := service.NormalizeLanguage(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, service.ErrInvalidLanguage)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLanguageResolveFallsBackToGuildDefault(t *testing.T) {
	t.Parallel()

	client := openClient(t)
	ctx := t.Context()
	guildID, memberID := dbtest.NewID(), dbtest.NewID()
	languages := client.Service().Language()

	code, explicit, err := languages.Resolve(ctx, guildID, memberID)
	require.NoError(t, err)
	assert.Equal(t, "en", code)
	assert.False(t, explicit)

	_, err = client.Service().Settings().SetDefaultLanguage(ctx, guildID, "ar")
	require.NoError(t, err)

	code, explicit, err = languages.Resolve(ctx, guildID, memberID)
	require.NoError(t, err)
	assert.Equal(t, "ar", code)
	assert.False(t, explicit)

	code, err = languages.Set(ctx, guildID, memberID, "English")
	require.NoError(t, err)
	assert.Equal(t, "en", code)

	code, explicit, err = languages.Resolve(ctx, guildID, memberID)
	require.NoError(t, err)
	assert.Equal(t, "en", code)
	assert.True(t, explicit)

	_, err = languages.Set(ctx, guildID, memberID, "xx-unknown")
	require.ErrorIs(t, err, service.ErrInvalidLanguage)
}
