package bot

import (
	"testing"

	"github.com/akguild/guildkeeper/internal/bot/commands"
	"github.com/disgoorg/disgo/discord"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlattenOptions(t *testing.T) {
	t.Parallel()

	flat := FlattenOptions(map[string]discord.SlashCommandOption{
		"name":    {Name: "name", Value: []byte(`"Swift Crane"`)},
		"power":   {Name: "power", Value: []byte(`1500`)},
		"confirm": {Name: "confirm", Value: []byte(`true`)},
		"member":  {Name: "member", Value: []byte(`"123456789012345678"`)},
		"broken":  {Name: "broken", Value: []byte(`{`)},
	})

	assert.Equal(t, map[string]string{
		"name":    "Swift Crane",
		"power":   "1500",
		"confirm": "true",
		"member":  "123456789012345678",
	}, flat)
}

func TestCommandCreates(t *testing.T) {
	t.Parallel()

	creates := CommandCreates([]commands.Spec{{
		Name:        "war",
		Description: "Answer the open war poll",
		Options: []commands.Option{
			{Name: "response", Required: true, Choices: []string{"yes", "no"}},
			{Name: "power", Kind: commands.OptionInteger},
			{Name: "channel", Kind: commands.OptionChannel},
			{Name: "role", Kind: commands.OptionRole},
			{Name: "member", Kind: commands.OptionUser},
			{Name: "confirm", Kind: commands.OptionBoolean},
		},
	}})

	require.Len(t, creates, 1)

	slash, ok := creates[0].(discord.SlashCommandCreate)
	require.True(t, ok)
	assert.Equal(t, "war", slash.Name)
	require.Len(t, slash.Options, 6)

	response, ok := slash.Options[0].(discord.ApplicationCommandOptionString)
	require.True(t, ok)
	assert.True(t, response.Required)
	assert.Len(t, response.Choices, 2)

	assert.IsType(t, discord.ApplicationCommandOptionInt{}, slash.Options[1])
	assert.IsType(t, discord.ApplicationCommandOptionChannel{}, slash.Options[2])
	assert.IsType(t, discord.ApplicationCommandOptionRole{}, slash.Options[3])
	assert.IsType(t, discord.ApplicationCommandOptionUser{}, slash.Options[4])
	assert.IsType(t, discord.ApplicationCommandOptionBool{}, slash.Options[5])
}
