package bot

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/akguild/guildkeeper/internal/bot/commands"
	"github.com/akguild/guildkeeper/pkg/utils"
	"github.com/bytedance/sonic"
	"github.com/disgoorg/disgo"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/gateway"
	"github.com/disgoorg/disgo/rest"
	"go.uber.org/zap"
)

const (
	// CommandTimeout bounds the handling of one slash command.
	CommandTimeout = 30 * time.Second

	maxContentLength = 2000
)

// Bot connects to the Discord gateway and routes slash commands to the registry.
type Bot struct {
	client   bot.Client
	registry *commands.Registry
	baseCtx  context.Context
	logger   *zap.Logger
}

// New creates the Discord client. The gateway is not opened until Start.
func New(token string, logger *zap.Logger) (*Bot, error) {
	b := &Bot{
		baseCtx: context.Background(),
		logger:  logger.Named("bot"),
	}

	client, err := disgo.New(token,
		bot.WithGatewayConfigOpts(
			gateway.WithIntents(gateway.IntentGuilds),
		),
		bot.WithEventListeners(&events.ListenerAdapter{
			OnApplicationCommandInteraction: b.handleApplicationCommandInteraction,
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord client: %w", err)
	}

	b.client = client

	return b, nil
}

// Rest returns the REST client used for role changes and notifications.
func (b *Bot) Rest() rest.Rest {
	return b.client.Rest()
}

// Start registers the commands, opens the gateway and blocks until ctx is done.
func (b *Bot) Start(ctx context.Context, registry *commands.Registry) error {
	b.registry = registry
	b.baseCtx = ctx

	b.logger.Info("Registering commands", zap.Int("count", len(registry.Specs())))

	if _, err := b.client.Rest().SetGlobalCommands(
		b.client.ApplicationID(), CommandCreates(registry.Specs()), rest.WithCtx(ctx),
	); err != nil {
		return fmt.Errorf("failed to register commands: %w", err)
	}

	b.logger.Info("Starting bot")

	if err := b.client.OpenGateway(ctx); err != nil {
		return fmt.Errorf("failed to open gateway: %w", err)
	}

	<-ctx.Done()

	b.Close()

	return nil
}

// Close gracefully shuts down the Discord gateway connection.
func (b *Bot) Close() {
	b.logger.Info("Closing bot")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	b.client.Close(ctx)
}

// handleApplicationCommandInteraction defers the response and runs the command in a goroutine.
func (b *Bot) handleApplicationCommandInteraction(event *events.ApplicationCommandInteractionCreate) {
	go func() {
		// Defer response to prevent Discord timeout while processing
		if err := event.DeferCreateMessage(true); err != nil {
			b.logger.Error("Failed to defer create message", zap.Error(err))
			return
		}

		data := event.SlashCommandInteractionData()
		name := data.CommandName()

		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				b.logger.Error("Panic in application command interaction handler",
					zap.Any("panic", r),
					zap.String("command", name))
				b.respond(event, "Internal error. Please report this to an administrator.")
			}

			b.logger.Debug("Application command interaction handled",
				zap.String("command", name),
				zap.Duration("duration", time.Since(start)))
		}()

		ctx, cancel := context.WithTimeout(b.baseCtx, CommandTimeout)
		defer cancel()

		inv := &commands.Invocation{
			MemberID: event.User().ID,
			Options:  FlattenOptions(data.Options),
			Now:      time.Now(),
		}

		if guildID := event.GuildID(); guildID != nil {
			inv.GuildID = *guildID
		}

		if member := event.Member(); member != nil {
			inv.IsAdmin = member.Permissions.Has(discord.PermissionAdministrator)
		}

		result := b.registry.Dispatch(ctx, name, inv)
		b.respond(event, result.Content)
	}()
}

// respond replaces the deferred response with the given text.
func (b *Bot) respond(event *events.ApplicationCommandInteractionCreate, content string) {
	_, err := event.Client().Rest().UpdateInteractionResponse(event.ApplicationID(), event.Token(),
		discord.NewMessageUpdateBuilder().
			SetContent(utils.TruncateRunes(content, maxContentLength)).
			SetAllowedMentions(&discord.AllowedMentions{}).
			Build())
	if err != nil {
		b.logger.Error("Failed to update interaction response", zap.Error(err))
	}
}

// FlattenOptions converts option values to the strings the registry parses.
// Snowflake options arrive as strings; numbers and booleans are formatted.
func FlattenOptions(options map[string]discord.SlashCommandOption) map[string]string {
	flat := make(map[string]string, len(options))

	for name, option := range options {
		var value any
		if err := sonic.Unmarshal(option.Value, &value); err != nil {
			continue
		}

		switch v := value.(type) {
		case string:
			flat[name] = v
		case float64:
			flat[name] = strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			flat[name] = strconv.FormatBool(v)
		}
	}

	return flat
}

// CommandCreates converts registry specs to slash command definitions.
func CommandCreates(specs []commands.Spec) []discord.ApplicationCommandCreate {
	creates := make([]discord.ApplicationCommandCreate, 0, len(specs))

	for _, spec := range specs {
		options := make([]discord.ApplicationCommandOption, 0, len(spec.Options))
		for _, option := range spec.Options {
			options = append(options, commandOption(option))
		}

		creates = append(creates, discord.SlashCommandCreate{
			Name:        spec.Name,
			Description: spec.Description,
			Options:     options,
		})
	}

	return creates
}

func commandOption(option commands.Option) discord.ApplicationCommandOption {
	switch option.Kind {
	case commands.OptionInteger:
		return discord.ApplicationCommandOptionInt{
			Name: option.Name, Description: option.Description, Required: option.Required,
		}
	case commands.OptionBoolean:
		return discord.ApplicationCommandOptionBool{
			Name: option.Name, Description: option.Description, Required: option.Required,
		}
	case commands.OptionUser:
		return discord.ApplicationCommandOptionUser{
			Name: option.Name, Description: option.Description, Required: option.Required,
		}
	case commands.OptionChannel:
		return discord.ApplicationCommandOptionChannel{
			Name:         option.Name,
			Description:  option.Description,
			Required:     option.Required,
			ChannelTypes: []discord.ChannelType{discord.ChannelTypeGuildText},
		}
	case commands.OptionRole:
		return discord.ApplicationCommandOptionRole{
			Name: option.Name, Description: option.Description, Required: option.Required,
		}
	default:
		choices := make([]discord.ApplicationCommandOptionChoiceString, len(option.Choices))
		for i, choice := range option.Choices {
			choices[i] = discord.ApplicationCommandOptionChoiceString{Name: choice, Value: choice}
		}

		return discord.ApplicationCommandOptionString{
			Name:        option.Name,
			Description: option.Description,
			Required:    option.Required,
			Choices:     choices,
		}
	}
}
