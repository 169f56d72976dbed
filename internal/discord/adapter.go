package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/akguild/guildkeeper/internal/database/service"
	"github.com/akguild/guildkeeper/internal/database/types"
	"github.com/akguild/guildkeeper/pkg/utils"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"
)

const (
	// MaxMessageLength is the Discord limit on message content in runes.
	MaxMessageLength = 2000
	// MaxNicknameLength is the Discord limit on guild nicknames in runes.
	MaxNicknameLength = 32
)

// ErrNoChannel is returned when a notification has no configured channel.
var ErrNoChannel = errors.New("no channel configured")

// restClient is the subset of the Discord REST API the adapter uses.
type restClient interface {
	AddMemberRole(guildID, userID, roleID snowflake.ID, opts ...rest.RequestOpt) error
	RemoveMemberRole(guildID, userID, roleID snowflake.ID, opts ...rest.RequestOpt) error
	CreateMessage(channelID snowflake.ID, messageCreate discord.MessageCreate, opts ...rest.RequestOpt) (*discord.Message, error)
	UpdateMember(guildID, userID snowflake.ID, memberUpdate discord.MemberUpdate, opts ...rest.RequestOpt) (*discord.Member, error)
}

// Adapter delivers war poll notifications, join request announcements and
// role changes over the Discord REST API.
type Adapter struct {
	rest   restClient
	logger *zap.Logger
}

// NewAdapter creates a new adapter over a REST client.
func NewAdapter(client restClient, logger *zap.Logger) *Adapter {
	return &Adapter{
		rest:   client,
		logger: logger.Named("discord_adapter"),
	}
}

// GrantRole adds a role to a guild member.
func (a *Adapter) GrantRole(ctx context.Context, guildID, memberID, roleID snowflake.ID) error {
	if err := a.rest.AddMemberRole(guildID, memberID, roleID, rest.WithCtx(ctx)); err != nil {
		return fmt.Errorf("failed to add role %d to member %d: %w", roleID, memberID, err)
	}

	return nil
}

// RevokeRole removes a role from a guild member.
func (a *Adapter) RevokeRole(ctx context.Context, guildID, memberID, roleID snowflake.ID) error {
	if err := a.rest.RemoveMemberRole(guildID, memberID, roleID, rest.WithCtx(ctx)); err != nil {
		return fmt.Errorf("failed to remove role %d from member %d: %w", roleID, memberID, err)
	}

	return nil
}

// SetNickname changes a member's guild nickname.
func (a *Adapter) SetNickname(ctx context.Context, guildID, memberID snowflake.ID, nickname string) error {
	nick := utils.TruncateRunes(nickname, MaxNicknameLength)

	if _, err := a.rest.UpdateMember(guildID, memberID, discord.MemberUpdate{Nick: &nick}, rest.WithCtx(ctx)); err != nil {
		return fmt.Errorf("failed to set nickname of member %d: %w", memberID, err)
	}

	return nil
}

// Notify posts a war poll transition to the guild's war channel.
func (a *Adapter) Notify(ctx context.Context, event service.Event) error {
	if event.ChannelID == 0 {
		return fmt.Errorf("%w: war channel of guild %d", ErrNoChannel, event.GuildID)
	}

	return a.send(ctx, event.ChannelID, FormatEvent(event))
}

// NotifyJoinRequest announces a new join request in the admin channel. Guilds
// without an admin channel are skipped.
func (a *Adapter) NotifyJoinRequest(ctx context.Context, settings *types.ServerSettings, request *types.JoinRequest) error {
	if settings.AdminChannelID == 0 {
		a.logger.Debug("No admin channel, join request not announced",
			zap.Uint64("guildID", uint64(settings.GuildID)),
			zap.Int64("requestID", request.ID))

		return nil
	}

	return a.send(ctx, settings.AdminChannelID, FormatJoinRequest(request))
}

func (a *Adapter) send(ctx context.Context, channelID snowflake.ID, content string) error {
	message := discord.NewMessageCreateBuilder().
		SetContent(utils.TruncateRunes(content, MaxMessageLength)).
		SetAllowedMentions(&discord.AllowedMentions{}).
		Build()

	if _, err := a.rest.CreateMessage(channelID, message, rest.WithCtx(ctx)); err != nil {
		return fmt.Errorf("failed to send message to channel %d: %w", channelID, err)
	}

	return nil
}

// FormatEvent renders a war poll transition as message text.
func FormatEvent(event service.Event) string {
	cycle := event.Cycle

	switch event.Kind {
	case service.EventOpened:
		return fmt.Sprintf("⚔️ **War poll is open!** Will you join this week's guild war?\n"+
			"Answer with `/war yes`, `/war no` or `/war tentative` before <t:%d:F>.", cycle.ClosesAt.Unix())
	case service.EventReminder:
		return fmt.Sprintf("⏰ **Reminder %d:** the war poll closes <t:%d:R>. "+
			"Answer with `/war` if you have not yet.", event.Reminder, cycle.ClosesAt.Unix())
	case service.EventClosed:
		return "🏁 **War poll closed.**\n" + formatSummary(event.Summary)
	case service.EventReset:
		return fmt.Sprintf("🔄 **War poll was reset** by <@%d>.\n", cycle.ResetBy) + formatSummary(event.Summary)
	default:
		return fmt.Sprintf("War poll update: %s", event.Kind)
	}
}

// FormatJoinRequest renders a join request for the admin channel.
func FormatJoinRequest(request *types.JoinRequest) string {
	var b strings.Builder

	fmt.Fprintf(&b, "📥 **Join request #%d** from <@%d>\n", request.ID, request.RequesterID)
	fmt.Fprintf(&b, "Power: %d", request.Power)

	if request.InGameName != "" {
		fmt.Fprintf(&b, "\nIn-game name: %s", request.InGameName)
	}

	if request.Level > 0 {
		fmt.Fprintf(&b, "\nLevel: %d", request.Level)
	}

	if request.Language != "" {
		fmt.Fprintf(&b, "\nLanguage: %s", request.Language)
	}

	fmt.Fprintf(&b, "\nUse `/approve %d` or `/deny %d`.", request.ID, request.ID)

	return b.String()
}

func formatSummary(summary types.WarSummary) string {
	return fmt.Sprintf("✅ Yes: %d · ❌ No: %d · ❔ Tentative: %d · Total: %d",
		summary.Yes, summary.No, summary.Tentative, summary.Total())
}
