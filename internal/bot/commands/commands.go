package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/akguild/guildkeeper/internal/database"
	"github.com/akguild/guildkeeper/internal/database/service"
	"github.com/akguild/guildkeeper/internal/export"
	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"
)

// EventNotifier delivers war poll events produced by admin commands.
type EventNotifier interface {
	Notify(ctx context.Context, event service.Event) error
}

// MemberSync mirrors profile changes onto the guild member.
type MemberSync interface {
	GrantRole(ctx context.Context, guildID, memberID, roleID snowflake.ID) error
	RevokeRole(ctx context.Context, guildID, memberID, roleID snowflake.ID) error
	SetNickname(ctx context.Context, guildID, memberID snowflake.ID, nickname string) error
}

// Exporter writes a guild's war archive.
type Exporter interface {
	ExportGuild(ctx context.Context, guildID snowflake.ID, now time.Time) (*export.Result, error)
}

// Deps holds what the command handlers need.
type Deps struct {
	DB       database.Client
	Join     *service.JoinService
	Notifier EventNotifier
	Members  MemberSync
	Exporter Exporter
	Logger   *zap.Logger
}

// handlers groups the command implementations.
type handlers struct {
	services *database.Service
	join     *service.JoinService
	notifier EventNotifier
	members  MemberSync
	exporter Exporter
	logger   *zap.Logger
}

// New builds the registry with every guild command.
func New(deps Deps) *Registry {
	h := &handlers{
		services: deps.DB.Service(),
		join:     deps.Join,
		notifier: deps.Notifier,
		members:  deps.Members,
		exporter: deps.Exporter,
		logger:   deps.Logger.Named("command_handlers"),
	}

	r := NewRegistry(deps.Logger)
	h.registerProfile(r)
	h.registerWar(r)
	h.registerJoin(r)
	h.registerLanguage(r)
	h.registerAdmin(r)

	return r
}

// notify posts an event produced by a command. Delivery failures do not fail the command.
func (h *handlers) notify(ctx context.Context, event *service.Event) {
	if h.notifier == nil || event == nil {
		return
	}

	if err := h.notifier.Notify(ctx, *event); err != nil {
		h.logger.Warn("Failed to deliver war poll notification",
			zap.Error(err),
			zap.Uint64("guildID", uint64(event.GuildID)),
			zap.String("kind", string(event.Kind)))
	}
}

func noRequest(*Invocation) (struct{}, error) {
	return struct{}{}, nil
}

func reply(format string, args ...any) *Result {
	return &Result{Content: fmt.Sprintf(format, args...)}
}
