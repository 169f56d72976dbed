package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/akguild/guildkeeper/internal/database/service"
	"github.com/akguild/guildkeeper/internal/database/types"
	"github.com/akguild/guildkeeper/internal/database/types/enum"
	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"
)

type scheduleRequest struct {
	enabled bool
	weekday string
	clock   string
}

func responseChoices() []string {
	values := enum.WarResponseValues()
	choices := make([]string, len(values))
	for i, v := range values {
		choices[i] = v.String()
	}

	return choices
}

func (h *handlers) registerWar(r *Registry) {
	Register(r, Spec{
		Name:        "warpoll",
		Description: "Open a war poll now",
		AdminOnly:   true,
	}, noRequest, h.openWarPoll)

	Register(r, Spec{
		Name:        "warlist",
		Description: "Show the answers to the open war poll",
	}, noRequest, h.warList)

	Register(r, Spec{
		Name:        "warhistory",
		Description: "Show past war polls",
		Options: []Option{{
			Name:        "limit",
			Description: fmt.Sprintf("Number of polls (1-%d)", service.MaxLeaderboardSize),
			Kind:        OptionInteger,
		}},
	}, func(inv *Invocation) (int, error) {
		limit, err := inv.Int("limit", service.DefaultLeaderboardSize)
		return int(limit), err
	}, h.warHistory)

	Register(r, Spec{
		Name:        "resetwar",
		Description: "End the open war poll",
		AdminOnly:   true,
	}, noRequest, h.resetWar)

	Register(r, Spec{
		Name:        "war",
		Description: "Answer the open war poll",
		Options: []Option{{
			Name: "response", Description: "Will you join the war?", Required: true, Choices: responseChoices(),
		}},
	}, func(inv *Invocation) (string, error) {
		return inv.RequireString("response")
	}, h.respond)

	Register(r, Spec{
		Name:        "setwar",
		Description: "Configure reminders, closing, timezone and the war channel",
		AdminOnly:   true,
		Options: []Option{
			{Name: "reminders", Description: "Reminder offsets in minutes after opening, e.g. 60,120 or none"},
			{Name: "close", Description: "Minutes after opening the poll closes", Kind: OptionInteger},
			{Name: "timezone", Description: "IANA timezone, e.g. Africa/Cairo"},
			{Name: "channel", Description: "Channel for war poll messages", Kind: OptionChannel},
		},
	}, parseWarTiming, h.setWar)

	Register(r, Spec{
		Name:        "warconfig",
		Description: "Show the war poll settings",
	}, noRequest, h.warConfig)

	Register(r, Spec{
		Name:        "resetallwar",
		Description: "Delete every war answer and past war poll",
		AdminOnly:   true,
		Options: []Option{{
			Name: "confirm", Description: "Set to true to confirm", Kind: OptionBoolean, Required: true,
		}},
	}, func(inv *Invocation) (bool, error) {
		return inv.Bool("confirm", false)
	}, h.resetAllWar)

	Register(r, Spec{
		Name:        "setpollschedule",
		Description: "Set the weekly war poll day and time",
		AdminOnly:   true,
		Options: []Option{
			{Name: "day", Description: "Weekday, e.g. friday"},
			{Name: "time", Description: "Time of day as HH:MM in the server timezone"},
			{Name: "enabled", Description: "Turn scheduled polls on or off", Kind: OptionBoolean},
		},
	}, parseSchedule, h.setPollSchedule)

	Register(r, Spec{
		Name:        "exportwar",
		Description: "Export the war poll history as an archive",
		AdminOnly:   true,
	}, noRequest, h.exportWar)
}

func parseWarTiming(inv *Invocation) (service.WarTiming, error) {
	var timing service.WarTiming

	if raw := inv.String("reminders"); raw != "" {
		offsets, err := service.ParseOffsets(raw)
		if err != nil {
			return timing, err
		}

		timing.ReminderOffsets = offsets
	}

	closeAfter, err := inv.Int("close", 0)
	if err != nil {
		return timing, err
	}

	channelID, err := inv.ID("channel", 0)
	if err != nil {
		return timing, err
	}

	timing.CloseAfterMinutes = int(closeAfter)
	timing.Timezone = inv.String("timezone")
	timing.WarChannelID = channelID

	if timing.ReminderOffsets == nil && timing.CloseAfterMinutes == 0 && timing.Timezone == "" && timing.WarChannelID == 0 {
		return timing, fmt.Errorf("%w: nothing to change", ErrInvalidOption)
	}

	return timing, nil
}

func parseSchedule(inv *Invocation) (scheduleRequest, error) {
	enabled, err := inv.Bool("enabled", true)
	if err != nil {
		return scheduleRequest{}, err
	}

	req := scheduleRequest{enabled: enabled, weekday: inv.String("day"), clock: inv.String("time")}
	if enabled && (req.weekday == "" || req.clock == "") {
		return req, fmt.Errorf("%w: day and time are required", ErrInvalidOption)
	}

	return req, nil
}

func (h *handlers) openWarPoll(ctx context.Context, inv *Invocation, _ struct{}) (*Result, error) {
	event, err := h.services.War().OpenNow(ctx, inv.GuildID, inv.Now)
	if err != nil {
		return nil, err
	}

	h.notify(ctx, event)

	return reply("✅ War poll opened. It closes <t:%d:R>.", event.Cycle.ClosesAt.Unix()), nil
}

func (h *handlers) warList(ctx context.Context, inv *Invocation, _ struct{}) (*Result, error) {
	cycle, participants, err := h.services.War().Current(ctx, inv.GuildID)
	if err != nil {
		return nil, err
	}

	if cycle == nil {
		return reply("No war polls yet."), nil
	}

	memberIDs := make([]snowflake.ID, len(participants))
	for i, p := range participants {
		memberIDs[i] = p.MemberID
	}

	profiles, err := h.services.Profile().ByMembers(ctx, inv.GuildID, memberIDs)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	if cycle.Status.IsLive() {
		fmt.Fprintf(&b, "⚔️ **War poll** (closes <t:%d:R>)", cycle.ClosesAt.Unix())
	} else {
		fmt.Fprintf(&b, "⚔️ **Last war poll** (%s <t:%d:R>)", cycle.Status, cycle.ClosedAt.Unix())
	}

	for _, response := range enum.WarResponseValues() {
		groups, total := groupByBuild(participants, profiles, response)

		fmt.Fprintf(&b, "\n**%s** (%d)", capitalize(response.String()), total)
		if total == 0 {
			b.WriteString(": -")
			continue
		}

		for _, g := range groups {
			fmt.Fprintf(&b, "\n> %s (%d): %s", g.label, len(g.entries), strings.Join(g.entries, ", "))
		}
	}

	return reply("%s", b.String()), nil
}

// buildGroup lists the members of one build that gave the same answer.
type buildGroup struct {
	label   string
	entries []string
}

// groupByBuild sorts the members with the given answer into builds, in catalog
// order. Members without a finalized build are listed last as Unknown.
func groupByBuild(
	participants []*types.WarParticipant, profiles map[snowflake.ID]*types.Profile, response enum.WarResponse,
) ([]buildGroup, int) {
	builds := enum.BuildTypeValues()
	entries := make(map[enum.BuildType][]string, len(builds)+1)
	total := 0

	for _, p := range participants {
		if p.Response != response {
			continue
		}

		total++

		profile := profiles[p.MemberID]
		if profile == nil {
			entries[enum.BuildTypeUnset] = append(entries[enum.BuildTypeUnset], fmt.Sprintf("<@%d>", p.MemberID))
			continue
		}

		entries[profile.Build] = append(entries[profile.Build], fmt.Sprintf("%s (<@%d>)", profile.InGameName, p.MemberID))
	}

	groups := make([]buildGroup, 0, len(entries))
	for _, build := range append(builds, enum.BuildTypeUnset) {
		if len(entries[build]) == 0 {
			continue
		}

		label := build.String()
		if build == enum.BuildTypeUnset {
			label = "Unknown"
		}

		groups = append(groups, buildGroup{label: label, entries: entries[build]})
	}

	return groups, total
}

func (h *handlers) warHistory(ctx context.Context, inv *Invocation, limit int) (*Result, error) {
	cycles, err := h.services.War().History(ctx, inv.GuildID, limit)
	if err != nil {
		return nil, err
	}

	if len(cycles) == 0 {
		return reply("No war polls yet."), nil
	}

	var b strings.Builder
	b.WriteString("📜 **War history**")

	for _, c := range cycles {
		fmt.Fprintf(&b, "\n<t:%d:d> · %s · %s", c.OpenedAt.Unix(), c.Status, formatSummary(c))
	}

	return reply("%s", b.String()), nil
}

func (h *handlers) resetWar(ctx context.Context, inv *Invocation, _ struct{}) (*Result, error) {
	event, err := h.services.War().Reset(ctx, inv.GuildID, inv.MemberID, inv.Now)
	if err != nil {
		return nil, err
	}

	h.notify(ctx, event)

	return reply("✅ War poll reset. %s", formatSummary(&event.Cycle)), nil
}

func (h *handlers) respond(ctx context.Context, inv *Invocation, response string) (*Result, error) {
	cycle, err := h.services.War().Respond(ctx, inv.GuildID, inv.MemberID, response, inv.Now)
	if err != nil {
		return nil, err
	}

	return reply("✅ Answer recorded: **%s**. You can change it until <t:%d:f>.",
		strings.ToLower(response), cycle.ClosesAt.Unix()), nil
}

func (h *handlers) setWar(ctx context.Context, inv *Invocation, timing service.WarTiming) (*Result, error) {
	settings, err := h.services.Settings().SetWarTiming(ctx, inv.GuildID, timing)
	if err != nil {
		return nil, err
	}

	return reply("✅ War settings saved.\n%s", formatWarSettings(settings)), nil
}

func (h *handlers) warConfig(ctx context.Context, inv *Invocation, _ struct{}) (*Result, error) {
	settings, err := h.services.Settings().Get(ctx, inv.GuildID)
	if err != nil {
		return nil, err
	}

	schedule := "off"
	if settings.PollEnabled {
		schedule = fmt.Sprintf("every %s at %02d:%02d, next <t:%d:R>",
			time.Weekday(settings.PollWeekday), settings.PollHour, settings.PollMinute,
			settings.NextPollStart(inv.Now).Unix())
	}

	return reply("⚙️ **War settings**\nSchedule: %s\n%s", schedule, formatWarSettings(settings)), nil
}

func (h *handlers) resetAllWar(ctx context.Context, inv *Invocation, confirmed bool) (*Result, error) {
	if !confirmed {
		return nil, fmt.Errorf("%w: set confirm to true to delete all war data", ErrInvalidOption)
	}

	removed, err := h.services.War().ClearAll(ctx, inv.GuildID, inv.Now)
	if err != nil {
		return nil, err
	}

	h.logger.Warn("War data cleared",
		zap.Uint64("guildID", uint64(inv.GuildID)),
		zap.Uint64("clearedBy", uint64(inv.MemberID)))

	return reply("✅ All war answers were deleted and %d past polls removed.", removed), nil
}

func (h *handlers) setPollSchedule(ctx context.Context, inv *Invocation, req scheduleRequest) (*Result, error) {
	if !req.enabled {
		if _, err := h.services.Settings().SetPollEnabled(ctx, inv.GuildID, false); err != nil {
			return nil, err
		}

		return reply("✅ Scheduled war polls turned off."), nil
	}

	weekday, err := service.ParseWeekday(req.weekday)
	if err != nil {
		return nil, err
	}

	hour, minute, err := service.ParseClock(req.clock)
	if err != nil {
		return nil, err
	}

	settings, err := h.services.Settings().SetPollSchedule(ctx, inv.GuildID, weekday, hour, minute)
	if err != nil {
		return nil, err
	}

	return reply("✅ War polls open every %s at %02d:%02d (%s). Next poll <t:%d:R>.",
		weekday, hour, minute, settings.Timezone, settings.NextPollStart(inv.Now).Unix()), nil
}

func (h *handlers) exportWar(ctx context.Context, inv *Invocation, _ struct{}) (*Result, error) {
	if h.exporter == nil {
		return reply("Exports are not available."), nil
	}

	result, err := h.exporter.ExportGuild(ctx, inv.GuildID, inv.Now)
	if err != nil {
		return nil, err
	}

	names := make([]string, len(result.Files))
	for i, file := range result.Files {
		names[i] = "`" + filepath.Base(file) + "`"
	}

	return reply("✅ Exported %d polls and %d answers to %s.", result.Cycles, result.Participants, strings.Join(names, ", ")), nil
}

func formatSummary(cycle *types.WarCycle) string {
	summary := cycle.Summary()
	return fmt.Sprintf("Yes %d · No %d · Tentative %d", summary.Yes, summary.No, summary.Tentative)
}

func formatWarSettings(s *types.ServerSettings) string {
	reminders := "none"
	if len(s.ReminderOffsets) > 0 {
		parts := make([]string, len(s.ReminderOffsets))
		for i, offset := range s.ReminderOffsets {
			parts[i] = fmt.Sprintf("%dm", offset)
		}

		reminders = strings.Join(parts, ", ")
	}

	channel := "not set"
	if s.WarChannelID != 0 {
		channel = fmt.Sprintf("<#%d>", s.WarChannelID)
	}

	return fmt.Sprintf("Reminders: %s\nCloses after: %dm\nTimezone: %s\nChannel: %s",
		reminders, s.CloseAfterMinutes, s.Timezone, channel)
}
