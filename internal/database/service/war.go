package service

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/akguild/guildkeeper/internal/database/dbretry"
	"github.com/akguild/guildkeeper/internal/database/models"
	"github.com/akguild/guildkeeper/internal/database/types"
	"github.com/akguild/guildkeeper/internal/database/types/enum"
	"github.com/disgoorg/snowflake/v2"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// EventKind identifies a war poll transition.
type EventKind string

const (
	EventOpened   EventKind = "opened"
	EventReminder EventKind = "reminder"
	EventClosed   EventKind = "closed"
	EventReset    EventKind = "reset"
)

// Event describes a committed cycle transition for the notifier.
type Event struct {
	Kind      EventKind
	GuildID   snowflake.ID
	ChannelID snowflake.ID
	Cycle     types.WarCycle
	// Reminder is the 1-based number of the reminder being sent.
	Reminder int
	Summary  types.WarSummary
}

// WarService runs the war poll cycle state machine.
type WarService struct {
	db           *bun.DB
	cycles       *models.WarCycleModel
	participants *models.WarParticipantModel
	profiles     *models.ProfileModel
	settings     *models.SettingsModel
	policy       dbretry.Policy
	locks        *guildLocks
	logger       *zap.Logger
}

// NewWar creates a new war poll service.
func NewWar(
	db *bun.DB,
	cycles *models.WarCycleModel,
	participants *models.WarParticipantModel,
	profiles *models.ProfileModel,
	settings *models.SettingsModel,
	policy dbretry.Policy,
	logger *zap.Logger,
) *WarService {
	return &WarService{
		db:           db,
		cycles:       cycles,
		participants: participants,
		profiles:     profiles,
		settings:     settings,
		policy:       policy,
		locks:        newGuildLocks(),
		logger:       logger.Named("war_service"),
	}
}

// Tick advances the guild's cycle to match the given time. It closes or reminds a
// live cycle, and opens the current scheduled slot when none is live. All decisions
// are recomputed from stored rows, so ticks after a restart pick up where the last left off.
func (s *WarService) Tick(ctx context.Context, settings *types.ServerSettings, now time.Time) ([]Event, error) {
	now = now.UTC()
	guildID := settings.GuildID

	unlock := s.locks.lock(guildID)
	defer unlock()

	var events []Event

	err := dbretry.Transaction(ctx, s.db, s.policy, func(ctx context.Context, tx bun.Tx) error {
		events = events[:0]

		live, err := s.cycles.GetLiveWithTx(ctx, tx, guildID)
		if err != nil {
			return err
		}

		if live != nil {
			event, err := s.advanceWithTx(ctx, tx, settings, live, now)
			if err != nil {
				return err
			}

			if event != nil {
				events = append(events, *event)
			}

			if live.Status.IsLive() {
				return nil
			}
		}

		if !settings.PollEnabled {
			return nil
		}

		event, err := s.openScheduledWithTx(ctx, tx, settings, now)
		if err != nil {
			return err
		}

		if event != nil {
			events = append(events, *event)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, event := range events {
		warTransitions.WithLabelValues(string(event.Kind)).Inc()
		s.logger.Debug("War cycle transition",
			zap.Uint64("guildID", uint64(guildID)),
			zap.Int64("cycleID", event.Cycle.ID),
			zap.String("kind", string(event.Kind)))
	}

	return events, nil
}

// advanceWithTx sends the next due reminder or closes the cycle once its window ended.
func (s *WarService) advanceWithTx(
	ctx context.Context, tx bun.Tx, settings *types.ServerSettings, cycle *types.WarCycle, now time.Time,
) (*Event, error) {
	if !now.Before(cycle.ClosesAt) {
		summary, err := s.participants.CountByCycleWithTx(ctx, tx, cycle.ID)
		if err != nil {
			return nil, err
		}

		cycle.Status = enum.CycleStatusClosed
		cycle.ClosedAt = now
		freezeSummary(cycle, summary)

		if err := s.cycles.UpdateWithTx(ctx, tx, cycle); err != nil {
			return nil, err
		}

		return newEvent(EventClosed, settings, cycle), nil
	}

	due := dueReminders(settings.ReminderOffsets, cycle.ScheduledAt, now)
	if due <= cycle.RemindersSent {
		return nil, nil
	}

	// Reminders missed while offline collapse into the latest one
	cycle.RemindersSent = due
	cycle.Status = enum.CycleStatusReminded
	cycle.RemindedAt = now

	if err := s.cycles.UpdateWithTx(ctx, tx, cycle); err != nil {
		return nil, err
	}

	event := newEvent(EventReminder, settings, cycle)
	event.Reminder = due

	return event, nil
}

// openScheduledWithTx opens the most recent scheduled slot if its window is still running
// and no cycle was ever created for it.
func (s *WarService) openScheduledWithTx(
	ctx context.Context, tx bun.Tx, settings *types.ServerSettings, now time.Time,
) (*Event, error) {
	slot := settings.LastPollStart(now)
	closesAt := slot.Add(settings.CloseAfter())

	if !now.Before(closesAt) {
		return nil, nil
	}

	exists, err := s.cycles.ExistsForSlotWithTx(ctx, tx, settings.GuildID, slot)
	if err != nil || exists {
		return nil, err
	}

	cycle := &types.WarCycle{
		GuildID:     settings.GuildID,
		ScheduledAt: slot,
		Status:      enum.CycleStatusOpen,
		OpenedAt:    now,
		ClosesAt:    closesAt,
	}

	if err := s.cycles.CreateWithTx(ctx, tx, cycle); err != nil {
		return nil, err
	}

	return newEvent(EventOpened, settings, cycle), nil
}

// OpenNow starts a cycle immediately, outside the weekly schedule.
func (s *WarService) OpenNow(ctx context.Context, guildID snowflake.ID, now time.Time) (*Event, error) {
	settings, err := s.settings.Get(ctx, guildID)
	if err != nil {
		return nil, err
	}

	now = now.UTC().Truncate(time.Second)

	unlock := s.locks.lock(guildID)
	defer unlock()

	var event *Event

	err = dbretry.Transaction(ctx, s.db, s.policy, func(ctx context.Context, tx bun.Tx) error {
		live, err := s.cycles.GetLiveWithTx(ctx, tx, guildID)
		if err != nil {
			return err
		}

		if live != nil {
			return ErrCycleAlreadyLive
		}

		cycle := &types.WarCycle{
			GuildID:     guildID,
			ScheduledAt: now,
			Status:      enum.CycleStatusOpen,
			OpenedAt:    now,
			ClosesAt:    now.Add(settings.CloseAfter()),
		}

		if err := s.cycles.CreateWithTx(ctx, tx, cycle); err != nil {
			return err
		}

		event = newEvent(EventOpened, settings, cycle)

		return nil
	})
	if err != nil {
		return nil, err
	}

	warTransitions.WithLabelValues(string(EventOpened)).Inc()
	s.logger.Info("War poll opened manually",
		zap.Uint64("guildID", uint64(guildID)),
		zap.Int64("cycleID", event.Cycle.ID))

	return event, nil
}

// Reset ends the live cycle without reopening its slot. Responses are kept.
func (s *WarService) Reset(ctx context.Context, guildID, resetBy snowflake.ID, now time.Time) (*Event, error) {
	settings, err := s.settings.Get(ctx, guildID)
	if err != nil {
		return nil, err
	}

	now = now.UTC()

	unlock := s.locks.lock(guildID)
	defer unlock()

	var event *Event

	err = dbretry.Transaction(ctx, s.db, s.policy, func(ctx context.Context, tx bun.Tx) error {
		live, err := s.cycles.GetLiveWithTx(ctx, tx, guildID)
		if err != nil {
			return err
		}

		if live == nil {
			return ErrNoLiveCycle
		}

		summary, err := s.participants.CountByCycleWithTx(ctx, tx, live.ID)
		if err != nil {
			return err
		}

		live.Status = enum.CycleStatusReset
		live.ResetBy = resetBy
		live.ClosedAt = now
		freezeSummary(live, summary)

		if err := s.cycles.UpdateWithTx(ctx, tx, live); err != nil {
			return err
		}

		event = newEvent(EventReset, settings, live)

		return nil
	})
	if err != nil {
		return nil, err
	}

	warTransitions.WithLabelValues(string(EventReset)).Inc()
	s.logger.Info("War poll reset",
		zap.Uint64("guildID", uint64(guildID)),
		zap.Uint64("resetBy", uint64(resetBy)),
		zap.Int64("cycleID", event.Cycle.ID))

	return event, nil
}

// Respond records a member's answer to the live cycle. The latest answer wins.
func (s *WarService) Respond(
	ctx context.Context, guildID, memberID snowflake.ID, response string, now time.Time,
) (*types.WarCycle, error) {
	answer, err := enum.WarResponseString(response)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidResponse, response)
	}

	unlock := s.locks.lock(guildID)
	defer unlock()

	var cycle *types.WarCycle

	err = dbretry.Transaction(ctx, s.db, s.policy, func(ctx context.Context, tx bun.Tx) error {
		live, err := s.cycles.GetLiveWithTx(ctx, tx, guildID)
		if err != nil {
			return err
		}

		if live == nil {
			return ErrNoLiveCycle
		}

		// The row stays live until the next tick closes it
		if !now.Before(live.ClosesAt) {
			return ErrPollClosed
		}

		profile, err := s.profiles.GetWithTx(ctx, tx, guildID, memberID)
		if err != nil {
			return err
		}

		if profile == nil {
			return ErrProfileNotFound
		}

		cycle = live

		return s.participants.UpsertWithTx(ctx, tx, &types.WarParticipant{
			CycleID:     live.ID,
			MemberID:    memberID,
			GuildID:     guildID,
			Response:    answer,
			RespondedAt: now.UTC(),
		})
	})
	if err != nil {
		return nil, err
	}

	return cycle, nil
}

// Current returns the live cycle, or the most recent one when none is live, with its responses.
// Returns a nil cycle when the guild never had one.
func (s *WarService) Current(ctx context.Context, guildID snowflake.ID) (*types.WarCycle, []*types.WarParticipant, error) {
	cycle, err := s.cycles.GetLive(ctx, guildID)
	if err != nil {
		return nil, nil, err
	}

	if cycle == nil {
		history, err := s.cycles.ListHistory(ctx, guildID, 1)
		if err != nil {
			return nil, nil, err
		}

		if len(history) == 0 {
			return nil, nil, nil
		}

		cycle = history[0]
	}

	participants, err := s.participants.ListByCycle(ctx, cycle.ID)
	if err != nil {
		return nil, nil, err
	}

	return cycle, participants, nil
}

// History returns the most recent cycles of a guild, newest first.
func (s *WarService) History(ctx context.Context, guildID snowflake.ID, limit int) ([]*types.WarCycle, error) {
	if limit <= 0 || limit > MaxLeaderboardSize {
		limit = DefaultLeaderboardSize
	}

	return s.cycles.ListHistory(ctx, guildID, limit)
}

// Archive returns every cycle and response of a guild for export.
func (s *WarService) Archive(ctx context.Context, guildID snowflake.ID) ([]*types.WarCycle, []*types.WarParticipant, error) {
	cycles, err := s.cycles.ListAll(ctx, guildID)
	if err != nil {
		return nil, nil, err
	}

	participants, err := s.participants.ListByGuild(ctx, guildID)
	if err != nil {
		return nil, nil, err
	}

	return cycles, participants, nil
}

// ListLive returns every live cycle across guilds.
func (s *WarService) ListLive(ctx context.Context) ([]*types.WarCycle, error) {
	return s.cycles.ListLive(ctx)
}

// Prune removes finished cycles scheduled before the cutoff.
func (s *WarService) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.cycles.PruneBefore(ctx, cutoff)
}

// ClearAll removes every war answer of a guild and the cycles whose window has
// ended. Cycles still inside their window keep their row with zeroed counts so
// their slot is not opened again. Returns the number of cycles removed.
func (s *WarService) ClearAll(ctx context.Context, guildID snowflake.ID, now time.Time) (int64, error) {
	unlock := s.locks.lock(guildID)
	defer unlock()

	var removed int64

	err := dbretry.Transaction(ctx, s.db, s.policy, func(ctx context.Context, tx bun.Tx) error {
		if err := s.participants.DeleteByGuildWithTx(ctx, tx, guildID); err != nil {
			return err
		}

		var err error

		removed, err = s.cycles.DeleteEndedWithTx(ctx, tx, guildID, now)
		if err != nil {
			return err
		}

		return s.cycles.ClearSummariesWithTx(ctx, tx, guildID)
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("War data cleared",
		zap.Uint64("guildID", uint64(guildID)),
		zap.Int64("cyclesRemoved", removed))

	return removed, nil
}

// dueReminders counts the offsets that have passed at now.
func dueReminders(offsets types.ReminderOffsets, scheduledAt, now time.Time) int {
	sorted := slices.Clone(offsets)
	slices.Sort(sorted)

	due := 0
	for _, offset := range sorted {
		if now.Before(scheduledAt.Add(time.Duration(offset) * time.Minute)) {
			break
		}
		due++
	}

	return due
}

func freezeSummary(cycle *types.WarCycle, summary types.WarSummary) {
	cycle.YesCount = summary.Yes
	cycle.NoCount = summary.No
	cycle.TentativeCount = summary.Tentative
}

func newEvent(kind EventKind, settings *types.ServerSettings, cycle *types.WarCycle) *Event {
	return &Event{
		Kind:      kind,
		GuildID:   cycle.GuildID,
		ChannelID: settings.WarChannelID,
		Cycle:     *cycle,
		Summary:   cycle.Summary(),
	}
}
