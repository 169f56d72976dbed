package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/akguild/guildkeeper/internal/database/dberr"
	"github.com/akguild/guildkeeper/internal/database/dbretry"
	"github.com/akguild/guildkeeper/internal/database/models"
	"github.com/akguild/guildkeeper/internal/database/types"
	"github.com/akguild/guildkeeper/internal/database/types/enum"
	"github.com/akguild/guildkeeper/pkg/utils"
	"github.com/disgoorg/snowflake/v2"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

const (
	// ReasonBelowThreshold is stored on requests rejected for insufficient power.
	ReasonBelowThreshold = "below threshold"
	// DefaultGrantTimeout bounds the role grant made after an approval commits.
	DefaultGrantTimeout = 10 * time.Second
)

// ErrRoleGrantFailed is returned when approval was reverted because the member role could not be granted.
var ErrRoleGrantFailed = errors.New("failed to grant member role")

// RoleGranter applies role changes on the chat platform.
type RoleGranter interface {
	GrantRole(ctx context.Context, guildID, memberID, roleID snowflake.ID) error
	RevokeRole(ctx context.Context, guildID, memberID, roleID snowflake.ID) error
}

// JoinNotifier tells guild admins about new join requests.
type JoinNotifier interface {
	NotifyJoinRequest(ctx context.Context, settings *types.ServerSettings, request *types.JoinRequest) error
}

// SubmitRequest holds the details of a membership application.
type SubmitRequest struct {
	GuildID     snowflake.ID
	RequesterID snowflake.ID
	Power       int64
	InGameName  string
	Level       int
	Language    string
}

// JoinOption configures a JoinService.
type JoinOption func(*JoinService)

// WithGrantTimeout sets how long the role grant may take during approval.
func WithGrantTimeout(d time.Duration) JoinOption {
	return func(s *JoinService) {
		if d > 0 {
			s.grantTimeout = d
		}
	}
}

// WithRetryOptions sets the retry behavior for transient failures. Without a
// ShouldRetry filter only transient I/O errors are retried.
func WithRetryOptions(opts utils.RetryOptions) JoinOption {
	return func(s *JoinService) {
		if opts.ShouldRetry == nil {
			opts.ShouldRetry = isTransient
		}
		s.retry = opts
	}
}

// JoinService runs the join request workflow.
type JoinService struct {
	db           *bun.DB
	requests     *models.JoinRequestModel
	profiles     *models.ProfileModel
	settings     *models.SettingsModel
	granter      RoleGranter
	notifier     JoinNotifier
	policy       dbretry.Policy
	retry        utils.RetryOptions
	grantTimeout time.Duration
	logger       *zap.Logger
}

// NewJoin creates a new join workflow service.
func NewJoin(
	db *bun.DB,
	requests *models.JoinRequestModel,
	profiles *models.ProfileModel,
	settings *models.SettingsModel,
	granter RoleGranter,
	notifier JoinNotifier,
	policy dbretry.Policy,
	logger *zap.Logger,
	opts ...JoinOption,
) *JoinService {
	s := &JoinService{
		db:           db,
		requests:     requests,
		profiles:     profiles,
		settings:     settings,
		granter:      granter,
		notifier:     notifier,
		policy:       policy,
		retry:        utils.GetWorkflowRetryOptions(isTransient),
		grantTimeout: DefaultGrantTimeout,
		logger:       logger.Named("join_service"),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Submit records a join request. A request below the guild's power threshold is
// stored as denied and returned together with ErrBelowThreshold.
func (s *JoinService) Submit(ctx context.Context, req SubmitRequest) (*types.JoinRequest, error) {
	if req.Power < 0 {
		return nil, ErrInvalidPower
	}

	if req.InGameName != "" {
		name, err := NormalizeName(req.InGameName)
		if err != nil {
			return nil, err
		}
		req.InGameName = name
	}

	if req.Language != "" {
		code, err := NormalizeLanguage(req.Language)
		if err != nil {
			return nil, err
		}
		req.Language = code
	}

	settings, err := s.settings.Get(ctx, req.GuildID)
	if err != nil {
		return nil, err
	}

	request, err := utils.WithRetry(ctx, func() (*types.JoinRequest, error) {
		return s.submitOnce(ctx, settings, req)
	}, s.retry)

	switch {
	case errors.Is(err, ErrBelowThreshold):
		joinSubmissions.WithLabelValues("below_threshold").Inc()
		s.logger.Info("Join request below threshold",
			zap.Uint64("guildID", uint64(req.GuildID)),
			zap.Uint64("requesterID", uint64(req.RequesterID)),
			zap.Int64("power", req.Power),
			zap.Int64("threshold", settings.JoinThreshold))

		return request, err
	case errors.Is(err, dberr.ErrConflict):
		// A concurrent submit won the race for the pending slot
		return nil, ErrDuplicatePending
	case err != nil:
		return nil, err
	}

	joinSubmissions.WithLabelValues("pending").Inc()

	if s.notifier != nil {
		if err := s.notifier.NotifyJoinRequest(ctx, settings, request); err != nil {
			s.logger.Warn("Failed to notify admins about join request",
				zap.Uint64("guildID", uint64(req.GuildID)),
				zap.Int64("requestID", request.ID),
				zap.Error(err))
		}
	}

	return request, nil
}

// submitOnce runs one submission transaction.
func (s *JoinService) submitOnce(
	ctx context.Context, settings *types.ServerSettings, req SubmitRequest,
) (*types.JoinRequest, error) {
	var (
		request *types.JoinRequest
		outcome error
	)

	err := dbretry.Transaction(ctx, s.db, s.policy, func(ctx context.Context, tx bun.Tx) error {
		outcome = nil

		latest, err := s.requests.LatestForRequesterWithTx(ctx, tx, req.GuildID, req.RequesterID)
		if err != nil {
			return err
		}

		if latest != nil {
			switch latest.Status {
			case enum.JoinRequestStatusPending:
				return ErrDuplicatePending
			case enum.JoinRequestStatusApproved:
				return ErrAlreadyMember
			case enum.JoinRequestStatusDenied:
			}
		}

		now := time.Now().UTC()
		request = &types.JoinRequest{
			GuildID:     req.GuildID,
			RequesterID: req.RequesterID,
			Power:       req.Power,
			InGameName:  req.InGameName,
			Level:       req.Level,
			Language:    req.Language,
			Status:      enum.JoinRequestStatusPending,
			SubmittedAt: now,
		}

		// Rejections are kept so the requester can see why
		if req.Power < settings.JoinThreshold {
			request.Status = enum.JoinRequestStatusDenied
			request.Reason = ReasonBelowThreshold
			request.DecidedAt = now
			outcome = fmt.Errorf("%w: power %d, required %d", ErrBelowThreshold, req.Power, settings.JoinThreshold)
		}

		return s.requests.CreateWithTx(ctx, tx, request)
	})
	if err != nil {
		return nil, err
	}

	return request, outcome
}

// Decide applies an admin decision to a pending request. Approval commits the
// decision and the member's profile first, then grants the member role outside
// any transaction. If the grant fails the approval is reverted and the request
// is pending again.
func (s *JoinService) Decide(
	ctx context.Context, guildID snowflake.ID, requestID int64, decision enum.JoinDecision, decidedBy snowflake.ID, reason string,
) (*types.JoinRequest, error) {
	if decision != enum.JoinDecisionApprove && decision != enum.JoinDecisionDeny {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDecision, decision)
	}

	settings, err := s.settings.Get(ctx, guildID)
	if err != nil {
		return nil, err
	}

	committed, err := utils.WithRetry(ctx, func() (*decidedRequest, error) {
		return s.commitDecision(ctx, settings, requestID, decision, decidedBy, reason)
	}, s.retry)
	if err != nil {
		return nil, err
	}

	request := committed.request

	if decision == enum.JoinDecisionApprove && settings.MemberRoleID != 0 && s.granter != nil {
		if err := s.grantMemberRole(ctx, settings, committed); err != nil {
			return nil, err
		}
	}

	joinDecisions.WithLabelValues(string(request.Status)).Inc()

	s.logger.Info("Join request decided",
		zap.Uint64("guildID", uint64(guildID)),
		zap.Int64("requestID", request.ID),
		zap.Uint64("requesterID", uint64(request.RequesterID)),
		zap.String("status", request.Status.String()),
		zap.Uint64("decidedBy", uint64(decidedBy)))

	if settings.ApplicantRoleID != 0 && s.granter != nil {
		s.revokeBestEffort(ctx, guildID, request.RequesterID, settings.ApplicantRoleID)
	}

	return request, nil
}

// decidedRequest is a committed decision together with the profile it replaced.
type decidedRequest struct {
	request *types.JoinRequest
	// previous is the profile that existed before approval, nil if approval created it
	previous *types.Profile
}

// commitDecision runs one decision transaction.
func (s *JoinService) commitDecision(
	ctx context.Context, settings *types.ServerSettings, requestID int64,
	decision enum.JoinDecision, decidedBy snowflake.ID, reason string,
) (*decidedRequest, error) {
	var result *decidedRequest

	guildID := settings.GuildID

	err := dbretry.Transaction(ctx, s.db, s.policy, func(ctx context.Context, tx bun.Tx) error {
		result = nil

		request, err := s.requests.GetForUpdateWithTx(ctx, tx, guildID, requestID)
		if err != nil {
			return err
		}

		if request == nil || request.Status != enum.JoinRequestStatusPending {
			return fmt.Errorf("%w: id %d", ErrRequestNotFound, requestID)
		}

		now := time.Now().UTC()
		request.Status = decision.Status()
		request.Reason = reason
		request.DecidedAt = now
		request.DecidedBy = decidedBy

		if err := s.requests.UpdateDecisionWithTx(ctx, tx, request); err != nil {
			return err
		}

		current := &decidedRequest{request: request}

		if decision == enum.JoinDecisionApprove {
			current.previous, err = s.profiles.GetWithTx(ctx, tx, guildID, request.RequesterID)
			if err != nil {
				return err
			}

			if err := s.profiles.UpsertWithTx(ctx, tx, &types.Profile{
				GuildID:       guildID,
				MemberID:      request.RequesterID,
				InGameName:    request.InGameName,
				Build:         enum.BuildTypeUnset,
				MasteryPoints: request.Power,
				Level:         request.Level,
				CreatedAt:     now,
				UpdatedAt:     now,
			}); err != nil {
				return err
			}
		}

		result = current

		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// grantMemberRole grants the member role of an approved request. On failure the
// approval is reverted and ErrRoleGrantFailed is returned.
func (s *JoinService) grantMemberRole(ctx context.Context, settings *types.ServerSettings, committed *decidedRequest) error {
	request := committed.request

	grantCtx, cancel := context.WithTimeout(ctx, s.grantTimeout)
	grantErr := s.granter.GrantRole(grantCtx, settings.GuildID, request.RequesterID, settings.MemberRoleID)
	cancel()

	if grantErr == nil {
		return nil
	}

	roleGrantFailures.Inc()
	s.logger.Warn("Role grant failed, returning request to pending",
		zap.Uint64("guildID", uint64(settings.GuildID)),
		zap.Int64("requestID", request.ID),
		zap.Error(grantErr))

	// A timed out grant may still have been applied
	s.revokeBestEffort(ctx, settings.GuildID, request.RequesterID, settings.MemberRoleID)

	if err := s.reopen(context.WithoutCancel(ctx), committed); err != nil {
		s.logger.Error("Failed to return request to pending",
			zap.Uint64("guildID", uint64(settings.GuildID)),
			zap.Int64("requestID", request.ID),
			zap.Error(err))

		return fmt.Errorf("%w: %v (reopen failed: %w)", ErrRoleGrantFailed, grantErr, err)
	}

	return fmt.Errorf("%w: %v", ErrRoleGrantFailed, grantErr)
}

// reopen reverts a committed approval: the request is pending again and the
// profile is restored to what it was before approval.
func (s *JoinService) reopen(ctx context.Context, committed *decidedRequest) error {
	approved := committed.request

	_, err := utils.WithRetry(ctx, func() (struct{}, error) {
		return struct{}{}, dbretry.Transaction(ctx, s.db, s.policy, func(ctx context.Context, tx bun.Tx) error {
			request, err := s.requests.GetForUpdateWithTx(ctx, tx, approved.GuildID, approved.ID)
			if err != nil {
				return err
			}

			// Cleared by clearalldata in the meantime
			if request == nil || request.Status != enum.JoinRequestStatusApproved {
				return nil
			}

			request.Status = enum.JoinRequestStatusPending
			request.Reason = ""
			request.DecidedAt = time.Time{}
			request.DecidedBy = 0

			if err := s.requests.UpdateDecisionWithTx(ctx, tx, request); err != nil {
				return err
			}

			if committed.previous != nil {
				return s.profiles.UpsertWithTx(ctx, tx, committed.previous)
			}

			_, err = s.profiles.DeleteWithTx(ctx, tx, approved.GuildID, approved.RequesterID)

			return err
		})
	}, s.retry)

	return err
}

// revokeBestEffort removes a role and only logs failures.
func (s *JoinService) revokeBestEffort(ctx context.Context, guildID, memberID, roleID snowflake.ID) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.grantTimeout)
	defer cancel()

	if err := s.granter.RevokeRole(ctx, guildID, memberID, roleID); err != nil {
		s.logger.Warn("Failed to revoke member role",
			zap.Uint64("guildID", uint64(guildID)),
			zap.Uint64("memberID", uint64(memberID)),
			zap.Uint64("roleID", uint64(roleID)),
			zap.Error(err))
	}
}

// ListPending returns the pending requests of a guild, newest first.
func (s *JoinService) ListPending(ctx context.Context, guildID snowflake.ID) ([]*types.JoinRequest, error) {
	return s.requests.ListPending(ctx, guildID)
}

// ListForRequester returns a member's requests, newest first.
func (s *JoinService) ListForRequester(ctx context.Context, guildID, requesterID snowflake.ID) ([]*types.JoinRequest, error) {
	return s.requests.ListByRequester(ctx, guildID, requesterID)
}

func isTransient(err error) bool {
	return errors.Is(err, dberr.ErrTransientIO)
}
