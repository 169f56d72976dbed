package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/akguild/guildkeeper/internal/database/service"
	"github.com/akguild/guildkeeper/internal/database/types"
	"github.com/akguild/guildkeeper/internal/database/types/enum"
	"github.com/disgoorg/snowflake/v2"
)

type decisionRequest struct {
	requestID int64
	reason    string
}

type joinRolesRequest struct {
	memberRoleID    snowflake.ID
	applicantRoleID snowflake.ID
}

func (h *handlers) registerJoin(r *Registry) {
	Register(r, Spec{
		Name:        "join",
		Description: "Apply to join the guild",
		Options: []Option{
			{Name: "power", Description: "Your combat power", Kind: OptionInteger, Required: true},
			{Name: "name", Description: "Your in-game name"},
			{Name: "level", Description: "Your character level", Kind: OptionInteger},
			{Name: "language", Description: "Your preferred language", Choices: service.SupportedLanguages()},
		},
	}, parseJoin, h.submitJoin)

	Register(r, Spec{
		Name:        "joinstatus",
		Description: "Show your join requests",
	}, noRequest, h.joinStatus)

	Register(r, Spec{
		Name:        "approve",
		Description: "Approve a join request",
		AdminOnly:   true,
		Options: []Option{
			{Name: "request", Description: "Request number", Kind: OptionInteger, Required: true},
			{Name: "reason", Description: "Note stored with the decision"},
		},
	}, parseDecision, h.decide(enum.JoinDecisionApprove))

	Register(r, Spec{
		Name:        "deny",
		Description: "Deny a join request",
		AdminOnly:   true,
		Options: []Option{
			{Name: "request", Description: "Request number", Kind: OptionInteger, Required: true},
			{Name: "reason", Description: "Reason shown to the requester"},
		},
	}, parseDecision, h.decide(enum.JoinDecisionDeny))

	Register(r, Spec{
		Name:        "joinrequests",
		Description: "List pending join requests",
		AdminOnly:   true,
	}, noRequest, h.listJoinRequests)

	Register(r, Spec{
		Name:        "setjoinrequirement",
		Description: "Set the minimum power for join requests",
		AdminOnly:   true,
		Options:     []Option{{Name: "power", Description: "Minimum power, 0 to accept everyone", Kind: OptionInteger, Required: true}},
	}, func(inv *Invocation) (int64, error) {
		return inv.RequireInt("power")
	}, h.setJoinRequirement)

	Register(r, Spec{
		Name:        "setjoinroles",
		Description: "Set the roles changed when a request is approved",
		AdminOnly:   true,
		Options: []Option{
			{Name: "member_role", Description: "Role granted on approval", Kind: OptionRole, Required: true},
			{Name: "applicant_role", Description: "Role removed once decided", Kind: OptionRole},
		},
	}, parseJoinRoles, h.setJoinRoles)

	Register(r, Spec{
		Name:        "setupjoin",
		Description: "Set the channel where join requests are announced",
		AdminOnly:   true,
		Options:     []Option{{Name: "channel", Description: "Admin channel", Kind: OptionChannel, Required: true}},
	}, func(inv *Invocation) (snowflake.ID, error) {
		return inv.RequireID("channel")
	}, h.setupJoin)
}

func parseJoin(inv *Invocation) (service.SubmitRequest, error) {
	power, err := inv.RequireInt("power")
	if err != nil {
		return service.SubmitRequest{}, err
	}

	level, err := inv.Int("level", 0)
	if err != nil {
		return service.SubmitRequest{}, err
	}

	return service.SubmitRequest{
		GuildID:     inv.GuildID,
		RequesterID: inv.MemberID,
		Power:       power,
		InGameName:  inv.String("name"),
		Level:       int(level),
		Language:    inv.String("language"),
	}, nil
}

func parseDecision(inv *Invocation) (decisionRequest, error) {
	requestID, err := inv.RequireInt("request")
	if err != nil {
		return decisionRequest{}, err
	}

	return decisionRequest{requestID: requestID, reason: inv.String("reason")}, nil
}

func parseJoinRoles(inv *Invocation) (joinRolesRequest, error) {
	memberRoleID, err := inv.RequireID("member_role")
	if err != nil {
		return joinRolesRequest{}, err
	}

	applicantRoleID, err := inv.ID("applicant_role", 0)
	if err != nil {
		return joinRolesRequest{}, err
	}

	return joinRolesRequest{memberRoleID: memberRoleID, applicantRoleID: applicantRoleID}, nil
}

func (h *handlers) submitJoin(ctx context.Context, _ *Invocation, req service.SubmitRequest) (*Result, error) {
	request, err := h.join.Submit(ctx, req)
	if errors.Is(err, service.ErrBelowThreshold) && request != nil {
		return &Result{
			Content: fmt.Sprintf("❌ Join request #%d was denied: %s.", request.ID, request.Reason),
			Outcome: OutcomeRejected,
		}, nil
	}

	if err != nil {
		return nil, err
	}

	return reply("✅ Join request #%d submitted. An admin will review it soon.", request.ID), nil
}

func (h *handlers) joinStatus(ctx context.Context, inv *Invocation, _ struct{}) (*Result, error) {
	requests, err := h.join.ListForRequester(ctx, inv.GuildID, inv.MemberID)
	if err != nil {
		return nil, err
	}

	if len(requests) == 0 {
		return reply("You have no join requests. Use `/join` to apply."), nil
	}

	var b strings.Builder
	b.WriteString("📨 **Your join requests**")

	for _, request := range requests {
		fmt.Fprintf(&b, "\n%s", formatRequestLine(request))

		if request.Reason != "" {
			fmt.Fprintf(&b, " · %s", request.Reason)
		}
	}

	return reply("%s", b.String()), nil
}

func (h *handlers) decide(decision enum.JoinDecision) Handler[decisionRequest] {
	return func(ctx context.Context, inv *Invocation, req decisionRequest) (*Result, error) {
		request, err := h.join.Decide(ctx, inv.GuildID, req.requestID, decision, inv.MemberID, req.reason)
		if err != nil {
			return nil, err
		}

		return reply("✅ Join request #%d of <@%d> %s.", request.ID, request.RequesterID, request.Status), nil
	}
}

func (h *handlers) listJoinRequests(ctx context.Context, inv *Invocation, _ struct{}) (*Result, error) {
	requests, err := h.join.ListPending(ctx, inv.GuildID)
	if err != nil {
		return nil, err
	}

	if len(requests) == 0 {
		return reply("No pending join requests."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📥 **Pending join requests** (%d)", len(requests))

	for _, request := range requests {
		fmt.Fprintf(&b, "\n%s · <@%d>", formatRequestLine(request), request.RequesterID)

		if request.InGameName != "" {
			fmt.Fprintf(&b, " · %s", request.InGameName)
		}
	}

	return reply("%s", b.String()), nil
}

func (h *handlers) setJoinRequirement(ctx context.Context, inv *Invocation, threshold int64) (*Result, error) {
	if threshold < 0 {
		return nil, fmt.Errorf("%w: power must not be negative", ErrInvalidOption)
	}

	if _, err := h.services.Settings().SetJoinThreshold(ctx, inv.GuildID, threshold); err != nil {
		return nil, err
	}

	return reply("✅ Join requests now need at least %d power.", threshold), nil
}

func (h *handlers) setJoinRoles(ctx context.Context, inv *Invocation, req joinRolesRequest) (*Result, error) {
	if _, err := h.services.Settings().SetJoinRoles(ctx, inv.GuildID, req.memberRoleID, req.applicantRoleID); err != nil {
		return nil, err
	}

	if req.applicantRoleID == 0 {
		return reply("✅ Approved members get <@&%d>.", req.memberRoleID), nil
	}

	return reply("✅ Approved members get <@&%d>; <@&%d> is removed once decided.", req.memberRoleID, req.applicantRoleID), nil
}

func (h *handlers) setupJoin(ctx context.Context, inv *Invocation, channelID snowflake.ID) (*Result, error) {
	if _, err := h.services.Settings().SetAdminChannel(ctx, inv.GuildID, channelID); err != nil {
		return nil, err
	}

	return reply("✅ Join requests will be announced in <#%d>.", channelID), nil
}

func formatRequestLine(request *types.JoinRequest) string {
	return fmt.Sprintf("#%d · %s · %d power · <t:%d:R>",
		request.ID, request.Status, request.Power, request.SubmittedAt.Unix())
}
