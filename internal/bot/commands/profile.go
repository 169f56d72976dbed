package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/akguild/guildkeeper/internal/database/service"
	"github.com/akguild/guildkeeper/internal/database/types"
	"github.com/akguild/guildkeeper/internal/database/types/enum"
	"github.com/disgoorg/snowflake/v2"
)

type setupProfileRequest struct {
	name    string
	build   string
	weapons []string
}

type statsRequest struct {
	masteryPoints int64
	level         int
}

func buildChoices() []string {
	values := enum.BuildTypeValues()
	choices := make([]string, len(values))
	for i, v := range values {
		choices[i] = v.String()
	}

	return choices
}

func (h *handlers) registerProfile(r *Registry) {
	Register(r, Spec{
		Name:        "setupprofile",
		Description: "Set up your guild profile",
		Options: []Option{
			{Name: "name", Description: "Your in-game name", Required: true},
			{Name: "build", Description: "Your build", Required: true, Choices: buildChoices()},
			{Name: "weapon1", Description: "Your main weapon", Required: true},
			{Name: "weapon2", Description: "Your second weapon"},
		},
	}, parseSetupProfile, h.setupProfile)

	Register(r, Spec{
		Name:        "profile",
		Description: "Show a guild profile",
		Options:     []Option{{Name: "member", Description: "Member to show, yourself by default", Kind: OptionUser}},
	}, parseMember(false), h.showProfile)

	Register(r, Spec{
		Name:        "resetbuild",
		Description: "Clear your build and weapons to pick again",
	}, noRequest, h.resetBuild)

	Register(r, Spec{
		Name:        "deleteprofile",
		Description: "Delete a member's profile",
		AdminOnly:   true,
		Options:     []Option{{Name: "member", Description: "Member to delete", Kind: OptionUser, Required: true}},
	}, parseMember(true), h.deleteProfile)

	Register(r, Spec{
		Name:        "changename",
		Description: "Change your in-game name",
		Options:     []Option{{Name: "name", Description: "New in-game name", Required: true}},
	}, func(inv *Invocation) (string, error) {
		return inv.RequireString("name")
	}, h.changeName)

	Register(r, Spec{
		Name:        "updatestats",
		Description: "Update your mastery points and level",
		Options: []Option{
			{Name: "mastery", Description: "Mastery points", Kind: OptionInteger, Required: true},
			{Name: "level", Description: fmt.Sprintf("Character level (1-%d)", service.MaxLevel), Kind: OptionInteger, Required: true},
		},
	}, parseStats, h.updateStats)

	Register(r, Spec{
		Name:        "setbuildroles",
		Description: "Set the roles given to members for each build",
		AdminOnly:   true,
		Options: []Option{
			{Name: "dps", Description: "Role for DPS", Kind: OptionRole},
			{Name: "tank", Description: "Role for Tank", Kind: OptionRole},
			{Name: "healer", Description: "Role for Healer", Kind: OptionRole},
			{Name: "support", Description: "Role for Support", Kind: OptionRole},
		},
	}, parseBuildRoles, h.setBuildRoles)

	Register(r, Spec{
		Name:        "leaderboard",
		Description: "Show the top profiles by mastery points",
		Options: []Option{{
			Name:        "size",
			Description: fmt.Sprintf("Number of entries (1-%d)", service.MaxLeaderboardSize),
			Kind:        OptionInteger,
		}},
	}, func(inv *Invocation) (int, error) {
		size, err := inv.Int("size", service.DefaultLeaderboardSize)
		return int(size), err
	}, h.leaderboard)
}

func parseSetupProfile(inv *Invocation) (setupProfileRequest, error) {
	name, err := inv.RequireString("name")
	if err != nil {
		return setupProfileRequest{}, err
	}

	build, err := inv.RequireString("build")
	if err != nil {
		return setupProfileRequest{}, err
	}

	weapons := make([]string, 0, types.MaxWeapons)
	for _, option := range []string{"weapon1", "weapon2"} {
		if weapon := inv.String(option); weapon != "" {
			weapons = append(weapons, weapon)
		}
	}

	return setupProfileRequest{name: name, build: build, weapons: weapons}, nil
}

func parseMember(required bool) Parser[snowflake.ID] {
	return func(inv *Invocation) (snowflake.ID, error) {
		if required {
			return inv.RequireID("member")
		}

		return inv.ID("member", inv.MemberID)
	}
}

// parseBuildRoles reads the build role options. Omitted builds get no role.
func parseBuildRoles(inv *Invocation) (service.BuildRoles, error) {
	var roles service.BuildRoles

	for name, target := range map[string]*snowflake.ID{
		"dps":     &roles.DPS,
		"tank":    &roles.Tank,
		"healer":  &roles.Healer,
		"support": &roles.Support,
	} {
		id, err := inv.ID(name, 0)
		if err != nil {
			return roles, err
		}

		*target = id
	}

	return roles, nil
}

func parseStats(inv *Invocation) (statsRequest, error) {
	mastery, err := inv.RequireInt("mastery")
	if err != nil {
		return statsRequest{}, err
	}

	level, err := inv.RequireInt("level")
	if err != nil {
		return statsRequest{}, err
	}

	return statsRequest{masteryPoints: mastery, level: int(level)}, nil
}

func (h *handlers) setupProfile(ctx context.Context, inv *Invocation, req setupProfileRequest) (*Result, error) {
	profile, err := h.services.Profile().Setup(ctx, service.SetupRequest{
		GuildID:    inv.GuildID,
		MemberID:   inv.MemberID,
		InGameName: req.name,
		Build:      req.build,
		Weapons:    req.weapons,
	})
	if err != nil {
		return nil, err
	}

	warning := h.syncBuildRoles(ctx, inv.GuildID, inv.MemberID, profile.Build)

	return reply("✅ Profile saved.\n%s%s", formatProfile(profile), warning), nil
}

func (h *handlers) showProfile(ctx context.Context, inv *Invocation, memberID snowflake.ID) (*Result, error) {
	profile, err := h.services.Profile().Get(ctx, inv.GuildID, memberID)
	if err != nil {
		return nil, err
	}

	return reply("%s", formatProfile(profile)), nil
}

func (h *handlers) resetBuild(ctx context.Context, inv *Invocation, _ struct{}) (*Result, error) {
	if err := h.services.Profile().ResetBuild(ctx, inv.GuildID, inv.MemberID); err != nil {
		return nil, err
	}

	warning := h.syncBuildRoles(ctx, inv.GuildID, inv.MemberID, enum.BuildTypeUnset)

	return reply("✅ Build cleared. Use `/setupprofile` to pick a new build and weapons.%s", warning), nil
}

func (h *handlers) deleteProfile(ctx context.Context, inv *Invocation, memberID snowflake.ID) (*Result, error) {
	if err := h.services.Profile().Delete(ctx, inv.GuildID, memberID); err != nil {
		return nil, err
	}

	return reply("✅ Profile of <@%d> deleted.", memberID), nil
}

func (h *handlers) changeName(ctx context.Context, inv *Invocation, name string) (*Result, error) {
	stored, err := h.services.Profile().ChangeName(ctx, inv.GuildID, inv.MemberID, name)
	if err != nil {
		return nil, err
	}

	return reply("✅ In-game name changed to **%s**.%s", stored, h.syncNickname(ctx, inv.GuildID, inv.MemberID, stored)), nil
}

func (h *handlers) updateStats(ctx context.Context, inv *Invocation, req statsRequest) (*Result, error) {
	if err := h.services.Profile().UpdateStats(ctx, inv.GuildID, inv.MemberID, req.masteryPoints, req.level); err != nil {
		return nil, err
	}

	return reply("✅ Stats updated: %d mastery points, level %d.", req.masteryPoints, req.level), nil
}

func (h *handlers) setBuildRoles(ctx context.Context, inv *Invocation, roles service.BuildRoles) (*Result, error) {
	settings, err := h.services.Settings().SetBuildRoles(ctx, inv.GuildID, roles)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	b.WriteString("✅ Build roles saved.")

	for _, build := range enum.BuildTypeValues() {
		role := "none"
		if id := settings.BuildRoleID(build); id != 0 {
			role = fmt.Sprintf("<@&%d>", id)
		}

		fmt.Fprintf(&b, "\n%s: %s", build, role)
	}

	return reply("%s", b.String()), nil
}

func (h *handlers) leaderboard(ctx context.Context, inv *Invocation, size int) (*Result, error) {
	profiles, err := h.services.Profile().Leaderboard(ctx, inv.GuildID, size)
	if err != nil {
		return nil, err
	}

	if len(profiles) == 0 {
		return reply("No profiles yet."), nil
	}

	var b strings.Builder
	b.WriteString("🏆 **Leaderboard**")

	for i, p := range profiles {
		fmt.Fprintf(&b, "\n%d. **%s** (<@%d>) · %d mastery · level %d", i+1, p.InGameName, p.MemberID, p.MasteryPoints, p.Level)
	}

	return reply("%s", b.String()), nil
}

func formatProfile(p *types.Profile) string {
	var b strings.Builder

	fmt.Fprintf(&b, "👤 **%s** (<@%d>)", p.InGameName, p.MemberID)

	if p.IsFinalized() {
		fmt.Fprintf(&b, "\nBuild: %s\nWeapons: %s", p.Build, strings.Join(p.WeaponNames(), ", "))
	} else {
		b.WriteString("\nBuild: not set")
	}

	fmt.Fprintf(&b, "\nMastery: %d · Level: %d", p.MasteryPoints, p.Level)

	return b.String()
}
