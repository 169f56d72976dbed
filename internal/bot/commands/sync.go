package commands

import (
	"context"

	"github.com/akguild/guildkeeper/internal/database/types/enum"
	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"
)

const (
	buildRolesWarning = "\n⚠️ Couldn't update your build roles. The bot may be missing permissions."
	nicknameWarning   = "\n⚠️ Couldn't update your server nickname. The bot may be missing permissions."
)

// syncBuildRoles leaves the member with only the role of build. An unset build
// removes every build role. Returns a warning line when a change failed.
func (h *handlers) syncBuildRoles(ctx context.Context, guildID, memberID snowflake.ID, build enum.BuildType) string {
	if h.members == nil {
		return ""
	}

	settings, err := h.services.Settings().Get(ctx, guildID)
	if err != nil {
		h.logger.Warn("Failed to load settings for build roles", zap.Error(err), zap.Uint64("guildID", uint64(guildID)))
		return buildRolesWarning
	}

	if !settings.HasBuildRoles() {
		return ""
	}

	failed := false
	target := settings.BuildRoleID(build)

	for _, other := range enum.BuildTypeValues() {
		roleID := settings.BuildRoleID(other)
		if roleID == 0 || roleID == target {
			continue
		}

		if err := h.members.RevokeRole(ctx, guildID, memberID, roleID); err != nil {
			failed = true
			h.logger.Warn("Failed to remove build role",
				zap.Error(err),
				zap.Uint64("guildID", uint64(guildID)),
				zap.Uint64("memberID", uint64(memberID)),
				zap.Uint64("roleID", uint64(roleID)))
		}
	}

	if target != 0 {
		if err := h.members.GrantRole(ctx, guildID, memberID, target); err != nil {
			failed = true
			h.logger.Warn("Failed to add build role",
				zap.Error(err),
				zap.Uint64("guildID", uint64(guildID)),
				zap.Uint64("memberID", uint64(memberID)),
				zap.Uint64("roleID", uint64(target)))
		}
	}

	if failed {
		return buildRolesWarning
	}

	return ""
}

// syncNickname sets the member's server nickname to their in-game name.
func (h *handlers) syncNickname(ctx context.Context, guildID, memberID snowflake.ID, name string) string {
	if h.members == nil {
		return ""
	}

	if err := h.members.SetNickname(ctx, guildID, memberID, name); err != nil {
		h.logger.Warn("Failed to update nickname",
			zap.Error(err),
			zap.Uint64("guildID", uint64(guildID)),
			zap.Uint64("memberID", uint64(memberID)))

		return nicknameWarning
	}

	return "\nServer nickname updated."
}
