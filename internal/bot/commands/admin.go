package commands

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

func (h *handlers) registerAdmin(r *Registry) {
	Register(r, Spec{
		Name:        "clearalldata",
		Description: "Delete every profile, poll, request and setting of this server",
		AdminOnly:   true,
		Options: []Option{{
			Name: "confirm", Description: "Set to true to confirm", Kind: OptionBoolean, Required: true,
		}},
	}, func(inv *Invocation) (bool, error) {
		return inv.Bool("confirm", false)
	}, h.clearAllData)

	Register(r, Spec{
		Name:        "help",
		Description: "Show all available commands",
	}, noRequest, func(_ context.Context, inv *Invocation, _ struct{}) (*Result, error) {
		return reply("%s", helpText(r.Specs(), inv.IsAdmin)), nil
	})
}

// helpText lists member commands with their descriptions. Admins also get the
// names of the admin commands.
func helpText(specs []Spec, isAdmin bool) string {
	var (
		b          strings.Builder
		adminNames []string
	)

	b.WriteString("📖 **Commands**")

	for _, spec := range specs {
		if spec.AdminOnly {
			adminNames = append(adminNames, "`/"+spec.Name+"`")
			continue
		}

		fmt.Fprintf(&b, "\n`/%s` %s", spec.Name, spec.Description)
	}

	if isAdmin && len(adminNames) > 0 {
		fmt.Fprintf(&b, "\n\n🛠️ **Admin commands**\n%s", strings.Join(adminNames, ", "))
	}

	return b.String()
}

func (h *handlers) clearAllData(ctx context.Context, inv *Invocation, confirmed bool) (*Result, error) {
	if !confirmed {
		return nil, fmt.Errorf("%w: set confirm to true to delete all data", ErrInvalidOption)
	}

	if err := h.services.Guild().ClearAll(ctx, inv.GuildID); err != nil {
		return nil, err
	}

	h.logger.Warn("Guild data cleared",
		zap.Uint64("guildID", uint64(inv.GuildID)),
		zap.Uint64("clearedBy", uint64(inv.MemberID)))

	return reply("✅ All data of this server was deleted."), nil
}
