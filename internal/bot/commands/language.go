package commands

import (
	"context"
	"strings"

	"github.com/akguild/guildkeeper/internal/database/service"
)

func (h *handlers) registerLanguage(r *Registry) {
	languageOption := Option{
		Name:        "language",
		Description: "Language code, e.g. " + strings.Join(service.SupportedLanguages(), " or "),
		Required:    true,
		Choices:     service.SupportedLanguages(),
	}

	Register(r, Spec{
		Name:        "setlanguage",
		Description: "Set your preferred language",
		Options:     []Option{languageOption},
	}, func(inv *Invocation) (string, error) {
		return inv.RequireString("language")
	}, h.setLanguage)

	Register(r, Spec{
		Name:        "mylanguage",
		Description: "Show your preferred language",
	}, noRequest, h.myLanguage)

	Register(r, Spec{
		Name:        "setserverlanguage",
		Description: "Set the default language of the server",
		AdminOnly:   true,
		Options:     []Option{languageOption},
	}, func(inv *Invocation) (string, error) {
		return inv.RequireString("language")
	}, h.setServerLanguage)
}

func (h *handlers) setLanguage(ctx context.Context, inv *Invocation, input string) (*Result, error) {
	code, err := h.services.Language().Set(ctx, inv.GuildID, inv.MemberID, input)
	if err != nil {
		return nil, err
	}

	return reply("✅ Language set to `%s`.", code), nil
}

func (h *handlers) myLanguage(ctx context.Context, inv *Invocation, _ struct{}) (*Result, error) {
	code, explicit, err := h.services.Language().Resolve(ctx, inv.GuildID, inv.MemberID)
	if err != nil {
		return nil, err
	}

	if !explicit {
		return reply("Your language is `%s` (server default).", code), nil
	}

	return reply("Your language is `%s`.", code), nil
}

func (h *handlers) setServerLanguage(ctx context.Context, inv *Invocation, input string) (*Result, error) {
	settings, err := h.services.Settings().SetDefaultLanguage(ctx, inv.GuildID, input)
	if err != nil {
		return nil, err
	}

	return reply("✅ Server language set to `%s`.", settings.DefaultLanguage), nil
}
