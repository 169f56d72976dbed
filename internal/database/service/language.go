package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/akguild/guildkeeper/internal/database/models"
	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"
	"golang.org/x/text/language"
)

// supportedLanguages lists the languages members can choose, in display order.
var supportedLanguages = []language.Tag{language.English, language.Arabic}

// languageNames maps common spelled-out names to language codes.
var languageNames = map[string]string{
	"english": "en",
	"arabic":  "ar",
	"عربي":    "ar",
	"العربية": "ar",
}

// SupportedLanguages returns the codes of the selectable languages.
func SupportedLanguages() []string {
	codes := make([]string, len(supportedLanguages))
	for i, tag := range supportedLanguages {
		codes[i] = tag.String()
	}

	return codes
}

// NormalizeLanguage turns user input such as "en-US" or "Arabic" into a supported base code.
func NormalizeLanguage(input string) (string, error) {
	input = strings.ToLower(strings.TrimSpace(input))
	if code, ok := languageNames[input]; ok {
		input = code
	}

	tag, err := language.Parse(input)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidLanguage, input)
	}

	base, _ := tag.Base()
	for _, supported := range supportedLanguages {
		if supportedBase, _ := supported.Base(); supportedBase == base {
			return supported.String(), nil
		}
	}

	return "", fmt.Errorf("%w: %q", ErrInvalidLanguage, input)
}

// LanguageService resolves and stores member language preferences.
type LanguageService struct {
	model    *models.LanguageModel
	settings *models.SettingsModel
	logger   *zap.Logger
}

// NewLanguage creates a new language service.
func NewLanguage(model *models.LanguageModel, settings *models.SettingsModel, logger *zap.Logger) *LanguageService {
	return &LanguageService{
		model:    model,
		settings: settings,
		logger:   logger.Named("language_service"),
	}
}

// Set stores a member's preferred language and returns the normalized code.
func (s *LanguageService) Set(ctx context.Context, guildID, memberID snowflake.ID, input string) (string, error) {
	code, err := NormalizeLanguage(input)
	if err != nil {
		return "", err
	}

	if err := s.model.Set(ctx, guildID, memberID, code); err != nil {
		return "", err
	}

	return code, nil
}

// Resolve returns the member's language, falling back to the guild default.
// The second result reports whether the member chose it explicitly.
func (s *LanguageService) Resolve(ctx context.Context, guildID, memberID snowflake.ID) (string, bool, error) {
	code, err := s.model.Get(ctx, guildID, memberID)
	if err != nil {
		return "", false, err
	}

	if code != "" {
		return code, true, nil
	}

	settings, err := s.settings.Get(ctx, guildID)
	if err != nil {
		return "", false, err
	}

	return settings.DefaultLanguage, false, nil
}
