package link

import (
	"encoding/json"

	"github.com/goldbox/relay/internal/frames"
	"github.com/goldbox/relay/pkg/models"
)

// settingsFromWire converts a settings_sync frame's raw payload into a
// validated Settings bundle. Numeric fields arrive as json.Number (the wire
// format tolerates both a bare number and a quoted string, per spec.md §6);
// a field that is absent, unparseable, or out of range is replaced with its
// declared default at this boundary, never propagated further (spec.md §3).
func settingsFromWire(raw frames.RawSettings) models.Settings {
	defaults := models.DefaultSettings()

	settings := models.Settings{
		General:  familyFromWire(raw.General, defaults.General),
		Tactical: familyFromWire(raw.Tactical, defaults.Tactical),
		MaximumMessageContext: models.ValidateNumeric(
			intOrDefault(raw.MaximumMessageContext, defaults.MaximumMessageContext),
			models.MinMaximumMessageContext, models.MaxMaximumMessageContext, models.DefaultMaximumMessageContext,
		),
		AIRole: raw.AIRole,
	}
	if settings.AIRole == "" {
		settings.AIRole = defaults.AIRole
	}

	switch models.ChatProcessingMode(raw.ChatProcessingMode) {
	case models.ChatProcessingGeneral, models.ChatProcessingTactical:
		settings.ChatProcessingMode = models.ChatProcessingMode(raw.ChatProcessingMode)
	default:
		// Left empty rather than defaulted: Settings.ResolveFamily treats
		// an unset mode as "detect from combat state", per spec.md §9's
		// explicit-setting-or-detect rule.
		settings.ChatProcessingMode = ""
	}

	return settings
}

func familyFromWire(raw frames.RawLLMFamily, defaultFamily models.LLMFamilyConfig) models.LLMFamilyConfig {
	family := models.LLMFamilyConfig{
		Provider:      raw.Provider,
		Model:         raw.Model,
		BaseURL:       raw.BaseURL,
		APIVersion:    raw.APIVersion,
		CustomHeaders: raw.CustomHeaders,
		TimeoutSec: models.ValidateNumeric(
			intOrDefault(raw.TimeoutSec, defaultFamily.TimeoutSec),
			models.MinTimeoutSec, models.MaxTimeoutSec, models.DefaultTimeoutSec,
		),
		MaxRetries: models.ValidateNumeric(
			intOrDefault(raw.MaxRetries, defaultFamily.MaxRetries),
			models.MinMaxRetries, models.MaxMaxRetries, models.DefaultMaxRetries,
		),
	}
	if family.Provider == "" {
		family.Provider = defaultFamily.Provider
	}
	if family.Model == "" {
		family.Model = defaultFamily.Model
	}
	return family
}

func intOrDefault(n json.Number, def int) int {
	if n == "" {
		return def
	}
	v, err := n.Int64()
	if err != nil {
		return def
	}
	return int(v)
}
