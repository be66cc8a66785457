package models

// ChatProcessingMode selects which LLM family a turn should use when no
// explicit per-request override is given.
type ChatProcessingMode string

const (
	ChatProcessingGeneral  ChatProcessingMode = "general"
	ChatProcessingTactical ChatProcessingMode = "tactical"
)

// LLMFamilyConfig is one named LLM family (general or tactical) inside the
// Settings bundle: provider/model selection plus the per-call knobs
// ProviderGateway needs to resolve a completion request.
type LLMFamilyConfig struct {
	Provider      string
	Model         string
	BaseURL       string
	APIVersion    string
	TimeoutSec    int
	MaxRetries    int
	CustomHeaders map[string]string
}

// Settings is the validated value bundle read once per turn. Numeric fields
// are range-checked at the boundary where they are set; out-of-range values
// are rejected in favor of the field's declared default, never propagated.
type Settings struct {
	General              LLMFamilyConfig
	Tactical             LLMFamilyConfig
	MaximumMessageContext int
	AIRole               string
	ChatProcessingMode   ChatProcessingMode
}

const (
	DefaultMaximumMessageContext = 20
	DefaultTimeoutSec            = 30
	DefaultMaxRetries            = 2
	MinMaximumMessageContext     = 1
	MaxMaximumMessageContext     = 200
	MinTimeoutSec                = 1
	MaxTimeoutSec                = 300
	MinMaxRetries                = 0
	MaxMaxRetries                = 5
)

// DefaultSettings returns the fallback bundle used when a field is missing
// or fails range validation. ChatProcessingMode is left empty, so
// ResolveFamily detects the family from combat state.
func DefaultSettings() Settings {
	return Settings{
		General: LLMFamilyConfig{
			Provider:   "openai",
			Model:      "gpt-4o",
			TimeoutSec: DefaultTimeoutSec,
			MaxRetries: DefaultMaxRetries,
		},
		Tactical: LLMFamilyConfig{
			Provider:   "anthropic",
			Model:      "claude-sonnet-4-20250514",
			TimeoutSec: DefaultTimeoutSec,
			MaxRetries: DefaultMaxRetries,
		},
		MaximumMessageContext: DefaultMaximumMessageContext,
		AIRole:                "a helpful game master's assistant",
	}
}

// ResolveFamily picks the explicit chat_processing_mode if the caller set
// one, otherwise falls back to whether the turn's assembled context shows
// an active encounter. RequestIngress and the orchestrator both call this
// so the family a session is keyed under can never diverge from the family
// the completion call is actually issued against (spec.md §9).
func (s Settings) ResolveFamily(inCombat bool) LLMFamilyConfig {
	mode := s.ChatProcessingMode
	if mode == "" {
		if inCombat {
			mode = ChatProcessingTactical
		} else {
			mode = ChatProcessingGeneral
		}
	}
	if mode == ChatProcessingTactical {
		return s.Tactical
	}
	return s.General
}

// ValidateNumeric clamps a candidate field to its declared range, returning
// the default for that field when the candidate is out of range. This is
// the boundary substitution spec.md §3 requires: invalid values never reach
// a component, the default does.
func ValidateNumeric(value, min, max, defaultValue int) int {
	if value < min || value > max {
		return defaultValue
	}
	return value
}
