package link

import (
	"encoding/json"
	"testing"

	"github.com/goldbox/relay/internal/frames"
	"github.com/goldbox/relay/pkg/models"
)

func TestSettingsFromWire_DefaultsOnEmpty(t *testing.T) {
	got := settingsFromWire(frames.RawSettings{})
	want := models.DefaultSettings()
	if got.General.Provider != want.General.Provider || got.General.Model != want.General.Model {
		t.Fatalf("general family = %+v, want defaults %+v", got.General, want.General)
	}
	if got.MaximumMessageContext != models.DefaultMaximumMessageContext {
		t.Fatalf("maximum_message_context = %d, want default", got.MaximumMessageContext)
	}
	if got.ChatProcessingMode != "" {
		t.Fatalf("expected unset chat_processing_mode to stay empty (detect), got %q", got.ChatProcessingMode)
	}
}

func TestSettingsFromWire_ClampsOutOfRangeNumerics(t *testing.T) {
	raw := frames.RawSettings{
		General: frames.RawLLMFamily{
			Provider:   "openai",
			Model:      "gpt-4o",
			TimeoutSec: json.Number("999999"),
			MaxRetries: json.Number("-1"),
		},
		MaximumMessageContext: json.Number("0"),
		ChatProcessingMode:    "tactical",
	}
	got := settingsFromWire(raw)
	if got.General.TimeoutSec != models.DefaultTimeoutSec {
		t.Fatalf("timeout_sec = %d, want default on out-of-range", got.General.TimeoutSec)
	}
	if got.General.MaxRetries != models.DefaultMaxRetries {
		t.Fatalf("max_retries = %d, want default on out-of-range", got.General.MaxRetries)
	}
	if got.MaximumMessageContext != models.DefaultMaximumMessageContext {
		t.Fatalf("maximum_message_context = %d, want default on out-of-range", got.MaximumMessageContext)
	}
	if got.ChatProcessingMode != models.ChatProcessingTactical {
		t.Fatalf("chat_processing_mode = %q, want explicit tactical preserved", got.ChatProcessingMode)
	}
}

func TestSettingsFromWire_AcceptsStringEncodedNumbers(t *testing.T) {
	raw := frames.RawSettings{
		General: frames.RawLLMFamily{
			Provider:   "openai",
			Model:      "gpt-4o",
			TimeoutSec: json.Number("45"),
			MaxRetries: json.Number("3"),
		},
	}
	got := settingsFromWire(raw)
	if got.General.TimeoutSec != 45 || got.General.MaxRetries != 3 {
		t.Fatalf("unexpected family: %+v", got.General)
	}
}
