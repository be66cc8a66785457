package ingress

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/goldbox/relay/internal/inbox"
	"github.com/goldbox/relay/pkg/models"
)

// buildSystemPrompt composes the first-turn system message spec.md §4.8
// describes: ai_role, a short description of the compact event schema the
// user turns will carry, whether combat is currently detected, and a fresh
// world summary if one has been reported.
func buildSystemPrompt(settings models.Settings, collector *inbox.Collector, clientID models.ClientId) string {
	aiRole := settings.AIRole
	if aiRole == "" {
		aiRole = "a helpful game master's assistant"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are %s for a tabletop role-playing session.\n\n", aiRole)
	b.WriteString("Event history is given to you as a compact JSON array. Each object has a ")
	b.WriteString("\"t\" field naming its kind: \"cm\" for a chat message (\"s\"/\"a\" speaker/alias, ")
	b.WriteString("\"c\" content), \"dr\" for a dice roll (\"f\" formula, \"tt\" total, \"r\" results), ")
	b.WriteString("\"cd\" for a chat card (\"n\" name, \"d\" description, \"acts\" actions), and ")
	b.WriteString("\"combat_context\" for the current encounter snapshot.\n\n")

	if detectInCombat(collector, clientID) {
		b.WriteString("An encounter is currently active.\n\n")
	}

	if world := collector.World(clientID); world != nil {
		if summary, err := json.Marshal(map[string]any{
			"session_info":     world.SessionInfo,
			"party_compendium": world.PartyCompendium,
			"active_scene":     world.ActiveScene,
		}); err == nil {
			fmt.Fprintf(&b, "Current world state: %s\n\n", summary)
		}
	}

	b.WriteString("Use the available tools to look up additional detail or to take actions in the game; do not invent game state you have not observed.")
	return b.String()
}

// detectInCombat reports whether clientID has an active encounter, the
// same signal models.Settings.ResolveFamily falls back to when no explicit
// chat_processing_mode is set. RequestIngress uses it to key a turn's
// Session under the family the orchestrator will actually issue the
// completion call against, so the two can never disagree (spec.md §9).
func detectInCombat(collector *inbox.Collector, clientID models.ClientId) bool {
	for _, enc := range collector.GetAllEncounters(clientID) {
		if enc.IsActive {
			return true
		}
	}
	return false
}
