package orchestrator

import (
	"encoding/json"
	"fmt"

	"github.com/goldbox/relay/internal/inbox"
	"github.com/goldbox/relay/pkg/models"
)

// assembledContext is the intermediate product of AssembleContext: the new
// user message content plus the timestamp under which it should be
// recorded as the session's new delta cursor.
type assembledContext struct {
	content       string
	newestTimestamp int64
	inCombat      bool
}

// buildUserContext composes the compact-JSON event block spec.md §4.6 step
// 3 describes: the delta of chat/roll events since lastContextTimestamp,
// plus the current encounter snapshots, as one array of compact events.
// When lastContextTimestamp is nil (first turn), it falls back to the last
// contextCount events instead of a delta, since there is no cursor yet.
func buildUserContext(collector *inbox.Collector, clientID models.ClientId, lastContextTimestamp *int64, contextCount int) assembledContext {
	var entries []models.InboxEntry
	if lastContextTimestamp != nil {
		entries = collector.Since(clientID, *lastContextTimestamp)
	} else {
		entries = collector.Recent(clientID, contextCount)
	}

	events := make([]models.CompactEvent, 0, len(entries))
	newest := int64(0)
	if lastContextTimestamp != nil {
		newest = *lastContextTimestamp
	}
	for _, e := range entries {
		events = append(events, models.CompactEventFromEntry(e))
		if e.Timestamp > newest {
			newest = e.Timestamp
		}
	}

	inCombat := false
	for _, enc := range collector.GetAllEncounters(clientID) {
		if !enc.IsActive {
			continue
		}
		inCombat = true
		events = append(events, models.CompactEventFromEncounter(enc))
		if enc.LastUpdated > newest {
			newest = enc.LastUpdated
		}
	}

	payload, _ := json.Marshal(events)
	return assembledContext{content: string(payload), newestTimestamp: newest, inCombat: inCombat}
}

// buildInstructionSuffix generates the dynamic role-/combat-aware
// instruction text spec.md §4.6 step 5 appends to the newest user message.
func buildInstructionSuffix(aiRole string, inCombat bool) string {
	if aiRole == "" {
		aiRole = "a helpful game master's assistant"
	}
	if inCombat {
		return fmt.Sprintf("\n\nYou are %s. An encounter is currently active; keep responses combat-focused and concise, and prefer the combat tools when the player's intent concerns initiative, turns, or token state.", aiRole)
	}
	return fmt.Sprintf("\n\nYou are %s. Respond based on the events above.", aiRole)
}

// buildGameDeltaPreamble renders a pending GameDelta as the "Recent
// changes" text spec.md §4.6 step 4 injects into the system context. It is
// never persisted into the session's stored system message (that would
// violate "a conversation begins with at most one system message" once
// more changes arrive); instead the orchestrator folds it into the
// call-time message list for this turn only, see withGameDeltaPreamble in
// orchestrator.go.
func buildGameDeltaPreamble(delta *models.GameDelta) string {
	if delta == nil || delta.Summary == "" {
		return ""
	}
	return fmt.Sprintf("Recent changes:\n%s", delta.Summary)
}
