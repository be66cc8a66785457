package models

import "encoding/json"

// CompactEvent is the short-keyed JSON shape shown to the LLM for chat,
// roll, card, and combat-context history (spec.md §6 "Compact event
// schema"). Short keys save tokens; omitempty keeps each event minimal.
type CompactEvent struct {
	Type    string  `json:"t"`
	Time    int64   `json:"ts,omitempty"`
	Speaker string  `json:"s,omitempty"`
	Alias   string  `json:"a,omitempty"`

	// dice roll
	Formula string `json:"f,omitempty"`
	Total   any    `json:"tt,omitempty"`
	Results []int  `json:"r,omitempty"`
	Flavor  string `json:"ft,omitempty"`

	// chat message
	Content string `json:"c,omitempty"`

	// chat card
	Name        string   `json:"n,omitempty"`
	Description string   `json:"d,omitempty"`
	Actions     []string `json:"acts,omitempty"`

	// combat context; nested raw to avoid double-encoding the payload map
	CombatContext json.RawMessage `json:"combat_context,omitempty"`
}

const (
	CompactEventDiceRoll      = "dr"
	CompactEventChatMessage   = "cm"
	CompactEventChatCard      = "cd"
	CompactEventCombatContext = "combat_context"
)

// CompactEventFromEntry renders one InboxEntry as its compact-event form,
// keyed by the entry's kind. Payload fields are read defensively since the
// collector treats payloads as an open map.
func CompactEventFromEntry(entry InboxEntry) CompactEvent {
	switch entry.Kind {
	case EntryKindDiceRoll:
		return CompactEvent{
			Type:    CompactEventDiceRoll,
			Time:    entry.Timestamp,
			Speaker: stringField(entry.Payload, "speaker"),
			Alias:   stringField(entry.Payload, "alias"),
			Formula: stringField(entry.Payload, "formula"),
			Total:   entry.Payload["total"],
			Results: intSliceField(entry.Payload, "results"),
			Flavor:  stringField(entry.Payload, "flavor"),
		}
	case EntryKindCard:
		// Cards from chat_message frames carry card_name and content.
		name := stringField(entry.Payload, "name")
		if name == "" {
			name = stringField(entry.Payload, "card_name")
		}
		description := stringField(entry.Payload, "description")
		if description == "" {
			description = stringField(entry.Payload, "content")
		}
		return CompactEvent{
			Type:        CompactEventChatCard,
			Time:        entry.Timestamp,
			Name:        name,
			Description: description,
			Actions:     stringSliceField(entry.Payload, "actions"),
		}
	default:
		return CompactEvent{
			Type:    CompactEventChatMessage,
			Time:    entry.Timestamp,
			Speaker: stringField(entry.Payload, "speaker"),
			Alias:   stringField(entry.Payload, "alias"),
			Content: stringField(entry.Payload, "content"),
		}
	}
}

// CompactEventFromEncounter renders an EncounterState as a combat_context
// compact event, the shape spec.md §6 describes for combat snapshots.
func CompactEventFromEncounter(enc *EncounterState) CompactEvent {
	if enc == nil {
		return CompactEvent{Type: CompactEventCombatContext}
	}
	raw, _ := json.Marshal(map[string]any{
		"encounter_id": enc.EncounterID,
		"is_active":    enc.IsActive,
		"round":        enc.Round,
		"turn":         enc.Turn,
		"combatants":   enc.Combatants,
	})
	return CompactEvent{
		Type:          CompactEventCombatContext,
		Time:          enc.LastUpdated,
		CombatContext: raw,
	}
}

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func stringSliceField(m map[string]any, key string) []string {
	if m == nil {
		return nil
	}
	raw, ok := m[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func intSliceField(m map[string]any, key string) []int {
	if m == nil {
		return nil
	}
	switch v := m[key].(type) {
	case []int:
		return v
	case []any:
		out := make([]int, 0, len(v))
		for _, item := range v {
			switch n := item.(type) {
			case int:
				out = append(out, n)
			case float64:
				out = append(out, int(n))
			}
		}
		return out
	default:
		return nil
	}
}
