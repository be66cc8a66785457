package sessionstore

import "github.com/goldbox/relay/pkg/models"

// charsPerToken is the character-based token estimation heuristic spec.md
// §4.3 calls acceptable: a rough divisor rather than a real tokenizer.
const charsPerToken = 4

// turnUnit is an atomic group of messages that must be kept or dropped
// together: either one ordinary message, or one tool_calls assistant
// message plus every tool reply it produced. This is the unit pruning
// works over so a trim can never split a tool_calls message from its
// replies (spec.md §4.3, §9 "pruning hazards").
type turnUnit struct {
	messages []models.ConversationMessage
	chars    int
}

func estimateChars(msg models.ConversationMessage) int {
	n := len(msg.Content)
	for _, tc := range msg.ToolCalls {
		n += len(tc.Name) + len(tc.Arguments) + len(tc.ID)
	}
	return n
}

func groupIntoUnits(messages []models.ConversationMessage) []turnUnit {
	var units []turnUnit
	i := 0
	for i < len(messages) {
		msg := messages[i]
		if msg.HasToolCalls() {
			unit := turnUnit{messages: []models.ConversationMessage{msg}, chars: estimateChars(msg)}
			pending := make(map[string]bool, len(msg.ToolCalls))
			for _, tc := range msg.ToolCalls {
				pending[tc.ID] = true
			}
			j := i + 1
			for j < len(messages) && len(pending) > 0 && messages[j].Role == models.RoleTool {
				unit.messages = append(unit.messages, messages[j])
				unit.chars += estimateChars(messages[j])
				delete(pending, messages[j].ToolCallID)
				j++
			}
			units = append(units, unit)
			i = j
			continue
		}
		units = append(units, turnUnit{messages: []models.ConversationMessage{msg}, chars: estimateChars(msg)})
		i++
	}
	return units
}

// PruneToBudget trims conv from the front, preserving a leading system
// message if present, to fit within tokenBudget (estimated via
// charsPerToken). Trimming operates on whole turnUnits so a tool_calls
// assistant message is never separated from its tool replies: if a unit
// cannot fit, the whole unit is dropped.
func PruneToBudget(conv []models.ConversationMessage, tokenBudget int) []models.ConversationMessage {
	if tokenBudget <= 0 || len(conv) == 0 {
		return conv
	}

	var system *models.ConversationMessage
	rest := conv
	if conv[0].Role == models.RoleSystem {
		s := conv[0]
		system = &s
		rest = conv[1:]
	}

	budgetChars := tokenBudget * charsPerToken
	if system != nil {
		budgetChars -= estimateChars(*system)
	}
	if budgetChars < 0 {
		budgetChars = 0
	}

	units := groupIntoUnits(rest)

	// Keep from the tail backward (most recent context first), dropping
	// whole units from the head once the budget is exhausted.
	kept := make([]turnUnit, 0, len(units))
	used := 0
	for i := len(units) - 1; i >= 0; i-- {
		if used+units[i].chars > budgetChars && len(kept) > 0 {
			break
		}
		kept = append(kept, units[i])
		used += units[i].chars
	}
	// kept was built tail-to-head; reverse to restore chronological order.
	for l, r := 0, len(kept)-1; l < r; l, r = l+1, r-1 {
		kept[l], kept[r] = kept[r], kept[l]
	}

	out := make([]models.ConversationMessage, 0, len(conv))
	if system != nil {
		out = append(out, *system)
	}
	for _, u := range kept {
		out = append(out, u.messages...)
	}
	return out
}
