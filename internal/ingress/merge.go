package ingress

import (
	"github.com/goldbox/relay/internal/frames"
	"github.com/goldbox/relay/internal/inbox"
	"github.com/goldbox/relay/pkg/models"
)

// mergeInlineMessages appends messages carried inline on a chat_request
// frame into the client's chat log, skipping any whose timestamp already
// exists — a chat_request frequently re-sends messages the frontend has
// already pushed individually as chat_message frames (spec.md §4.8).
func mergeInlineMessages(collector *inbox.Collector, clientID models.ClientId, messages []frames.ChatMessageData) {
	if len(messages) == 0 {
		return
	}

	existing := collector.Since(clientID, 0)
	seen := make(map[int64]struct{}, len(existing))
	for _, e := range existing {
		seen[e.Timestamp] = struct{}{}
	}

	for _, m := range messages {
		if m.Timestamp != 0 {
			if _, dup := seen[m.Timestamp]; dup {
				continue
			}
		}
		kind := models.EntryKindChat
		if m.IsCard {
			kind = models.EntryKindCard
		}
		collector.AppendChat(clientID, models.InboxEntry{
			Timestamp: m.Timestamp,
			Kind:      kind,
			Payload: map[string]any{
				"content":   m.Content,
				"speaker":   m.Speaker,
				"alias":     m.Alias,
				"flavor":    m.Flavor,
				"card_name": m.CardName,
			},
		})
	}
}
