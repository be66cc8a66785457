package toolexec

import (
	"context"
	"encoding/json"

	"github.com/goldbox/relay/internal/frames"
	"github.com/goldbox/relay/pkg/models"
)

type getMessageHistoryArgs struct {
	Count int `json:"count"`
}

// getMessageHistory answers from local state directly; it never touches
// PendingCallRegistry. Delta filtering is explicitly bypassed here per
// spec.md §9 "Delta filtering is a mode, not a policy" — Collector.Recent
// always returns the plain window regardless of the outer turn's delta
// cursor.
func (e *Executor) getMessageHistory(clientID models.ClientId, raw json.RawMessage) result {
	var args getMessageHistoryArgs
	if err := unmarshalArgs(raw, &args); err != nil {
		return fail("invalid arguments: %v", err)
	}
	if args.Count < 1 || args.Count > 50 {
		return fail("count must be between 1 and 50")
	}
	entries := e.collector.Recent(clientID, args.Count)
	events := make([]models.CompactEvent, len(entries))
	for i, entry := range entries {
		events[i] = models.CompactEventFromEntry(entry)
	}
	return ok(map[string]any{"events": events})
}

type postMessageArgs struct {
	Messages []postMessageEntry `json:"messages"`
}

type postMessageEntry struct {
	Content       string   `json:"content"`
	Type          string   `json:"type,omitempty"`
	Speaker       string   `json:"speaker,omitempty"`
	Flavor        string   `json:"flavor,omitempty"`
	Flags         map[string]any `json:"flags,omitempty"`
	Whisper       []string `json:"whisper,omitempty"`
	CompactFormat bool     `json:"compact_format,omitempty"`
}

// postMessage sends each message as a fire-and-forget chat_response frame,
// sequentially, and reports per-message success. A send failure is treated
// as the link being closed, which is the one catastrophic failure spec.md
// §7 says should abort the turn rather than be absorbed into it.
func (e *Executor) postMessage(_ context.Context, clientID models.ClientId, raw json.RawMessage) (result, error) {
	var args postMessageArgs
	if err := unmarshalArgs(raw, &args); err != nil {
		return fail("invalid arguments: %v", err), nil
	}
	if len(args.Messages) == 0 {
		return fail("messages must be non-empty"), nil
	}

	sent := make([]map[string]any, 0, len(args.Messages))
	for _, msg := range args.Messages {
		if msg.Content == "" {
			sent = append(sent, map[string]any{"success": false, "error": "content is required"})
			continue
		}
		data, err := json.Marshal(frames.ChatResponseData{Message: frames.ChatResponseMessage{
			Content:       msg.Content,
			Type:          msg.Type,
			Speaker:       msg.Speaker,
			Flavor:        msg.Flavor,
			Whisper:       msg.Whisper,
			CompactFormat: msg.CompactFormat,
		}})
		if err != nil {
			return result{}, err
		}
		if err := e.sender.SendFrame(clientID, frames.Frame{Type: frames.TypeChatResponse, Data: data}); err != nil {
			return result{}, err
		}
		sent = append(sent, map[string]any{"success": true, "content": msg.Content})
	}
	return ok(map[string]any{"results": sent}), nil
}
