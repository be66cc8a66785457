package orchestrator

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/goldbox/relay/pkg/models"
)

// toolCallResult pairs one tool_call with its decoded outcome, kept
// alongside its original index so results can be reassembled in
// tool_call.id order regardless of completion order (spec.md §5).
type toolCallResult struct {
	call    models.ToolCall
	content json.RawMessage
	err     error
}

// dispatchToolCalls runs every tool_call in calls concurrently against the
// executor and returns role:tool ConversationMessages in the same order as
// calls (tool_call.id order, per spec.md §4.6). A non-nil error means one
// handler hit a catastrophic infrastructure failure; the orchestrator
// aborts the turn in that case rather than feeding a partial result back
// to the model.
func (o *Orchestrator) dispatchToolCalls(ctx context.Context, clientID models.ClientId, calls []models.ToolCall) ([]models.ConversationMessage, error) {
	results := make([]toolCallResult, len(calls))

	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(idx int, tc models.ToolCall) {
			defer wg.Done()
			content, err := o.executor.Execute(ctx, clientID, tc)
			results[idx] = toolCallResult{call: tc, content: content, err: err}
		}(i, call)
	}
	wg.Wait()

	messages := make([]models.ConversationMessage, 0, len(calls))
	for _, r := range results {
		if r.err != nil {
			return nil, r.err
		}
		messages = append(messages, models.NewToolMessage(r.call.ID, string(r.content)))
	}
	return messages, nil
}
