package orchestrator

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/goldbox/relay/internal/frames"
	"github.com/goldbox/relay/internal/inbox"
	"github.com/goldbox/relay/internal/sessionstore"
	"github.com/goldbox/relay/pkg/models"
)

type fakeSender struct {
	sent []frames.Frame
}

func (s *fakeSender) SendFrame(clientID models.ClientId, frame frames.Frame) error {
	s.sent = append(s.sent, frame)
	return nil
}

type scriptedGateway struct {
	calls   int
	replies []models.CompletionResult
	err     error
}

func (g *scriptedGateway) Complete(ctx context.Context, messages []models.ConversationMessage, cfg models.CompletionConfig, tools []models.ToolSchema) (models.CompletionResult, error) {
	if g.err != nil {
		return models.CompletionResult{}, g.err
	}
	if g.calls >= len(g.replies) {
		return g.replies[len(g.replies)-1], nil
	}
	r := g.replies[g.calls]
	g.calls++
	return r, nil
}

type stubExecutor struct {
	err error
}

func (e *stubExecutor) Execute(ctx context.Context, clientID models.ClientId, call models.ToolCall) (json.RawMessage, error) {
	if e.err != nil {
		return nil, e.err
	}
	return json.RawMessage(`{"success":true}`), nil
}

func newTestOrchestrator(t *testing.T, gw Gateway, ex Executor, cfg Config) (*Orchestrator, sessionstore.Store, *fakeSender, models.SessionId) {
	t.Helper()
	store := sessionstore.NewMemoryStore(time.Hour)
	collector := inbox.New(inbox.DefaultLimits())
	sess, err := store.GetOrCreate(context.Background(), "client-1", "openai", "gpt-4o", "")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if err := store.Append(context.Background(), sess.ID, models.NewSystemMessage("you are a game master")); err != nil {
		t.Fatalf("seed system message: %v", err)
	}
	sender := &fakeSender{}
	o := New(store, collector, gw, ex, sender, cfg, nil)
	return o, store, sender, sess.ID
}

func TestRun_TerminalWithoutToolCalls(t *testing.T) {
	gw := &scriptedGateway{replies: []models.CompletionResult{
		{Content: "hello there", FinishReason: models.FinishStop},
	}}
	o, store, sender, sessID := newTestOrchestrator(t, gw, &stubExecutor{}, Config{})

	result, err := o.Run(context.Background(), TurnRequest{SessionID: sessID, ClientID: "client-1", Settings: models.DefaultSettings(), ContextCount: 10})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Success || result.Partial || result.Iterations != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.FinalContent != "hello there" {
		t.Fatalf("content = %q", result.FinalContent)
	}
	if len(sender.sent) != 1 || sender.sent[0].Type != frames.TypeChatResponse {
		t.Fatalf("expected one chat_response frame sent, got %+v", sender.sent)
	}

	history, err := store.History(context.Background(), sessID, 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	// system + user + assistant
	if len(history) != 3 {
		t.Fatalf("history length = %d, want 3: %+v", len(history), history)
	}
}

func TestRun_ToolCallRoundTripThenTerminal(t *testing.T) {
	call := models.ToolCall{ID: "call-1", Name: string(models.ToolRollDice), Arguments: json.RawMessage(`{}`)}
	gw := &scriptedGateway{replies: []models.CompletionResult{
		{ToolCalls: []models.ToolCall{call}, FinishReason: models.FinishToolCalls},
		{Content: "you rolled well", FinishReason: models.FinishStop},
	}}
	o, store, _, sessID := newTestOrchestrator(t, gw, &stubExecutor{}, Config{})

	result, err := o.Run(context.Background(), TurnRequest{SessionID: sessID, ClientID: "client-1", Settings: models.DefaultSettings(), ContextCount: 10})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Success || result.Partial || result.Iterations != 2 {
		t.Fatalf("unexpected result: %+v", result)
	}

	history, err := store.History(context.Background(), sessID, 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	// system + user + assistant(tool_calls) + tool + assistant(final)
	if len(history) != 5 {
		t.Fatalf("history length = %d, want 5: %+v", len(history), history)
	}
	if history[3].Role != models.RoleTool || history[3].ToolCallID != "call-1" {
		t.Fatalf("tool message misplaced: %+v", history[3])
	}
}

func TestRun_ReachesStepBudgetStillExecutesFinalToolCalls(t *testing.T) {
	call := models.ToolCall{ID: "call-x", Name: string(models.ToolGetEncounter), Arguments: json.RawMessage(`{}`)}
	replies := make([]models.CompletionResult, 0, 10)
	for i := 0; i < 10; i++ {
		replies = append(replies, models.CompletionResult{ToolCalls: []models.ToolCall{call}, FinishReason: models.FinishToolCalls})
	}
	gw := &scriptedGateway{replies: replies}
	o, store, _, sessID := newTestOrchestrator(t, gw, &stubExecutor{}, Config{MaxIterations: 10})

	result, err := o.Run(context.Background(), TurnRequest{SessionID: sessID, ClientID: "client-1", Settings: models.DefaultSettings(), ContextCount: 10})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Success || !result.Partial || !result.ReachedLimit || result.Iterations != 10 {
		t.Fatalf("unexpected result: %+v", result)
	}

	history, err := store.History(context.Background(), sessID, 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	// system + user + 10 * (assistant + tool)
	if len(history) != 2+20 {
		t.Fatalf("history length = %d, want 22: %+v", len(history), history)
	}
}

func TestRun_ToolDispatchTransportFailureAbortsTurn(t *testing.T) {
	call := models.ToolCall{ID: "call-1", Name: string(models.ToolRollDice), Arguments: json.RawMessage(`{}`)}
	gw := &scriptedGateway{replies: []models.CompletionResult{
		{ToolCalls: []models.ToolCall{call}, FinishReason: models.FinishToolCalls},
	}}
	o, store, _, sessID := newTestOrchestrator(t, gw, &stubExecutor{err: sessionstore.ErrSessionExpired}, Config{})

	result, err := o.Run(context.Background(), TurnRequest{SessionID: sessID, ClientID: "client-1", Settings: models.DefaultSettings(), ContextCount: 10})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Success || result.Error == "" {
		t.Fatalf("expected an absorbed failure result, got %+v", result)
	}

	history, err := store.History(context.Background(), sessID, 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	// system + user + assistant(tool_calls); no tool message appended
	if len(history) != 3 {
		t.Fatalf("history length = %d, want 3: %+v", len(history), history)
	}
}

