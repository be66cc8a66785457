package ingress

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/goldbox/relay/internal/frames"
	"github.com/goldbox/relay/internal/inbox"
	"github.com/goldbox/relay/internal/orchestrator"
	"github.com/goldbox/relay/internal/sessionstore"
	"github.com/goldbox/relay/pkg/models"
)

type fakeOrchestrator struct {
	mu    sync.Mutex
	calls []orchestrator.TurnRequest
	done  chan struct{}
}

func newFakeOrchestrator() *fakeOrchestrator {
	return &fakeOrchestrator{done: make(chan struct{}, 8)}
}

func (f *fakeOrchestrator) Run(ctx context.Context, req orchestrator.TurnRequest) (orchestrator.TurnResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	f.done <- struct{}{}
	return orchestrator.TurnResult{SessionID: req.SessionID, Success: true, Iterations: 1}, nil
}

func TestHandleChatRequest_RejectsMissingContextCount(t *testing.T) {
	store := sessionstore.NewMemoryStore(time.Hour)
	collector := inbox.New(inbox.DefaultLimits())
	orch := newFakeOrchestrator()
	ing := New(store, collector, orch, nil)

	err := ing.HandleChatRequest(context.Background(), "client-1", models.DefaultSettings(), frames.ChatRequestData{})
	if err == nil {
		t.Fatal("expected an error for missing context_count")
	}
}

func TestHandleChatRequest_SeedsSystemPromptOnFirstTurn(t *testing.T) {
	store := sessionstore.NewMemoryStore(time.Hour)
	collector := inbox.New(inbox.DefaultLimits())
	orch := newFakeOrchestrator()
	ing := New(store, collector, orch, nil)

	err := ing.HandleChatRequest(context.Background(), "client-1", models.DefaultSettings(), frames.ChatRequestData{ContextCount: 10})
	if err != nil {
		t.Fatalf("HandleChatRequest: %v", err)
	}

	select {
	case <-orch.done:
	case <-time.After(time.Second):
		t.Fatal("orchestrator.Run was not launched")
	}

	orch.mu.Lock()
	defer orch.mu.Unlock()
	if len(orch.calls) != 1 {
		t.Fatalf("expected one orchestrator call, got %d", len(orch.calls))
	}
	sess, err := store.GetOrCreate(context.Background(), "client-1", "openai", "gpt-4o", orch.calls[0].SessionID)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if len(sess.Conversation) != 1 || sess.Conversation[0].Role != models.RoleSystem {
		t.Fatalf("expected a single leading system message, got %+v", sess.Conversation)
	}
}

func TestHandleChatRequest_DeduplicatesInlineMessagesByTimestamp(t *testing.T) {
	store := sessionstore.NewMemoryStore(time.Hour)
	collector := inbox.New(inbox.DefaultLimits())
	orch := newFakeOrchestrator()
	ing := New(store, collector, orch, nil)

	base := time.Now().UnixMilli()
	collector.AppendChat("client-1", models.InboxEntry{
		Timestamp: base,
		Kind:      models.EntryKindChat,
		Payload:   map[string]any{"content": "already seen"},
	})

	err := ing.HandleChatRequest(context.Background(), "client-1", models.DefaultSettings(), frames.ChatRequestData{
		ContextCount: 10,
		Messages: []frames.ChatMessageData{
			{Content: "already seen", Timestamp: base},
			{Content: "brand new", Timestamp: base + 100},
		},
	})
	if err != nil {
		t.Fatalf("HandleChatRequest: %v", err)
	}
	<-orch.done

	entries := collector.Recent("client-1", 10)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries after dedup, got %d: %+v", len(entries), entries)
	}
}

func TestHandleChatRequest_KeysSessionUnderTacticalFamilyDuringCombat(t *testing.T) {
	store := sessionstore.NewMemoryStore(time.Hour)
	collector := inbox.New(inbox.DefaultLimits())
	orch := newFakeOrchestrator()
	ing := New(store, collector, orch, nil)

	collector.UpsertEncounter("client-1", models.EncounterState{
		EncounterID: "enc-1",
		IsActive:    true,
	})

	settings := models.DefaultSettings()
	err := ing.HandleChatRequest(context.Background(), "client-1", settings, frames.ChatRequestData{ContextCount: 10})
	if err != nil {
		t.Fatalf("HandleChatRequest: %v", err)
	}
	<-orch.done

	orch.mu.Lock()
	sessionID := orch.calls[0].SessionID
	orch.mu.Unlock()

	tactical, err := store.GetOrCreate(context.Background(), "client-1", settings.Tactical.Provider, settings.Tactical.Model, "")
	if err != nil {
		t.Fatalf("GetOrCreate tactical: %v", err)
	}
	if tactical.ID != sessionID {
		t.Fatalf("expected the in-combat turn to be keyed under the tactical-family session, got %s want %s", tactical.ID, sessionID)
	}

	general, err := store.GetOrCreate(context.Background(), "client-1", settings.General.Provider, settings.General.Model, "")
	if err != nil {
		t.Fatalf("GetOrCreate general: %v", err)
	}
	if general.ID == sessionID {
		t.Fatalf("general-family session must stay independent of the in-combat tactical session")
	}
}
