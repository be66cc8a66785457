package sessionstore

import (
	"context"
	"testing"
	"time"

	"github.com/goldbox/relay/pkg/models"
)

func TestGetOrCreateReusesTripleAndSplitsByProviderModel(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Hour)

	s1, err := store.GetOrCreate(ctx, "client-1", "openai", "gpt-4o", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s1Again, err := store.GetOrCreate(ctx, "client-1", "openai", "gpt-4o", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s1.ID != s1Again.ID {
		t.Fatalf("expected reuse of session for same triple, got %s vs %s", s1.ID, s1Again.ID)
	}

	s2, err := store.GetOrCreate(ctx, "client-1", "anthropic", "claude-sonnet-4-20250514", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s2.ID == s1.ID {
		t.Fatalf("expected distinct session for a different (provider, model) pair")
	}
}

func TestGetOrCreateHonorsRequestedSessionID(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Hour)

	created, _ := store.GetOrCreate(ctx, "client-1", "openai", "gpt-4o", "")
	reused, err := store.GetOrCreate(ctx, "client-1", "ignored-provider", "ignored-model", created.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reused.ID != created.ID {
		t.Fatalf("expected requested_session_id to win over the triple lookup")
	}
}

func TestAppendTurnIsAtomic(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Hour)
	s, _ := store.GetOrCreate(ctx, "client-1", "openai", "gpt-4o", "")

	assistant := models.NewAssistantMessage("", []models.ToolCall{{ID: "tc-1", Name: "roll_dice"}})
	toolReply := models.NewToolMessage("tc-1", `{"success":true}`)

	if err := store.AppendTurn(ctx, s.ID, assistant, toolReply); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	history, err := store.History(ctx, s.ID, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(history) != 2 || !history[0].HasToolCalls() || history[1].ToolCallID != "tc-1" {
		t.Fatalf("expected assistant+tool pair appended together, got %#v", history)
	}
}

func TestAutoEvictDropsIdleSessions(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Millisecond)
	store.GetOrCreate(ctx, "client-1", "openai", "gpt-4o", "")

	time.Sleep(5 * time.Millisecond)

	n, err := store.AutoEvict(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 eviction, got %d", n)
	}
}

func TestLastContextTimestampRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Hour)
	s, _ := store.GetOrCreate(ctx, "client-1", "openai", "gpt-4o", "")

	if ts, _ := store.GetLastContextTimestamp(ctx, s.ID); ts != nil {
		t.Fatalf("expected nil timestamp initially")
	}

	if err := store.SetLastContextTimestamp(ctx, s.ID, 1500); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ts, err := store.GetLastContextTimestamp(ctx, s.ID)
	if err != nil || ts == nil || *ts != 1500 {
		t.Fatalf("expected 1500, got %v err=%v", ts, err)
	}
}
