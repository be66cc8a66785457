package pending

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goldbox/relay/pkg/models"
)

func TestRegisterResolveRoundTrip(t *testing.T) {
	r := New(nil)
	h := r.Register("client-1", models.AwaitDiceResult)

	go func() {
		r.Resolve(h.RequestID(), map[string]any{"total": 7})
	}()

	res, err := h.Await(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, ok := res.Data.(map[string]any)
	if !ok || data["total"] != 7 {
		t.Fatalf("unexpected result data: %#v", res.Data)
	}
}

func TestAwaitTimesOutWithoutResolve(t *testing.T) {
	r := New(nil)
	h := r.Register("client-1", models.AwaitCombatState)

	_, err := h.Await(context.Background(), 10*time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}

	// A request_id is removed on expiry; resolving after timeout is a
	// silently discarded no-op and must not panic.
	r.Resolve(h.RequestID(), "ignored")
}

func TestResolveExactlyOnce(t *testing.T) {
	r := New(nil)
	h := r.Register("client-1", models.AwaitDiceResult)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); r.Resolve(h.RequestID(), "first") }()
	go func() { defer wg.Done(); r.Resolve(h.RequestID(), "second") }()
	wg.Wait()

	res, err := h.Await(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Data != "first" && res.Data != "second" {
		t.Fatalf("unexpected winner: %#v", res.Data)
	}

	// The loser must not leave a dangling resolve delivered to a future
	// Register on the same (never reused) request_id; nothing more to
	// observe here beyond the single received value above.
}

func TestCancelAllForClient(t *testing.T) {
	r := New(nil)
	h1 := r.Register("client-1", models.AwaitDiceResult)
	h2 := r.Register("client-1", models.AwaitCombatState)
	h3 := r.Register("client-2", models.AwaitActorSheet)

	n := r.CancelAllForClient("client-1")
	if n != 2 {
		t.Fatalf("expected 2 cancellations, got %d", n)
	}

	for _, h := range []Handle{h1, h2} {
		_, err := h.Await(context.Background(), time.Second)
		if !errors.Is(err, ErrCancelled) {
			t.Fatalf("expected ErrCancelled, got %v", err)
		}
	}

	// client-2's call is untouched by client-1's teardown.
	go r.Resolve(h3.RequestID(), "ok")
	res, err := h3.Await(context.Background(), time.Second)
	if err != nil || res.Data != "ok" {
		t.Fatalf("expected client-2 call to resolve normally, got res=%#v err=%v", res, err)
	}
}

func TestAwaitRespectsContextCancellation(t *testing.T) {
	r := New(nil)
	h := r.Register("client-1", models.AwaitDiceResult)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.Await(ctx, time.Second)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
