package maintenance

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goldbox/relay/pkg/models"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

type fakeStore struct {
	evictions int32
}

func (f *fakeStore) GetOrCreate(ctx context.Context, clientID models.ClientId, providerID, modelID string, requestedSessionID models.SessionId) (*models.Session, error) {
	return nil, nil
}
func (f *fakeStore) Append(ctx context.Context, sessionID models.SessionId, message models.ConversationMessage) error {
	return nil
}
func (f *fakeStore) AppendTurn(ctx context.Context, sessionID models.SessionId, messages ...models.ConversationMessage) error {
	return nil
}
func (f *fakeStore) History(ctx context.Context, sessionID models.SessionId, tokenBudget int) ([]models.ConversationMessage, error) {
	return nil, nil
}
func (f *fakeStore) SetLastContextTimestamp(ctx context.Context, sessionID models.SessionId, ts int64) error {
	return nil
}
func (f *fakeStore) GetLastContextTimestamp(ctx context.Context, sessionID models.SessionId) (*int64, error) {
	return nil, nil
}
func (f *fakeStore) AutoEvict(ctx context.Context) (int, error) {
	atomic.AddInt32(&f.evictions, 1)
	return 1, nil
}

func TestNew_RejectsInvalidExpression(t *testing.T) {
	if _, err := New(&fakeStore{}, "not a cron expression at all", nil); err == nil {
		t.Fatalf("expected an error for an invalid cron expression")
	}
}

func TestRunOnce_InvokesAutoEvict(t *testing.T) {
	store := &fakeStore{}
	s, err := New(store, "@every 1h", nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	s.RunOnce(context.Background())
	if atomic.LoadInt32(&store.evictions) != 1 {
		t.Fatalf("expected exactly one AutoEvict call, got %d", store.evictions)
	}
}

func TestStart_RunsSweepOnSchedule(t *testing.T) {
	store := &fakeStore{}
	s, err := New(store, "@every 1h", nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	clock := &fakeClock{t: time.Now()}
	s.now = clock.Now

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	// Advance the fake clock past the first scheduled run so the next
	// ticker tick finds it due.
	clock.Set(clock.Now().Add(2 * time.Hour))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if atomic.LoadInt32(&store.evictions) >= 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	s.Stop()

	if atomic.LoadInt32(&store.evictions) < 1 {
		t.Fatalf("expected at least one scheduled AutoEvict call")
	}
}
