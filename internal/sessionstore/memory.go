package sessionstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/goldbox/relay/pkg/models"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore is the in-memory SessionStore implementation, the default for
// local runs and tests.
type MemoryStore struct {
	mu          sync.RWMutex
	sessions    map[models.SessionId]*models.Session
	byTriple    map[string]models.SessionId
	idleTimeout time.Duration
	nowFunc     func() time.Time
}

// NewMemoryStore constructs an empty store. idleTimeout is the
// configuration knob spec.md §3 describes as "default: multi-hour".
func NewMemoryStore(idleTimeout time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions:    make(map[models.SessionId]*models.Session),
		byTriple:    make(map[string]models.SessionId),
		idleTimeout: idleTimeout,
		nowFunc:     time.Now,
	}
}

func tripleKey(clientID models.ClientId, providerID, modelID string) string {
	return fmt.Sprintf("%s\x00%s\x00%s", clientID, providerID, modelID)
}

func (m *MemoryStore) isExpired(s *models.Session, now time.Time) bool {
	return m.idleTimeout > 0 && now.Sub(s.LastActivityAt) > m.idleTimeout
}

func (m *MemoryStore) GetOrCreate(ctx context.Context, clientID models.ClientId, providerID, modelID string, requestedSessionID models.SessionId) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.nowFunc()

	if requestedSessionID != "" {
		if s, ok := m.sessions[requestedSessionID]; ok && s.ClientID == clientID && !m.isExpired(s, now) {
			s.LastActivityAt = now
			return s.Clone(), nil
		}
	}

	key := tripleKey(clientID, providerID, modelID)
	if id, ok := m.byTriple[key]; ok {
		if s, ok := m.sessions[id]; ok && !m.isExpired(s, now) {
			s.LastActivityAt = now
			return s.Clone(), nil
		}
		delete(m.byTriple, key)
	}

	session := &models.Session{
		ID:             models.SessionId(uuid.NewString()),
		ClientID:       clientID,
		ProviderID:     providerID,
		ModelID:        modelID,
		CreatedAt:      now,
		LastActivityAt: now,
	}
	m.sessions[session.ID] = session
	m.byTriple[key] = session.ID
	return session.Clone(), nil
}

func (m *MemoryStore) Append(ctx context.Context, sessionID models.SessionId, message models.ConversationMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	now := m.nowFunc()
	if m.isExpired(s, now) {
		return ErrSessionExpired
	}
	s.Conversation = append(s.Conversation, message.Clone())
	s.LastActivityAt = now
	return nil
}

// AppendTurn appends an assistant message and its matching tool-result
// messages as one atomic unit, so no independent append can interleave
// between an assistant's tool_calls and its replies (spec.md §5).
func (m *MemoryStore) AppendTurn(ctx context.Context, sessionID models.SessionId, messages ...models.ConversationMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	now := m.nowFunc()
	if m.isExpired(s, now) {
		return ErrSessionExpired
	}
	for _, msg := range messages {
		s.Conversation = append(s.Conversation, msg.Clone())
	}
	s.LastActivityAt = now
	return nil
}

func (m *MemoryStore) History(ctx context.Context, sessionID models.SessionId, tokenBudget int) ([]models.ConversationMessage, error) {
	m.mu.RLock()
	s, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}

	conv := make([]models.ConversationMessage, len(s.Conversation))
	for i, msg := range s.Conversation {
		conv[i] = msg.Clone()
	}

	if tokenBudget <= 0 {
		return conv, nil
	}
	return PruneToBudget(conv, tokenBudget), nil
}

func (m *MemoryStore) SetLastContextTimestamp(ctx context.Context, sessionID models.SessionId, ts int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	s.LastContextTimestamp = &ts
	return nil
}

func (m *MemoryStore) GetLastContextTimestamp(ctx context.Context, sessionID models.SessionId) (*int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if s.LastContextTimestamp == nil {
		return nil, nil
	}
	ts := *s.LastContextTimestamp
	return &ts, nil
}

func (m *MemoryStore) AutoEvict(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.nowFunc()
	evicted := 0
	for id, s := range m.sessions {
		if m.isExpired(s, now) {
			delete(m.sessions, id)
			delete(m.byTriple, tripleKey(s.ClientID, s.ProviderID, s.ModelID))
			evicted++
		}
	}
	return evicted, nil
}
