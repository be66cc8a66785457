package models

import "time"

// Session is the stable per-client conversation state a SessionStore owns
// exclusively: one (client, provider, model) conversation thread with its
// delta cursor.
type Session struct {
	ID                  SessionId
	ClientID            ClientId
	ProviderID          string
	ModelID             string
	CreatedAt           time.Time
	LastActivityAt      time.Time
	LastContextTimestamp *int64 // nullable: no turn has incorporated an event yet
	Conversation        []ConversationMessage
}

// Clone returns a deep copy of the session, including its conversation, so
// a reader never holds an alias into store-owned memory.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	clone := *s
	if s.LastContextTimestamp != nil {
		ts := *s.LastContextTimestamp
		clone.LastContextTimestamp = &ts
	}
	if len(s.Conversation) > 0 {
		clone.Conversation = make([]ConversationMessage, len(s.Conversation))
		for i, msg := range s.Conversation {
			clone.Conversation[i] = msg.Clone()
		}
	}
	return &clone
}
