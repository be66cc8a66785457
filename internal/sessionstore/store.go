// Package sessionstore implements the SessionStore (C3): conversation id to
// {client, provider, model, conversation history, timestamps}, evicted on
// inactivity. MemoryStore applies a locking and clone-on-read/write
// discipline so a caller never observes or mutates another goroutine's
// in-progress history.
package sessionstore

import (
	"context"
	"errors"

	"github.com/goldbox/relay/pkg/models"
)

// ErrSessionNotFound is returned by operations addressed at an unknown or
// evicted session id. GetOrCreate never returns it: an unknown requested id
// falls through to the triple lookup or a new session.
var ErrSessionNotFound = errors.New("session not found")

// ErrSessionExpired is the append-time sentinel distinguishing "never
// existed" from "existed but timed out between lookup and append".
var ErrSessionExpired = errors.New("session expired")

// Store is the SessionStore contract (C3).
type Store interface {
	// GetOrCreate resolves requestedSessionID first if it belongs to
	// clientID and is not expired; otherwise reuses a live session for the
	// (clientID, providerID, modelID) triple; otherwise creates new.
	GetOrCreate(ctx context.Context, clientID models.ClientId, providerID, modelID string, requestedSessionID models.SessionId) (*models.Session, error)

	// Append adds message to the session's conversation. Returns
	// ErrSessionNotFound for an unknown or evicted id, and ErrSessionExpired
	// if the session has gone idle past the timeout but is not yet evicted.
	Append(ctx context.Context, sessionID models.SessionId, message models.ConversationMessage) error

	// AppendTurn appends one or more messages as a single atomic unit, so
	// an assistant's tool_calls message and its tool replies can never be
	// interleaved by an independent append (spec.md §5).
	AppendTurn(ctx context.Context, sessionID models.SessionId, messages ...models.ConversationMessage) error

	// History returns the stored conversation, pruned from the front to
	// fit tokenBudget (0 means unbounded) while preserving the leading
	// system message and the assistant/tool pairing invariant.
	History(ctx context.Context, sessionID models.SessionId, tokenBudget int) ([]models.ConversationMessage, error)

	SetLastContextTimestamp(ctx context.Context, sessionID models.SessionId, ts int64) error
	GetLastContextTimestamp(ctx context.Context, sessionID models.SessionId) (*int64, error)

	// AutoEvict drops sessions idle beyond the configured timeout and
	// returns how many were removed.
	AutoEvict(ctx context.Context) (int, error)
}
