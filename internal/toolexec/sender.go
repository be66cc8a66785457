package toolexec

import (
	"github.com/goldbox/relay/internal/frames"
	"github.com/goldbox/relay/pkg/models"
)

// Sender delivers an outbound frame to one client's ClientLink. It is the
// interface boundary between ToolExecutor (C5) and ClientLink (C7) spec.md
// §2 describes as a dependency; the concrete implementation lives in
// package link so this package never imports it.
type Sender interface {
	SendFrame(clientID models.ClientId, frame frames.Frame) error
}

// ErrClientNotConnected is returned by a Sender when no live link exists
// for the given client. Handlers treat this as the "link closed" case
// spec.md §7 names as the one catastrophic tool-infrastructure failure
// that aborts a turn rather than being absorbed into the conversation.
var ErrClientNotConnected = errClientNotConnected{}

type errClientNotConnected struct{}

func (errClientNotConnected) Error() string { return "client not connected" }
