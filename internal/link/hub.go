// Package link implements ClientLink (C7): one WebSocket connection per
// frontend client, demultiplexing inbound typed frames to MessageCollector
// or PendingCallRegistry and serializing outbound frames from ToolExecutor
// and TurnOrchestrator. Generalized from a req/res/event JSON-RPC-ish
// protocol to spec.md §6's flat typed-frame catalog.
package link

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/goldbox/relay/internal/frames"
	"github.com/goldbox/relay/internal/inbox"
	"github.com/goldbox/relay/internal/ingress"
	"github.com/goldbox/relay/internal/pending"
	"github.com/goldbox/relay/internal/toolexec"
	"github.com/goldbox/relay/pkg/models"
)

// DefaultGraceWindow is how long a ClientInbox survives after its
// ClientLink closes, per spec.md §3's lifecycle note, before being torn
// down — long enough to absorb a quick reconnect.
const DefaultGraceWindow = 2 * time.Minute

var _ toolexec.Sender = (*Hub)(nil)

// Hub tracks the live Link for each connected client and is the concrete
// Sender ToolExecutor and TurnOrchestrator deliver outbound frames through.
type Hub struct {
	mu        sync.Mutex
	links     map[models.ClientId]*Link
	evictions map[models.ClientId]*time.Timer

	collector   *inbox.Collector
	pending     *pending.Registry
	ingress     *ingress.Ingress
	graceWindow time.Duration
	upgrader    websocket.Upgrader
	logger      *slog.Logger
}

// NewHub constructs a Hub. graceWindow <= 0 uses DefaultGraceWindow.
func NewHub(collector *inbox.Collector, registry *pending.Registry, ing *ingress.Ingress, graceWindow time.Duration, logger *slog.Logger) *Hub {
	if graceWindow <= 0 {
		graceWindow = DefaultGraceWindow
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		links:       make(map[models.ClientId]*Link),
		evictions:   make(map[models.ClientId]*time.Timer),
		collector:   collector,
		pending:     registry,
		ingress:     ing,
		graceWindow: graceWindow,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  8192,
			WriteBufferSize: 8192,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

// ServeHTTP upgrades one HTTP request to a WebSocket connection and runs
// its Link to completion. Each connection gets its own goroutine pair
// (read loop, write loop); ServeHTTP itself blocks until the connection
// closes, matching net/http's per-request handler contract.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	newLink(h, conn).run()
}

// SendFrame implements toolexec.Sender: route an outbound frame to the
// live Link for clientID, or report it as unreachable.
func (h *Hub) SendFrame(clientID models.ClientId, frame frames.Frame) error {
	h.mu.Lock()
	l, ok := h.links[clientID]
	h.mu.Unlock()
	if !ok {
		return toolexec.ErrClientNotConnected
	}
	return l.enqueue(frame)
}

// SetIngress wires the RequestIngress a chat_request frame is handed to.
// Constructing the Hub (a Sender), the Executor, the Orchestrator, and the
// Ingress forms a cycle through interfaces — NewHub accepts nil and the
// caller wires ingress in after building the rest of the chain against the
// already-constructed Hub.
func (h *Hub) SetIngress(ing *ingress.Ingress) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ingress = ing
}

// tryRegister binds clientID to l, unless a live link for that client
// already exists. Spec.md §4.7 rejects a duplicate ClientId rather than
// reconnecting it: "No reconnect semantics are defined at this layer." A
// clientID freed by unregister (the prior link has fully closed) is not a
// duplicate and registers normally, cancelling any pending grace-window
// eviction for it.
func (h *Hub) tryRegister(clientID models.ClientId, l *Link) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, live := h.links[clientID]; live {
		return false
	}
	if timer, ok := h.evictions[clientID]; ok {
		timer.Stop()
		delete(h.evictions, clientID)
	}
	h.links[clientID] = l
	return true
}

// unregister cancels every PendingCall belonging to clientID immediately
// (spec.md §4.7: "cancel all PendingCalls bound to this client... so
// awaiting tool calls fail fast") and schedules the inbox's grace-window
// cleanup. It is a no-op if clientID has since been claimed by a newer Link
// (a reconnect raced with this close).
func (h *Hub) unregister(clientID models.ClientId, l *Link) {
	h.mu.Lock()
	if current, ok := h.links[clientID]; !ok || current != l {
		h.mu.Unlock()
		return
	}
	delete(h.links, clientID)
	h.evictions[clientID] = time.AfterFunc(h.graceWindow, func() {
		h.collector.Clear(clientID)
		h.mu.Lock()
		delete(h.evictions, clientID)
		h.mu.Unlock()
	})
	h.mu.Unlock()

	cancelled := h.pending.CancelAllForClient(clientID)
	if cancelled > 0 {
		h.logger.Info("link closed, cancelled pending calls", "client", clientID, "count", cancelled)
	}
}
