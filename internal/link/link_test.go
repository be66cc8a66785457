package link

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/goldbox/relay/internal/frames"
	"github.com/goldbox/relay/internal/inbox"
	"github.com/goldbox/relay/internal/orchestrator"
	"github.com/goldbox/relay/internal/pending"
	"github.com/goldbox/relay/internal/sessionstore"
	"github.com/goldbox/relay/pkg/models"

	"github.com/goldbox/relay/internal/ingress"
)

type noopOrchestrator struct{}

func (noopOrchestrator) Run(ctx context.Context, req orchestrator.TurnRequest) (orchestrator.TurnResult, error) {
	return orchestrator.TurnResult{SessionID: req.SessionID, Success: true}, nil
}

func newTestHub(t *testing.T) (*Hub, *pending.Registry, *inbox.Collector) {
	t.Helper()
	collector := inbox.New(inbox.DefaultLimits())
	registry := pending.New(nil)
	store := sessionstore.NewMemoryStore(time.Hour)
	ing := ingress.New(store, collector, noopOrchestrator{}, nil)
	hub := NewHub(collector, registry, ing, 50*time.Millisecond, nil)
	return hub, registry, collector
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func TestLink_ConnectThenPingRoundTrip(t *testing.T) {
	hub, _, _ := newTestHub(t)
	server := httptest.NewServer(hub)
	defer server.Close()

	conn := dial(t, server)
	defer conn.Close()

	connectData, _ := json.Marshal(frames.ConnectData{ClientID: "client-1"})
	if err := conn.WriteJSON(frames.Frame{Type: frames.TypeConnect, Data: connectData}); err != nil {
		t.Fatalf("write connect: %v", err)
	}

	var connected frames.Frame
	if err := conn.ReadJSON(&connected); err != nil {
		t.Fatalf("read connected: %v", err)
	}
	if connected.Type != frames.TypeConnected {
		t.Fatalf("expected connected frame, got %+v", connected)
	}

	if err := conn.WriteJSON(frames.Frame{Type: frames.TypePing}); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	var pong frames.Frame
	if err := conn.ReadJSON(&pong); err != nil {
		t.Fatalf("read pong: %v", err)
	}
	if pong.Type != frames.TypePong {
		t.Fatalf("expected pong frame, got %+v", pong)
	}
}

func TestLink_RejectsFrameBeforeConnect(t *testing.T) {
	hub, _, _ := newTestHub(t)
	server := httptest.NewServer(hub)
	defer server.Close()

	conn := dial(t, server)
	defer conn.Close()

	if err := conn.WriteJSON(frames.Frame{Type: frames.TypePing}); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	var errFrame frames.Frame
	if err := conn.ReadJSON(&errFrame); err != nil {
		t.Fatalf("read error frame: %v", err)
	}
	if errFrame.Type != frames.TypeError {
		t.Fatalf("expected error frame before connect, got %+v", errFrame)
	}
}

func TestLink_ChatMessageAppendsToCollector(t *testing.T) {
	hub, _, collector := newTestHub(t)
	server := httptest.NewServer(hub)
	defer server.Close()

	conn := dial(t, server)
	defer conn.Close()

	connectData, _ := json.Marshal(frames.ConnectData{ClientID: "client-1"})
	_ = conn.WriteJSON(frames.Frame{Type: frames.TypeConnect, Data: connectData})
	var connected frames.Frame
	_ = conn.ReadJSON(&connected)

	chatData, _ := json.Marshal(frames.ChatMessageData{Content: "hello", Speaker: "Aria"})
	if err := conn.WriteJSON(frames.Frame{Type: frames.TypeChatMessage, Data: chatData}); err != nil {
		t.Fatalf("write chat_message: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if entries := collector.Recent("client-1", 5); len(entries) == 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("chat message was never appended to the collector")
}

func TestHub_UnregisterCancelsPendingCallsImmediately(t *testing.T) {
	hub, registry, collector := newTestHub(t)
	clientID := models.ClientId("client-1")

	handle := registry.Register(clientID, models.AwaitDiceResult)
	l := newLink(hub, nil)
	l.clientID = clientID
	l.connected = true
	if !hub.tryRegister(clientID, l) {
		t.Fatal("tryRegister unexpectedly reported a duplicate client")
	}

	done := make(chan struct{})
	go func() {
		_, err := handle.Await(context.Background(), time.Second)
		if err == nil {
			t.Error("expected the pending call to be cancelled")
		}
		close(done)
	}()

	hub.unregister(clientID, l)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pending call was not cancelled on unregister")
	}

	if _, ok := hub.links[clientID]; ok {
		t.Fatal("link should have been removed from the hub")
	}
	_ = collector
}
