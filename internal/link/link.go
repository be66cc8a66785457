package link

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/goldbox/relay/internal/frames"
	"github.com/goldbox/relay/pkg/models"
)

const (
	maxPayloadBytes = 1 << 20
	sendBufferSize  = 64
	pongWait        = 45 * time.Second
	pingInterval    = 15 * time.Second
	writeWait       = 10 * time.Second
)

// Link is one ClientLink connection. It is not safe to share across
// goroutines beyond the read/write loop pair run() starts.
type Link struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger

	connected bool
	clientID  models.ClientId

	settingsMu sync.RWMutex
	settings   models.Settings
}

func newLink(hub *Hub, conn *websocket.Conn) *Link {
	ctx, cancel := context.WithCancel(context.Background())
	return &Link{
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		ctx:      ctx,
		cancel:   cancel,
		logger:   hub.logger,
		settings: models.DefaultSettings(),
	}
}

func (l *Link) run() {
	defer l.close()
	go l.writeLoop()
	l.readLoop()
}

func (l *Link) close() {
	l.cancel()
	close(l.send)
	_ = l.conn.Close()
	if l.connected {
		l.hub.unregister(l.clientID, l)
	}
}

func (l *Link) readLoop() {
	l.conn.SetReadLimit(maxPayloadBytes)
	_ = l.conn.SetReadDeadline(time.Now().Add(pongWait))
	l.conn.SetPongHandler(func(string) error {
		return l.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, data, err := l.conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var frame frames.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			l.sendError(fmt.Sprintf("invalid frame: %v", err))
			continue
		}

		if !l.connected {
			if frame.Type != frames.TypeConnect {
				l.sendError("first frame must be connect")
				continue
			}
			if err := l.handleConnect(frame); err != nil {
				l.sendError(err.Error())
				return
			}
			continue
		}

		if err := l.dispatch(frame); err != nil {
			l.logger.Warn("frame handling failed", "client", l.clientID, "type", frame.Type, "err", err)
			l.sendError(err.Error())
		}
	}
}

func (l *Link) writeLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.ctx.Done():
			return
		case <-ticker.C:
			_ = l.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := l.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case msg, ok := <-l.send:
			if !ok {
				return
			}
			_ = l.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := l.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}

// enqueue marshals and queues an outbound frame, stamping its timestamp if
// absent. Returns an error if the link's send buffer cannot accept it
// (closed connection), which callers treat as the link having gone away.
func (l *Link) enqueue(frame frames.Frame) (err error) {
	if frame.Timestamp == 0 {
		frame.Timestamp = time.Now().UnixMilli()
	}
	payload, marshalErr := json.Marshal(frame)
	if marshalErr != nil {
		return marshalErr
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("link closed")
		}
	}()
	select {
	case l.send <- payload:
		return nil
	case <-l.ctx.Done():
		return fmt.Errorf("link closed")
	}
}

func (l *Link) sendError(message string) {
	data, err := json.Marshal(frames.ErrorData{Error: message, Timestamp: time.Now().UnixMilli()})
	if err != nil {
		return
	}
	_ = l.enqueue(frames.Frame{Type: frames.TypeError, Data: data})
}

func (l *Link) settingsSnapshot() models.Settings {
	l.settingsMu.RLock()
	defer l.settingsMu.RUnlock()
	return l.settings
}
