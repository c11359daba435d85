package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/mbocsi/homelink/proto"
)

var ErrNotConnected = errors.New("transport is not connected")

type WebSocketTransport struct {
	mu   sync.Mutex // serialises writes
	conn *websocket.Conn
}

func NewWebSocketTransport() *WebSocketTransport {
	return &WebSocketTransport{}
}

// Connect dials addr. A missing scheme means ws://, and http(s) URLs are
// mapped to ws(s).
func (t *WebSocketTransport) Connect(addr string) error {
	u, err := url.Parse(addr)
	if err != nil {
		return fmt.Errorf("invalid WebSocket URL: %w", err)
	}

	switch u.Scheme {
	case "", "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect to WebSocket server: %w", err)
	}

	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()
	return nil
}

func (t *WebSocketTransport) Send(msg proto.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return ErrNotConnected
	}
	if err := t.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to send WebSocket message: %w", err)
	}

	slog.Debug("Sent WebSocket Message", "type", msg.Type, "event", msg.Event, "size", len(msg.Payload))
	return nil
}

func (t *WebSocketTransport) Read() (proto.Message, error) {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return proto.Message{}, ErrNotConnected
	}

	_, messageBytes, err := conn.ReadMessage()
	if err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
			return proto.Message{}, fmt.Errorf("WebSocket connection error: %w", err)
		}
		return proto.Message{}, fmt.Errorf("connection closed: %w", err)
	}

	var msg proto.Message
	if err := json.Unmarshal(messageBytes, &msg); err != nil {
		return proto.Message{}, fmt.Errorf("%w: %v", ErrInvalidFrame, err)
	}
	return msg, nil
}

func (t *WebSocketTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}

	err := t.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		slog.Warn("Failed to send close message", "error", err)
	}

	err = t.conn.Close()
	t.conn = nil
	return err
}
