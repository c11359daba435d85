package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mbocsi/homelink/proto"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Devices are not browsers
	},
}

// WSTransport accepts device channels over WebSocket. It is an http.Handler
// so it shares the HTTP server with the chat webhook.
type WSTransport struct {
	Path         string
	onMessage    func(proto.Message)
	onConnect    func(Session) error
	onDisconnect func(Session)

	name        string
	description string
	sessions    map[string]Session
	cmu         sync.RWMutex

	maxSessions    int
	maxMessageSize int64
	pingInterval   time.Duration
	pongTimeout    time.Duration
	closed         bool
}

func NewWSTransport(path string) *WSTransport {
	return &WSTransport{
		Path:           path,
		name:           "Device WebSocket",
		maxSessions:    4,
		maxMessageSize: 64 * 1024,
		sessions:       make(map[string]Session),
	}
}

func (t *WSTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if t.onConnect == nil || t.onDisconnect == nil || t.onMessage == nil {
		slog.Error("WebSocket transport used outside of the coordinator", "path", t.Path)
		http.Error(w, "transport not ready", http.StatusInternalServerError)
		return
	}

	t.cmu.RLock()
	sessionCount := len(t.sessions)
	closed := t.closed
	t.cmu.RUnlock()

	if closed {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	if sessionCount >= t.maxSessions {
		slog.Warn("Max sessions reached, rejecting connection", "remote_addr", r.RemoteAddr)
		http.Error(w, "too many device connections", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection", "error", err)
		return
	}

	t.handleConnection(conn, r.RemoteAddr)
}

func (t *WSTransport) handleConnection(conn *websocket.Conn, remoteAddr string) {
	slog.Info("WebSocket device connected", "addr", remoteAddr)

	session := NewWSSession(conn, remoteAddr, t)
	done := make(chan struct{})

	defer func() {
		close(done)

		t.cmu.Lock()
		delete(t.sessions, session.Id)
		t.cmu.Unlock()

		t.onDisconnect(session)

		conn.Close()
		slog.Info("WebSocket device disconnected", "addr", remoteAddr, "id", session.Id)
	}()

	t.cmu.Lock()
	t.sessions[session.Id] = session
	t.cmu.Unlock()

	if err := t.onConnect(session); err != nil {
		slog.Error("Failed to register WebSocket device", "addr", remoteAddr, "error", err.Error())
		return
	}

	conn.SetReadLimit(t.maxMessageSize)
	if t.pingInterval > 0 {
		t.keepAlive(conn, session, done)
	}

	for {
		_, messageBytes, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("WebSocket connection error", "addr", remoteAddr, "error", err)
			}
			break
		}
		session.Touch()

		var msg proto.Message
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			slog.Warn("Invalid JSON message received", "error", err, "data", string(messageBytes))
			continue
		}

		// Inject session ID into message
		msg.Sender = session.Id
		slog.Debug("WebSocket message received", "type", msg.Type, "event", msg.Event, "id", msg.ID, "sender", msg.Sender, "size", len(msg.Payload))
		t.onMessage(msg)
	}
}

// keepAlive pings the device and drops the channel when pongs stop.
func (t *WSTransport) keepAlive(conn *websocket.Conn, session *WSSession, done <-chan struct{}) {
	wait := t.pingInterval + t.pongTimeout
	_ = conn.SetReadDeadline(time.Now().Add(wait))
	conn.SetPongHandler(func(string) error {
		session.Touch()
		return conn.SetReadDeadline(time.Now().Add(wait))
	})

	go func() {
		ticker := time.NewTicker(t.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				// WriteControl may run concurrently with WriteMessage.
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(t.pongTimeout)); err != nil {
					slog.Debug("Ping failed", "id", session.Id, "error", err)
					return
				}
			}
		}
	}()
}

// Shutdown stops accepting devices and closes every open channel.
func (t *WSTransport) Shutdown() error {
	slog.Info("Shutting down WebSocket transport", "path", t.Path)
	t.cmu.Lock()
	t.closed = true
	sessions := make([]Session, 0, len(t.sessions))
	for _, s := range t.sessions {
		sessions = append(sessions, s)
	}
	t.cmu.Unlock()

	for _, s := range sessions {
		if err := s.Close(); err != nil {
			slog.Warn("Failed to close device session", "id", s.Meta().Id, "error", err)
		}
	}
	return nil
}

func (t *WSTransport) OnMessage(fn func(proto.Message)) {
	t.onMessage = fn
}

func (t *WSTransport) OnConnect(fn func(Session) error) {
	t.onConnect = fn
}

func (t *WSTransport) OnDisconnect(fn func(Session)) {
	t.onDisconnect = fn
}

func (t *WSTransport) Meta() TransportMetadata {
	t.cmu.RLock()
	defer t.cmu.RUnlock()
	return TransportMetadata{
		ID:          "ws-" + t.Path,
		Name:        t.name,
		Description: t.description,
		Protocol:    "websocket",
		Address:     t.Path,
		Sessions:    len(t.sessions),
		MaxSessions: t.maxSessions,
		Connected:   !t.closed,
	}
}

func (t *WSTransport) SetName(name string) {
	t.name = name
}

func (t *WSTransport) SetDescription(description string) {
	t.description = description
}

func (t *WSTransport) SetMaxSessions(n int) {
	t.maxSessions = n
}

func (t *WSTransport) SetMaxMessageSize(n int64) {
	t.maxMessageSize = n
}

// SetKeepAlive enables server pings. A zero interval disables them.
func (t *WSTransport) SetKeepAlive(interval, pongTimeout time.Duration) {
	t.pingInterval = interval
	t.pongTimeout = pongTimeout
}
