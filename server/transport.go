package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mbocsi/homelink/proto"
)

// Transport accepts device channels. Transports are mounted on the HTTP
// router at the path reported by Meta().Address.
type Transport interface {
	http.Handler
	OnMessage(func(proto.Message))
	OnConnect(func(Session) error)
	OnDisconnect(func(Session))
	Shutdown() error
	Meta() TransportMetadata
	SetName(name string)
	SetDescription(description string)
}

type TransportMetadata struct {
	ID          string // Stable identifier, e.g. "ws-/socket"
	Name        string // Human-friendly name, e.g. "Device WebSocket"
	Protocol    string // Protocol name, e.g. "websocket"
	Address     string // Mount path on the HTTP router, e.g. "/socket"
	Description string // Optional, short purpose/use case

	Sessions    int  // Open channels, current or stale
	MaxSessions int  // Max allowed open channels
	Connected   bool // Whether the transport accepts connections
}

type SessionMetadata struct {
	Id          string
	RemoteAddr  string
	ConnectedAt time.Time
	LastSeen    time.Time
	Transport   Transport
	Mu          sync.RWMutex
}

// Touch records activity on the channel.
func (m *SessionMetadata) Touch() {
	m.Mu.Lock()
	m.LastSeen = time.Now()
	m.Mu.Unlock()
}

// Session is a live bidirectional channel to the home device.
type Session interface {
	Send(proto.Message) error
	Meta() *SessionMetadata
	Close() error
}

func generateSessionId(prefix string) string {
	return prefix + "-" + uuid.NewString()
}
