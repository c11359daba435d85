package server

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/mbocsi/homelink/proto"
)

func TestNewWSSession(t *testing.T) {
	var conn *websocket.Conn = nil
	transport := NewWSTransport("/socket")

	session := NewWSSession(conn, "10.0.0.2:5555", transport)

	if session.conn != conn {
		t.Error("Expected conn to be set")
	}

	if !strings.HasPrefix(session.Id, "ws-") {
		t.Errorf("Expected ws- prefixed ID, got %q", session.Id)
	}

	if session.Transport != transport {
		t.Error("Expected Transport to be set")
	}

	if session.RemoteAddr != "10.0.0.2:5555" {
		t.Errorf("Expected remote addr to be kept, got %s", session.RemoteAddr)
	}

	if session.ConnectedAt.IsZero() {
		t.Error("Expected ConnectedAt to be set")
	}
}

func TestWSSession_UniqueIDs(t *testing.T) {
	transport := NewWSTransport("/socket")
	a := NewWSSession(nil, "", transport)
	b := NewWSSession(nil, "", transport)

	if a.Id == b.Id {
		t.Errorf("Expected distinct session IDs, both were %s", a.Id)
	}
}

func TestWSSession_Send_NilConnection(t *testing.T) {
	session := NewWSSession(nil, "", NewWSTransport("/socket"))

	testMsg := proto.NewCommand(proto.CommandCloseAlert, json.RawMessage(`{}`))

	// Should return an error rather than panic
	if err := session.Send(testMsg); err == nil {
		t.Error("Expected error when sending to nil connection")
	}

	if err := session.Close(); err != nil {
		t.Errorf("Expected nil close on nil connection, got %v", err)
	}
}
