package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mbocsi/homelink/proto"
)

var ErrSessionClosed = errors.New("session connection is not open")

type WSSession struct {
	SessionMetadata
	conn *websocket.Conn
	wmu  sync.Mutex // gorilla allows one concurrent writer
}

func NewWSSession(conn *websocket.Conn, remoteAddr string, t Transport) *WSSession {
	now := time.Now()
	return &WSSession{
		conn: conn,
		SessionMetadata: SessionMetadata{
			Id:          generateSessionId("ws"),
			RemoteAddr:  remoteAddr,
			ConnectedAt: now,
			LastSeen:    now,
			Transport:   t,
		},
	}
}

func (s *WSSession) Send(msg proto.Message) error {
	if s.conn == nil {
		return ErrSessionClosed
	}

	jsonData, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	s.wmu.Lock()
	err = s.conn.WriteMessage(websocket.TextMessage, jsonData)
	s.wmu.Unlock()
	if err != nil {
		return err
	}

	slog.Debug("Sent WebSocket message", "to", s.Id, "type", msg.Type, "event", msg.Event, "id", msg.ID, "size", len(msg.Payload))
	return nil
}

func (s *WSSession) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

func (s *WSSession) Meta() *SessionMetadata {
	return &s.SessionMetadata
}
