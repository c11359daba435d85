package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mbocsi/homelink/proto"
	"github.com/mbocsi/homelink/server"
)

// QueryTracker manages query-response correlation
type QueryTracker struct {
	queries map[string]*pendingQuery
	timeout time.Duration
	mu      sync.Mutex
}

type pendingQuery struct {
	name      string
	sessionID string
	result    chan json.RawMessage // buffered, receives at most one reply
}

// NewQueryTracker creates a new query tracker. A zero timeout means queries
// wait for their reply until the caller's context ends.
func NewQueryTracker(defaultTimeout time.Duration) *QueryTracker {
	return &QueryTracker{
		queries: make(map[string]*pendingQuery),
		timeout: defaultTimeout,
	}
}

// SendQuery sends a query to session and waits for its response
func (qt *QueryTracker) SendQuery(ctx context.Context, session server.Session, name string, payload any) (json.RawMessage, error) {
	payloadBytes, err := marshalPayload(payload)
	if err != nil {
		return nil, ServiceError{
			Code:    ErrCodeInvalidInput,
			Message: "Failed to marshal query payload",
			Cause:   err,
		}
	}

	queryID := uuid.New().String()
	pending := &pendingQuery{
		name:      name,
		sessionID: session.Meta().Id,
		result:    make(chan json.RawMessage, 1),
	}

	// Register query before sending so a fast reply cannot be missed
	qt.mu.Lock()
	qt.queries[queryID] = pending
	qt.mu.Unlock()

	defer qt.forget(queryID)

	if err := session.Send(proto.NewQuery(queryID, name, payloadBytes)); err != nil {
		return nil, ServiceError{
			Code:    ErrCodeInternal,
			Message: "Failed to send query message",
			Cause:   err,
		}
	}

	var timeout <-chan time.Time
	if qt.timeout > 0 {
		timer := time.NewTimer(qt.timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case reply := <-pending.result:
		return reply, nil
	case <-ctx.Done():
		return nil, ServiceError{
			Code:    ErrCodeCanceled,
			Message: fmt.Sprintf("Query %q abandoned by caller", name),
			Cause:   ctx.Err(),
		}
	case <-timeout:
		return nil, ServiceError{
			Code:    ErrCodeTimeout,
			Message: fmt.Sprintf("Query timeout after %v", qt.timeout),
		}
	}
}

// HandleResponse resolves the pending query the response answers. Replies
// from any session other than the one queried are rejected.
func (qt *QueryTracker) HandleResponse(msg proto.Message) bool {
	if msg.Type != proto.TypeResponse || msg.ID == "" {
		return false
	}

	qt.mu.Lock()
	pending, exists := qt.queries[msg.ID]
	if exists && pending.sessionID == msg.Sender {
		delete(qt.queries, msg.ID)
	}
	qt.mu.Unlock()

	if !exists || pending.sessionID != msg.Sender {
		return false
	}

	pending.result <- msg.Payload
	return true
}

// Abandon drops every pending query sent to sessionID. Their callers are
// never resolved; only their contexts can release them.
func (qt *QueryTracker) Abandon(sessionID string) int {
	qt.mu.Lock()
	defer qt.mu.Unlock()

	dropped := 0
	for id, pending := range qt.queries {
		if pending.sessionID == sessionID {
			delete(qt.queries, id)
			dropped++
		}
	}
	if dropped > 0 {
		slog.Warn("Abandoned pending queries", "session", sessionID, "count", dropped)
	}
	return dropped
}

// Pending returns the number of queries awaiting a reply
func (qt *QueryTracker) Pending() int {
	qt.mu.Lock()
	defer qt.mu.Unlock()
	return len(qt.queries)
}

func (qt *QueryTracker) forget(queryID string) {
	qt.mu.Lock()
	delete(qt.queries, queryID)
	qt.mu.Unlock()
}
