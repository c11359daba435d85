package server

import (
	"log/slog"

	"github.com/mbocsi/homelink/proto"
)

// Coordinator connects transports to the session registry and hands device
// frames to the query tracker and the event relay.
type Coordinator struct {
	Registry   *SessionRegistry
	Transports []Transport

	onResponse     func(proto.Message) bool
	onEvent        func(proto.Message)
	onSessionEnded func(sessionID string)
}

func NewCoordinator(registry *SessionRegistry) *Coordinator {
	if registry == nil {
		registry = NewSessionRegistry()
	}
	return &Coordinator{Registry: registry}
}

func (c *Coordinator) RegisterTransport(t Transport) {
	t.OnMessage(c.Handle)
	t.OnConnect(c.RegisterSession)
	t.OnDisconnect(c.UnregisterSession)
	c.Transports = append(c.Transports, t)
}

// OnResponse installs the resolver for device replies. It reports whether
// the reply matched a pending query.
func (c *Coordinator) OnResponse(fn func(proto.Message) bool) {
	c.onResponse = fn
}

// OnEvent installs the handler for unsolicited device events. Each event is
// handled on its own goroutine so slow chat sends never stall the channel.
func (c *Coordinator) OnEvent(fn func(proto.Message)) {
	c.onEvent = fn
}

// OnSessionEnded is called with the id of a session that was replaced or
// disconnected. Its pending queries can no longer resolve.
func (c *Coordinator) OnSessionEnded(fn func(sessionID string)) {
	c.onSessionEnded = fn
}

func (c *Coordinator) RegisterSession(session Session) error {
	previous := c.Registry.SetCurrent(session)
	if previous != nil {
		slog.Info("Replaced device session", "id", session.Meta().Id, "previous", previous.Meta().Id)
		c.sessionEnded(previous.Meta().Id)
		return nil
	}
	slog.Info("Registered device session", "id", session.Meta().Id, "addr", session.Meta().RemoteAddr)
	return nil
}

func (c *Coordinator) UnregisterSession(session Session) {
	if c.Registry.ClearCurrent(session) {
		slog.Info("Device session cleared", "id", session.Meta().Id)
	} else {
		slog.Debug("Stale device session closed", "id", session.Meta().Id)
	}
	c.sessionEnded(session.Meta().Id)
}

func (c *Coordinator) sessionEnded(id string) {
	if c.onSessionEnded != nil {
		c.onSessionEnded(id)
	}
}

// Shutdown closes every registered transport.
func (c *Coordinator) Shutdown() {
	for _, t := range c.Transports {
		if err := t.Shutdown(); err != nil {
			slog.Error("There was an error when shutting down transport", "transport", t.Meta().ID, "error", err.Error())
		}
	}
}
