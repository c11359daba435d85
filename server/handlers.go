package server

import (
	"log/slog"

	"github.com/mbocsi/homelink/proto"
)

func (c *Coordinator) Handle(msg proto.Message) {
	switch msg.Type {
	case proto.TypeResponse:
		c.handleResponse(msg)

	case proto.TypeEvent:
		c.handleEvent(msg)

	default:
		slog.Warn("Unhandled message type", "type", msg.Type, "event", msg.Event, "sender", msg.Sender)
	}
}

func (c *Coordinator) handleResponse(msg proto.Message) {
	if c.onResponse == nil {
		slog.Warn("No response handler installed", "id", msg.ID, "sender", msg.Sender)
		return
	}
	if !c.onResponse(msg) {
		// Late reply to an abandoned query, or a duplicate.
		slog.Warn("Unmatched device response", "id", msg.ID, "event", msg.Event, "sender", msg.Sender)
	}
}

func (c *Coordinator) handleEvent(msg proto.Message) {
	if c.onEvent == nil {
		slog.Debug("Dropping device event, no relay installed", "event", msg.Event)
		return
	}
	go c.onEvent(msg)
}
