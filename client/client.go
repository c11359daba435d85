// Package client is the device side of the homelink channel. A device
// registers handlers for the queries and commands it understands, pushes
// events with Emit, and runs Start until the connection ends.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mbocsi/homelink/proto"
)

// ErrInvalidFrame is returned by a transport for a frame that is not a
// valid message. The read loop skips such frames.
var ErrInvalidFrame = errors.New("invalid frame")

type QueryHandler func(payload json.RawMessage) (any, error)

type CommandHandler func(payload json.RawMessage) error

type Client struct {
	Name      string
	transport Transport

	handlerMu       sync.RWMutex
	queryHandlers   map[string]QueryHandler
	commandHandlers map[string]CommandHandler
}

func NewClient(name string, t Transport) *Client {
	return &Client{
		Name:            name,
		transport:       t,
		queryHandlers:   make(map[string]QueryHandler),
		commandHandlers: make(map[string]CommandHandler),
	}
}

// HandleQuery answers the named query. The returned value becomes the
// response payload; an error suppresses the response.
func (c *Client) HandleQuery(name string, h QueryHandler) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	c.queryHandlers[name] = h
}

func (c *Client) HandleCommand(name string, h CommandHandler) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	c.commandHandlers[name] = h
}

// Emit pushes an unsolicited event to the server.
func (c *Client) Emit(event string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", event, err)
	}
	return c.transport.Send(proto.NewEvent(event, raw))
}

// Start connects to addr and serves frames until the connection drops or
// ctx is done. Cancelling ctx closes the connection and returns nil.
func (c *Client) Start(ctx context.Context, addr string) error {
	if err := c.transport.Connect(addr); err != nil {
		return err
	}
	slog.Info("Device connected", "name", c.Name, "addr", addr)

	stop := context.AfterFunc(ctx, func() {
		c.transport.Close()
	})
	defer stop()

	err := c.readLoop()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (c *Client) Close() error {
	return c.transport.Close()
}

func (c *Client) readLoop() error {
	for {
		msg, err := c.transport.Read()
		if errors.Is(err, ErrInvalidFrame) {
			slog.Warn("Skipping invalid frame", "error", err)
			continue
		}
		if err != nil {
			return err
		}
		slog.Debug("Message Received", "type", msg.Type, "event", msg.Event, "id", msg.ID, "size", len(msg.Payload))

		switch msg.Type {
		case proto.TypeQuery:
			go c.answer(msg)
		case proto.TypeCommand:
			go c.execute(msg)
		default:
			slog.Warn("Unhandled message", "type", msg.Type, "event", msg.Event)
		}
	}
}

func (c *Client) answer(msg proto.Message) {
	c.handlerMu.RLock()
	handler := c.queryHandlers[msg.Event]
	c.handlerMu.RUnlock()
	if handler == nil {
		slog.Warn("No handler for query", "query", msg.Event)
		return
	}

	response, err := handler(msg.Payload)
	if err != nil {
		slog.Warn("An error occured in queryHandler", "query", msg.Event, "error", err.Error())
		return
	}
	payload, err := json.Marshal(response)
	if err != nil {
		slog.Warn("An error occured when marshalling response", "query", msg.Event, "error", err.Error())
		return
	}
	if err := c.transport.Send(proto.NewResponse(msg.ID, msg.Event, payload)); err != nil {
		slog.Warn("An error occured when sending response", "query", msg.Event, "id", msg.ID, "error", err.Error())
	}
}

func (c *Client) execute(msg proto.Message) {
	c.handlerMu.RLock()
	handler := c.commandHandlers[msg.Event]
	c.handlerMu.RUnlock()
	if handler == nil {
		slog.Warn("No handler for command", "command", msg.Event)
		return
	}
	if err := handler(msg.Payload); err != nil {
		slog.Warn("An error occured in commandHandler", "command", msg.Event, "error", err.Error())
	}
}
