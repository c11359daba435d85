package proto

import (
	"encoding/json"
	"time"
)

// Frame types exchanged with the device over the WebSocket channel.
const (
	TypeQuery    = "query"    // server -> device, expects exactly one response
	TypeResponse = "response" // device -> server, answers a query by ID
	TypeCommand  = "command"  // server -> device, fire-and-forget
	TypeEvent    = "event"    // device -> server, unsolicited
)

// Names understood by the home device.
const (
	QueryWatch     = "watch"
	QueryCloseDoor = "close_door"
	QueryTest      = "test"

	CommandCloseAlert = "close_alert"

	EventStatus  = "status"
	EventFire    = "fire"
	EventImage   = "img"
	EventText    = "msg"
	EventWatched = "watched"
)

type Message struct {
	Type      string          `json:"type"`              // "query", "response", "command", "event"
	Event     string          `json:"event,omitempty"`   // query, command or event name
	ID        string          `json:"id,omitempty"`      // correlation id for query/response pairs
	Sender    string          `json:"sender,omitempty"`  // session id, injected by the server
	Payload   json.RawMessage `json:"payload,omitempty"` // raw JSON; schema depends on Event
	Timestamp int64           `json:"timestamp"`         // UNIX timestamp in seconds
}

func NewQuery(id, name string, payload json.RawMessage) Message {
	return Message{Type: TypeQuery, Event: name, ID: id, Payload: payload, Timestamp: time.Now().Unix()}
}

func NewCommand(name string, payload json.RawMessage) Message {
	return Message{Type: TypeCommand, Event: name, Payload: payload, Timestamp: time.Now().Unix()}
}

func NewResponse(id, name string, payload json.RawMessage) Message {
	return Message{Type: TypeResponse, Event: name, ID: id, Payload: payload, Timestamp: time.Now().Unix()}
}

func NewEvent(name string, payload json.RawMessage) Message {
	return Message{Type: TypeEvent, Event: name, Payload: payload, Timestamp: time.Now().Unix()}
}
