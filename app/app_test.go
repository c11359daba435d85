package app

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/mbocsi/homelink/chat"
	"github.com/mbocsi/homelink/services"
	"github.com/mbocsi/homelink/templates"
	"github.com/stretchr/testify/require"
)

type sentMessage struct {
	ReplyToken string // empty for broadcasts
	Message    chat.Message
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (s *fakeSender) Reply(_ context.Context, token string, msgs ...chat.Message) error {
	return s.record(token, msgs)
}

func (s *fakeSender) Broadcast(_ context.Context, msgs ...chat.Message) error {
	return s.record("", msgs)
}

func (s *fakeSender) record(token string, msgs []chat.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	for _, m := range msgs {
		s.sent = append(s.sent, sentMessage{ReplyToken: token, Message: m})
	}
	return nil
}

func (s *fakeSender) Sent() []sentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentMessage(nil), s.sent...)
}

// fakeDevices answers queries from a table. A nil table means no device.
type fakeDevices struct {
	mu        sync.Mutex
	replies   map[string]string
	queryErr  error
	queries   []string
	commands  []string
	instructs error
}

func (d *fakeDevices) Query(ctx context.Context, name string, _ any) (json.RawMessage, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queries = append(d.queries, name)
	if d.queryErr != nil {
		return nil, d.queryErr
	}
	if d.replies == nil {
		return nil, services.ErrDeviceAbsent
	}
	return json.RawMessage(d.replies[name]), nil
}

func (d *fakeDevices) Instruct(name string, _ any) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.commands = append(d.commands, name)
	if d.instructs != nil {
		return d.instructs
	}
	if d.replies == nil {
		return services.ErrDeviceAbsent
	}
	return nil
}

func (d *fakeDevices) Status() services.DeviceStatus {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.replies == nil {
		return services.DeviceStatus{}
	}
	return services.DeviceStatus{Connected: true, SessionID: "ws-test", PendingQueries: 2}
}

func (d *fakeDevices) calls() (queries, commands []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.queries...), append([]string(nil), d.commands...)
}

var errBoom = errors.New("boom")

func newTestApp(t *testing.T, devices *fakeDevices) (*App, *fakeSender) {
	t.Helper()
	status, err := templates.LoadStatus("")
	require.NoError(t, err)
	alert, err := templates.LoadAlert("")
	require.NoError(t, err)

	sender := &fakeSender{}
	return NewApp(devices, sender, status, alert), sender
}

func textEvent(text, token string) chat.Event {
	return chat.Event{
		Type:        chat.EventMessage,
		MessageType: chat.MessageText,
		Text:        text,
		ReplyToken:  token,
		SourceID:    "U1",
	}
}
