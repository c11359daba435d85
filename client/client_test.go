package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/mbocsi/homelink/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pipeTransport feeds frames from inbound and records sent frames.
type pipeTransport struct {
	inbound chan proto.Message
	errs    chan error
	once    sync.Once
	closed  chan struct{}

	mu   sync.Mutex
	sent []proto.Message
}

func newPipeTransport() *pipeTransport {
	return &pipeTransport{
		inbound: make(chan proto.Message, 8),
		errs:    make(chan error, 1),
		closed:  make(chan struct{}),
	}
}

func (p *pipeTransport) Connect(string) error { return nil }

func (p *pipeTransport) Send(msg proto.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, msg)
	return nil
}

func (p *pipeTransport) Read() (proto.Message, error) {
	select {
	case msg := <-p.inbound:
		return msg, nil
	case err := <-p.errs:
		return proto.Message{}, err
	case <-p.closed:
		return proto.Message{}, io.EOF
	}
}

func (p *pipeTransport) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}

func (p *pipeTransport) frames() []proto.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]proto.Message(nil), p.sent...)
}

func startClient(t *testing.T, c *Client) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx, "ws://test") }()
	t.Cleanup(cancel)
	return cancel, done
}

func TestClient_AnswersQuery(t *testing.T) {
	tr := newPipeTransport()
	c := NewClient("sensor", tr)
	c.HandleQuery(proto.QueryTest, func(json.RawMessage) (any, error) {
		return map[string]bool{"OK": true}, nil
	})
	startClient(t, c)

	tr.inbound <- proto.NewQuery("q-1", proto.QueryTest, nil)

	require.Eventually(t, func() bool { return len(tr.frames()) == 1 }, time.Second, 5*time.Millisecond)
	resp := tr.frames()[0]
	assert.Equal(t, proto.TypeResponse, resp.Type)
	assert.Equal(t, "q-1", resp.ID)
	assert.Equal(t, proto.QueryTest, resp.Event)
	assert.JSONEq(t, `{"OK":true}`, string(resp.Payload))
}

func TestClient_QueryWithoutHandlerOrFailing(t *testing.T) {
	tr := newPipeTransport()
	c := NewClient("sensor", tr)
	c.HandleQuery(proto.QueryCloseDoor, func(json.RawMessage) (any, error) {
		return nil, errors.New("jammed")
	})
	executed := make(chan struct{})
	c.HandleCommand(proto.CommandCloseAlert, func(json.RawMessage) error {
		close(executed)
		return nil
	})
	startClient(t, c)

	tr.inbound <- proto.NewQuery("q-1", proto.QueryWatch, nil)
	tr.inbound <- proto.NewQuery("q-2", proto.QueryCloseDoor, nil)
	tr.inbound <- proto.NewCommand(proto.CommandCloseAlert, nil)

	select {
	case <-executed:
	case <-time.After(time.Second):
		t.Fatal("command handler not called")
	}
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, tr.frames())
}

func TestClient_Emit(t *testing.T) {
	tr := newPipeTransport()
	c := NewClient("sensor", tr)

	require.NoError(t, c.Emit(proto.EventImage, "https://img/cam.jpg"))

	frames := tr.frames()
	require.Len(t, frames, 1)
	assert.Equal(t, proto.TypeEvent, frames[0].Type)
	assert.Equal(t, proto.EventImage, frames[0].Event)
	assert.JSONEq(t, `"https://img/cam.jpg"`, string(frames[0].Payload))
}

func TestClient_EmitMarshalFailure(t *testing.T) {
	c := NewClient("sensor", newPipeTransport())
	assert.Error(t, c.Emit(proto.EventText, make(chan int)))
}

func TestClient_StartStopsOnCancel(t *testing.T) {
	c := NewClient("sensor", newPipeTransport())
	cancel, done := startClient(t, c)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Start did not return after cancel")
	}
}

func TestClient_StartReturnsReadError(t *testing.T) {
	tr := newPipeTransport()
	c := NewClient("sensor", tr)
	_, done := startClient(t, c)

	tr.inbound <- proto.Message{Type: "bogus"}
	tr.errs <- ErrInvalidFrame
	boom := errors.New("connection reset")
	tr.errs <- boom

	select {
	case err := <-done:
		assert.ErrorIs(t, err, boom)
	case <-time.After(time.Second):
		t.Fatal("Start did not return after read error")
	}
}
