package line

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"
	"github.com/mbocsi/homelink/chat"
)

// Dispatcher receives inbound chat events.
type Dispatcher interface {
	HandleChatEvent(ctx context.Context, ev chat.Event) error
}

// WebhookHandler verifies and parses webhook callbacks and hands each event
// to the dispatcher on its own goroutine. The response never waits on the
// dispatcher.
type WebhookHandler struct {
	secret     string
	dispatcher Dispatcher
	ctx        context.Context
	wg         sync.WaitGroup
}

// NewWebhookHandler dispatches events under ctx, normally the server's
// lifetime context.
func NewWebhookHandler(ctx context.Context, channelSecret string, d Dispatcher) *WebhookHandler {
	return &WebhookHandler{secret: channelSecret, dispatcher: d, ctx: ctx}
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	cb, err := webhook.ParseRequest(h.secret, r)
	if err != nil {
		if errors.Is(err, webhook.ErrInvalidSignature) {
			slog.Warn("Rejected webhook with invalid signature", "remote", r.RemoteAddr)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		slog.Error("Could not parse webhook", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	for _, raw := range cb.Events {
		ev := toChatEvent(raw)
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			if err := h.dispatcher.HandleChatEvent(h.ctx, ev); err != nil {
				slog.Error("Chat event handling failed", "type", ev.Type, "error", err)
			}
		}()
	}
	w.WriteHeader(http.StatusOK)
}

// Wait blocks until every dispatched event has been handled.
func (h *WebhookHandler) Wait() {
	h.wg.Wait()
}

func toChatEvent(raw webhook.EventInterface) chat.Event {
	ev := chat.Event{Type: raw.GetType()}
	e, ok := raw.(webhook.MessageEvent)
	if !ok {
		return ev
	}
	ev.ReplyToken = e.ReplyToken
	ev.SourceID = sourceID(e.Source)
	if e.Message != nil {
		ev.MessageType = e.Message.GetType()
	}
	if text, ok := e.Message.(webhook.TextMessageContent); ok {
		ev.Text = text.Text
	}
	return ev
}

func sourceID(src webhook.SourceInterface) string {
	switch s := src.(type) {
	case webhook.UserSource:
		return s.UserId
	case webhook.GroupSource:
		return s.GroupId
	case webhook.RoomSource:
		return s.RoomId
	}
	return ""
}
