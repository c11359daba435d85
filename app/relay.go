package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mbocsi/homelink/chat"
	"github.com/mbocsi/homelink/proto"
	"github.com/mbocsi/homelink/templates"
)

// HandleDeviceEvent broadcasts a device event to the chat. Unknown events
// are logged and dropped; a malformed payload only fails this event.
func (a *App) HandleDeviceEvent(ctx context.Context, msg proto.Message) error {
	var out chat.Message

	switch msg.Event {
	case proto.EventStatus:
		doc, err := a.renderReading(a.status, msg)
		if err != nil {
			return err
		}
		out = chat.Flex{AltText: AltTextStatus, Contents: doc}

	case proto.EventFire:
		doc, err := a.renderReading(a.alert, msg)
		if err != nil {
			return err
		}
		slog.Warn("Fire alert from device", "sender", msg.Sender)
		out = chat.Flex{AltText: AltTextFire, Contents: doc}

	case proto.EventImage:
		url, err := proto.ParseString(msg.Payload, "url")
		if err != nil {
			return fmt.Errorf("img event: %w", err)
		}
		out = chat.Image{OriginalURL: url, PreviewURL: url}

	case proto.EventText:
		text, err := proto.ParseString(msg.Payload, "text")
		if err != nil {
			return fmt.Errorf("msg event: %w", err)
		}
		out = chat.Text{Text: text}

	case proto.EventWatched:
		slog.Info("Device watched", "sender", msg.Sender, "payload", string(msg.Payload))
		return nil

	default:
		slog.Warn("Unhandled device event", "event", msg.Event, "sender", msg.Sender)
		return nil
	}

	if err := a.sender.Broadcast(ctx, out); err != nil {
		return fmt.Errorf("broadcast %s: %w", msg.Event, err)
	}
	slog.Debug("Relayed device event", "event", msg.Event, "message", out.Type())
	return nil
}

func (a *App) renderReading(tpl *templates.Template, msg proto.Message) (json.RawMessage, error) {
	reading, err := proto.ParseReading(msg.Payload)
	if err != nil {
		return nil, fmt.Errorf("%s event: %w", msg.Event, err)
	}
	return tpl.RenderReading(reading)
}
