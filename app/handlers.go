package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mbocsi/homelink/chat"
	"github.com/mbocsi/homelink/proto"
	"github.com/mbocsi/homelink/services"
)

// HandleChatEvent routes one inbound chat event and replies with the token
// of that same event. Anything but a text message is ignored.
func (a *App) HandleChatEvent(ctx context.Context, ev chat.Event) error {
	if !ev.IsText() {
		slog.Debug("Ignoring chat event", "type", ev.Type, "message_type", ev.MessageType)
		return nil
	}

	msg, err := a.Execute(ctx, ev.Text)
	if err != nil {
		return err
	}
	if msg == nil {
		return nil
	}

	if err := a.sender.Reply(ctx, ev.ReplyToken, msg); err != nil {
		return fmt.Errorf("reply to %q: %w", ev.Text, err)
	}
	slog.Info("Replied to chat command", "command", ev.Text, "reply", msg.Type(), "source", ev.SourceID)
	return nil
}

// Execute runs the command named by text and returns the reply to send, or
// nil when there is nothing to say. Unknown text is not a command.
func (a *App) Execute(ctx context.Context, text string) (chat.Message, error) {
	switch text {
	case TriggerStatus:
		return a.homeStatus(ctx)
	case TriggerCloseDoor:
		return a.closeDoor(ctx)
	case TriggerSilenceAlarm:
		return a.silenceAlarm(), nil
	case TriggerSelfTest:
		return a.selfTest(ctx)
	default:
		return nil, nil
	}
}

func (a *App) homeStatus(ctx context.Context) (chat.Message, error) {
	payload, ok, err := a.query(ctx, proto.QueryWatch)
	if !ok {
		return nil, err
	}

	reading, err := proto.ParseReading(payload)
	if err != nil {
		return nil, fmt.Errorf("watch reply: %w", err)
	}
	doc, err := a.status.RenderReading(reading)
	if err != nil {
		return nil, err
	}
	return chat.Flex{AltText: AltTextStatus, Contents: doc}, nil
}

func (a *App) closeDoor(ctx context.Context) (chat.Message, error) {
	payload, ok, err := a.query(ctx, proto.QueryCloseDoor)
	if !ok {
		return nil, err
	}
	if !proto.Succeeded(payload) {
		slog.Info("Device did not close the door", "payload", string(payload))
		return nil, nil
	}
	return chat.Text{Text: ReplyDoorClosed}, nil
}

// silenceAlarm does not wait for the device and always confirms.
func (a *App) silenceAlarm() chat.Message {
	if err := a.devices.Instruct(proto.CommandCloseAlert, nil); err != nil {
		if errors.Is(err, services.ErrDeviceAbsent) {
			slog.Debug("Silence alarm without a device")
		} else {
			slog.Warn("Could not send close_alert", "error", err)
		}
	}
	return chat.Text{Text: ReplyAlarmSilenced}
}

func (a *App) selfTest(ctx context.Context) (chat.Message, error) {
	payload, ok, err := a.query(ctx, proto.QueryTest)
	if !ok {
		return nil, err
	}
	if proto.Succeeded(payload) {
		return chat.Text{Text: ReplyTestPassed}, nil
	}
	return chat.Text{Text: ReplyTestFailed}, nil
}

// query reports ok=false when there is no reply to act on. An absent
// device is not an error.
func (a *App) query(ctx context.Context, name string) ([]byte, bool, error) {
	payload, err := a.devices.Query(ctx, name, nil)
	switch {
	case err == nil:
		return payload, true, nil
	case errors.Is(err, services.ErrDeviceAbsent):
		slog.Debug("No device for query", "query", name)
		return nil, false, nil
	default:
		return nil, false, fmt.Errorf("query %s: %w", name, err)
	}
}
