// Package app is the glue between the chat platform and the device: it
// routes chat commands to device queries and relays device events into the
// chat.
package app

import (
	"context"
	"log/slog"

	"github.com/mbocsi/homelink/chat"
	"github.com/mbocsi/homelink/proto"
	"github.com/mbocsi/homelink/services"
	"github.com/mbocsi/homelink/templates"
)

// Chat texts the bot recognises and the replies it sends.
const (
	TriggerStatus       = "查看住家狀態中..."
	TriggerCloseDoor    = "關閉門窗"
	TriggerSilenceAlarm = "關閉警鈴"
	TriggerSelfTest     = "測試"

	AltTextStatus = "住家狀態"
	AltTextFire   = "你家著火了！！"

	ReplyDoorClosed    = "已關閉門窗"
	ReplyAlarmSilenced = "已關閉警鈴"
	ReplyTestPassed    = "測試成功"
	ReplyTestFailed    = "測試有問題"
)

type App struct {
	devices services.DeviceService
	sender  chat.Sender
	status  *templates.Template
	alert   *templates.Template
}

func NewApp(devices services.DeviceService, sender chat.Sender, status, alert *templates.Template) *App {
	return &App{devices: devices, sender: sender, status: status, alert: alert}
}

// DeviceStatus reports the current device session.
func (a *App) DeviceStatus() services.DeviceStatus {
	return a.devices.Status()
}

// EventHook adapts HandleDeviceEvent to the coordinator's event callback.
// Events are handled under ctx, normally the server's lifetime context.
func (a *App) EventHook(ctx context.Context) func(proto.Message) {
	return func(msg proto.Message) {
		if err := a.HandleDeviceEvent(ctx, msg); err != nil {
			slog.Error("Device event dropped", "event", msg.Event, "sender", msg.Sender, "error", err)
		}
	}
}
