// Package mcp exposes the chat commands as MCP tools over stdio, so an
// assistant can check on the house without going through the chat.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/mbocsi/homelink/app"
	"github.com/mbocsi/homelink/chat"
	"github.com/mbocsi/homelink/services"
)

// Commands is the part of app.App the tools drive.
type Commands interface {
	Execute(ctx context.Context, text string) (chat.Message, error)
	DeviceStatus() services.DeviceStatus
}

type Server interface {
	Run() error
}

type MCPServer struct {
	Server   *server.MCPServer
	commands Commands
	timeout  time.Duration
}

// NewMCPServer registers the tools. timeout bounds each device round trip
// unless the caller passes its own; zero means wait for the device.
func NewMCPServer(commands Commands, version string, timeout time.Duration) *MCPServer {
	s := &MCPServer{
		Server:   server.NewMCPServer("homelink", version, server.WithToolCapabilities(false)),
		commands: commands,
		timeout:  timeout,
	}
	s.registerTools()
	return s
}

func (s *MCPServer) Run() error {
	slog.Info("Started stdio MCP server")
	defer func() {
		slog.Info("Shut down stdio MCP server")
	}()
	return server.ServeStdio(s.Server)
}

func (s *MCPServer) registerTools() {
	commands := []struct {
		name, description, trigger string
	}{
		{"home_status", "Read the current CO, LPG and smoke levels from the home device", app.TriggerStatus},
		{"close_door", "Ask the home device to close the doors and windows", app.TriggerCloseDoor},
		{"silence_alarm", "Silence the home alarm", app.TriggerSilenceAlarm},
		{"self_test", "Run the home device self test", app.TriggerSelfTest},
	}
	for _, c := range commands {
		tool := mcp.NewTool(c.name,
			mcp.WithDescription(c.description),
			mcp.WithNumber("timeout",
				mcp.Description("Seconds to wait for the device"),
			),
		)
		s.Server.AddTool(tool, s.commandHandler(c.trigger))
	}

	s.Server.AddTool(mcp.NewTool("device_info",
		mcp.WithDescription("Show whether the home device is connected"),
	), s.handleDeviceInfo)
}

func (s *MCPServer) commandHandler(trigger string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		timeout := request.GetFloat("timeout", s.timeout.Seconds())
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, time.Duration(timeout*float64(time.Second)))
			defer cancel()
		}

		msg, err := s.commands.Execute(ctx, trigger)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Command failed: %v", err)), nil
		}
		return mcp.NewToolResultText(describe(msg)), nil
	}
}

func (s *MCPServer) handleDeviceInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resultBytes, err := json.MarshalIndent(s.commands.DeviceStatus(), "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error encoding status: %v", err)), err
	}
	return mcp.NewToolResultText(string(resultBytes)), nil
}

func describe(msg chat.Message) string {
	switch m := msg.(type) {
	case nil:
		return "No reply: the device is not connected or declined the command"
	case chat.Text:
		return m.Text
	case chat.Image:
		return m.OriginalURL
	case chat.Flex:
		return m.AltText + "\n" + string(m.Contents)
	default:
		return fmt.Sprintf("%v", m)
	}
}
