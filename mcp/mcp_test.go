package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mbocsi/homelink/app"
	"github.com/mbocsi/homelink/chat"
	"github.com/mbocsi/homelink/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCommands struct {
	replies  map[string]chat.Message
	block    bool
	executed []string
}

func (f *fakeCommands) Execute(ctx context.Context, text string) (chat.Message, error) {
	f.executed = append(f.executed, text)
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.replies[text], nil
}

func (f *fakeCommands) DeviceStatus() services.DeviceStatus {
	return services.DeviceStatus{Connected: true, SessionID: "ws-1"}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "unexpected content %T", result.Content[0])
	return text.Text
}

func TestCommandTool_Text(t *testing.T) {
	cmds := &fakeCommands{replies: map[string]chat.Message{app.TriggerSelfTest: chat.Text{Text: app.ReplyTestPassed}}}
	s := NewMCPServer(cmds, "test", time.Second)

	result, err := s.commandHandler(app.TriggerSelfTest)(context.Background(), mcp.CallToolRequest{})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, app.ReplyTestPassed, resultText(t, result))
	assert.Equal(t, []string{app.TriggerSelfTest}, cmds.executed)
}

func TestCommandTool_Flex(t *testing.T) {
	cmds := &fakeCommands{replies: map[string]chat.Message{
		app.TriggerStatus: chat.Flex{AltText: app.AltTextStatus, Contents: json.RawMessage(`{"type":"bubble"}`)},
	}}
	s := NewMCPServer(cmds, "test", time.Second)

	result, err := s.commandHandler(app.TriggerStatus)(context.Background(), mcp.CallToolRequest{})
	require.NoError(t, err)
	text := resultText(t, result)
	assert.True(t, strings.HasPrefix(text, app.AltTextStatus))
	assert.Contains(t, text, `"bubble"`)
}

func TestCommandTool_NoReply(t *testing.T) {
	s := NewMCPServer(&fakeCommands{}, "test", time.Second)

	result, err := s.commandHandler(app.TriggerCloseDoor)(context.Background(), mcp.CallToolRequest{})
	require.NoError(t, err)
	assert.Contains(t, resultText(t, result), "No reply")
}

func TestCommandTool_Timeout(t *testing.T) {
	s := NewMCPServer(&fakeCommands{block: true}, "test", 0)

	var request mcp.CallToolRequest
	request.Params.Arguments = map[string]any{"timeout": 0.05}

	start := time.Now()
	result, err := s.commandHandler(app.TriggerSelfTest)(context.Background(), request)
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestDeviceInfoTool(t *testing.T) {
	s := NewMCPServer(&fakeCommands{}, "test", time.Second)

	result, err := s.handleDeviceInfo(context.Background(), mcp.CallToolRequest{})
	require.NoError(t, err)

	var status services.DeviceStatus
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &status))
	assert.True(t, status.Connected)
	assert.Equal(t, "ws-1", status.SessionID)
}
