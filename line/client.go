// Package line connects the chat layer to the LINE Messaging API.
package line

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/mbocsi/homelink/chat"
)

// Client implements chat.Sender on top of the Messaging API.
type Client struct {
	api *messaging_api.MessagingApiAPI
}

func NewClient(channelToken string, opts ...messaging_api.MessagingApiAPIOption) (*Client, error) {
	api, err := messaging_api.NewMessagingApiAPI(channelToken, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating messaging api client: %w", err)
	}
	return &Client{api: api}, nil
}

func (c *Client) Reply(ctx context.Context, replyToken string, msgs ...chat.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	converted, err := toLineMessages(msgs)
	if err != nil {
		return err
	}
	_, err = c.api.ReplyMessage(&messaging_api.ReplyMessageRequest{
		ReplyToken: replyToken,
		Messages:   converted,
	})
	if err != nil {
		return fmt.Errorf("reply: %w", err)
	}
	slog.Debug("Replied to chat message", "messages", len(converted))
	return nil
}

// Broadcast sends msgs to every friend of the bot. Each call carries a new
// retry key so the platform can dedupe a resent request.
func (c *Client) Broadcast(ctx context.Context, msgs ...chat.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	converted, err := toLineMessages(msgs)
	if err != nil {
		return err
	}
	retryKey := uuid.NewString()
	_, err = c.api.Broadcast(&messaging_api.BroadcastRequest{
		Messages: converted,
	}, retryKey)
	if err != nil {
		return fmt.Errorf("broadcast: %w", err)
	}
	slog.Debug("Broadcast chat message", "messages", len(converted), "retry_key", retryKey)
	return nil
}

func toLineMessages(msgs []chat.Message) ([]messaging_api.MessageInterface, error) {
	out := make([]messaging_api.MessageInterface, 0, len(msgs))
	for _, m := range msgs {
		switch m := m.(type) {
		case chat.Text:
			out = append(out, &messaging_api.TextMessage{Text: m.Text})
		case chat.Image:
			out = append(out, &messaging_api.ImageMessage{
				OriginalContentUrl: m.OriginalURL,
				PreviewImageUrl:    m.PreviewURL,
			})
		case chat.Flex:
			contents, err := messaging_api.UnmarshalFlexContainer(m.Contents)
			if err != nil {
				return nil, fmt.Errorf("flex contents: %w", err)
			}
			out = append(out, &messaging_api.FlexMessage{
				AltText:  m.AltText,
				Contents: contents,
			})
		default:
			return nil, fmt.Errorf("unsupported chat message type %T", m)
		}
	}
	return out, nil
}
