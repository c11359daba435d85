// Package chat defines the messages exchanged with the chat platform and the
// capability used to send them. It knows nothing about a specific platform;
// see package line for the LINE implementation.
package chat

import (
	"context"
	"encoding/json"
)

// Message is an outbound chat payload: Text, Image or Flex.
type Message interface {
	Type() string
}

type Text struct {
	Text string `json:"text"`
}

type Image struct {
	OriginalURL string `json:"originalContentUrl"`
	PreviewURL  string `json:"previewImageUrl"`
}

// Flex is a rich visual message. Contents is a rendered bubble document.
type Flex struct {
	AltText  string          `json:"altText"`
	Contents json.RawMessage `json:"contents"`
}

func (Text) Type() string  { return "text" }
func (Image) Type() string { return "image" }
func (Flex) Type() string  { return "flex" }

// Sender is the chat platform's send capability.
type Sender interface {
	// Reply answers one inbound message identified by its reply token.
	Reply(ctx context.Context, replyToken string, msgs ...Message) error
	// Broadcast sends to every contact of the bot in a single call.
	Broadcast(ctx context.Context, msgs ...Message) error
}
