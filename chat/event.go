package chat

// Event kinds and message kinds the router cares about.
const (
	EventMessage = "message"
	MessageText  = "text"
)

// Event is an inbound webhook event reduced to what command routing needs.
type Event struct {
	Type        string // "message", "follow", "postback", ...
	MessageType string // "text", "image", ... for message events
	Text        string
	ReplyToken  string
	SourceID    string
}

// IsText reports whether the event is a text message.
func (e Event) IsText() bool {
	return e.Type == EventMessage && e.MessageType == MessageText
}
