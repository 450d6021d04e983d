package gateway

import "context"

// Attachment is a remote file reference discovered on a message.
type Attachment struct {
	ID       string
	URL      string
	Filename string
}

// Message is one conversation record as returned by the chat platform.
type Message struct {
	ID          string
	AuthorID    string
	AuthorName  string
	Content     string
	Attachments []Attachment
}

// ChatGateway is the capability surface the pipeline consumes from the chat
// platform. History returns messages newest-first, as the platform does.
type ChatGateway interface {
	History(ctx context.Context, channelID string, limit int) ([]Message, error)
	SendDirectMessage(ctx context.Context, userID, content string) error
	SendFeedbackPrompt(ctx context.Context, userID string, ticketID int64, token string) error
	PostToChannel(ctx context.Context, channelID, content string) error
	DeleteChannel(ctx context.Context, channelID string) error
}
