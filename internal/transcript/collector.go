package transcript

import (
	"context"

	"github.com/spec-kit/ticket-archiver/internal/domain"
	"github.com/spec-kit/ticket-archiver/internal/gateway"
	"github.com/spec-kit/ticket-archiver/pkg/util"
)

// DefaultHistoryLimit bounds the collected conversation window.
const DefaultHistoryLimit = 100

// Collector reads a conversation into an ordered transcript. It is a pure
// read adapter over the chat gateway.
type Collector struct {
	chat  gateway.ChatGateway
	limit int
}

// NewCollector builds a collector with the given history window.
func NewCollector(chat gateway.ChatGateway, limit int) *Collector {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &Collector{chat: chat, limit: limit}
}

// Collect returns the conversation messages oldest-first together with every
// attachment reference discovered in the window, in discovery order. A
// history read failure is fatal for the archive attempt.
func (c *Collector) Collect(ctx context.Context, channelID string) ([]domain.TranscriptMessage, []domain.AttachmentRef, error) {
	history, err := c.chat.History(ctx, channelID, c.limit)
	if err != nil {
		return nil, nil, util.NewCollectionFailed(err)
	}

	messages := make([]domain.TranscriptMessage, 0, len(history))
	var refs []domain.AttachmentRef

	// The platform returns newest-first; the transcript reads oldest-first.
	for i := len(history) - 1; i >= 0; i-- {
		msg := history[i]
		messages = append(messages, domain.TranscriptMessage{
			Author:  msg.AuthorName,
			Content: msg.Content,
		})
		for _, att := range msg.Attachments {
			refs = append(refs, domain.AttachmentRef{
				ID:       att.ID,
				URL:      att.URL,
				Filename: att.Filename,
				Class:    domain.ClassifyAttachment(att.Filename),
			})
		}
	}

	return messages, refs, nil
}
