package events

import "time"

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketClosed       EventType = "ticket_closed"
	EventTranscriptArchived EventType = "transcript_archived"
	EventArchiveFailed      EventType = "archive_failed"
	EventFeedbackReceived   EventType = "feedback_received"
)

// Event represents a domain event emitted by the closure and feedback flows.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  int64       `json:"ticket_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketClosedPayload payload.
type TicketClosedPayload struct {
	RequesterID string    `json:"requester_id"`
	ClosedAt    time.Time `json:"closed_at"`
}

// TranscriptArchivedPayload payload.
type TranscriptArchivedPayload struct {
	DocumentPath string `json:"document_path"`
	Pages        int    `json:"pages"`
	Messages     int    `json:"messages"`
	Attachments  int    `json:"attachments"`
}

// ArchiveFailedPayload payload.
type ArchiveFailedPayload struct {
	Stage  string `json:"stage"`
	Reason string `json:"reason"`
}

// FeedbackReceivedPayload payload.
type FeedbackReceivedPayload struct {
	RequesterID string `json:"requester_id"`
	Rating      int    `json:"rating"`
	Comment     string `json:"comment,omitempty"`
}
