package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen   TicketStatus = "open"
	TicketStatusClosed TicketStatus = "closed"
)

// TicketTag classifies the kind of request a ticket tracks.
type TicketTag string

const (
	TicketTagUrgent   TicketTag = "urgent"
	TicketTagQuestion TicketTag = "question"
	TicketTagBug      TicketTag = "bug"
	TicketTagSlash    TicketTag = "slash"
	TicketTagOther    TicketTag = "other"
)

// Ticket is the aggregate for support requests. Status moves open -> closed
// exactly once; ClosedAt is set iff the ticket is closed.
type Ticket struct {
	ID          int64
	RequesterID string
	Content     string
	Tag         TicketTag
	Status      TicketStatus
	CreatedAt   time.Time
	ClosedAt    *time.Time
}

// IsClosed reports whether the ticket reached its terminal state.
func (t *Ticket) IsClosed() bool {
	return t.Status == TicketStatusClosed
}
