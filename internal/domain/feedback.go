package domain

import "time"

// Rating bounds accepted for feedback.
const (
	RatingMin = 1
	RatingMax = 5
)

// MaxCommentLength bounds the optional feedback comment.
const MaxCommentLength = 500

// Feedback is a post-closure rating tied 1:1 to a ticket. At most one row
// per ticket exists; the first submission wins.
type Feedback struct {
	ID        int64
	TicketID  int64
	UserID    string
	Rating    int
	Comment   string
	CreatedAt time.Time
}

// ValidRating reports whether a rating falls inside the accepted range.
func ValidRating(rating int) bool {
	return rating >= RatingMin && rating <= RatingMax
}
