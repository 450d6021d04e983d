package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-archiver/internal/domain"
	"github.com/spec-kit/ticket-archiver/internal/events"
	"github.com/spec-kit/ticket-archiver/internal/feedback"
	"github.com/spec-kit/ticket-archiver/internal/gateway"
	"github.com/spec-kit/ticket-archiver/internal/observability"
	"github.com/spec-kit/ticket-archiver/internal/repository"
	"github.com/spec-kit/ticket-archiver/pkg/util"
)

// FeedbackService accepts post-closure ratings scoped by prompt capability.
type FeedbackService struct {
	feedback   repository.FeedbackRepository
	chat       gateway.ChatGateway
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// FeedbackDependencies bundles collaborators for the feedback service.
type FeedbackDependencies struct {
	FeedbackRepo repository.FeedbackRepository
	Chat         gateway.ChatGateway
	Dispatcher   events.Dispatcher
	Metrics      *observability.Metrics
	Logger       *zap.Logger
}

// NewFeedbackService constructs the service.
func NewFeedbackService(deps FeedbackDependencies) *FeedbackService {
	return &FeedbackService{
		feedback:   deps.FeedbackRepo,
		chat:       deps.Chat,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		now:        time.Now,
	}
}

// Submit records a rating for the ticket the prompt is bound to. The
// submitter must match the requester captured in the prompt; a ticket can be
// rated at most once, first record wins.
func (s *FeedbackService) Submit(ctx context.Context, prompt feedback.Prompt, submitterID string, rating int, comment string) (*domain.Feedback, error) {
	if submitterID != prompt.RequesterID {
		s.metrics.Inc(observability.MetricFeedbackRejected)
		return nil, util.NewForbidden("only the ticket requester can submit feedback")
	}
	if !domain.ValidRating(rating) {
		s.metrics.Inc(observability.MetricFeedbackRejected)
		return nil, util.NewValidationError("rating must be between 1 and 5", map[string]any{"rating": rating})
	}
	comment = strings.TrimSpace(comment)
	if len(comment) > domain.MaxCommentLength {
		s.metrics.Inc(observability.MetricFeedbackRejected)
		return nil, util.NewValidationError("comment too long", map[string]any{"max_length": domain.MaxCommentLength})
	}

	if _, err := s.feedback.GetByTicket(ctx, prompt.TicketID); err == nil {
		s.metrics.Inc(observability.MetricFeedbackRejected)
		return nil, util.NewConflict("feedback already submitted", map[string]any{"ticket_id": prompt.TicketID})
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, util.NewInternalError(err)
	}

	record := &domain.Feedback{
		TicketID: prompt.TicketID,
		UserID:   prompt.RequesterID,
		Rating:   rating,
		Comment:  comment,
	}
	if err := s.feedback.Create(ctx, record); err != nil {
		// The unique constraint backstops the lookup under concurrent submits.
		if errors.Is(err, repository.ErrDuplicateFeedback) {
			s.metrics.Inc(observability.MetricFeedbackRejected)
			return nil, util.NewConflict("feedback already submitted", map[string]any{"ticket_id": prompt.TicketID})
		}
		return nil, util.NewInternalError(err)
	}
	s.metrics.Inc(observability.MetricFeedbackAccepted)

	s.thankRequester(ctx, record)
	s.publishEvent(ctx, events.Event{
		Type:     events.EventFeedbackReceived,
		TicketID: record.TicketID,
		Payload: events.FeedbackReceivedPayload{
			RequesterID: record.UserID,
			Rating:      record.Rating,
			Comment:     record.Comment,
		},
	})
	return record, nil
}

func (s *FeedbackService) thankRequester(ctx context.Context, record *domain.Feedback) {
	content := fmt.Sprintf("Your rating for ticket #%d was recorded: %d/5. Thank you!", record.TicketID, record.Rating)
	if err := s.chat.SendDirectMessage(ctx, record.UserID, content); err != nil {
		s.logger.Warn("thank-you dm undeliverable",
			zap.Int64("ticket_id", record.TicketID),
			zap.String("user_id", record.UserID),
			zap.Error(err))
	}
}

func (s *FeedbackService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}
