package service

import (
	"context"
	"errors"
	"fmt"
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
	"github.com/spec-kit/ticket-archiver/internal/transcript"
	"github.com/spec-kit/ticket-archiver/pkg/util"
)

// TranscriptCollector reads a conversation into an ordered transcript.
type TranscriptCollector interface {
	Collect(ctx context.Context, channelID string) ([]domain.TranscriptMessage, []domain.AttachmentRef, error)
}

// AttachmentArchiver copies remote attachments to local storage.
type AttachmentArchiver interface {
	Archive(ctx context.Context, refs []domain.AttachmentRef) []domain.ArchivedAttachment
}

// DocumentRenderer produces the transcript document.
type DocumentRenderer interface {
	Render(in transcript.RenderInput) (*transcript.Document, error)
}

// ChannelReaper tears down a conversation channel after a grace delay.
type ChannelReaper interface {
	Schedule(channelID string, delay time.Duration)
}

// ClosureService sequences the ticket closure and transcript archival
// pipeline: state transition, collection, archival, rendering, requester
// notification and channel teardown.
type ClosureService struct {
	tickets    repository.TicketRepository
	collector  TranscriptCollector
	archiver   AttachmentArchiver
	renderer   DocumentRenderer
	chat       gateway.ChatGateway
	prompts    *feedback.PromptSigner
	reaper     ChannelReaper
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger

	operatorChannelID string
	deleteGrace       time.Duration
	now               func() time.Time
}

// ClosureDependencies bundles collaborators for the closure service.
type ClosureDependencies struct {
	TicketRepo        repository.TicketRepository
	Collector         TranscriptCollector
	Archiver          AttachmentArchiver
	Renderer          DocumentRenderer
	Chat              gateway.ChatGateway
	Prompts           *feedback.PromptSigner
	Reaper            ChannelReaper
	Dispatcher        events.Dispatcher
	Metrics           *observability.Metrics
	Logger            *zap.Logger
	OperatorChannelID string
	DeleteGrace       time.Duration
}

// NewClosureService constructs the service.
func NewClosureService(deps ClosureDependencies) *ClosureService {
	grace := deps.DeleteGrace
	if grace <= 0 {
		grace = 10 * time.Second
	}
	return &ClosureService{
		tickets:           deps.TicketRepo,
		collector:         deps.Collector,
		archiver:          deps.Archiver,
		renderer:          deps.Renderer,
		chat:              deps.Chat,
		prompts:           deps.Prompts,
		reaper:            deps.Reaper,
		dispatcher:        deps.Dispatcher,
		metrics:           deps.Metrics,
		logger:            deps.Logger,
		operatorChannelID: deps.OperatorChannelID,
		deleteGrace:       grace,
		now:               time.Now,
	}
}

// Close transitions a ticket to closed and runs the archival pipeline. The
// state transition commits before any archival work, so an archive failure
// never leaves the ticket ambiguous: the ticket stays closed and operators
// are told to retrieve the conversation manually.
func (s *ClosureService) Close(ctx context.Context, ticketID int64, channelID string) error {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return util.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return util.NewInternalError(err)
	}
	if ticket.IsClosed() {
		s.metrics.Inc(observability.MetricClosuresRejected)
		return util.NewInvalidState("ticket already closed", map[string]any{"ticket_id": ticketID})
	}

	closedAt := s.now()
	if err := s.tickets.Close(ctx, ticketID, closedAt); err != nil {
		if errors.Is(err, repository.ErrNotOpen) {
			s.metrics.Inc(observability.MetricClosuresRejected)
			return util.NewInvalidState("ticket already closed", map[string]any{"ticket_id": ticketID})
		}
		return util.NewInternalError(err)
	}
	ticket.Status = domain.TicketStatusClosed
	ticket.ClosedAt = &closedAt
	s.metrics.Inc(observability.MetricTicketsClosed)
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketClosed,
		TicketID: ticketID,
		Payload: events.TicketClosedPayload{
			RequesterID: ticket.RequesterID,
			ClosedAt:    closedAt,
		},
	})

	messages, refs, err := s.collector.Collect(ctx, channelID)
	if err != nil {
		s.reportArchiveFailure(ctx, ticketID, "collect", err)
		return nil
	}

	archived := s.archiver.Archive(ctx, refs)
	doc, err := s.renderer.Render(transcript.RenderInput{
		TicketID:      ticketID,
		RequesterName: ticket.RequesterID,
		IssueText:     ticket.Content,
		Messages:      messages,
		Attachments:   archived,
	})
	if err != nil {
		s.reportArchiveFailure(ctx, ticketID, "render", err)
		return nil
	}
	s.metrics.Inc(observability.MetricTranscriptsRendered)
	s.logger.Info("transcript generated",
		zap.Int64("ticket_id", ticketID),
		zap.String("path", doc.Path),
		zap.Int("pages", doc.Pages))
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTranscriptArchived,
		TicketID: ticketID,
		Payload: events.TranscriptArchivedPayload{
			DocumentPath: doc.Path,
			Pages:        doc.Pages,
			Messages:     len(messages),
			Attachments:  len(archived),
		},
	})

	s.promptRequester(ctx, ticket)
	s.reaper.Schedule(channelID, s.deleteGrace)
	return nil
}

// promptRequester DMs the feedback prompt; delivery failure escalates to the
// operator channel and is never silently dropped.
func (s *ClosureService) promptRequester(ctx context.Context, ticket *domain.Ticket) {
	prompt := feedback.Prompt{TicketID: ticket.ID, RequesterID: ticket.RequesterID}
	token, err := s.prompts.Sign(prompt)
	if err != nil {
		s.logger.Error("sign feedback prompt", zap.Int64("ticket_id", ticket.ID), zap.Error(err))
		s.notifyOperator(ctx, fmt.Sprintf("Could not build a feedback prompt for closed ticket #%d.", ticket.ID))
		return
	}
	if err := s.chat.SendFeedbackPrompt(ctx, ticket.RequesterID, ticket.ID, token); err != nil {
		s.logger.Warn("feedback prompt undeliverable",
			zap.Int64("ticket_id", ticket.ID),
			zap.String("requester_id", ticket.RequesterID),
			zap.Error(err))
		s.notifyOperator(ctx, fmt.Sprintf("Could not DM %s about closed ticket #%d.", ticket.RequesterID, ticket.ID))
	}
}

func (s *ClosureService) reportArchiveFailure(ctx context.Context, ticketID int64, stage string, cause error) {
	s.metrics.Inc(observability.MetricArchiveFailures)
	s.logger.Error("transcript archive failed",
		zap.Int64("ticket_id", ticketID),
		zap.String("stage", stage),
		zap.Error(cause))
	s.publishEvent(ctx, events.Event{
		Type:     events.EventArchiveFailed,
		TicketID: ticketID,
		Payload:  events.ArchiveFailedPayload{Stage: stage, Reason: cause.Error()},
	})
	s.notifyOperator(ctx, fmt.Sprintf(
		"Transcript archive failed for ticket #%d (%s). The ticket is closed; please retrieve the conversation manually.",
		ticketID, stage))
}

func (s *ClosureService) notifyOperator(ctx context.Context, content string) {
	if s.operatorChannelID == "" {
		s.logger.Warn("operator channel not configured", zap.String("notice", content))
		return
	}
	if err := s.chat.PostToChannel(ctx, s.operatorChannelID, content); err != nil {
		s.logger.Error("operator notice undeliverable", zap.String("notice", content), zap.Error(err))
	}
}

func (s *ClosureService) publishEvent(ctx context.Context, event events.Event) {
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
