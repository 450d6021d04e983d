package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-archiver/internal/events"
	"github.com/spec-kit/ticket-archiver/internal/gateway"
	"github.com/spec-kit/ticket-archiver/internal/observability"
)

// NotificationService fans pipeline events out to the activity log and the
// operator channel.
type NotificationService struct {
	dispatcher        events.Dispatcher
	chat              gateway.ChatGateway
	activity          *observability.ActivityLog
	logger            *zap.Logger
	operatorChannelID string
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, chat gateway.ChatGateway, activity *observability.ActivityLog, logger *zap.Logger, operatorChannelID string) *NotificationService {
	return &NotificationService{
		dispatcher:        dispatcher,
		chat:              chat,
		activity:          activity,
		logger:            logger,
		operatorChannelID: operatorChannelID,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketClosed, n.handleTicketClosed)
	n.dispatcher.Subscribe(events.EventTranscriptArchived, n.handleTranscriptArchived)
	n.dispatcher.Subscribe(events.EventArchiveFailed, n.handleArchiveFailed)
	n.dispatcher.Subscribe(events.EventFeedbackReceived, n.handleFeedbackReceived)
}

func (n *NotificationService) handleTicketClosed(ctx context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.TicketClosedPayload)
	n.record("ticket closed id=%d requester=%s", event.TicketID, payload.RequesterID)
	return nil
}

func (n *NotificationService) handleTranscriptArchived(ctx context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.TranscriptArchivedPayload)
	n.record("transcript generated: ticket=%d file=%s pages=%d", event.TicketID, payload.DocumentPath, payload.Pages)
	return nil
}

func (n *NotificationService) handleArchiveFailed(ctx context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.ArchiveFailedPayload)
	n.record("archive failed ticket=%d stage=%s", event.TicketID, payload.Stage)
	return nil
}

func (n *NotificationService) handleFeedbackReceived(ctx context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.FeedbackReceivedPayload)
	n.record("feedback user=%s rating=%d ticket=%d", payload.RequesterID, payload.Rating, event.TicketID)

	if n.operatorChannelID == "" {
		return nil
	}
	summary := fmt.Sprintf("New rating for ticket #%d: %d/5", event.TicketID, payload.Rating)
	if payload.Comment != "" {
		summary += "\n" + payload.Comment
	}
	if err := n.chat.PostToChannel(ctx, n.operatorChannelID, summary); err != nil {
		n.logger.Warn("feedback summary undeliverable", zap.Int64("ticket_id", event.TicketID), zap.Error(err))
	}
	return nil
}

func (n *NotificationService) record(format string, args ...any) {
	if n.activity == nil {
		return
	}
	if err := n.activity.Recordf(format, args...); err != nil {
		n.logger.Warn("activity log write failed", zap.Error(err))
	}
}
