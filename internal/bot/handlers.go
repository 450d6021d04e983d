// Package bot is the thin event source that binds Discord interactions to
// the closure and feedback services. It parses, rate-limits and delegates;
// all workflow logic lives in the services.
package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-archiver/internal/feedback"
	"github.com/spec-kit/ticket-archiver/internal/gateway"
	"github.com/spec-kit/ticket-archiver/internal/observability"
	"github.com/spec-kit/ticket-archiver/internal/ratelimit"
	"github.com/spec-kit/ticket-archiver/internal/service"
	"github.com/spec-kit/ticket-archiver/pkg/util"
)

const (
	closeTicketCustomID     = "close_ticket"
	commentModalIDPrefix    = "feedback_comment:"
	ticketChannelNamePrefix = "ticket-"
)

// interactionSession is the part of the Discord session the handlers use.
// *discordgo.Session satisfies it.
type interactionSession interface {
	Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	FollowupMessageCreate(interaction *discordgo.Interaction, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Handler routes component and modal interactions to the services.
type Handler struct {
	closures  *service.ClosureService
	feedbacks *service.FeedbackService
	prompts   *feedback.PromptSigner
	limiter   *ratelimit.Limiter
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewHandler constructs the router.
func NewHandler(closures *service.ClosureService, feedbacks *service.FeedbackService, prompts *feedback.PromptSigner, limiter *ratelimit.Limiter, metrics *observability.Metrics, logger *zap.Logger) *Handler {
	return &Handler{
		closures:  closures,
		feedbacks: feedbacks,
		prompts:   prompts,
		limiter:   limiter,
		metrics:   metrics,
		logger:    logger,
	}
}

// Register attaches the interaction handler to a session.
func (h *Handler) Register(session *discordgo.Session) {
	session.AddHandler(h.onInteraction)
}

func (h *Handler) onInteraction(s *discordgo.Session, ic *discordgo.InteractionCreate) {
	switch ic.Type {
	case discordgo.InteractionMessageComponent:
		customID := ic.MessageComponentData().CustomID
		switch {
		case customID == closeTicketCustomID:
			h.handleClose(s, ic)
		case strings.HasPrefix(customID, gateway.RatingCustomIDPrefix):
			h.handleRating(s, ic)
		}
	case discordgo.InteractionModalSubmit:
		if strings.HasPrefix(ic.ModalSubmitData().CustomID, commentModalIDPrefix) {
			h.handleCommentSubmit(s, ic)
		}
	}
}

// handleClose acks the interaction before running the pipeline: collection,
// attachment downloads and rendering routinely outlast the interaction ack
// window, so the outcome is delivered as a follow-up message. Closing is a
// staff action and is never rate limited.
func (h *Handler) handleClose(s interactionSession, ic *discordgo.InteractionCreate) {
	ctx := context.Background()

	err := s.InteractionRespond(ic.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	})
	if err != nil {
		h.logger.Warn("interaction ack failed", zap.String("channel_id", ic.ChannelID), zap.Error(err))
	}

	channel, err := s.Channel(ic.ChannelID)
	if err != nil {
		h.logger.Warn("channel lookup failed", zap.String("channel_id", ic.ChannelID), zap.Error(err))
		h.followUp(s, ic, "Could not resolve this channel.")
		return
	}
	ticketID, ok := ticketIDFromChannelName(channel.Name)
	if !ok {
		h.followUp(s, ic, "This does not look like a ticket channel.")
		return
	}

	if err := h.closures.Close(ctx, ticketID, ic.ChannelID); err != nil {
		switch {
		case util.IsCode(err, "INVALID_STATE"):
			h.followUp(s, ic, "This ticket is already closed.")
		case util.IsCode(err, "NOT_FOUND"):
			h.followUp(s, ic, "No ticket record exists for this channel.")
		default:
			h.logger.Error("ticket closure failed", zap.Int64("ticket_id", ticketID), zap.Error(err))
			h.followUp(s, ic, "Closing the ticket failed. Staff have been notified.")
		}
		return
	}
	h.followUp(s, ic, "Ticket closed. This channel will be deleted in a few seconds.")
}

// handleRating answers a rating button press with a comment modal. The
// signed prompt token travels on into the modal id so submission stays
// scoped to the original (ticket, requester) pair. This is the requester
// facing flow, so it carries the antispam cooldown; an accepted submission
// clears the cooldown again.
func (h *Handler) handleRating(s interactionSession, ic *discordgo.InteractionCreate) {
	rating, token, ok := parseRatingCustomID(ic.MessageComponentData().CustomID)
	if !ok {
		h.respond(s, ic, "This feedback prompt is not valid.")
		return
	}
	prompt, err := h.prompts.Parse(token)
	if err != nil {
		h.respond(s, ic, "This feedback prompt is not valid.")
		return
	}
	userID := interactionUserID(ic)
	if userID != prompt.RequesterID {
		h.respond(s, ic, "Only the ticket requester can submit feedback.")
		return
	}
	if !h.limiter.Allow(context.Background(), userID) {
		h.metrics.Inc(observability.MetricRateLimited)
		h.respond(s, ic, "Too many requests. Try again later.")
		return
	}

	err = s.InteractionRespond(ic.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID: fmt.Sprintf("%s%d:%s", commentModalIDPrefix, rating, token),
			Title:    "Feedback",
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{Components: []discordgo.MessageComponent{
					discordgo.TextInput{
						CustomID:  "comment",
						Label:     "Comment (optional)",
						Style:     discordgo.TextInputParagraph,
						Required:  false,
						MaxLength: 500,
					},
				}},
			},
		},
	})
	if err != nil {
		h.logger.Warn("feedback modal failed", zap.Error(err))
	}
}

func (h *Handler) handleCommentSubmit(s interactionSession, ic *discordgo.InteractionCreate) {
	data := ic.ModalSubmitData()
	rating, token, ok := parseRatingCustomID(strings.TrimPrefix(data.CustomID, commentModalIDPrefix))
	if !ok {
		h.respond(s, ic, "This feedback prompt is not valid.")
		return
	}
	prompt, err := h.prompts.Parse(token)
	if err != nil {
		h.respond(s, ic, "This feedback prompt is not valid.")
		return
	}

	ctx := context.Background()
	userID := interactionUserID(ic)
	_, err = h.feedbacks.Submit(ctx, prompt, userID, rating, modalComment(data))
	if err != nil {
		switch {
		case util.IsCode(err, "CONFLICT"):
			h.respond(s, ic, "Feedback for this ticket was already submitted.")
		case util.IsCode(err, "FORBIDDEN"):
			h.respond(s, ic, "Only the ticket requester can submit feedback.")
		case util.IsCode(err, "VALIDATION_FAILED"):
			h.respond(s, ic, "That rating could not be accepted.")
		default:
			h.logger.Error("feedback submission failed", zap.Int64("ticket_id", prompt.TicketID), zap.Error(err))
			h.respond(s, ic, "Saving your feedback failed. Please try again.")
		}
		return
	}
	h.limiter.Reset(ctx, userID)
	h.respond(s, ic, "Thank you for your feedback!")
}

// followUp delivers a message for an interaction that was already acked
// with a deferred response.
func (h *Handler) followUp(s interactionSession, ic *discordgo.InteractionCreate, content string) {
	_, err := s.FollowupMessageCreate(ic.Interaction, true, &discordgo.WebhookParams{
		Content: content,
		Flags:   discordgo.MessageFlagsEphemeral,
	})
	if err != nil {
		h.logger.Warn("interaction follow-up failed", zap.Error(err))
	}
}

func (h *Handler) respond(s interactionSession, ic *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(ic.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		h.logger.Warn("interaction response failed", zap.Error(err))
	}
}

// parseRatingCustomID splits "rate_<n>:<token>".
func parseRatingCustomID(customID string) (int, string, bool) {
	rest := strings.TrimPrefix(customID, gateway.RatingCustomIDPrefix)
	ratingStr, token, found := strings.Cut(rest, ":")
	if !found || token == "" {
		return 0, "", false
	}
	rating, err := strconv.Atoi(ratingStr)
	if err != nil {
		return 0, "", false
	}
	return rating, token, true
}

func ticketIDFromChannelName(name string) (int64, bool) {
	if !strings.HasPrefix(name, ticketChannelNamePrefix) {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(name, ticketChannelNamePrefix), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

func interactionUserID(ic *discordgo.InteractionCreate) string {
	if ic.Member != nil && ic.Member.User != nil {
		return ic.Member.User.ID
	}
	if ic.User != nil {
		return ic.User.ID
	}
	return ""
}

func modalComment(data discordgo.ModalSubmitInteractionData) string {
	for _, row := range data.Components {
		actionsRow, ok := row.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, comp := range actionsRow.Components {
			if input, ok := comp.(*discordgo.TextInput); ok && input.CustomID == "comment" {
				return input.Value
			}
		}
	}
	return ""
}
