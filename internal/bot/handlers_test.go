package bot

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-archiver/internal/domain"
	"github.com/spec-kit/ticket-archiver/internal/feedback"
	"github.com/spec-kit/ticket-archiver/internal/gateway"
	"github.com/spec-kit/ticket-archiver/internal/observability"
	"github.com/spec-kit/ticket-archiver/internal/ratelimit"
	"github.com/spec-kit/ticket-archiver/internal/service"
	"github.com/spec-kit/ticket-archiver/internal/transcript"
)

type fakeSession struct {
	channels  map[string]*discordgo.Channel
	calls     []string
	responses []*discordgo.InteractionResponse
	followups []string
}

func (f *fakeSession) Channel(channelID string, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	f.calls = append(f.calls, "channel")
	channel, ok := f.channels[channelID]
	if !ok {
		return nil, fmt.Errorf("unknown channel %s", channelID)
	}
	return channel, nil
}

func (f *fakeSession) InteractionRespond(_ *discordgo.Interaction, resp *discordgo.InteractionResponse, _ ...discordgo.RequestOption) error {
	f.calls = append(f.calls, "respond")
	f.responses = append(f.responses, resp)
	return nil
}

func (f *fakeSession) FollowupMessageCreate(_ *discordgo.Interaction, _ bool, data *discordgo.WebhookParams, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.calls = append(f.calls, "followup")
	f.followups = append(f.followups, data.Content)
	return &discordgo.Message{}, nil
}

type ticketStore struct {
	tickets map[int64]*domain.Ticket
	closed  []int64
}

func (s *ticketStore) Create(_ context.Context, _ *domain.Ticket) error { return nil }

func (s *ticketStore) GetByID(_ context.Context, id int64) (*domain.Ticket, error) {
	ticket, ok := s.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *ticket
	return &copied, nil
}

func (s *ticketStore) Close(_ context.Context, id int64, closedAt time.Time) error {
	s.closed = append(s.closed, id)
	ticket := s.tickets[id]
	ticket.Status = domain.TicketStatusClosed
	ticket.ClosedAt = &closedAt
	return nil
}

type feedbackStore struct {
	records map[int64]*domain.Feedback
}

func (s *feedbackStore) Create(_ context.Context, record *domain.Feedback) error {
	s.records[record.TicketID] = record
	return nil
}

func (s *feedbackStore) GetByTicket(_ context.Context, ticketID int64) (*domain.Feedback, error) {
	record, ok := s.records[ticketID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return record, nil
}

type silentChat struct{}

func (silentChat) History(_ context.Context, _ string, _ int) ([]gateway.Message, error) {
	return nil, nil
}
func (silentChat) SendDirectMessage(_ context.Context, _, _ string) error { return nil }
func (silentChat) SendFeedbackPrompt(_ context.Context, _ string, _ int64, _ string) error {
	return nil
}
func (silentChat) PostToChannel(_ context.Context, _, _ string) error { return nil }
func (silentChat) DeleteChannel(_ context.Context, _ string) error    { return nil }

type noopCollector struct{}

func (noopCollector) Collect(_ context.Context, _ string) ([]domain.TranscriptMessage, []domain.AttachmentRef, error) {
	return nil, nil, nil
}

type noopArchiver struct{}

func (noopArchiver) Archive(_ context.Context, _ []domain.AttachmentRef) []domain.ArchivedAttachment {
	return nil
}

type noopRenderer struct{}

func (noopRenderer) Render(_ transcript.RenderInput) (*transcript.Document, error) {
	return &transcript.Document{Path: "logs/ticket.pdf", Pages: 1}, nil
}

type noopReaper struct{}

func (noopReaper) Schedule(_ string, _ time.Duration) {}

type handlerFixture struct {
	handler *Handler
	session *fakeSession
	tickets *ticketStore
	metrics *observability.Metrics
	prompts *feedback.PromptSigner
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	prompts := feedback.NewPromptSigner("test-secret")
	metrics := observability.NewMetrics()
	limiter := ratelimit.NewLimiter(ratelimit.NewMemoryStore(), 5*time.Minute)
	tickets := &ticketStore{tickets: map[int64]*domain.Ticket{
		1: {ID: 1, RequesterID: "user-1", Content: "Cannot log in", Status: domain.TicketStatusOpen},
		2: {ID: 2, RequesterID: "user-2", Content: "Wrong invoice", Status: domain.TicketStatusOpen},
	}}

	closures := service.NewClosureService(service.ClosureDependencies{
		TicketRepo:        tickets,
		Collector:         noopCollector{},
		Archiver:          noopArchiver{},
		Renderer:          noopRenderer{},
		Chat:              silentChat{},
		Prompts:           prompts,
		Reaper:            noopReaper{},
		Metrics:           metrics,
		Logger:            zap.NewNop(),
		OperatorChannelID: "ops",
		DeleteGrace:       10 * time.Second,
	})
	feedbacks := service.NewFeedbackService(service.FeedbackDependencies{
		FeedbackRepo: &feedbackStore{records: map[int64]*domain.Feedback{}},
		Chat:         silentChat{},
		Metrics:      metrics,
		Logger:       zap.NewNop(),
	})

	return &handlerFixture{
		handler: NewHandler(closures, feedbacks, prompts, limiter, metrics, zap.NewNop()),
		session: &fakeSession{channels: map[string]*discordgo.Channel{
			"chan-1": {ID: "chan-1", Name: "ticket-1"},
			"chan-2": {ID: "chan-2", Name: "ticket-2"},
		}},
		tickets: tickets,
		metrics: metrics,
		prompts: prompts,
	}
}

func closeInteraction(channelID, userID string) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		ID:        "close-" + channelID,
		Type:      discordgo.InteractionMessageComponent,
		ChannelID: channelID,
		Data:      discordgo.MessageComponentInteractionData{CustomID: closeTicketCustomID},
		Member:    &discordgo.Member{User: &discordgo.User{ID: userID}},
	}}
}

func ratingInteraction(rating int, token, userID string) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		ID:   "rating",
		Type: discordgo.InteractionMessageComponent,
		Data: discordgo.MessageComponentInteractionData{
			CustomID: fmt.Sprintf("%s%d:%s", gateway.RatingCustomIDPrefix, rating, token),
		},
		User: &discordgo.User{ID: userID},
	}}
}

func commentModalInteraction(rating int, token, userID, comment string) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		ID:   "modal",
		Type: discordgo.InteractionModalSubmit,
		Data: discordgo.ModalSubmitInteractionData{
			CustomID: fmt.Sprintf("%s%d:%s", commentModalIDPrefix, rating, token),
			Components: []discordgo.MessageComponent{
				&discordgo.ActionsRow{Components: []discordgo.MessageComponent{
					&discordgo.TextInput{CustomID: "comment", Value: comment},
				}},
			},
		},
		User: &discordgo.User{ID: userID},
	}}
}

func TestCloseIsNeverRateLimited(t *testing.T) {
	f := newHandlerFixture(t)

	f.handler.handleClose(f.session, closeInteraction("chan-1", "staff-1"))
	f.handler.handleClose(f.session, closeInteraction("chan-2", "staff-1"))

	// both closures went through back to back
	require.Equal(t, []int64{1, 2}, f.tickets.closed)
	require.Zero(t, f.metrics.Snapshot()[observability.MetricRateLimited])
	for _, msg := range f.session.followups {
		require.NotContains(t, msg, "Too many requests")
	}
}

func TestCloseAcksBeforeRunningPipeline(t *testing.T) {
	f := newHandlerFixture(t)

	f.handler.handleClose(f.session, closeInteraction("chan-1", "staff-1"))

	// the deferred ack is the very first session call; the outcome arrives
	// as a follow-up once the pipeline finished
	require.Equal(t, []string{"respond", "channel", "followup"}, f.session.calls)
	require.Equal(t, discordgo.InteractionResponseDeferredChannelMessageWithSource, f.session.responses[0].Type)
	require.Equal(t, []string{"Ticket closed. This channel will be deleted in a few seconds."}, f.session.followups)
	require.Equal(t, []int64{1}, f.tickets.closed)
}

func TestRatingPressesAreThrottled(t *testing.T) {
	f := newHandlerFixture(t)
	token, err := f.prompts.Sign(feedback.Prompt{TicketID: 1, RequesterID: "user-1"})
	require.NoError(t, err)

	f.handler.handleRating(f.session, ratingInteraction(5, token, "user-1"))
	f.handler.handleRating(f.session, ratingInteraction(5, token, "user-1"))

	require.Len(t, f.session.responses, 2)
	require.Equal(t, discordgo.InteractionResponseModal, f.session.responses[0].Type)
	require.Equal(t, discordgo.InteractionResponseChannelMessageWithSource, f.session.responses[1].Type)
	require.Contains(t, f.session.responses[1].Data.Content, "Too many requests")
	require.Equal(t, int64(1), f.metrics.Snapshot()[observability.MetricRateLimited])
}

func TestAcceptedFeedbackClearsCooldown(t *testing.T) {
	f := newHandlerFixture(t)
	token, err := f.prompts.Sign(feedback.Prompt{TicketID: 1, RequesterID: "user-1"})
	require.NoError(t, err)

	f.handler.handleRating(f.session, ratingInteraction(5, token, "user-1"))
	f.handler.handleCommentSubmit(f.session, commentModalInteraction(5, token, "user-1", "great support"))

	// the accepted submission cleared the cooldown, so rating another of
	// the user's tickets right away still gets the modal
	token2, err := f.prompts.Sign(feedback.Prompt{TicketID: 2, RequesterID: "user-1"})
	require.NoError(t, err)
	f.handler.handleRating(f.session, ratingInteraction(4, token2, "user-1"))

	last := f.session.responses[len(f.session.responses)-1]
	require.Equal(t, discordgo.InteractionResponseModal, last.Type)
	require.Zero(t, f.metrics.Snapshot()[observability.MetricRateLimited])
}

func TestParseRatingCustomID(t *testing.T) {
	tests := []struct {
		name     string
		customID string
		rating   int
		token    string
		ok       bool
	}{
		{name: "valid", customID: "rate_4:abc.def.ghi", rating: 4, token: "abc.def.ghi", ok: true},
		{name: "token with colons survives", customID: "rate_5:a:b", rating: 5, token: "a:b", ok: true},
		{name: "missing token", customID: "rate_4", ok: false},
		{name: "empty token", customID: "rate_4:", ok: false},
		{name: "non-numeric rating", customID: "rate_x:tok", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rating, token, ok := parseRatingCustomID(tt.customID)
			require.Equal(t, tt.ok, ok)
			if tt.ok {
				require.Equal(t, tt.rating, rating)
				require.Equal(t, tt.token, token)
			}
		})
	}
}

func TestTicketIDFromChannelName(t *testing.T) {
	id, ok := ticketIDFromChannelName("ticket-42")
	require.True(t, ok)
	require.Equal(t, int64(42), id)

	for _, name := range []string{"general", "ticket-", "ticket-abc", "tickets-42"} {
		_, ok := ticketIDFromChannelName(name)
		require.False(t, ok, "name %q", name)
	}
}

func TestInteractionUserIDPrefersGuildMember(t *testing.T) {
	ic := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Member: &discordgo.Member{User: &discordgo.User{ID: "member-1"}},
		User:   &discordgo.User{ID: "dm-1"},
	}}
	require.Equal(t, "member-1", interactionUserID(ic))

	ic.Member = nil
	require.Equal(t, "dm-1", interactionUserID(ic))

	ic.User = nil
	require.Equal(t, "", interactionUserID(ic))
}

func TestModalCommentExtractsTextInput(t *testing.T) {
	data := discordgo.ModalSubmitInteractionData{
		CustomID: "feedback_comment:4:tok",
		Components: []discordgo.MessageComponent{
			&discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				&discordgo.TextInput{CustomID: "comment", Value: "great support"},
			}},
		},
	}
	require.Equal(t, "great support", modalComment(data))

	empty := discordgo.ModalSubmitInteractionData{CustomID: "feedback_comment:4:tok"}
	require.Equal(t, "", modalComment(empty))
}
