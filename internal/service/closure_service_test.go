package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
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

type stubTicketRepo struct {
	tickets  map[int64]*domain.Ticket
	closeErr error
	closed   []int64
}

func (s *stubTicketRepo) Create(_ context.Context, _ *domain.Ticket) error { return nil }

func (s *stubTicketRepo) GetByID(_ context.Context, id int64) (*domain.Ticket, error) {
	ticket, ok := s.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *ticket
	return &copied, nil
}

func (s *stubTicketRepo) Close(_ context.Context, id int64, closedAt time.Time) error {
	if s.closeErr != nil {
		return s.closeErr
	}
	s.closed = append(s.closed, id)
	ticket := s.tickets[id]
	ticket.Status = domain.TicketStatusClosed
	ticket.ClosedAt = &closedAt
	return nil
}

type feedbackPromptCall struct {
	userID   string
	ticketID int64
	token    string
}

type stubGateway struct {
	mu          sync.Mutex
	prompts     []feedbackPromptCall
	promptErr   error
	posts       map[string][]string
	postErr     error
	dms         []string
	dmErr       error
	deleted     []string
	deleteErr   error
	historyErr  error
	historyMsgs []gateway.Message
}

func newStubGateway() *stubGateway {
	return &stubGateway{posts: map[string][]string{}}
}

func (s *stubGateway) History(_ context.Context, _ string, _ int) ([]gateway.Message, error) {
	return s.historyMsgs, s.historyErr
}

func (s *stubGateway) SendDirectMessage(_ context.Context, userID, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dmErr != nil {
		return s.dmErr
	}
	s.dms = append(s.dms, userID+": "+content)
	return nil
}

func (s *stubGateway) SendFeedbackPrompt(_ context.Context, userID string, ticketID int64, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.promptErr != nil {
		return s.promptErr
	}
	s.prompts = append(s.prompts, feedbackPromptCall{userID: userID, ticketID: ticketID, token: token})
	return nil
}

func (s *stubGateway) PostToChannel(_ context.Context, channelID, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.postErr != nil {
		return s.postErr
	}
	s.posts[channelID] = append(s.posts[channelID], content)
	return nil
}

func (s *stubGateway) DeleteChannel(_ context.Context, channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.deleted = append(s.deleted, channelID)
	return nil
}

type stubCollector struct {
	messages []domain.TranscriptMessage
	refs     []domain.AttachmentRef
	err      error
}

func (s *stubCollector) Collect(_ context.Context, _ string) ([]domain.TranscriptMessage, []domain.AttachmentRef, error) {
	return s.messages, s.refs, s.err
}

type stubArchiver struct {
	archived []domain.ArchivedAttachment
}

func (s *stubArchiver) Archive(_ context.Context, _ []domain.AttachmentRef) []domain.ArchivedAttachment {
	return s.archived
}

type stubRenderer struct {
	doc *transcript.Document
	err error
	in  transcript.RenderInput
}

func (s *stubRenderer) Render(in transcript.RenderInput) (*transcript.Document, error) {
	s.in = in
	return s.doc, s.err
}

type stubReaper struct {
	channelIDs []string
	delays     []time.Duration
}

func (s *stubReaper) Schedule(channelID string, delay time.Duration) {
	s.channelIDs = append(s.channelIDs, channelID)
	s.delays = append(s.delays, delay)
}

type recordingDispatcher struct {
	events []events.Event
}

func (d *recordingDispatcher) Publish(_ context.Context, event events.Event) error {
	d.events = append(d.events, event)
	return nil
}

func (d *recordingDispatcher) Subscribe(_ events.EventType, _ events.EventHandler) {}

type closureFixture struct {
	service    *ClosureService
	repo       *stubTicketRepo
	chat       *stubGateway
	collector  *stubCollector
	renderer   *stubRenderer
	reaper     *stubReaper
	dispatcher *recordingDispatcher
	prompts    *feedback.PromptSigner
}

func newClosureFixture(t *testing.T) *closureFixture {
	t.Helper()
	repo := &stubTicketRepo{tickets: map[int64]*domain.Ticket{
		1: {ID: 1, RequesterID: "user-1", Content: "Cannot log in", Status: domain.TicketStatusOpen},
	}}
	chat := newStubGateway()
	collector := &stubCollector{messages: []domain.TranscriptMessage{
		{Author: "user-1", Content: "cannot log in"},
		{Author: "staff", Content: "fixed"},
	}}
	renderer := &stubRenderer{doc: &transcript.Document{Path: "logs/ticket_1_x.pdf", Pages: 2}}
	reaper := &stubReaper{}
	dispatcher := &recordingDispatcher{}
	prompts := feedback.NewPromptSigner("test-secret")

	svc := NewClosureService(ClosureDependencies{
		TicketRepo:        repo,
		Collector:         collector,
		Archiver:          &stubArchiver{},
		Renderer:          renderer,
		Chat:              chat,
		Prompts:           prompts,
		Reaper:            reaper,
		Dispatcher:        dispatcher,
		Metrics:           observability.NewMetrics(),
		Logger:            zap.NewNop(),
		OperatorChannelID: "ops",
		DeleteGrace:       10 * time.Second,
	})
	return &closureFixture{
		service:    svc,
		repo:       repo,
		chat:       chat,
		collector:  collector,
		renderer:   renderer,
		reaper:     reaper,
		dispatcher: dispatcher,
		prompts:    prompts,
	}
}

func TestCloseHappyPath(t *testing.T) {
	f := newClosureFixture(t)

	require.NoError(t, f.service.Close(context.Background(), 1, "chan-1"))
	require.Equal(t, []int64{1}, f.repo.closed)

	// renderer consumed the ticket and the collected transcript
	require.Equal(t, int64(1), f.renderer.in.TicketID)
	require.Equal(t, "Cannot log in", f.renderer.in.IssueText)
	require.Len(t, f.renderer.in.Messages, 2)

	// feedback prompt bound to the original requester
	require.Len(t, f.chat.prompts, 1)
	require.Equal(t, "user-1", f.chat.prompts[0].userID)
	prompt, err := f.prompts.Parse(f.chat.prompts[0].token)
	require.NoError(t, err)
	require.Equal(t, feedback.Prompt{TicketID: 1, RequesterID: "user-1"}, prompt)

	// channel teardown scheduled with the grace delay
	require.Equal(t, []string{"chan-1"}, f.reaper.channelIDs)
	require.Equal(t, []time.Duration{10 * time.Second}, f.reaper.delays)

	var types []events.EventType
	for _, e := range f.dispatcher.events {
		types = append(types, e.Type)
	}
	require.Equal(t, []events.EventType{events.EventTicketClosed, events.EventTranscriptArchived}, types)
}

func TestCloseRejectsUnknownTicket(t *testing.T) {
	f := newClosureFixture(t)

	err := f.service.Close(context.Background(), 99, "chan-9")
	require.True(t, util.IsCode(err, "NOT_FOUND"))
	require.Empty(t, f.repo.closed)
}

func TestCloseRejectsAlreadyClosedTicket(t *testing.T) {
	f := newClosureFixture(t)
	closedAt := time.Now()
	f.repo.tickets[1].Status = domain.TicketStatusClosed
	f.repo.tickets[1].ClosedAt = &closedAt

	err := f.service.Close(context.Background(), 1, "chan-1")
	require.True(t, util.IsCode(err, "INVALID_STATE"))
	require.Empty(t, f.repo.closed)
	require.Empty(t, f.chat.prompts)
	require.Empty(t, f.reaper.channelIDs)
}

func TestCloseRejectsConcurrentClose(t *testing.T) {
	f := newClosureFixture(t)
	f.repo.closeErr = repository.ErrNotOpen

	err := f.service.Close(context.Background(), 1, "chan-1")
	require.True(t, util.IsCode(err, "INVALID_STATE"))
}

func TestCloseCollectionFailureKeepsTicketClosed(t *testing.T) {
	f := newClosureFixture(t)
	f.collector.err = util.NewCollectionFailed(errors.New("history unavailable"))

	require.NoError(t, f.service.Close(context.Background(), 1, "chan-1"))
	require.Equal(t, []int64{1}, f.repo.closed)

	// operators are notified; the rest of the pipeline never ran
	require.Len(t, f.chat.posts["ops"], 1)
	require.Contains(t, f.chat.posts["ops"][0], "retrieve the conversation manually")
	require.Empty(t, f.chat.prompts)
	require.Empty(t, f.reaper.channelIDs)
}

func TestCloseRenderFailureNotifiesOperators(t *testing.T) {
	f := newClosureFixture(t)
	f.renderer.doc = nil
	f.renderer.err = errors.New("cannot open output")

	require.NoError(t, f.service.Close(context.Background(), 1, "chan-1"))
	require.Len(t, f.chat.posts["ops"], 1)
	require.Empty(t, f.chat.prompts)
}

func TestClosePromptDeliveryFailureFallsBackToOperators(t *testing.T) {
	f := newClosureFixture(t)
	f.chat.promptErr = errors.New("dms disabled")

	require.NoError(t, f.service.Close(context.Background(), 1, "chan-1"))
	require.Len(t, f.chat.posts["ops"], 1)
	require.Contains(t, f.chat.posts["ops"][0], "Could not DM")
	require.True(t, strings.Contains(f.chat.posts["ops"][0], "#1"))

	// teardown still happens; closure succeeded
	require.Equal(t, []string{"chan-1"}, f.reaper.channelIDs)
}
