package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/kyma-lab/aws-defectTicket/internal/domain"
	"github.com/kyma-lab/aws-defectTicket/internal/events"
	"github.com/kyma-lab/aws-defectTicket/internal/queue"
	"github.com/kyma-lab/aws-defectTicket/internal/repository"
	"github.com/kyma-lab/aws-defectTicket/internal/rules"
	"github.com/kyma-lab/aws-defectTicket/internal/workflow"
)

var testEpoch = time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// stubClassifier answers by ticket title; unknown titles get a confident LOW verdict.
type stubClassifier struct {
	mu       sync.Mutex
	verdicts map[string]domain.Classification
	errs     []error
	calls    int
	hook     func(*domain.Ticket)
}

func newStubClassifier() *stubClassifier {
	return &stubClassifier{verdicts: map[string]domain.Classification{}}
}

func (s *stubClassifier) on(title string, sev domain.Severity, confidence float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verdicts[title] = domain.Classification{
		Category:              "Bug",
		Severity:              sev,
		Priority:              3,
		ConfidenceScore:       confidence,
		Reasoning:             "stub",
		ClassificationSource:  domain.SourceLLM,
		RequiresHumanApproval: rules.ConfidencePolicy{Threshold: 0.8}.RequiresApproval(confidence),
	}
}

// failWith queues errors returned by the next calls, in order.
func (s *stubClassifier) failWith(errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, errs...)
}

func (s *stubClassifier) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *stubClassifier) Classify(_ context.Context, ticket *domain.Ticket) (domain.Classification, error) {
	s.mu.Lock()
	s.calls++
	hook := s.hook
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		s.mu.Unlock()
		return domain.Classification{}, err
	}
	verdict, ok := s.verdicts[ticket.Title]
	s.mu.Unlock()
	if hook != nil {
		hook(ticket)
	}
	if !ok {
		verdict = domain.Classification{
			Category:             "Documentation",
			Severity:             domain.SeverityLow,
			Priority:             4,
			ConfidenceScore:      0.92,
			Reasoning:            "stub",
			ClassificationSource: domain.SourceLLM,
		}
	}
	return verdict, nil
}

type harness struct {
	clock          *testClock
	tickets        *repository.MemoryTicketRepository
	approvalRepo   *repository.MemoryApprovalRepository
	ledger         *repository.MemoryResumeFailureLedger
	orchestrator   *workflow.LocalOrchestrator
	queue          *queue.MemoryQueue
	dispatcher     events.Dispatcher
	classifier     *stubClassifier
	classification *ClassificationService
	approvals      *ApprovalService
	ingestion      *IngestionService
	batch          *BatchClassificationService
	progress       *ProgressService
}

type harnessOptions struct {
	approval  ApprovalConfig
	ingestion IngestionConfig
	location  *time.Location
}

func newHarness(t *testing.T, opts ...func(*harnessOptions)) *harness {
	t.Helper()
	options := harnessOptions{
		approval:  ApprovalConfig{Timeout: 24 * time.Hour, TrackDivergence: true, ResumeTimeout: time.Second},
		ingestion: IngestionConfig{TTL: 90 * 24 * time.Hour, PollingEnabled: true, MaxMessages: 10},
		location:  time.UTC,
	}
	for _, opt := range opts {
		opt(&options)
	}

	logger := zaptest.NewLogger(t)
	h := &harness{
		clock:        &testClock{now: testEpoch},
		tickets:      repository.NewMemoryTicketRepository(),
		approvalRepo: repository.NewMemoryApprovalRepository(),
		ledger:       repository.NewMemoryResumeFailureLedger(),
		orchestrator: workflow.NewLocalOrchestrator(logger),
		queue:        queue.NewMemoryQueue(),
		dispatcher:   events.NewInMemoryDispatcher(logger),
		classifier:   newStubClassifier(),
	}
	h.classification = NewClassificationService(ClassificationDependencies{
		TicketRepo: h.tickets,
		Classifier: h.classifier,
		Dispatcher: h.dispatcher,
		Logger:     logger,
		Clock:      h.clock.Now,
	})
	h.approvals = NewApprovalService(ApprovalDependencies{
		ApprovalRepo: h.approvalRepo,
		TicketRepo:   h.tickets,
		Orchestrator: h.orchestrator,
		Ledger:       h.ledger,
		Dispatcher:   h.dispatcher,
		Logger:       logger,
		Clock:        h.clock.Now,
		Config:       options.approval,
	})
	h.ingestion = NewIngestionService(IngestionDependencies{
		TicketRepo:   h.tickets,
		Queue:        h.queue,
		Orchestrator: h.orchestrator,
		Dispatcher:   h.dispatcher,
		Logger:       logger,
		Clock:        h.clock.Now,
		Config:       options.ingestion,
	})
	h.batch = NewBatchClassificationService(h.tickets, h.classification, h.approvals,
		RetryPolicy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond}, logger)
	h.progress = NewProgressService(h.tickets, h.approvalRepo, options.location, h.clock.Now, logger)
	return h
}

func (h *harness) seedTicket(t *testing.T, batchID, title string) *domain.Ticket {
	t.Helper()
	return h.seedTicketAt(t, batchID, title, h.clock.Now())
}

func (h *harness) seedTicketAt(t *testing.T, batchID, title string, createdAt time.Time) *domain.Ticket {
	t.Helper()
	ticket := &domain.Ticket{
		ID:              uuid.NewString(),
		BatchID:         batchID,
		SourceSystem:    "JIRA",
		SourceReference: "REF-" + title,
		Title:           title,
		Description:     "seeded for tests",
		CreatedAt:       createdAt,
	}
	ticket.Transition(domain.TicketStatusNew, domain.ActorSystem, "Batch ingestion", createdAt)
	require.NoError(t, h.tickets.Create(context.Background(), ticket))
	return ticket
}

func (h *harness) setStatus(t *testing.T, ticketID string, status domain.TicketStatus) {
	t.Helper()
	ctx := context.Background()
	ticket, err := h.tickets.Get(ctx, ticketID)
	require.NoError(t, err)
	expected := ticket.Version
	ticket.Transition(status, domain.ActorSystem, "test", h.clock.Now())
	require.NoError(t, h.tickets.Update(ctx, ticket, expected))
}
