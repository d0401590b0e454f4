package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kyma-lab/aws-defectTicket/internal/domain"
	"github.com/kyma-lab/aws-defectTicket/internal/events"
	"github.com/kyma-lab/aws-defectTicket/internal/observability"
	"github.com/kyma-lab/aws-defectTicket/internal/queue"
	"github.com/kyma-lab/aws-defectTicket/internal/repository"
	"github.com/kyma-lab/aws-defectTicket/internal/workflow"
	apperrors "github.com/kyma-lab/aws-defectTicket/pkg/util/errorutil"
)

// Queue message outcomes reported to metrics.
const (
	QueueOutcomeProcessed = "processed"
	QueueOutcomeFailed    = "failed"
)

// IngestionConfig tunes ingestion and queue draining.
type IngestionConfig struct {
	TTL            time.Duration
	PollingEnabled bool
	MaxMessages    int
	WaitSeconds    int
	SkipExecution  bool
}

// IngestionService persists batches of tickets and drains the inbound queue.
type IngestionService struct {
	tickets      repository.TicketRepository
	queue        queue.Queue
	orchestrator workflow.Orchestrator
	dispatcher   events.Dispatcher
	metrics      *observability.Metrics
	logger       *zap.Logger
	now          Clock
	cfg          IngestionConfig
}

// IngestionDependencies bundles collaborators for the ingestion service.
type IngestionDependencies struct {
	TicketRepo   repository.TicketRepository
	Queue        queue.Queue
	Orchestrator workflow.Orchestrator
	Dispatcher   events.Dispatcher
	Metrics      *observability.Metrics
	Logger       *zap.Logger
	Clock        Clock
	Config       IngestionConfig
}

// NewIngestionService constructs the service.
func NewIngestionService(deps IngestionDependencies) *IngestionService {
	cfg := deps.Config
	if cfg.TTL <= 0 {
		cfg.TTL = 90 * 24 * time.Hour
	}
	if cfg.MaxMessages <= 0 {
		cfg.MaxMessages = 10
	}
	return &IngestionService{
		tickets:      deps.TicketRepo,
		queue:        deps.Queue,
		orchestrator: deps.Orchestrator,
		dispatcher:   deps.Dispatcher,
		metrics:      deps.Metrics,
		logger:       loggerOrNop(deps.Logger),
		now:          clockOrDefault(deps.Clock),
		cfg:          cfg,
	}
}

// IngestionResult reports a direct ingestion.
type IngestionResult struct {
	BatchID      string
	TicketIDs    []string
	SuccessCount int
	FailureCount int
}

// EnqueueResult reports a queued ingestion.
type EnqueueResult struct {
	BatchID       string
	TicketsQueued int
	MessageID     string
	Status        string
}

// DrainResult summarizes one queue drain.
type DrainResult struct {
	Received  int
	Processed int
	Failed    int
}

// ArchiveResult summarizes one retention sweep.
type ArchiveResult struct {
	Archived  int
	Conflicts int
}

// ValidateBatch checks a batch request and reports field-level reasons.
func ValidateBatch(req domain.BatchIngestionRequest) error {
	fields := map[string]string{}
	if strings.TrimSpace(req.BatchID) == "" {
		fields["batchId"] = "required"
	}
	if strings.TrimSpace(req.SourceSystem) == "" {
		fields["sourceSystem"] = "required"
	}
	if len(req.Tickets) == 0 {
		fields["tickets"] = "must contain at least one ticket"
	}
	for i, t := range req.Tickets {
		if strings.TrimSpace(t.Title) == "" {
			fields[fmt.Sprintf("tickets[%d].title", i)] = "required"
		}
	}
	if len(fields) > 0 {
		return apperrors.NewValidationError("invalid batch ingestion request", fields)
	}
	return nil
}

// IngestBatch persists every ticket of the batch as NEW. Tickets that fail to
// persist are counted and skipped.
func (s *IngestionService) IngestBatch(ctx context.Context, req domain.BatchIngestionRequest) (*IngestionResult, error) {
	if err := ValidateBatch(req); err != nil {
		return nil, err
	}

	now := s.now()
	ttl := now.Add(s.cfg.TTL).Unix()
	result := &IngestionResult{BatchID: req.BatchID, TicketIDs: make([]string, 0, len(req.Tickets))}
	for _, input := range req.Tickets {
		ticket := &domain.Ticket{
			ID:              uuid.NewString(),
			BatchID:         req.BatchID,
			SourceSystem:    req.SourceSystem,
			SourceReference: input.SourceReference,
			Title:           input.Title,
			Description:     input.Description,
			CreatedAt:       now,
			TTL:             ttl,
		}
		ticket.Transition(domain.TicketStatusNew, domain.ActorSystem, "Batch ingestion", now)
		if err := s.tickets.Create(ctx, ticket); err != nil {
			result.FailureCount++
			s.logger.Error("ticket ingestion failed",
				zap.String("batch_id", req.BatchID),
				zap.String("source_reference", input.SourceReference),
				zap.Error(err))
			continue
		}
		result.SuccessCount++
		result.TicketIDs = append(result.TicketIDs, ticket.ID)
		publishEvent(ctx, s.dispatcher, s.now, events.Event{
			Type:     events.EventTicketIngested,
			TicketID: ticket.ID,
			Payload: events.TicketIngestedPayload{
				BatchID:      req.BatchID,
				SourceSystem: req.SourceSystem,
				Title:        ticket.Title,
			},
		})
	}

	s.logger.Info("batch ingested",
		zap.String("batch_id", req.BatchID),
		zap.Int("success", result.SuccessCount),
		zap.Int("failed", result.FailureCount))
	return result, nil
}

// EnqueueBatch validates the request and hands it to the inbound queue.
// Tickets are persisted when the queue is drained.
func (s *IngestionService) EnqueueBatch(ctx context.Context, req domain.BatchIngestionRequest) (*EnqueueResult, error) {
	if err := ValidateBatch(req); err != nil {
		return nil, err
	}
	if s.queue == nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("ingestion queue not configured"))
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	messageID, err := s.queue.Send(ctx, string(body))
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("enqueue batch: %w", err))
	}
	s.logger.Info("batch queued",
		zap.String("batch_id", req.BatchID),
		zap.String("message_id", messageID),
		zap.Int("tickets", len(req.Tickets)))
	return &EnqueueResult{
		BatchID:       req.BatchID,
		TicketsQueued: len(req.Tickets),
		MessageID:     messageID,
		Status:        "QUEUED",
	}, nil
}

// executionInput is the claim check handed to the orchestrator.
type executionInput struct {
	BatchID      string `json:"batchId"`
	SourceSystem string `json:"sourceSystem"`
}

// DrainQueue processes one receive worth of messages. Only messages that were
// fully processed are deleted; the rest are left for redelivery. It is safe to
// call concurrently since each receive gets a disjoint set of messages.
func (s *IngestionService) DrainQueue(ctx context.Context) (DrainResult, error) {
	var result DrainResult
	if !s.cfg.PollingEnabled || s.queue == nil {
		return result, nil
	}
	messages, err := s.queue.Receive(ctx, s.cfg.MaxMessages, s.cfg.WaitSeconds)
	if err != nil {
		return result, fmt.Errorf("receive messages: %w", err)
	}
	result.Received = len(messages)
	for _, msg := range messages {
		if err := s.processMessage(ctx, msg); err != nil {
			result.Failed++
			s.metrics.RecordQueueMessage(QueueOutcomeFailed)
			s.logger.Error("queue message failed, leaving for redelivery",
				zap.String("message_id", msg.ID), zap.Error(err))
			continue
		}
		result.Processed++
		s.metrics.RecordQueueMessage(QueueOutcomeProcessed)
	}
	if result.Received > 0 {
		s.logger.Info("queue drained",
			zap.Int("received", result.Received),
			zap.Int("processed", result.Processed),
			zap.Int("failed", result.Failed))
	}
	return result, nil
}

func (s *IngestionService) processMessage(ctx context.Context, msg queue.Message) error {
	var req domain.BatchIngestionRequest
	if err := json.Unmarshal([]byte(msg.Body), &req); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	result, err := s.IngestBatch(ctx, req)
	if err != nil {
		return err
	}
	if result.FailureCount > 0 {
		return fmt.Errorf("batch %s: %d tickets failed to persist", req.BatchID, result.FailureCount)
	}

	if !s.cfg.SkipExecution && s.orchestrator != nil {
		name := fmt.Sprintf("%s-%s", req.BatchID, uuid.NewString())
		arn, err := s.orchestrator.StartExecution(ctx, name, executionInput{
			BatchID:      req.BatchID,
			SourceSystem: req.SourceSystem,
		})
		if err != nil {
			return fmt.Errorf("start execution for batch %s: %w", req.BatchID, err)
		}
		s.logger.Info("execution started", zap.String("batch_id", req.BatchID), zap.String("execution_arn", arn))
	}

	if err := s.queue.Delete(ctx, msg); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

// TicketIDsForBatch lists the ids of every ticket in a batch.
func (s *IngestionService) TicketIDsForBatch(ctx context.Context, batchID string) ([]string, error) {
	if strings.TrimSpace(batchID) == "" {
		return nil, apperrors.NewValidationError("invalid batch id", map[string]string{"batchId": "required"})
	}
	tickets, err := s.tickets.ListByBatch(ctx, batchID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	ids := make([]string, 0, len(tickets))
	for _, t := range tickets {
		ids = append(ids, t.ID)
	}
	return ids, nil
}

// ArchiveExpired moves tickets past their retention horizon to ARCHIVED.
// Tickets are kept; a ticket modified concurrently is retried on the next sweep.
func (s *IngestionService) ArchiveExpired(ctx context.Context) (ArchiveResult, error) {
	var result ArchiveResult
	now := s.now()
	expired, err := s.tickets.ListExpired(ctx, now)
	if err != nil {
		return result, apperrors.NewInternalError(err)
	}
	for i := range expired {
		ticket := &expired[i]
		expected := ticket.Version
		ticket.Transition(domain.TicketStatusArchived, domain.ActorSystem, "Retention period elapsed", now)
		if err := s.tickets.Update(ctx, ticket, expected); err != nil {
			if errors.Is(err, repository.ErrVersionConflict) {
				result.Conflicts++
				continue
			}
			return result, apperrors.NewInternalError(err)
		}
		result.Archived++
	}
	if result.Archived > 0 {
		s.logger.Info("tickets archived", zap.Int("archived", result.Archived), zap.Int("conflicts", result.Conflicts))
	}
	return result, nil
}
