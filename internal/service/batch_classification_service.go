package service

import (
	"context"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kyma-lab/aws-defectTicket/internal/domain"
	"github.com/kyma-lab/aws-defectTicket/internal/repository"
	apperrors "github.com/kyma-lab/aws-defectTicket/pkg/util/errorutil"
)

const localTaskTokenPrefix = "local-test-token-"

// RetryPolicy bounds caller-side retries of a classification.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	exp := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		exp.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		exp.MaxInterval = p.MaxInterval
	}
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(attempts-1)), ctx)
}

// BatchClassificationService runs the classification gate for a whole batch,
// standing in for the orchestrator's map step in local runs.
type BatchClassificationService struct {
	tickets        repository.TicketRepository
	classification *ClassificationService
	approvals      *ApprovalService
	logger         *zap.Logger
	retry          RetryPolicy
}

// NewBatchClassificationService constructs the service.
func NewBatchClassificationService(tickets repository.TicketRepository, classification *ClassificationService, approvals *ApprovalService, retry RetryPolicy, logger *zap.Logger) *BatchClassificationService {
	return &BatchClassificationService{
		tickets:        tickets,
		classification: classification,
		approvals:      approvals,
		logger:         loggerOrNop(logger),
		retry:          retry,
	}
}

// BatchClassificationResult summarizes one batch run.
type BatchClassificationResult struct {
	BatchID          string
	TotalTickets     int
	Classified       int
	ApprovalsCreated int
	Failed           int
}

// ClassifyBatch classifies every ticket of the batch and opens a
// classification review for those that need one.
func (s *BatchClassificationService) ClassifyBatch(ctx context.Context, batchID string) (*BatchClassificationResult, error) {
	if strings.TrimSpace(batchID) == "" {
		return nil, apperrors.NewValidationError("invalid batch id", map[string]string{"batchId": "required"})
	}
	tickets, err := s.tickets.ListByBatch(ctx, batchID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if len(tickets) == 0 {
		return nil, apperrors.NewNotFound("batch", map[string]any{"batchId": batchID})
	}

	result := &BatchClassificationResult{BatchID: batchID, TotalTickets: len(tickets)}
	for _, t := range tickets {
		classified, err := s.ClassifyWithRetry(ctx, t.ID)
		if err != nil {
			result.Failed++
			s.logger.Warn("ticket classification failed",
				zap.String("batch_id", batchID), zap.String("ticket_id", t.ID), zap.Error(err))
			continue
		}
		result.Classified++

		if classified.Classification == nil || !classified.Classification.RequiresHumanApproval {
			continue
		}
		if _, err := s.approvals.CreateApprovalRequest(ctx, CreateApprovalInput{
			TicketID:  classified.ID,
			Gate:      domain.GateClassificationReview,
			TaskToken: localTaskTokenPrefix + uuid.NewString(),
		}); err != nil {
			result.Failed++
			s.logger.Warn("approval request not created",
				zap.String("batch_id", batchID), zap.String("ticket_id", t.ID), zap.Error(err))
			continue
		}
		result.ApprovalsCreated++
	}

	s.logger.Info("batch classified",
		zap.String("batch_id", batchID),
		zap.Int("total", result.TotalTickets),
		zap.Int("classified", result.Classified),
		zap.Int("approvals", result.ApprovalsCreated),
		zap.Int("failed", result.Failed))
	return result, nil
}

// ClassifyWithRetry re-runs the whole classification on Throttled and
// ConcurrentModification. Other failures stop immediately.
func (s *BatchClassificationService) ClassifyWithRetry(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	var ticket *domain.Ticket
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		var err error
		ticket, err = s.classification.Classify(ctx, ticketID)
		if err == nil {
			return nil
		}
		if apperrors.Is(err, apperrors.CodeThrottled) || apperrors.Is(err, apperrors.CodeConcurrentModification) {
			s.logger.Debug("classification retry", zap.String("ticket_id", ticketID), zap.Int("attempt", attempt), zap.Error(err))
			return err
		}
		return backoff.Permanent(err)
	}, s.retry.backOff(ctx))
	if err != nil {
		return nil, err
	}
	return ticket, nil
}
