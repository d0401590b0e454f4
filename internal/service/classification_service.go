package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/kyma-lab/aws-defectTicket/internal/classifier"
	"github.com/kyma-lab/aws-defectTicket/internal/domain"
	"github.com/kyma-lab/aws-defectTicket/internal/events"
	"github.com/kyma-lab/aws-defectTicket/internal/observability"
	"github.com/kyma-lab/aws-defectTicket/internal/repository"
	"github.com/kyma-lab/aws-defectTicket/internal/rules"
	apperrors "github.com/kyma-lab/aws-defectTicket/pkg/util/errorutil"
)

const classificationReason = "AI+Rules classification"

// ClassificationService merges the AI verdict with the rule engine and persists it.
type ClassificationService struct {
	tickets    repository.TicketRepository
	classifier classifier.Classifier
	engine     *rules.Engine
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        Clock
}

// ClassificationDependencies bundles collaborators for the classification service.
type ClassificationDependencies struct {
	TicketRepo repository.TicketRepository
	Classifier classifier.Classifier
	Engine     *rules.Engine
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Clock      Clock
}

// NewClassificationService constructs the service.
func NewClassificationService(deps ClassificationDependencies) *ClassificationService {
	logger := loggerOrNop(deps.Logger)
	engine := deps.Engine
	if engine == nil {
		engine = rules.NewEngine(logger, rules.DefaultRules()...)
	}
	return &ClassificationService{
		tickets:    deps.TicketRepo,
		classifier: deps.Classifier,
		engine:     engine,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
		now:        clockOrDefault(deps.Clock),
	}
}

// Classify performs one read, one classifier call and one conditional write.
// Any classifier failure leaves the ticket untouched. ConcurrentModification
// means the whole call must be retried.
func (s *ClassificationService) Classify(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.Get(ctx, ticketID)
	if err != nil {
		return nil, mapRepoError(err, "ticket", ticketID)
	}

	ai, err := s.classifier.Classify(ctx, ticket)
	if err != nil {
		s.logger.Warn("classifier failed", zap.String("ticket_id", ticketID), zap.Error(err))
		if errors.Is(err, classifier.ErrThrottled) {
			return nil, apperrors.NewThrottled(err)
		}
		return nil, apperrors.NewClassifierFailure(err)
	}

	final := ai
	ruleVerdict, ruleName, matched := s.engine.Evaluate(ticket)
	if matched {
		final = s.engine.Combine(ai, ruleVerdict)
	}

	expected := ticket.Version
	ticket.Classification = &final
	ticket.Transition(domain.TicketStatusClassified, domain.ActorSystem, classificationReason, s.now())
	if err := s.tickets.Update(ctx, ticket, expected); err != nil {
		return nil, mapRepoError(err, "ticket", ticketID)
	}

	s.metrics.RecordClassification(string(final.ClassificationSource), string(final.Severity))
	s.logger.Info("ticket classified",
		zap.String("ticket_id", ticketID),
		zap.String("source", string(final.ClassificationSource)),
		zap.String("severity", string(final.Severity)),
		zap.Bool("requires_approval", final.RequiresHumanApproval))
	publishEvent(ctx, s.dispatcher, s.now, events.Event{
		Type:     events.EventTicketClassified,
		TicketID: ticketID,
		Payload:  events.TicketClassifiedPayload{Classification: final, Rule: ruleName},
	})
	return ticket, nil
}
