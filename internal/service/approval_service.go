package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kyma-lab/aws-defectTicket/internal/domain"
	"github.com/kyma-lab/aws-defectTicket/internal/events"
	"github.com/kyma-lab/aws-defectTicket/internal/observability"
	"github.com/kyma-lab/aws-defectTicket/internal/repository"
	"github.com/kyma-lab/aws-defectTicket/internal/workflow"
	apperrors "github.com/kyma-lab/aws-defectTicket/pkg/util/errorutil"
)

// Failure codes sent to the orchestrator when a paused task is not approved.
const (
	ErrorCodeApprovalRejected = "ApprovalRejected"
	ErrorCodeApprovalTimedOut = "ApprovalTimedOut"
)

const maxCommentLength = 4000

// ApprovalConfig tunes the HITL workflow.
type ApprovalConfig struct {
	Timeout              time.Duration
	TrackDivergence      bool
	SkipWorkflowCallback bool
	ResumeTimeout        time.Duration
}

// ApprovalService owns the approval state machine and exactly-once resumption.
type ApprovalService struct {
	approvals    repository.ApprovalRepository
	tickets      repository.TicketRepository
	orchestrator workflow.Orchestrator
	ledger       repository.ResumeFailureLedger
	dispatcher   events.Dispatcher
	metrics      *observability.Metrics
	logger       *zap.Logger
	now          Clock
	cfg          ApprovalConfig
}

// ApprovalDependencies bundles collaborators for the approval service.
type ApprovalDependencies struct {
	ApprovalRepo repository.ApprovalRepository
	TicketRepo   repository.TicketRepository
	Orchestrator workflow.Orchestrator
	Ledger       repository.ResumeFailureLedger
	Dispatcher   events.Dispatcher
	Metrics      *observability.Metrics
	Logger       *zap.Logger
	Clock        Clock
	Config       ApprovalConfig
}

// NewApprovalService constructs the service.
func NewApprovalService(deps ApprovalDependencies) *ApprovalService {
	cfg := deps.Config
	if cfg.Timeout <= 0 {
		cfg.Timeout = 24 * time.Hour
	}
	ledger := deps.Ledger
	if ledger == nil {
		ledger = repository.NewMemoryResumeFailureLedger()
	}
	return &ApprovalService{
		approvals:    deps.ApprovalRepo,
		tickets:      deps.TicketRepo,
		orchestrator: deps.Orchestrator,
		ledger:       ledger,
		dispatcher:   deps.Dispatcher,
		metrics:      deps.Metrics,
		logger:       loggerOrNop(deps.Logger),
		now:          clockOrDefault(deps.Clock),
		cfg:          cfg,
	}
}

// CreateApprovalInput binds a paused orchestrator task to a ticket.
type CreateApprovalInput struct {
	TicketID  string
	Gate      domain.ApprovalGate
	TaskToken string
}

// DecisionInput is a reviewer's verdict.
type DecisionInput struct {
	ApprovalID    string
	Approved      bool
	ReviewerEmail string
	Comments      string
}

// approvalContext is the immutable snapshot shown to reviewers.
type approvalContext struct {
	TicketID        string          `json:"ticketId"`
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	SourceSystem    string          `json:"sourceSystem"`
	SourceReference string          `json:"sourceReference"`
	Category        string          `json:"category,omitempty"`
	Severity        domain.Severity `json:"severity,omitempty"`
	Priority        *int            `json:"priority,omitempty"`
	Confidence      *float64        `json:"confidence,omitempty"`
	Reasoning       string          `json:"reasoning,omitempty"`
}

// CreateApprovalRequest records a pause point. It never calls the orchestrator.
func (s *ApprovalService) CreateApprovalRequest(ctx context.Context, input CreateApprovalInput) (*domain.ApprovalRequest, error) {
	fields := map[string]string{}
	if strings.TrimSpace(input.TicketID) == "" {
		fields["ticketId"] = "required"
	}
	if !input.Gate.Valid() {
		fields["gate"] = "must be CLASSIFICATION_REVIEW or FINAL_APPROVAL"
	}
	if strings.TrimSpace(input.TaskToken) == "" {
		fields["taskToken"] = "required"
	}
	if len(fields) > 0 {
		return nil, apperrors.NewValidationError("invalid approval request", fields)
	}

	ticket, err := s.tickets.Get(ctx, input.TicketID)
	if err != nil {
		return nil, mapRepoError(err, "ticket", input.TicketID)
	}

	snapshot, recommendation, err := snapshotTicket(ticket)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	now := s.now()
	approval := &domain.ApprovalRequest{
		ID:               uuid.NewString(),
		TicketID:         ticket.ID,
		Gate:             input.Gate,
		Status:           domain.ApprovalStatusPending,
		TaskToken:        input.TaskToken,
		Context:          snapshot,
		AIRecommendation: recommendation,
		CreatedAt:        now,
		ExpiresAt:        now.Add(s.cfg.Timeout),
	}
	if err := s.approvals.Create(ctx, approval); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewConflict("a pending approval already exists for this ticket and gate",
				map[string]any{"ticketId": ticket.ID, "gate": input.Gate})
		}
		return nil, mapRepoError(err, "approval", approval.ID)
	}

	if err := advanceTicket(ctx, s.tickets, ticket.ID, input.Gate.PendingStatus(), domain.ActorSystem,
		fmt.Sprintf("Awaiting %s", input.Gate), now); err != nil {
		s.logger.Warn("ticket status not advanced after approval creation",
			zap.String("ticket_id", ticket.ID), zap.String("approval_id", approval.ID), zap.Error(err))
	}

	s.metrics.RecordApprovalCreated(string(approval.Gate))
	s.logger.Info("approval request created",
		zap.String("approval_id", approval.ID),
		zap.String("ticket_id", ticket.ID),
		zap.String("gate", string(approval.Gate)),
		zap.Time("expires_at", approval.ExpiresAt))
	publishEvent(ctx, s.dispatcher, s.now, events.Event{
		Type:     events.EventApprovalRequested,
		TicketID: ticket.ID,
		Payload: events.ApprovalRequestedPayload{
			ApprovalID: approval.ID,
			Gate:       approval.Gate,
			ExpiresAt:  approval.ExpiresAt,
		},
	})
	return approval, nil
}

func snapshotTicket(ticket *domain.Ticket) (string, string, error) {
	snapshot := approvalContext{
		TicketID:        ticket.ID,
		Title:           ticket.Title,
		Description:     ticket.Description,
		SourceSystem:    ticket.SourceSystem,
		SourceReference: ticket.SourceReference,
	}
	recommendation := ""
	if c := ticket.Classification; c != nil {
		priority, confidence := c.Priority, c.ConfidenceScore
		snapshot.Category = c.Category
		snapshot.Severity = c.Severity
		snapshot.Priority = &priority
		snapshot.Confidence = &confidence
		snapshot.Reasoning = c.Reasoning
		raw, err := json.Marshal(c)
		if err != nil {
			return "", "", fmt.Errorf("encode ai recommendation: %w", err)
		}
		recommendation = string(raw)
	}
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return "", "", fmt.Errorf("encode approval context: %w", err)
	}
	return string(raw), recommendation, nil
}

// ProcessDecision persists the verdict, then resumes the workflow once.
// On resume failure the decision stays persisted and the returned approval is
// accompanied by a WorkflowResumeFailure error.
func (s *ApprovalService) ProcessDecision(ctx context.Context, input DecisionInput) (*domain.ApprovalRequest, error) {
	if err := validateDecision(input); err != nil {
		return nil, err
	}

	approval, err := s.approvals.Get(ctx, input.ApprovalID)
	if err != nil {
		return nil, mapRepoError(err, "approval", input.ApprovalID)
	}
	if approval.Status != domain.ApprovalStatusPending {
		return nil, apperrors.NewConflict("approval already decided",
			map[string]any{"approvalId": approval.ID, "status": approval.Status})
	}

	if s.cfg.TrackDivergence {
		diverged := Divergence(approval.AIRecommendation, input.Approved)
		approval.AIVsHumanDivergence = &diverged
		if diverged {
			s.logger.Warn("AI vs human divergence detected",
				zap.String("approval_id", approval.ID), zap.Bool("approved", input.Approved))
		}
	}

	now := s.now()
	email := strings.TrimSpace(input.ReviewerEmail)
	approval.Status = domain.ApprovalStatusRejected
	if input.Approved {
		approval.Status = domain.ApprovalStatusApproved
	}
	approval.ReviewerEmail = &email
	if comments := strings.TrimSpace(input.Comments); comments != "" {
		approval.ReviewerComments = &comments
	}
	approval.ReviewedAt = &now

	if err := s.approvals.Update(ctx, approval, approval.Version); err != nil {
		return nil, mapRepoError(err, "approval", approval.ID)
	}

	diverged := approval.AIVsHumanDivergence != nil && *approval.AIVsHumanDivergence
	s.metrics.RecordApprovalDecided(string(approval.Gate), string(approval.Status), diverged)
	publishEvent(ctx, s.dispatcher, s.now, events.Event{
		Type:     events.EventApprovalDecided,
		TicketID: approval.TicketID,
		Actor:    email,
		Payload: events.ApprovalDecidedPayload{
			ApprovalID: approval.ID,
			Gate:       approval.Gate,
			Status:     approval.Status,
			Divergence: approval.AIVsHumanDivergence,
		},
	})

	if err := advanceTicket(ctx, s.tickets, approval.TicketID, approval.Gate.DecidedStatus(input.Approved), email,
		fmt.Sprintf("%s %s", approval.Gate, approval.Status), now); err != nil {
		s.logger.Warn("ticket status not advanced after decision",
			zap.String("ticket_id", approval.TicketID), zap.String("approval_id", approval.ID), zap.Error(err))
	}

	s.logger.Info("approval decided",
		zap.String("approval_id", approval.ID),
		zap.String("status", string(approval.Status)),
		zap.String("reviewer", email))

	if s.cfg.SkipWorkflowCallback {
		s.logger.Warn("skipping workflow callback", zap.String("approval_id", approval.ID))
		return approval, nil
	}
	if err := s.resume(ctx, approval); err != nil {
		return approval, err
	}
	return approval, nil
}

func validateDecision(input DecisionInput) error {
	fields := map[string]string{}
	if strings.TrimSpace(input.ApprovalID) == "" {
		fields["approvalId"] = "required"
	}
	email := strings.TrimSpace(input.ReviewerEmail)
	if email == "" {
		fields["reviewerEmail"] = "required"
	} else if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		fields["reviewerEmail"] = "must be a valid email address"
	}
	if len(input.Comments) > maxCommentLength {
		fields["comments"] = fmt.Sprintf("must be at most %d characters", maxCommentLength)
	}
	if len(fields) > 0 {
		return apperrors.NewValidationError("invalid approval decision", fields)
	}
	return nil
}

// Divergence reports whether a human decision departs from the AI recommendation.
// With a recommendation present, every rejection counts as divergence and no
// approval does, whatever the recommendation's own approval flag says.
func Divergence(aiRecommendation string, approved bool) bool {
	raw := strings.TrimSpace(aiRecommendation)
	if raw == "" || raw == "null" {
		return false
	}
	var recommendation domain.Classification
	if err := json.Unmarshal([]byte(raw), &recommendation); err != nil {
		return false
	}
	return !approved
}

// resume sends the single resumption signal for a terminal approval and
// records any failure for operators.
func (s *ApprovalService) resume(ctx context.Context, approval *domain.ApprovalRequest) error {
	if s.orchestrator == nil {
		return nil
	}
	callCtx := ctx
	if s.cfg.ResumeTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.cfg.ResumeTimeout)
		defer cancel()
	}

	var err error
	switch approval.Status {
	case domain.ApprovalStatusApproved:
		err = s.orchestrator.ResumeWithSuccess(callCtx, approval.TaskToken, map[string]string{
			"decision":      string(domain.ApprovalStatusApproved),
			"reviewerEmail": stringValue(approval.ReviewerEmail),
		})
	case domain.ApprovalStatusRejected:
		err = s.orchestrator.ResumeWithFailure(callCtx, approval.TaskToken, ErrorCodeApprovalRejected,
			"Ticket classification rejected by reviewer: "+stringValue(approval.ReviewerEmail))
	case domain.ApprovalStatusTimedOut:
		err = s.orchestrator.ResumeWithFailure(callCtx, approval.TaskToken, ErrorCodeApprovalTimedOut,
			fmt.Sprintf("Approval %s expired at %s", approval.ID, approval.ExpiresAt.UTC().Format(time.RFC3339)))
	default:
		return apperrors.NewConflict("approval is not terminal", map[string]any{"approvalId": approval.ID})
	}
	if err == nil {
		s.logger.Info("workflow resumed", zap.String("approval_id", approval.ID), zap.String("status", string(approval.Status)))
		return nil
	}

	s.metrics.RecordResumeFailure()
	s.logger.Error("workflow resume failed", zap.String("approval_id", approval.ID), zap.Error(err))
	if ledgerErr := s.ledger.Record(ctx, repository.ResumeFailure{
		ApprovalID: approval.ID,
		TicketID:   approval.TicketID,
		TaskToken:  approval.TaskToken,
		Decision:   approval.Status,
		Error:      err.Error(),
		FailedAt:   s.now(),
	}); ledgerErr != nil {
		s.logger.Error("resume failure not recorded", zap.String("approval_id", approval.ID), zap.Error(ledgerErr))
	}
	publishEvent(ctx, s.dispatcher, s.now, events.Event{
		Type:     events.EventWorkflowResumeFailed,
		TicketID: approval.TicketID,
		Payload: events.WorkflowResumeFailedPayload{
			ApprovalID: approval.ID,
			TaskToken:  approval.TaskToken,
			Decision:   approval.Status,
			Error:      err.Error(),
		},
	})
	return apperrors.NewWorkflowResumeFailure(approval.ID, err)
}

// ListPending returns approvals awaiting a human.
func (s *ApprovalService) ListPending(ctx context.Context) ([]domain.ApprovalRequest, error) {
	pending, err := s.approvals.ListByStatus(ctx, domain.ApprovalStatusPending)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return pending, nil
}

// ListForTicket returns every approval ever raised for a ticket.
func (s *ApprovalService) ListForTicket(ctx context.Context, ticketID string) ([]domain.ApprovalRequest, error) {
	approvals, err := s.approvals.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return approvals, nil
}

// ExpiryResult summarizes one expiry sweep.
type ExpiryResult struct {
	Expired      int
	ResumeFailed int
	Conflicts    int
}

// ExpireOverdue times out pending approvals past their deadline and resumes
// their executions with a failure. Requests decided concurrently are skipped.
func (s *ApprovalService) ExpireOverdue(ctx context.Context) (ExpiryResult, error) {
	var result ExpiryResult
	pending, err := s.approvals.ListByStatus(ctx, domain.ApprovalStatusPending)
	if err != nil {
		return result, apperrors.NewInternalError(err)
	}
	now := s.now()
	for i := range pending {
		approval := &pending[i]
		if !approval.Expired(now) {
			continue
		}
		approval.Status = domain.ApprovalStatusTimedOut
		if err := s.approvals.Update(ctx, approval, approval.Version); err != nil {
			if errors.Is(err, repository.ErrVersionConflict) {
				result.Conflicts++
				continue
			}
			return result, apperrors.NewInternalError(err)
		}
		result.Expired++
		s.metrics.RecordApprovalDecided(string(approval.Gate), string(approval.Status), false)
		s.logger.Info("approval expired", zap.String("approval_id", approval.ID), zap.Time("expires_at", approval.ExpiresAt))
		publishEvent(ctx, s.dispatcher, s.now, events.Event{
			Type:     events.EventApprovalExpired,
			TicketID: approval.TicketID,
			Payload: events.ApprovalDecidedPayload{
				ApprovalID: approval.ID,
				Gate:       approval.Gate,
				Status:     approval.Status,
			},
		})
		if s.cfg.SkipWorkflowCallback {
			continue
		}
		if err := s.resume(ctx, approval); err != nil {
			result.ResumeFailed++
		}
	}
	return result, nil
}

// ListResumeFailures returns the operator worklist.
func (s *ApprovalService) ListResumeFailures(ctx context.Context) ([]repository.ResumeFailure, error) {
	failures, err := s.ledger.List(ctx)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return failures, nil
}

// RetryResume is the operator's manual resume for an approval whose earlier
// resumption failed. It only acts on terminal approvals listed in the ledger
// and clears the entry once the orchestrator accepts the signal or reports
// the token as no longer resumable.
func (s *ApprovalService) RetryResume(ctx context.Context, approvalID string) (*domain.ApprovalRequest, error) {
	if _, err := s.ledger.Get(ctx, approvalID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("resume failure", map[string]any{"approvalId": approvalID})
		}
		return nil, apperrors.NewInternalError(err)
	}
	approval, err := s.approvals.Get(ctx, approvalID)
	if err != nil {
		return nil, mapRepoError(err, "approval", approvalID)
	}
	if !approval.Status.IsTerminal() {
		return nil, apperrors.NewConflict("approval is not terminal", map[string]any{"approvalId": approvalID, "status": approval.Status})
	}

	resumeErr := s.resume(ctx, approval)
	if resumeErr != nil && !errors.Is(resumeErr, workflow.ErrTaskNotResumable) {
		return approval, resumeErr
	}
	if err := s.ledger.Remove(ctx, approvalID); err != nil {
		s.logger.Warn("resume failure entry not cleared", zap.String("approval_id", approvalID), zap.Error(err))
	}
	if resumeErr != nil {
		return approval, apperrors.NewConflict("task token no longer resumable", map[string]any{"approvalId": approvalID})
	}
	return approval, nil
}

func stringValue(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
