package events

import (
	"time"

	"github.com/kyma-lab/aws-defectTicket/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketIngested       EventType = "ticket_ingested"
	EventTicketClassified     EventType = "ticket_classified"
	EventApprovalRequested    EventType = "approval_requested"
	EventApprovalDecided      EventType = "approval_decided"
	EventApprovalExpired      EventType = "approval_expired"
	EventWorkflowResumeFailed EventType = "workflow_resume_failed"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Actor     string      `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketIngestedPayload payload.
type TicketIngestedPayload struct {
	BatchID      string `json:"batch_id"`
	SourceSystem string `json:"source_system"`
	Title        string `json:"title"`
}

// TicketClassifiedPayload payload.
type TicketClassifiedPayload struct {
	Classification domain.Classification `json:"classification"`
	Rule           string                `json:"rule,omitempty"`
}

// ApprovalRequestedPayload payload.
type ApprovalRequestedPayload struct {
	ApprovalID string              `json:"approval_id"`
	Gate       domain.ApprovalGate `json:"gate"`
	ExpiresAt  time.Time           `json:"expires_at"`
}

// ApprovalDecidedPayload payload.
type ApprovalDecidedPayload struct {
	ApprovalID string                `json:"approval_id"`
	Gate       domain.ApprovalGate   `json:"gate"`
	Status     domain.ApprovalStatus `json:"status"`
	Divergence *bool                 `json:"divergence,omitempty"`
}

// WorkflowResumeFailedPayload payload.
type WorkflowResumeFailedPayload struct {
	ApprovalID string                `json:"approval_id"`
	TaskToken  string                `json:"task_token"`
	Decision   domain.ApprovalStatus `json:"decision"`
	Error      string                `json:"error"`
}
