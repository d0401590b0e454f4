package domain

import "time"

// ApprovalGate names a HITL checkpoint in the workflow.
type ApprovalGate string

const (
	GateClassificationReview ApprovalGate = "CLASSIFICATION_REVIEW"
	GateFinalApproval        ApprovalGate = "FINAL_APPROVAL"
)

// Valid reports whether g is a known gate.
func (g ApprovalGate) Valid() bool {
	return g == GateClassificationReview || g == GateFinalApproval
}

// PendingStatus is the ticket status while the gate awaits a human.
func (g ApprovalGate) PendingStatus() TicketStatus {
	if g == GateFinalApproval {
		return TicketStatusPendingFinalApproval
	}
	return TicketStatusPendingClassificationApproval
}

// DecidedStatus is the ticket status after a human decision at the gate.
func (g ApprovalGate) DecidedStatus(approved bool) TicketStatus {
	switch {
	case g == GateFinalApproval && approved:
		return TicketStatusClosed
	case g == GateFinalApproval:
		return TicketStatusInProgress
	case approved:
		return TicketStatusClassificationApproved
	default:
		return TicketStatusClassificationRejected
	}
}

// ApprovalStatus enumerates the approval state machine.
type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "PENDING"
	ApprovalStatusApproved ApprovalStatus = "APPROVED"
	ApprovalStatusRejected ApprovalStatus = "REJECTED"
	ApprovalStatusTimedOut ApprovalStatus = "TIMED_OUT"
)

// IsTerminal reports whether no further decision may be recorded.
func (s ApprovalStatus) IsTerminal() bool {
	return s == ApprovalStatusApproved || s == ApprovalStatusRejected || s == ApprovalStatusTimedOut
}

// ApprovalRequest is the durable record of a paused workflow step.
// Context and AIRecommendation are JSON snapshots taken at creation time.
type ApprovalRequest struct {
	ID                  string
	TicketID            string
	Gate                ApprovalGate
	Status              ApprovalStatus
	TaskToken           string
	Context             string
	AIRecommendation    string
	ReviewerEmail       *string
	ReviewerComments    *string
	ReviewedAt          *time.Time
	AIVsHumanDivergence *bool
	CreatedAt           time.Time
	ExpiresAt           time.Time
	Version             int64
}

// Expired reports whether a pending request is past its deadline.
func (a *ApprovalRequest) Expired(now time.Time) bool {
	return a.Status == ApprovalStatusPending && !a.ExpiresAt.IsZero() && now.After(a.ExpiresAt)
}
