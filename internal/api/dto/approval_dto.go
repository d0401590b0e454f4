package dto

import (
	"encoding/json"
	"time"

	"github.com/kyma-lab/aws-defectTicket/internal/domain"
	"github.com/kyma-lab/aws-defectTicket/internal/repository"
)

// CreateApprovalRequest is the orchestrator's pause callback.
type CreateApprovalRequest struct {
	TicketID  string              `json:"ticketId"`
	Gate      domain.ApprovalGate `json:"gate"`
	TaskToken string              `json:"taskToken"`
}

// DecisionRequest payload.
type DecisionRequest struct {
	ApprovalID    string `json:"approvalId"`
	Approved      *bool  `json:"approved"`
	ReviewerEmail string `json:"reviewerEmail"`
	Comments      string `json:"comments"`
}

// ApprovalResponse is the reviewer-facing view. The task token is never exposed.
type ApprovalResponse struct {
	ApprovalID          string                `json:"approvalId"`
	TicketID            string                `json:"ticketId"`
	Gate                domain.ApprovalGate   `json:"gate"`
	Status              domain.ApprovalStatus `json:"status"`
	Context             json.RawMessage       `json:"context,omitempty"`
	AIRecommendation    json.RawMessage       `json:"aiRecommendation,omitempty"`
	ReviewerEmail       *string               `json:"reviewerEmail,omitempty"`
	ReviewerComments    *string               `json:"reviewerComments,omitempty"`
	ReviewedAt          *time.Time            `json:"reviewedAt,omitempty"`
	AIVsHumanDivergence *bool                 `json:"aiVsHumanDivergence,omitempty"`
	CreatedAt           time.Time             `json:"createdAt"`
	ExpiresAt           time.Time             `json:"expiresAt"`
}

// NewApprovalResponse maps a domain approval.
func NewApprovalResponse(a *domain.ApprovalRequest) ApprovalResponse {
	return ApprovalResponse{
		ApprovalID:          a.ID,
		TicketID:            a.TicketID,
		Gate:                a.Gate,
		Status:              a.Status,
		Context:             rawJSON(a.Context),
		AIRecommendation:    rawJSON(a.AIRecommendation),
		ReviewerEmail:       a.ReviewerEmail,
		ReviewerComments:    a.ReviewerComments,
		ReviewedAt:          a.ReviewedAt,
		AIVsHumanDivergence: a.AIVsHumanDivergence,
		CreatedAt:           a.CreatedAt,
		ExpiresAt:           a.ExpiresAt,
	}
}

// NewApprovalResponses maps a list.
func NewApprovalResponses(approvals []domain.ApprovalRequest) []ApprovalResponse {
	items := make([]ApprovalResponse, 0, len(approvals))
	for i := range approvals {
		items = append(items, NewApprovalResponse(&approvals[i]))
	}
	return items
}

// ResumeFailureResponse is one operator worklist entry.
type ResumeFailureResponse struct {
	ApprovalID string                `json:"approvalId"`
	TicketID   string                `json:"ticketId"`
	Decision   domain.ApprovalStatus `json:"decision"`
	Error      string                `json:"error"`
	Attempts   int                   `json:"attempts"`
	FailedAt   time.Time             `json:"failedAt"`
}

// NewResumeFailureResponses maps ledger entries.
func NewResumeFailureResponses(failures []repository.ResumeFailure) []ResumeFailureResponse {
	items := make([]ResumeFailureResponse, 0, len(failures))
	for _, f := range failures {
		items = append(items, ResumeFailureResponse{
			ApprovalID: f.ApprovalID,
			TicketID:   f.TicketID,
			Decision:   f.Decision,
			Error:      f.Error,
			Attempts:   f.Attempts,
			FailedAt:   f.FailedAt,
		})
	}
	return items
}

// LoginRequest payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the bearer token.
type LoginResponse struct {
	Email       string    `json:"email"`
	Role        string    `json:"role"`
	AccessToken string    `json:"accessToken"`
	TokenType   string    `json:"tokenType"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

func rawJSON(s string) json.RawMessage {
	if s == "" || !json.Valid([]byte(s)) {
		return nil
	}
	return json.RawMessage(s)
}
