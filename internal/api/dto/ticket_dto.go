package dto

import (
	"time"

	"github.com/kyma-lab/aws-defectTicket/internal/domain"
)

// TicketResponse is the full ticket view.
type TicketResponse struct {
	TicketID        string                 `json:"ticketId"`
	BatchID         string                 `json:"batchId"`
	SourceSystem    string                 `json:"sourceSystem"`
	SourceReference string                 `json:"sourceReference"`
	Title           string                 `json:"title"`
	Description     string                 `json:"description"`
	Status          domain.TicketStatus    `json:"status"`
	Classification  *domain.Classification `json:"classification,omitempty"`
	Assignment      *domain.Assignment     `json:"assignment,omitempty"`
	AuditTrail      []domain.AuditEntry    `json:"auditTrail"`
	CreatedAt       time.Time              `json:"createdAt"`
	UpdatedAt       time.Time              `json:"updatedAt"`
	Version         int64                  `json:"version"`
}

// NewTicketResponse maps a domain ticket.
func NewTicketResponse(t *domain.Ticket) TicketResponse {
	trail := t.AuditTrail
	if trail == nil {
		trail = []domain.AuditEntry{}
	}
	return TicketResponse{
		TicketID:        t.ID,
		BatchID:         t.BatchID,
		SourceSystem:    t.SourceSystem,
		SourceReference: t.SourceReference,
		Title:           t.Title,
		Description:     t.Description,
		Status:          t.Status,
		Classification:  t.Classification,
		Assignment:      t.Assignment,
		AuditTrail:      trail,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
		Version:         t.Version,
	}
}

// BatchIngestionRequest payload, shared by the enqueue and direct endpoints.
type BatchIngestionRequest struct {
	BatchID      string               `json:"batchId"`
	SourceSystem string               `json:"sourceSystem"`
	Tickets      []domain.TicketInput `json:"tickets"`
}

// ToDomain converts the payload.
func (r BatchIngestionRequest) ToDomain() domain.BatchIngestionRequest {
	return domain.BatchIngestionRequest{BatchID: r.BatchID, SourceSystem: r.SourceSystem, Tickets: r.Tickets}
}

// EnqueueResponse reports a queued batch.
type EnqueueResponse struct {
	BatchID       string `json:"batchId"`
	TicketsQueued int    `json:"ticketsQueued"`
	MessageID     string `json:"messageId"`
	Status        string `json:"status"`
}

// IngestionResponse reports a direct ingestion.
type IngestionResponse struct {
	BatchID      string   `json:"batchId"`
	TicketIDs    []string `json:"ticketIds"`
	SuccessCount int      `json:"successCount"`
	FailureCount int      `json:"failureCount"`
}

// BatchClassificationResponse summarizes a batch classification run.
type BatchClassificationResponse struct {
	BatchID          string `json:"batchId"`
	TotalTickets     int    `json:"totalTickets"`
	Classified       int    `json:"classified"`
	ApprovalsCreated int    `json:"approvalsCreated"`
	Failed           int    `json:"failed"`
}
