package domain

import (
	"strings"
	"time"
)

// TicketStatus enumerates lifecycle states for defect tickets.
type TicketStatus string

const (
	TicketStatusNew                           TicketStatus = "NEW"
	TicketStatusValidated                     TicketStatus = "VALIDATED"
	TicketStatusClassified                    TicketStatus = "CLASSIFIED"
	TicketStatusPendingClassificationApproval TicketStatus = "PENDING_CLASSIFICATION_APPROVAL"
	TicketStatusClassificationApproved        TicketStatus = "CLASSIFICATION_APPROVED"
	TicketStatusClassificationRejected        TicketStatus = "CLASSIFICATION_REJECTED"
	TicketStatusAssigned                      TicketStatus = "ASSIGNED"
	TicketStatusInProgress                    TicketStatus = "IN_PROGRESS"
	TicketStatusPendingFinalApproval          TicketStatus = "PENDING_FINAL_APPROVAL"
	TicketStatusResolved                      TicketStatus = "RESOLVED"
	TicketStatusClosed                        TicketStatus = "CLOSED"
	TicketStatusArchived                      TicketStatus = "ARCHIVED"
)

// IsProcessed reports whether the status counts as processed for batch progress.
func (s TicketStatus) IsProcessed() bool {
	switch s {
	case TicketStatusClassified,
		TicketStatusClassificationApproved,
		TicketStatusAssigned,
		TicketStatusInProgress,
		TicketStatusResolved,
		TicketStatusClosed,
		TicketStatusArchived:
		return true
	}
	return false
}

// ActorSystem identifies automated transitions in the audit trail.
const ActorSystem = "SYSTEM"

// Ticket is the aggregate for an ingested defect report.
type Ticket struct {
	ID              string
	BatchID         string
	SourceSystem    string
	SourceReference string
	Title           string
	Description     string
	Status          TicketStatus
	Classification  *Classification
	Assignment      *Assignment
	AuditTrail      []AuditEntry
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Version         int64
	TTL             int64
}

// Transition moves the ticket to next and appends the matching audit entry.
func (t *Ticket) Transition(next TicketStatus, actor, reason string, at time.Time) {
	from := t.Status
	t.Status = next
	t.UpdatedAt = at
	t.AuditTrail = append(t.AuditTrail, AuditEntry{
		FromStatus: from,
		ToStatus:   next,
		Actor:      actor,
		Reason:     reason,
		Timestamp:  at,
	})
}

// Content returns the lower-cased text rules and classifiers match against.
func (t *Ticket) Content() string {
	return strings.ToLower(t.Title + " " + t.Description)
}

// Assignment captures team routing and SLA data.
type Assignment struct {
	TeamName     string     `json:"teamName"`
	EngineerName string     `json:"engineerName"`
	AssignedAt   *time.Time `json:"assignedAt,omitempty"`
	SLADeadline  *time.Time `json:"slaDeadline,omitempty"`
}

// AuditEntry is an immutable status change record.
type AuditEntry struct {
	FromStatus TicketStatus `json:"fromStatus,omitempty"`
	ToStatus   TicketStatus `json:"toStatus"`
	Actor      string       `json:"actor"`
	Reason     string       `json:"reason"`
	Timestamp  time.Time    `json:"timestamp"`
}
