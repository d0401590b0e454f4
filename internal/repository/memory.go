package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kyma-lab/aws-defectTicket/internal/domain"
)

// MemoryTicketRepository keeps tickets in process memory with the same
// conditional-write semantics as the Postgres store. Entities are copied on
// the way in and out so callers never share state with the store.
type MemoryTicketRepository struct {
	mu      sync.RWMutex
	tickets map[string]domain.Ticket
}

// NewMemoryTicketRepository builds an empty store.
func NewMemoryTicketRepository() *MemoryTicketRepository {
	return &MemoryTicketRepository{tickets: make(map[string]domain.Ticket)}
}

func (m *MemoryTicketRepository) Create(_ context.Context, ticket *domain.Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tickets[ticket.ID]; ok {
		return ErrDuplicate
	}
	ticket.Version = 1
	m.tickets[ticket.ID] = cloneTicket(*ticket)
	return nil
}

func (m *MemoryTicketRepository) Get(_ context.Context, id string) (*domain.Ticket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stored, ok := m.tickets[id]
	if !ok {
		return nil, ErrNotFound
	}
	ticket := cloneTicket(stored)
	return &ticket, nil
}

func (m *MemoryTicketRepository) Update(_ context.Context, ticket *domain.Ticket, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.tickets[ticket.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Version != expectedVersion {
		return ErrVersionConflict
	}
	next := cloneTicket(*ticket)
	// identity, content and creation data are immutable
	next.BatchID, next.SourceSystem, next.SourceReference = stored.BatchID, stored.SourceSystem, stored.SourceReference
	next.Title, next.Description = stored.Title, stored.Description
	next.CreatedAt, next.TTL = stored.CreatedAt, stored.TTL
	next.Version = expectedVersion + 1
	m.tickets[ticket.ID] = next
	ticket.Version = next.Version
	return nil
}

func (m *MemoryTicketRepository) ListByBatch(_ context.Context, batchID string) ([]domain.Ticket, error) {
	return m.filter(func(t *domain.Ticket) bool { return t.BatchID == batchID }), nil
}

func (m *MemoryTicketRepository) ListByStatus(_ context.Context, status domain.TicketStatus) ([]domain.Ticket, error) {
	return m.filter(func(t *domain.Ticket) bool { return t.Status == status }), nil
}

func (m *MemoryTicketRepository) ListCreatedBetween(_ context.Context, from, to time.Time) ([]domain.Ticket, error) {
	return m.filter(func(t *domain.Ticket) bool {
		return !t.CreatedAt.Before(from) && t.CreatedAt.Before(to)
	}), nil
}

func (m *MemoryTicketRepository) ListExpired(_ context.Context, now time.Time) ([]domain.Ticket, error) {
	cutoff := now.Unix()
	return m.filter(func(t *domain.Ticket) bool {
		return t.TTL > 0 && t.TTL <= cutoff && t.Status != domain.TicketStatusArchived
	}), nil
}

func (m *MemoryTicketRepository) filter(keep func(*domain.Ticket) bool) []domain.Ticket {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []domain.Ticket
	for _, stored := range m.tickets {
		if keep(&stored) {
			result = append(result, cloneTicket(stored))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

func cloneTicket(t domain.Ticket) domain.Ticket {
	if t.Classification != nil {
		c := *t.Classification
		t.Classification = &c
	}
	if t.Assignment != nil {
		a := *t.Assignment
		t.Assignment = &a
	}
	if t.AuditTrail != nil {
		t.AuditTrail = append([]domain.AuditEntry(nil), t.AuditTrail...)
	}
	return t
}

// MemoryApprovalRepository is the in-process ApprovalRepository.
type MemoryApprovalRepository struct {
	mu        sync.RWMutex
	approvals map[string]domain.ApprovalRequest
}

// NewMemoryApprovalRepository builds an empty store.
func NewMemoryApprovalRepository() *MemoryApprovalRepository {
	return &MemoryApprovalRepository{approvals: make(map[string]domain.ApprovalRequest)}
}

func (m *MemoryApprovalRepository) Create(_ context.Context, approval *domain.ApprovalRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.approvals[approval.ID]; ok {
		return ErrDuplicate
	}
	if approval.Status == domain.ApprovalStatusPending {
		for _, existing := range m.approvals {
			if existing.TicketID == approval.TicketID && existing.Gate == approval.Gate &&
				existing.Status == domain.ApprovalStatusPending {
				return ErrDuplicate
			}
		}
	}
	approval.Version = 1
	m.approvals[approval.ID] = cloneApproval(*approval)
	return nil
}

func (m *MemoryApprovalRepository) Get(_ context.Context, id string) (*domain.ApprovalRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stored, ok := m.approvals[id]
	if !ok {
		return nil, ErrNotFound
	}
	approval := cloneApproval(stored)
	return &approval, nil
}

func (m *MemoryApprovalRepository) Update(_ context.Context, approval *domain.ApprovalRequest, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.approvals[approval.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Version != expectedVersion {
		return ErrVersionConflict
	}
	next := cloneApproval(stored)
	next.Status = approval.Status
	next.ReviewerEmail = cloneString(approval.ReviewerEmail)
	next.ReviewerComments = cloneString(approval.ReviewerComments)
	next.ReviewedAt = cloneTime(approval.ReviewedAt)
	next.AIVsHumanDivergence = cloneBool(approval.AIVsHumanDivergence)
	next.Version = expectedVersion + 1
	m.approvals[approval.ID] = next
	approval.Version = next.Version
	return nil
}

func (m *MemoryApprovalRepository) ListByTicket(_ context.Context, ticketID string) ([]domain.ApprovalRequest, error) {
	return m.filter(func(a *domain.ApprovalRequest) bool { return a.TicketID == ticketID }), nil
}

func (m *MemoryApprovalRepository) ListByStatus(_ context.Context, status domain.ApprovalStatus) ([]domain.ApprovalRequest, error) {
	return m.filter(func(a *domain.ApprovalRequest) bool { return a.Status == status }), nil
}

func (m *MemoryApprovalRepository) CountByTickets(_ context.Context, ticketIDs []string) (map[string]int, error) {
	wanted := make(map[string]struct{}, len(ticketIDs))
	for _, id := range ticketIDs {
		wanted[id] = struct{}{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[string]int)
	for _, approval := range m.approvals {
		if _, ok := wanted[approval.TicketID]; ok {
			counts[approval.TicketID]++
		}
	}
	return counts, nil
}

func (m *MemoryApprovalRepository) filter(keep func(*domain.ApprovalRequest) bool) []domain.ApprovalRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []domain.ApprovalRequest
	for _, stored := range m.approvals {
		if keep(&stored) {
			result = append(result, cloneApproval(stored))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

func cloneApproval(a domain.ApprovalRequest) domain.ApprovalRequest {
	a.ReviewerEmail = cloneString(a.ReviewerEmail)
	a.ReviewerComments = cloneString(a.ReviewerComments)
	a.ReviewedAt = cloneTime(a.ReviewedAt)
	a.AIVsHumanDivergence = cloneBool(a.AIVsHumanDivergence)
	return a
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneBool(v *bool) *bool {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
