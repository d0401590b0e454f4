package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kyma-lab/aws-defectTicket/internal/domain"
)

// TicketRepository encapsulates ticket persistence.
// Update is a compare-and-swap on Version: it fails with ErrVersionConflict
// when the stored version differs from expectedVersion.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Get(ctx context.Context, id string) (*domain.Ticket, error)
	Update(ctx context.Context, ticket *domain.Ticket, expectedVersion int64) error
	ListByBatch(ctx context.Context, batchID string) ([]domain.Ticket, error)
	ListByStatus(ctx context.Context, status domain.TicketStatus) ([]domain.Ticket, error)
	ListCreatedBetween(ctx context.Context, from, to time.Time) ([]domain.Ticket, error)
	// ListExpired returns unarchived tickets whose ttl (epoch seconds) is at or before now.
	ListExpired(ctx context.Context, now time.Time) ([]domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates the Postgres repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, batch_id, source_system, source_reference, title, description, status,
               classification, assignment, audit_trail, created_at, updated_at, version, ttl`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	classification, assignment, audit, err := encodeTicketDocs(ticket)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO tickets (id, batch_id, source_system, source_reference, title, description, status,
            classification, assignment, audit_trail, created_at, updated_at, version, ttl)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,1,$13)`
	if _, err := r.pool.Exec(ctx, query,
		ticket.ID,
		ticket.BatchID,
		ticket.SourceSystem,
		ticket.SourceReference,
		ticket.Title,
		ticket.Description,
		ticket.Status,
		classification,
		assignment,
		audit,
		ticket.CreatedAt,
		ticket.UpdatedAt,
		ticket.TTL,
	); err != nil {
		return translate(err)
	}
	ticket.Version = 1
	return nil
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket, expectedVersion int64) error {
	classification, assignment, audit, err := encodeTicketDocs(ticket)
	if err != nil {
		return err
	}
	const query = `
        UPDATE tickets SET status=$1, classification=$2, assignment=$3, audit_trail=$4,
            updated_at=$5, version=version+1
        WHERE id=$6 AND version=$7`
	cmd, err := r.pool.Exec(ctx, query,
		ticket.Status,
		classification,
		assignment,
		audit,
		ticket.UpdatedAt,
		ticket.ID,
		expectedVersion,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return r.missOrConflict(ctx, ticket.ID)
	}
	ticket.Version = expectedVersion + 1
	return nil
}

func (r *ticketRepository) missOrConflict(ctx context.Context, id string) error {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM tickets WHERE id=$1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrVersionConflict
}

func (r *ticketRepository) Get(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, translate(err)
	}
	return ticket, nil
}

func (r *ticketRepository) ListByBatch(ctx context.Context, batchID string) ([]domain.Ticket, error) {
	return r.list(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE batch_id=$1 ORDER BY created_at ASC, id ASC`, batchID)
}

func (r *ticketRepository) ListByStatus(ctx context.Context, status domain.TicketStatus) ([]domain.Ticket, error) {
	return r.list(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE status=$1 ORDER BY created_at ASC, id ASC`, status)
}

func (r *ticketRepository) ListCreatedBetween(ctx context.Context, from, to time.Time) ([]domain.Ticket, error) {
	return r.list(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE created_at >= $1 AND created_at < $2 ORDER BY created_at ASC, id ASC`, from, to)
}

func (r *ticketRepository) ListExpired(ctx context.Context, now time.Time) ([]domain.Ticket, error) {
	return r.list(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE ttl > 0 AND ttl <= $1 AND status <> $2 ORDER BY ttl ASC, id ASC`,
		now.Unix(), domain.TicketStatusArchived)
}

func (r *ticketRepository) list(ctx context.Context, query string, args ...any) ([]domain.Ticket, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var (
		ticket                            domain.Ticket
		classification, assignment, audit []byte
	)
	if err := row.Scan(
		&ticket.ID,
		&ticket.BatchID,
		&ticket.SourceSystem,
		&ticket.SourceReference,
		&ticket.Title,
		&ticket.Description,
		&ticket.Status,
		&classification,
		&assignment,
		&audit,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.Version,
		&ticket.TTL,
	); err != nil {
		return nil, err
	}
	if len(classification) > 0 {
		ticket.Classification = &domain.Classification{}
		if err := json.Unmarshal(classification, ticket.Classification); err != nil {
			return nil, fmt.Errorf("decode classification: %w", err)
		}
	}
	if len(assignment) > 0 {
		ticket.Assignment = &domain.Assignment{}
		if err := json.Unmarshal(assignment, ticket.Assignment); err != nil {
			return nil, fmt.Errorf("decode assignment: %w", err)
		}
	}
	if len(audit) > 0 {
		if err := json.Unmarshal(audit, &ticket.AuditTrail); err != nil {
			return nil, fmt.Errorf("decode audit trail: %w", err)
		}
	}
	return &ticket, nil
}

func encodeTicketDocs(ticket *domain.Ticket) (classification, assignment, audit []byte, err error) {
	if ticket.Classification != nil {
		if classification, err = json.Marshal(ticket.Classification); err != nil {
			return nil, nil, nil, fmt.Errorf("encode classification: %w", err)
		}
	}
	if ticket.Assignment != nil {
		if assignment, err = json.Marshal(ticket.Assignment); err != nil {
			return nil, nil, nil, fmt.Errorf("encode assignment: %w", err)
		}
	}
	trail := ticket.AuditTrail
	if trail == nil {
		trail = []domain.AuditEntry{}
	}
	if audit, err = json.Marshal(trail); err != nil {
		return nil, nil, nil, fmt.Errorf("encode audit trail: %w", err)
	}
	return classification, assignment, audit, nil
}
