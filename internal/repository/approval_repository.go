package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kyma-lab/aws-defectTicket/internal/domain"
)

// ApprovalRepository persists approval requests. Create rejects a second
// PENDING request for the same ticket and gate with ErrDuplicate.
type ApprovalRepository interface {
	Create(ctx context.Context, approval *domain.ApprovalRequest) error
	Get(ctx context.Context, id string) (*domain.ApprovalRequest, error)
	Update(ctx context.Context, approval *domain.ApprovalRequest, expectedVersion int64) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.ApprovalRequest, error)
	ListByStatus(ctx context.Context, status domain.ApprovalStatus) ([]domain.ApprovalRequest, error)
	// CountByTickets returns the approval count per ticket id, omitting tickets without approvals.
	CountByTickets(ctx context.Context, ticketIDs []string) (map[string]int, error)
}

type approvalRepository struct {
	pool *pgxpool.Pool
}

// NewApprovalRepository instantiates the Postgres repository.
func NewApprovalRepository(pool *pgxpool.Pool) ApprovalRepository {
	return &approvalRepository{pool: pool}
}

const approvalColumns = `id, ticket_id, gate, status, task_token, context, ai_recommendation,
               reviewer_email, reviewer_comments, reviewed_at, ai_vs_human_divergence,
               created_at, expires_at, version`

func (r *approvalRepository) Create(ctx context.Context, approval *domain.ApprovalRequest) error {
	const query = `
        INSERT INTO approval_requests (id, ticket_id, gate, status, task_token, context, ai_recommendation,
            reviewer_email, reviewer_comments, reviewed_at, ai_vs_human_divergence, created_at, expires_at, version)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,1)`
	if _, err := r.pool.Exec(ctx, query,
		approval.ID,
		approval.TicketID,
		approval.Gate,
		approval.Status,
		approval.TaskToken,
		approval.Context,
		approval.AIRecommendation,
		approval.ReviewerEmail,
		approval.ReviewerComments,
		approval.ReviewedAt,
		approval.AIVsHumanDivergence,
		approval.CreatedAt,
		approval.ExpiresAt,
	); err != nil {
		return translate(err)
	}
	approval.Version = 1
	return nil
}

// Update writes only the decision fields; task token and snapshots are write-once.
func (r *approvalRepository) Update(ctx context.Context, approval *domain.ApprovalRequest, expectedVersion int64) error {
	const query = `
        UPDATE approval_requests SET status=$1, reviewer_email=$2, reviewer_comments=$3, reviewed_at=$4,
            ai_vs_human_divergence=$5, version=version+1
        WHERE id=$6 AND version=$7`
	cmd, err := r.pool.Exec(ctx, query,
		approval.Status,
		approval.ReviewerEmail,
		approval.ReviewerComments,
		approval.ReviewedAt,
		approval.AIVsHumanDivergence,
		approval.ID,
		expectedVersion,
	)
	if err != nil {
		return translate(err)
	}
	if cmd.RowsAffected() == 0 {
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM approval_requests WHERE id=$1)`, approval.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return ErrVersionConflict
	}
	approval.Version = expectedVersion + 1
	return nil
}

func (r *approvalRepository) Get(ctx context.Context, id string) (*domain.ApprovalRequest, error) {
	approval, err := scanApproval(r.pool.QueryRow(ctx, `SELECT `+approvalColumns+` FROM approval_requests WHERE id=$1`, id))
	if err != nil {
		return nil, translate(err)
	}
	return approval, nil
}

func (r *approvalRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.ApprovalRequest, error) {
	return r.list(ctx, `SELECT `+approvalColumns+` FROM approval_requests WHERE ticket_id=$1 ORDER BY created_at ASC, id ASC`, ticketID)
}

func (r *approvalRepository) ListByStatus(ctx context.Context, status domain.ApprovalStatus) ([]domain.ApprovalRequest, error) {
	return r.list(ctx, `SELECT `+approvalColumns+` FROM approval_requests WHERE status=$1 ORDER BY created_at ASC, id ASC`, status)
}

func (r *approvalRepository) CountByTickets(ctx context.Context, ticketIDs []string) (map[string]int, error) {
	counts := make(map[string]int)
	if len(ticketIDs) == 0 {
		return counts, nil
	}
	rows, err := r.pool.Query(ctx,
		`SELECT ticket_id, COUNT(*) FROM approval_requests WHERE ticket_id = ANY($1) GROUP BY ticket_id`, ticketIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			ticketID string
			count    int
		)
		if err := rows.Scan(&ticketID, &count); err != nil {
			return nil, err
		}
		counts[ticketID] = count
	}
	return counts, rows.Err()
}

func (r *approvalRepository) list(ctx context.Context, query string, args ...any) ([]domain.ApprovalRequest, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.ApprovalRequest
	for rows.Next() {
		approval, err := scanApproval(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *approval)
	}
	return result, rows.Err()
}

func scanApproval(row pgx.Row) (*domain.ApprovalRequest, error) {
	var approval domain.ApprovalRequest
	if err := row.Scan(
		&approval.ID,
		&approval.TicketID,
		&approval.Gate,
		&approval.Status,
		&approval.TaskToken,
		&approval.Context,
		&approval.AIRecommendation,
		&approval.ReviewerEmail,
		&approval.ReviewerComments,
		&approval.ReviewedAt,
		&approval.AIVsHumanDivergence,
		&approval.CreatedAt,
		&approval.ExpiresAt,
		&approval.Version,
	); err != nil {
		return nil, err
	}
	return &approval, nil
}
