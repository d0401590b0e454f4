package repository

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap/zaptest"

	"github.com/kyma-lab/aws-defectTicket/internal/domain"
	"github.com/kyma-lab/aws-defectTicket/internal/persistence"
)

// Container-backed tests run only when DEFECT_TICKET_INTEGRATION is set.
func requireIntegration(t *testing.T) {
	t.Helper()
	if testing.Short() || os.Getenv("DEFECT_TICKET_INTEGRATION") == "" {
		t.Skip("set DEFECT_TICKET_INTEGRATION=1 to run container-backed tests")
	}
}

func startContainer(t *testing.T, req testcontainers.ContainerRequest, port nat.Port) string {
	t.Helper()
	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	mapped, err := container.MappedPort(ctx, port)
	require.NoError(t, err)
	return fmt.Sprintf("%s:%s", host, mapped.Port())
}

func startPostgres(t *testing.T) *pgxpool.Pool {
	addr := startContainer(t, testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       "tickets",
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
	}, "5432/tcp")

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, fmt.Sprintf("postgres://test:test@%s/tickets?sslmode=disable", addr))
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, persistence.RunMigrations(ctx, pool, "../../migrations", zaptest.NewLogger(t)))
	return pool
}

func TestPostgresTicketRepository(t *testing.T) {
	requireIntegration(t)
	ctx := context.Background()
	repo := NewTicketRepository(startPostgres(t))
	now := time.Now().UTC().Truncate(time.Microsecond)

	ticket := newTicket("t-1", "b-1", now)
	ticket.Status = ""
	ticket.Transition(domain.TicketStatusNew, domain.ActorSystem, "Batch ingestion", now)
	require.NoError(t, repo.Create(ctx, ticket))

	loaded, err := repo.Get(ctx, "t-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), loaded.Version)
	assert.Nil(t, loaded.Classification)
	require.Len(t, loaded.AuditTrail, 1)

	loaded.Classification = &domain.Classification{Category: "Bug", Severity: domain.SeverityLow, ConfidenceScore: 0.9}
	loaded.Transition(domain.TicketStatusClassified, domain.ActorSystem, "AI+Rules classification", now)
	require.NoError(t, repo.Update(ctx, loaded, 1))
	assert.ErrorIs(t, repo.Update(ctx, loaded, 1), ErrVersionConflict)
	assert.ErrorIs(t, repo.Update(ctx, newTicket("missing", "b", now), 1), ErrNotFound)

	batch, err := repo.ListByBatch(ctx, "b-1")
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, "Bug", batch[0].Classification.Category)
	assert.Len(t, batch[0].AuditTrail, 2)
}

func TestPostgresApprovalRepository(t *testing.T) {
	requireIntegration(t)
	ctx := context.Background()
	pool := startPostgres(t)
	tickets := NewTicketRepository(pool)
	approvals := NewApprovalRepository(pool)
	now := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, tickets.Create(ctx, newTicket("t-1", "b-1", now)))

	approval := &domain.ApprovalRequest{ID: "a-1", TicketID: "t-1", Gate: domain.GateClassificationReview,
		Status: domain.ApprovalStatusPending, TaskToken: "tok", Context: "{}", CreatedAt: now, ExpiresAt: now.Add(24 * time.Hour)}
	require.NoError(t, approvals.Create(ctx, approval))

	dup := *approval
	dup.ID = "a-2"
	assert.ErrorIs(t, approvals.Create(ctx, &dup), ErrDuplicate)

	email := "rev@example.com"
	diverged := false
	approval.Status = domain.ApprovalStatusApproved
	approval.ReviewerEmail = &email
	approval.ReviewedAt = &now
	approval.AIVsHumanDivergence = &diverged
	require.NoError(t, approvals.Update(ctx, approval, 1))

	stored, err := approvals.Get(ctx, "a-1")
	require.NoError(t, err)
	assert.Equal(t, email, *stored.ReviewerEmail)
	assert.Nil(t, stored.ReviewerComments)
	assert.False(t, *stored.AIVsHumanDivergence)

	counts, err := approvals.CountByTickets(ctx, []string{"t-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, counts["t-1"])
}

func TestRedisResumeFailureLedger(t *testing.T) {
	requireIntegration(t)
	addr := startContainer(t, testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp"),
	}, "6379/tcp")
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	ledger := NewRedisResumeFailureLedger(client, "test:resume-failures")
	require.NoError(t, ledger.Record(ctx, ResumeFailure{ApprovalID: "a-1", Error: "boom", FailedAt: time.Now().UTC()}))
	require.NoError(t, ledger.Record(ctx, ResumeFailure{ApprovalID: "a-1", Error: "boom again", FailedAt: time.Now().UTC()}))

	all, err := ledger.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, 2, all[0].Attempts)

	require.NoError(t, ledger.Remove(ctx, "a-1"))
	_, err = ledger.Get(ctx, "a-1")
	assert.ErrorIs(t, err, ErrNotFound)
}
