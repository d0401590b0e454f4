package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyma-lab/aws-defectTicket/internal/domain"
	apperrors "github.com/kyma-lab/aws-defectTicket/pkg/util/errorutil"
)

func TestProgressUnknownBatch(t *testing.T) {
	h := newHarness(t)

	_, err := h.progress.Progress(context.Background(), "missing")
	assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))
}

func TestProgressBreakdown(t *testing.T) {
	h := newHarness(t)
	a := h.seedTicket(t, "batch-p", "one")
	b := h.seedTicket(t, "batch-p", "two")
	h.seedTicket(t, "batch-p", "three")
	h.seedTicket(t, "other", "elsewhere")
	h.setStatus(t, a.ID, domain.TicketStatusClassified)
	h.setStatus(t, b.ID, domain.TicketStatusClosed)

	progress, err := h.progress.Progress(context.Background(), "batch-p")
	require.NoError(t, err)
	assert.Equal(t, 3, progress.TotalTickets)
	assert.Equal(t, 2, progress.ProcessedTickets)
	assert.Equal(t, 1, progress.PendingTickets)
	assert.Equal(t, 66.67, progress.ProgressPercentage)
	assert.Equal(t, map[domain.TicketStatus]int{
		domain.TicketStatusClassified: 1,
		domain.TicketStatusClosed:     1,
		domain.TicketStatusNew:        1,
	}, progress.StatusBreakdown)

	again, err := h.progress.Progress(context.Background(), "batch-p")
	require.NoError(t, err)
	assert.Equal(t, progress, again)
}

func TestProgressPendingStatuses(t *testing.T) {
	h := newHarness(t)
	for _, status := range []domain.TicketStatus{
		domain.TicketStatusValidated,
		domain.TicketStatusPendingClassificationApproval,
		domain.TicketStatusClassificationRejected,
		domain.TicketStatusPendingFinalApproval,
	} {
		ticket := h.seedTicket(t, "batch-q", string(status))
		h.setStatus(t, ticket.ID, status)
	}
	processed := h.seedTicket(t, "batch-q", "done")
	h.setStatus(t, processed.ID, domain.TicketStatusArchived)

	progress, err := h.progress.Progress(context.Background(), "batch-q")
	require.NoError(t, err)
	assert.Equal(t, 1, progress.ProcessedTickets)
	assert.Equal(t, 4, progress.PendingTickets)
	assert.Equal(t, 20.0, progress.ProgressPercentage)
}

func TestPercentageRoundsHalfUp(t *testing.T) {
	assert.Equal(t, 0.0, percentage(0, 0))
	assert.Equal(t, 33.33, percentage(1, 3))
	assert.Equal(t, 66.67, percentage(2, 3))
	assert.Equal(t, 12.5, percentage(1, 8))
	assert.Equal(t, 0.13, percentage(1, 800))
	assert.Equal(t, 100.0, percentage(7, 7))
}

func TestStatsZeroDays(t *testing.T) {
	h := newHarness(t)
	h.seedTicket(t, "batch-s", "today")

	stats, err := h.progress.Stats(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, stats.DailyStats)
	assert.Equal(t, domain.StatsSummary{}, stats.Summary)
}

func TestStatsNegativeDays(t *testing.T) {
	h := newHarness(t)

	_, err := h.progress.Stats(context.Background(), -1)
	assert.True(t, apperrors.Is(err, apperrors.CodeValidation))
}

func TestStatsDaysUpperBound(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	stats, err := h.progress.Stats(ctx, maxStatsDays)
	require.NoError(t, err)
	assert.Len(t, stats.DailyStats, maxStatsDays)

	for _, days := range []int{maxStatsDays + 1, 1 << 30, 1 << 62} {
		_, err := h.progress.Stats(ctx, days)
		require.Error(t, err)
		domainErr := apperrors.ToDomainError(err)
		assert.Equal(t, apperrors.CodeValidation, domainErr.Code)
		assert.Equal(t, "must be at most 366", domainErr.Details["days"])
	}
}

func TestStatsBuckets(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	today := h.seedTicketAt(t, "batch-s", "today manual", testEpoch.Add(-time.Hour))
	h.seedTicketAt(t, "batch-s", "today auto", testEpoch.Add(-2*time.Hour))
	h.seedTicketAt(t, "batch-s", "two days ago", testEpoch.AddDate(0, 0, -2))
	h.seedTicketAt(t, "batch-s", "too old", testEpoch.AddDate(0, 0, -7))

	_, err := h.approvals.CreateApprovalRequest(ctx, CreateApprovalInput{
		TicketID: today.ID, Gate: domain.GateClassificationReview, TaskToken: "tok",
	})
	require.NoError(t, err)

	stats, err := h.progress.Stats(ctx, 7)
	require.NoError(t, err)
	require.Len(t, stats.DailyStats, 7)

	first := stats.DailyStats[0]
	assert.Equal(t, time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC), first.Date)
	assert.Zero(t, first.TotalTickets)

	twoDaysAgo := stats.DailyStats[4]
	assert.Equal(t, time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC), twoDaysAgo.Date)
	assert.Equal(t, domain.DailyStats{Date: twoDaysAgo.Date, TotalTickets: 1, AutoProcessed: 1}, twoDaysAgo)

	last := stats.DailyStats[6]
	assert.Equal(t, domain.DailyStats{Date: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), TotalTickets: 2, AutoProcessed: 1, ManualReview: 1}, last)

	assert.Equal(t, domain.StatsSummary{
		TotalTickets:            3,
		AutoProcessed:           2,
		ManualReview:            1,
		AutoProcessedPercentage: 66.67,
	}, stats.Summary)
}

func TestStatsUsesConfiguredCalendar(t *testing.T) {
	zone := time.FixedZone("UTC+2", 2*60*60)
	h := newHarness(t, func(o *harnessOptions) { o.location = zone })
	// 23:30 UTC on the 9th is already the 10th at UTC+2
	h.seedTicketAt(t, "batch-z", "late night", time.Date(2026, 3, 9, 23, 30, 0, 0, time.UTC))

	stats, err := h.progress.Stats(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, stats.DailyStats, 1)
	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, zone), stats.DailyStats[0].Date)
	assert.Equal(t, 1, stats.DailyStats[0].TotalTickets)
	assert.Equal(t, 100.0, stats.Summary.AutoProcessedPercentage)
}
