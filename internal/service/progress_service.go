package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kyma-lab/aws-defectTicket/internal/domain"
	"github.com/kyma-lab/aws-defectTicket/internal/repository"
	apperrors "github.com/kyma-lab/aws-defectTicket/pkg/util/errorutil"
)

// maxStatsDays bounds the trailing window to one leap year of day buckets.
const maxStatsDays = 366

// ProgressService aggregates batch progress and auto-vs-manual statistics.
// All reads are eventually consistent across calls.
type ProgressService struct {
	tickets   repository.TicketRepository
	approvals repository.ApprovalRepository
	logger    *zap.Logger
	now       Clock
	location  *time.Location
}

// NewProgressService constructs the service. Day buckets follow loc.
func NewProgressService(tickets repository.TicketRepository, approvals repository.ApprovalRepository, loc *time.Location, clock Clock, logger *zap.Logger) *ProgressService {
	if loc == nil {
		loc = time.Local
	}
	return &ProgressService{
		tickets:   tickets,
		approvals: approvals,
		logger:    loggerOrNop(logger),
		now:       clockOrDefault(clock),
		location:  loc,
	}
}

// Progress computes the status histogram of one batch from a single read.
func (s *ProgressService) Progress(ctx context.Context, batchID string) (*domain.BatchProgress, error) {
	if strings.TrimSpace(batchID) == "" {
		return nil, apperrors.NewValidationError("invalid batch id", map[string]string{"batchId": "required"})
	}
	tickets, err := s.tickets.ListByBatch(ctx, batchID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if len(tickets) == 0 {
		return nil, apperrors.NewNotFound("batch", map[string]any{"batchId": batchID})
	}

	progress := &domain.BatchProgress{
		BatchID:         batchID,
		TotalTickets:    len(tickets),
		StatusBreakdown: make(map[domain.TicketStatus]int),
	}
	for _, t := range tickets {
		progress.StatusBreakdown[t.Status]++
		if t.Status.IsProcessed() {
			progress.ProcessedTickets++
		}
	}
	progress.PendingTickets = progress.TotalTickets - progress.ProcessedTickets
	progress.ProgressPercentage = percentage(progress.ProcessedTickets, progress.TotalTickets)
	return progress, nil
}

// Stats buckets tickets created over the trailing days (today included) into
// auto-processed and manual-review counts.
func (s *ProgressService) Stats(ctx context.Context, days int) (*domain.TicketStats, error) {
	if days < 0 {
		return nil, apperrors.NewValidationError("invalid stats range", map[string]string{"days": "must not be negative"})
	}
	if days > maxStatsDays {
		return nil, apperrors.NewValidationError("invalid stats range", map[string]string{"days": fmt.Sprintf("must be at most %d", maxStatsDays)})
	}
	stats := &domain.TicketStats{DailyStats: []domain.DailyStats{}}
	if days == 0 {
		return stats, nil
	}

	now := s.now().In(s.location)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.location)
	from := today.AddDate(0, 0, -(days - 1))
	to := today.AddDate(0, 0, 1)

	tickets, err := s.tickets.ListCreatedBetween(ctx, from, to)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	ids := make([]string, 0, len(tickets))
	for _, t := range tickets {
		ids = append(ids, t.ID)
	}
	approvalCounts, err := s.approvals.CountByTickets(ctx, ids)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	buckets := make([]domain.DailyStats, days)
	for i := range buckets {
		buckets[i].Date = from.AddDate(0, 0, i)
	}
	for _, t := range tickets {
		created := t.CreatedAt.In(s.location)
		day := time.Date(created.Year(), created.Month(), created.Day(), 0, 0, 0, 0, s.location)
		idx := daysBetween(from, day)
		if idx < 0 || idx >= days {
			continue
		}
		buckets[idx].TotalTickets++
		if approvalCounts[t.ID] > 0 {
			buckets[idx].ManualReview++
		} else {
			buckets[idx].AutoProcessed++
		}
	}

	for _, b := range buckets {
		stats.Summary.TotalTickets += b.TotalTickets
		stats.Summary.AutoProcessed += b.AutoProcessed
		stats.Summary.ManualReview += b.ManualReview
	}
	stats.Summary.AutoProcessedPercentage = percentage(stats.Summary.AutoProcessed, stats.Summary.TotalTickets)
	stats.DailyStats = buckets
	s.logger.Debug("ticket stats computed", zap.Int("days", days), zap.Int("tickets", stats.Summary.TotalTickets))
	return stats, nil
}

// daysBetween counts calendar days, ignoring DST shifts in the day length.
func daysBetween(from, day time.Time) int {
	a := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

// percentage rounds half up to two decimals; zero total yields 0.
func percentage(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Floor(float64(part)*10000/float64(total)+0.5) / 100
}
