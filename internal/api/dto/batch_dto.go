package dto

import (
	"github.com/kyma-lab/aws-defectTicket/internal/domain"
)

const dateLayout = "2006-01-02"

// BatchProgressResponse is the batch histogram.
type BatchProgressResponse struct {
	BatchID            string                      `json:"batchId"`
	TotalTickets       int                         `json:"totalTickets"`
	ProcessedTickets   int                         `json:"processedTickets"`
	PendingTickets     int                         `json:"pendingTickets"`
	StatusBreakdown    map[domain.TicketStatus]int `json:"statusBreakdown"`
	ProgressPercentage float64                     `json:"progressPercentage"`
}

// NewBatchProgressResponse maps domain progress.
func NewBatchProgressResponse(p *domain.BatchProgress) BatchProgressResponse {
	return BatchProgressResponse{
		BatchID:            p.BatchID,
		TotalTickets:       p.TotalTickets,
		ProcessedTickets:   p.ProcessedTickets,
		PendingTickets:     p.PendingTickets,
		StatusBreakdown:    p.StatusBreakdown,
		ProgressPercentage: p.ProgressPercentage,
	}
}

// BatchTicketsResponse lists ticket ids of a batch.
type BatchTicketsResponse struct {
	BatchID   string   `json:"batchId"`
	TicketIDs []string `json:"ticketIds"`
	Count     int      `json:"count"`
}

// DailyStatsResponse is one calendar day.
type DailyStatsResponse struct {
	Date          string `json:"date"`
	TotalTickets  int    `json:"totalTickets"`
	AutoProcessed int    `json:"autoProcessed"`
	ManualReview  int    `json:"manualReview"`
}

// StatsSummaryResponse aggregates the range.
type StatsSummaryResponse struct {
	TotalTickets            int     `json:"totalTickets"`
	AutoProcessed           int     `json:"autoProcessed"`
	ManualReview            int     `json:"manualReview"`
	AutoProcessedPercentage float64 `json:"autoProcessedPercentage"`
}

// TicketStatsResponse is the auto-vs-manual history.
type TicketStatsResponse struct {
	DailyStats []DailyStatsResponse `json:"dailyStats"`
	Summary    StatsSummaryResponse `json:"summary"`
}

// NewTicketStatsResponse maps domain stats.
func NewTicketStatsResponse(s *domain.TicketStats) TicketStatsResponse {
	days := make([]DailyStatsResponse, 0, len(s.DailyStats))
	for _, d := range s.DailyStats {
		days = append(days, DailyStatsResponse{
			Date:          d.Date.Format(dateLayout),
			TotalTickets:  d.TotalTickets,
			AutoProcessed: d.AutoProcessed,
			ManualReview:  d.ManualReview,
		})
	}
	return TicketStatsResponse{
		DailyStats: days,
		Summary: StatsSummaryResponse{
			TotalTickets:            s.Summary.TotalTickets,
			AutoProcessed:           s.Summary.AutoProcessed,
			ManualReview:            s.Summary.ManualReview,
			AutoProcessedPercentage: s.Summary.AutoProcessedPercentage,
		},
	}
}
