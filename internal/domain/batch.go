package domain

import "time"

// TicketInput is one defect carried by an ingestion request.
type TicketInput struct {
	SourceReference string `json:"sourceReference"`
	Title           string `json:"title"`
	Description     string `json:"description"`
}

// BatchIngestionRequest is the inbound message body and API payload.
type BatchIngestionRequest struct {
	BatchID      string        `json:"batchId"`
	SourceSystem string        `json:"sourceSystem"`
	Tickets      []TicketInput `json:"tickets"`
}

// BatchProgress is a point-in-time view of one batch.
type BatchProgress struct {
	BatchID            string
	TotalTickets       int
	ProcessedTickets   int
	PendingTickets     int
	StatusBreakdown    map[TicketStatus]int
	ProgressPercentage float64
}

// DailyStats counts tickets created on one calendar day.
type DailyStats struct {
	Date          time.Time
	TotalTickets  int
	AutoProcessed int
	ManualReview  int
}

// StatsSummary aggregates DailyStats over the requested range.
type StatsSummary struct {
	TotalTickets            int
	AutoProcessed           int
	ManualReview            int
	AutoProcessedPercentage float64
}

// TicketStats is the auto-vs-manual history.
type TicketStats struct {
	DailyStats []DailyStats
	Summary    StatsSummary
}
