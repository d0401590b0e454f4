package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/kyma-lab/aws-defectTicket/internal/api/dto"
	"github.com/kyma-lab/aws-defectTicket/internal/service"
	apperrors "github.com/kyma-lab/aws-defectTicket/pkg/util/errorutil"
)

const defaultStatsDays = 7

// BatchesHandler exposes progress, claim-check and stats views.
type BatchesHandler struct {
	progress  *service.ProgressService
	ingestion *service.IngestionService
}

// NewBatchesHandler constructs handler.
func NewBatchesHandler(progress *service.ProgressService, ingestion *service.IngestionService) *BatchesHandler {
	return &BatchesHandler{progress: progress, ingestion: ingestion}
}

// Progress GET /batches/:batchId/progress.
func (h *BatchesHandler) Progress(c *fiber.Ctx) error {
	progress, err := h.progress.Progress(c.UserContext(), c.Params("batchId"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewBatchProgressResponse(progress)})
}

// Tickets GET /batches/:batchId/tickets.
func (h *BatchesHandler) Tickets(c *fiber.Ctx) error {
	batchID := c.Params("batchId")
	ids, err := h.ingestion.TicketIDsForBatch(c.UserContext(), batchID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.BatchTicketsResponse{BatchID: batchID, TicketIDs: ids, Count: len(ids)}})
}

// Stats GET /batches/stats?days=7.
func (h *BatchesHandler) Stats(c *fiber.Ctx) error {
	days := defaultStatsDays
	if raw := c.Query("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return apperrors.NewValidationError("invalid stats range", map[string]string{"days": "must be an integer"})
		}
		days = parsed
	}
	stats, err := h.progress.Stats(c.UserContext(), days)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketStatsResponse(stats)})
}
