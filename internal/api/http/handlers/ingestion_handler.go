package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/kyma-lab/aws-defectTicket/internal/api/dto"
	"github.com/kyma-lab/aws-defectTicket/internal/service"
	apperrors "github.com/kyma-lab/aws-defectTicket/pkg/util/errorutil"
)

// IngestionHandler accepts ticket batches.
type IngestionHandler struct {
	service *service.IngestionService
}

// NewIngestionHandler constructs handler.
func NewIngestionHandler(ingestion *service.IngestionService) *IngestionHandler {
	return &IngestionHandler{service: ingestion}
}

// Enqueue POST /batch-ingestion/ingest.
func (h *IngestionHandler) Enqueue(c *fiber.Ctx) error {
	var req dto.BatchIngestionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", map[string]string{"body": err.Error()})
	}
	result, err := h.service.EnqueueBatch(c.UserContext(), req.ToDomain())
	if err != nil {
		return err
	}
	return c.Status(http.StatusAccepted).JSON(fiber.Map{"data": dto.EnqueueResponse{
		BatchID:       result.BatchID,
		TicketsQueued: result.TicketsQueued,
		MessageID:     result.MessageID,
		Status:        result.Status,
	}})
}

// Direct POST /batch-ingestion/direct persists without the queue.
func (h *IngestionHandler) Direct(c *fiber.Ctx) error {
	var req dto.BatchIngestionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", map[string]string{"body": err.Error()})
	}
	result, err := h.service.IngestBatch(c.UserContext(), req.ToDomain())
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.IngestionResponse{
		BatchID:      result.BatchID,
		TicketIDs:    result.TicketIDs,
		SuccessCount: result.SuccessCount,
		FailureCount: result.FailureCount,
	}})
}
