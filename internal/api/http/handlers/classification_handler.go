package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/kyma-lab/aws-defectTicket/internal/api/dto"
	"github.com/kyma-lab/aws-defectTicket/internal/service"
)

// ClassificationHandler triggers the hybrid classifier.
type ClassificationHandler struct {
	classification *service.ClassificationService
	batch          *service.BatchClassificationService
}

// NewClassificationHandler constructs handler.
func NewClassificationHandler(classification *service.ClassificationService, batch *service.BatchClassificationService) *ClassificationHandler {
	return &ClassificationHandler{classification: classification, batch: batch}
}

// ClassifyTicket POST /classification/:ticketId. No retry happens here; a
// THROTTLED or CONCURRENT_MODIFICATION answer asks the caller to retry.
func (h *ClassificationHandler) ClassifyTicket(c *fiber.Ctx) error {
	ticket, err := h.classification.Classify(c.UserContext(), c.Params("ticketId"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// ClassifyBatch POST /classification/batch/:batchId.
func (h *ClassificationHandler) ClassifyBatch(c *fiber.Ctx) error {
	result, err := h.batch.ClassifyBatch(c.UserContext(), c.Params("batchId"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.BatchClassificationResponse{
		BatchID:          result.BatchID,
		TotalTickets:     result.TotalTickets,
		Classified:       result.Classified,
		ApprovalsCreated: result.ApprovalsCreated,
		Failed:           result.Failed,
	}})
}
