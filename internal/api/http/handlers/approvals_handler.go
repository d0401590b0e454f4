package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/kyma-lab/aws-defectTicket/internal/api/dto"
	"github.com/kyma-lab/aws-defectTicket/internal/auth"
	"github.com/kyma-lab/aws-defectTicket/internal/domain"
	"github.com/kyma-lab/aws-defectTicket/internal/service"
	apperrors "github.com/kyma-lab/aws-defectTicket/pkg/util/errorutil"
)

// ApprovalsHandler exposes the HITL endpoints.
type ApprovalsHandler struct {
	service *service.ApprovalService
}

// NewApprovalsHandler constructs handler.
func NewApprovalsHandler(approvalService *service.ApprovalService) *ApprovalsHandler {
	return &ApprovalsHandler{service: approvalService}
}

// Create POST /approvals, called by the orchestrator when a task pauses.
func (h *ApprovalsHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateApprovalRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", map[string]string{"body": err.Error()})
	}
	approval, err := h.service.CreateApprovalRequest(c.UserContext(), service.CreateApprovalInput{
		TicketID:  req.TicketID,
		Gate:      req.Gate,
		TaskToken: req.TaskToken,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewApprovalResponse(approval)})
}

// ListPending GET /approvals/pending.
func (h *ApprovalsHandler) ListPending(c *fiber.Ctx) error {
	pending, err := h.service.ListPending(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewApprovalResponses(pending)})
}

// ListForTicket GET /approvals/ticket/:ticketId.
func (h *ApprovalsHandler) ListForTicket(c *fiber.Ctx) error {
	approvals, err := h.service.ListForTicket(c.UserContext(), c.Params("ticketId"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewApprovalResponses(approvals)})
}

// Decide POST /approvals/decide.
func (h *ApprovalsHandler) Decide(c *fiber.Ctx) error {
	var req dto.DecisionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", map[string]string{"body": err.Error()})
	}
	if req.Approved == nil {
		return apperrors.NewValidationError("invalid approval decision", map[string]string{"approved": "required"})
	}
	if principal, ok := auth.PrincipalFromContext(c); ok && !principal.CanActAs(req.ReviewerEmail) {
		return apperrors.NewForbidden("reviewerEmail must match the authenticated reviewer")
	}

	approval, err := h.service.ProcessDecision(c.UserContext(), service.DecisionInput{
		ApprovalID:    req.ApprovalID,
		Approved:      *req.Approved,
		ReviewerEmail: req.ReviewerEmail,
		Comments:      req.Comments,
	})
	if err != nil {
		if approval != nil && apperrors.Is(err, apperrors.CodeWorkflowResumeFailure) {
			return withApproval(err, approval)
		}
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewApprovalResponse(approval)})
}

// ListResumeFailures GET /approvals/resume-failures.
func (h *ApprovalsHandler) ListResumeFailures(c *fiber.Ctx) error {
	failures, err := h.service.ListResumeFailures(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewResumeFailureResponses(failures)})
}

// RetryResume POST /approvals/:id/resume.
func (h *ApprovalsHandler) RetryResume(c *fiber.Ctx) error {
	approval, err := h.service.RetryResume(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewApprovalResponse(approval)})
}

// withApproval attaches the persisted decision to a resume failure so the
// caller sees what was recorded.
func withApproval(err error, approval *domain.ApprovalRequest) error {
	domainErr := *apperrors.ToDomainError(err)
	details := make(map[string]any, len(domainErr.Details)+1)
	for k, v := range domainErr.Details {
		details[k] = v
	}
	details["approval"] = dto.NewApprovalResponse(approval)
	domainErr.Details = details
	return &domainErr
}
