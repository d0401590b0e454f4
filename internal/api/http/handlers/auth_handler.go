package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/kyma-lab/aws-defectTicket/internal/api/dto"
	"github.com/kyma-lab/aws-defectTicket/internal/service"
	apperrors "github.com/kyma-lab/aws-defectTicket/pkg/util/errorutil"
)

// AuthHandler logs reviewers in.
type AuthHandler struct {
	service *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{service: authService}
}

// Login POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", map[string]string{"body": err.Error()})
	}
	result, err := h.service.Login(req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.LoginResponse{
		Email:       result.Email,
		Role:        string(result.Role),
		AccessToken: result.AccessToken,
		TokenType:   "Bearer",
		ExpiresAt:   result.ExpiresAt,
	}})
}
