package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/kyma-lab/aws-defectTicket/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// Principal represents the authenticated reviewer.
type Principal struct {
	Email string
	Role  Role
}

// CanActAs reports whether the principal may submit a decision signed with email.
func (p *Principal) CanActAs(email string) bool {
	return p.Role == RoleAdmin || strings.EqualFold(strings.TrimSpace(email), p.Email)
}

// AuthMiddleware validates bearer tokens.
type AuthMiddleware struct {
	tokens *TokenManager
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}
	if claims.Role != RoleReviewer && claims.Role != RoleAdmin {
		return apperrors.NewUnauthorized("unknown role")
	}

	c.Locals(principalKey, &Principal{Email: claims.Email(), Role: claims.Role})
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated reviewer.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
