package service

import (
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kyma-lab/aws-defectTicket/internal/auth"
	apperrors "github.com/kyma-lab/aws-defectTicket/pkg/util/errorutil"
)

// AuthService logs reviewers in against the static directory.
type AuthService struct {
	directory *auth.Directory
	tokenMgr  *auth.TokenManager
	logger    *zap.Logger
}

// LoginResult is an issued bearer token.
type LoginResult struct {
	Email       string
	Role        auth.Role
	AccessToken string
	ExpiresAt   time.Time
}

// NewAuthService builds the service.
func NewAuthService(directory *auth.Directory, tokens *auth.TokenManager, logger *zap.Logger) *AuthService {
	return &AuthService{directory: directory, tokenMgr: tokens, logger: loggerOrNop(logger)}
}

// Login verifies reviewer credentials and issues an access token.
func (s *AuthService) Login(email, password string) (*LoginResult, error) {
	fields := map[string]string{}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		fields["email"] = "required"
	}
	if password == "" {
		fields["password"] = "required"
	}
	if len(fields) > 0 {
		return nil, apperrors.NewValidationError("invalid login request", fields)
	}

	role, err := s.directory.Authenticate(email, password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			s.logger.Warn("reviewer login rejected", zap.String("email", email))
			return nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, apperrors.NewInternalError(err)
	}

	token, expiresAt, err := s.tokenMgr.GenerateToken(email, role)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	s.logger.Info("reviewer logged in", zap.String("email", email), zap.String("role", string(role)))
	return &LoginResult{Email: email, Role: role, AccessToken: token, ExpiresAt: expiresAt}, nil
}
