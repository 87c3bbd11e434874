// Package service implements the admin gate: a shared access code is
// exchanged for a short-lived signed session token.
package service

import (
	"crypto/subtle"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/FACorreiaa/radiology-revenue-tracker/internal/domain/common"
)

const defaultSessionTTL = 12 * time.Hour

// LoginResult is produced after a successful login.
type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// AuthService checks the admin code and validates session tokens.
type AuthService struct {
	adminCode    []byte
	tokenManager *TokenManager
	logger       *slog.Logger
}

// NewAuthService constructs a new AuthService.
func NewAuthService(adminCode string, tokenManager *TokenManager, logger *slog.Logger) (*AuthService, error) {
	if strings.TrimSpace(adminCode) == "" {
		return nil, fmt.Errorf("admin code is required")
	}
	return &AuthService{
		adminCode:    []byte(adminCode),
		tokenManager: tokenManager,
		logger:       logger,
	}, nil
}

// Login exchanges the admin code for a session token.
func (s *AuthService) Login(code string) (*LoginResult, error) {
	if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(code)), s.adminCode) != 1 {
		s.logger.Warn("admin login rejected")
		return nil, common.ErrInvalidCode
	}

	token, expiresAt, err := s.tokenManager.Issue()
	if err != nil {
		return nil, err
	}

	s.logger.Info("admin session issued", slog.Time("expires_at", expiresAt))
	return &LoginResult{Token: token, ExpiresAt: expiresAt}, nil
}

// ValidateAccessToken validates a session token and returns its claims.
func (s *AuthService) ValidateAccessToken(accessToken string) (*Claims, error) {
	if accessToken == "" {
		return nil, fmt.Errorf("%w: access token required", common.ErrUnauthorized)
	}
	claims, err := s.tokenManager.Validate(accessToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrUnauthorized, err)
	}
	return claims, nil
}
