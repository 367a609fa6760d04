package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/sakif/cardbox/internal/apperror"
	"github.com/sakif/cardbox/internal/auth"
)

// OwnerSubject is the token subject of the single owner account.
const OwnerSubject = "owner"

// AuthService checks the owner password and issues session tokens.
//
// cardbox has one owner, identified by a bcrypt hash from configuration
// (ADMIN_PASSWORD_HASH). There is no user table: a valid token means "the
// owner", and mutating routes require one when auth is enabled.
//
//	AuthHandler (HTTP) → AuthService → PasswordService (bcrypt)
//	                                 ↘ TokenService (JWT)
type AuthService struct {
	passwordHash string
	tokens       *auth.TokenService
	passwords    *auth.PasswordService
	logger       *slog.Logger
}

func NewAuthService(passwordHash string, tokens *auth.TokenService, passwords *auth.PasswordService, logger *slog.Logger) *AuthService {
	return &AuthService{
		passwordHash: passwordHash,
		tokens:       tokens,
		passwords:    passwords,
		logger:       logger,
	}
}

// Session is the result of a successful login. The handler puts Token in an
// HttpOnly cookie and also returns it for non-browser clients.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Login verifies the owner password and issues a token.
// A wrong or empty password is apperror.ErrUnauthorized.
func (s *AuthService) Login(_ context.Context, password string) (*Session, error) {
	if password == "" {
		return nil, apperror.Unauthorized("password is required")
	}
	if err := s.passwords.Verify(s.passwordHash, password); err != nil {
		s.logger.Warn("failed login attempt")
		return nil, apperror.Unauthorized("invalid password")
	}

	token, expires, err := s.tokens.Generate(OwnerSubject)
	if err != nil {
		s.logger.Error("failed to issue token", slog.String("error", err.Error()))
		return nil, err
	}

	s.logger.Info("owner logged in", slog.Time("expires_at", expires))
	return &Session{Token: token, ExpiresAt: expires}, nil
}
