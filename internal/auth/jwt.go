// Package auth issues and checks owner session tokens.
//
// SESSION FLOW:
//  1. POST /auth/login with the owner password
//  2. The password is checked against the bcrypt hash from ADMIN_PASSWORD_HASH
//  3. The server signs a JWT and sets it in an HttpOnly "token" cookie
//  4. Mutating requests carry the cookie (browser) or an
//     "Authorization: Bearer <jwt>" header (scripts); RequireAuth validates it
//
// The token is stateless: subject, issuer and expiry are inside the signed
// payload, so validation needs only the secret.
//
//	HEADER.PAYLOAD.SIGNATURE
//	{"alg":"HS256","typ":"JWT"}.{"sub":"owner","iss":"cardbox","exp":...}.HMAC
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	issuer = "cardbox"

	// DefaultTTL is the session lifetime when none is configured.
	DefaultTTL = 7 * 24 * time.Hour
)

// ErrInvalidToken is returned for any token that fails validation.
var ErrInvalidToken = errors.New("auth: invalid token")

// TokenService signs and verifies HS256 session tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a TokenService. The secret must be at least 16
// characters; a zero ttl means DefaultTTL.
// Example: JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}, nil
}

// Generate signs a token for subject valid for the configured TTL and
// returns it with its expiry.
func (s *TokenService) Generate(subject string) (string, time.Time, error) {
	return s.GenerateWithDuration(subject, s.ttl)
}

// GenerateWithDuration signs a token with a custom lifetime. A negative
// duration yields an already expired token, which tests use.
func (s *TokenService) GenerateWithDuration(subject string, d time.Duration) (string, time.Time, error) {
	now := time.Now()
	expires := now.Add(d)

	c := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
		Issuer:    issuer,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, expires, nil
}

// Validate verifies signature, issuer, algorithm and expiry and returns the
// subject. Every failure wraps ErrInvalidToken.
//
// WithValidMethods pins HS256 so a token claiming "alg":"none" (or an
// asymmetric algorithm keyed with our secret) is rejected.
func (s *TokenService) Validate(tokenStr string) (string, error) {
	var c jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&c,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("%w: token expired", ErrInvalidToken)
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || c.Subject == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	return c.Subject, nil
}
