package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt work factor for `cardbox hash-password`.
// Cost 12 takes roughly 250ms per check, cheap for one login and expensive
// for a brute-force run.
const DefaultCost = 12

// ErrPasswordMismatch is returned by Verify for a wrong password.
var ErrPasswordMismatch = errors.New("auth: invalid password")

// PasswordService hashes and checks the owner password with bcrypt.
// The hash embeds its own salt and cost:
//
//	$2a$12$<22-char salt><31-char hash>
type PasswordService struct {
	cost int
}

// NewPasswordService returns a service hashing at cost; values outside
// bcrypt's range fall back to DefaultCost. Tests pass bcrypt.MinCost.
func NewPasswordService(cost int) *PasswordService {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &PasswordService{cost: cost}
}

// Hash returns the bcrypt hash of plaintext. Passwords over 72 bytes are
// rejected instead of being silently truncated by bcrypt.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", errors.New("auth: password must not be empty")
	}
	if len(plaintext) > 72 {
		return "", errors.New("auth: password must be 72 bytes or fewer")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}
	return string(hashed), nil
}

// Verify returns nil when plaintext matches hash, ErrPasswordMismatch when it
// does not, and a wrapped error for a malformed hash. The comparison is
// constant time.
func (p *PasswordService) Verify(hash, plaintext string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err == nil {
		return nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrPasswordMismatch
	}
	return fmt.Errorf("auth: comparing password hash: %w", err)
}

// ValidHash reports whether hash looks like a bcrypt hash. Config uses it to
// fail at startup rather than on the first login.
func ValidHash(hash string) bool {
	_, err := bcrypt.Cost([]byte(hash))
	return err == nil
}
