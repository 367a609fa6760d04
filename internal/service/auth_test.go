package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/cardbox/internal/apperror"
	"github.com/sakif/cardbox/internal/auth"
)

func newTestAuthService(t *testing.T, password string) (*AuthService, *auth.TokenService) {
	t.Helper()

	ps := auth.NewPasswordService(bcrypt.MinCost)
	hash, err := ps.Hash(password)
	require.NoError(t, err)

	ts, err := auth.NewTokenService("test-secret-at-least-16-chars!!", time.Hour)
	require.NoError(t, err)

	return NewAuthService(hash, ts, ps, testLogger()), ts
}

func TestAuthService_Login(t *testing.T) {
	svc, tokens := newTestAuthService(t, "hunter2")

	session, err := svc.Login(context.Background(), "hunter2")
	require.NoError(t, err)

	subject, err := tokens.Validate(session.Token)
	require.NoError(t, err)
	assert.Equal(t, OwnerSubject, subject)
	assert.WithinDuration(t, time.Now().Add(time.Hour), session.ExpiresAt, time.Minute)
}

func TestAuthService_Login_Rejects(t *testing.T) {
	svc, _ := newTestAuthService(t, "hunter2")

	for _, pw := range []string{"", "hunter3"} {
		_, err := svc.Login(context.Background(), pw)
		assert.True(t, errors.Is(err, apperror.ErrUnauthorized), "password %q: %v", pw, err)
	}
}
