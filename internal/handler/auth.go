package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/cardbox/internal/auth"
	"github.com/sakif/cardbox/internal/service"
)

// AuthService is what AuthHandler needs from the service layer.
type AuthService interface {
	Login(ctx context.Context, password string) (*service.Session, error)
}

// AuthHandler manages owner login and logout.
//
// HANDLER RESPONSIBILITIES:
//   - HandleLogin  → check the password, set the token cookie, return the session
//   - HandleLogout → clear the token cookie
//   - HandleMe     → report who the current token belongs to
//
// These routes exist only when auth is configured.
type AuthHandler struct {
	service      AuthService
	secureCookie bool
	logger       *slog.Logger
}

// NewAuthHandler creates an AuthHandler. secureCookie marks the token cookie
// HTTPS-only; turn it on whenever the server sits behind TLS.
func NewAuthHandler(svc AuthService, secureCookie bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{service: svc, secureCookie: secureCookie, logger: logger}
}

type loginRequest struct {
	Password string `json:"password"`
}

// HandleLogin checks {"password":"..."} and responds with the session:
//
//	{"token":"eyJ...","expires_at":"2025-01-08T10:00:00Z"}
//
// The token is also set as an HttpOnly cookie so browsers need no JavaScript
// access to it.
//
// HTTP: POST /auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, "", &req); err != nil {
		writeError(w, err)
		return
	}

	session, err := h.service.Login(r.Context(), req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, session)
}

// HandleLogout clears the token cookie.
//
// HTTP: POST /auth/logout
//
// Tokens are stateless, so the token itself stays valid until it expires;
// without the cookie the browser simply stops sending it.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

// HandleMe returns {"subject":"owner"}. It must run behind auth.RequireAuth.
//
// HTTP: GET /auth/me
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	subject, ok := auth.SubjectFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "not logged in",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"subject": subject})
}
