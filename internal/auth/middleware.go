package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

// CookieName is the cookie holding the session token.
const CookieName = "token"

type contextKey string

const subjectKey contextKey = "subject"

// RequireAuth rejects requests without a valid token with 401 and stores the
// token subject in the request context otherwise.
//
// The "token" cookie is tried first, then an "Authorization: Bearer" header.
// A stale cookie does not hide a valid header.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject, err := authenticate(tokens, r)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("WWW-Authenticate", `Bearer realm="cardbox"`)
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]string{
					"error":   "unauthorized",
					"message": "valid authentication required",
				})
				return
			}

			ctx := context.WithValue(r.Context(), subjectKey, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SubjectFromContext returns the subject stored by RequireAuth.
func SubjectFromContext(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(subjectKey).(string)
	return s, ok && s != ""
}

// authenticate returns the subject of the first candidate token that
// validates, or the last validation error.
func authenticate(tokens *TokenService, r *http.Request) (string, error) {
	candidates := tokensFromRequest(r)
	if len(candidates) == 0 {
		return tokens.Validate("")
	}

	var err error
	for _, token := range candidates {
		var subject string
		if subject, err = tokens.Validate(token); err == nil {
			return subject, nil
		}
	}
	return "", err
}

func tokensFromRequest(r *http.Request) []string {
	var out []string
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		out = append(out, c.Value)
	}
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		if token := strings.TrimSpace(h[7:]); token != "" {
			out = append(out, token)
		}
	}
	return out
}
