package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/cardbox/internal/auth"
	"github.com/sakif/cardbox/internal/config"
	sqliteRepo "github.com/sakif/cardbox/internal/repository/sqlite"
)

func newTestServer(t *testing.T, mutate func(*config.Config)) http.Handler {
	t.Helper()
	cfg := config.Default()
	cfg.DBPath = sqliteRepo.MemoryPath
	cfg.UploadDir = t.TempDir()
	if mutate != nil {
		mutate(cfg)
	}
	require.NoError(t, cfg.Validate())

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	s, err := New(context.Background(), cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s.Handler()
}

func send(h http.Handler, method, path, body string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestServer_Routes(t *testing.T) {
	h := newTestServer(t, nil)

	assert.Equal(t, http.StatusOK, send(h, http.MethodGet, "/up", "", nil).Code)

	created := send(h, http.MethodPost, "/folders", `{"name":"A"}`, nil)
	require.Equal(t, http.StatusCreated, created.Code, created.Body.String())
	assert.Equal(t, "/folders/1", created.Header().Get("Location"))

	for _, path := range []string{"/folders", "/api/folders", "/folders/1", "/api/folders/1", "/cards"} {
		assert.Equal(t, http.StatusOK, send(h, http.MethodGet, path, "", nil).Code, path)
	}

	put := send(h, http.MethodPut, "/folders/1", `{"name":"B"}`, nil)
	assert.Equal(t, http.StatusOK, put.Code)

	for _, path := range []string{"/folders/sort", "/cards/sort", "/api/cards/sort"} {
		assert.Equal(t, http.StatusOK, send(h, http.MethodPatch, path, `{"order":[1]}`, nil).Code, path)
	}

	assert.Equal(t, http.StatusNoContent, send(h, http.MethodDelete, "/folders/1", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, send(h, http.MethodGet, "/auth/me", "", nil).Code, "no auth routes when auth is off")
}

func TestServer_CORSPreflight(t *testing.T) {
	h := newTestServer(t, func(c *config.Config) { c.CORSOrigins = []string{"https://app.example"} })

	rr := send(h, http.MethodOptions, "/folders/sort", "", http.Header{
		"Origin":                        {"https://app.example"},
		"Access-Control-Request-Method": {http.MethodPatch},
	})

	assert.Equal(t, "https://app.example", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rr.Header().Get("Access-Control-Allow-Credentials"))
}

func TestServer_AuthProtectsMutations(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	require.NoError(t, err)
	h := newTestServer(t, func(c *config.Config) {
		c.JWTSecret = "0123456789abcdef0123456789abcdef"
		c.AdminPasswordHash = string(hash)
	})

	assert.Equal(t, http.StatusUnauthorized, send(h, http.MethodPost, "/folders", `{"name":"A"}`, nil).Code)
	assert.Equal(t, http.StatusOK, send(h, http.MethodGet, "/api/folders", "", nil).Code, "reads stay open")
	assert.Equal(t, http.StatusUnauthorized, send(h, http.MethodPost, "/auth/login", `{"password":"wrong"}`, nil).Code)

	login := send(h, http.MethodPost, "/auth/login", `{"password":"correct horse"}`, nil)
	require.Equal(t, http.StatusOK, login.Code, login.Body.String())
	var session struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(login.Body).Decode(&session))
	require.NotEmpty(t, session.Token)

	bearer := http.Header{"Authorization": {"Bearer " + session.Token}}
	assert.Equal(t, http.StatusCreated, send(h, http.MethodPost, "/folders", `{"name":"A"}`, bearer).Code)

	cookie := http.Header{"Cookie": {auth.CookieName + "=" + session.Token}}
	me := send(h, http.MethodGet, "/auth/me", "", cookie)
	assert.Equal(t, http.StatusOK, me.Code)
	assert.JSONEq(t, `{"subject":"owner"}`, me.Body.String())
}
