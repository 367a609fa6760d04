package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/sakif/cardbox/internal/handler"
	"github.com/sakif/cardbox/internal/repository/sqlite"
	"github.com/sakif/cardbox/internal/service"
	"github.com/sakif/cardbox/internal/storage"
)

// testApp wires real services on an in-memory database and a temp-dir blob
// store behind a chi router with the production route shapes.
type testApp struct {
	router http.Handler
	db     *sqlite.DB
	blobs  *storage.LocalStore
}

const testMaxImageBytes = 4096

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	db, err := sqlite.New(context.Background(), sqlite.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	blobs, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	folders := handler.NewFolderHandler(service.NewFolderService(db, blobs, service.NewTreeBuilder(""), logger), logger)
	cards := handler.NewCardHandler(
		service.NewCardService(db, blobs, service.CardOptions{MaxImageBytes: testMaxImageBytes}, logger),
		testMaxImageBytes, logger)
	order := handler.NewOrderHandler(service.NewOrderService(db, logger), logger)
	blobHandler := handler.NewBlobHandler(blobs, logger)
	health := handler.NewHealthHandler(db, logger)

	r := chi.NewRouter()
	r.Get("/up", health.HandleUp)
	r.Get("/blobs/*", blobHandler.HandleGet)
	r.Get("/api/folders", folders.HandleList)
	r.Get("/api/folders/{id}", folders.HandleGet)
	r.Post("/folders", folders.HandleCreate)
	r.Patch("/folders/sort", order.HandleSortFolders)
	r.Patch("/folders/{id}", folders.HandleUpdate)
	r.Delete("/folders/{id}", folders.HandleDelete)
	r.Get("/cards", cards.HandleList)
	r.Get("/cards/{id}", cards.HandleGet)
	r.Post("/cards", cards.HandleCreate)
	r.Patch("/api/cards/sort", order.HandleSortCards)
	r.Patch("/cards/{id}", cards.HandleUpdate)
	r.Delete("/cards/{id}", cards.HandleDelete)

	return &testApp{router: r, db: db, blobs: blobs}
}

func (a *testApp) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	a.router.ServeHTTP(rr, req)
	return rr
}

// multipartBody builds a form with the given fields and an optional file.
func multipartBody(t *testing.T, fields map[string]string, fileField, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileField != "" {
		fw, err := mw.CreateFormFile(fileField, filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&v), "body: %s", rr.Body.String())
	return v
}

// pngBytes is a minimal PNG header; http.DetectContentType reports image/png.
var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 32)...)
