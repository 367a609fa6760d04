package handler

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/cardbox/internal/storage"
)

// BlobHandler streams stored card images. It is mounted at /blobs/* and
// serves whichever BlobStore the server was configured with.
type BlobHandler struct {
	blobs  storage.BlobStore
	logger *slog.Logger
}

func NewBlobHandler(blobs storage.BlobStore, logger *slog.Logger) *BlobHandler {
	return &BlobHandler{blobs: blobs, logger: logger}
}

// HandleGet serves GET /blobs/{key...}. Keys are immutable (a replaced image
// gets a new key), so responses may be cached for a long time.
func (h *BlobHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")

	body, obj, err := h.blobs.Open(r.Context(), key)
	if err != nil {
		writeError(w, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", obj.ContentType)
	if obj.Size >= 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	// Blobs share the API origin; a sandboxed response cannot run script
	// with the owner's cookie even if a browser renders it as a document.
	w.Header().Set("Content-Security-Policy", "sandbox")
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, body); err != nil {
		h.logger.Warn("blob stream interrupted",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}
