package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sakif/cardbox/internal/apperror"
	"github.com/sakif/cardbox/internal/model"
	"github.com/sakif/cardbox/internal/service"
)

// formOverhead is the room left for text fields on top of the image limit.
const formOverhead = 1 << 20

// CardService is what CardHandler needs from the service layer.
type CardService interface {
	List(ctx context.Context, folderID *int64) ([]model.Card, error)
	Get(ctx context.Context, id int64) (*model.Card, error)
	Create(ctx context.Context, in service.CreateCardInput, image *service.Image) (*model.Card, error)
	Update(ctx context.Context, id int64, in service.UpdateCardInput, image *service.Image) (*model.Card, error)
	Delete(ctx context.Context, id int64) error
}

// CardHandler serves the card endpoints. Create and update take either a
// JSON body or a multipart form; only the multipart form can carry an image.
//
// Multipart fields may be named plainly ("title", "image") or scoped the way
// HTML forms for the resource are ("card[title]", "card[image]").
//
// FLOW FOR A MULTIPART UPLOAD:
//  1. The body is capped at maxImageBytes plus room for the text fields, so
//     an oversized upload fails while parsing, before the service sees it.
//  2. Text fields become the same input struct a JSON body decodes into.
//  3. The file part is handed to the service as an io.Reader; the service
//     sniffs its type and stores it.
type CardHandler struct {
	service       CardService
	maxImageBytes int64
	logger        *slog.Logger
}

func NewCardHandler(svc CardService, maxImageBytes int64, logger *slog.Logger) *CardHandler {
	if maxImageBytes <= 0 {
		maxImageBytes = service.DefaultMaxImageBytes
	}
	return &CardHandler{service: svc, maxImageBytes: maxImageBytes, logger: logger}
}

// HandleList returns all cards, or one folder's cards with ?folder_id=N.
func (h *CardHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	var folderID *int64
	if raw := r.URL.Query().Get("folder_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, apperror.BadRequest("folder_id must be an integer"))
			return
		}
		folderID = &id
	}

	cards, err := h.service.List(r.Context(), folderID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cards)
}

func (h *CardHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "card")
	if err != nil {
		writeError(w, err)
		return
	}

	card, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

// HandleCreate creates a card. Responds 201 with the card and a Location header.
func (h *CardHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var (
		in    service.CreateCardInput
		image *service.Image
		err   error
	)

	if isMultipart(r) {
		image, err = h.parseForm(w, r)
		if err == nil {
			err = h.createInputFromForm(r, &in)
		}
	} else {
		err = decodeJSON(w, r, "card", &in)
	}
	defer closeImage(image)
	if err != nil {
		writeError(w, err)
		return
	}

	card, err := h.service.Create(r.Context(), in, image)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/cards/%d", card.ID))
	writeJSON(w, http.StatusCreated, card)
}

// HandleUpdate applies a partial update. A new image replaces the old one.
func (h *CardHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "card")
	if err != nil {
		writeError(w, err)
		return
	}

	var (
		in    service.UpdateCardInput
		image *service.Image
	)
	if isMultipart(r) {
		image, err = h.parseForm(w, r)
		if err == nil {
			err = h.updateInputFromForm(r, &in)
		}
	} else {
		err = decodeJSON(w, r, "card", &in)
	}
	defer closeImage(image)
	if err != nil {
		writeError(w, err)
		return
	}

	card, err := h.service.Update(r.Context(), id, in, image)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

func (h *CardHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "card")
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// parseForm reads the multipart form and returns the attached image, or nil
// when none was sent. Oversized forms are rejected before the service sees them.
func (h *CardHandler) parseForm(w http.ResponseWriter, r *http.Request) (*service.Image, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxImageBytes+formOverhead)

	if err := r.ParseMultipartForm(formOverhead); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, apperror.ValidationFailed("image", fmt.Sprintf("must be at most %d bytes", h.maxImageBytes))
		}
		h.logger.Warn("malformed multipart form", slog.String("error", err.Error()))
		return nil, apperror.BadRequest("malformed multipart form")
	}

	for _, key := range []string{"card[image]", "image"} {
		files := r.MultipartForm.File[key]
		if len(files) == 0 {
			continue
		}
		header := files[0]
		f, err := header.Open()
		if err != nil {
			return nil, fmt.Errorf("opening uploaded file: %w", err)
		}
		return &service.Image{Filename: header.Filename, Size: header.Size, Content: f}, nil
	}
	return nil, nil
}

func (h *CardHandler) createInputFromForm(r *http.Request, in *service.CreateCardInput) error {
	in.Title, _ = formValue(r, "card", "title")
	in.Body, _ = formValue(r, "card", "body")

	var err error
	if in.FolderID, err = formInt64(r, "card", "folder_id"); err != nil {
		return err
	}
	in.Position, err = formInt(r, "card", "position")
	return err
}

func (h *CardHandler) updateInputFromForm(r *http.Request, in *service.UpdateCardInput) error {
	if v, ok := formValue(r, "card", "title"); ok {
		in.Title = &v
	}
	if v, ok := formValue(r, "card", "body"); ok {
		in.Body = &v
	}

	var err error
	if in.FolderID, err = formInt64(r, "card", "folder_id"); err != nil {
		return err
	}
	in.Position, err = formInt(r, "card", "position")
	return err
}

// closeImage closes the multipart file behind an image, if any.
func closeImage(image *service.Image) {
	if image == nil {
		return
	}
	if c, ok := image.Content.(interface{ Close() error }); ok {
		_ = c.Close()
	}
}
