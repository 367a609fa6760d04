package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sakif/cardbox/internal/model"
	"github.com/sakif/cardbox/internal/service"
)

// FolderService is what FolderHandler needs from the service layer.
// *service.FolderService satisfies it; tests may pass a fake.
type FolderService interface {
	ListRoots(ctx context.Context) ([]*model.FolderNode, error)
	Get(ctx context.Context, id int64) (*model.FolderNode, error)
	Create(ctx context.Context, in service.CreateFolderInput) (*model.Folder, error)
	Update(ctx context.Context, id int64, in service.UpdateFolderInput) (*model.Folder, error)
	Delete(ctx context.Context, id int64) error
}

// FolderHandler serves the folder endpoints.
//
// ROUTES:
//   - GET    /api/folders       → HandleList   (every root as a full tree)
//   - GET    /api/folders/{id}  → HandleGet    (one folder as a full tree)
//   - POST   /folders           → HandleCreate (201 + the folder)
//   - PATCH  /folders/{id}      → HandleUpdate
//   - DELETE /folders/{id}      → HandleDelete (204, cascades)
type FolderHandler struct {
	service FolderService
	logger  *slog.Logger
}

func NewFolderHandler(svc FolderService, logger *slog.Logger) *FolderHandler {
	return &FolderHandler{service: svc, logger: logger}
}

// HandleList returns the root folders, each expanded into its tree.
// An empty store gives [] rather than null.
func (h *FolderHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	trees, err := h.service.ListRoots(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, trees)
}

// HandleGet returns one folder with its cards and all descendants:
//
//	{"id":1,"name":"A","cards":[],"children":[{"id":2,"name":"B","cards":[...],"children":[]}]}
func (h *FolderHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "folder")
	if err != nil {
		writeError(w, err)
		return
	}

	tree, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tree)
}

// HandleCreate creates a folder from {"name","parent_id","position"},
// flat or wrapped in "folder".
func (h *FolderHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in service.CreateFolderInput
	if err := decodeJSON(w, r, "folder", &in); err != nil {
		writeError(w, err)
		return
	}

	folder, err := h.service.Create(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/folders/%d", folder.ID))
	writeJSON(w, http.StatusCreated, folder)
}

// HandleUpdate applies a partial update. "parent_id": null moves the folder
// to the root; omitting parent_id leaves it where it is.
func (h *FolderHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "folder")
	if err != nil {
		writeError(w, err)
		return
	}

	var in service.UpdateFolderInput
	if err := decodeJSON(w, r, "folder", &in); err != nil {
		writeError(w, err)
		return
	}

	folder, err := h.service.Update(r.Context(), id, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, folder)
}

// HandleDelete removes the folder, its subfolders and all their cards.
func (h *FolderHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "folder")
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
