package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/sakif/cardbox/internal/apperror"
	"github.com/sakif/cardbox/internal/model"
	"github.com/sakif/cardbox/internal/service"
)

// OrderService is what OrderHandler needs from the service layer.
type OrderService interface {
	Reorder(ctx context.Context, kind service.Kind, ids []int64) error
}

// OrderHandler serves the drag-and-drop sort endpoints:
//
//	PATCH /folders/sort     {"order":[3,1,2]}
//	PATCH /api/cards/sort   {"order":[9,8]}
//
// Each id gets its index as its new position. The response is 200 with an
// empty body.
type OrderHandler struct {
	service OrderService
	logger  *slog.Logger
}

func NewOrderHandler(svc OrderService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{service: svc, logger: logger}
}

// sortRequest keeps each id raw so it is parsed by model.ParseID like every
// other id; DOM data attributes arrive as strings.
type sortRequest struct {
	Order *[]json.RawMessage `json:"order"`
}

func (h *OrderHandler) HandleSortFolders(w http.ResponseWriter, r *http.Request) {
	h.sort(w, r, service.KindFolders)
}

func (h *OrderHandler) HandleSortCards(w http.ResponseWriter, r *http.Request) {
	h.sort(w, r, service.KindCards)
}

func (h *OrderHandler) sort(w http.ResponseWriter, r *http.Request, kind service.Kind) {
	var req sortRequest
	if err := decodeJSON(w, r, "", &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Order == nil {
		writeError(w, apperror.BadRequest("order is required"))
		return
	}

	ids := make([]int64, 0, len(*req.Order))
	for _, raw := range *req.Order {
		id, err := model.ParseID(raw)
		if err != nil {
			writeError(w, apperror.ValidationFailed("order", "ids must be integers"))
			return
		}
		ids = append(ids, id)
	}

	if err := h.service.Reorder(r.Context(), kind, ids); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
