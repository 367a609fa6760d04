package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/cardbox/internal/apperror"
	"github.com/sakif/cardbox/internal/repository"
)

// Kind names the entity a reorder applies to.
type Kind string

const (
	KindFolders Kind = "folders"
	KindCards   Kind = "cards"
)

// OrderService applies a drag-and-drop permutation by rewriting positions.
//
// WHY FULL REWRITES INSTEAD OF SWAPS?
// The client only knows the order it shows after a drop, not which rows
// moved. Rewriting every listed position in one transaction makes the result
// independent of earlier state, and a repeated request is harmless.
//
// Reorder sets position = index for each id in the list. There is no
// sibling-scope check: the client sends the ids it displays side by side,
// and ids that match no row are skipped. Applying the same list twice gives
// the same positions.
type OrderService struct {
	store  repository.Store
	logger *slog.Logger
}

func NewOrderService(store repository.Store, logger *slog.Logger) *OrderService {
	return &OrderService{store: store, logger: logger}
}

// Reorder writes all positions in one transaction. An empty list is a no-op;
// a repeated id is rejected because its final position would be ambiguous.
func (s *OrderService) Reorder(ctx context.Context, kind Kind, ids []int64) error {
	if kind != KindFolders && kind != KindCards {
		return apperror.ValidationFailed("kind", fmt.Sprintf("unknown kind %q", kind))
	}
	if len(ids) == 0 {
		return nil
	}

	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return apperror.ValidationFailed("order", fmt.Sprintf("id %d appears more than once", id))
		}
		seen[id] = true
	}

	var matched int
	err := s.store.WithTx(ctx, func(ctx context.Context, tx repository.Repositories) error {
		setPosition := tx.Folders().SetPosition
		if kind == KindCards {
			setPosition = tx.Cards().SetPosition
		}

		for i, id := range ids {
			ok, err := setPosition(ctx, id, i)
			if err != nil {
				return err
			}
			if ok {
				matched++
			}
		}
		return nil
	})
	if err != nil {
		return logFailure(s.logger, "reorder "+string(kind), err)
	}

	s.logger.Info(string(kind)+" reordered",
		slog.Int("requested", len(ids)),
		slog.Int("matched", matched),
	)
	return nil
}
