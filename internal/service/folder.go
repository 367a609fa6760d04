// Package service contains the business rules of cardbox.
//
// LAYERS:
//
//	Handler (HTTP)     → parses requests, writes responses
//	Service (rules)    → validates, enforces referential rules, orchestrates
//	Repository (data)  → reads/writes the database
//
// WHY A SEPARATE SERVICE LAYER?
// A folder move has to check that the new parent exists, that it is not a
// descendant of the folder being moved, and pick the next free position, all
// in one transaction. If handlers did that, every rule would need an HTTP
// request to test and the CLI could not reuse it. Services take primitives
// and small input structs, never *http.Request, and return apperror values
// that the handler maps to status codes.
//
// DEPENDENCY CHAIN:
//
//	server.New creates:  sqlite.DB → Store → Service → Handler
//	At runtime:          Handler calls Service calls Store calls SQLite
//
// Services depend on repository.Store and storage.BlobStore (interfaces), so
// tests run against the in-memory fakes in store_test.go and never open a
// database file.
//
// TRANSACTIONS:
// Every operation that touches more than one row runs inside Store.WithTx.
// Attachment blobs live outside the database, so they are deleted only after
// the transaction commits; a failed blob delete is logged and leaves an
// orphaned file, never a dangling row.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/sakif/cardbox/internal/apperror"
	"github.com/sakif/cardbox/internal/model"
	"github.com/sakif/cardbox/internal/repository"
	"github.com/sakif/cardbox/internal/storage"
)

const MaxFolderNameLength = 255

// CreateFolderInput carries the fields of a new folder.
// A nil Position appends the folder after its last sibling.
type CreateFolderInput struct {
	Name     string `json:"name"`
	ParentID *int64 `json:"parent_id"`
	Position *int   `json:"position"`
}

// UnmarshalJSON decodes parent_id with the same rules as every other id in
// a request body: a number, a numeric string or null.
func (in *CreateFolderInput) UnmarshalJSON(data []byte) error {
	type plain CreateFolderInput
	aux := struct {
		*plain
		ParentID model.OptionalInt64 `json:"parent_id"`
	}{plain: (*plain)(in)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	in.ParentID = aux.ParentID.Value
	return nil
}

// UpdateFolderInput is a partial update; nil or absent fields are left alone.
// ParentID distinguishes "absent" from "null" (move to root).
type UpdateFolderInput struct {
	Name     *string             `json:"name"`
	ParentID model.OptionalInt64 `json:"parent_id"`
	Position *int                `json:"position"`
}

// FolderService handles folders and their trees.
type FolderService struct {
	store  repository.Store
	blobs  storage.BlobStore
	tree   *TreeBuilder
	logger *slog.Logger
}

func NewFolderService(store repository.Store, blobs storage.BlobStore, tree *TreeBuilder, logger *slog.Logger) *FolderService {
	return &FolderService{
		store:  store,
		blobs:  blobs,
		tree:   tree,
		logger: logger,
	}
}

// ListRoots returns every root folder as a tree, ordered by position.
func (s *FolderService) ListRoots(ctx context.Context) ([]*model.FolderNode, error) {
	var trees []*model.FolderNode
	err := s.store.WithTx(ctx, func(ctx context.Context, tx repository.Repositories) error {
		snap, err := s.tree.Load(ctx, tx)
		if err != nil {
			return err
		}
		trees = s.tree.BuildRoots(snap)
		return nil
	})
	if err != nil {
		s.logger.Error("failed to list folders", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing folders: %w", err)
	}
	return trees, nil
}

// Get returns the tree rooted at id.
func (s *FolderService) Get(ctx context.Context, id int64) (*model.FolderNode, error) {
	var tree *model.FolderNode
	err := s.store.WithTx(ctx, func(ctx context.Context, tx repository.Repositories) error {
		snap, err := s.tree.Load(ctx, tx)
		if err != nil {
			return err
		}
		if tree = s.tree.Build(snap, id); tree == nil {
			return apperror.NotFound("folder", id)
		}
		return nil
	})
	if err != nil {
		return nil, s.failed("get folder", err, slog.Int64("id", id))
	}
	return tree, nil
}

// Create validates and saves a new folder.
func (s *FolderService) Create(ctx context.Context, in CreateFolderInput) (*model.Folder, error) {
	in.Name = strings.TrimSpace(in.Name)

	err := validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.RuneLength(1, MaxFolderNameLength)),
		validation.Field(&in.Position, validation.Min(0)),
	)
	if err != nil {
		return nil, apperror.FromValidation(err)
	}

	folder := &model.Folder{Name: in.Name, ParentID: in.ParentID}

	err = s.store.WithTx(ctx, func(ctx context.Context, tx repository.Repositories) error {
		if in.ParentID != nil {
			if err := requireParent(ctx, tx.Folders(), *in.ParentID); err != nil {
				return err
			}
		}

		if in.Position != nil {
			folder.Position = *in.Position
		} else {
			next, err := tx.Folders().NextPosition(ctx, in.ParentID)
			if err != nil {
				return err
			}
			folder.Position = next
		}

		return tx.Folders().Create(ctx, folder)
	})
	if err != nil {
		return nil, s.failed("create folder", err, slog.String("name", in.Name))
	}

	s.logger.Info("folder created",
		slog.Int64("id", folder.ID),
		slog.String("name", folder.Name),
		slog.Any("parent_id", folder.ParentID),
	)
	return folder, nil
}

// Update applies a partial update. Moving a folder under itself or one of
// its descendants is rejected. A move without an explicit position appends
// the folder after its new siblings.
func (s *FolderService) Update(ctx context.Context, id int64, in UpdateFolderInput) (*model.Folder, error) {
	rules := []*validation.FieldRules{
		validation.Field(&in.Position, validation.Min(0)),
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		in.Name = &name
		rules = append(rules,
			validation.Field(&in.Name, validation.Required, validation.RuneLength(1, MaxFolderNameLength)))
	}
	if err := validation.ValidateStruct(&in, rules...); err != nil {
		return nil, apperror.FromValidation(err)
	}

	var folder *model.Folder
	err := s.store.WithTx(ctx, func(ctx context.Context, tx repository.Repositories) error {
		var err error
		folder, err = tx.Folders().GetByID(ctx, id)
		if err != nil {
			return err
		}

		if in.Name != nil {
			folder.Name = *in.Name
		}

		moved := false
		if in.ParentID.Present && !sameID(folder.ParentID, in.ParentID.Value) {
			if in.ParentID.Value != nil {
				if err := requireParent(ctx, tx.Folders(), *in.ParentID.Value); err != nil {
					return err
				}
				if err := validateNoCircularReference(ctx, tx.Folders(), id, *in.ParentID.Value); err != nil {
					return err
				}
			}
			folder.ParentID = in.ParentID.Value
			moved = true
		}

		switch {
		case in.Position != nil:
			folder.Position = *in.Position
		case moved:
			next, err := tx.Folders().NextPosition(ctx, folder.ParentID)
			if err != nil {
				return err
			}
			folder.Position = next
		}

		return tx.Folders().Update(ctx, folder)
	})
	if err != nil {
		return nil, s.failed("update folder", err, slog.Int64("id", id))
	}

	s.logger.Info("folder updated",
		slog.Int64("id", folder.ID),
		slog.String("name", folder.Name),
		slog.Any("parent_id", folder.ParentID),
	)
	return folder, nil
}

// Delete removes the folder, every descendant folder, and every card they
// hold, all in one transaction. Attachments are released after commit.
func (s *FolderService) Delete(ctx context.Context, id int64) error {
	var (
		removedFolders []int64
		removedCards   []model.Card
	)

	err := s.store.WithTx(ctx, func(ctx context.Context, tx repository.Repositories) error {
		if _, err := tx.Folders().GetByID(ctx, id); err != nil {
			return err
		}

		order, err := collectSubtree(ctx, tx.Folders(), id)
		if err != nil {
			return err
		}

		// Deepest first, so no folder is deleted while it still has children.
		for i := len(order) - 1; i >= 0; i-- {
			cards, err := tx.Cards().DeleteByFolder(ctx, order[i])
			if err != nil {
				return err
			}
			removedCards = append(removedCards, cards...)

			if err := tx.Folders().Delete(ctx, order[i]); err != nil {
				return err
			}
		}
		removedFolders = order
		return nil
	})
	if err != nil {
		return s.failed("delete folder", err, slog.Int64("id", id))
	}

	releaseImages(ctx, s.blobs, s.logger, removedCards)

	s.logger.Info("folder deleted",
		slog.Int64("id", id),
		slog.Int("folders", len(removedFolders)),
		slog.Int("cards", len(removedCards)),
	)
	return nil
}

// collectSubtree returns id followed by all its descendants, parents before
// children. Iterative with a visited set, so a corrupt cycle cannot loop.
func collectSubtree(ctx context.Context, folders repository.FolderRepository, id int64) ([]int64, error) {
	visited := map[int64]bool{id: true}
	order := []int64{id}
	stack := []int64{id}

	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		children, err := folders.ListChildren(ctx, cur)
		if err != nil {
			return nil, err
		}
		for _, child := range children {
			if visited[child.ID] {
				continue
			}
			visited[child.ID] = true
			order = append(order, child.ID)
			stack = append(stack, child.ID)
		}
	}
	return order, nil
}

func requireParent(ctx context.Context, folders repository.FolderRepository, parentID int64) error {
	ok, err := folders.Exists(ctx, parentID)
	if err != nil {
		return err
	}
	if !ok {
		return apperror.ValidationFailed("parent_id", "must reference an existing folder")
	}
	return nil
}

// validateNoCircularReference walks up from newParentID to a root and fails
// if it meets folderID on the way.
func validateNoCircularReference(ctx context.Context, folders repository.FolderRepository, folderID, newParentID int64) error {
	if folderID == newParentID {
		return apperror.ValidationFailed("parent_id", "cannot be the folder itself")
	}

	seen := map[int64]bool{}
	current := newParentID
	for !seen[current] {
		seen[current] = true

		parent, err := folders.GetByID(ctx, current)
		if err != nil {
			return err
		}
		if parent.ParentID == nil {
			return nil
		}
		if *parent.ParentID == folderID {
			return apperror.ValidationFailed("parent_id", "cannot be a descendant of the folder")
		}
		current = *parent.ParentID
	}
	return nil
}

func sameID(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// failed logs unexpected store errors and wraps them. Application errors
// (not found, validation) pass through untouched and unlogged.
func (s *FolderService) failed(op string, err error, attrs ...any) error {
	return logFailure(s.logger, op, err, attrs...)
}
