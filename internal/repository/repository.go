// Package repository declares the storage interfaces the service layer depends on.
//
// Implementations live in sub-packages (repository/sqlite). Services only see
// these interfaces, so tests can swap in an in-memory store.
package repository

import (
	"context"

	"github.com/sakif/cardbox/internal/model"
)

// CardFilter narrows CardRepository.List. A nil FolderID lists every card.
type CardFilter struct {
	FolderID *int64
}

// FolderRepository persists folders.
//
// List methods return siblings ordered by position, then id.
// SetPosition reports whether a row matched; an unknown id is not an error.
type FolderRepository interface {
	Create(ctx context.Context, folder *model.Folder) error
	GetByID(ctx context.Context, id int64) (*model.Folder, error)
	Exists(ctx context.Context, id int64) (bool, error)
	ListChildren(ctx context.Context, parentID int64) ([]model.Folder, error)
	ListAll(ctx context.Context) ([]model.Folder, error)
	NextPosition(ctx context.Context, parentID *int64) (int, error)
	Update(ctx context.Context, folder *model.Folder) error
	SetPosition(ctx context.Context, id int64, position int) (bool, error)
	Delete(ctx context.Context, id int64) error
}

// CardRepository persists cards.
//
// List orders by folder, position, then id.
type CardRepository interface {
	Create(ctx context.Context, card *model.Card) error
	GetByID(ctx context.Context, id int64) (*model.Card, error)
	List(ctx context.Context, filter CardFilter) ([]model.Card, error)
	NextPosition(ctx context.Context, folderID int64) (int, error)
	Update(ctx context.Context, card *model.Card) error
	SetPosition(ctx context.Context, id int64, position int) (bool, error)
	Delete(ctx context.Context, id int64) error
	DeleteByFolder(ctx context.Context, folderID int64) ([]model.Card, error)
}

// Repositories groups the per-entity repositories bound to one connection
// or one transaction.
type Repositories interface {
	Folders() FolderRepository
	Cards() CardRepository
}

// Store is the root storage handle. WithTx runs fn against repositories bound
// to a single transaction: committed when fn returns nil, rolled back otherwise.
type Store interface {
	Repositories
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Repositories) error) error
	Ping(ctx context.Context) error
}
