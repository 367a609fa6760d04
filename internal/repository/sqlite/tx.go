package sqlite

import (
	"context"
	"database/sql"

	"github.com/sakif/cardbox/internal/repository"
)

// DBTX is the subset of database/sql the stores use.
// Both *sql.DB and *sql.Tx satisfy it, so a store works the same inside and
// outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// txRepositories hands out stores bound to an open transaction.
type txRepositories struct {
	q DBTX
}

func (r txRepositories) Folders() repository.FolderRepository {
	return &FolderStore{q: r.q}
}

func (r txRepositories) Cards() repository.CardRepository {
	return &CardStore{q: r.q}
}

// withTx begins a transaction, runs fn with it, then commits on success or
// rolls back on error or panic. Panics are rethrown after the rollback.
func withTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(ctx context.Context, tx DBTX) error) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	err = fn(ctx, tx)
	return err
}
