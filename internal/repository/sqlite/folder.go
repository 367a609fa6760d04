package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/cardbox/internal/apperror"
	"github.com/sakif/cardbox/internal/model"
	"github.com/sakif/cardbox/internal/repository"
)

var _ repository.FolderRepository = (*FolderStore)(nil)

const folderColumns = `id, name, parent_id, position, created_at, updated_at`

// FolderStore reads and writes the folders table.
type FolderStore struct {
	q DBTX
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanFolder(row rowScanner) (*model.Folder, error) {
	var (
		f      model.Folder
		parent sql.NullInt64
	)
	if err := row.Scan(&f.ID, &f.Name, &parent, &f.Position, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	if parent.Valid {
		id := parent.Int64
		f.ParentID = &id
	}
	return &f, nil
}

// nullableID converts an optional id into a driver argument (nil becomes SQL NULL).
func nullableID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}

// Create inserts a folder and fills in its ID and timestamps.
func (s *FolderStore) Create(ctx context.Context, folder *model.Folder) error {
	now := time.Now().UTC()
	folder.CreatedAt = now
	folder.UpdatedAt = now

	res, err := s.q.ExecContext(ctx,
		`INSERT INTO folders (name, parent_id, position, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		folder.Name,
		nullableID(folder.ParentID),
		folder.Position,
		folder.CreatedAt,
		folder.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating folder: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading folder id: %w", err)
	}
	folder.ID = id

	return nil
}

// GetByID returns the folder or apperror.ErrNotFound.
func (s *FolderStore) GetByID(ctx context.Context, id int64) (*model.Folder, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+folderColumns+` FROM folders WHERE id = ?`, id)

	folder, err := scanFolder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("folder", id)
		}
		return nil, fmt.Errorf("sqlite: getting folder %d: %w", id, err)
	}
	return folder, nil
}

// Exists reports whether a folder with the id is stored.
func (s *FolderStore) Exists(ctx context.Context, id int64) (bool, error) {
	var n int
	err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM folders WHERE id = ?`, id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking folder %d: %w", id, err)
	}
	return n > 0, nil
}

// ListChildren returns the direct children of parentID.
func (s *FolderStore) ListChildren(ctx context.Context, parentID int64) ([]model.Folder, error) {
	return s.list(ctx,
		`SELECT `+folderColumns+` FROM folders
		 WHERE parent_id = ?
		 ORDER BY position, id`, parentID)
}

// ListAll returns every folder, siblings grouped in position order.
func (s *FolderStore) ListAll(ctx context.Context) ([]model.Folder, error) {
	return s.list(ctx,
		`SELECT `+folderColumns+` FROM folders
		 ORDER BY parent_id, position, id`)
}

func (s *FolderStore) list(ctx context.Context, query string, args ...any) ([]model.Folder, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing folders: %w", err)
	}
	defer rows.Close()

	folders := make([]model.Folder, 0)
	for rows.Next() {
		f, err := scanFolder(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning folder row: %w", err)
		}
		folders = append(folders, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating folders: %w", err)
	}

	return folders, nil
}

// NextPosition returns one past the highest sibling position under parentID
// (nil for roots), or 0 when there are no siblings.
func (s *FolderStore) NextPosition(ctx context.Context, parentID *int64) (int, error) {
	var next int
	// IS compares NULL safely, so one query covers roots and children.
	err := s.q.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position) + 1, 0) FROM folders WHERE parent_id IS ?`,
		nullableID(parentID),
	).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("sqlite: computing folder position: %w", err)
	}
	return next, nil
}

// Update writes name, parent and position. Returns ErrNotFound when no row matched.
func (s *FolderStore) Update(ctx context.Context, folder *model.Folder) error {
	folder.UpdatedAt = time.Now().UTC()

	res, err := s.q.ExecContext(ctx,
		`UPDATE folders
		 SET name = ?, parent_id = ?, position = ?, updated_at = ?
		 WHERE id = ?`,
		folder.Name,
		nullableID(folder.ParentID),
		folder.Position,
		folder.UpdatedAt,
		folder.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating folder %d: %w", folder.ID, err)
	}

	return requireAffected(res, "folder", folder.ID)
}

// SetPosition rewrites one folder's position. A missing id matches zero rows
// and reports false without an error.
func (s *FolderStore) SetPosition(ctx context.Context, id int64, position int) (bool, error) {
	res, err := s.q.ExecContext(ctx,
		`UPDATE folders SET position = ?, updated_at = ? WHERE id = ?`,
		position, time.Now().UTC(), id)
	if err != nil {
		return false, fmt.Errorf("sqlite: positioning folder %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return n > 0, nil
}

// Delete removes one folder row. Children and cards must be removed first.
func (s *FolderStore) Delete(ctx context.Context, id int64) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM folders WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting folder %d: %w", id, err)
	}
	return requireAffected(res, "folder", id)
}

// requireAffected turns a zero-row write into apperror.NotFound.
func requireAffected(res sql.Result, resource string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}
