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

var _ repository.CardRepository = (*CardStore)(nil)

const cardColumns = `id, title, body, folder_id, position, image_key, created_at, updated_at`

// CardStore reads and writes the cards table.
type CardStore struct {
	q DBTX
}

func scanCard(row rowScanner) (*model.Card, error) {
	var c model.Card
	if err := row.Scan(
		&c.ID, &c.Title, &c.Body, &c.FolderID, &c.Position,
		&c.ImageKey, &c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &c, nil
}

// Create inserts a card and fills in its ID and timestamps.
func (s *CardStore) Create(ctx context.Context, card *model.Card) error {
	now := time.Now().UTC()
	card.CreatedAt = now
	card.UpdatedAt = now

	res, err := s.q.ExecContext(ctx,
		`INSERT INTO cards (title, body, folder_id, position, image_key, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		card.Title,
		card.Body,
		card.FolderID,
		card.Position,
		card.ImageKey,
		card.CreatedAt,
		card.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating card: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading card id: %w", err)
	}
	card.ID = id

	return nil
}

// GetByID returns the card or apperror.ErrNotFound.
func (s *CardStore) GetByID(ctx context.Context, id int64) (*model.Card, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+cardColumns+` FROM cards WHERE id = ?`, id)

	card, err := scanCard(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("card", id)
		}
		return nil, fmt.Errorf("sqlite: getting card %d: %w", id, err)
	}
	return card, nil
}

// List returns cards, optionally restricted to one folder.
func (s *CardStore) List(ctx context.Context, filter repository.CardFilter) ([]model.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards`
	var args []any
	if filter.FolderID != nil {
		query += ` WHERE folder_id = ?`
		args = append(args, *filter.FolderID)
	}
	query += ` ORDER BY folder_id, position, id`

	return s.list(ctx, query, args...)
}

func (s *CardStore) list(ctx context.Context, query string, args ...any) ([]model.Card, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing cards: %w", err)
	}
	defer rows.Close()

	cards := make([]model.Card, 0)
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning card row: %w", err)
		}
		cards = append(cards, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating cards: %w", err)
	}

	return cards, nil
}

// NextPosition returns one past the highest card position in the folder.
func (s *CardStore) NextPosition(ctx context.Context, folderID int64) (int, error) {
	var next int
	err := s.q.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position) + 1, 0) FROM cards WHERE folder_id = ?`,
		folderID,
	).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("sqlite: computing card position: %w", err)
	}
	return next, nil
}

// Update writes every mutable column. Returns ErrNotFound when no row matched.
func (s *CardStore) Update(ctx context.Context, card *model.Card) error {
	card.UpdatedAt = time.Now().UTC()

	res, err := s.q.ExecContext(ctx,
		`UPDATE cards
		 SET title = ?, body = ?, folder_id = ?, position = ?, image_key = ?, updated_at = ?
		 WHERE id = ?`,
		card.Title,
		card.Body,
		card.FolderID,
		card.Position,
		card.ImageKey,
		card.UpdatedAt,
		card.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating card %d: %w", card.ID, err)
	}

	return requireAffected(res, "card", card.ID)
}

// SetPosition rewrites one card's position; false when the id matched nothing.
func (s *CardStore) SetPosition(ctx context.Context, id int64, position int) (bool, error) {
	res, err := s.q.ExecContext(ctx,
		`UPDATE cards SET position = ?, updated_at = ? WHERE id = ?`,
		position, time.Now().UTC(), id)
	if err != nil {
		return false, fmt.Errorf("sqlite: positioning card %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return n > 0, nil
}

// Delete removes one card. Returns ErrNotFound when no row matched.
func (s *CardStore) Delete(ctx context.Context, id int64) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM cards WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting card %d: %w", id, err)
	}
	return requireAffected(res, "card", id)
}

// DeleteByFolder removes every card in the folder and returns the removed
// rows so the caller can release their attachments.
func (s *CardStore) DeleteByFolder(ctx context.Context, folderID int64) ([]model.Card, error) {
	cards, err := s.list(ctx,
		`SELECT `+cardColumns+` FROM cards WHERE folder_id = ? ORDER BY position, id`, folderID)
	if err != nil {
		return nil, err
	}
	if len(cards) == 0 {
		return cards, nil
	}

	if _, err := s.q.ExecContext(ctx, `DELETE FROM cards WHERE folder_id = ?`, folderID); err != nil {
		return nil, fmt.Errorf("sqlite: deleting cards of folder %d: %w", folderID, err)
	}
	return cards, nil
}
