package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/sakif/cardbox/internal/apperror"
	"github.com/sakif/cardbox/internal/model"
	"github.com/sakif/cardbox/internal/repository"
	"github.com/sakif/cardbox/internal/storage"
)

const (
	MaxCardTitleLength   = 255
	MaxCardBodyLength    = 100000
	DefaultMaxImageBytes = 10 << 20 // 10 MiB
)

// sniffLen is how many bytes http.DetectContentType looks at.
const sniffLen = 512

// Image is an uploaded attachment. Size is the declared length in bytes.
// The declared content type and the filename extension are ignored; the real
// type is sniffed from the bytes.
type Image struct {
	Filename string
	Size     int64
	Content  io.Reader
}

// CreateCardInput carries the fields of a new card.
// FolderID is a pointer so a missing folder_id is reported as blank.
type CreateCardInput struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	FolderID *int64 `json:"folder_id"`
	Position *int   `json:"position"`
}

// UpdateCardInput is a partial update; nil fields are left alone.
type UpdateCardInput struct {
	Title    *string `json:"title"`
	Body     *string `json:"body"`
	FolderID *int64  `json:"folder_id"`
	Position *int    `json:"position"`
}

// UnmarshalJSON accepts folder_id as a number or a numeric string.
func (in *CreateCardInput) UnmarshalJSON(data []byte) error {
	type plain CreateCardInput
	aux := struct {
		*plain
		FolderID model.OptionalInt64 `json:"folder_id"`
	}{plain: (*plain)(in)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	in.FolderID = aux.FolderID.Value
	return nil
}

// UnmarshalJSON accepts folder_id as a number or a numeric string.
func (in *UpdateCardInput) UnmarshalJSON(data []byte) error {
	type plain UpdateCardInput
	aux := struct {
		*plain
		FolderID model.OptionalInt64 `json:"folder_id"`
	}{plain: (*plain)(in)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	in.FolderID = aux.FolderID.Value
	return nil
}

// CardOptions configures how cards render and which uploads are accepted.
type CardOptions struct {
	// BaseURL prefixes image URLs; empty gives root-relative URLs.
	BaseURL string
	// MaxImageBytes caps upload size; zero means DefaultMaxImageBytes.
	MaxImageBytes int64
}

// CardService handles cards and their image attachments.
//
// WHY THE BLOB IS WRITTEN BEFORE THE ROW:
// A card row must never point at a missing file, but a file with no row is
// harmless. So an upload is stored first and the row written in a
// transaction after it; if the transaction fails the new blob is deleted
// again. A replaced or removed image is released only after commit.
//
// IMAGE CHECKS:
//   - Size is checked against MaxImageBytes before reading the body.
//   - The type is sniffed from the first 512 bytes; the client's filename and
//     declared type are never trusted.
//   - The storage key extension comes from the sniffed type, so a blob is
//     always served back as the image it is.
type CardService struct {
	store  repository.Store
	blobs  storage.BlobStore
	opts   CardOptions
	logger *slog.Logger
}

func NewCardService(store repository.Store, blobs storage.BlobStore, opts CardOptions, logger *slog.Logger) *CardService {
	if opts.MaxImageBytes <= 0 {
		opts.MaxImageBytes = DefaultMaxImageBytes
	}
	return &CardService{
		store:  store,
		blobs:  blobs,
		opts:   opts,
		logger: logger,
	}
}

// List returns all cards, or only those in folderID when it is non-nil.
func (s *CardService) List(ctx context.Context, folderID *int64) ([]model.Card, error) {
	cards, err := s.store.Cards().List(ctx, repository.CardFilter{FolderID: folderID})
	if err != nil {
		s.logger.Error("failed to list cards", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing cards: %w", err)
	}
	for i := range cards {
		s.render(&cards[i])
	}
	return cards, nil
}

// Get returns one card.
func (s *CardService) Get(ctx context.Context, id int64) (*model.Card, error) {
	card, err := s.store.Cards().GetByID(ctx, id)
	if err != nil {
		return nil, s.failed("get card", err, slog.Int64("id", id))
	}
	s.render(card)
	return card, nil
}

// Create validates and saves a new card. When image is non-nil it is stored
// first; if the row cannot be written the blob is removed again.
func (s *CardService) Create(ctx context.Context, in CreateCardInput, image *Image) (*model.Card, error) {
	in.Title = strings.TrimSpace(in.Title)

	err := validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.Required, validation.RuneLength(1, MaxCardTitleLength)),
		validation.Field(&in.Body, validation.Required, validation.Length(1, MaxCardBodyLength)),
		validation.Field(&in.FolderID, validation.Required),
		validation.Field(&in.Position, validation.Min(0)),
	)
	if err != nil {
		return nil, apperror.FromValidation(err)
	}

	card := &model.Card{
		Title:    in.Title,
		Body:     in.Body,
		FolderID: *in.FolderID,
	}

	if image != nil {
		key, err := s.storeImage(ctx, image)
		if err != nil {
			return nil, err
		}
		card.ImageKey = key
	}

	err = s.store.WithTx(ctx, func(ctx context.Context, tx repository.Repositories) error {
		if err := requireFolder(ctx, tx.Folders(), card.FolderID); err != nil {
			return err
		}

		if in.Position != nil {
			card.Position = *in.Position
		} else {
			next, err := tx.Cards().NextPosition(ctx, card.FolderID)
			if err != nil {
				return err
			}
			card.Position = next
		}

		return tx.Cards().Create(ctx, card)
	})
	if err != nil {
		releaseImage(ctx, s.blobs, s.logger, card.ImageKey)
		return nil, s.failed("create card", err, slog.String("title", in.Title))
	}

	s.render(card)
	s.logger.Info("card created",
		slog.Int64("id", card.ID),
		slog.Int64("folder_id", card.FolderID),
		slog.Bool("image", card.HasImage()),
	)
	return card, nil
}

// Update applies a partial update. A new image replaces the old one, which
// is deleted after the row is saved. Moving to another folder without an
// explicit position appends the card there.
func (s *CardService) Update(ctx context.Context, id int64, in UpdateCardInput, image *Image) (*model.Card, error) {
	rules := []*validation.FieldRules{
		validation.Field(&in.Position, validation.Min(0)),
	}
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		in.Title = &title
		rules = append(rules,
			validation.Field(&in.Title, validation.Required, validation.RuneLength(1, MaxCardTitleLength)))
	}
	if in.Body != nil {
		rules = append(rules,
			validation.Field(&in.Body, validation.Required, validation.Length(1, MaxCardBodyLength)))
	}
	if in.FolderID != nil {
		rules = append(rules, validation.Field(&in.FolderID, validation.Required))
	}
	if err := validation.ValidateStruct(&in, rules...); err != nil {
		return nil, apperror.FromValidation(err)
	}

	var newKey string
	if image != nil {
		key, err := s.storeImage(ctx, image)
		if err != nil {
			return nil, err
		}
		newKey = key
	}

	var (
		card   *model.Card
		oldKey string
	)
	err := s.store.WithTx(ctx, func(ctx context.Context, tx repository.Repositories) error {
		var err error
		card, err = tx.Cards().GetByID(ctx, id)
		if err != nil {
			return err
		}

		if in.Title != nil {
			card.Title = *in.Title
		}
		if in.Body != nil {
			card.Body = *in.Body
		}

		moved := false
		if in.FolderID != nil && *in.FolderID != card.FolderID {
			if err := requireFolder(ctx, tx.Folders(), *in.FolderID); err != nil {
				return err
			}
			card.FolderID = *in.FolderID
			moved = true
		}

		switch {
		case in.Position != nil:
			card.Position = *in.Position
		case moved:
			next, err := tx.Cards().NextPosition(ctx, card.FolderID)
			if err != nil {
				return err
			}
			card.Position = next
		}

		if newKey != "" {
			oldKey = card.ImageKey
			card.ImageKey = newKey
		}

		return tx.Cards().Update(ctx, card)
	})
	if err != nil {
		releaseImage(ctx, s.blobs, s.logger, newKey)
		return nil, s.failed("update card", err, slog.Int64("id", id))
	}

	releaseImage(ctx, s.blobs, s.logger, oldKey)

	s.render(card)
	s.logger.Info("card updated",
		slog.Int64("id", card.ID),
		slog.Int64("folder_id", card.FolderID),
		slog.Bool("image_replaced", newKey != ""),
	)
	return card, nil
}

// Delete removes the card and then its attachment.
func (s *CardService) Delete(ctx context.Context, id int64) error {
	var card *model.Card
	err := s.store.WithTx(ctx, func(ctx context.Context, tx repository.Repositories) error {
		var err error
		if card, err = tx.Cards().GetByID(ctx, id); err != nil {
			return err
		}
		return tx.Cards().Delete(ctx, id)
	})
	if err != nil {
		return s.failed("delete card", err, slog.Int64("id", id))
	}

	releaseImage(ctx, s.blobs, s.logger, card.ImageKey)

	s.logger.Info("card deleted", slog.Int64("id", id))
	return nil
}

// storeImage checks the upload and writes it under a fresh key.
func (s *CardService) storeImage(ctx context.Context, image *Image) (string, error) {
	if s.blobs == nil {
		return "", apperror.ValidationFailed("image", "uploads are not configured")
	}
	if image.Size > s.opts.MaxImageBytes {
		return "", apperror.ValidationFailed("image",
			fmt.Sprintf("must be at most %d bytes", s.opts.MaxImageBytes))
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(image.Content, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", fmt.Errorf("reading image: %w", err)
	}
	head = head[:n]
	if n == 0 {
		return "", apperror.ValidationFailed("image", "cannot be empty")
	}

	contentType := http.DetectContentType(head)
	if _, ok := storage.ExtensionFor(contentType); !ok {
		return "", apperror.ValidationFailed("image", "must be a PNG, JPEG, GIF, WebP, AVIF, BMP or ICO image")
	}

	// The client filename is only logged; the key is built from the sniffed type.
	key := storage.NewKey("cards", contentType)
	content := io.MultiReader(bytes.NewReader(head), image.Content)
	size := image.Size
	if size <= 0 {
		size = -1
	}
	if err := s.blobs.Put(ctx, key, content, size, contentType); err != nil {
		s.logger.Error("failed to store image",
			slog.String("key", key),
			slog.String("filename", image.Filename),
			slog.String("error", err.Error()),
		)
		return "", fmt.Errorf("storing image: %w", err)
	}
	return key, nil
}

func (s *CardService) render(card *model.Card) {
	card.ImageURL = storage.URLFor(s.opts.BaseURL, card.ImageKey)
}

func (s *CardService) failed(op string, err error, attrs ...any) error {
	return logFailure(s.logger, op, err, attrs...)
}

func requireFolder(ctx context.Context, folders repository.FolderRepository, folderID int64) error {
	ok, err := folders.Exists(ctx, folderID)
	if err != nil {
		return err
	}
	if !ok {
		return apperror.ValidationFailed("folder_id", "must reference an existing folder")
	}
	return nil
}
