package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/cardbox/internal/apperror"
	"github.com/sakif/cardbox/internal/model"
	"github.com/sakif/cardbox/internal/storage"
)

// logFailure passes *apperror.AppError values through untouched: not found
// and validation errors are normal outcomes, not failures. Anything else is
// logged at Error and wrapped with the operation name.
func logFailure(logger *slog.Logger, op string, err error, attrs ...any) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}

	logger.Error("failed to "+op, append(attrs, slog.String("error", err.Error()))...)
	return fmt.Errorf("%s: %w", op, err)
}

// releaseImages deletes the attachments of removed cards. Failures leave an
// orphaned blob behind and are only logged.
func releaseImages(ctx context.Context, blobs storage.BlobStore, logger *slog.Logger, cards []model.Card) {
	for _, c := range cards {
		releaseImage(ctx, blobs, logger, c.ImageKey)
	}
}

func releaseImage(ctx context.Context, blobs storage.BlobStore, logger *slog.Logger, key string) {
	if key == "" || blobs == nil {
		return
	}
	if err := blobs.Delete(ctx, key); err != nil {
		logger.Warn("failed to delete image",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}
