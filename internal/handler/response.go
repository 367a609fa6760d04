// Package handler is the HTTP layer: it parses requests, calls a service and
// writes JSON.
//
// HANDLER RESPONSIBILITIES:
//   - decode the body (JSON flat or wrapped, or multipart for cards)
//   - parse path and query ids
//   - call one service method
//   - write the result or map the error
//
// WHY HANDLERS DEPEND ON SMALL INTERFACES:
// Each handler declares the few service methods it calls (FolderService,
// CardService and so on) instead of taking the concrete service. The handler
// tests wire real services over an in-memory SQLite database, and a test that
// only needs a fixed answer, like login, can pass a stub.
//
// ERROR FLOW:
//
//	service returns apperror.ValidationFailed  → writeError → 422 + fields
//	decode or parse fails with ErrBadRequest   → writeError → 400
//	service returns apperror.ErrUnauthorized   → writeError → 401
//	service returns apperror.ErrNotFound       → writeError → 404
//	anything else                              → writeError → 500, no details
//
// writeError is the single place that turns errors into status codes.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/cardbox/internal/apperror"
)

// ErrorResponse is the body of every error response:
//
//	{"error":"validation_error","message":"name: cannot be blank","fields":{"name":"cannot be blank"}}
type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// writeJSON sets headers and status before the body; once the encoder writes,
// header changes are ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps an error chain to a status code:
//
//	ErrValidation   → 422 with the field map
//	ErrBadRequest   → 400
//	ErrUnauthorized → 401
//	ErrNotFound     → 404
//	anything else   → 500 with a generic message
//
// Raw internal errors may carry SQL or file paths, so their text never
// reaches the client.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		errorType := "internal_error"

		switch {
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusUnprocessableEntity
			errorType = "validation_error"
		case errors.Is(err, apperror.ErrBadRequest):
			status = http.StatusBadRequest
			errorType = "bad_request"
		case errors.Is(err, apperror.ErrUnauthorized):
			status = http.StatusUnauthorized
			errorType = "unauthorized"
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound
			errorType = "not_found"
		}

		if status != http.StatusInternalServerError {
			writeJSON(w, status, ErrorResponse{
				Error:   errorType,
				Message: appErr.Message,
				Fields:  appErr.Fields,
			})
			return
		}
	}

	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}
