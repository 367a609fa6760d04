// Package apperror defines the application's error taxonomy.
//
// Every error that should reach a client as something other than a 500 is an
// *AppError wrapping one of the sentinel errors below. Callers check the kind
// with errors.Is and read the message and field map with errors.As.
package apperror

import (
	"errors"
	"fmt"
	"sort"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("Validation Error")
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("unauthorized")
)

type AppError struct {
	Err     error             // actual error
	Message string            // Human-readable error message
	Field   string            // Optional: field causing the error
	Fields  map[string]string // Optional: every invalid field and its message
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource string, id any) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %v", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	e := &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
	if field != "" {
		e.Fields = map[string]string{field: message}
	}
	return e
}

// Invalid builds a validation error from a field -> message map.
// The Message lists the fields in sorted order: "body: cannot be blank; title: cannot be blank".
func Invalid(fields map[string]string) *AppError {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	msg := ""
	for i, k := range keys {
		if i > 0 {
			msg += "; "
		}
		msg += k + ": " + fields[k]
	}

	e := &AppError{
		Err:     ErrValidation,
		Message: msg,
		Fields:  fields,
	}
	if len(keys) == 1 {
		e.Field = keys[0]
	}
	return e
}

// FromValidation converts the result of an ozzo-validation call into an
// *AppError. nil stays nil. validation.Errors becomes a field-keyed
// validation error; an internal validation error (a broken rule, not bad
// input) is returned wrapped so it surfaces as a 500.
func FromValidation(err error) error {
	if err == nil {
		return nil
	}

	var internal validation.InternalError
	if errors.As(err, &internal) {
		return fmt.Errorf("validation rule failed: %w", internal.InternalError())
	}

	var errs validation.Errors
	if errors.As(err, &errs) {
		fields := make(map[string]string, len(errs))
		for field, fieldErr := range errs {
			if fieldErr != nil {
				fields[field] = fieldErr.Error()
			}
		}
		return Invalid(fields)
	}

	return ValidationFailed("", err.Error())
}

func BadRequest(message string) *AppError {
	return &AppError{
		Err:     ErrBadRequest,
		Message: message,
	}
}

// Unauthorized returns an AppError for a missing or invalid credential.
// HTTP handlers map this to 401 Unauthorized.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}
