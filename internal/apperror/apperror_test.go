package apperror

import (
	"errors"
	"testing"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// TABLE-DRIVEN TESTS:
// Each case names the error, the sentinel it should (or should not) match,
// and the expected errors.Is result.

func TestErrorsIs(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{
			name:      "NotFound wraps ErrNotFound",
			err:       NotFound("folder", int64(7)),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "ValidationFailed wraps ErrValidation",
			err:       ValidationFailed("name", "can't be blank"),
			target:    ErrValidation,
			wantMatch: true,
		},
		{
			name:      "Invalid wraps ErrValidation",
			err:       Invalid(map[string]string{"title": "can't be blank"}),
			target:    ErrValidation,
			wantMatch: true,
		},
		{
			name:      "BadRequest wraps ErrBadRequest",
			err:       BadRequest("invalid JSON body"),
			target:    ErrBadRequest,
			wantMatch: true,
		},
		{
			name:      "Unauthorized wraps ErrUnauthorized",
			err:       Unauthorized("valid authentication required"),
			target:    ErrUnauthorized,
			wantMatch: true,
		},
		{
			name:      "NotFound does NOT match ErrValidation",
			err:       NotFound("card", int64(1)),
			target:    ErrValidation,
			wantMatch: false,
		},
		{
			name:      "ValidationFailed does NOT match ErrNotFound",
			err:       ValidationFailed("name", "too long"),
			target:    ErrNotFound,
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errors.Is(tt.err, tt.target)
			if got != tt.wantMatch {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.wantMatch)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name        string
		err         *AppError
		wantMessage string
	}{
		{
			name:        "NotFound message includes resource and id",
			err:         NotFound("folder", int64(42)),
			wantMessage: "folder not found with id 42",
		},
		{
			name:        "ValidationFailed uses custom message",
			err:         ValidationFailed("name", "can't be blank"),
			wantMessage: "can't be blank",
		},
		{
			name: "Invalid lists fields in sorted order",
			err: Invalid(map[string]string{
				"title": "cannot be blank",
				"body":  "cannot be blank",
			}),
			wantMessage: "body: cannot be blank; title: cannot be blank",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMessage {
				t.Errorf("Error() = %q, want %q", got, tt.wantMessage)
			}
		})
	}
}

func TestUnwrap(t *testing.T) {
	err := NotFound("card", int64(3))
	if unwrapped := err.Unwrap(); unwrapped != ErrNotFound {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, ErrNotFound)
	}
}

func TestValidationFailedField(t *testing.T) {
	err := ValidationFailed("parent_id", "must reference an existing folder")

	if err.Field != "parent_id" {
		t.Errorf("Field = %q, want %q", err.Field, "parent_id")
	}
	if got := err.Fields["parent_id"]; got != "must reference an existing folder" {
		t.Errorf("Fields[parent_id] = %q", got)
	}
}

func TestInvalid_SingleFieldSetsField(t *testing.T) {
	err := Invalid(map[string]string{"name": "cannot be blank"})
	if err.Field != "name" {
		t.Errorf("Field = %q, want %q", err.Field, "name")
	}

	multi := Invalid(map[string]string{"a": "x", "b": "y"})
	if multi.Field != "" {
		t.Errorf("Field = %q, want empty for multiple fields", multi.Field)
	}
}

// =========================================================================
// OZZO-VALIDATION CONVERSION
// =========================================================================

func TestFromValidation_Nil(t *testing.T) {
	if err := FromValidation(nil); err != nil {
		t.Errorf("FromValidation(nil) = %v, want nil", err)
	}
}

func TestFromValidation_FieldErrors(t *testing.T) {
	input := struct {
		Title string
		Body  string
	}{}

	err := FromValidation(validation.Errors{
		"title": validation.Validate(input.Title, validation.Required),
		"body":  validation.Validate(input.Body, validation.Required),
	}.Filter())

	if !errors.Is(err, ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}

	var appErr *AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("error %T is not *AppError", err)
	}
	if len(appErr.Fields) != 2 {
		t.Fatalf("Fields = %v, want 2 entries", appErr.Fields)
	}
	if appErr.Fields["title"] != "cannot be blank" {
		t.Errorf("Fields[title] = %q, want %q", appErr.Fields["title"], "cannot be blank")
	}
}

func TestFromValidation_PlainError(t *testing.T) {
	err := FromValidation(errors.New("order must not contain duplicates"))
	if !errors.Is(err, ErrValidation) {
		t.Errorf("error = %v, want ErrValidation", err)
	}
}
