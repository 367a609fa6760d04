package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/cardbox/internal/apperror"
)

// maxJSONBytes caps every JSON request body.
const maxJSONBytes = 1 << 20

// decodeJSON reads the request body into dst. Bodies may be flat
// ({"name":"A"}) or wrapped in a resource key ({"folder":{"name":"A"}}),
// which is what form-style clients send.
//
// Unknown fields are ignored. Malformed JSON, an empty body and oversized
// bodies are bad requests.
func decodeJSON(w http.ResponseWriter, r *http.Request, wrapper string, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBytes)

	data, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return apperror.BadRequest(fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit))
		}
		return apperror.BadRequest("could not read request body")
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return apperror.BadRequest("request body is empty")
	}

	if wrapper != "" {
		var envelope map[string]json.RawMessage
		if err := json.Unmarshal(data, &envelope); err == nil {
			if inner, ok := envelope[wrapper]; ok {
				data = inner
			}
		}
	}

	if err := json.Unmarshal(data, dst); err != nil {
		return apperror.BadRequest("invalid JSON: " + err.Error())
	}
	return nil
}

// pathID parses the {id} URL parameter. An id that is not a positive integer
// cannot name any row, so it is reported as not found.
func pathID(r *http.Request, resource string) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.NotFound(resource, raw)
	}
	return id, nil
}

// isMultipart reports whether the request carries a multipart form.
func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}

// formValue looks up a form field by its plain name or its resource-scoped
// name ("title" or "card[title]"). The bool reports whether either was sent.
func formValue(r *http.Request, wrapper, name string) (string, bool) {
	if r.MultipartForm == nil {
		return "", false
	}
	for _, key := range []string{wrapper + "[" + name + "]", name} {
		if vs, ok := r.MultipartForm.Value[key]; ok && len(vs) > 0 {
			return vs[0], true
		}
	}
	return "", false
}

// formInt64 parses an optional integer form field. Blank counts as absent.
func formInt64(r *http.Request, wrapper, name string) (*int64, error) {
	raw, ok := formValue(r, wrapper, name)
	raw = strings.TrimSpace(raw)
	if !ok || raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, apperror.ValidationFailed(name, "must be an integer")
	}
	return &v, nil
}

// formInt is formInt64 for int fields.
func formInt(r *http.Request, wrapper, name string) (*int, error) {
	v, err := formInt64(r, wrapper, name)
	if err != nil || v == nil {
		return nil, err
	}
	n := int(*v)
	return &n, nil
}
