// Package storage keeps card image attachments outside the database.
//
// A BlobStore saves bytes under an opaque key. The database only records the
// key; the public URL is derived from it on every read, so moving blobs to a
// different backend never rewrites rows.
//
// BACKENDS:
//   - LocalStore: files under a directory (default, good for one machine)
//   - S3Store:    any S3 compatible bucket (AWS, MinIO, R2)
package storage

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/rs/xid"
)

// Object describes a stored blob.
type Object struct {
	Key         string
	ContentType string
	Size        int64
}

// BlobStore saves, streams and removes attachments.
// Delete of a missing key is not an error.
// Open of a missing key returns an apperror.ErrNotFound.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, Object, error)
	Delete(ctx context.Context, key string) error
}

// imageExtensions maps every image type http.DetectContentType can report to
// the one extension stored for it. Keys never take an extension from a
// client filename: the extension decides the Content-Type a blob is served
// with, so "evil.html" must not become a .html key.
var imageExtensions = map[string]string{
	"image/avif":   ".avif",
	"image/bmp":    ".bmp",
	"image/gif":    ".gif",
	"image/jpeg":   ".jpg",
	"image/png":    ".png",
	"image/webp":   ".webp",
	"image/x-icon": ".ico",
}

// ExtensionFor returns the key extension for a sniffed image content type.
// The bool is false for anything that is not a known image type.
func ExtensionFor(contentType string) (string, bool) {
	ext, ok := imageExtensions[contentType]
	return ext, ok
}

// ContentTypeOf returns the type a key is served with: the image type
// matching its extension, or application/octet-stream.
func ContentTypeOf(key string) string {
	ext := strings.ToLower(path.Ext(key))
	for contentType, e := range imageExtensions {
		if e == ext {
			return contentType
		}
	}
	return "application/octet-stream"
}

// NewKey returns a fresh key under prefix, e.g. "cards/cpb1l2ie0b6s73cc3sfg.png".
// The extension comes from the sniffed content type only; unknown types get none.
//
// xid keeps keys short and sortable by creation time, which makes a bucket
// listing read in upload order.
func NewKey(prefix, contentType string) string {
	ext, _ := ExtensionFor(contentType)
	return prefix + "/" + xid.New().String() + ext
}

// ValidKey reports whether key is a relative slash path without dot segments.
// Keys come back in URLs, so anything else is rejected before touching a backend.
func ValidKey(key string) bool {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return false
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return false
		}
	}
	return true
}

// URLFor builds the public URL of a key. With an empty base the URL is
// root-relative ("/blobs/cards/x.png"); otherwise it is absolute.
func URLFor(baseURL, key string) string {
	if key == "" {
		return ""
	}
	return strings.TrimRight(baseURL, "/") + "/blobs/" + key
}
