// Package storage implements the attachment store: validated, immutable
// binary payloads addressed by opaque references.
//
// Validation happens entirely before any byte reaches disk, so a rejected
// upload never leaves a partial artifact. References are UUID-based file
// names; anything that does not match the reference shape (including
// path-traversal-style inputs) resolves to ErrNotFound rather than an I/O
// error or a panic.
package storage

import (
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

var (
	// ErrInvalidMimeType is returned when the effective MIME type is not
	// in the allow-list.
	ErrInvalidMimeType = errors.New("mime type not allowed")

	// ErrTooLarge is returned when the payload exceeds the configured
	// size ceiling.
	ErrTooLarge = errors.New("attachment too large")

	// ErrNotFound is returned when a reference cannot be resolved to a
	// stored payload.
	ErrNotFound = errors.New("attachment not found")
)

// allowedMimeTypes is the fixed allow-list: PDF, Word/Excel/PowerPoint
// (OOXML and legacy), common images, plain text, and archives. It is
// configuration, not request input; nothing widens it at runtime.
var allowedMimeTypes = map[string]struct{}{
	"application/pdf":    {},
	"application/msword": {},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {},
	"application/vnd.ms-excel": {},
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": {},
	"application/vnd.ms-powerpoint":                                     {},
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": {},
	"image/jpeg":                   {},
	"image/png":                    {},
	"image/gif":                    {},
	"text/plain":                   {},
	"application/zip":              {},
	"application/x-rar-compressed": {},
	"application/vnd.rar":          {},
}

// refRE is the only reference shape Open will resolve: a UUID plus an
// optional short lowercase extension.
var refRE = regexp.MustCompile(`^[a-f0-9]{8}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{12}(\.[a-z0-9]{1,10})?$`)

// Stored describes a successfully persisted payload.
type Stored struct {
	Ref       string // opaque reference used for later retrieval
	MimeType  string // effective (declared or sniffed) MIME type
	SizeBytes int64
}

// Store writes validated payloads under a single directory.
type Store struct {
	dir      string
	maxBytes int64
}

// NewStore constructs a Store rooted at dir with the given per-file size
// ceiling. The directory is created if absent.
func NewStore(dir string, maxBytes int64) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Store{dir: dir, maxBytes: maxBytes}, nil
}

// Save validates data against the size ceiling and MIME allow-list and, on
// success, writes it under a fresh UUID reference. The declared MIME type
// wins when it is present and specific; an empty or generic declaration
// falls back to content sniffing. Validation failures return
// ErrTooLarge or ErrInvalidMimeType and write nothing.
func (s *Store) Save(data []byte, filename, declaredMime string) (*Stored, error) {
	if int64(len(data)) > s.maxBytes {
		return nil, ErrTooLarge
	}
	if len(data) == 0 {
		return nil, ErrInvalidMimeType
	}

	mt := effectiveMime(data, declaredMime)
	if _, ok := allowedMimeTypes[mt]; !ok {
		return nil, ErrInvalidMimeType
	}

	ref := uuid.NewString() + refExt(filename, data)
	path := filepath.Join(s.dir, ref)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, err
	}
	return &Stored{Ref: ref, MimeType: mt, SizeBytes: int64(len(data))}, nil
}

// Open resolves ref back to the stored bytes. Unknown, malformed, or
// traversal-style references all report ErrNotFound.
func (s *Store) Open(ref string) ([]byte, error) {
	if !refRE.MatchString(ref) {
		return nil, ErrNotFound
	}
	data, err := os.ReadFile(filepath.Join(s.dir, ref))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// Remove deletes the payload behind ref. It is the compensation hook for a
// failed message commit; removing an unknown reference is not an error.
func (s *Store) Remove(ref string) error {
	if !refRE.MatchString(ref) {
		return nil
	}
	err := os.Remove(filepath.Join(s.dir, ref))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// effectiveMime picks the MIME type used for validation: the declared type
// when specific, otherwise the sniffed content type (parameters stripped,
// e.g. "text/plain; charset=utf-8" → "text/plain").
func effectiveMime(data []byte, declared string) string {
	declared = strings.TrimSpace(strings.ToLower(declared))
	if i := strings.IndexByte(declared, ';'); i >= 0 {
		declared = strings.TrimSpace(declared[:i])
	}
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	mt := mimetype.Detect(data)
	base := mt.String()
	if i := strings.IndexByte(base, ';'); i >= 0 {
		base = strings.TrimSpace(base[:i])
	}
	return base
}

// refExt derives a safe lowercase extension for the stored file name,
// preferring the original filename and falling back to the sniffed type.
func refExt(filename string, data []byte) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if extRE.MatchString(ext) {
		return ext
	}
	if ext := mimetype.Detect(data).Extension(); extRE.MatchString(ext) {
		return ext
	}
	return ""
}

var extRE = regexp.MustCompile(`^\.[a-z0-9]{1,10}$`)
