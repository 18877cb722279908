// Package document models references to source documents and loads their
// bytes from a backing location.
//
// A Reference identifies a document by storage location plus content
// identifier. The location keys jobs; the content identifier (a SHA-256 of
// the bytes) decides whether a cached enhancement result is still valid.
package document

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned when the referenced document does not exist.
var ErrNotFound = errors.New("document not found")

// Reference is the immutable identifier of a source document.
type Reference struct {
	// Location is the storage path of the document.
	Location string `json:"location"`
	// ContentID is the SHA-256 hex digest of the document bytes. It may be
	// empty on an arrival event; the source fills it in on load.
	ContentID string `json:"content_id,omitempty"`
}

// Key returns the job key for the reference. Jobs are keyed by location;
// content identity is checked separately for cache validity.
func (r Reference) Key() string {
	return r.Location
}

func (r Reference) String() string {
	if r.ContentID == "" {
		return r.Location
	}
	return r.Location + "@" + shortID(r.ContentID)
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// Document is a loaded source document.
type Document struct {
	Ref      Reference
	Data     []byte
	MIMEType string
}

// ContentID computes the content identifier for a byte slice.
func ContentID(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Source loads document bytes for a reference.
type Source interface {
	// Load fetches the document and fills in Ref.ContentID from the bytes.
	Load(ctx context.Context, ref Reference) (*Document, error)
}

// FSSource loads documents from the local filesystem, optionally rooted at a
// base directory.
type FSSource struct {
	Root string
}

// NewFSSource creates a filesystem source. An empty root resolves locations
// as given.
func NewFSSource(root string) *FSSource {
	return &FSSource{Root: root}
}

// Load reads the document bytes and derives the content identifier.
func (s *FSSource) Load(ctx context.Context, ref Reference) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := ref.Location
	if s.Root != "" && !filepath.IsAbs(path) {
		path = filepath.Join(s.Root, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, ref.Location)
		}
		return nil, fmt.Errorf("failed to read document %s: %w", ref.Location, err)
	}

	loaded := ref
	loaded.ContentID = ContentID(data)
	return &Document{
		Ref:      loaded,
		Data:     data,
		MIMEType: DetectMIME(path, data),
	}, nil
}

// DetectMIME guesses the document media type from the file extension,
// falling back to content sniffing for PDFs.
func DetectMIME(path string, data []byte) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return "application/pdf"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".tif", ".tiff":
		return "image/tiff"
	case ".gif":
		return "image/gif"
	}
	if len(data) >= 4 && string(data[:4]) == "%PDF" {
		return "application/pdf"
	}
	return "application/octet-stream"
}
