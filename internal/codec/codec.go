// Package codec defines the PDF codec capability consumed by the
// compression engine: decoding a document into an object/page model,
// re-encoding individual raster images, enumerating and removing text
// objects, and serializing the model back to bytes. The engine never
// assumes a specific backend; different implementations (Ghostscript,
// in-memory) are used interchangeably.
package codec

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnreadableDocument reports input that cannot be decoded: corrupt
// byte streams, encrypted documents without a key, or non-PDF data.
var ErrUnreadableDocument = errors.New("unreadable document")

// UnsupportedImageError reports an image object a transform cannot be
// applied to, e.g. an image codec the backend cannot re-encode. Callers
// are expected to skip the object and continue.
type UnsupportedImageError struct {
	ImageID string
	Format  string
}

func (e *UnsupportedImageError) Error() string {
	return fmt.Sprintf("unsupported image %s (format %s)", e.ImageID, e.Format)
}

// PageInfo describes one page of the decoded document.
type PageInfo struct {
	Number  int     `json:"number"`
	Width   float64 `json:"width"`  // points
	Height  float64 `json:"height"` // points
	HasText bool    `json:"has_text"`
}

// ImageInfo describes one raster image object.
type ImageInfo struct {
	ID        string `json:"id"`
	Page      int    `json:"page"`
	Width     int    `json:"width"`  // pixels
	Height    int    `json:"height"` // pixels
	SizeBytes int64  `json:"size_bytes"`
	Format    string `json:"format"` // jpeg, png, ...
}

// Codec decodes raw PDF bytes into a Document.
type Codec interface {
	// Decode parses data into an object/page model. Returns
	// ErrUnreadableDocument (possibly wrapped) if the input cannot be
	// decoded.
	Decode(ctx context.Context, data []byte) (Document, error)
}

// Document is a decoded document the engine transforms and serializes.
//
// Clone must produce an independent copy so one source document can
// feed several candidate passes. Implementations must be safe for
// concurrent ReencodeImage calls on the same Document; all other
// mutating methods are invoked sequentially.
type Document interface {
	PageCount() int
	Pages() []PageInfo
	Images() []ImageInfo
	HasText() bool
	HasMetadata() bool
	FontCount() int

	// PageText returns the extractable text of the given zero-based page.
	PageText(pageIndex int) (string, error)

	Clone() Document

	// StripMetadata removes document info dictionaries and unused
	// embedded resources, returning the estimated bytes removed.
	StripMetadata() int64

	// DeduplicateObjects rewrites references to structurally identical
	// objects onto a single shared object, returning the duplicate count.
	DeduplicateObjects() int

	// ReencodeImage re-encodes one raster image at the given DPI and
	// quality factor, returning the image's new size. Returns an
	// *UnsupportedImageError for objects the backend cannot rewrite.
	ReencodeImage(ctx context.Context, imageID string, dpi, quality int) (int64, error)

	// SubsetFonts rebuilds embedded fonts to referenced glyphs only,
	// returning the number of fonts rewritten.
	SubsetFonts() int

	// RemoveText drops text objects while leaving image and vector
	// content untouched.
	RemoveText() error

	// Serialize reassembles the document and returns its bytes.
	Serialize(ctx context.Context) ([]byte, error)

	Close() error
}
