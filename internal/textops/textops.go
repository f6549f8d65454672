// Package textops handles separation of a document's text layer:
// extraction to a plain-text artifact and production of a text-stripped
// document variant with image and vector content left untouched.
package textops

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"smartpdf/internal/codec"
)

const pageMarkerWidth = 50

// Handler performs text extraction and removal through the codec.
type Handler struct {
	logger *slog.Logger
}

// NewHandler creates a new text handler instance
func NewHandler(logger *slog.Logger) *Handler {
	return &Handler{logger: logger}
}

// ExtractionResult is the outcome of a text extraction pass.
type ExtractionResult struct {
	TotalCharacters int    `json:"total_characters"`
	TotalPages      int    `json:"total_pages"`
	PagesWithText   int    `json:"pages_with_text"`
	Text            string `json:"-"`
}

// RemovalResult is the outcome of a text removal pass.
type RemovalResult struct {
	OriginalSize   int64  `json:"original_size"`
	NewSize        int64  `json:"new_size"`
	PagesProcessed int    `json:"pages_processed"`
	Data           []byte `json:"-"`
}

// ExtractText collects the extractable text of every page. With page
// markers enabled, pages are separated by a numbered divider.
func (h *Handler) ExtractText(ctx context.Context, doc codec.Document, includePageMarkers bool) (*ExtractionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var sb strings.Builder
	pagesWithText := 0
	pageCount := doc.PageCount()

	for i := 0; i < pageCount; i++ {
		text, err := doc.PageText(i)
		if err != nil {
			return nil, fmt.Errorf("extract page %d: %w", i+1, err)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		pagesWithText++

		if includePageMarkers {
			marker := strings.Repeat("=", pageMarkerWidth)
			fmt.Fprintf(&sb, "\n%s\nPage %d\n%s\n\n", marker, i+1, marker)
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}

	full := sb.String()
	characters := len(strings.NewReplacer("\n", "", " ", "").Replace(full))

	h.logger.Info("text extracted",
		"pages_with_text", pagesWithText,
		"total_pages", pageCount,
		"characters", characters)

	return &ExtractionResult{
		TotalCharacters: characters,
		TotalPages:      pageCount,
		PagesWithText:   pagesWithText,
		Text:            full,
	}, nil
}

// RemoveText produces a document variant with text objects stripped.
// This is a distinct artifact, not a further compression pass.
func (h *Handler) RemoveText(ctx context.Context, doc codec.Document, originalSize int64) (*RemovalResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	work := doc.Clone()
	defer work.Close()

	if err := work.RemoveText(); err != nil {
		return nil, fmt.Errorf("remove text: %w", err)
	}

	data, err := work.Serialize(ctx)
	if err != nil {
		return nil, fmt.Errorf("serialize without text: %w", err)
	}

	h.logger.Info("text removed",
		"original_size", originalSize,
		"new_size", len(data),
		"pages", doc.PageCount())

	return &RemovalResult{
		OriginalSize:   originalSize,
		NewSize:        int64(len(data)),
		PagesProcessed: doc.PageCount(),
		Data:           data,
	}, nil
}
