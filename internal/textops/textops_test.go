package textops

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"smartpdf/internal/codec/memcodec"
)

func testHandler() *Handler {
	return NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestExtractTextWithPageMarkers(t *testing.T) {
	doc := memcodec.NewDocument(memcodec.Spec{
		Pages: []memcodec.PageSpec{
			{Text: "first page"},
			{},
			{Text: "third page"},
		},
	})

	result, err := testHandler().ExtractText(context.Background(), doc, true)
	if err != nil {
		t.Fatalf("ExtractText failed: %v", err)
	}

	if result.TotalPages != 3 {
		t.Errorf("expected 3 total pages, got %d", result.TotalPages)
	}
	if result.PagesWithText != 2 {
		t.Errorf("expected 2 pages with text, got %d", result.PagesWithText)
	}
	if !strings.Contains(result.Text, "Page 1") || !strings.Contains(result.Text, "Page 3") {
		t.Errorf("missing page markers in output: %q", result.Text)
	}
	if strings.Contains(result.Text, "Page 2") {
		t.Errorf("empty page got a marker: %q", result.Text)
	}
	if !strings.Contains(result.Text, strings.Repeat("=", 50)) {
		t.Errorf("marker divider missing: %q", result.Text)
	}
}

func TestExtractTextWithoutMarkers(t *testing.T) {
	doc := memcodec.NewDocument(memcodec.Spec{
		Pages: []memcodec.PageSpec{{Text: "alpha beta"}},
	})

	result, err := testHandler().ExtractText(context.Background(), doc, false)
	if err != nil {
		t.Fatalf("ExtractText failed: %v", err)
	}

	if strings.Contains(result.Text, "Page 1") {
		t.Errorf("unexpected marker: %q", result.Text)
	}
	// "alpha beta" has 9 characters excluding the space
	if result.TotalCharacters != 9 {
		t.Errorf("expected 9 characters, got %d", result.TotalCharacters)
	}
}

func TestRemoveTextKeepsOtherContent(t *testing.T) {
	doc := memcodec.NewDocument(memcodec.Spec{
		Pages: []memcodec.PageSpec{
			{Text: "remove me", Images: []memcodec.ImageSpec{{Width: 100, Height: 100, SizeBytes: 5_000, Format: "jpeg"}}},
		},
		StructBytes: 1_000,
	})

	original, err := doc.Serialize(context.Background())
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}

	result, err := testHandler().RemoveText(context.Background(), doc, int64(len(original)))
	if err != nil {
		t.Fatalf("RemoveText failed: %v", err)
	}

	if strings.Contains(string(result.Data), "remove me") {
		t.Error("text still present after removal")
	}
	if result.NewSize >= result.OriginalSize {
		t.Errorf("expected size to shrink, got %d -> %d", result.OriginalSize, result.NewSize)
	}
	if result.PagesProcessed != 1 {
		t.Errorf("expected 1 page processed, got %d", result.PagesProcessed)
	}

	// Source document is untouched
	after, err := doc.Serialize(context.Background())
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}
	if string(after) != string(original) {
		t.Error("source document modified by RemoveText")
	}
}
