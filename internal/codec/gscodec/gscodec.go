// Package gscodec implements the codec capability on top of a page
// reader for inspection and Ghostscript's pdfwrite device for
// serialization. Per-image re-encode requests are recorded on the
// document and folded into one rewrite envelope when it is serialized,
// since pdfwrite downsamples per document rather than per object.
package gscodec

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ledongthuc/pdf"

	"smartpdf/internal/codec"
)

// Default page size in points when the media box is absent.
const (
	defaultPageWidth  = 612
	defaultPageHeight = 792
)

// Codec decodes PDFs and serializes them through Ghostscript.
type Codec struct {
	gsPath string
	logger *slog.Logger
}

// NewCodec creates a new Ghostscript codec instance
func NewCodec(gsPath string, logger *slog.Logger) *Codec {
	return &Codec{gsPath: gsPath, logger: logger}
}

// Decode parses the raw bytes into pages, per-page text, and the image
// object inventory.
func (c *Codec) Decode(ctx context.Context, data []byte) (codec.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return nil, fmt.Errorf("missing PDF header: %w", codec.ErrUnreadableDocument)
	}

	reader, err := newReader(data)
	if err != nil {
		return nil, fmt.Errorf("parse failed: %v: %w", err, codec.ErrUnreadableDocument)
	}

	pageCount := reader.NumPage()
	if pageCount <= 0 {
		return nil, fmt.Errorf("document has no pages: %w", codec.ErrUnreadableDocument)
	}

	pages := make([]codec.PageInfo, 0, pageCount)
	pageText := make([]string, 0, pageCount)
	fonts := make(map[string]bool)
	hasText := false

	for i := 1; i <= pageCount; i++ {
		page := reader.Page(i)
		info := codec.PageInfo{Number: i, Width: defaultPageWidth, Height: defaultPageHeight}
		text := ""

		if !page.V.IsNull() {
			if w, h, ok := mediaBox(page); ok {
				info.Width, info.Height = w, h
			}
			for _, name := range page.Fonts() {
				fonts[name] = true
			}
			// Pages with broken content streams read as empty rather than
			// failing the whole decode
			if t, err := page.GetPlainText(nil); err == nil {
				text = t
			}
		}

		info.HasText = strings.TrimSpace(text) != ""
		if info.HasText {
			hasText = true
		}
		pages = append(pages, info)
		pageText = append(pageText, text)
	}

	scan := scanObjects(data)
	images := make([]codec.ImageInfo, 0, len(scan.images))
	for i, obj := range scan.images {
		images = append(images, codec.ImageInfo{
			ID:        fmt.Sprintf("obj-%d", obj.objectNumber),
			Page:      attributePage(i, len(scan.images), pageCount),
			Width:     obj.width,
			Height:    obj.height,
			SizeBytes: obj.sizeBytes,
			Format:    obj.format,
		})
	}

	fontCount := len(fonts)
	if scan.fontFiles > fontCount {
		fontCount = scan.fontFiles
	}

	c.logger.Debug("document decoded",
		"pages", pageCount,
		"images", len(images),
		"fonts", fontCount,
		"metadata_bytes", scan.metadataBytes)

	return &document{
		codec:      c,
		data:       data,
		pages:      pages,
		pageText:   pageText,
		images:     images,
		hasText:    hasText,
		fontCount:  fontCount,
		metaBytes:  scan.metadataBytes,
		duplicates: scan.duplicateImages,
		targets:    make(map[string]encodeTarget),
	}, nil
}

// newReader recovers from panics inside the page parser, which throws
// on some malformed cross-reference tables.
func newReader(data []byte) (r *pdf.Reader, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("reader panic: %v", p)
		}
	}()
	return pdf.NewReader(bytes.NewReader(data), int64(len(data)))
}

func mediaBox(page pdf.Page) (float64, float64, bool) {
	box := page.V.Key("MediaBox")
	if box.Len() != 4 {
		return 0, 0, false
	}
	w := box.Index(2).Float64() - box.Index(0).Float64()
	h := box.Index(3).Float64() - box.Index(1).Float64()
	if w <= 0 || h <= 0 {
		return 0, 0, false
	}
	return w, h, true
}

// attributePage spreads image objects evenly across pages. The raw scan
// does not recover the object-to-page mapping; an even spread keeps the
// sampled image-area estimate unbiased.
func attributePage(index, imageCount, pageCount int) int {
	if imageCount == 0 || pageCount == 0 {
		return 1
	}
	return index*pageCount/imageCount + 1
}

type encodeTarget struct {
	dpi     int
	quality int
}

// document accumulates transform intents and materializes them in one
// Ghostscript rewrite at Serialize time.
type document struct {
	codec      *Codec
	data       []byte
	pages      []codec.PageInfo
	pageText   []string
	images     []codec.ImageInfo
	hasText    bool
	fontCount  int
	metaBytes  int64
	duplicates int

	mu        sync.Mutex
	targets   map[string]encodeTarget
	stripMeta bool
	dedup     bool
	subset    bool
	noText    bool
	closed    bool
}

func (d *document) PageCount() int          { return len(d.pages) }
func (d *document) Pages() []codec.PageInfo { return d.pages }
func (d *document) Images() []codec.ImageInfo {
	return d.images
}
func (d *document) HasText() bool     { return d.hasText }
func (d *document) HasMetadata() bool { return d.metaBytes > 0 }
func (d *document) FontCount() int    { return d.fontCount }

func (d *document) PageText(pageIndex int) (string, error) {
	if pageIndex < 0 || pageIndex >= len(d.pageText) {
		return "", fmt.Errorf("page %d out of range", pageIndex+1)
	}
	return d.pageText[pageIndex], nil
}

// Clone shares the immutable parse and starts with fresh transform
// intents.
func (d *document) Clone() codec.Document {
	return &document{
		codec:      d.codec,
		data:       d.data,
		pages:      d.pages,
		pageText:   d.pageText,
		images:     d.images,
		hasText:    d.hasText,
		fontCount:  d.fontCount,
		metaBytes:  d.metaBytes,
		duplicates: d.duplicates,
		targets:    make(map[string]encodeTarget),
	}
}

func (d *document) StripMetadata() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stripMeta = true
	return d.metaBytes
}

func (d *document) DeduplicateObjects() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dedup = true
	return d.duplicates
}

// ReencodeImage records the rewrite target for one image. The returned
// size is a projection; the actual size is only known after Serialize.
func (d *document) ReencodeImage(ctx context.Context, imageID string, dpi, quality int) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var img *codec.ImageInfo
	for i := range d.images {
		if d.images[i].ID == imageID {
			img = &d.images[i]
			break
		}
	}
	if img == nil {
		return 0, fmt.Errorf("unknown image %s", imageID)
	}

	switch img.Format {
	case "jbig2", "ccitt":
		// pdfwrite passes these streams through untouched
		return 0, &codec.UnsupportedImageError{ImageID: imageID, Format: img.Format}
	}

	d.mu.Lock()
	d.targets[imageID] = encodeTarget{dpi: dpi, quality: quality}
	d.mu.Unlock()

	return projectedSize(img.SizeBytes, dpi, quality), nil
}

// projectedSize estimates the re-encoded stream size from the DPI scale
// and quality factor.
func projectedSize(size int64, dpi, quality int) int64 {
	scale := float64(dpi) / 300
	if scale > 1 {
		scale = 1
	}
	factor := (0.2 + 0.8*float64(quality)/100) * scale * scale
	projected := int64(float64(size) * factor)
	if projected < 1 {
		projected = 1
	}
	return projected
}

func (d *document) SubsetFonts() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subset = true
	return d.fontCount
}

func (d *document) RemoveText() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.noText = true
	return nil
}

// Serialize folds the recorded intents into one pdfwrite invocation.
// The most aggressive recorded image target wins, matching the search
// controller which applies a single DPI/quality pair per pass anyway.
func (d *document) Serialize(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.codec.gsPath == "" {
		return nil, fmt.Errorf("ghostscript not available")
	}

	d.mu.Lock()
	args := buildArgs(d.rewriteOptions())
	d.mu.Unlock()

	tmpDir, err := os.MkdirTemp("", "smartpdf-gs-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	inputPath := filepath.Join(tmpDir, "input.pdf")
	outputPath := filepath.Join(tmpDir, "output.pdf")
	if err := os.WriteFile(inputPath, d.data, 0600); err != nil {
		return nil, fmt.Errorf("write temp input: %w", err)
	}

	args = append(args, "-sOutputFile="+outputPath, inputPath)

	cmd := exec.CommandContext(ctx, d.codec.gsPath, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("ghostscript failed: %v, output: %s", err, string(output))
	}

	result, err := os.ReadFile(outputPath)
	if err != nil {
		return nil, fmt.Errorf("ghostscript did not create output file: %w", err)
	}
	return result, nil
}

// rewriteOptions flattens the per-image targets into document-wide
// settings. Callers hold the mutex.
func (d *document) rewriteOptions() rewriteOptions {
	opts := rewriteOptions{
		stripMetadata: d.stripMeta,
		deduplicate:   d.dedup,
		subsetFonts:   d.subset,
		removeText:    d.noText,
	}
	for _, t := range d.targets {
		if opts.imageDPI == 0 || t.dpi < opts.imageDPI {
			opts.imageDPI = t.dpi
		}
		if opts.imageQuality == 0 || t.quality < opts.imageQuality {
			opts.imageQuality = t.quality
		}
	}
	return opts
}

func (d *document) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

type rewriteOptions struct {
	imageDPI      int
	imageQuality  int
	stripMetadata bool
	deduplicate   bool
	subsetFonts   bool
	removeText    bool
}

// buildArgs assembles the pdfwrite argument list for one rewrite pass.
// Output file and input path are appended by the caller.
func buildArgs(opts rewriteOptions) []string {
	args := []string{
		"-sDEVICE=pdfwrite",
		"-dCompatibilityLevel=1.7",
		"-dNOPAUSE",
		"-dQUIET",
		"-dBATCH",
		"-dAutoRotatePages=/None",
		"-dOptimize=true",
	}

	if opts.imageDPI > 0 {
		args = append(args,
			"-dDownsampleColorImages=true",
			"-dDownsampleGrayImages=true",
			"-dDownsampleMonoImages=true",
			"-dColorImageDownsampleType=/Bicubic",
			fmt.Sprintf("-dColorImageResolution=%d", opts.imageDPI),
			"-dGrayImageDownsampleType=/Bicubic",
			fmt.Sprintf("-dGrayImageResolution=%d", opts.imageDPI),
			"-dMonoImageDownsampleType=/Subsample",
			fmt.Sprintf("-dMonoImageResolution=%d", opts.imageDPI),
		)
	}

	if opts.imageQuality > 0 {
		args = append(args,
			"-dAutoFilterColorImages=false",
			"-dAutoFilterGrayImages=false",
			"-dColorImageFilter=/DCTEncode",
			"-dGrayImageFilter=/DCTEncode",
			fmt.Sprintf("-dJPEGQ=%d", opts.imageQuality),
			"-dPassThroughJPEGImages=false",
		)
	}

	args = append(args, fmt.Sprintf("-dSubsetFonts=%t", opts.subsetFonts))

	if opts.deduplicate {
		args = append(args, "-dDetectDuplicateImages=true")
	}
	if opts.stripMetadata {
		args = append(args, "-dPDFX", "-dUseCIEColor")
	}
	if opts.removeText {
		args = append(args, "-dFILTERTEXT")
	}

	return args
}
