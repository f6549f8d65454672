// Package memcodec provides a deterministic in-memory implementation of
// the codec capability. Documents are described by explicit size
// arithmetic (structural bytes, per-image bytes with incompressible
// floors, text and font bytes), which makes engine behavior fully
// predictable in tests and benchmarks.
package memcodec

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"smartpdf/internal/codec"
)

// Default source DPI assumed for synthetic images. Matches the moderate
// source DPI the analyzer assumes for scale calculations.
const sourceDPI = 300

// ImageSpec describes one synthetic raster image.
type ImageSpec struct {
	Width       int
	Height      int
	SizeBytes   int64
	Format      string // jpeg, png; "jbig2" is treated as unsupported
	FloorBytes  int64  // size below which re-encoding cannot shrink the image
	DuplicateOf string // ID of an identical image; freed by deduplication
}

// PageSpec describes one synthetic page.
type PageSpec struct {
	Width  float64 // points; zero defaults to US Letter
	Height float64
	Text   string
	Images []ImageSpec
}

// Spec describes a synthetic document.
type Spec struct {
	Pages         []PageSpec
	StructBytes   int64 // objects, streams, xref overhead
	MetadataBytes int64
	FontBytes     int64
	FontCount     int
}

// Codec maps registered byte streams to document specs. Unregistered
// input decodes as an unreadable document.
type Codec struct {
	mu   sync.Mutex
	docs map[string]Spec
}

func NewCodec() *Codec {
	return &Codec{docs: make(map[string]Spec)}
}

// Register associates raw input bytes with a document spec.
func (c *Codec) Register(data []byte, spec Spec) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs[string(data)] = spec
}

func (c *Codec) Decode(ctx context.Context, data []byte) (codec.Document, error) {
	c.mu.Lock()
	spec, ok := c.docs[string(data)]
	c.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("decode: %w", codec.ErrUnreadableDocument)
	}
	return NewDocument(spec), nil
}

type image struct {
	info        codec.ImageInfo
	current     int64
	floor       int64
	duplicateOf string
	unsupported bool
}

// Document implements codec.Document over a Spec.
type Document struct {
	mu sync.Mutex

	pages       []codec.PageInfo
	texts       []string
	images      []*image
	structBytes int64
	metaBytes   int64
	fontBytes   int64
	fontCount   int

	metaStripped bool
	deduped      bool
	fontsSubset  bool
	textRemoved  bool
	closed       bool
}

// NewDocument builds a Document directly from a Spec, bypassing Decode.
func NewDocument(spec Spec) *Document {
	d := &Document{
		structBytes: spec.StructBytes,
		metaBytes:   spec.MetadataBytes,
		fontBytes:   spec.FontBytes,
		fontCount:   spec.FontCount,
	}

	for i, p := range spec.Pages {
		w, h := p.Width, p.Height
		if w == 0 {
			w = 612
		}
		if h == 0 {
			h = 792
		}
		d.pages = append(d.pages, codec.PageInfo{
			Number:  i + 1,
			Width:   w,
			Height:  h,
			HasText: p.Text != "",
		})
		d.texts = append(d.texts, p.Text)

		for j, img := range p.Images {
			floor := img.FloorBytes
			if floor <= 0 {
				floor = 256
			}
			d.images = append(d.images, &image{
				info: codec.ImageInfo{
					ID:        fmt.Sprintf("img-%d-%d", i+1, j+1),
					Page:      i + 1,
					Width:     img.Width,
					Height:    img.Height,
					SizeBytes: img.SizeBytes,
					Format:    img.Format,
				},
				current:     img.SizeBytes,
				floor:       floor,
				duplicateOf: img.DuplicateOf,
				unsupported: img.Format == "jbig2",
			})
		}
	}

	return d
}

func (d *Document) PageCount() int {
	return len(d.pages)
}

func (d *Document) Pages() []codec.PageInfo {
	out := make([]codec.PageInfo, len(d.pages))
	copy(out, d.pages)
	return out
}

func (d *Document) Images() []codec.ImageInfo {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]codec.ImageInfo, 0, len(d.images))
	for _, img := range d.images {
		info := img.info
		info.SizeBytes = img.current
		out = append(out, info)
	}
	return out
}

func (d *Document) HasText() bool {
	if d.textRemoved {
		return false
	}
	for _, t := range d.texts {
		if t != "" {
			return true
		}
	}
	return false
}

func (d *Document) HasMetadata() bool {
	return d.metaBytes > 0 && !d.metaStripped
}

func (d *Document) FontCount() int {
	return d.fontCount
}

func (d *Document) PageText(pageIndex int) (string, error) {
	if pageIndex < 0 || pageIndex >= len(d.texts) {
		return "", fmt.Errorf("page %d out of range", pageIndex)
	}
	if d.textRemoved {
		return "", nil
	}
	return d.texts[pageIndex], nil
}

func (d *Document) Clone() codec.Document {
	d.mu.Lock()
	defer d.mu.Unlock()

	clone := &Document{
		pages:        append([]codec.PageInfo(nil), d.pages...),
		texts:        append([]string(nil), d.texts...),
		structBytes:  d.structBytes,
		metaBytes:    d.metaBytes,
		fontBytes:    d.fontBytes,
		fontCount:    d.fontCount,
		metaStripped: d.metaStripped,
		deduped:      d.deduped,
		fontsSubset:  d.fontsSubset,
		textRemoved:  d.textRemoved,
	}
	for _, img := range d.images {
		cp := *img
		clone.images = append(clone.images, &cp)
	}
	return clone
}

func (d *Document) StripMetadata() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.metaStripped {
		return 0
	}
	d.metaStripped = true
	return d.metaBytes
}

func (d *Document) DeduplicateObjects() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.deduped {
		return 0
	}
	d.deduped = true

	n := 0
	for _, img := range d.images {
		if img.duplicateOf != "" {
			n++
		}
	}
	return n
}

func (d *Document) ReencodeImage(ctx context.Context, imageID string, dpi, quality int) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for _, img := range d.images {
		if img.info.ID != imageID {
			continue
		}
		if img.unsupported {
			return 0, &codec.UnsupportedImageError{ImageID: imageID, Format: img.info.Format}
		}

		scale := float64(dpi) / sourceDPI
		if scale > 1 {
			scale = 1
		}
		factor := (0.15 + 0.85*float64(quality)/100) * scale * scale

		next := int64(float64(img.info.SizeBytes) * factor)
		if next < img.floor {
			next = img.floor
		}
		// Re-encoding never grows an object
		if next < img.current {
			img.current = next
		}
		return img.current, nil
	}

	return 0, fmt.Errorf("image %s not found", imageID)
}

func (d *Document) SubsetFonts() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.fontsSubset || d.fontCount == 0 {
		return 0
	}
	d.fontsSubset = true
	return d.fontCount
}

func (d *Document) RemoveText() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.textRemoved = true
	for i := range d.pages {
		d.pages[i].HasText = false
	}
	return nil
}

// Serialize emits a byte stream whose layout is stable across passes:
// header, structural block, per-image blocks, font block, text block,
// metadata block. Removing text only removes the text block, which
// keeps the remaining content byte-identical for round-trip checks.
func (d *Document) Serialize(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	writeBlock(&buf, "struct", 0x00, d.structBytes)

	for _, img := range d.images {
		if d.deduped && img.duplicateOf != "" {
			continue
		}
		writeBlock(&buf, img.info.ID, fill(img.info.ID), img.current)
	}

	fontBytes := d.fontBytes
	if d.fontsSubset {
		fontBytes = int64(float64(fontBytes) * 0.6)
	}
	writeBlock(&buf, "fonts", 0x66, fontBytes)

	if !d.textRemoved {
		for i, t := range d.texts {
			if t != "" {
				fmt.Fprintf(&buf, "text:%d:%s\n", i+1, t)
			}
		}
	}

	if !d.metaStripped {
		writeBlock(&buf, "meta", 0x6d, d.metaBytes)
	}

	buf.WriteString("%%EOF\n")
	return buf.Bytes(), nil
}

func (d *Document) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func writeBlock(buf *bytes.Buffer, label string, b byte, n int64) {
	fmt.Fprintf(buf, "obj:%s:%d\n", label, n)
	buf.Write(bytes.Repeat([]byte{b}, int(n)))
	buf.WriteString("\n")
}

func fill(id string) byte {
	var sum byte
	for i := 0; i < len(id); i++ {
		sum += id[i]
	}
	return 0x20 + sum%0x5f
}
