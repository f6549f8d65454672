package compression

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"smartpdf/internal/codec"
)

const (
	// Page sampling bounds; analysis cost stays flat for very large
	// documents.
	headSampledPages = 20
	maxSampledPages  = 40

	// DPI at which page area is expressed when computing the image-area
	// fraction.
	renderDPI = 150

	// Average per-object compression overhead applied to raw pixel area.
	imageOverheadFactor = 1.15

	// Classification thresholds on the image-area fraction.
	imageHeavyThreshold = 0.6
	textHeavyThreshold  = 0.15
)

// Analyzer classifies a document and predicts its achievable compressed
// size range.
type Analyzer struct {
	logger *slog.Logger
}

// NewAnalyzer creates a new analyzer instance
func NewAnalyzer(logger *slog.Logger) *Analyzer {
	return &Analyzer{logger: logger}
}

// Analyze produces the document profile used to seed the parameter
// search. The returned range is a prediction, not a guarantee.
func (a *Analyzer) Analyze(ctx context.Context, doc codec.Document, originalSize int64) (*Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pageCount := doc.PageCount()
	if pageCount == 0 {
		return nil, fmt.Errorf("document has no pages: %w", codec.ErrUnreadableDocument)
	}

	pages := doc.Pages()
	sampled := samplePages(pageCount)

	sampledSet := make(map[int]bool, len(sampled))
	var pageArea float64
	for _, idx := range sampled {
		sampledSet[pages[idx].Number] = true
		w := pages[idx].Width / 72 * renderDPI
		h := pages[idx].Height / 72 * renderDPI
		pageArea += w * h
	}

	images := doc.Images()
	var sampledImageArea float64
	var totalImageBytes int64
	for _, img := range images {
		totalImageBytes += img.SizeBytes
		if sampledSet[img.Page] {
			sampledImageArea += float64(img.Width) * float64(img.Height) * imageOverheadFactor
		}
	}

	fraction := 0.0
	if pageArea > 0 {
		fraction = sampledImageArea / pageArea
	}
	if fraction > 1 {
		fraction = 1
	}

	hasText := doc.HasText()
	textChars := a.countTextCharacters(doc, sampled, pageCount)

	class := classify(fraction, hasText)

	hasFonts := doc.FontCount() > 0
	minSize, maxSize := estimateRange(originalSize, totalImageBytes, images, hasFonts)

	profile := &Profile{
		PageCount:          pageCount,
		OriginalSize:       originalSize,
		ImageAreaFraction:  fraction,
		Class:              class,
		HasText:            hasText,
		TextCharacterCount: textChars,
		ImageCount:         len(images),
		TotalImageBytes:    totalImageBytes,
		HasEmbeddedFonts:   hasFonts,
		HasMetadata:        doc.HasMetadata(),
		EstimatedMinSize:   minSize,
		EstimatedMaxSize:   maxSize,
	}

	a.logger.Info("document analyzed",
		"pages", pageCount,
		"image_fraction", fraction,
		"class", class,
		"estimated_min", minSize,
		"estimated_max", maxSize)

	return profile, nil
}

// samplePages returns zero-based page indexes to inspect: the leading
// pages plus a stride sample of the remainder.
func samplePages(pageCount int) []int {
	if pageCount <= maxSampledPages {
		indexes := make([]int, pageCount)
		for i := range indexes {
			indexes[i] = i
		}
		return indexes
	}

	indexes := make([]int, 0, maxSampledPages)
	for i := 0; i < headSampledPages; i++ {
		indexes = append(indexes, i)
	}

	remaining := pageCount - headSampledPages
	tailSamples := maxSampledPages - headSampledPages
	stride := remaining / tailSamples
	for i := 0; i < tailSamples; i++ {
		indexes = append(indexes, headSampledPages+i*stride)
	}
	return indexes
}

func (a *Analyzer) countTextCharacters(doc codec.Document, sampled []int, pageCount int) int {
	total := 0
	counted := 0
	for _, idx := range sampled {
		text, err := doc.PageText(idx)
		if err != nil {
			continue
		}
		total += len(strings.TrimSpace(text))
		counted++
	}
	if counted == 0 {
		return 0
	}
	// Extrapolate linearly by page count for large documents
	return total * pageCount / counted
}

func classify(imageAreaFraction float64, hasText bool) Classification {
	switch {
	case imageAreaFraction >= imageHeavyThreshold:
		return ClassImageHeavy
	case imageAreaFraction <= textHeavyThreshold && hasText:
		return ClassTextHeavy
	default:
		return ClassMixed
	}
}

// estimateRange predicts the achievable size range by applying the
// representative aggressive and conservative reduction factors to the
// image and non-image shares of the file. The image factors depend on
// the dominant source format: JPEG images hold less compression
// potential than PNG or uncompressed streams.
func estimateRange(originalSize, totalImageBytes int64, images []codec.ImageInfo, hasEmbeddedFonts bool) (int64, int64) {
	if originalSize <= 0 {
		return 0, 0
	}

	imageBytes := totalImageBytes
	if imageBytes > originalSize {
		imageBytes = originalSize
	}
	nonImageBytes := originalSize - imageBytes

	imageReductionMin, imageReductionMax := 0.3, 0.7
	if len(images) > 0 {
		jpegCount, pngCount := 0, 0
		for _, img := range images {
			switch strings.ToLower(img.Format) {
			case "jpeg", "jpg":
				jpegCount++
			case "png":
				pngCount++
			}
		}
		if float64(jpegCount)/float64(len(images)) > 0.8 {
			imageReductionMin, imageReductionMax = 0.5, 0.8
		} else if float64(pngCount)/float64(len(images)) > 0.5 {
			imageReductionMin, imageReductionMax = 0.2, 0.5
		}
	}

	nonImageReductionMin, nonImageReductionMax := 0.8, 0.95
	if hasEmbeddedFonts {
		nonImageReductionMin *= 0.9
		nonImageReductionMax *= 0.95
	}

	minSize := int64(float64(imageBytes)*imageReductionMin + float64(nonImageBytes)*nonImageReductionMin)
	maxSize := int64(float64(imageBytes)*imageReductionMax + float64(nonImageBytes)*nonImageReductionMax)

	if floor := originalSize / 10; minSize < floor {
		minSize = floor
	}
	if maxSize > originalSize {
		maxSize = originalSize
	}
	if maxSize < minSize {
		maxSize = minSize
	}

	return minSize, maxSize
}
