package compression

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"smartpdf/internal/codec"
	"smartpdf/internal/concurrency"
)

// Reference DPI against which the quality estimate scales the
// resolution lever.
const referenceDPI = 300

// Pipeline produces one compressed candidate per invocation. Transforms
// run in a fixed order since later steps depend on earlier ones having
// already reduced object count and size: metadata strip, object
// deduplication, per-image re-encoding, font subsetting, then
// serialization.
type Pipeline struct {
	pool   *concurrency.Pool
	logger *slog.Logger
}

// NewPipeline creates a new pipeline instance
func NewPipeline(pool *concurrency.Pool, logger *slog.Logger) *Pipeline {
	return &Pipeline{pool: pool, logger: logger}
}

// Apply evaluates one parameter set against the document and returns
// the resulting candidate. Individual image objects that cannot be
// re-encoded are skipped and recorded on the candidate; the pass fails
// only when every image object fails or the context is cancelled.
func (p *Pipeline) Apply(ctx context.Context, doc codec.Document, params Params) (*Candidate, error) {
	return p.apply(ctx, doc, params, false)
}

// ApplyTextStripped runs the same transforms as Apply and additionally
// drops the text layer before serialization. Re-running the accepted
// parameter set this way keeps the non-text content identical to the
// size-compressed output.
func (p *Pipeline) ApplyTextStripped(ctx context.Context, doc codec.Document, params Params) (*Candidate, error) {
	return p.apply(ctx, doc, params, true)
}

func (p *Pipeline) apply(ctx context.Context, doc codec.Document, params Params, removeText bool) (*Candidate, error) {
	work := doc.Clone()
	defer work.Close()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if params.StripMetadata {
		removed := work.StripMetadata()
		p.logger.Debug("metadata stripped", "bytes_removed", removed)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if params.DeduplicateObjects {
		duplicates := work.DeduplicateObjects()
		p.logger.Debug("objects deduplicated", "duplicates", duplicates)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	processed, skipped, err := p.reencodeImages(ctx, work, params)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if params.SubsetFonts {
		subset := work.SubsetFonts()
		p.logger.Debug("fonts subset", "fonts", subset)
	}

	if removeText {
		if err := work.RemoveText(); err != nil {
			return nil, fmt.Errorf("remove text: %w", err)
		}
	}

	data, err := work.Serialize(ctx)
	if err != nil {
		return nil, fmt.Errorf("serialize: %w", err)
	}

	imageCount := len(work.Images())
	affected := 0.0
	if imageCount > 0 {
		affected = float64(processed) / float64(imageCount)
	}

	return &Candidate{
		Params:          params,
		SizeBytes:       int64(len(data)),
		Quality:         estimateQuality(params, affected),
		Data:            data,
		ImagesProcessed: processed,
		SkippedObjects:  skipped,
	}, nil
}

// reencodeImages rewrites each raster image at the requested DPI and
// quality. Re-encodes are embarrassingly parallel per image and run on
// the shared pool; in-flight encodes finish even when the pass is
// cancelled, so no object stream is left partially rewritten.
func (p *Pipeline) reencodeImages(ctx context.Context, work codec.Document, params Params) (int, []string, error) {
	images := work.Images()
	if len(images) == 0 {
		return 0, nil, nil
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		processed int
		skipped   []string
	)

	for _, img := range images {
		img := img
		wg.Add(1)
		p.pool.Submit(func() {
			defer wg.Done()

			// Queued work becomes a no-op after cancellation
			if ctx.Err() != nil {
				return
			}

			_, err := work.ReencodeImage(ctx, img.ID, params.ImageDPI, params.ImageQuality)
			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				var unsupported *codec.UnsupportedImageError
				if errors.As(err, &unsupported) {
					skipped = append(skipped, fmt.Sprintf("%s: unsupported format %s", img.ID, unsupported.Format))
				} else if !errors.Is(err, context.Canceled) {
					skipped = append(skipped, fmt.Sprintf("%s: %v", img.ID, err))
				}
				return
			}
			processed++
		})
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}

	if processed == 0 && len(skipped) == len(images) {
		return 0, nil, NewEncodingError("image re-encoding", ErrAllImagesFailed)
	}

	for _, skip := range skipped {
		p.logger.Warn("image skipped", "object", skip)
	}

	return processed, skipped, nil
}

// estimateQuality scores expected retained clarity on a 0-100 scale
// from the quality factor, the DPI ratio against the reference
// resolution, and the fraction of image objects rewritten. It is a
// relative signal for the search controller, not a perceptual measure.
func estimateQuality(params Params, affectedFraction float64) float64 {
	dpiRatio := float64(params.ImageDPI) / referenceDPI
	if dpiRatio > 1 {
		dpiRatio = 1
	}

	score := 0.5*float64(params.ImageQuality) + 30*dpiRatio + 20*(1-affectedFraction)

	// Passes that leave every image untouched cost almost nothing
	if affectedFraction == 0 && score < 90 {
		score = 90
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}
