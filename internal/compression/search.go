package compression

import (
	"context"
	"fmt"
	"log/slog"

	"smartpdf/internal/codec"
)

// IterationFunc observes each completed search iteration.
type IterationFunc func(iteration, maxIterations int, attempt Attempt)

// Searcher drives repeated pipeline invocations with adjusted
// parameters until the target size is met, the levers are exhausted, or
// the iteration budget runs out. Iterations are strictly sequential:
// each result is the feedback signal for the next parameter set.
type Searcher struct {
	pipeline *Pipeline
	logger   *slog.Logger
}

// NewSearcher creates a new searcher instance
func NewSearcher(pipeline *Pipeline, logger *slog.Logger) *Searcher {
	return &Searcher{pipeline: pipeline, logger: logger}
}

// Run searches the parameter space for a candidate meeting targetBytes.
// It always terminates within the mode's iteration cap and returns the
// best candidate found together with the ordered attempt history. A
// candidate whose TargetAchieved is false is a bounded partial success,
// not a failure: its size is the closest the search could reach.
func (s *Searcher) Run(
	ctx context.Context,
	doc codec.Document,
	profile *Profile,
	targetBytes int64,
	mode ToleranceMode,
	onIteration IterationFunc,
) (*Candidate, []Attempt, error) {
	cfg, ok := toleranceConfigs[mode]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}

	seed := seedParams(profile.Class)
	params := seed

	var (
		history      []Attempt
		best         *Candidate // smallest size seen
		met          *Candidate // highest quality among candidates meeting the target
		withinMargin *Candidate // highest quality within target*(1+margin)
	)

	marginLimit := int64(float64(targetBytes) * (1 + cfg.margin))

	for iteration := 1; iteration <= cfg.maxIterations; iteration++ {
		// Cancellation checkpoint between iterations
		if err := ctx.Err(); err != nil {
			return nil, history, err
		}

		candidate, err := s.pipeline.Apply(ctx, doc, params)
		if err != nil {
			return nil, history, err
		}

		attempt := Attempt{Params: params, SizeBytes: candidate.SizeBytes, Quality: candidate.Quality}
		history = append(history, attempt)

		s.logger.Info("search iteration",
			"iteration", iteration,
			"size", candidate.SizeBytes,
			"target", targetBytes,
			"quality", candidate.Quality,
			"dpi", params.ImageDPI,
			"image_quality", params.ImageQuality)

		if onIteration != nil {
			onIteration(iteration, cfg.maxIterations, attempt)
		}

		if best == nil || candidate.SizeBytes < best.SizeBytes {
			best = candidate
		}
		if candidate.SizeBytes <= marginLimit &&
			(withinMargin == nil || candidate.Quality > withinMargin.Quality) {
			withinMargin = candidate
		}

		if candidate.SizeBytes <= targetBytes {
			if met == nil || candidate.Quality > met.Quality {
				met = candidate
			}
			if mode == ToleranceStrict {
				break
			}
			// Under target in best-possible mode: relax one lever to
			// recover quality if any headroom remains.
			relaxed, ok := relax(params, seed)
			if !ok {
				break
			}
			params = relaxed
			continue
		}

		next, ok := tighten(params, candidate.SizeBytes, targetBytes, cfg)
		if !ok {
			// Every lever is at its most aggressive setting; the smallest
			// size seen is the minimum achievable.
			break
		}
		params = next
	}

	accepted := best
	switch mode {
	case ToleranceStrict:
		if met != nil {
			accepted = met
		}
	case ToleranceBestPossible:
		if withinMargin != nil {
			accepted = withinMargin
		}
	}

	accepted.TargetAchieved = accepted.SizeBytes <= targetBytes
	return accepted, history, nil
}

// tighten adjusts the most impactful remaining lever in proportion to
// the size gap: image quality first, then DPI, then the remaining
// structural flags. Returns false when every lever is already at its
// most aggressive setting.
func tighten(params Params, sizeBytes, targetBytes int64, cfg toleranceConfig) (Params, bool) {
	p := params
	ratio := float64(targetBytes) / float64(sizeBytes)

	switch {
	case p.ImageQuality > cfg.minQuality:
		next := int(float64(p.ImageQuality) * ratio)
		if next > p.ImageQuality-10 {
			next = p.ImageQuality - 10
		}
		if next < cfg.minQuality {
			next = cfg.minQuality
		}
		p.ImageQuality = next

	case p.ImageDPI > cfg.minDPI:
		scaled := int(float64(p.ImageDPI) * ratio)
		p.ImageDPI = snapDPI(scaled, p.ImageDPI, cfg.minDPI)

	case !p.StripMetadata:
		p.StripMetadata = true

	case !p.DeduplicateObjects:
		p.DeduplicateObjects = true

	case !p.SubsetFonts:
		p.SubsetFonts = true

	default:
		return params, false
	}

	return p, true
}

// snapDPI picks the highest ladder entry that is at or below the scaled
// value, strictly below the current DPI, and not below the floor.
func snapDPI(scaled, current, floor int) int {
	for _, level := range dpiLevels {
		if level >= current {
			continue
		}
		if level < floor {
			break
		}
		if level <= scaled || level == floor {
			return level
		}
	}
	// No ladder entry fits; take the next step down bounded by the floor
	next := current - 50
	if next < floor {
		next = floor
	}
	return next
}

// relax steps one lever back toward the seed preset to recover quality.
// Quality recovers before resolution. Returns false when the parameters
// already match the seed on both image levers.
func relax(params, seed Params) (Params, bool) {
	p := params

	if p.ImageQuality < seed.ImageQuality {
		next := p.ImageQuality + 10
		if next > seed.ImageQuality {
			next = seed.ImageQuality
		}
		p.ImageQuality = next
		return p, true
	}

	if p.ImageDPI < seed.ImageDPI {
		for i := len(dpiLevels) - 1; i >= 0; i-- {
			if dpiLevels[i] > p.ImageDPI && dpiLevels[i] <= seed.ImageDPI {
				p.ImageDPI = dpiLevels[i]
				return p, true
			}
		}
		p.ImageDPI = seed.ImageDPI
		return p, true
	}

	return params, false
}
