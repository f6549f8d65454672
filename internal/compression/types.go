// Package compression implements the adaptive target-size compression
// engine: content analysis, the recompression pipeline, and the
// parameter search controller that converges on a candidate meeting a
// caller-supplied size target.
package compression

// Classification describes a document's content profile.
type Classification string

const (
	ClassImageHeavy Classification = "image-heavy"
	ClassTextHeavy  Classification = "text-heavy"
	ClassMixed      Classification = "mixed"
)

// ToleranceMode selects how strictly the search honors the target size.
type ToleranceMode string

const (
	// ToleranceStrict always meets or undercuts the target when feasible,
	// sacrificing quality as needed.
	ToleranceStrict ToleranceMode = "strict"
	// ToleranceBestPossible prefers a higher quality estimate even if the
	// result slightly exceeds the target.
	ToleranceBestPossible ToleranceMode = "best-possible"
)

// ValidMode reports whether mode names a known tolerance mode.
func ValidMode(mode ToleranceMode) bool {
	return mode == ToleranceStrict || mode == ToleranceBestPossible
}

// Profile is the analyzer's immutable snapshot of a document.
type Profile struct {
	PageCount          int            `json:"page_count"`
	OriginalSize       int64          `json:"original_size"`
	ImageAreaFraction  float64        `json:"image_area_fraction"`
	Class              Classification `json:"pdf_type"`
	HasText            bool           `json:"has_text"`
	TextCharacterCount int            `json:"text_character_count"`
	ImageCount         int            `json:"image_count"`
	TotalImageBytes    int64          `json:"total_image_bytes"`
	HasEmbeddedFonts   bool           `json:"has_embedded_fonts"`
	HasMetadata        bool           `json:"has_metadata"`
	EstimatedMinSize   int64          `json:"estimated_min_size"`
	EstimatedMaxSize   int64          `json:"estimated_max_size"`
}

// Params is one point in the compression parameter space. Each search
// iteration evaluates a fresh value; evaluated sets are never mutated.
type Params struct {
	ImageDPI           int  `json:"image_dpi"`
	ImageQuality       int  `json:"image_quality"`
	SubsetFonts        bool `json:"subset_fonts"`
	StripMetadata      bool `json:"strip_metadata"`
	DeduplicateObjects bool `json:"deduplicate_objects"`
}

// Candidate is the output of one pipeline invocation.
type Candidate struct {
	Params          Params   `json:"params"`
	SizeBytes       int64    `json:"size_bytes"`
	Quality         float64  `json:"quality"`
	Data            []byte   `json:"-"`
	ImagesProcessed int      `json:"images_processed"`
	SkippedObjects  []string `json:"skipped_objects,omitempty"`
	TargetAchieved  bool     `json:"target_achieved"`
}

// Attempt records one evaluated parameter set and its outcome. The
// search keeps attempts in order for diagnostics and the final report.
type Attempt struct {
	Params    Params  `json:"params"`
	SizeBytes int64   `json:"size_bytes"`
	Quality   float64 `json:"quality"`
}

// DPI ladder used when tightening the resolution lever.
var dpiLevels = []int{300, 200, 150, 120, 100, 72}

// seedParams picks the first parameter set to try based on the
// document's classification. Image-heavy documents start with the image
// levers already engaged; text-heavy documents lean on metadata
// stripping, deduplication and font subsetting before touching images.
func seedParams(class Classification) Params {
	switch class {
	case ClassImageHeavy:
		return Params{
			ImageDPI:           150,
			ImageQuality:       65,
			StripMetadata:      true,
			DeduplicateObjects: true,
		}
	case ClassTextHeavy:
		return Params{
			ImageDPI:           300,
			ImageQuality:       95,
			SubsetFonts:        true,
			StripMetadata:      true,
			DeduplicateObjects: true,
		}
	default:
		return Params{
			ImageDPI:           200,
			ImageQuality:       80,
			StripMetadata:      true,
			DeduplicateObjects: true,
		}
	}
}

type toleranceConfig struct {
	maxIterations int
	minQuality    int
	minDPI        int
	margin        float64
}

var toleranceConfigs = map[ToleranceMode]toleranceConfig{
	ToleranceStrict:       {maxIterations: 8, minQuality: 25, minDPI: 72, margin: 0},
	ToleranceBestPossible: {maxIterations: 8, minQuality: 45, minDPI: 100, margin: 0.05},
}
