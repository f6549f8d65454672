package compression

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartpdf/internal/codec"
	"smartpdf/internal/codec/memcodec"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAnalyzeClassifiesImageHeavy(t *testing.T) {
	// One large image nearly covering a US Letter page at render DPI
	doc := memcodec.NewDocument(memcodec.Spec{
		Pages: []memcodec.PageSpec{
			{Images: []memcodec.ImageSpec{{Width: 1200, Height: 1500, SizeBytes: 500_000, Format: "jpeg"}}},
		},
		StructBytes: 10_000,
	})

	profile, err := NewAnalyzer(testLogger()).Analyze(context.Background(), doc, 600_000)
	require.NoError(t, err)

	assert.Equal(t, ClassImageHeavy, profile.Class)
	assert.GreaterOrEqual(t, profile.ImageAreaFraction, 0.6)
	assert.Equal(t, 1, profile.ImageCount)
}

func TestAnalyzeClassifiesTextHeavy(t *testing.T) {
	doc := memcodec.NewDocument(memcodec.Spec{
		Pages: []memcodec.PageSpec{
			{Text: strings.Repeat("lorem ipsum ", 200)},
			{Text: strings.Repeat("dolor sit ", 200)},
		},
		StructBytes: 10_000,
		FontBytes:   5_000,
		FontCount:   2,
	})

	profile, err := NewAnalyzer(testLogger()).Analyze(context.Background(), doc, 50_000)
	require.NoError(t, err)

	assert.Equal(t, ClassTextHeavy, profile.Class)
	assert.True(t, profile.HasText)
	assert.True(t, profile.HasEmbeddedFonts)
	assert.Greater(t, profile.TextCharacterCount, 0)
}

func TestAnalyzeClassifiesMixed(t *testing.T) {
	// Image covers roughly 40% of the page area
	doc := memcodec.NewDocument(memcodec.Spec{
		Pages: []memcodec.PageSpec{
			{
				Text:   "some page text",
				Images: []memcodec.ImageSpec{{Width: 850, Height: 900, SizeBytes: 200_000, Format: "jpeg"}},
			},
		},
		StructBytes: 10_000,
	})

	profile, err := NewAnalyzer(testLogger()).Analyze(context.Background(), doc, 300_000)
	require.NoError(t, err)

	assert.Equal(t, ClassMixed, profile.Class)
}

func TestAnalyzeEmptyDocumentUnreadable(t *testing.T) {
	doc := memcodec.NewDocument(memcodec.Spec{})

	_, err := NewAnalyzer(testLogger()).Analyze(context.Background(), doc, 100)
	require.Error(t, err)
	assert.ErrorIs(t, err, codec.ErrUnreadableDocument)
}

func TestAnalyzeEstimatedRangeInvariants(t *testing.T) {
	const originalSize = int64(2_000_000)
	doc := memcodec.NewDocument(memcodec.Spec{
		Pages: []memcodec.PageSpec{
			{Images: []memcodec.ImageSpec{{Width: 1000, Height: 1000, SizeBytes: 1_500_000, Format: "jpeg"}}},
		},
		StructBytes: 400_000,
		FontBytes:   100_000,
		FontCount:   1,
	})

	profile, err := NewAnalyzer(testLogger()).Analyze(context.Background(), doc, originalSize)
	require.NoError(t, err)

	assert.LessOrEqual(t, profile.EstimatedMinSize, profile.EstimatedMaxSize)
	assert.LessOrEqual(t, profile.EstimatedMaxSize, originalSize)
	assert.GreaterOrEqual(t, profile.EstimatedMinSize, originalSize/10)
}

func TestAnalyzeTextExtrapolation(t *testing.T) {
	// 100 identical pages; sampling must not undercount
	pages := make([]memcodec.PageSpec, 100)
	for i := range pages {
		pages[i] = memcodec.PageSpec{Text: strings.Repeat("x", 500)}
	}
	doc := memcodec.NewDocument(memcodec.Spec{Pages: pages})

	profile, err := NewAnalyzer(testLogger()).Analyze(context.Background(), doc, 1_000_000)
	require.NoError(t, err)

	assert.InDelta(t, 100*500, profile.TextCharacterCount, 100*500*0.05)
}
