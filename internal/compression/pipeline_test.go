package compression

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartpdf/internal/codec/memcodec"
	"smartpdf/internal/concurrency"
)

func testPipeline(t *testing.T) *Pipeline {
	t.Helper()
	pool := concurrency.NewPool(4)
	t.Cleanup(pool.Close)
	return NewPipeline(pool, testLogger())
}

func TestApplyReducesSize(t *testing.T) {
	doc := memcodec.NewDocument(memcodec.Spec{
		Pages: []memcodec.PageSpec{
			{Images: []memcodec.ImageSpec{{Width: 1000, Height: 1000, SizeBytes: 500_000, Format: "jpeg"}}},
		},
		StructBytes:   50_000,
		MetadataBytes: 10_000,
	})

	baseline, err := doc.Serialize(context.Background())
	require.NoError(t, err)

	candidate, err := testPipeline(t).Apply(context.Background(), doc, Params{
		ImageDPI:      150,
		ImageQuality:  60,
		StripMetadata: true,
	})
	require.NoError(t, err)

	assert.Less(t, candidate.SizeBytes, int64(len(baseline)))
	assert.Equal(t, 1, candidate.ImagesProcessed)
	assert.Empty(t, candidate.SkippedObjects)
	assert.Equal(t, candidate.SizeBytes, int64(len(candidate.Data)))
}

func TestApplySkipsUnsupportedImages(t *testing.T) {
	doc := memcodec.NewDocument(memcodec.Spec{
		Pages: []memcodec.PageSpec{
			{Images: []memcodec.ImageSpec{
				{Width: 500, Height: 500, SizeBytes: 100_000, Format: "jpeg"},
				{Width: 500, Height: 500, SizeBytes: 100_000, Format: "jbig2"},
			}},
		},
		StructBytes: 10_000,
	})

	candidate, err := testPipeline(t).Apply(context.Background(), doc, Params{ImageDPI: 100, ImageQuality: 50})
	require.NoError(t, err)

	assert.Equal(t, 1, candidate.ImagesProcessed)
	require.Len(t, candidate.SkippedObjects, 1)
	assert.Contains(t, candidate.SkippedObjects[0], "jbig2")
}

func TestApplyFailsWhenEveryImageFails(t *testing.T) {
	doc := memcodec.NewDocument(memcodec.Spec{
		Pages: []memcodec.PageSpec{
			{Images: []memcodec.ImageSpec{
				{Width: 500, Height: 500, SizeBytes: 100_000, Format: "jbig2"},
				{Width: 400, Height: 400, SizeBytes: 80_000, Format: "jbig2"},
			}},
		},
		StructBytes: 10_000,
	})

	_, err := testPipeline(t).Apply(context.Background(), doc, Params{ImageDPI: 100, ImageQuality: 50})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAllImagesFailed)

	var encErr *EncodingError
	assert.ErrorAs(t, err, &encErr)
}

func TestApplyLeavesSourceDocumentUntouched(t *testing.T) {
	doc := memcodec.NewDocument(memcodec.Spec{
		Pages: []memcodec.PageSpec{
			{Images: []memcodec.ImageSpec{{Width: 800, Height: 800, SizeBytes: 300_000, Format: "jpeg"}}},
		},
		StructBytes: 20_000,
	})

	before, err := doc.Serialize(context.Background())
	require.NoError(t, err)

	_, err = testPipeline(t).Apply(context.Background(), doc, Params{ImageDPI: 72, ImageQuality: 25})
	require.NoError(t, err)

	after, err := doc.Serialize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestApplyCancelled(t *testing.T) {
	doc := memcodec.NewDocument(memcodec.Spec{
		Pages:       []memcodec.PageSpec{{Text: "hello"}},
		StructBytes: 1_000,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testPipeline(t).Apply(ctx, doc, Params{ImageDPI: 150, ImageQuality: 60})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestApplyTextStrippedMatchesCompressedContent(t *testing.T) {
	doc := memcodec.NewDocument(memcodec.Spec{
		Pages: []memcodec.PageSpec{
			{Text: "page one text", Images: []memcodec.ImageSpec{{Width: 600, Height: 600, SizeBytes: 200_000, Format: "jpeg"}}},
			{Text: "page two text"},
		},
		StructBytes: 30_000,
		FontBytes:   5_000,
		FontCount:   1,
	})

	params := Params{ImageDPI: 120, ImageQuality: 55, StripMetadata: true, DeduplicateObjects: true}
	p := testPipeline(t)

	compressed, err := p.Apply(context.Background(), doc, params)
	require.NoError(t, err)
	stripped, err := p.ApplyTextStripped(context.Background(), doc, params)
	require.NoError(t, err)

	assert.Equal(t, dropTextLines(compressed.Data), stripped.Data)
	assert.Less(t, stripped.SizeBytes, compressed.SizeBytes)
}

func TestEstimateQualityBounds(t *testing.T) {
	q := estimateQuality(Params{ImageDPI: 300, ImageQuality: 100}, 0)
	assert.LessOrEqual(t, q, 100.0)
	assert.GreaterOrEqual(t, q, 90.0)

	low := estimateQuality(Params{ImageDPI: 72, ImageQuality: 25}, 1)
	assert.Less(t, low, q)
	assert.GreaterOrEqual(t, low, 0.0)

	untouched := estimateQuality(Params{ImageDPI: 72, ImageQuality: 25}, 0)
	assert.GreaterOrEqual(t, untouched, 90.0)
}

// dropTextLines removes the text block lines from a serialized
// in-memory document.
func dropTextLines(data []byte) []byte {
	var out [][]byte
	for _, line := range bytes.Split(data, []byte("\n")) {
		if bytes.HasPrefix(line, []byte("text:")) {
			continue
		}
		out = append(out, line)
	}
	return bytes.Join(out, []byte("\n"))
}
