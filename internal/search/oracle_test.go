package search

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"img-compress-go/internal/codec"
)

// testImage produces a detailed gradient so JPEG sizes respond to the
// quality knob.
func testImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8((x*7 + y*3) % 256),
				G: uint8((x*13 + y*5) % 256),
				B: uint8((x + y*11) % 256),
				A: 255,
			})
		}
	}
	return img
}

func TestEncodeOracleProbe(t *testing.T) {
	oracle := NewEncodeOracle(testImage(96, 96), &codec.JPEGEncoder{}, nil)

	r, err := oracle.Probe(80)
	require.NoError(t, err)
	assert.Equal(t, 80, r.Quality)
	assert.Equal(t, int64(len(r.Data)), r.Size)
	assert.Greater(t, r.Size, int64(0))
}

// Sanity-check of the assumption the engine relies on: for a fixed
// image, encoded size is non-decreasing in quality.
func TestEncodeOracleMonotonicity(t *testing.T) {
	oracle := NewEncodeOracle(testImage(128, 128), &codec.JPEGEncoder{}, nil)

	var prev int64
	for _, q := range []int{5, 20, 40, 60, 80, 95} {
		r, err := oracle.Probe(q)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, r.Size, prev, "quality %d", q)
		prev = r.Size
	}
}

func TestEncodeOracleObserver(t *testing.T) {
	var seen []int
	oracle := NewEncodeOracle(testImage(64, 64), &codec.JPEGEncoder{}, func(r ProbeResult) {
		seen = append(seen, r.Quality)
	})

	_, err := FindBestQuality(oracle, Bounds{Min: 25, Max: 95}, 1024*1024)
	require.NoError(t, err)
	assert.Equal(t, []int{95}, seen, "generous target should stop after the max-quality probe")
}
