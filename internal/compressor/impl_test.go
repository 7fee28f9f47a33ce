package compressor

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"img-compress-go/internal/codec"
	"img-compress-go/internal/search"
	"img-compress-go/internal/statistics"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	log.SetOutput(os.Stderr)
	return log
}

func gradientImage(w, h int) *image.NRGBA {
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

// writeTestPNG saves a gradient as PNG so the JPEG metadata step stays
// out of the way in tests.
func writeTestPNG(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, imaging.Save(gradientImage(128, 128), path))
	return path
}

func baseParams(input, outDir string) CompressionParams {
	return CompressionParams{
		InputPaths:  []string{input},
		OutputDir:   outDir,
		Format:      search.JPEG,
		TargetBytes: 1024 * 1024,
		Bounds:      search.Bounds{Min: 25, Max: 95},
		Background:  codec.MustParseHexColor("#ffffff"),
	}
}

func TestCompressGenerousTarget(t *testing.T) {
	inDir, outDir := t.TempDir(), t.TempDir()
	input := writeTestPNG(t, inDir, "photo.png")

	comp := NewDefaultCompressor(testLogger(), nil)
	results, err := comp.Compress(context.Background(), baseParams(input, outDir))
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	require.NoError(t, r.Error)
	assert.True(t, r.Success)
	assert.Equal(t, "compressed", r.Action)
	assert.Equal(t, search.AlreadyFeasibleAtMax, r.Reason)
	assert.Equal(t, 95, r.Quality)
	assert.Equal(t, filepath.Join(outDir, "photo_out.jpg"), r.OutputPath)
	assert.LessOrEqual(t, r.CompressedSize, int64(1024*1024))

	decoded, err := codec.Decode(r.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, 128, decoded.Bounds().Dx())
}

func TestCompressTightTarget(t *testing.T) {
	inDir, outDir := t.TempDir(), t.TempDir()
	input := writeTestPNG(t, inDir, "photo.png")

	// Pin the target to what quality 60 costs; the search must land on
	// a quality whose output fits it.
	enc := &codec.JPEGEncoder{}
	at60, err := enc.Encode(gradientImage(128, 128), 60)
	require.NoError(t, err)
	target := int64(len(at60))

	params := baseParams(input, outDir)
	params.TargetBytes = target

	comp := NewDefaultCompressor(testLogger(), nil)
	results, err := comp.Compress(context.Background(), params)
	require.NoError(t, err)

	r := results[0]
	require.NoError(t, r.Error)
	assert.True(t, r.Success)
	assert.LessOrEqual(t, r.CompressedSize, target)
	assert.GreaterOrEqual(t, r.Quality, 25)
	assert.LessOrEqual(t, r.Quality, 95)
	assert.Greater(t, r.Probes, 1)
}

func TestCompressInfeasibleWithoutForce(t *testing.T) {
	inDir, outDir := t.TempDir(), t.TempDir()
	input := writeTestPNG(t, inDir, "photo.png")

	params := baseParams(input, outDir)
	params.TargetBytes = 200 // nothing this size fits 200 bytes

	stats := statistics.NewStatistics()
	comp := NewDefaultCompressor(testLogger(), stats)
	results, err := comp.Compress(context.Background(), params)
	require.NoError(t, err)

	r := results[0]
	assert.False(t, r.Success)
	assert.Equal(t, "error", r.Action)

	var infeasible *search.InfeasibleError
	require.ErrorAs(t, r.Error, &infeasible)
	assert.Equal(t, 25, infeasible.Quality)
	assert.Greater(t, infeasible.Size, int64(200))

	// Nothing may be written, not even a temp file.
	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	assert.Equal(t, int64(1), stats.FilesInfeasible)
}

func TestCompressInfeasibleForced(t *testing.T) {
	inDir, outDir := t.TempDir(), t.TempDir()
	input := writeTestPNG(t, inDir, "photo.png")

	params := baseParams(input, outDir)
	params.TargetBytes = 200
	params.Force = true

	comp := NewDefaultCompressor(testLogger(), nil)
	results, err := comp.Compress(context.Background(), params)
	require.NoError(t, err)

	r := results[0]
	require.NoError(t, r.Error)
	assert.True(t, r.Success)
	assert.Equal(t, "forced", r.Action)
	assert.Equal(t, 25, r.Quality)
	assert.Contains(t, r.Message, "over target")
	assert.FileExists(t, r.OutputPath)
}

func TestCompressPNGBestEffort(t *testing.T) {
	inDir, outDir := t.TempDir(), t.TempDir()
	input := writeTestPNG(t, inDir, "shot.png")

	params := baseParams(input, outDir)
	params.Format = search.PNG
	params.TargetBytes = 10 // force the over-target note

	comp := NewDefaultCompressor(testLogger(), nil)
	results, err := comp.Compress(context.Background(), params)
	require.NoError(t, err)

	r := results[0]
	require.NoError(t, r.Error)
	assert.True(t, r.Success)
	assert.Equal(t, "best-effort", r.Action)
	assert.Equal(t, search.NotSearchable, r.Reason)
	assert.Equal(t, 0, r.Quality)
	assert.Zero(t, r.Probes)
	assert.Contains(t, r.Message, "above the")
	assert.Equal(t, filepath.Join(outDir, "shot_out.png"), r.OutputPath)
	assert.FileExists(t, r.OutputPath)
}

func TestCompressRejectsSameDirectory(t *testing.T) {
	dir := t.TempDir()
	input := writeTestPNG(t, dir, "photo.png")

	comp := NewDefaultCompressor(testLogger(), nil)
	_, err := comp.Compress(context.Background(), baseParams(input, dir))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must differ")
}

func TestCompressRejectsInvalidParams(t *testing.T) {
	comp := NewDefaultCompressor(testLogger(), nil)

	var boundsErr *search.BoundsError

	p := baseParams("x.png", t.TempDir())
	p.Bounds = search.Bounds{Min: 50, Max: 10}
	_, err := comp.Compress(context.Background(), p)
	require.ErrorAs(t, err, &boundsErr)

	p = baseParams("x.png", t.TempDir())
	p.TargetBytes = 0
	_, err = comp.Compress(context.Background(), p)
	require.ErrorAs(t, err, &boundsErr)

	p = baseParams("x.png", t.TempDir())
	p.InputPaths = nil
	_, err = comp.Compress(context.Background(), p)
	require.Error(t, err)
}

func TestCompressBatch(t *testing.T) {
	inDir, outDir := t.TempDir(), t.TempDir()
	params := baseParams("", outDir)
	params.InputPaths = []string{
		writeTestPNG(t, inDir, "a.png"),
		writeTestPNG(t, inDir, "b.png"),
		writeTestPNG(t, inDir, "c.png"),
	}
	params.Workers = 2

	stats := statistics.NewStatistics()
	comp := NewDefaultCompressor(testLogger(), stats)
	results, err := comp.Compress(context.Background(), params)
	require.NoError(t, err)
	require.Len(t, results, 3)

	// Results come back in input order despite the worker pool.
	assert.Equal(t, params.InputPaths[0], results[0].InputPath)
	assert.Equal(t, params.InputPaths[1], results[1].InputPath)
	assert.Equal(t, params.InputPaths[2], results[2].InputPath)
	for _, r := range results {
		assert.True(t, r.Success)
		assert.FileExists(t, r.OutputPath)
	}

	assert.Equal(t, int64(3), stats.FilesFound)
	assert.Equal(t, int64(3), stats.FilesProcessed)
}

func TestCompressObserverSeesProbes(t *testing.T) {
	inDir, outDir := t.TempDir(), t.TempDir()
	input := writeTestPNG(t, inDir, "photo.png")

	var probes []int
	params := baseParams(input, outDir)
	params.Observer = func(path string, quality int, size int64, feasible bool) {
		assert.Equal(t, input, path)
		probes = append(probes, quality)
	}

	comp := NewDefaultCompressor(testLogger(), nil)
	results, err := comp.Compress(context.Background(), params)
	require.NoError(t, err)

	assert.Equal(t, results[0].Probes, len(probes))
	assert.Equal(t, 95, probes[0], "max quality is probed first")
}

func TestOutputPath(t *testing.T) {
	got := outputPath("/data/in/photo.jpeg", "/data/out", search.WEBP)
	assert.Equal(t, filepath.Join("/data/out", "photo_out.webp"), got)
}
