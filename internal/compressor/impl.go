package compressor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"img-compress-go/internal/codec"
	"img-compress-go/internal/search"
	"img-compress-go/internal/statistics"
)

// DefaultCompressor is the default implementation of the Compressor
// interface. One instance may serve many runs; all per-run state lives
// in CompressionParams and the search outcomes.
type DefaultCompressor struct {
	log      *logrus.Logger
	registry *codec.Registry
	stats    *statistics.Statistics
}

// NewDefaultCompressor creates a new DefaultCompressor instance.
// stats may be nil; a private instance is used then.
func NewDefaultCompressor(log *logrus.Logger, stats *statistics.Statistics) *DefaultCompressor {
	if stats == nil {
		stats = statistics.NewStatistics()
	}
	return &DefaultCompressor{
		log:      log,
		registry: codec.NewRegistry(),
		stats:    stats,
	}
}

// Compress performs target-size compression for every input file.
// Each file gets its own independent quality search, so files are
// fanned out over a worker pool.
func (c *DefaultCompressor) Compress(ctx context.Context, params CompressionParams) ([]CompressionResult, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	outDir, err := filepath.Abs(params.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("resolve output dir: %w", err)
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	params.OutputDir = outDir

	for _, in := range params.InputPaths {
		abs, err := filepath.Abs(in)
		if err != nil {
			return nil, fmt.Errorf("resolve input %s: %w", in, err)
		}
		if filepath.Dir(abs) == outDir {
			return nil, fmt.Errorf("output directory must differ from the directory of %s", in)
		}
		c.stats.IncrementFilesFound()
	}

	numWorkers := params.Workers
	if numWorkers <= 0 {
		numWorkers = max(runtime.NumCPU(), 2)
	}
	if numWorkers > len(params.InputPaths) {
		numWorkers = len(params.InputPaths)
	}

	type job struct {
		index int
		path  string
	}
	type result struct {
		index int
		res   CompressionResult
	}

	jobs := make(chan job, len(params.InputPaths))
	results := make(chan result, len(params.InputPaths))

	var wg sync.WaitGroup
	wg.Add(numWorkers)
	for w := 0; w < numWorkers; w++ {
		go func() {
			defer wg.Done()
			for j := range jobs {
				select {
				case <-ctx.Done():
					return
				default:
				}
				r := c.compressOne(j.path, params)
				results <- result{index: j.index, res: r}
			}
		}()
	}

	for i, path := range params.InputPaths {
		jobs <- job{index: i, path: path}
	}
	close(jobs)

	wg.Wait()
	close(results)

	resArr := make([]CompressionResult, len(params.InputPaths))
	for r := range results {
		resArr[r.index] = r.res
	}

	c.stats.Finalize()
	return resArr, nil
}

// compressOne runs the full pipeline for a single file: decode,
// normalize, search (or best-effort encode), write.
func (c *DefaultCompressor) compressOne(inputPath string, params CompressionParams) CompressionResult {
	start := time.Now()
	res := CompressionResult{
		InputPath: inputPath,
		StartedAt: start,
	}
	fail := func(op string, err error) CompressionResult {
		res.Action = "error"
		res.Message = fmt.Sprintf("%s: %v", op, err)
		res.Error = err
		res.FinishedAt = time.Now()
		c.stats.IncrementFilesWithErrors()
		c.stats.AddError(inputPath, op, err)
		c.log.WithField("file", inputPath).Errorf("%s: %v", op, err)
		return res
	}

	info, err := os.Stat(inputPath)
	if err != nil {
		return fail("stat", err)
	}
	res.OriginalSize = info.Size()

	ext := strings.ToLower(filepath.Ext(inputPath))
	if params.SkipMarked && (ext == ".jpg" || ext == ".jpeg") {
		marked, err := hasMarkExiftool(inputPath)
		if err != nil {
			marked = hasMarkFast(inputPath)
		}
		if marked {
			res.Action = "skipped"
			res.Message = "already compressed by img-compress"
			res.Success = true
			res.FinishedAt = time.Now()
			c.stats.IncrementFilesSkipped()
			return res
		}
	}

	img, err := codec.Decode(inputPath)
	if err != nil {
		return fail("decode", &search.CodecError{Op: "decode", Format: strings.TrimPrefix(ext, "."), Err: err})
	}

	// JPEG has no alpha channel; flatten transparent sources onto the
	// configured background before probing.
	if params.Format == search.JPEG {
		img = codec.Flatten(img, params.Background)
	}

	enc, err := c.registry.Get(params.Format.String())
	if err != nil {
		return fail("encoder", &search.CodecError{Op: "select", Format: params.Format.String(), Err: err})
	}

	var data []byte
	if params.Format.Searchable() {
		var observer search.ProbeObserver
		if params.Observer != nil {
			target := params.TargetBytes
			observer = func(r search.ProbeResult) {
				params.Observer(inputPath, r.Quality, r.Size, r.Size <= target)
			}
		}
		oracle := search.NewEncodeOracle(img, enc, observer)

		outcome, err := search.FindBestQuality(oracle, params.Bounds, params.TargetBytes)
		if err != nil {
			return fail("search", err)
		}
		res.Probes = outcome.Probes
		res.Reason = outcome.Reason
		c.stats.AddProbes(outcome.Probes)

		switch outcome.Reason {
		case search.Feasible, search.AlreadyFeasibleAtMax:
			data = outcome.Best.Data
			res.Quality = outcome.Best.Quality
			res.Action = "compressed"
			res.Message = fmt.Sprintf("quality %d fits %d bytes in %d probes",
				outcome.Best.Quality, params.TargetBytes, outcome.Probes)
		case search.InfeasibleAtMinimum:
			c.stats.IncrementFilesInfeasible()
			infeasible := &search.InfeasibleError{
				Quality: outcome.Fallback.Quality,
				Size:    outcome.Fallback.Size,
				Target:  params.TargetBytes,
			}
			if !params.Force {
				return fail("search", infeasible)
			}
			data = outcome.Fallback.Data
			res.Quality = outcome.Fallback.Quality
			res.Action = "forced"
			res.Message = fmt.Sprintf("over target: %v (written anyway)", infeasible)
			c.log.WithField("file", inputPath).Warn(res.Message)
		}
	} else {
		// Lossless route: one best-effort encode, no search. The target
		// is reported against, not guaranteed.
		data, err = enc.Encode(img, 0)
		if err != nil {
			return fail("encode", &search.CodecError{Op: "encode", Format: params.Format.String(), Err: err})
		}
		res.Reason = search.NotSearchable
		res.Action = "best-effort"
		if int64(len(data)) > params.TargetBytes {
			res.Message = fmt.Sprintf("lossless output is %d bytes, above the %d byte target",
				len(data), params.TargetBytes)
			c.log.WithField("file", inputPath).Warn(res.Message)
		}
	}

	outPath := outputPath(inputPath, params.OutputDir, params.Format)
	res.OutputPath = outPath

	tmpPath := outPath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fail("write", err)
	}

	if params.Format == search.JPEG && (ext == ".jpg" || ext == ".jpeg") {
		if err := preserveMetadata(inputPath, tmpPath); err != nil {
			res.Message = appendMessage(res.Message, fmt.Sprintf("warning: metadata not copied: %v", err))
			c.log.WithField("file", inputPath).Warnf("metadata not copied: %v", err)
		}
	}

	if err := os.Rename(tmpPath, outPath); err != nil {
		_ = os.Remove(tmpPath)
		return fail("rename", err)
	}

	outInfo, err := os.Stat(outPath)
	if err != nil {
		return fail("stat output", err)
	}
	res.CompressedSize = outInfo.Size()
	if res.OriginalSize > 0 {
		res.PercentageSaved = float64(res.OriginalSize-res.CompressedSize) * 100 / float64(res.OriginalSize)
	}

	res.Success = true
	res.FinishedAt = time.Now()

	c.stats.IncrementFilesProcessed()
	c.stats.AddBytes(res.OriginalSize, res.CompressedSize)
	switch res.Action {
	case "compressed":
		c.stats.IncrementFilesCompressed()
	case "forced":
		c.stats.IncrementFilesForced()
	case "best-effort":
		c.stats.IncrementFilesBestEffort()
	}

	c.log.WithFields(logrus.Fields{
		"file":    inputPath,
		"output":  outPath,
		"action":  res.Action,
		"quality": res.Quality,
		"probes":  res.Probes,
		"size":    res.CompressedSize,
	}).Info("file written")

	return res
}

// outputPath builds "<output-dir>/<stem>_out.<ext>" for an input file.
func outputPath(inputPath, outputDir string, format search.Format) string {
	base := filepath.Base(inputPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(outputDir, stem+"_out."+format.Extension())
}

func appendMessage(existing, extra string) string {
	if existing == "" {
		return extra
	}
	return existing + "; " + extra
}
