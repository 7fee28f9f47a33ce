package compressor

import (
	"context"
	"fmt"
	"image/color"
	"time"

	"img-compress-go/internal/search"
)

// CompressionParams defines parameters for one compression run.
type CompressionParams struct {
	InputPaths  []string
	OutputDir   string
	Format      search.Format
	TargetBytes int64
	Bounds      search.Bounds
	Background  color.NRGBA
	Force       bool
	SkipMarked  bool
	Workers     int

	// Observer, when set, receives one event per encode probe.
	Observer ProbeObserver
}

// ProbeObserver receives progress events while a file is being searched.
type ProbeObserver func(inputPath string, quality int, size int64, feasible bool)

// Validate rejects parameters before any file is touched.
func (p CompressionParams) Validate() error {
	if len(p.InputPaths) == 0 {
		return fmt.Errorf("no input files given")
	}
	if p.OutputDir == "" {
		return fmt.Errorf("output directory is required")
	}
	if err := p.Bounds.Validate(); err != nil {
		return err
	}
	if p.TargetBytes <= 0 {
		return &search.BoundsError{Reason: fmt.Sprintf("target size must be positive, got %d bytes", p.TargetBytes)}
	}
	return nil
}

// CompressionResult describes the result of compressing a single file.
type CompressionResult struct {
	InputPath       string
	OutputPath      string
	OriginalSize    int64
	CompressedSize  int64
	Quality         int // 0 for lossless outputs
	Probes          int
	Reason          search.Reason
	Action          string
	Message         string
	Success         bool
	PercentageSaved float64
	StartedAt       time.Time
	FinishedAt      time.Time
	Error           error
}

// Compressor defines the interface for target-size image compression.
type Compressor interface {
	// Compress processes the given files according to the parameters.
	// Returns a slice of results in input order.
	Compress(ctx context.Context, params CompressionParams) ([]CompressionResult, error)
}
