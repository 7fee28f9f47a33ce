package statistics

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Statistics contains counters for one compression run. All counters
// are updated atomically so worker goroutines can share one instance.
type Statistics struct {
	FilesFound      int64
	FilesProcessed  int64
	FilesCompressed int64
	FilesBestEffort int64
	FilesForced     int64
	FilesSkipped    int64
	FilesInfeasible int64
	FilesWithErrors int64

	TotalProbes int64
	BytesIn     int64
	BytesOut    int64

	StartTime time.Time
	EndTime   time.Time

	mutex  sync.RWMutex
	Errors []StatError
}

// StatError records one failed file.
type StatError struct {
	FilePath  string
	Operation string
	Error     string
	Timestamp time.Time
}

// NewStatistics returns a new Statistics instance.
func NewStatistics() *Statistics {
	return &Statistics{
		StartTime: time.Now(),
		Errors:    make([]StatError, 0),
	}
}

// IncrementFilesFound increases the count of found files by 1.
func (s *Statistics) IncrementFilesFound() {
	atomic.AddInt64(&s.FilesFound, 1)
}

// IncrementFilesProcessed increases the count of processed files by 1.
func (s *Statistics) IncrementFilesProcessed() {
	atomic.AddInt64(&s.FilesProcessed, 1)
}

// IncrementFilesCompressed increases the count of files that met the
// target through the quality search.
func (s *Statistics) IncrementFilesCompressed() {
	atomic.AddInt64(&s.FilesCompressed, 1)
}

// IncrementFilesBestEffort increases the count of lossless best-effort
// encodes.
func (s *Statistics) IncrementFilesBestEffort() {
	atomic.AddInt64(&s.FilesBestEffort, 1)
}

// IncrementFilesForced increases the count of infeasible files written
// anyway under the force policy.
func (s *Statistics) IncrementFilesForced() {
	atomic.AddInt64(&s.FilesForced, 1)
}

// IncrementFilesSkipped increases the count of skipped files by 1.
func (s *Statistics) IncrementFilesSkipped() {
	atomic.AddInt64(&s.FilesSkipped, 1)
}

// IncrementFilesInfeasible increases the count of files whose minimum
// quality still exceeded the target.
func (s *Statistics) IncrementFilesInfeasible() {
	atomic.AddInt64(&s.FilesInfeasible, 1)
}

// IncrementFilesWithErrors increases the count of files with errors by 1.
func (s *Statistics) IncrementFilesWithErrors() {
	atomic.AddInt64(&s.FilesWithErrors, 1)
}

// AddProbes adds the probe count of one finished search.
func (s *Statistics) AddProbes(n int) {
	atomic.AddInt64(&s.TotalProbes, int64(n))
}

// AddBytes records original and compressed sizes for one file.
func (s *Statistics) AddBytes(in, out int64) {
	atomic.AddInt64(&s.BytesIn, in)
	atomic.AddInt64(&s.BytesOut, out)
}

// AddError records a failed file.
func (s *Statistics) AddError(filePath, operation string, err error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.Errors = append(s.Errors, StatError{
		FilePath:  filePath,
		Operation: operation,
		Error:     err.Error(),
		Timestamp: time.Now(),
	})
}

// Finalize stamps the end time.
func (s *Statistics) Finalize() {
	s.EndTime = time.Now()
}

// Duration returns the elapsed run time.
func (s *Statistics) Duration() time.Duration {
	end := s.EndTime
	if end.IsZero() {
		end = time.Now()
	}
	return end.Sub(s.StartTime)
}

// SavingsPercent returns the overall size reduction in percent.
func (s *Statistics) SavingsPercent() float64 {
	in := atomic.LoadInt64(&s.BytesIn)
	out := atomic.LoadInt64(&s.BytesOut)
	if in <= 0 {
		return 0
	}
	return float64(in-out) * 100 / float64(in)
}

// GetSummary returns a human-readable summary of the run.
func (s *Statistics) GetSummary() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Files found:      %d\n", atomic.LoadInt64(&s.FilesFound))
	fmt.Fprintf(&b, "Files processed:  %d\n", atomic.LoadInt64(&s.FilesProcessed))
	fmt.Fprintf(&b, "  compressed:     %d\n", atomic.LoadInt64(&s.FilesCompressed))
	fmt.Fprintf(&b, "  best-effort:    %d\n", atomic.LoadInt64(&s.FilesBestEffort))
	fmt.Fprintf(&b, "  forced:         %d\n", atomic.LoadInt64(&s.FilesForced))
	fmt.Fprintf(&b, "  skipped:        %d\n", atomic.LoadInt64(&s.FilesSkipped))
	fmt.Fprintf(&b, "  infeasible:     %d\n", atomic.LoadInt64(&s.FilesInfeasible))
	fmt.Fprintf(&b, "  errors:         %d\n", atomic.LoadInt64(&s.FilesWithErrors))
	fmt.Fprintf(&b, "Encode probes:    %d\n", atomic.LoadInt64(&s.TotalProbes))
	fmt.Fprintf(&b, "Bytes in/out:     %d / %d (%.1f%% saved)\n",
		atomic.LoadInt64(&s.BytesIn), atomic.LoadInt64(&s.BytesOut), s.SavingsPercent())
	fmt.Fprintf(&b, "Duration:         %s", s.Duration().Round(time.Millisecond))

	return b.String()
}
