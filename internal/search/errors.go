package search

import "fmt"

// BoundsError reports an invalid search configuration. It is returned
// before any probe is attempted.
type BoundsError struct {
	Reason string
}

func (e *BoundsError) Error() string {
	return "invalid search bounds: " + e.Reason
}

// CodecError reports a codec failure: an unreadable or corrupt input,
// or an encode that failed at a given quality. It is fatal for the
// search that triggered it.
type CodecError struct {
	Op      string // "decode" or "encode"
	Format  string
	Quality int
	Err     error
}

func (e *CodecError) Error() string {
	if e.Op == "encode" {
		return fmt.Sprintf("encode %s at quality %d: %v", e.Format, e.Quality, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Format, e.Err)
}

func (e *CodecError) Unwrap() error { return e.Err }

// InfeasibleError reports that even the minimum allowed quality produces
// more bytes than the target. The achieved size is included so the user
// can adjust the target or the bounds.
type InfeasibleError struct {
	Quality int
	Size    int64
	Target  int64
}

func (e *InfeasibleError) Error() string {
	return fmt.Sprintf("minimum quality %d still produces %d bytes (target %d bytes)",
		e.Quality, e.Size, e.Target)
}
