package search

import (
	"fmt"
	"strings"
)

// Format is an output image format tag.
type Format int

const (
	JPEG Format = iota
	WEBP
	PNG
)

// ParseFormat maps a user-supplied format tag to a Format.
func ParseFormat(tag string) (Format, error) {
	switch strings.ToLower(tag) {
	case "jpg", "jpeg":
		return JPEG, nil
	case "webp":
		return WEBP, nil
	case "png":
		return PNG, nil
	default:
		return 0, fmt.Errorf("unsupported output format %q (valid: jpg, webp, png)", tag)
	}
}

// String returns the canonical encoder name for the format.
func (f Format) String() string {
	switch f {
	case JPEG:
		return "jpeg"
	case WEBP:
		return "webp"
	case PNG:
		return "png"
	default:
		return "unknown"
	}
}

// Extension returns the output file extension without the dot.
func (f Format) Extension() string {
	switch f {
	case JPEG:
		return "jpg"
	case WEBP:
		return "webp"
	case PNG:
		return "png"
	default:
		return "bin"
	}
}

// Searchable reports whether the format offers a quality knob whose
// value correlates with output size. Lossy formats do; PNG is lossless
// and gets a single best-effort encode instead of a search.
func (f Format) Searchable() bool {
	switch f {
	case JPEG, WEBP:
		return true
	case PNG:
		return false
	default:
		return false
	}
}
