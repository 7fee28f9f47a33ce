package codec

import (
	"image"
)

// Encoder encodes an image to a single output format.
type Encoder interface {
	// Format returns the canonical format name ("jpeg", "webp", "png").
	Format() string

	// Extension returns the output file extension without the dot.
	Extension() string

	// Available reports whether the encoder is ready to use. Encoders
	// backed by external binaries (cwebp) may not be installed.
	Available() bool

	// Encode converts the image to bytes at the given quality (1-100).
	// Lossless encoders ignore the quality value.
	Encode(img image.Image, quality int) ([]byte, error)
}
