package codec

import (
	"fmt"
	"image"
	"image/color"
	"os"

	"github.com/disintegration/imaging"

	// WebP sources are decode-only; imaging covers jpeg/png/gif/tiff/bmp.
	_ "golang.org/x/image/webp"
)

// Decode reads and decodes an image file, applying the EXIF orientation
// so the pixels match what the user sees in a viewer.
func Decode(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	img, err := imaging.Decode(f, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// Flatten composites an image onto a solid background, producing an
// opaque result suitable for formats without an alpha channel (JPEG).
// Images that are already opaque are returned unchanged.
func Flatten(img image.Image, bg color.NRGBA) image.Image {
	type opaquer interface{ Opaque() bool }
	if o, ok := img.(opaquer); ok && o.Opaque() {
		return img
	}

	b := img.Bounds()
	base := imaging.New(b.Dx(), b.Dy(), bg)
	return imaging.Overlay(base, img, image.Pt(0, 0), 1.0)
}

// MustParseHexColor is ParseHexColor for compile-time-known inputs.
func MustParseHexColor(s string) color.NRGBA {
	c, err := ParseHexColor(s)
	if err != nil {
		panic(err)
	}
	return c
}

// ParseHexColor parses a "#rrggbb" or "#rgb" string into an opaque color.
func ParseHexColor(s string) (color.NRGBA, error) {
	c := color.NRGBA{A: 0xff}
	if len(s) == 0 || s[0] != '#' {
		return c, fmt.Errorf("invalid color %q: must start with '#'", s)
	}

	nibble := func(b byte) (uint8, error) {
		switch {
		case b >= '0' && b <= '9':
			return b - '0', nil
		case b >= 'a' && b <= 'f':
			return b - 'a' + 10, nil
		case b >= 'A' && b <= 'F':
			return b - 'A' + 10, nil
		}
		return 0, fmt.Errorf("invalid color %q: bad hex digit %q", s, b)
	}

	switch len(s) {
	case 7:
		for i, p := range []*uint8{&c.R, &c.G, &c.B} {
			hi, err := nibble(s[1+i*2])
			if err != nil {
				return c, err
			}
			lo, err := nibble(s[2+i*2])
			if err != nil {
				return c, err
			}
			*p = hi<<4 | lo
		}
	case 4:
		for i, p := range []*uint8{&c.R, &c.G, &c.B} {
			v, err := nibble(s[1+i])
			if err != nil {
				return c, err
			}
			*p = v<<4 | v
		}
	default:
		return c, fmt.Errorf("invalid color %q: want #rgb or #rrggbb", s)
	}
	return c, nil
}
