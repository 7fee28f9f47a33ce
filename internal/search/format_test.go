package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	cases := []struct {
		tag  string
		want Format
	}{
		{"jpg", JPEG},
		{"jpeg", JPEG},
		{"JPG", JPEG},
		{"webp", WEBP},
		{"WebP", WEBP},
		{"png", PNG},
	}
	for _, c := range cases {
		got, err := ParseFormat(c.tag)
		require.NoError(t, err, "tag %q", c.tag)
		assert.Equal(t, c.want, got, "tag %q", c.tag)
	}

	for _, tag := range []string{"", "gif", "tiff", "jpeg2000"} {
		_, err := ParseFormat(tag)
		assert.Error(t, err, "tag %q", tag)
	}
}

func TestFormatSearchable(t *testing.T) {
	// Lossy formats expose a quality knob; PNG does not.
	assert.True(t, JPEG.Searchable())
	assert.True(t, WEBP.Searchable())
	assert.False(t, PNG.Searchable())
}

func TestFormatNames(t *testing.T) {
	assert.Equal(t, "jpeg", JPEG.String())
	assert.Equal(t, "jpg", JPEG.Extension())
	assert.Equal(t, "webp", WEBP.String())
	assert.Equal(t, "webp", WEBP.Extension())
	assert.Equal(t, "png", PNG.String())
	assert.Equal(t, "png", PNG.Extension())
}
