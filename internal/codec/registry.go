package codec

import (
	"fmt"
	"strings"
)

// Registry holds one encoder per output format.
type Registry struct {
	encoders map[string]Encoder
}

// NewRegistry returns a registry with all known encoders registered.
// Availability is checked at Get time so that a missing external binary
// is reported against the format the caller actually asked for.
func NewRegistry() *Registry {
	r := &Registry{encoders: make(map[string]Encoder)}
	for _, enc := range []Encoder{
		&JPEGEncoder{},
		&WebPEncoder{},
		&PNGEncoder{},
	} {
		r.encoders[enc.Format()] = enc
	}
	return r
}

// Get returns the encoder for the given format name.
func (r *Registry) Get(format string) (Encoder, error) {
	enc, ok := r.encoders[strings.ToLower(format)]
	if !ok {
		return nil, fmt.Errorf("no encoder registered for format %q", format)
	}
	if !enc.Available() {
		return nil, fmt.Errorf("encoder for %q is not available on this system", format)
	}
	return enc, nil
}

// Available returns the names of all usable formats in priority order.
func (r *Registry) Available() []string {
	var result []string
	for _, f := range []string{"jpeg", "webp", "png"} {
		if enc, ok := r.encoders[f]; ok && enc.Available() {
			result = append(result, f)
		}
	}
	return result
}
