package search

import (
	"image"

	"img-compress-go/internal/codec"
)

// ProbeResult is one encode-and-measure operation at a fixed quality.
// Data is retained only while the result is the current best; everything
// else is discarded after the size comparison.
type ProbeResult struct {
	Quality int
	Size    int64
	Data    []byte
}

// Oracle answers "what does quality Q cost in bytes" for one image and
// one output format.
type Oracle interface {
	Probe(quality int) (ProbeResult, error)
}

// ProbeObserver is invoked once per probe, in probe order. Used for
// progress reporting; must not retain Data.
type ProbeObserver func(ProbeResult)

// EncodeOracle is the codec-backed Oracle: each probe is a full encode
// of the image at the requested quality.
type EncodeOracle struct {
	img      image.Image
	enc      codec.Encoder
	observer ProbeObserver
}

// NewEncodeOracle returns an oracle probing the given image with the
// given encoder. observer may be nil.
func NewEncodeOracle(img image.Image, enc codec.Encoder, observer ProbeObserver) *EncodeOracle {
	return &EncodeOracle{img: img, enc: enc, observer: observer}
}

func (o *EncodeOracle) Probe(quality int) (ProbeResult, error) {
	data, err := o.enc.Encode(o.img, quality)
	if err != nil {
		return ProbeResult{}, &CodecError{Op: "encode", Format: o.enc.Format(), Quality: quality, Err: err}
	}
	r := ProbeResult{Quality: quality, Size: int64(len(data)), Data: data}
	if o.observer != nil {
		o.observer(r)
	}
	return r, nil
}
