package encoder

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/valyala/bytebufferpool"

	"screencast/engine/capture"
)

// DefaultQuality matches the usual JPEG default.
const DefaultQuality = 75

// Encoder compresses one raw frame into a standalone image.
type Encoder interface {
	Encode(frame capture.RawFrame) ([]byte, error)
}

// JPEGEncoder produces baseline JPEG images at a fixed quality.
type JPEGEncoder struct {
	options jpeg.Options
	pool    bytebufferpool.Pool
}

// NewJPEGEncoder encodes at quality, falling back to DefaultQuality outside 1..100.
func NewJPEGEncoder(quality int) *JPEGEncoder {
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	return &JPEGEncoder{options: jpeg.Options{Quality: quality}}
}

func (e *JPEGEncoder) Quality() int {
	return e.options.Quality
}

// Encode reorders the pixels to RGBA if needed and compresses them. The
// returned slice is owned by the caller and never reused by the encoder.
func (e *JPEGEncoder) Encode(frame capture.RawFrame) ([]byte, error) {
	if err := frame.Validate(); err != nil {
		return nil, err
	}
	rgba := capture.ToRGBA(frame)
	img := &image.RGBA{
		Pix:    rgba.Pix,
		Stride: rgba.Width * capture.BytesPerPixel,
		Rect:   image.Rect(0, 0, rgba.Width, rgba.Height),
	}

	buf := e.pool.Get()
	defer e.pool.Put(buf)
	if err := jpeg.Encode(buf, img, &e.options); err != nil {
		return nil, fmt.Errorf("jpeg encode: %w", err)
	}
	return bytes.Clone(buf.B), nil
}
