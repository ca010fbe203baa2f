package capture

import (
	"errors"
	"fmt"
)

// BytesPerPixel is fixed by every device this package supports.
const BytesPerPixel = 4

var (
	// ErrNotReady is returned by a Device that has no new frame yet. It is never fatal.
	ErrNotReady = errors.New("capture: frame not ready")
	// ErrFrameSize marks a pixel buffer whose length does not match its dimensions.
	ErrFrameSize = errors.New("capture: unexpected frame size")
)

// PixelLayout is the channel order of a raw 4-byte pixel.
type PixelLayout int

const (
	LayoutBGRA PixelLayout = iota
	LayoutRGBA
)

func (l PixelLayout) String() string {
	switch l {
	case LayoutBGRA:
		return "BGRA"
	case LayoutRGBA:
		return "RGBA"
	default:
		return fmt.Sprintf("PixelLayout(%d)", int(l))
	}
}

// RawFrame is one uncompressed capture. It only lives inside a single producer
// iteration and is never shared with viewers.
type RawFrame struct {
	Pix    []byte
	Width  int
	Height int
	Layout PixelLayout
}

// Validate checks that the buffer holds exactly Width*Height pixels.
func (f RawFrame) Validate() error {
	want := f.Width * f.Height * BytesPerPixel
	if f.Width <= 0 || f.Height <= 0 || len(f.Pix) != want {
		return fmt.Errorf("%w: got %d bytes for %dx%d, want %d", ErrFrameSize, len(f.Pix), f.Width, f.Height, want)
	}
	return nil
}

// SwapRB returns a new buffer with the first and third byte of every pixel
// exchanged. Applying it twice yields the original bytes.
func SwapRB(pix []byte) []byte {
	out := make([]byte, len(pix))
	n := len(pix) - len(pix)%BytesPerPixel
	for i := 0; i < n; i += BytesPerPixel {
		out[i] = pix[i+2]
		out[i+1] = pix[i+1]
		out[i+2] = pix[i]
		out[i+3] = pix[i+3]
	}
	copy(out[n:], pix[n:])
	return out
}

// ToRGBA converts the frame to RGBA channel order. Frames that are already RGBA
// are returned as is.
func ToRGBA(f RawFrame) RawFrame {
	if f.Layout == LayoutRGBA {
		return f
	}
	return RawFrame{
		Pix:    SwapRB(f.Pix),
		Width:  f.Width,
		Height: f.Height,
		Layout: LayoutRGBA,
	}
}
