package capture

import (
	"errors"
	"image"
	"time"

	"github.com/kbinani/screenshot"
)

// ErrNoDisplay is returned when the host has no display to capture.
var ErrNoDisplay = errors.New("capture: no active display")

// primaryDisplay is always captured; choosing among monitors is not supported.
const primaryDisplay = 0

// ScreenDevice grabs the primary display.
type ScreenDevice struct {
	bounds image.Rectangle
	pacer  pacer
}

// NewScreenDevice opens the primary display. frameInterval is the minimum time
// between two captures; polls inside it report ErrNotReady.
func NewScreenDevice(frameInterval time.Duration) (*ScreenDevice, error) {
	if screenshot.NumActiveDisplays() <= primaryDisplay {
		return nil, ErrNoDisplay
	}
	return &ScreenDevice{
		bounds: screenshot.GetDisplayBounds(primaryDisplay),
		pacer:  newPacer(frameInterval),
	}, nil
}

// Poll captures the whole primary display once the frame interval has passed.
func (d *ScreenDevice) Poll() (RawFrame, error) {
	if !d.pacer.ready() {
		return RawFrame{}, ErrNotReady
	}
	img, err := screenshot.CaptureRect(d.bounds)
	if err != nil {
		return RawFrame{}, err
	}
	return RawFrame{
		Pix:    img.Pix,
		Width:  img.Rect.Dx(),
		Height: img.Rect.Dy(),
		Layout: LayoutRGBA,
	}, nil
}
