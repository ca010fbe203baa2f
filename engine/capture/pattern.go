package capture

import (
	"bytes"
	"fmt"
	"image"
	"time"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

// PatternDevice renders a moving test card. It stands in for a display on
// headless hosts.
type PatternDevice struct {
	dc        *gg.Context
	width     int
	height    int
	title     string
	largeFont font.Face
	smallFont font.Face
	pacer     pacer

	frameNum int
	started  time.Time
}

// NewPatternDevice renders a width×height test card at most once per frameInterval.
func NewPatternDevice(width, height int, frameInterval time.Duration) (*PatternDevice, error) {
	ttf, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("couldn't parse font: %w", err)
	}
	return &PatternDevice{
		dc:        gg.NewContext(width, height),
		width:     width,
		height:    height,
		title:     "screencast test pattern",
		largeFont: truetype.NewFace(ttf, &truetype.Options{Size: 30}),
		smallFont: truetype.NewFace(ttf, &truetype.Options{Size: 12}),
		pacer:     newPacer(frameInterval),
		started:   time.Now(),
	}, nil
}

// Poll draws the next test card. Each call returns a fresh pixel buffer.
func (d *PatternDevice) Poll() (RawFrame, error) {
	if !d.pacer.ready() {
		return RawFrame{}, ErrNotReady
	}
	d.frameNum++
	d.render()

	img, ok := d.dc.Image().(*image.RGBA)
	if !ok {
		return RawFrame{}, fmt.Errorf("pattern: unexpected image type %T", d.dc.Image())
	}
	return RawFrame{
		Pix:    bytes.Clone(img.Pix),
		Width:  d.width,
		Height: d.height,
		Layout: LayoutRGBA,
	}, nil
}

func (d *PatternDevice) render() {
	shade := float64(d.frameNum%200) / 1000
	d.dc.SetRGB(shade, shade, shade)
	d.dc.Clear()

	d.dc.SetRGB(1, 1, 1)
	d.dc.SetFontFace(d.largeFont)
	d.dc.DrawStringWrapped(d.title, 50, 100, 0, 0, float64(d.width)-50, 1.5, gg.AlignLeft)

	d.dc.SetFontFace(d.smallFont)
	d.dc.DrawString(fmt.Sprintf("frame: %d", d.frameNum), 10, 22)
	d.dc.DrawString(fmt.Sprintf("uptime: %s", time.Since(d.started).Truncate(time.Second)), 10, 42)

	d.dc.DrawCircle(float64(d.frameNum*2%d.width), float64(d.height)*5/6, 50)
	d.dc.Fill()
}
