package encoder

import (
	"bytes"
	"errors"
	"image/jpeg"
	"testing"

	"screencast/engine/capture"
)

func solidFrame(w, h int, layout capture.PixelLayout, px [4]byte) capture.RawFrame {
	pix := make([]byte, 0, w*h*capture.BytesPerPixel)
	for i := 0; i < w*h; i++ {
		pix = append(pix, px[:]...)
	}
	return capture.RawFrame{Pix: pix, Width: w, Height: h, Layout: layout}
}

func TestEncodeProducesJPEG(t *testing.T) {
	enc := NewJPEGEncoder(90)
	data, err := enc.Encode(solidFrame(32, 16, capture.LayoutRGBA, [4]byte{200, 10, 10, 255}))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !bytes.HasPrefix(data, []byte{0xFF, 0xD8}) {
		t.Fatalf("missing JPEG SOI marker")
	}

	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 32 || b.Dy() != 16 {
		t.Errorf("bounds = %v", b)
	}
}

func TestEncodeReordersBGRA(t *testing.T) {
	enc := NewJPEGEncoder(100)
	// pure blue in BGRA order
	data, err := enc.Encode(solidFrame(16, 16, capture.LayoutBGRA, [4]byte{255, 0, 0, 255}))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	r, _, b, _ := img.At(8, 8).RGBA()
	if b>>8 < 200 || r>>8 > 60 {
		t.Errorf("expected a blue pixel, got r=%d b=%d", r>>8, b>>8)
	}
}

func TestEncodeRejectsBadSize(t *testing.T) {
	enc := NewJPEGEncoder(0)
	if enc.Quality() != DefaultQuality {
		t.Errorf("quality = %d, want default", enc.Quality())
	}
	_, err := enc.Encode(capture.RawFrame{Pix: make([]byte, 5), Width: 2, Height: 2})
	if !errors.Is(err, capture.ErrFrameSize) {
		t.Errorf("expected ErrFrameSize, got %v", err)
	}
}

func TestEncodeOutputIsNotShared(t *testing.T) {
	enc := NewJPEGEncoder(80)
	first, err := enc.Encode(solidFrame(8, 8, capture.LayoutRGBA, [4]byte{0, 0, 0, 255}))
	if err != nil {
		t.Fatal(err)
	}
	snapshot := bytes.Clone(first)
	if _, err := enc.Encode(solidFrame(8, 8, capture.LayoutRGBA, [4]byte{255, 255, 255, 255})); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, snapshot) {
		t.Error("second encode modified the first result")
	}
}
