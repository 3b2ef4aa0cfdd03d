package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func TestNormalizeFlattensTransparentPNG(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	// Fully transparent pixels should flatten to white.
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			src.Set(x, y, color.NRGBA{A: 0})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		t.Fatalf("encode test png: %v", err)
	}

	out, err := Normalize(buf.Bytes())
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}

	decoded, err := jpeg.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("expected jpeg output, got decode error: %v", err)
	}

	r, g, b, _ := decoded.At(4, 4).RGBA()
	for name, ch := range map[string]uint32{"r": r >> 8, "g": g >> 8, "b": b >> 8} {
		if ch < 250 {
			t.Fatalf("expected near-white %s channel after flatten, got %d", name, ch)
		}
	}
}

func TestNormalizeAcceptsJPEGInput(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			src.Set(x, y, color.RGBA{R: 200, G: 10, B: 10, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, src, nil); err != nil {
		t.Fatalf("encode test jpeg: %v", err)
	}

	out, err := Normalize(buf.Bytes())
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}

	if len(out) == 0 {
		t.Fatalf("expected non-empty jpeg output")
	}

	if _, err := jpeg.Decode(bytes.NewReader(out)); err != nil {
		t.Fatalf("expected jpeg output, got decode error: %v", err)
	}
}

func TestNormalizeRejectsGarbage(t *testing.T) {
	if _, err := Normalize([]byte("not an image")); err == nil {
		t.Fatalf("expected decode error for garbage payload")
	}
}

func TestNormalizeRejectsEmptyPayload(t *testing.T) {
	if _, err := Normalize(nil); err == nil {
		t.Fatalf("expected error for empty payload")
	}
}
