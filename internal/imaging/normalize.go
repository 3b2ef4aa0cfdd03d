// Package imaging prepares inbound photos for the inference API.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"

	_ "image/gif"
	_ "image/png"
)

const jpegQuality = 90

// Normalize decodes a JPEG, PNG, or GIF payload, flattens any alpha channel
// over a white background, and re-encodes the result as JPEG. The inference
// API expects an opaque RGB image.
func Normalize(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, errors.New("image payload is empty")
	}

	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := src.Bounds()
	if bounds.Empty() {
		return nil, fmt.Errorf("decoded %s image is empty", format)
	}

	flat := image.NewRGBA(bounds)
	draw.Draw(flat, bounds, image.White, image.Point{}, draw.Src)
	draw.Draw(flat, bounds, src, bounds.Min, draw.Over)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, flat, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}

	return buf.Bytes(), nil
}
