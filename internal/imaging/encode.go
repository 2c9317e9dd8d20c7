package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/yrajput/closet-organizer/internal/model"
)

// ToImage wraps a raster as an *image.NRGBA without copying.
func ToImage(r model.Raster) (*image.NRGBA, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &image.NRGBA{
		Pix:    r.Pix,
		Stride: 4 * r.Width,
		Rect:   image.Rect(0, 0, r.Width, r.Height),
	}, nil
}

// EncodePNG renders a raster as PNG. PNG is lossless, so decoding the result
// yields the same raster.
func EncodePNG(r model.Raster) ([]byte, error) {
	img, err := ToImage(r)
	if err != nil {
		return nil, fmt.Errorf("imaging: %w", err)
	}
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("imaging: encoding png: %w", err)
	}
	return buf.Bytes(), nil
}
