package imaging

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Encoder and decoder are safe for concurrent EncodeAll/DecodeAll.
var (
	zenc, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	zdec, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
)

// PackPixels compresses raw RGBA bytes for storage.
func PackPixels(pix []byte) []byte {
	return zenc.EncodeAll(pix, make([]byte, 0, len(pix)/4))
}

// UnpackPixels reverses PackPixels. want is the expected byte count
// (4*width*height); a mismatch means the stored record is corrupt.
func UnpackPixels(packed []byte, want int) ([]byte, error) {
	pix, err := zdec.DecodeAll(packed, make([]byte, 0, want))
	if err != nil {
		return nil, fmt.Errorf("imaging: decompressing pixels: %w", err)
	}
	if len(pix) != want {
		return nil, fmt.Errorf("imaging: decompressed %d pixel bytes, want %d", len(pix), want)
	}
	return pix, nil
}
