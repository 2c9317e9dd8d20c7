// Package imaging turns uploads into rasters and rasters back into files.
//
// Every pixel that enters the application goes through Decode, and every
// pixel that leaves goes through EncodePNG. Both work on model.Raster, which
// is always non-premultiplied RGBA so that a decode/encode round trip is
// lossless.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"maps"
	"path/filepath"
	"slices"
	"strings"

	// Registered decoders. The standard library covers jpeg, png and gif;
	// golang.org/x/image adds the rest of the allowed formats.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/yrajput/closet-organizer/internal/apperror"
	"github.com/yrajput/closet-organizer/internal/model"
)

// Limits bounds what an upload may cost to accept.
type Limits struct {
	MaxBytes  int64
	MaxPixels int
}

// DefaultLimits is 10 MiB on the wire and 24 megapixels decoded.
var DefaultLimits = Limits{MaxBytes: 10 << 20, MaxPixels: 24_000_000}

// allowedTypes maps an accepted file extension to the MIME type its content
// must sniff as.
var allowedTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".webp": "image/webp",
}

// AllowedExtension reports whether name carries an accepted image extension.
func AllowedExtension(name string) bool {
	_, ok := allowedTypes[strings.ToLower(filepath.Ext(name))]
	return ok
}

// AllowedExtensions lists the accepted extensions, sorted, for the form's
// accept attribute.
func AllowedExtensions() []string {
	return slices.Sorted(maps.Keys(allowedTypes))
}

// Decode validates an upload and decodes it to a raster.
//
// All rejections are apperror.ErrValidation with Field "photo": missing or
// empty content, oversize content, a disallowed extension, content that does
// not sniff as the image type its extension claims, oversize dimensions,
// 16-bit samples, and undecodable data.
func Decode(data []byte, name string, lim Limits) (model.Raster, error) {
	if lim.MaxBytes <= 0 {
		lim.MaxBytes = DefaultLimits.MaxBytes
	}
	if lim.MaxPixels <= 0 {
		lim.MaxPixels = DefaultLimits.MaxPixels
	}

	if len(data) == 0 {
		return model.Raster{}, invalid("no photo was uploaded")
	}
	if int64(len(data)) > lim.MaxBytes {
		return model.Raster{}, invalid(fmt.Sprintf("photo is larger than %d bytes", lim.MaxBytes))
	}

	ext := strings.ToLower(filepath.Ext(name))
	want, ok := allowedTypes[ext]
	if !ok {
		return model.Raster{}, invalid(fmt.Sprintf("file type %q is not an allowed image type", ext))
	}

	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") || !mt.Is(want) {
		return model.Raster{}, invalid(fmt.Sprintf("content is %s, not %s", mt.String(), want))
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return model.Raster{}, invalid("photo could not be decoded: " + err.Error())
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return model.Raster{}, invalid("photo has no pixels")
	}
	if cfg.Width*cfg.Height > lim.MaxPixels {
		return model.Raster{}, invalid(fmt.Sprintf("photo is %dx%d, more than %d pixels", cfg.Width, cfg.Height, lim.MaxPixels))
	}
	if deepColor(cfg.ColorModel) {
		return model.Raster{}, invalid("photo has more than 8 bits per channel; save it as 8-bit and upload again")
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return model.Raster{}, invalid("photo could not be decoded: " + err.Error())
	}
	return FromImage(img), nil
}

// FromImage copies img into a raster. *image.NRGBA is copied byte for byte;
// everything else goes through color.NRGBAModel.
func FromImage(img image.Image) model.Raster {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	pix := make([]byte, 4*w*h)

	if n, ok := img.(*image.NRGBA); ok {
		for y := 0; y < h; y++ {
			off := n.PixOffset(b.Min.X, b.Min.Y+y)
			copy(pix[y*4*w:], n.Pix[off:off+4*w])
		}
		return model.Raster{Width: w, Height: h, Pix: pix}
	}

	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			pix[i+0] = c.R
			pix[i+1] = c.G
			pix[i+2] = c.B
			pix[i+3] = c.A
			i += 4
		}
	}
	return model.Raster{Width: w, Height: h, Pix: pix}
}

// deepColor reports whether m carries 16-bit samples, which a raster cannot
// hold without rounding.
func deepColor(m color.Model) bool {
	switch m {
	case color.RGBA64Model, color.NRGBA64Model, color.Gray16Model:
		return true
	}
	return false
}

func invalid(msg string) error {
	return apperror.ValidationFailed("photo", msg)
}
