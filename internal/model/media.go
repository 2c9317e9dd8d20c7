package model

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Category is a tag from the fixed closet taxonomy.
type Category string

const (
	CategorySeasons  Category = "seasons"
	CategoryParties  Category = "parties"
	CategoryBeach    Category = "beach"
	CategoryOutdoors Category = "outdoors"
	CategoryWork     Category = "work"
)

// Categories lists every valid category in display order.
var Categories = []Category{
	CategorySeasons,
	CategoryParties,
	CategoryBeach,
	CategoryOutdoors,
	CategoryWork,
}

// ParseCategory normalizes s and reports whether it names a known category.
func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if slices.Contains(Categories, c) {
		return c, true
	}
	return "", false
}

// Raster is a decoded image: non-premultiplied RGBA, 4 bytes per pixel,
// row-major with stride 4*Width.
//
// Pixels and dimensions travel together. A Raster is the only form in which
// pixel data is stored or read, so the pair can always rebuild the image.
type Raster struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Pix    []byte `json:"-"`
}

// Validate checks that Pix matches the dimensions exactly.
func (r Raster) Validate() error {
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("raster dimensions %dx%d must be positive", r.Width, r.Height)
	}
	if want := 4 * r.Width * r.Height; len(r.Pix) != want {
		return fmt.Errorf("raster has %d bytes, want %d for %dx%d", len(r.Pix), want, r.Width, r.Height)
	}
	return nil
}

// MediaRecord is one uploaded photograph.
//
// Records are append-only: a re-upload creates a new record, and Owner never
// changes after creation.
type MediaRecord struct {
	ID           string     `json:"id"`
	Owner        string     `json:"owner"`
	Categories   []Category `json:"categories"`
	Raster       Raster     `json:"raster"`
	Path         string     `json:"path"`
	OriginalName string     `json:"originalName"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// HasCategory reports whether the record is tagged with c.
func (m *MediaRecord) HasCategory(c Category) bool {
	return slices.Contains(m.Categories, c)
}

// Validate returns the name of the first invalid field, or "" when the record
// is complete. Repositories call it on every read.
func (m *MediaRecord) Validate() string {
	switch {
	case m.ID == "":
		return "id"
	case m.Owner == "":
		return "owner"
	case m.Path == "":
		return "path"
	case m.Raster.Width <= 0:
		return "width"
	case m.Raster.Height <= 0:
		return "height"
	case m.Raster.Validate() != nil:
		return "pixels"
	}
	for _, c := range m.Categories {
		if _, ok := ParseCategory(string(c)); !ok {
			return "categories"
		}
	}
	return ""
}
