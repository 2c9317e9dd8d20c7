package imaging

import (
	"encoding/binary"
	"encoding/hex"
	"path"
	"regexp"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/yrajput/closet-organizer/internal/model"
)

var unsafeChars = regexp.MustCompile(`[^a-z0-9._-]+`)

const maxStemLen = 64

// StorageKey derives the blob key a raster is written to:
//
//	<owner>/<first 16 hex of blake3(width, height, pixels)>-<stem>.png
//
// The same pixels always map to the same key, so concurrent writers of one
// key write identical bytes.
func StorageKey(owner, originalName string, r model.Raster) string {
	return OwnerSegment(owner) + "/" + ContentHash(r)[:16] + "-" + slug(stem(originalName), "photo") + ".png"
}

// OwnerSegment is the first key segment for owner's files. Serving checks
// it to keep one owner out of another's files.
func OwnerSegment(owner string) string {
	return slug(owner, "owner")
}

// ContentHash is the hex blake3 digest of a raster's dimensions and pixels.
func ContentHash(r model.Raster) string {
	h := blake3.New()
	var dims [8]byte
	binary.BigEndian.PutUint32(dims[0:4], uint32(r.Width))
	binary.BigEndian.PutUint32(dims[4:8], uint32(r.Height))
	_, _ = h.Write(dims[:])
	_, _ = h.Write(r.Pix)
	return hex.EncodeToString(h.Sum(nil))
}

func stem(name string) string {
	base := path.Base(strings.ReplaceAll(name, `\`, "/"))
	return strings.TrimSuffix(base, path.Ext(base))
}

// slug lowercases s and replaces anything outside [a-z0-9._-] with '-'.
// Leading dots are stripped so no segment is hidden or "..".
func slug(s, fallback string) string {
	s = unsafeChars.ReplaceAllString(strings.ToLower(s), "-")
	s = strings.Trim(s, "-")
	s = strings.TrimLeft(s, ".")
	if len(s) > maxStemLen {
		s = s[:maxStemLen]
	}
	if s == "" {
		return fallback
	}
	return s
}
