// Package blob writes materialized photographs to where a browser can fetch
// them: a directory served under /media, or an S3-compatible bucket.
package blob

import (
	"context"
	"errors"
	"path"
	"strings"
)

// ErrInvalidKey is returned for keys that are empty, absolute, or escape
// the store root.
var ErrInvalidKey = errors.New("blob: invalid key")

// Writer stores data under key and returns the location a browser can use
// to fetch it. Writing the same key twice replaces the content atomically.
type Writer interface {
	Write(ctx context.Context, key string, data []byte) (string, error)
}

// CleanKey normalizes a slash-separated key and rejects anything that could
// leave the store root.
func CleanKey(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, `\`) {
		return "", ErrInvalidKey
	}
	clean := path.Clean(key)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", ErrInvalidKey
	}
	for _, seg := range strings.Split(clean, "/") {
		if strings.HasPrefix(seg, ".") {
			return "", ErrInvalidKey
		}
	}
	return clean, nil
}
