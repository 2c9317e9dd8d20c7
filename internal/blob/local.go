package blob

import (
	"context"
	"fmt"
	"os"
	"path"

	"github.com/spf13/afero"
)

// MediaPrefix is the URL prefix local files are served under.
const MediaPrefix = "/media/"

// Local writes files beneath a root directory.
type Local struct {
	fs afero.Fs
}

// NewLocal jails all access to root.
func NewLocal(root string) (*Local, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("blob: creating media dir %s: %w", root, err)
	}
	return NewLocalFs(afero.NewBasePathFs(afero.NewOsFs(), root)), nil
}

// NewLocalFs uses fs as the root. Tests pass afero.NewMemMapFs().
func NewLocalFs(fs afero.Fs) *Local {
	return &Local{fs: fs}
}

// Write stores data at key through a temp file and rename, so a concurrent
// reader sees either the old file or the new one, never a partial write.
func (l *Local) Write(ctx context.Context, key string, data []byte) (string, error) {
	key, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dir := path.Dir(key)
	if err := l.fs.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("blob: creating %s: %w", dir, err)
	}

	tmp, err := afero.TempFile(l.fs, dir, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("blob: creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = l.fs.Remove(tmpName)
		return "", fmt.Errorf("blob: writing %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		_ = l.fs.Remove(tmpName)
		return "", fmt.Errorf("blob: closing %s: %w", key, err)
	}
	if err := l.fs.Rename(tmpName, key); err != nil {
		_ = l.fs.Remove(tmpName)
		return "", fmt.Errorf("blob: renaming into %s: %w", key, err)
	}

	return MediaPrefix + key, nil
}

// Open returns the file stored at key for serving.
func (l *Local) Open(key string) (afero.File, error) {
	key, err := CleanKey(key)
	if err != nil {
		return nil, err
	}
	return l.fs.Open(key)
}
