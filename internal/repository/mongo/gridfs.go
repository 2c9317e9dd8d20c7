package mongo

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"go.mongodb.org/mongo-driver/mongo/gridfs"
)

// gridFSFiles stores pixel buffers as GridFS files whose _id is the media
// record id. The bucket API takes deadlines instead of contexts, so each call
// carries ctx's deadline over.
type gridFSFiles struct {
	bucket *gridfs.Bucket
}

func (g gridFSFiles) Upload(ctx context.Context, id string, data []byte) error {
	us, err := g.bucket.OpenUploadStreamWithID(id, id+".zst")
	if err != nil {
		return fmt.Errorf("opening upload %s: %w", id, err)
	}
	if err := us.SetWriteDeadline(deadline(ctx)); err != nil {
		_ = us.Abort()
		return err
	}
	if _, err := io.Copy(us, bytes.NewReader(data)); err != nil {
		_ = us.Abort()
		return fmt.Errorf("writing upload %s: %w", id, err)
	}
	return us.Close()
}

func (g gridFSFiles) Download(ctx context.Context, id string) ([]byte, error) {
	ds, err := g.bucket.OpenDownloadStream(id)
	if err != nil {
		return nil, err
	}
	defer ds.Close()
	if err := ds.SetReadDeadline(deadline(ctx)); err != nil {
		return nil, err
	}
	return io.ReadAll(ds)
}

func (g gridFSFiles) Delete(ctx context.Context, id string) error {
	return g.bucket.DeleteContext(ctx, id)
}

// deadline is ctx's deadline, or the zero time (no deadline).
func deadline(ctx context.Context) time.Time {
	d, _ := ctx.Deadline()
	return d
}
