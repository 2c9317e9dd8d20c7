package blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/url"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeObjectStore struct {
	exists  bool
	made    []string
	objects map[string][]byte
	types   map[string]string
	putErr  error
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeObjectStore) BucketExists(context.Context, string) (bool, error) { return f.exists, nil }

func (f *fakeObjectStore) MakeBucket(_ context.Context, bucket string, _ minio.MakeBucketOptions) error {
	f.made = append(f.made, bucket)
	return nil
}

func (f *fakeObjectStore) PutObject(_ context.Context, bucket, name string, r *bytes.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if f.putErr != nil {
		return minio.UploadInfo{}, f.putErr
	}
	data, _ := io.ReadAll(r)
	f.objects[bucket+"/"+name] = data
	f.types[bucket+"/"+name] = opts.ContentType
	return minio.UploadInfo{Bucket: bucket, Key: name, Size: size}, nil
}

func (f *fakeObjectStore) PresignedGetObject(_ context.Context, bucket, name string, expires time.Duration, _ url.Values) (*url.URL, error) {
	return url.Parse("https://s3.example.com/" + bucket + "/" + name + "?X-Amz-Expires=" + expires.String())
}

func TestMinio_Write(t *testing.T) {
	store := newFakeObjectStore()
	m := newMinio(store, "closet", 30*time.Minute)

	loc, err := m.Write(context.Background(), "alice/abc-photo.png", []byte("png"))
	require.NoError(t, err)

	assert.Equal(t, "https://s3.example.com/closet/alice/abc-photo.png?X-Amz-Expires=30m0s", loc)
	assert.Equal(t, []byte("png"), store.objects["closet/alice/abc-photo.png"])
	assert.Equal(t, "image/png", store.types["closet/alice/abc-photo.png"])
}

func TestMinio_WriteError(t *testing.T) {
	store := newFakeObjectStore()
	store.putErr = errors.New("connection refused")
	m := newMinio(store, "closet", 0)

	_, err := m.Write(context.Background(), "alice/a.png", []byte("png"))
	assert.ErrorContains(t, err, "connection refused")
}

func TestMinio_RejectsBadKey(t *testing.T) {
	m := newMinio(newFakeObjectStore(), "closet", 0)

	_, err := m.Write(context.Background(), "../a.png", nil)
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestMinio_EnsureBucket(t *testing.T) {
	store := newFakeObjectStore()
	m := newMinio(store, "closet", 0)

	require.NoError(t, m.EnsureBucket(context.Background()))
	assert.Equal(t, []string{"closet"}, store.made)

	store.exists = true
	require.NoError(t, m.EnsureBucket(context.Background()))
	assert.Len(t, store.made, 1)
}

func TestMinio_Ping(t *testing.T) {
	store := newFakeObjectStore()
	m := newMinio(store, "closet", 0)

	assert.Error(t, m.Ping(context.Background()))

	store.exists = true
	assert.NoError(t, m.Ping(context.Background()))
}
