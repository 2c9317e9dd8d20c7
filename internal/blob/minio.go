package blob

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// objectStore is the subset of *minio.Client the writer needs.
type objectStore interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader *bytes.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expires time.Duration, reqParams url.Values) (*url.URL, error)
}

// minioAdapter narrows PutObject's reader to what Write passes.
type minioAdapter struct{ *minio.Client }

func (a minioAdapter) PutObject(ctx context.Context, bucket, name string, r *bytes.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	return a.Client.PutObject(ctx, bucket, name, r, size, opts)
}

// MinioConfig holds the S3 connection settings.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	URLExpiry time.Duration
}

// Minio writes objects to an S3-compatible bucket and hands out presigned
// GET URLs as locations.
type Minio struct {
	client objectStore
	bucket string
	expiry time.Duration
}

// NewMinio connects to the endpoint. It does not touch the network;
// call EnsureBucket at startup.
func NewMinio(cfg MinioConfig) (*Minio, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("blob: creating minio client for %s: %w", cfg.Endpoint, err)
	}
	return newMinio(minioAdapter{client}, cfg.Bucket, cfg.URLExpiry), nil
}

func newMinio(client objectStore, bucket string, expiry time.Duration) *Minio {
	if expiry <= 0 {
		expiry = time.Hour
	}
	return &Minio{client: client, bucket: bucket, expiry: expiry}
}

// EnsureBucket creates the bucket when it does not exist yet.
func (m *Minio) EnsureBucket(ctx context.Context) error {
	ok, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("blob: checking bucket %s: %w", m.bucket, err)
	}
	if ok {
		return nil
	}
	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("blob: creating bucket %s: %w", m.bucket, err)
	}
	return nil
}

// Write uploads data as image/png and returns a presigned URL for it.
// S3 PUTs replace objects atomically.
func (m *Minio) Write(ctx context.Context, key string, data []byte) (string, error) {
	key, err := CleanKey(key)
	if err != nil {
		return "", err
	}

	_, err = m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "image/png"})
	if err != nil {
		return "", fmt.Errorf("blob: uploading %s: %w", key, err)
	}

	u, err := m.client.PresignedGetObject(ctx, m.bucket, key, m.expiry, nil)
	if err != nil {
		return "", fmt.Errorf("blob: presigning %s: %w", key, err)
	}
	return u.String(), nil
}

// Ping reports whether the bucket is reachable. /healthz uses it.
func (m *Minio) Ping(ctx context.Context) error {
	ok, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("blob: checking bucket %s: %w", m.bucket, err)
	}
	if !ok {
		return fmt.Errorf("blob: bucket %s does not exist", m.bucket)
	}
	return nil
}
