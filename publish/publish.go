// Package publish uploads extraction archives to an S3 compatible bucket.
package publish

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"
)

const zipContentType = "application/zip"

// Options configures the bucket connection.
type Options struct {
	Endpoint  string
	Bucket    string
	Prefix    string
	Region    string
	UseSSL    bool
	AccessKey string
	SecretKey string
}

// bucketClient is the subset of *minio.Client used by the Uploader.
type bucketClient interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	FPutObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Uploader publishes files into a bucket.
type Uploader struct {
	logger zerolog.Logger
	client bucketClient
	bucket string
	prefix string
	region string
}

// New creates an Uploader backed by a MinIO client.
func New(logger zerolog.Logger, opts Options) (*Uploader, error) {
	if opts.Endpoint == "" {
		return nil, fmt.Errorf("upload endpoint is required")
	}
	if opts.Bucket == "" {
		return nil, fmt.Errorf("upload bucket is required")
	}
	if opts.AccessKey == "" || opts.SecretKey == "" {
		return nil, fmt.Errorf("upload access key and secret key are required")
	}

	mc, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return newUploader(logger, mc, opts), nil
}

func newUploader(logger zerolog.Logger, client bucketClient, opts Options) *Uploader {
	return &Uploader{
		logger: logger,
		client: client,
		bucket: opts.Bucket,
		prefix: strings.Trim(opts.Prefix, "/"),
		region: opts.Region,
	}
}

// EnsureBucket creates the bucket if it does not exist.
func (u *Uploader) EnsureBucket(ctx context.Context) error {
	exists, err := u.client.BucketExists(ctx, u.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", u.bucket, err)
	}
	if exists {
		return nil
	}
	if err := u.client.MakeBucket(ctx, u.bucket, minio.MakeBucketOptions{Region: u.region}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", u.bucket, err)
	}
	u.logger.Info().Str("bucket", u.bucket).Msg("Created bucket")
	return nil
}

// ObjectKey returns the key name is stored under.
func (u *Uploader) ObjectKey(name string) string {
	if u.prefix == "" {
		return name
	}
	return path.Join(u.prefix, name)
}

// UploadArchive uploads the zip archive at file as name and returns the
// object URL.
func (u *Uploader) UploadArchive(ctx context.Context, file, name string) (string, error) {
	if err := u.EnsureBucket(ctx); err != nil {
		return "", err
	}

	key := u.ObjectKey(name)
	info, err := u.client.FPutObject(ctx, u.bucket, key, file, minio.PutObjectOptions{
		ContentType: zipContentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}

	u.logger.Debug().
		Str("bucket", info.Bucket).
		Str("key", info.Key).
		Int64("size", info.Size).
		Str("etag", info.ETag).
		Msg("Uploaded archive")

	return fmt.Sprintf("s3://%s/%s", u.bucket, key), nil
}
