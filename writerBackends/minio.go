package writerbackends

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"mediaforge/config"
	"mediaforge/logger"
)

// MinIOStore keeps objects in a MinIO bucket.
type MinIOStore struct {
	client *minio.Client
	bucket string
}

// NewMinIOStore connects and creates the bucket if it does not exist yet.
func NewMinIOStore(ctx context.Context, bucket string, cfg config.MinIOConfig) (*MinIOStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", bucket, err)
		}
		logger.Infof("Created MinIO bucket '%s'", bucket)
	}
	return &MinIOStore{client: client, bucket: bucket}, nil
}

func (s *MinIOStore) Scheme() string    { return "s3" }
func (s *MinIOStore) Container() string { return s.bucket }

func (s *MinIOStore) IssueUploadURL(ctx context.Context, object, contentType string, expiry time.Duration) (string, error) {
	u, err := s.client.PresignedPutObject(ctx, s.bucket, object, expiry)
	if err != nil {
		return "", fmt.Errorf("presign put %s/%s: %w", s.bucket, object, err)
	}
	return u.String(), nil
}

func (s *MinIOStore) IssueDownloadURL(ctx context.Context, object string, expiry time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, object, expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign get %s/%s: %w", s.bucket, object, err)
	}
	return u.String(), nil
}

func (s *MinIOStore) Fetch(ctx context.Context, object string, w io.Writer) error {
	obj, err := s.client.GetObject(ctx, s.bucket, object, minio.GetObjectOptions{})
	if err != nil {
		return s.wrap("get", object, err)
	}
	defer obj.Close()

	// GetObject is lazy; a missing key only shows up on the first read
	if _, err := io.Copy(w, obj); err != nil {
		return s.wrap("read", object, err)
	}
	return nil
}

func (s *MinIOStore) Store(ctx context.Context, object string, r io.Reader, contentType string) error {
	info, err := s.client.PutObject(ctx, s.bucket, object, r, -1, minio.PutObjectOptions{
		ContentType: contentTypeOr(contentType),
	})
	if err != nil {
		return fmt.Errorf("upload object %s/%s: %w", s.bucket, object, err)
	}
	logger.Infof("Successfully uploaded: %s/%s (size: %d bytes)", s.bucket, object, info.Size)
	return nil
}

// Delete succeeds for missing objects, like S3.
func (s *MinIOStore) Delete(ctx context.Context, object string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, object, minio.RemoveObjectOptions{}); err != nil {
		return s.wrap("delete", object, err)
	}
	return nil
}

func (s *MinIOStore) Close() error { return nil }

func (s *MinIOStore) wrap(op, object string, err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return fmt.Errorf("%s object %s/%s: %w", op, s.bucket, object, ErrNotFound)
	}
	return fmt.Errorf("%s object %s/%s: %w", op, s.bucket, object, err)
}
