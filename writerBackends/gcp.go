package writerbackends

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"mediaforge/config"
	"mediaforge/logger"
)

// GCSStore keeps objects in one Google Cloud Storage bucket and signs V4 URLs.
type GCSStore struct {
	client   *storage.Client
	bucket   string
	accessID string
}

// NewGCSStore creates a client from the credentials file if one is set,
// otherwise from application default credentials.
func NewGCSStore(ctx context.Context, bucket string, cfg config.GCSConfig) (*GCSStore, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage.NewClient: %w", err)
	}
	return &GCSStore{client: client, bucket: bucket, accessID: cfg.ServiceAccountEmail}, nil
}

func (s *GCSStore) Scheme() string    { return "gs" }
func (s *GCSStore) Container() string { return s.bucket }

func (s *GCSStore) signedURL(object, method, contentType string, expiry time.Duration) (string, error) {
	opts := &storage.SignedURLOptions{
		Scheme:         storage.SigningSchemeV4,
		Method:         method,
		Expires:        time.Now().Add(expiry),
		ContentType:    contentType,
		GoogleAccessID: s.accessID,
	}
	u, err := s.client.Bucket(s.bucket).SignedURL(object, opts)
	if err != nil {
		return "", fmt.Errorf("sign %s %s/%s: %w", method, s.bucket, object, err)
	}
	return u, nil
}

func (s *GCSStore) IssueUploadURL(ctx context.Context, object, contentType string, expiry time.Duration) (string, error) {
	return s.signedURL(object, http.MethodPut, contentTypeOr(contentType), expiry)
}

func (s *GCSStore) IssueDownloadURL(ctx context.Context, object string, expiry time.Duration) (string, error) {
	return s.signedURL(object, http.MethodGet, "", expiry)
}

func (s *GCSStore) Fetch(ctx context.Context, object string, w io.Writer) error {
	rc, err := s.client.Bucket(s.bucket).Object(object).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return fmt.Errorf("get object %s/%s: %w", s.bucket, object, ErrNotFound)
		}
		return fmt.Errorf("get object %s/%s: %w", s.bucket, object, err)
	}
	defer rc.Close()

	if _, err := io.Copy(w, rc); err != nil {
		return fmt.Errorf("read object %s/%s: %w", s.bucket, object, err)
	}
	return nil
}

func (s *GCSStore) Store(ctx context.Context, object string, r io.Reader, contentType string) error {
	wc := s.client.Bucket(s.bucket).Object(object).NewWriter(ctx)
	wc.ContentType = contentTypeOr(contentType)

	if _, err := io.Copy(wc, r); err != nil {
		wc.Close()
		return fmt.Errorf("io.Copy: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("Writer.Close: %w", err)
	}

	logger.Infof("Successfully uploaded object '%s' to bucket '%s'", object, s.bucket)
	return nil
}

func (s *GCSStore) Delete(ctx context.Context, object string) error {
	err := s.client.Bucket(s.bucket).Object(object).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("delete object %s/%s: %w", s.bucket, object, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("delete object %s/%s: %w", s.bucket, object, err)
	}
	return nil
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}
