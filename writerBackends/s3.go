package writerbackends

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"mediaforge/config"
	"mediaforge/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Store keeps objects in an S3 (or S3 compatible) bucket.
type S3Store struct {
	client   *s3.Client
	presign  *s3.PresignClient
	uploader *manager.Uploader
	bucket   string
}

// NewS3Store loads the default AWS config, overridden by static keys,
// region and endpoint when they are set.
func NewS3Store(ctx context.Context, bucket string, cfg config.S3Config) (*S3Store, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" {
		creds := credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(creds))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})

	return &S3Store{
		client:   client,
		presign:  s3.NewPresignClient(client),
		uploader: manager.NewUploader(client),
		bucket:   bucket,
	}, nil
}

func (s *S3Store) Scheme() string    { return "s3" }
func (s *S3Store) Container() string { return s.bucket }

func (s *S3Store) IssueUploadURL(ctx context.Context, object, contentType string, expiry time.Duration) (string, error) {
	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(object),
		ContentType: aws.String(contentTypeOr(contentType)),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("presign put %s/%s: %w", s.bucket, object, err)
	}
	return req.URL, nil
}

func (s *S3Store) IssueDownloadURL(ctx context.Context, object string, expiry time.Duration) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(object),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("presign get %s/%s: %w", s.bucket, object, err)
	}
	return req.URL, nil
}

func (s *S3Store) Fetch(ctx context.Context, object string, w io.Writer) error {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(object),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return fmt.Errorf("get object %s/%s: %w", s.bucket, object, ErrNotFound)
		}
		return fmt.Errorf("get object %s/%s: %w", s.bucket, object, err)
	}
	defer out.Body.Close()

	if _, err := io.Copy(w, out.Body); err != nil {
		return fmt.Errorf("read object %s/%s: %w", s.bucket, object, err)
	}
	return nil
}

func (s *S3Store) Store(ctx context.Context, object string, r io.Reader, contentType string) error {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(object),
		Body:        r,
		ContentType: aws.String(contentTypeOr(contentType)),
	})
	if err != nil {
		return fmt.Errorf("failed to upload object %s to bucket %s: %w", object, s.bucket, err)
	}

	logger.Infof("Successfully uploaded object '%s' to bucket '%s'", object, s.bucket)
	return nil
}

// Delete is idempotent on S3: removing a missing key succeeds.
func (s *S3Store) Delete(ctx context.Context, object string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(object),
	})
	if err != nil {
		return fmt.Errorf("delete object %s/%s: %w", s.bucket, object, err)
	}
	return nil
}

func (s *S3Store) Close() error { return nil }
