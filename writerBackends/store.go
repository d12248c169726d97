package writerbackends

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned when the addressed object does not exist.
var ErrNotFound = errors.New("object not found")

// ObjectStore is the remote store holding job inputs and outputs. Object
// names are relative to the configured container.
type ObjectStore interface {
	// Scheme is the URI scheme of object references for this store.
	Scheme() string
	Container() string

	IssueUploadURL(ctx context.Context, object, contentType string, expiry time.Duration) (string, error)
	IssueDownloadURL(ctx context.Context, object string, expiry time.Duration) (string, error)

	Fetch(ctx context.Context, object string, w io.Writer) error
	Store(ctx context.Context, object string, r io.Reader, contentType string) error
	Delete(ctx context.Context, object string) error

	Close() error
}

func contentTypeOr(ct string) string {
	if ct == "" {
		return "application/octet-stream"
	}
	return ct
}
