package writerbackends

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mediaforge/logger"
)

// LocalStore keeps objects on the local filesystem under root/container and
// hands out relay URLs so clients can transfer through this server.
type LocalStore struct {
	dir       string
	container string
	relay     *Relay
}

func NewLocalStore(root, container string, relay *Relay) (*LocalStore, error) {
	dir := filepath.Join(root, container)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}
	return &LocalStore{dir: dir, container: container, relay: relay}, nil
}

func (s *LocalStore) Scheme() string    { return "file" }
func (s *LocalStore) Container() string { return s.container }

// path resolves object inside the container, rejecting anything that
// escapes it.
func (s *LocalStore) path(object string) (string, error) {
	if object == "" {
		return "", fmt.Errorf("empty object name")
	}
	p := filepath.Join(s.dir, filepath.FromSlash(object))
	rel, err := filepath.Rel(s.dir, p)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("object name %q escapes container", object)
	}
	return p, nil
}

func (s *LocalStore) IssueUploadURL(ctx context.Context, object, contentType string, expiry time.Duration) (string, error) {
	if _, err := s.path(object); err != nil {
		return "", err
	}
	return s.relay.URL(object, http.MethodPut, contentTypeOr(contentType), expiry)
}

func (s *LocalStore) IssueDownloadURL(ctx context.Context, object string, expiry time.Duration) (string, error) {
	if _, err := s.path(object); err != nil {
		return "", err
	}
	return s.relay.URL(object, http.MethodGet, "", expiry)
}

func (s *LocalStore) Fetch(ctx context.Context, object string, w io.Writer) error {
	p, err := s.path(object)
	if err != nil {
		return err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("open %s: %w", object, ErrNotFound)
		}
		return fmt.Errorf("open %s: %w", object, err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("read %s: %w", object, err)
	}
	return nil
}

// Store writes to a temp file in the target directory and renames it into
// place so readers never see a partial object.
func (s *LocalStore) Store(ctx context.Context, object string, r io.Reader, contentType string) error {
	p, err := s.path(object)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(p), ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create file for %s: %w", object, err)
	}
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write to file %s: %w", object, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write to file %s: %w", object, err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to move file into place %s: %w", object, err)
	}

	logger.Infof("Successfully saved object '%s' to '%s'", object, p)
	return nil
}

func (s *LocalStore) Delete(ctx context.Context, object string) error {
	p, err := s.path(object)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", object, ErrNotFound)
		}
		return fmt.Errorf("remove %s: %w", object, err)
	}
	return nil
}

func (s *LocalStore) Close() error { return nil }
