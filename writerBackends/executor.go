package writerbackends

import (
	"context"
	"fmt"

	"mediaforge/config"
)

// Open builds the ObjectStore selected by cfg.Backend. The relay is used by
// backends that cannot sign URLs themselves and may be nil for the others.
func Open(ctx context.Context, cfg *config.Config, relay *Relay) (ObjectStore, error) {
	bucket, err := cfg.RequireBucket()
	if err != nil {
		return nil, err
	}

	switch cfg.Backend {
	case config.BackendGCS:
		store, err := NewGCSStore(ctx, bucket, cfg.GCS)
		if err != nil {
			return nil, fmt.Errorf("failed to open GCS store: %w", err)
		}
		return store, nil
	case config.BackendS3:
		store, err := NewS3Store(ctx, bucket, cfg.S3)
		if err != nil {
			return nil, fmt.Errorf("failed to open S3 store: %w", err)
		}
		return store, nil
	case config.BackendMinIO:
		store, err := NewMinIOStore(ctx, bucket, cfg.MinIO)
		if err != nil {
			return nil, fmt.Errorf("failed to open MinIO store: %w", err)
		}
		return store, nil
	case config.BackendSFTP:
		if relay == nil {
			return nil, fmt.Errorf("sftp backend requires a relay")
		}
		return NewSFTPStore(bucket, cfg.SFTP, relay), nil
	case config.BackendLocal:
		if relay == nil {
			return nil, fmt.Errorf("local backend requires a relay")
		}
		return NewLocalStore(cfg.Local.Root, bucket, relay)
	default:
		return nil, fmt.Errorf("unknown backend type: %s", cfg.Backend)
	}
}
