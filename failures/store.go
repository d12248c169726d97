package failures

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	pebble "github.com/cockroachdb/pebble"
)

// FailureRecord represents a failed conversion job
type FailureRecord struct {
	JobID     string    `json:"job_id"`
	Timestamp time.Time `json:"timestamp"`
	Kind      string    `json:"kind"`
	Error     string    `json:"error"`
	JobData   string    `json:"job_data"` // JSON string of the conversion request
}

// Store persists failure records keyed by job id.
type Store struct {
	db *pebble.DB
}

// Open opens (or creates) the failure store at dbPath
func Open(dbPath string) (*Store, error) {
	db, err := pebble.Open(dbPath, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open failure store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the failure store
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// StoreFailure stores a job failure
func (s *Store) StoreFailure(jobID string, jobErr error, jobData interface{}) error {
	return s.put(jobID, jobErr, jobData, time.Now())
}

func (s *Store) put(jobID string, jobErr error, jobData interface{}, at time.Time) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("failure store not initialized")
	}

	jobJSON, jsonErr := json.Marshal(jobData)
	if jsonErr != nil {
		jobJSON = []byte(fmt.Sprintf("failed to marshal job data: %v", jsonErr))
	}

	record := FailureRecord{
		JobID:     jobID,
		Timestamp: at,
		Kind:      KindOf(jobErr).String(),
		Error:     jobErr.Error(),
		JobData:   string(jobJSON),
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal failure record: %w", err)
	}
	return s.db.Set([]byte(jobID), data, pebble.Sync)
}

// GetFailure retrieves a failure record by job id. A missing record is (nil, nil).
func (s *Store) GetFailure(jobID string) (*FailureRecord, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("failure store not initialized")
	}

	data, closer, err := s.db.Get([]byte(jobID))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get failure: %w", err)
	}
	defer closer.Close()

	var record FailureRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal failure record: %w", err)
	}
	return &record, nil
}

// DeleteFailure removes a failure record
func (s *Store) DeleteFailure(jobID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("failure store not initialized")
	}
	return s.db.Delete([]byte(jobID), pebble.Sync)
}

// ListFailures returns all failure records
func (s *Store) ListFailures() ([]FailureRecord, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("failure store not initialized")
	}

	iter, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to create iterator: %w", err)
	}
	defer iter.Close()

	failures := []FailureRecord{}
	for iter.First(); iter.Valid(); iter.Next() {
		var record FailureRecord
		if err := json.Unmarshal(iter.Value(), &record); err != nil {
			continue
		}
		failures = append(failures, record)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("iteration error: %w", err)
	}
	return failures, nil
}

// CleanupOldRecords removes failure records older than maxAge
func (s *Store) CleanupOldRecords(maxAge time.Duration) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("failure store not initialized")
	}

	cutoff := time.Now().Add(-maxAge)
	iter, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return err
	}

	var keysToDelete [][]byte
	for iter.First(); iter.Valid(); iter.Next() {
		var record FailureRecord
		if err := json.Unmarshal(iter.Value(), &record); err != nil {
			continue
		}
		if record.Timestamp.Before(cutoff) {
			key := make([]byte, len(iter.Key()))
			copy(key, iter.Key())
			keysToDelete = append(keysToDelete, key)
		}
	}
	if err := iter.Close(); err != nil {
		return err
	}

	for _, key := range keysToDelete {
		if err := s.db.Delete(key, pebble.Sync); err != nil {
			return fmt.Errorf("failed to delete old failure record: %w", err)
		}
	}
	return nil
}

// Name identifies the store in reclaim logs.
func (s *Store) Name() string { return "failures" }
