package success

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	pebble "github.com/cockroachdb/pebble"
)

// SuccessRecord represents a completed conversion job
type SuccessRecord struct {
	JobID          string    `json:"job_id"`
	Timestamp      time.Time `json:"timestamp"`
	OutputFilename string    `json:"output_filename"`
	OutputObject   string    `json:"output_object"`
	DeleteAt       time.Time `json:"delete_at"`
	JobData        string    `json:"job_data"` // JSON string of the conversion request
}

// Store persists success records keyed by job id.
type Store struct {
	db *pebble.DB
}

// Open opens (or creates) the success store at dbPath
func Open(dbPath string) (*Store, error) {
	db, err := pebble.Open(dbPath, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open success store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the success store
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// StoreSuccess stores a completed job
func (s *Store) StoreSuccess(record SuccessRecord, jobData interface{}) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("success store not initialized")
	}

	jobJSON, jsonErr := json.Marshal(jobData)
	if jsonErr != nil {
		jobJSON = []byte(fmt.Sprintf("failed to marshal job data: %v", jsonErr))
	}
	record.JobData = string(jobJSON)
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal success record: %w", err)
	}
	return s.db.Set([]byte(record.JobID), data, pebble.Sync)
}

// GetSuccess retrieves a success record by job id. A missing record is (nil, nil).
func (s *Store) GetSuccess(jobID string) (*SuccessRecord, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("success store not initialized")
	}

	data, closer, err := s.db.Get([]byte(jobID))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	defer closer.Close()

	var record SuccessRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal success record: %w", err)
	}
	return &record, nil
}

// DeleteSuccess removes a success record
func (s *Store) DeleteSuccess(jobID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("success store not initialized")
	}
	return s.db.Delete([]byte(jobID), pebble.Sync)
}

// ListSuccessRecords returns all success records
func (s *Store) ListSuccessRecords() ([]SuccessRecord, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("success store not initialized")
	}

	iter, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	records := []SuccessRecord{}
	for iter.First(); iter.Valid(); iter.Next() {
		var record SuccessRecord
		if err := json.Unmarshal(iter.Value(), &record); err != nil {
			continue
		}
		records = append(records, record)
	}
	return records, iter.Error()
}

// CleanupOldRecords removes success records older than maxAge
func (s *Store) CleanupOldRecords(maxAge time.Duration) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("success store not initialized")
	}

	cutoff := time.Now().Add(-maxAge)
	iter, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return err
	}

	var keysToDelete [][]byte
	for iter.First(); iter.Valid(); iter.Next() {
		var record SuccessRecord
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
			return fmt.Errorf("failed to delete old success record: %w", err)
		}
	}
	return nil
}

// CheckHealth performs a basic read against the success database
func (s *Store) CheckHealth() error {
	if s == nil || s.db == nil {
		return fmt.Errorf("success database not initialized")
	}

	_, closer, err := s.db.Get([]byte("__health_check__"))
	if err != nil && !errors.Is(err, pebble.ErrNotFound) {
		return fmt.Errorf("database health check failed: %w", err)
	}
	if closer != nil {
		closer.Close()
	}
	return nil
}

// Name identifies the store in reclaim logs.
func (s *Store) Name() string { return "success" }
