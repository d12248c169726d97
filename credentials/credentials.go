package credentials

import (
	"encoding/hex"
	"errors"
	"fmt"

	"mediaforge/logger"
	"mediaforge/utils"

	"github.com/cockroachdb/pebble"
)

const relaySecretKey = "relay/signing-secret"

// Store keeps server-side secrets in a pebble DB.
type Store struct {
	db *pebble.DB
}

// OpenDB opens the Pebble DB for credentials at the specified path
func OpenDB(dbPath string) (*Store, error) {
	db, err := pebble.Open(dbPath, &pebble.Options{})
	if err != nil {
		logger.Errorf("Failed to open Pebble DB: %v", err)
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the DB
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RelaySecret returns the relay signing secret. A configured value wins;
// otherwise a generated secret is persisted so issued URLs survive restarts.
func (s *Store) RelaySecret(configured string) ([]byte, error) {
	if configured != "" {
		return []byte(configured), nil
	}

	value, closer, err := s.db.Get([]byte(relaySecretKey))
	if err == nil {
		defer closer.Close()
		return hex.DecodeString(string(value))
	}
	if !errors.Is(err, pebble.ErrNotFound) {
		return nil, fmt.Errorf("read relay secret: %w", err)
	}

	secret, err := utils.GenerateRandomHex(32)
	if err != nil {
		return nil, fmt.Errorf("generate relay secret: %w", err)
	}
	if err := s.db.Set([]byte(relaySecretKey), []byte(secret), pebble.Sync); err != nil {
		return nil, fmt.Errorf("store relay secret: %w", err)
	}
	logger.Info("Generated new relay signing secret")
	return hex.DecodeString(secret)
}
