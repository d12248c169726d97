package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// CredentialsDBPath returns the full path to the credentials database.
// It holds the relay signing secret when none is configured.
// Path: {DataDir}/credentials.db
func (c *Config) CredentialsDBPath() string {
	return filepath.Join(c.DataDir, "credentials.db")
}

// FailuresDBPath returns the full path to the failures database.
// Path: {DataDir}/failures.db
func (c *Config) FailuresDBPath() string {
	return filepath.Join(c.DataDir, "failures.db")
}

// SuccessDBPath returns the full path to the success database.
// Path: {DataDir}/success.db
func (c *Config) SuccessDBPath() string {
	return filepath.Join(c.DataDir, "success.db")
}

// DeletionQueueDBPath returns the path of the pending remote deletion queue.
func (c *Config) DeletionQueueDBPath() string {
	return filepath.Join(c.DataDir, "deletions.db")
}

// ScratchDirs lists the local scratch directories in sweep order.
func (c *Config) ScratchDirs() []string {
	return []string{c.InboundDir, c.OutboundDir}
}

// EnsureDirs creates the data and scratch directories. Called once at startup.
func (c *Config) EnsureDirs() error {
	for _, dir := range append([]string{c.DataDir}, c.ScratchDirs()...) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}
