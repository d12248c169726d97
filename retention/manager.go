package retention

import (
	"errors"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"time"

	"mediaforge/logger"
	"mediaforge/metrics"
)

// AgedFile is a scratch file older than the requested age.
type AgedFile struct {
	Path       string `json:"path"`
	AgeSeconds int64  `json:"age_seconds"`
}

// PurgeResult reports the files removed by PurgeOldFiles.
type PurgeResult struct {
	DeletedCount int        `json:"deleted_count"`
	DeletedFiles []AgedFile `json:"deleted_files"`
}

// WipeResult reports the files removed by PurgeAll.
type WipeResult struct {
	DeletedCount int      `json:"deleted_count"`
	DeletedPaths []string `json:"deleted_files"`
}

// DirStatus describes one scratch directory.
type DirStatus struct {
	Exists         bool    `json:"exists"`
	FileCount      int     `json:"file_count"`
	TotalSizeBytes int64   `json:"total_size_bytes"`
	TotalSizeMB    float64 `json:"total_size_mb"`
}

// Totals sums every scratch directory.
type Totals struct {
	FileCount      int     `json:"file_count"`
	TotalSizeBytes int64   `json:"total_size_bytes"`
	TotalSizeMB    float64 `json:"total_size_mb"`
}

// Snapshot is the on-demand state of the scratch directories, keyed by
// directory.
type Snapshot struct {
	Directories map[string]DirStatus `json:"directories"`
	Total       Totals               `json:"total"`
}

// Manager enforces the retention window over a fixed set of scratch
// directories. Only regular files directly inside each directory are
// considered. A missing directory is treated as empty.
type Manager struct {
	dirs    []string
	metrics *metrics.Metrics
	Now     func() time.Time
}

func NewManager(dirs []string, m *metrics.Metrics) *Manager {
	cleaned := make([]string, len(dirs))
	for i, d := range dirs {
		cleaned[i] = filepath.Clean(d)
	}
	return &Manager{dirs: cleaned, metrics: m, Now: time.Now}
}

// Dirs returns the managed directories.
func (m *Manager) Dirs() []string {
	return append([]string(nil), m.dirs...)
}

type scratchFile struct {
	path    string
	size    int64
	modTime time.Time
}

// files lists regular files in dir. A missing directory yields nothing.
func files(dir string) ([]scratchFile, bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, true, err
	}

	out := make([]scratchFile, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// removed between ReadDir and Info
			continue
		}
		out = append(out, scratchFile{
			path:    filepath.Join(dir, e.Name()),
			size:    info.Size(),
			modTime: info.ModTime(),
		})
	}
	return out, true, nil
}

// ListOldFiles returns every file whose age exceeds maxAge.
func (m *Manager) ListOldFiles(maxAge time.Duration) []AgedFile {
	now := m.Now()
	old := []AgedFile{}
	for _, dir := range m.dirs {
		list, _, err := files(dir)
		if err != nil {
			logger.Errorf("Failed to list %s: %v", dir, err)
			continue
		}
		for _, f := range list {
			age := now.Sub(f.modTime)
			if age > maxAge {
				old = append(old, AgedFile{Path: f.path, AgeSeconds: int64(age.Seconds())})
			}
		}
	}
	return old
}

// PurgeOldFiles deletes every file older than maxAge. Per-file failures are
// logged and skipped.
func (m *Manager) PurgeOldFiles(maxAge time.Duration) PurgeResult {
	res := PurgeResult{DeletedFiles: []AgedFile{}}
	for _, f := range m.ListOldFiles(maxAge) {
		if !remove(f.Path) {
			continue
		}
		logger.Infof("Removed stale scratch file %s (age %ds)", f.Path, f.AgeSeconds)
		res.DeletedFiles = append(res.DeletedFiles, f)
	}
	res.DeletedCount = len(res.DeletedFiles)
	m.metrics.AddPurged(res.DeletedCount)
	return res
}

// PurgeAll deletes every file in every managed directory regardless of age.
func (m *Manager) PurgeAll() WipeResult {
	res := WipeResult{DeletedPaths: []string{}}
	for _, dir := range m.dirs {
		list, _, err := files(dir)
		if err != nil {
			logger.Errorf("Failed to list %s: %v", dir, err)
			continue
		}
		for _, f := range list {
			if remove(f.path) {
				logger.Infof("Removed scratch file %s", f.path)
				res.DeletedPaths = append(res.DeletedPaths, f.path)
			}
		}
	}
	res.DeletedCount = len(res.DeletedPaths)
	m.metrics.AddPurged(res.DeletedCount)
	return res
}

// Snapshot reports file counts and sizes without touching anything.
func (m *Manager) Snapshot() Snapshot {
	snap := Snapshot{Directories: make(map[string]DirStatus, len(m.dirs))}
	for _, dir := range m.dirs {
		list, exists, err := files(dir)
		if err != nil {
			logger.Errorf("Failed to list %s: %v", dir, err)
		}
		st := DirStatus{Exists: exists, FileCount: len(list)}
		for _, f := range list {
			st.TotalSizeBytes += f.size
		}
		st.TotalSizeMB = toMB(st.TotalSizeBytes)
		snap.Directories[dir] = st

		snap.Total.FileCount += st.FileCount
		snap.Total.TotalSizeBytes += st.TotalSizeBytes
	}
	snap.Total.TotalSizeMB = toMB(snap.Total.TotalSizeBytes)
	return snap
}

// remove deletes path and reports whether this call removed it. A file that
// is already gone does not count.
func remove(path string) bool {
	err := os.Remove(path)
	if err == nil {
		return true
	}
	if !errors.Is(err, fs.ErrNotExist) {
		logger.Errorf("Failed to remove %s: %v", path, err)
	}
	return false
}

func toMB(bytes int64) float64 {
	return math.Round(float64(bytes)/(1024*1024)*100) / 100
}
