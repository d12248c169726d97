package job

import (
	"errors"
	"io/fs"
	"os"
	"sync"

	"mediaforge/failures"
	"mediaforge/logger"
)

// Scratch owns the local files of one job. Release removes all of them and
// is safe to call more than once.
type Scratch struct {
	mu    sync.Mutex
	paths []string
}

func NewScratch(paths ...string) *Scratch {
	return &Scratch{paths: paths}
}

// Add registers path for removal. Register before creating the file so a
// partial write is covered too.
func (s *Scratch) Add(path string) {
	s.mu.Lock()
	s.paths = append(s.paths, path)
	s.mu.Unlock()
}

// Release deletes every registered file. Missing files are fine; other
// errors are logged and do not stop the rest.
func (s *Scratch) Release() {
	s.mu.Lock()
	paths := s.paths
	s.paths = nil
	s.mu.Unlock()

	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logger.Warn(failures.Cleanup(p, err))
		}
	}
}
