package retention

import (
	"context"
	"sync"
	"time"

	"mediaforge/logger"
)

// RecordPruner drops persisted job records older than maxAge.
type RecordPruner interface {
	Name() string
	CleanupOldRecords(maxAge time.Duration) error
}

// ReclaimLoop periodically purges stale scratch files and job records.
type ReclaimLoop struct {
	manager      *Manager
	maxAge       time.Duration
	interval     time.Duration
	recordMaxAge time.Duration
	pruners      []RecordPruner

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewReclaimLoop(m *Manager, maxAge, interval, recordMaxAge time.Duration, pruners ...RecordPruner) *ReclaimLoop {
	return &ReclaimLoop{
		manager:      m,
		maxAge:       maxAge,
		interval:     interval,
		recordMaxAge: recordMaxAge,
		pruners:      pruners,
	}
}

// Start launches the loop. The first pass runs immediately. Calling Start on
// a running loop does nothing.
func (l *ReclaimLoop) Start(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done != nil {
		return
	}

	ctx, l.cancel = context.WithCancel(ctx)
	l.done = make(chan struct{})
	go l.run(ctx, l.done)
	logger.Infof("Reclaim loop started (max age %v, interval %v)", l.maxAge, l.interval)
}

// Stop cancels the loop and waits for it to exit. A purge in progress is
// allowed to finish.
func (l *ReclaimLoop) Stop() {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.cancel, l.done = nil, nil
	l.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	logger.Info("Reclaim loop stopped")
}

func (l *ReclaimLoop) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		l.reclaimOnce()
		timer.Reset(l.interval)
	}
}

func (l *ReclaimLoop) reclaimOnce() {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("Reclaim pass panicked: %v", r)
		}
	}()

	logger.Info("Running scheduled scratch cleanup")
	res := l.manager.PurgeOldFiles(l.maxAge)
	snap := l.manager.Snapshot()
	logger.Infof("Scratch cleanup removed %d files; %d files (%.2f MB) remain",
		res.DeletedCount, snap.Total.FileCount, snap.Total.TotalSizeMB)

	for _, p := range l.pruners {
		logger.Debugf("Cleaning up %s records older than %v", p.Name(), l.recordMaxAge)
		if err := p.CleanupOldRecords(l.recordMaxAge); err != nil {
			logger.Errorf("Failed to cleanup old %s records: %v", p.Name(), err)
		}
	}
}
