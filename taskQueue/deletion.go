package taskqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"mediaforge/logger"
	"mediaforge/metrics"
	writerbackends "mediaforge/writerBackends"
)

const pendingPrefix = "pending/"

var (
	// ErrSchedulerClosed is returned by handles created after Close.
	ErrSchedulerClosed = errors.New("deletion scheduler closed")
	// ErrSuperseded is returned by a handle whose object was scheduled again
	// before its delay ran out.
	ErrSuperseded = errors.New("deletion superseded by a later schedule")
)

// Deleter removes one object from the remote store.
type Deleter interface {
	Delete(ctx context.Context, object string) error
}

// PendingDeletion is the persisted form of a scheduled remote delete.
type PendingDeletion struct {
	ID        string    `json:"id,omitempty"`
	Container string    `json:"container"`
	Object    string    `json:"object"`
	DueAt     time.Time `json:"due_at"`
	Attempts  int       `json:"attempts"`
}

func (p PendingDeletion) key() string {
	return pendingPrefix + p.Container + "/" + p.Object
}

// Handle tracks one scheduled deletion.
type Handle struct {
	Object string
	done   chan struct{}
	err    error
}

// Wait blocks until the deletion has run or was cancelled, and returns its
// error. A missing object counts as deleted.
func (h *Handle) Wait() error {
	<-h.done
	return h.err
}

// Done is closed when the task ends.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Scheduler deletes remote objects after a delay. Every scheduled delete is
// persisted first, so deletions cut short by a restart are picked up again
// by Resume.
type Scheduler struct {
	queue     *DBQueue
	store     Deleter
	container string
	metrics   *metrics.Metrics

	// DeleteTimeout bounds a single delete call.
	DeleteTimeout time.Duration
	Now           func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	closed bool
	active map[string]*task // record key -> latest task
	wg     sync.WaitGroup
}

type task struct {
	id     string
	cancel context.CancelFunc
}

// NewScheduler returns a scheduler deleting from store, whose objects live in
// container. m may be nil.
func NewScheduler(queue *DBQueue, store Deleter, container string, m *metrics.Metrics) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		queue:         queue,
		store:         store,
		container:     container,
		metrics:       m,
		DeleteTimeout: 2 * time.Minute,
		Now:           time.Now,
		ctx:           ctx,
		cancel:        cancel,
		active:        make(map[string]*task),
	}
}

// Schedule deletes object once delay has elapsed. A negative delay is
// treated as zero and zero deletes right away. The call never blocks on the
// deletion itself. Scheduling an object that is already waiting replaces the
// earlier task, whose handle then reports ErrSuperseded.
func (s *Scheduler) Schedule(object string, delay time.Duration) *Handle {
	if delay < 0 {
		delay = 0
	}
	rec := PendingDeletion{
		ID:        uuid.NewString(),
		Container: s.container,
		Object:    object,
		DueAt:     s.Now().Add(delay).UTC(),
	}
	if err := s.persist(rec); err != nil {
		// the in-memory task still runs; only restart recovery is lost
		logger.Errorf("Failed to persist pending deletion of %s: %v", object, err)
	}
	return s.start(rec, delay)
}

// Resume reschedules every persisted deletion for this container. Overdue
// records run immediately.
func (s *Scheduler) Resume(ctx context.Context) ([]*Handle, error) {
	var records []PendingDeletion
	err := s.queue.Scan(pendingPrefix, func(key string, value []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		var rec PendingDeletion
		if err := json.Unmarshal(value, &rec); err != nil {
			logger.Warnf("Dropping unreadable pending deletion %s: %v", key, err)
			return s.queue.Delete(key)
		}
		if rec.Container != s.container {
			logger.Warnf("Skipping pending deletion of %s in container %s (configured: %s)", rec.Object, rec.Container, s.container)
			return nil
		}
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan pending deletions: %w", err)
	}

	handles := make([]*Handle, 0, len(records))
	now := s.Now()
	for _, rec := range records {
		handles = append(handles, s.start(rec, rec.DueAt.Sub(now)))
	}
	if len(handles) > 0 {
		logger.Infof("Resumed %d pending remote deletions", len(handles))
	}
	return handles, nil
}

// Pending lists the persisted deletions that have not completed.
func (s *Scheduler) Pending() ([]PendingDeletion, error) {
	records := []PendingDeletion{}
	err := s.queue.Scan(pendingPrefix, func(key string, value []byte) error {
		var rec PendingDeletion
		if err := json.Unmarshal(value, &rec); err != nil {
			return nil
		}
		records = append(records, rec)
		return nil
	})
	return records, err
}

// Close cancels every waiting deletion, keeps their records for the next
// Resume, and waits for in-flight deletes to finish.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	s.cancel()
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Scheduler) start(rec PendingDeletion, delay time.Duration) *Handle {
	h := &Handle{Object: rec.Object, done: make(chan struct{})}
	if rec.ID == "" {
		// records written before ids existed
		rec.ID = uuid.NewString()
		if err := s.persist(rec); err != nil {
			logger.Errorf("Failed to persist pending deletion of %s: %v", rec.Object, err)
		}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		h.err = ErrSchedulerClosed
		close(h.done)
		return h
	}
	ctx, cancel := context.WithCancel(s.ctx)
	if prev, ok := s.active[rec.key()]; ok {
		prev.cancel()
	}
	t := &task{id: rec.ID, cancel: cancel}
	s.active[rec.key()] = t
	s.wg.Add(1)
	s.mu.Unlock()

	s.metrics.DeletionScheduled()
	go s.run(ctx, t, h, rec, delay)
	return h
}

func (s *Scheduler) run(ctx context.Context, t *task, h *Handle, rec PendingDeletion, delay time.Duration) {
	defer s.wg.Done()
	defer close(h.done)
	defer s.metrics.DeletionSettled()
	defer s.release(rec.key(), t)

	if delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			h.err = ErrSuperseded
			if s.ctx.Err() != nil {
				h.err = s.ctx.Err()
			}
			return
		}
	}
	if ctx.Err() != nil && s.ctx.Err() == nil {
		h.err = ErrSuperseded
		return
	}

	delCtx, cancel := context.WithTimeout(context.Background(), s.DeleteTimeout)
	defer cancel()

	err := s.store.Delete(delCtx, rec.Object)
	switch {
	case err == nil:
		s.metrics.ObserveDeletion("deleted")
		logger.Infof("Deleted remote object %s/%s", rec.Container, rec.Object)
	case errors.Is(err, writerbackends.ErrNotFound):
		s.metrics.ObserveDeletion("not_found")
		logger.Debugf("Remote object %s/%s already gone", rec.Container, rec.Object)
	default:
		s.metrics.ObserveDeletion("failed")
		logger.Errorf("Failed to delete remote object %s/%s: %v", rec.Container, rec.Object, err)
		rec.Attempts++
		if s.current(rec) {
			if perr := s.persist(rec); perr != nil {
				logger.Errorf("Failed to update pending deletion of %s: %v", rec.Object, perr)
			}
		}
		h.err = err
		return
	}

	if err := s.clear(rec); err != nil {
		logger.Warnf("Failed to clear pending deletion of %s: %v", rec.Object, err)
	}
}

// release drops t from the active set unless a later task replaced it.
func (s *Scheduler) release(key string, t *task) {
	s.mu.Lock()
	if s.active[key] == t {
		delete(s.active, key)
	}
	s.mu.Unlock()
	t.cancel()
}

// current reports whether rec is still the persisted record for its object.
// A missing record belongs to nobody, so it counts as current.
func (s *Scheduler) current(rec PendingDeletion) bool {
	data, err := s.queue.Get(rec.key())
	if errors.Is(err, ErrNotFound) {
		return true
	}
	if err != nil {
		return false
	}
	var stored PendingDeletion
	if err := json.Unmarshal(data, &stored); err != nil {
		return false
	}
	return stored.ID == rec.ID
}

// clear removes rec's record if a later schedule has not replaced it.
func (s *Scheduler) clear(rec PendingDeletion) error {
	if !s.current(rec) {
		return nil
	}
	return s.queue.Delete(rec.key())
}

func (s *Scheduler) persist(rec PendingDeletion) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.queue.Add(rec.key(), data)
}
