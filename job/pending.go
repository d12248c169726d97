package job

import (
	"sync"
	"time"
)

// JobState is the step a job is currently in.
type JobState int

const (
	JobStateResolving JobState = iota
	JobStateStagingIn
	JobStateTranscoding
	JobStateStagingOut
	JobStateFinalizing
	JobStateCompleted
	JobStateFailed
)

func (s JobState) String() string {
	switch s {
	case JobStateResolving:
		return "resolving"
	case JobStateStagingIn:
		return "staging_in"
	case JobStateTranscoding:
		return "transcoding"
	case JobStateStagingOut:
		return "staging_out"
	case JobStateFinalizing:
		return "finalizing"
	case JobStateCompleted:
		return "completed"
	case JobStateFailed:
		return "failed"
	}
	return "unknown"
}

// Terminal reports whether the job has finished.
func (s JobState) Terminal() bool {
	return s == JobStateCompleted || s == JobStateFailed
}

// JobStatus is the tracked view of one job.
type JobStatus struct {
	JobID     string    `json:"jobId"`
	State     string    `json:"state"`
	Error     string    `json:"error,omitempty"`
	StartedAt time.Time `json:"startedAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	state JobState
}

// Tracker keeps the in-memory state of running jobs. Finished jobs stay
// visible for Linger and are then dropped; persisted records cover them.
type Tracker struct {
	Linger time.Duration

	mu   sync.RWMutex
	jobs map[string]*JobStatus
	now  func() time.Time
}

func NewTracker() *Tracker {
	return &Tracker{
		Linger: 10 * time.Minute,
		jobs:   make(map[string]*JobStatus),
		now:    time.Now,
	}
}

// Begin starts tracking jobID in the resolving state.
func (t *Tracker) Begin(jobID string) {
	now := t.now()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.prune(now)
	t.jobs[jobID] = &JobStatus{
		JobID:     jobID,
		State:     JobStateResolving.String(),
		StartedAt: now,
		UpdatedAt: now,
		state:     JobStateResolving,
	}
}

// Set moves jobID to state. Untracked jobs are ignored.
func (t *Tracker) Set(jobID string, state JobState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.jobs[jobID]
	if !ok {
		return
	}
	st.state = state
	st.State = state.String()
	st.UpdatedAt = t.now()
}

// Finish marks jobID completed, or failed with err.
func (t *Tracker) Finish(jobID string, err error) {
	if err != nil {
		t.Set(jobID, JobStateFailed)
		t.mu.Lock()
		if st, ok := t.jobs[jobID]; ok {
			st.Error = err.Error()
		}
		t.mu.Unlock()
		return
	}
	t.Set(jobID, JobStateCompleted)
}

// Get returns a copy of the tracked status of jobID.
func (t *Tracker) Get(jobID string) (JobStatus, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	st, ok := t.jobs[jobID]
	if !ok {
		return JobStatus{}, false
	}
	return *st, true
}

// Active returns the jobs that have not finished yet.
func (t *Tracker) Active() []JobStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := []JobStatus{}
	for _, st := range t.jobs {
		if !st.state.Terminal() {
			out = append(out, *st)
		}
	}
	return out
}

// prune drops finished jobs past their linger time. Caller holds mu.
func (t *Tracker) prune(now time.Time) {
	for id, st := range t.jobs {
		if st.state.Terminal() && now.Sub(st.UpdatedAt) > t.Linger {
			delete(t.jobs, id)
		}
	}
}
