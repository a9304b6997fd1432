package render

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/unibox-design/reelforge/internal/models"
)

// Signals carries the cooperative control flags for one job. The pipeline
// goroutine polls them at stage and scene boundaries; control handlers set
// them without blocking on pipeline work.
type Signals struct {
	cancel atomic.Bool
	pause  atomic.Bool
}

func (s *Signals) RequestCancel() { s.cancel.Store(true) }
func (s *Signals) RequestPause()  { s.pause.Store(true) }

// CancelRequested reports whether a cancel has been requested. Cancel
// takes precedence over pause when both are set.
func (s *Signals) CancelRequested() bool { return s.cancel.Load() }
func (s *Signals) PauseRequested() bool  { return s.pause.Load() }

type jobEntry struct {
	job        models.RenderJob
	storyboard models.Storyboard
	signals    *Signals
}

// Registry is the in-memory record of all known jobs. It is the single
// source of truth for job state; reads return snapshots so callers never
// observe a job mid-mutation.
type Registry struct {
	mu              sync.RWMutex
	jobs            map[uuid.UUID]*jobEntry
	activeByProject map[string]uuid.UUID
}

func NewRegistry() *Registry {
	return &Registry{
		jobs:            make(map[uuid.UUID]*jobEntry),
		activeByProject: make(map[string]uuid.UUID),
	}
}

// Add registers a new job. When projectID is non-empty and already has a
// non-terminal job, Add refuses with a ConflictError.
func (r *Registry) Add(job models.RenderJob, storyboard models.Storyboard) (*Signals, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if job.ProjectID != "" {
		if activeID, ok := r.activeByProject[job.ProjectID]; ok {
			if entry, exists := r.jobs[activeID]; exists && !entry.job.State.IsTerminal() {
				return nil, &ConflictError{
					Msg: "project already has an active render job: " + activeID.String(),
				}
			}
		}
		r.activeByProject[job.ProjectID] = job.ID
	}

	entry := &jobEntry{
		job:        job,
		storyboard: storyboard,
		signals:    &Signals{},
	}
	r.jobs[job.ID] = entry
	return entry.signals, nil
}

// Get returns a snapshot of the job.
func (r *Registry) Get(id uuid.UUID) (models.RenderJob, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.jobs[id]
	if !ok {
		return models.RenderJob{}, false
	}
	return cloneJob(entry.job), true
}

// Signals returns the control flags for a job.
func (r *Registry) Signals(id uuid.UUID) (*Signals, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.jobs[id]
	if !ok {
		return nil, false
	}
	return entry.signals, true
}

// Storyboard returns the job's immutable storyboard snapshot.
func (r *Registry) Storyboard(id uuid.UUID) (models.Storyboard, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.jobs[id]
	if !ok {
		return models.Storyboard{}, false
	}
	return entry.storyboard.Clone(), true
}

// Update applies fn to the job under the registry lock and returns the
// resulting snapshot. Progress never moves backwards within a run.
func (r *Registry) Update(id uuid.UUID, fn func(*models.RenderJob)) (models.RenderJob, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.jobs[id]
	if !ok {
		return models.RenderJob{}, false
	}

	before := entry.job.Progress
	fn(&entry.job)
	if entry.job.Progress < before {
		entry.job.Progress = before
	}
	entry.job.UpdatedAt = time.Now().UTC()

	if entry.job.State.IsTerminal() && entry.job.ProjectID != "" {
		if r.activeByProject[entry.job.ProjectID] == id {
			delete(r.activeByProject, entry.job.ProjectID)
		}
	}
	return cloneJob(entry.job), true
}

// Sweep drops terminal jobs whose last update is older than retention.
// Returns the number of jobs removed.
func (r *Registry) Sweep(retention time.Duration) int {
	cutoff := time.Now().UTC().Add(-retention)

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, entry := range r.jobs {
		if entry.job.State.IsTerminal() && entry.job.UpdatedAt.Before(cutoff) {
			delete(r.jobs, id)
			removed++
		}
	}
	if removed > 0 {
		log.Printf("[Registry] swept %d expired jobs", removed)
	}
	return removed
}

// Len reports the number of jobs currently tracked.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}

func cloneJob(job models.RenderJob) models.RenderJob {
	out := job
	if job.VideoURL != nil {
		v := *job.VideoURL
		out.VideoURL = &v
	}
	if job.Error != nil {
		e := *job.Error
		out.Error = &e
	}
	return out
}
