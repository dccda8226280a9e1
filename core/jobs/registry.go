// Package jobs runs analyses asynchronously and tracks their progress.
package jobs

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/huangsam/busfactor/internal/contract"
	"github.com/huangsam/busfactor/schema"
)

// Registry is the lock-guarded table of jobs. Every method returns copies,
// so callers never observe a job mid-transition.
type Registry struct {
	mu     sync.RWMutex
	jobs   map[string]*schema.AnalysisJob
	active map[string]string // workspace -> non-terminal job id
	latest map[string]string // workspace -> most recently created job id
	now    func() time.Time
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		jobs:   make(map[string]*schema.AnalysisJob),
		active: make(map[string]string),
		latest: make(map[string]string),
		now:    time.Now,
	}
}

// Create registers a queued job. It fails with an ActiveJobError when the
// workspace already has a job that has not finished.
func (r *Registry) Create(workspaceID, location string) (*schema.AnalysisJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.active[workspaceID]; ok {
		return nil, &ActiveJobError{WorkspaceID: workspaceID, JobID: id}
	}
	job := &schema.AnalysisJob{
		ID:           uuid.NewString(),
		WorkspaceID:  workspaceID,
		RepoLocation: location,
		Status:       schema.StatusQueued,
		Message:      "analysis queued",
		CreatedAt:    r.now().UTC(),
	}
	r.jobs[job.ID] = job
	r.active[workspaceID] = job.ID
	r.latest[workspaceID] = job.ID
	return job.Clone(), nil
}

// Remove drops a job that never made it into the queue.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return
	}
	delete(r.jobs, id)
	r.release(job)
	if r.latest[job.WorkspaceID] == id {
		delete(r.latest, job.WorkspaceID)
		r.relinkLatest(job.WorkspaceID)
	}
}

// Get returns a snapshot of job id.
func (r *Registry) Get(id string) (*schema.AnalysisJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, &NotFoundError{ID: id}
	}
	return job.Clone(), nil
}

// Latest returns a snapshot of the newest job of a workspace.
func (r *Registry) Latest(workspaceID string) (*schema.AnalysisJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.latest[workspaceID]
	if !ok {
		return nil, &NotFoundError{ID: workspaceID}
	}
	return r.jobs[id].Clone(), nil
}

// List returns snapshots of every job, newest first.
func (r *Registry) List() []*schema.AnalysisJob {
	r.mu.RLock()
	out := make([]*schema.AnalysisJob, 0, len(r.jobs))
	for _, job := range r.jobs {
		out = append(out, job.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Counts returns the number of jobs per status.
func (r *Registry) Counts() map[schema.JobStatus]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[schema.JobStatus]int, 4)
	for _, job := range r.jobs {
		out[job.Status]++
	}
	return out
}

// Start moves a queued job to processing.
func (r *Registry) Start(id string) (*schema.AnalysisJob, error) {
	return r.update(id, func(job *schema.AnalysisJob) error {
		if job.Status != schema.StatusQueued {
			return fmt.Errorf("cannot start job in state %s", job.Status)
		}
		now := r.now().UTC()
		job.Status = schema.StatusProcessing
		job.StartedAt = &now
		job.Message = "analysis started"
		return nil
	})
}

// Advance records that step started or finished. The step never moves
// backwards and progress only grows.
func (r *Registry) Advance(id string, step schema.Step, finished bool) (*schema.AnalysisJob, error) {
	return r.update(id, func(job *schema.AnalysisJob) error {
		if job.Status != schema.StatusProcessing {
			return fmt.Errorf("cannot advance job in state %s", job.Status)
		}
		if step.Index() < 0 || step.Index() < job.CurrentStep.Index() {
			return fmt.Errorf("step %q cannot follow %q", step, job.CurrentStep)
		}
		job.CurrentStep = step
		if !finished {
			job.Message = fmt.Sprintf("%s in progress", step)
			return nil
		}
		job.Progress = max(job.Progress, ProgressAfter(step))
		job.Message = fmt.Sprintf("%s finished", step)
		return nil
	})
}

// Complete attaches the result and closes the job in one transition.
func (r *Registry) Complete(id string, result *schema.AnalysisResult) (*schema.AnalysisJob, error) {
	return r.finish(id, func(job *schema.AnalysisJob) {
		job.Status = schema.StatusCompleted
		job.Progress = 100
		job.Message = "analysis completed"
		job.Result = result
	})
}

// Fail closes the job with the category and message derived from cause.
func (r *Registry) Fail(id string, cause error) (*schema.AnalysisJob, error) {
	return r.finish(id, func(job *schema.AnalysisJob) {
		job.Status = schema.StatusFailed
		job.ErrorCategory = string(contract.CategoryOf(cause))
		job.Message = FailureMessage(cause)
	})
}

// Prune removes terminal jobs that finished before olderThan ago and
// returns how many were removed.
func (r *Registry) Prune(olderThan time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-olderThan)
	removed := 0
	for id, job := range r.jobs {
		if !job.Status.IsTerminal() || job.CompletedAt == nil || !job.CompletedAt.Before(cutoff) {
			continue
		}
		delete(r.jobs, id)
		if r.latest[job.WorkspaceID] == id {
			delete(r.latest, job.WorkspaceID)
			r.relinkLatest(job.WorkspaceID)
		}
		removed++
	}
	return removed
}

// FailureMessage renders cause as "<category>: <error>".
func FailureMessage(cause error) string {
	var ae *contract.AnalysisError
	if errors.As(cause, &ae) {
		return ae.Error()
	}
	return fmt.Sprintf("%s: %v", contract.CategoryInternal, cause)
}

// ProgressAfter is the cumulative progress once step has finished.
func ProgressAfter(step schema.Step) int {
	total := 0
	for _, s := range schema.AllSteps {
		total += schema.StepWeights[s]
		if s == step {
			return total
		}
	}
	return 0
}

func (r *Registry) finish(id string, apply func(*schema.AnalysisJob)) (*schema.AnalysisJob, error) {
	return r.update(id, func(job *schema.AnalysisJob) error {
		if job.Status.IsTerminal() {
			return fmt.Errorf("job already %s", job.Status)
		}
		apply(job)
		now := r.now().UTC()
		job.CompletedAt = &now
		r.release(job)
		return nil
	})
}

func (r *Registry) update(id string, fn func(*schema.AnalysisJob) error) (*schema.AnalysisJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, &NotFoundError{ID: id}
	}
	if err := fn(job); err != nil {
		return nil, err
	}
	return job.Clone(), nil
}

// release clears the active slot of job's workspace. Caller holds the lock.
func (r *Registry) release(job *schema.AnalysisJob) {
	if r.active[job.WorkspaceID] == job.ID {
		delete(r.active, job.WorkspaceID)
	}
}

// relinkLatest points latest at the newest remaining job of the workspace.
// Caller holds the lock.
func (r *Registry) relinkLatest(workspaceID string) {
	var newest *schema.AnalysisJob
	for _, job := range r.jobs {
		if job.WorkspaceID != workspaceID {
			continue
		}
		if newest == nil || job.CreatedAt.After(newest.CreatedAt) {
			newest = job
		}
	}
	if newest != nil {
		r.latest[workspaceID] = newest.ID
	}
}
