package jobs

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/huangsam/busfactor/core"
	"github.com/huangsam/busfactor/internal/contract"
	"github.com/huangsam/busfactor/internal/logger"
	"github.com/huangsam/busfactor/schema"
)

// Analyzer runs one analysis. *core.Pipeline satisfies it.
type Analyzer interface {
	Run(ctx context.Context, location string, report core.ProgressFunc) (*schema.AnalysisResult, error)
}

var _ Analyzer = &core.Pipeline{} // Compile-time check

// Service is the polling contract served over HTTP and MCP.
type Service interface {
	Submit(workspaceID, location string) (*schema.AnalysisJob, error)
	Status(id string) (*schema.AnalysisJob, error)
	StatusByWorkspace(workspaceID string) (*schema.AnalysisJob, error)
	Result(id string) (*schema.AnalysisResult, error)
	Cancel(id string) error
	Stats() Stats
}

var _ Service = &Runner{} // Compile-time check

// Observer receives lifecycle events for metrics.
type Observer interface {
	JobSubmitted()
	JobRejected(reason string)
	JobFinished(status schema.JobStatus, elapsed time.Duration)
	StepFinished(step schema.Step, elapsed time.Duration)
	QueueDepth(n int)
}

type nopObserver struct{}

func (nopObserver) JobSubmitted()                              {}
func (nopObserver) JobRejected(string)                         {}
func (nopObserver) JobFinished(schema.JobStatus, time.Duration) {}
func (nopObserver) StepFinished(schema.Step, time.Duration)    {}
func (nopObserver) QueueDepth(int)                             {}

// RunnerConfig contains configuration for the job runner.
type RunnerConfig struct {
	Workers   int
	QueueSize int
	Store     contract.JobStore // Optional durable mirror
	Observer  Observer          // Optional metrics sink
}

// RunnerConfigFromConfig derives runner settings from the runtime config.
func RunnerConfigFromConfig(cfg *contract.Config) RunnerConfig {
	return RunnerConfig{Workers: cfg.Workers, QueueSize: cfg.QueueSize}
}

// Stats is a point-in-time view of the runner.
type Stats struct {
	QueueLength   int                      `json:"queue_length"`
	QueueCapacity int                      `json:"queue_capacity"`
	Workers       int                      `json:"workers"`
	Jobs          map[schema.JobStatus]int `json:"jobs"`
}

// Runner executes queued jobs on a fixed pool of workers.
type Runner struct {
	reg      *Registry
	analyzer Analyzer
	store    contract.JobStore
	observer Observer

	queue   chan string
	workers int

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex // guards stopped and sends on queue
	stopped bool
	wg      sync.WaitGroup
}

// NewRunner creates a runner and starts its workers.
func NewRunner(reg *Registry, analyzer Analyzer, config RunnerConfig) *Runner {
	if config.Workers <= 0 {
		config.Workers = contract.DefaultWorkers
	}
	if config.QueueSize <= 0 {
		config.QueueSize = contract.DefaultQueueSize
	}
	if config.Observer == nil {
		config.Observer = nopObserver{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		reg:      reg,
		analyzer: analyzer,
		store:    config.Store,
		observer: config.Observer,
		queue:    make(chan string, config.QueueSize),
		workers:  config.Workers,
		ctx:      ctx,
		cancel:   cancel,
	}
	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}
	logger.Info().Int("workers", r.workers).Int("queue_size", config.QueueSize).Msg("job runner started")
	return r
}

// Submit registers and enqueues an analysis without blocking.
func (r *Runner) Submit(workspaceID, location string) (*schema.AnalysisJob, error) {
	workspaceID = strings.TrimSpace(workspaceID)
	location = strings.TrimSpace(location)
	if workspaceID == "" || location == "" {
		return nil, ErrInvalidRequest
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.stopped {
		return nil, ErrStopped
	}

	job, err := r.reg.Create(workspaceID, location)
	if err != nil {
		r.observer.JobRejected("active")
		return nil, err
	}
	select {
	case r.queue <- job.ID:
	default:
		r.reg.Remove(job.ID)
		r.observer.JobRejected("queue_full")
		return nil, ErrQueueFull
	}

	r.observer.JobSubmitted()
	r.observer.QueueDepth(len(r.queue))
	r.mirror(job)
	logger.Info().Str("job_id", job.ID).Str("workspace", workspaceID).Str("repo", location).Msg("analysis queued")
	return job, nil
}

// Status returns a snapshot of job id.
func (r *Runner) Status(id string) (*schema.AnalysisJob, error) {
	return r.reg.Get(id)
}

// StatusByWorkspace returns a snapshot of the newest job of a workspace.
func (r *Runner) StatusByWorkspace(workspaceID string) (*schema.AnalysisJob, error) {
	return r.reg.Latest(workspaceID)
}

// Result returns the result of a completed job. The same result is
// returned on every call.
func (r *Runner) Result(id string) (*schema.AnalysisResult, error) {
	job, err := r.reg.Get(id)
	if err != nil {
		return nil, err
	}
	if job.Status != schema.StatusCompleted || job.Result == nil {
		return nil, fmt.Errorf("%w: job %s is %s", ErrNotCompleted, id, job.Status)
	}
	return job.Result, nil
}

// Cancel is not supported. It reports whether the job exists.
func (r *Runner) Cancel(id string) error {
	if _, err := r.reg.Get(id); err != nil {
		return err
	}
	return ErrCancelUnsupported
}

// List returns snapshots of every job, newest first.
func (r *Runner) List() []*schema.AnalysisJob {
	return r.reg.List()
}

// Prune drops finished jobs older than retention from memory.
func (r *Runner) Prune(retention time.Duration) int {
	n := r.reg.Prune(retention)
	if n > 0 {
		logger.Info().Int("removed", n).Dur("retention", retention).Msg("pruned finished jobs")
	}
	return n
}

// Stats returns runner statistics.
func (r *Runner) Stats() Stats {
	return Stats{
		QueueLength:   len(r.queue),
		QueueCapacity: cap(r.queue),
		Workers:       r.workers,
		Jobs:          r.reg.Counts(),
	}
}

// Stop refuses new submissions, lets workers drain the queue and waits up
// to timeout. In-flight analyses are cancelled when the timeout expires.
func (r *Runner) Stop(timeout time.Duration) error {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return nil
	}
	r.stopped = true
	close(r.queue)
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.cancel()
		logger.Info().Msg("job runner stopped cleanly")
		return nil
	case <-time.After(timeout):
		r.cancel()
		return fmt.Errorf("job runner shutdown timed out after %v", timeout)
	}
}

func (r *Runner) worker(n int) {
	defer r.wg.Done()
	logger.Debug().Int("worker", n).Msg("job worker started")
	for id := range r.queue {
		r.observer.QueueDepth(len(r.queue))
		r.process(id)
	}
}

// process runs one job to a terminal state.
func (r *Runner) process(id string) {
	job, err := r.reg.Start(id)
	if err != nil {
		logger.Warn().Err(err).Str("job_id", id).Msg("skipping job")
		return
	}
	r.mirror(job)

	log := logger.With(job.ID, job.WorkspaceID)
	log.Info().Str("repo", job.RepoLocation).Msg("analysis started")
	started := time.Now()
	stepStarted := started

	report := func(step schema.Step, finished bool) {
		snap, err := r.reg.Advance(id, step, finished)
		if err != nil {
			log.Warn().Err(err).Str("step", string(step)).Msg("progress update rejected")
			return
		}
		if finished {
			r.observer.StepFinished(step, time.Since(stepStarted))
			log.Debug().Str("step", string(step)).Int("progress", snap.Progress).Msg("step finished")
		} else {
			stepStarted = time.Now()
		}
		r.mirror(snap)
	}

	result, err := r.run(job.RepoLocation, report)
	if err == nil && result == nil {
		err = fmt.Errorf("analysis of %s returned no result", job.RepoLocation)
	}
	var final *schema.AnalysisJob
	if err != nil {
		final, _ = r.reg.Fail(id, err)
		log.Error().Err(err).Str("category", string(contract.CategoryOf(err))).Dur("elapsed", time.Since(started)).Msg("analysis failed")
	} else {
		final, _ = r.reg.Complete(id, result)
		log.Info().Dur("elapsed", time.Since(started)).Int("bus_factor", result.CodebaseHealth.BusFactor).Msg("analysis completed")
	}
	if final != nil {
		r.observer.JobFinished(final.Status, time.Since(started))
		r.mirror(final)
	}
}

// run calls the analyzer and turns a panic into an internal failure.
func (r *Runner) run(location string, report core.ProgressFunc) (result *schema.AnalysisResult, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("analysis panicked: %v", rec)
		}
	}()
	return r.analyzer.Run(r.ctx, location, report)
}

// mirror writes a snapshot to the durable store. Failures are only logged.
func (r *Runner) mirror(job *schema.AnalysisJob) {
	if r.store == nil {
		return
	}
	if err := r.store.SaveJob(job); err != nil {
		logger.Warn().Err(err).Str("job_id", job.ID).Msg("failed to mirror job state")
	}
}
