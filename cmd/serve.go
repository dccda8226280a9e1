package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/huangsam/busfactor/core"
	"github.com/huangsam/busfactor/core/jobs"
	"github.com/huangsam/busfactor/internal/api"
	"github.com/huangsam/busfactor/internal/contract"
	"github.com/huangsam/busfactor/internal/jobstore"
	"github.com/huangsam/busfactor/internal/logger"
	"github.com/huangsam/busfactor/internal/metrics"
	"github.com/huangsam/busfactor/internal/narrative"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

// stopTimeout bounds how long in-flight analyses may finish on shutdown.
const stopTimeout = 30 * time.Second

// pruneSchedule runs retention hourly.
const pruneSchedule = "@hourly"

// startRunner opens the job store and starts a runner around the pipeline.
func startRunner(observer jobs.Observer) (*jobs.Runner, contract.JobStore, error) {
	store, err := jobstore.NewJobStore(cfg.JobBackend, cfg.JobDBConnect)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open job store: %w", err)
	}
	pipeline := core.NewPipeline(cfg, gitClient, narrative.New(cfg.Narrative))

	runnerCfg := jobs.RunnerConfigFromConfig(cfg)
	runnerCfg.Store = store
	runnerCfg.Observer = observer
	return jobs.NewRunner(jobs.NewRegistry(), pipeline, runnerCfg), store, nil
}

// schedulePrune removes expired jobs from memory and from the store.
func schedulePrune(runner *jobs.Runner, store contract.JobStore) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(pruneSchedule, func() {
		removed := runner.Prune(cfg.JobRetention)
		stored, err := store.DeleteJobsBefore(time.Now().Add(-cfg.JobRetention))
		if err != nil {
			contract.LogWarn("Cannot prune stored jobs", err)
		}
		logger.Info().Int("registry", removed).Int64("store", stored).Msg("expired jobs pruned")
	})
	if err != nil {
		return nil, fmt.Errorf("failed to schedule pruning: %w", err)
	}
	c.Start()
	return c, nil
}

// serveCmd runs the asynchronous HTTP API.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the asynchronous analysis API over HTTP.",
	Long: `Start an HTTP server that accepts analysis jobs and lets clients poll them.

Endpoints:
  POST   /api/v1/workspaces/:workspace/analysis   submit a repository
  GET    /api/v1/workspaces/:workspace/analysis   latest job of a workspace
  GET    /api/v1/jobs/:id                         job status and progress
  GET    /api/v1/jobs/:id/result                  completed analysis
  GET    /api/v1/stats                            queue statistics
  GET    /healthz                                 liveness
  GET    /metrics                                 Prometheus metrics

Only one job per workspace may be queued or processing at a time.
Finished jobs are kept for --job-retention and mirrored to the job store.

Examples:
  # Serve on the default port with two workers
  busfactor serve

  # Persist jobs to PostgreSQL
  BUSFACTOR_JOB_DB_CONNECT="postgres://..." busfactor serve --job-backend postgresql --listen :9000`,
	Args:    cobra.NoArgs,
	PreRunE: serviceSetup,
	Run: func(_ *cobra.Command, _ []string) {
		ctx, stop := signal.NotifyContext(rootCtx, os.Interrupt, syscall.SIGTERM)
		defer stop()

		collector := metrics.New()
		runner, store, err := startRunner(collector)
		if err != nil {
			contract.LogFatal("Cannot start job runner", err)
		}
		defer func() { _ = store.Close() }()

		scheduler, err := schedulePrune(runner, store)
		if err != nil {
			contract.LogFatal("Cannot start scheduler", err)
		}
		defer scheduler.Stop()

		router := api.NewRouter(runner, collector, api.Options{RateLimit: cfg.RateLimit, Burst: max(1, int(cfg.RateLimit))})
		serveErr := api.Serve(ctx, cfg.Listen, router)

		if err := runner.Stop(stopTimeout); err != nil {
			contract.LogWarn("Job runner did not stop cleanly", err)
		}
		if serveErr != nil {
			contract.LogFatal("HTTP server failed", serveErr)
		}
	},
}
