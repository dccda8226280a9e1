package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/huangsam/busfactor/internal/contract"
	"github.com/huangsam/busfactor/internal/jobstore"
	"github.com/huangsam/busfactor/internal/outwriter"
	"github.com/huangsam/busfactor/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// openJobStore opens the configured store or exits.
func openJobStore() contract.JobStore {
	if cfg.JobBackend == schema.NoneBackend {
		contract.LogFatal("Job store is disabled", errors.New("set --job-backend to sqlite, mysql or postgresql"))
	}
	store, err := jobstore.NewJobStore(cfg.JobBackend, cfg.JobDBConnect)
	if err != nil {
		contract.LogFatal("Cannot open job store", err)
	}
	return store
}

// jobsCmd focused on job history management.
var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Manage the stored history of analysis jobs",
	Long: `Manage the durable mirror of analysis jobs written by serve and mcp.

Every job transition is stored with its final result, which allows
auditing past analyses and exporting them for BI tools.

Supported backends: SQLite (default), MySQL, PostgreSQL, or None (disabled)

Subcommands:
  status  - Show job store statistics
  list    - List the most recent jobs
  export  - Export jobs and contributor rows to Parquet
  migrate - Run database schema migrations
  clear   - Remove finished jobs

Examples:
  # Check the store
  busfactor jobs status

  # Export for analysis in pandas/DuckDB
  busfactor jobs export --output-file busfactor-data`,
}

// jobsStatusCmd shows job store status.
var jobsStatusCmd = &cobra.Command{
	Use:     "status",
	Short:   "Display job store statistics and connection details",
	PreRunE: serviceSetup,
	Run: func(_ *cobra.Command, _ []string) {
		store := openJobStore()
		defer func() { _ = store.Close() }()

		status, err := store.GetStatus()
		if err != nil {
			contract.LogFatal("Failed to get job store status", err)
		}
		outwriter.NewOutWriter().WriteStoreStatus(os.Stdout, status)
	},
}

// jobsListCmd lists stored jobs.
var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the most recent analysis jobs",
	Long: `List stored jobs, newest first, limited by --limit.

Examples:
  busfactor jobs list --limit 10
  busfactor jobs list --output csv --output-file jobs.csv`,
	PreRunE: serviceSetup,
	Run: func(_ *cobra.Command, _ []string) {
		store := openJobStore()
		defer func() { _ = store.Close() }()

		records, err := store.ListJobs(cfg.ResultLimit)
		if err != nil {
			contract.LogFatal("Failed to list jobs", err)
		}
		if err := outwriter.NewOutWriter().WriteJobs(records, cfg); err != nil {
			contract.LogFatal("Failed to write jobs", err)
		}
	},
}

// jobsExportCmd exports job data to Parquet files.
var jobsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export job history to Parquet for BI tools and analytics",
	Long: `Export stored jobs to two Parquet files:
- <output-file>.jobs.parquet - one row per job
- <output-file>.contributors.parquet - one row per contributor of each completed job

Requires: --output-file parameter

Examples:
  busfactor jobs export --output-file busfactor-data
  duckdb -c "SELECT username, bus_factor_risk FROM 'busfactor-data.contributors.parquet'"`,
	PreRunE: serviceSetup,
	Run: func(_ *cobra.Command, _ []string) {
		store := openJobStore()
		defer func() { _ = store.Close() }()

		if err := jobstore.ExportJobs(store, cfg.OutputFile, os.Stdout); err != nil {
			contract.LogFatal("Failed to export jobs", err)
		}
	},
}

// jobsMigrateCmd runs database migrations for the job store.
var jobsMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database schema migrations (upgrades/downgrades)",
	Long: `Manage database schema versions for the job store.

By default, migrates to the latest version. Use --target-version for specific versions.

Examples:
  # Migrate to latest version (default)
  busfactor jobs migrate

  # Rollback to initial state
  busfactor jobs migrate --target-version 0`,
	PreRunE: serviceSetup,
	Run: func(_ *cobra.Command, _ []string) {
		targetVersion := viper.GetInt("target-version")
		if err := jobstore.Migrate(cfg.JobBackend, cfg.JobDBConnect, targetVersion, os.Stdout); err != nil {
			contract.LogFatal("Failed to run migrations", err)
		}
	},
}

// jobsClearCmd removes finished jobs.
var jobsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all finished jobs from the store",
	Long: `Delete every completed or failed job from the job store.
Queued and processing jobs are kept.

WARNING: This action cannot be undone. Consider exporting data first.`,
	PreRunE: serviceSetup,
	Run: func(_ *cobra.Command, _ []string) {
		store := openJobStore()
		defer func() { _ = store.Close() }()

		n, err := store.DeleteJobsBefore(time.Now())
		if err != nil {
			contract.LogFatal("Failed to clear jobs", err)
		}
		fmt.Printf("Removed %d finished jobs.\n", n)
	},
}
