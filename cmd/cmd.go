// Package cmd defines the command-line interface for busfactor.
package cmd

import (
	"github.com/huangsam/busfactor/internal/contract"
	"github.com/huangsam/busfactor/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	// Call initConfig on Cobra's initialization
	cobra.OnInitialize(initConfig)

	// Add primary subcommands to the root command
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(versionCmd)

	// Add the jobs subcommands to the parent jobs command
	jobsCmd.AddCommand(jobsStatusCmd)
	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsExportCmd)
	jobsCmd.AddCommand(jobsMigrateCmd)
	jobsCmd.AddCommand(jobsClearCmd)

	// Bind all persistent flags of rootCmd to Viper
	rootCmd.PersistentFlags().String("config", "", "Path to config file")
	rootCmd.PersistentFlags().String("exclude", "", "Comma-separated list of path prefixes or patterns to ignore")
	rootCmd.PersistentFlags().Bool("exclude-bots", false, "Drop commits from automation accounts (dependabot, renovate, ...)")
	rootCmd.PersistentFlags().StringP("filter", "f", "", "Only analyze paths under this prefix")
	rootCmd.PersistentFlags().Int("max-commits", 0, "Analyze at most this many recent commits (0 = all)")
	rootCmd.PersistentFlags().String("since", "", "Only analyze commits after this ISO8601 date or time ago")
	rootCmd.PersistentFlags().Int("workers", contract.DefaultWorkers, "Number of concurrent analysis jobs")
	rootCmd.PersistentFlags().String("log-level", contract.DefaultLogLevel, "Log level: debug or info or warn or error")
	rootCmd.PersistentFlags().String("log-format", "console", "Log format: console or json")
	rootCmd.PersistentFlags().String("job-backend", string(schema.SQLiteBackend), "Job store backend: sqlite or mysql or postgresql or none")
	rootCmd.PersistentFlags().String("job-db-connect", "", "Database connection string for mysql/postgresql (e.g., user:pass@tcp(host:port)/dbname)")
	rootCmd.PersistentFlags().String("narrative-base-url", "", "Base URL of an OpenAI-compatible narrative service")
	rootCmd.PersistentFlags().String("narrative-model", contract.DefaultModel, "Model used for narrative summaries")
	rootCmd.PersistentFlags().String("narrative-timeout", "", "Timeout for each narrative call (e.g., 10s)")
	rootCmd.PersistentFlags().String("output", string(schema.TextOut), "Output format: text or json or yaml or csv or parquet")
	rootCmd.PersistentFlags().String("output-file", "", "Optional path to write output to")
	rootCmd.PersistentFlags().IntP("limit", "l", contract.DefaultResultLimit, "Number of results to display")
	rootCmd.PersistentFlags().Int("precision", contract.DefaultPrecision, "Decimal precision for numeric columns")
	rootCmd.PersistentFlags().Int("width", 0, "Terminal width override (0 = auto-detect)")
	rootCmd.PersistentFlags().String("color", "yes", "Enable colored labels in output (yes/no/true/false/1/0)")
	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		contract.LogFatal("Error binding root flags", err)
	}

	// Bind all flags of serveCmd to Viper
	serveCmd.Flags().String("listen", contract.DefaultListenAddr, "Address the HTTP API listens on")
	serveCmd.Flags().Int("queue-size", contract.DefaultQueueSize, "Maximum number of queued analyses")
	serveCmd.Flags().Float64("rate-limit", contract.DefaultRateLimit, "Submissions per second per client IP (0 disables)")
	serveCmd.Flags().String("job-retention", "7 days", "How long finished jobs are kept")
	if err := viper.BindPFlags(serveCmd.Flags()); err != nil {
		contract.LogFatal("Error binding serve flags", err)
	}

	// Bind all flags of jobsMigrateCmd to Viper
	jobsMigrateCmd.Flags().Int("target-version", -1, "Target migration version (-1 means latest, 0 means rollback to initial state)")
	if err := viper.BindPFlags(jobsMigrateCmd.Flags()); err != nil {
		contract.LogFatal("Error binding jobs migrate flags", err)
	}
}
