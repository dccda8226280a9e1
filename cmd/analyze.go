package cmd

import (
	"time"

	"github.com/huangsam/busfactor/core"
	"github.com/huangsam/busfactor/internal/contract"
	"github.com/huangsam/busfactor/internal/logger"
	"github.com/huangsam/busfactor/internal/narrative"
	"github.com/huangsam/busfactor/internal/outwriter"
	"github.com/huangsam/busfactor/schema"
	"github.com/spf13/cobra"
)

// analyzeCmd runs the whole pipeline once and prints the result.
var analyzeCmd = &cobra.Command{
	Use:   "analyze [repo-path-or-url]",
	Short: "Analyze a repository's knowledge distribution and bus factor.",
	Long: `Mine the Git history of a repository and report how knowledge is spread.

Runs every stage in the foreground:
- Extracts commits and per-file line changes
- Attributes each file's surviving lines to contributors, following renames
- Profiles contributors and classifies their expertise
- Computes the bus factor, per-file risk and hot spots
- Ranks mitigation actions

Remote URLs are cloned into a temporary directory that is removed afterwards.

Examples:
  # Analyze the current repository
  busfactor analyze

  # Only the last 6 months, ignoring bots
  busfactor analyze --since "6 months ago" --exclude-bots

  # Analyze a subdirectory and export contributors to CSV
  busfactor analyze ./services/billing --output csv --output-file billing.csv

  # Analyze a remote repository as JSON
  busfactor analyze https://github.com/huangsam/busfactor.git --output json`,
	Args:    cobra.MaximumNArgs(1),
	PreRunE: repoArgSetup,
	Run: func(_ *cobra.Command, _ []string) {
		start := time.Now()
		if cfg.IsRemote() {
			logger.Info().Str("repo", cfg.RepoLocation).Msg("cloning remote repository")
		}
		pipeline := core.NewPipeline(cfg, gitClient, narrative.New(cfg.Narrative))
		result, err := pipeline.Run(rootCtx, cfg.RepoLocation, func(step schema.Step, finished bool) {
			if !finished {
				logger.Info().Str("step", string(step)).Msg("stage started")
			}
		})
		if err != nil {
			contract.LogFatal("Cannot run analysis", err)
		}
		if err := outwriter.NewOutWriter().WriteAnalysis(result, cfg, time.Since(start)); err != nil {
			contract.LogFatal("Cannot write analysis", err)
		}
	},
}
