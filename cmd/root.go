package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/huangsam/busfactor/internal/contract"
	"github.com/huangsam/busfactor/internal/logger"
	"github.com/huangsam/busfactor/schema"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// All linker flags will be set by goreleaser infra at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCtx is the root context for all operations.
var rootCtx = context.Background()

// cfg will hold the validated, final configuration.
var cfg = &contract.Config{}

// input holds the raw, unvalidated configuration from all sources (file, env, flags).
// Viper will unmarshal into this struct.
var input = &contract.ConfigRawInput{}

// gitClient is shared by config resolution and the pipeline.
var gitClient contract.GitClient = contract.NewLocalGitClient()

// rootCmd is the command-line entrypoint for all other commands.
var rootCmd = &cobra.Command{
	Use:                "busfactor",
	Short:              "Measure how much of a repository lives in too few heads.",
	Long:               `Busfactor mines Git history to show who owns what, how many people the codebase can afford to lose, and what to do about it.`,
	Version:            version,
	SilenceErrors:      true,
	SilenceUsage:       true,
	DisableSuggestions: true,
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	// .env values become plain environment variables before viper looks them up
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		contract.LogWarn("Cannot load .env file", err)
	}

	setConfigPaths()

	// Set environment variable prefix
	viper.SetEnvPrefix("BUSFACTOR")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // Read in environment variables that match

	// Set defaults in Viper
	viper.SetDefault("limit", contract.DefaultResultLimit)
	viper.SetDefault("workers", contract.DefaultWorkers)
	viper.SetDefault("precision", contract.DefaultPrecision)
	viper.SetDefault("output", schema.TextOut)
	viper.SetDefault("color", "yes")
	viper.SetDefault("job-backend", schema.SQLiteBackend)
	viper.SetDefault("job-db-connect", "")
	viper.SetDefault("queue-size", contract.DefaultQueueSize)
	viper.SetDefault("listen", contract.DefaultListenAddr)
	viper.SetDefault("rate-limit", contract.DefaultRateLimit)
	viper.SetDefault("log-level", contract.DefaultLogLevel)
	viper.SetDefault("log-format", "console")
	viper.SetDefault("narrative-model", contract.DefaultModel)
	viper.SetDefault("narrative-api-key", "") // env or config file only
}

// setConfigPaths points viper at an explicit file or the default search paths.
func setConfigPaths() {
	if configFile := viper.GetString("config"); configFile != "" {
		viper.SetConfigFile(configFile)
		return
	}
	viper.SetConfigName(".busfactor") // Name of config file (without extension)
	viper.SetConfigType("yaml")       // We'll use YAML format
	viper.AddConfigPath(".")          // Look in the current directory
	viper.AddConfigPath("$HOME")      // Look in the home directory
}

// loadConfigFile reads the config file when one exists.
func loadConfigFile() error {
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			// Config file was found but another error was produced
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found, which is fine; we'll use defaults/env/flags.
	}
	return nil
}

// sharedSetup unmarshals config and runs validation. repoPath may be empty
// for commands that take repositories per request.
func sharedSetup(ctx context.Context, repoPath string) error {
	// 1. Read config file. This merges defaults, file, env, and flags.
	if err := loadConfigFile(); err != nil {
		return err
	}

	// 2. Unmarshal all resolved values from Viper into our raw input struct.
	if err := viper.Unmarshal(input); err != nil {
		return fmt.Errorf("unable to unmarshal config: %w", err)
	}
	input.RepoPathStr = repoPath

	// 3. Run all validation and complex parsing.
	if err := contract.ProcessAndValidate(ctx, cfg, gitClient, input); err != nil {
		return err
	}

	logger.Init(cfg.LogLevel, cfg.LogFormat)
	logger.Debug().
		Str("backend", string(cfg.JobBackend)).
		Int("workers", cfg.Workers).
		Str("repo", cfg.RepoLocation).
		Msg("configuration loaded")
	return nil
}

// repoArgSetup is the PreRunE of commands analyzing a single repository.
func repoArgSetup(_ *cobra.Command, args []string) error {
	repoPath := "."
	if len(args) == 1 {
		repoPath = args[0]
	}
	return sharedSetup(rootCtx, repoPath)
}

// serviceSetup is the PreRunE of long-running commands.
func serviceSetup(_ *cobra.Command, _ []string) error {
	return sharedSetup(rootCtx, "")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
