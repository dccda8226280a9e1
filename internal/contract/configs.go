package contract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/huangsam/busfactor/schema"
)

// Default values for configuration.
const (
	DefaultResultLimit  = 25
	MaxResultLimit      = 1000
	DefaultPrecision    = 1
	DefaultQueueSize    = 64
	DefaultListenAddr   = ":8080"
	DefaultRateLimit    = 1.0 // submissions per second
	DefaultJobRetention = 7 * 24 * time.Hour
	DefaultLogLevel     = "info"
	DefaultModel        = "gpt-4o-mini"
	DefaultNarrativeTTL = 10 * time.Second
)

// DefaultWorkers is the default number of concurrent analysis jobs.
var DefaultWorkers = min(2, runtime.GOMAXPROCS(0))

// DateTimeFormat is the default date time representation.
var DateTimeFormat = time.RFC3339

// DefaultBotPatterns match automation accounts that should not count as people.
var DefaultBotPatterns = []string{`\[bot\]$`, `^dependabot`, `^renovate`, `^github-actions`}

// Policy holds the tunable thresholds of the risk model.
type Policy struct {
	CommitWeight      float64 // Weight of commit volume in the expertise score
	BreadthWeight     float64 // Weight of file breadth in the expertise score
	CommitSaturation  int     // Commits at which the commit component maxes out
	IntermediateScore float64 // Lower bound of the intermediate band
	AdvancedScore     float64 // Lower bound of the advanced band
	ExpertScore       float64 // Lower bound of the expert band

	CoverageFraction  float64       // Share of files that must lose their majority owner
	MinorityThreshold float64       // Share above which a co-owner softens high risk
	HotSpotLimit      int           // Number of hot spots reported
	ActiveWindow      time.Duration // Window before the newest commit counted as active

	KnowledgeDepth    int // Directory components used to group knowledge areas
	KnowledgeTopFiles int // Top owned files considered for knowledge areas
	MaxKnowledgeAreas int
	MaxLanguages      int
}

// DefaultPolicy returns the policy used when nothing is configured.
func DefaultPolicy() Policy {
	return Policy{
		CommitWeight:      0.6,
		BreadthWeight:     0.4,
		CommitSaturation:  100,
		IntermediateScore: 0.25,
		AdvancedScore:     0.50,
		ExpertScore:       0.75,
		CoverageFraction:  0.5,
		MinorityThreshold: 0.20,
		HotSpotLimit:      10,
		ActiveWindow:      90 * 24 * time.Hour,
		KnowledgeDepth:    1,
		KnowledgeTopFiles: 10,
		MaxKnowledgeAreas: 5,
		MaxLanguages:      5,
	}
}

// NarrativeConfig holds the settings of the external narrative service.
type NarrativeConfig struct {
	APIKey  string // Please use env var as this is plaintext
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Config holds the runtime configuration for the analysis.
// This struct remains the "final, validated" config.
type Config struct {
	RepoLocation string // Local git root or remote URL
	PathFilter   string
	Excludes     []string
	ExcludeBots  bool
	BotPatterns  []*regexp.Regexp
	MaxCommits   int
	Since        time.Time

	ResultLimit int
	Precision   int
	Output      schema.OutputMode
	OutputFile  string
	Width       int // Terminal width override (0 = auto-detect)
	UseColors   bool

	Workers      int
	QueueSize    int
	Listen       string
	RateLimit    float64
	JobRetention time.Duration

	JobBackend   schema.DatabaseBackend
	JobDBConnect string // Please use env var as this is plaintext

	LogLevel  string
	LogFormat string

	Narrative NarrativeConfig
	Policy    Policy
}

// PolicyRawInput holds optional policy overrides from the YAML config file.
type PolicyRawInput struct {
	CommitWeight      *float64 `mapstructure:"commit_weight"`
	BreadthWeight     *float64 `mapstructure:"breadth_weight"`
	CommitSaturation  *int     `mapstructure:"commit_saturation"`
	IntermediateScore *float64 `mapstructure:"intermediate_score"`
	AdvancedScore     *float64 `mapstructure:"advanced_score"`
	ExpertScore       *float64 `mapstructure:"expert_score"`
	CoverageFraction  *float64 `mapstructure:"coverage_fraction"`
	MinorityThreshold *float64 `mapstructure:"minority_threshold"`
	HotSpotLimit      *int     `mapstructure:"hot_spot_limit"`
	ActiveWindow      *string  `mapstructure:"active_window"`
	KnowledgeDepth    *int     `mapstructure:"knowledge_depth"`
	KnowledgeTopFiles *int     `mapstructure:"knowledge_top_files"`
}

// ConfigRawInput holds the raw inputs from all sources (flags, env, config file).
// Viper unmarshals into this struct.
type ConfigRawInput struct {
	// This is set manually from positional args, so no tag
	RepoPathStr string

	// --- Fields from rootCmd.PersistentFlags() ---
	Filter      string `mapstructure:"filter"`
	Exclude     string `mapstructure:"exclude"`
	ExcludeBots bool   `mapstructure:"exclude-bots"`
	MaxCommits  int    `mapstructure:"max-commits"`
	Since       string `mapstructure:"since"`
	Workers     int    `mapstructure:"workers"`
	LogLevel    string `mapstructure:"log-level"`
	LogFormat   string `mapstructure:"log-format"`

	JobBackend   string `mapstructure:"job-backend"`
	JobDBConnect string `mapstructure:"job-db-connect"`

	NarrativeAPIKey  string `mapstructure:"narrative-api-key"`
	NarrativeBaseURL string `mapstructure:"narrative-base-url"`
	NarrativeModel   string `mapstructure:"narrative-model"`
	NarrativeTimeout string `mapstructure:"narrative-timeout"`

	// --- Fields from analyzeCmd.Flags() ---
	Limit      int    `mapstructure:"limit"`
	Precision  int    `mapstructure:"precision"`
	Output     string `mapstructure:"output"`
	OutputFile string `mapstructure:"output-file"`
	Width      int    `mapstructure:"width"`
	Color      string `mapstructure:"color"`

	// --- Fields from serveCmd.Flags() ---
	Listen       string  `mapstructure:"listen"`
	QueueSize    int     `mapstructure:"queue-size"`
	RateLimit    float64 `mapstructure:"rate-limit"`
	JobRetention string  `mapstructure:"job-retention"`

	// --- Policy overrides from config file ---
	Policy PolicyRawInput `mapstructure:"policy"`
}

// Clone returns a deep copy of the Config struct.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Excludes = slices.Clone(c.Excludes)
	clone.BotPatterns = slices.Clone(c.BotPatterns)
	return &clone
}

// IsRemote reports whether the configured location must be cloned first.
func (c *Config) IsRemote() bool {
	return IsRemoteLocation(c.RepoLocation)
}

// IsRemoteLocation reports whether location is a URL rather than a local path.
func IsRemoteLocation(location string) bool {
	for _, prefix := range []string{"https://", "http://", "ssh://", "git://", "file://", "git@"} {
		if strings.HasPrefix(location, prefix) {
			return true
		}
	}
	return false
}

// IsBot reports whether the author name or email matches a bot pattern.
func (c *Config) IsBot(author schema.Author) bool {
	for _, re := range c.BotPatterns {
		if re.MatchString(author.Name) || re.MatchString(author.Email) {
			return true
		}
	}
	return false
}

// ProcessAndValidate performs all complex parsing and validation on the raw inputs
// and updates the final Config struct.
func ProcessAndValidate(ctx context.Context, cfg *Config, client GitClient, input *ConfigRawInput) error {
	if err := validateSimpleInputs(cfg, input); err != nil {
		return err
	}
	if err := processHistoryBounds(cfg, input); err != nil {
		return err
	}
	if err := processNarrative(cfg, input); err != nil {
		return err
	}
	if err := processPolicy(cfg, input); err != nil {
		return err
	}
	if input.RepoPathStr == "" {
		return nil
	}
	return resolveRepoAndFilter(ctx, cfg, client, input)
}

// ValidateDatabaseConnectionString validates the format of database connection strings
// for MySQL and PostgreSQL backends.
func ValidateDatabaseConnectionString(backend schema.DatabaseBackend, connStr string) error {
	switch backend {
	case schema.SQLiteBackend, schema.NoneBackend:
		return nil
	case schema.MySQLBackend:
		if connStr == "" {
			return fmt.Errorf("job-db-connect is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "@tcp(") {
			return fmt.Errorf("MySQL connection string must contain '@tcp(' for host:port specification")
		}
		if !strings.Contains(connStr, "/") {
			return fmt.Errorf("MySQL connection string must contain '/' followed by database name")
		}
	case schema.PostgreSQLBackend:
		if connStr == "" {
			return fmt.Errorf("job-db-connect is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "host=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'host=' parameter")
		}
		if !strings.Contains(connStr, "dbname=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'dbname=' parameter")
		}
	}
	return nil
}

// validateSimpleInputs processes and validates all non-path related fields.
func validateSimpleInputs(cfg *Config, input *ConfigRawInput) error {
	cfg.PathFilter = input.Filter
	cfg.OutputFile = input.OutputFile
	cfg.Width = input.Width
	cfg.Listen = input.Listen
	cfg.LogFormat = strings.ToLower(input.LogFormat)
	if cfg.Listen == "" {
		cfg.Listen = DefaultListenAddr
	}

	colors, err := ParseBoolString(input.Color)
	if err != nil {
		return fmt.Errorf("invalid --color value: %w", err)
	}
	cfg.UseColors = colors

	if input.Limit <= 0 || input.Limit > MaxResultLimit {
		return fmt.Errorf("limit must be greater than 0 and cannot exceed %d (received %d)", MaxResultLimit, input.Limit)
	}
	cfg.ResultLimit = input.Limit

	if input.Workers <= 0 {
		return fmt.Errorf("workers must be greater than 0 (received %d)", input.Workers)
	}
	cfg.Workers = input.Workers

	if input.QueueSize <= 0 {
		return fmt.Errorf("queue-size must be greater than 0 (received %d)", input.QueueSize)
	}
	cfg.QueueSize = input.QueueSize

	if input.RateLimit < 0 {
		return fmt.Errorf("rate-limit cannot be negative (received %.2f)", input.RateLimit)
	}
	cfg.RateLimit = input.RateLimit

	if input.Precision < 1 || input.Precision > 2 {
		return fmt.Errorf("precision must be 1 or 2 (received %d)", input.Precision)
	}
	cfg.Precision = input.Precision

	cfg.Output = schema.OutputMode(strings.ToLower(input.Output))
	if _, ok := schema.ValidOutputModes[cfg.Output]; !ok {
		return fmt.Errorf("invalid output format '%s'. must be text, json, yaml, csv, parquet", cfg.Output)
	}

	switch lvl := strings.ToLower(input.LogLevel); lvl {
	case "":
		cfg.LogLevel = DefaultLogLevel
	case "debug", "info", "warn", "error":
		cfg.LogLevel = lvl
	default:
		return fmt.Errorf("invalid log level '%s'. must be debug, info, warn, error", input.LogLevel)
	}

	cfg.JobBackend = schema.DatabaseBackend(strings.ToLower(input.JobBackend))
	if _, ok := schema.ValidDatabaseBackends[cfg.JobBackend]; !ok {
		return fmt.Errorf("invalid job backend '%s'. must be sqlite, mysql, postgresql, none", input.JobBackend)
	}
	cfg.JobDBConnect = input.JobDBConnect
	if err := ValidateDatabaseConnectionString(cfg.JobBackend, cfg.JobDBConnect); err != nil {
		return err
	}

	retention := DefaultJobRetention
	if input.JobRetention != "" {
		if retention, err = ParseLookbackDuration(input.JobRetention); err != nil {
			return fmt.Errorf("invalid job-retention: %w", err)
		}
	}
	cfg.JobRetention = retention

	defaults := []string{
		"Cargo.lock", "go.sum", "package-lock.json", "yarn.lock", "pnpm-lock.yaml", "composer.lock", "uv.lock",
		".min.js", ".min.css",
		"dist/", "build/", "out/", "target/", "bin/",
	}
	cfg.Excludes = defaults
	if input.Exclude != "" {
		for p := range strings.SplitSeq(input.Exclude, ",") {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				cfg.Excludes = append(cfg.Excludes, trimmed)
			}
		}
	}

	cfg.ExcludeBots = input.ExcludeBots
	cfg.BotPatterns = nil
	for _, p := range DefaultBotPatterns {
		cfg.BotPatterns = append(cfg.BotPatterns, regexp.MustCompile(p))
	}

	return nil
}

// processHistoryBounds validates the commit ceiling and the time window.
func processHistoryBounds(cfg *Config, input *ConfigRawInput) error {
	if input.MaxCommits < 0 {
		return fmt.Errorf("max-commits cannot be negative (received %d)", input.MaxCommits)
	}
	cfg.MaxCommits = input.MaxCommits

	cfg.Since = time.Time{}
	if input.Since == "" {
		return nil
	}
	now := time.Now()
	if t, err := time.Parse(DateTimeFormat, input.Since); err == nil {
		cfg.Since = t
	} else if d, lbErr := ParseLookbackDuration(strings.TrimSuffix(strings.TrimSpace(input.Since), " ago")); lbErr == nil {
		cfg.Since = now.Add(-d)
	} else {
		return fmt.Errorf("invalid since value '%s'. Expected absolute ISO8601 or 'N [units] ago': %v", input.Since, err)
	}
	if cfg.Since.After(now) {
		return fmt.Errorf("since (%s) cannot be in the future", cfg.Since.Format(DateTimeFormat))
	}
	return nil
}

// processNarrative reads the narrative service settings.
func processNarrative(cfg *Config, input *ConfigRawInput) error {
	cfg.Narrative = NarrativeConfig{
		APIKey:  input.NarrativeAPIKey,
		BaseURL: input.NarrativeBaseURL,
		Model:   input.NarrativeModel,
		Timeout: DefaultNarrativeTTL,
	}
	if cfg.Narrative.Model == "" {
		cfg.Narrative.Model = DefaultModel
	}
	if input.NarrativeTimeout != "" {
		d, err := time.ParseDuration(input.NarrativeTimeout)
		if err != nil || d <= 0 {
			return fmt.Errorf("invalid narrative-timeout '%s': must be a positive duration", input.NarrativeTimeout)
		}
		cfg.Narrative.Timeout = d
	}
	return nil
}

// processPolicy merges the configured overrides onto DefaultPolicy and validates the result.
func processPolicy(cfg *Config, input *ConfigRawInput) error {
	p := DefaultPolicy()
	raw := input.Policy

	setFloat := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}
	setInt := func(dst *int, src *int) {
		if src != nil {
			*dst = *src
		}
	}
	setFloat(&p.CommitWeight, raw.CommitWeight)
	setFloat(&p.BreadthWeight, raw.BreadthWeight)
	setInt(&p.CommitSaturation, raw.CommitSaturation)
	setFloat(&p.IntermediateScore, raw.IntermediateScore)
	setFloat(&p.AdvancedScore, raw.AdvancedScore)
	setFloat(&p.ExpertScore, raw.ExpertScore)
	setFloat(&p.CoverageFraction, raw.CoverageFraction)
	setFloat(&p.MinorityThreshold, raw.MinorityThreshold)
	setInt(&p.HotSpotLimit, raw.HotSpotLimit)
	setInt(&p.KnowledgeDepth, raw.KnowledgeDepth)
	setInt(&p.KnowledgeTopFiles, raw.KnowledgeTopFiles)
	if raw.ActiveWindow != nil {
		d, err := ParseLookbackDuration(*raw.ActiveWindow)
		if err != nil {
			return fmt.Errorf("invalid policy.active_window: %w", err)
		}
		p.ActiveWindow = d
	}

	if err := ValidatePolicy(p); err != nil {
		return err
	}
	cfg.Policy = p
	return nil
}

// ValidatePolicy checks that the thresholds are ordered and in range.
func ValidatePolicy(p Policy) error {
	if sum := p.CommitWeight + p.BreadthWeight; sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("policy commit_weight and breadth_weight must sum to 1.0, got %.3f", sum)
	}
	if p.CommitWeight < 0 || p.BreadthWeight < 0 {
		return fmt.Errorf("policy weights cannot be negative")
	}
	if p.CommitSaturation <= 0 {
		return fmt.Errorf("policy commit_saturation must be greater than 0 (received %d)", p.CommitSaturation)
	}
	if !(0 < p.IntermediateScore && p.IntermediateScore < p.AdvancedScore && p.AdvancedScore < p.ExpertScore && p.ExpertScore <= 1) {
		return fmt.Errorf("policy bands must satisfy 0 < intermediate < advanced < expert <= 1")
	}
	if p.CoverageFraction <= 0 || p.CoverageFraction >= 1 {
		return fmt.Errorf("policy coverage_fraction must be between 0 and 1 exclusive (received %.2f)", p.CoverageFraction)
	}
	if p.MinorityThreshold < 0 || p.MinorityThreshold >= 0.5 {
		return fmt.Errorf("policy minority_threshold must be in [0, 0.5) (received %.2f)", p.MinorityThreshold)
	}
	if p.HotSpotLimit <= 0 {
		return fmt.Errorf("policy hot_spot_limit must be greater than 0 (received %d)", p.HotSpotLimit)
	}
	if p.KnowledgeDepth <= 0 || p.KnowledgeTopFiles <= 0 {
		return fmt.Errorf("policy knowledge_depth and knowledge_top_files must be greater than 0")
	}
	return nil
}

// resolveRepoAndFilter resolves a local path to its Git root and sets the implicit path filter.
// Remote locations are kept verbatim; the extractor clones them per job.
func resolveRepoAndFilter(ctx context.Context, cfg *Config, client GitClient, input *ConfigRawInput) error {
	if IsRemoteLocation(input.RepoPathStr) {
		cfg.RepoLocation = input.RepoPathStr
		return nil
	}

	absSearchPath, err := filepath.Abs(input.RepoPathStr)
	if err != nil {
		return err
	}
	absSearchPath = filepath.Clean(absSearchPath)

	info, statErr := os.Stat(absSearchPath)
	gitContextPath := absSearchPath
	if statErr == nil && !info.IsDir() {
		gitContextPath = filepath.Dir(absSearchPath)
	}

	gitRoot, err := client.GetRepoRoot(ctx, gitContextPath)
	if err != nil {
		return err
	}
	cfg.RepoLocation = gitRoot

	if cfg.PathFilter != "" { // User-provided --filter flag takes precedence
		return nil
	}
	if absSearchPath != gitRoot {
		relativePath, err := filepath.Rel(gitRoot, absSearchPath)
		if err != nil {
			return err
		}
		if relativePath != "." {
			filter := relativePath
			if statErr == nil && info.IsDir() {
				filter += "/"
			}
			cfg.PathFilter = strings.ReplaceAll(filter, string(os.PathSeparator), "/")
		}
	}
	return nil
}
