package contract

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/huangsam/busfactor/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validInput returns raw input that passes validation with nothing configured.
func validInput() *ConfigRawInput {
	return &ConfigRawInput{
		Limit:      DefaultResultLimit,
		Workers:    2,
		QueueSize:  DefaultQueueSize,
		Precision:  1,
		Output:     "text",
		Color:      "yes",
		JobBackend: "none",
	}
}

func TestProcessAndValidate(t *testing.T) {
	workDir, err := filepath.Abs(".")
	require.NoError(t, err)

	tests := []struct {
		name        string
		mutate      func(*ConfigRawInput)
		expectError bool
		setupMock   func(*MockGitClient)
	}{
		{
			name:   "valid minimal config without repo",
			mutate: func(*ConfigRawInput) {},
		},
		{
			name: "valid local repo",
			mutate: func(in *ConfigRawInput) {
				in.RepoPathStr = "."
			},
			setupMock: func(m *MockGitClient) {
				m.On("GetRepoRoot", context.Background(), workDir).Return("/mock/repo/root", nil)
			},
		},
		{
			name: "remote repo skips git root lookup",
			mutate: func(in *ConfigRawInput) {
				in.RepoPathStr = "https://github.com/huangsam/busfactor.git"
			},
		},
		{
			name: "git root failure",
			mutate: func(in *ConfigRawInput) {
				in.RepoPathStr = "."
			},
			expectError: true,
			setupMock: func(m *MockGitClient) {
				m.On("GetRepoRoot", context.Background(), workDir).Return("", errors.New("not a repo"))
			},
		},
		{
			name:        "invalid limit",
			mutate:      func(in *ConfigRawInput) { in.Limit = 0 },
			expectError: true,
		},
		{
			name:        "invalid workers",
			mutate:      func(in *ConfigRawInput) { in.Workers = -1 },
			expectError: true,
		},
		{
			name:        "invalid output",
			mutate:      func(in *ConfigRawInput) { in.Output = "xml" },
			expectError: true,
		},
		{
			name:        "invalid color",
			mutate:      func(in *ConfigRawInput) { in.Color = "maybe" },
			expectError: true,
		},
		{
			name:        "invalid log level",
			mutate:      func(in *ConfigRawInput) { in.LogLevel = "chatty" },
			expectError: true,
		},
		{
			name:        "invalid backend",
			mutate:      func(in *ConfigRawInput) { in.JobBackend = "mongo" },
			expectError: true,
		},
		{
			name:        "negative max commits",
			mutate:      func(in *ConfigRawInput) { in.MaxCommits = -5 },
			expectError: true,
		},
		{
			name:        "invalid since",
			mutate:      func(in *ConfigRawInput) { in.Since = "last tuesday" },
			expectError: true,
		},
		{
			name:        "invalid narrative timeout",
			mutate:      func(in *ConfigRawInput) { in.NarrativeTimeout = "soon" },
			expectError: true,
		},
		{
			name: "policy weights must sum to one",
			mutate: func(in *ConfigRawInput) {
				w := 0.9
				in.Policy.CommitWeight = &w
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockClient := &MockGitClient{}
			if tt.setupMock != nil {
				tt.setupMock(mockClient)
			}
			input := validInput()
			tt.mutate(input)

			cfg := &Config{}
			err := ProcessAndValidate(context.Background(), cfg, mockClient, input)
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			mockClient.AssertExpectations(t)
		})
	}
}

func TestProcessAndValidateDefaults(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, ProcessAndValidate(context.Background(), cfg, &MockGitClient{}, validInput()))

	assert.Equal(t, DefaultPolicy(), cfg.Policy)
	assert.Equal(t, DefaultListenAddr, cfg.Listen)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, DefaultJobRetention, cfg.JobRetention)
	assert.Equal(t, DefaultModel, cfg.Narrative.Model)
	assert.Equal(t, DefaultNarrativeTTL, cfg.Narrative.Timeout)
	assert.Equal(t, schema.NoneBackend, cfg.JobBackend)
	assert.True(t, cfg.UseColors)
	assert.True(t, cfg.Since.IsZero())
	assert.Len(t, cfg.BotPatterns, len(DefaultBotPatterns))
	assert.Contains(t, cfg.Excludes, "go.sum")
}

func TestProcessAndValidateOverrides(t *testing.T) {
	input := validInput()
	input.Exclude = "vendor/, *.pb.go ,"
	input.Since = "30 days ago"
	input.MaxCommits = 500
	input.JobRetention = "2 weeks"
	coverage, limit, window := 0.75, 5, "30 days"
	input.Policy.CoverageFraction = &coverage
	input.Policy.HotSpotLimit = &limit
	input.Policy.ActiveWindow = &window

	cfg := &Config{}
	require.NoError(t, ProcessAndValidate(context.Background(), cfg, &MockGitClient{}, input))

	assert.Contains(t, cfg.Excludes, "vendor/")
	assert.Contains(t, cfg.Excludes, "*.pb.go")
	assert.Equal(t, 500, cfg.MaxCommits)
	assert.WithinDuration(t, time.Now().Add(-30*24*time.Hour), cfg.Since, time.Minute)
	assert.Equal(t, 14*24*time.Hour, cfg.JobRetention)
	assert.Equal(t, 0.75, cfg.Policy.CoverageFraction)
	assert.Equal(t, 5, cfg.Policy.HotSpotLimit)
	assert.Equal(t, 30*24*time.Hour, cfg.Policy.ActiveWindow)
}

func TestResolveRepoAndFilterSubdirectory(t *testing.T) {
	workDir, err := filepath.Abs(".")
	require.NoError(t, err)
	root := filepath.Dir(filepath.Dir(workDir))

	mockClient := &MockGitClient{}
	mockClient.On("GetRepoRoot", context.Background(), workDir).Return(root, nil)

	input := validInput()
	input.RepoPathStr = "."
	cfg := &Config{}
	require.NoError(t, ProcessAndValidate(context.Background(), cfg, mockClient, input))

	assert.Equal(t, root, cfg.RepoLocation)
	assert.Equal(t, "internal/contract/", cfg.PathFilter)
	assert.False(t, cfg.IsRemote())
}

func TestValidateDatabaseConnectionString(t *testing.T) {
	assert.NoError(t, ValidateDatabaseConnectionString(schema.SQLiteBackend, ""))
	assert.NoError(t, ValidateDatabaseConnectionString(schema.NoneBackend, ""))
	assert.NoError(t, ValidateDatabaseConnectionString(schema.MySQLBackend, "root:pw@tcp(localhost:3306)/busfactor"))
	assert.NoError(t, ValidateDatabaseConnectionString(schema.PostgreSQLBackend, "host=localhost dbname=busfactor"))

	assert.Error(t, ValidateDatabaseConnectionString(schema.MySQLBackend, ""))
	assert.Error(t, ValidateDatabaseConnectionString(schema.MySQLBackend, "root:pw@localhost"))
	assert.Error(t, ValidateDatabaseConnectionString(schema.PostgreSQLBackend, "dbname=busfactor"))
	assert.Error(t, ValidateDatabaseConnectionString(schema.PostgreSQLBackend, "host=localhost"))
}

func TestValidatePolicy(t *testing.T) {
	assert.NoError(t, ValidatePolicy(DefaultPolicy()))

	p := DefaultPolicy()
	p.AdvancedScore = 0.9
	assert.Error(t, ValidatePolicy(p), "bands out of order")

	p = DefaultPolicy()
	p.CoverageFraction = 1
	assert.Error(t, ValidatePolicy(p))

	p = DefaultPolicy()
	p.MinorityThreshold = 0.5
	assert.Error(t, ValidatePolicy(p))
}

func TestConfigIsBot(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, ProcessAndValidate(context.Background(), cfg, &MockGitClient{}, validInput()))

	assert.True(t, cfg.IsBot(schema.Author{Name: "dependabot[bot]"}))
	assert.True(t, cfg.IsBot(schema.Author{Name: "Renovate Bot", Email: "renovate@whitesourcesoftware.com"}))
	assert.False(t, cfg.IsBot(schema.Author{Name: "Alice", Email: "alice@example.com"}))
}

func TestConfigClone(t *testing.T) {
	cfg := &Config{Excludes: []string{"a"}}
	clone := cfg.Clone()
	clone.Excludes[0] = "b"
	assert.Equal(t, "a", cfg.Excludes[0])
}
