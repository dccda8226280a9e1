package extract

import (
	"context"
	_ "embed"
	"errors"
	"testing"
	"time"

	"github.com/huangsam/busfactor/internal/contract"
	"github.com/huangsam/busfactor/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

//go:embed testdata/git_log_basic.txt
var gitLogBasicFixture []byte

//go:embed testdata/git_log_corrupt.txt
var gitLogCorruptFixture []byte

func collect(t *testing.T, seq func(func(schema.CommitDiff, error) bool)) ([]schema.CommitDiff, error) {
	t.Helper()
	var commits []schema.CommitDiff
	for c, err := range seq {
		if err != nil {
			return commits, err
		}
		commits = append(commits, c)
	}
	return commits, nil
}

func TestParseLog(t *testing.T) {
	commits, err := collect(t, ParseLog(gitLogBasicFixture))
	require.NoError(t, err)
	require.Len(t, commits, 4)

	first := commits[0]
	assert.Equal(t, "1111111111111111111111111111111111111111", first.Hash)
	assert.Equal(t, schema.Author{Name: "Alice Smith", Email: "alice@example.com"}, first.Author)
	assert.Equal(t, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), first.Timestamp.UTC())
	require.Len(t, first.Changes, 3)
	assert.Equal(t, schema.FileChange{Path: "src/x.go", Added: 10}, first.Changes[0])
	assert.Equal(t, schema.FileChange{Path: "assets/logo.png", Binary: true}, first.Changes[2])

	rename := commits[1].Changes[1]
	assert.Equal(t, "src/core/x.go", rename.Path)
	assert.Equal(t, "src/x.go", rename.RenamedFrom)
	assert.Equal(t, 0, rename.Added)

	last := commits[3]
	require.Len(t, last.Changes, 1)
	assert.True(t, last.Changes[0].Deleted)
	assert.Equal(t, 7, last.Changes[0].Removed)
	assert.Equal(t, "ALICE@example.com", last.Author.Email)
}

func TestParseLogCorrupt(t *testing.T) {
	_, err := collect(t, ParseLog(gitLogCorruptFixture))
	require.Error(t, err)
	assert.ErrorIs(t, err, contract.ErrAggregation)
}

func TestParseLogStopsEarly(t *testing.T) {
	count := 0
	for range ParseLog(gitLogBasicFixture) {
		count++
		if count == 2 {
			break
		}
	}
	assert.Equal(t, 2, count)
}

func TestParseRenamePath(t *testing.T) {
	tests := []struct {
		in, oldPath, newPath string
	}{
		{"main.go", "main.go", "main.go"},
		{"a.go => b.go", "a.go", "b.go"},
		{"src/{old => new}/f.go", "src/old/f.go", "src/new/f.go"},
		{"{ => sub}/f.go", "f.go", "sub/f.go"},
		{"pkg/{a => }/f.go", "pkg/a/f.go", "pkg/f.go"},
		{"{a.go => b.go}", "a.go", "b.go"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			oldPath, newPath := ParseRenamePath(tt.in)
			assert.Equal(t, tt.oldPath, oldPath)
			assert.Equal(t, tt.newPath, newPath)
		})
	}
}

func TestParseCommitHeaderPipeInName(t *testing.T) {
	c, err := parseCommitHeader("--abc|Team | Infra|infra@example.com|2024-03-01T00:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, "Team | Infra", c.Author.Name)
	assert.Equal(t, "infra@example.com", c.Author.Email)

	_, err = parseCommitHeader("--abc|only|two")
	assert.Error(t, err)
	_, err = parseCommitHeader("--abc|n|e|yesterday")
	assert.Error(t, err)
}

func TestExtractorHistory(t *testing.T) {
	ctx := context.Background()
	src := &Source{Location: "/test/repo", Path: "/test/repo"}

	mockClient := &contract.MockGitClient{}
	mockClient.On("GetHistoryLog", ctx, "/test/repo", contract.LogOptions{MaxCommits: 100}).Return(gitLogBasicFixture, nil)

	isBot := func(a schema.Author) bool { return a.Name == "dependabot[bot]" }
	e := New(mockClient, Options{MaxCommits: 100, ExcludeBots: true, IsBot: isBot})

	commits, err := collect(t, e.History(ctx, src))
	require.NoError(t, err)
	assert.Len(t, commits, 3)
	for _, c := range commits {
		assert.NotEqual(t, "dependabot[bot]", c.Author.Name)
	}

	// Restartable: a second pass re-reads from git.
	again, err := collect(t, e.History(ctx, src))
	require.NoError(t, err)
	assert.Equal(t, commits, again)
	mockClient.AssertNumberOfCalls(t, "GetHistoryLog", 2)
}

func TestExtractorHistoryErrors(t *testing.T) {
	ctx := context.Background()
	src := &Source{Location: "/test/repo", Path: "/test/repo"}

	tests := []struct {
		name    string
		out     []byte
		err     error
		wantErr error
	}{
		{"git failure", nil, errors.New("git log failed: fatal: not a git repository"), contract.ErrExtraction},
		{"unborn branch", nil, errors.New("git log failed: fatal: your current branch 'main' does not have any commits yet"), contract.ErrEmptyHistory},
		{"no commits", []byte(""), nil, contract.ErrEmptyHistory},
		{"corrupt", gitLogCorruptFixture, nil, contract.ErrAggregation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockClient := &contract.MockGitClient{}
			mockClient.On("GetHistoryLog", ctx, "/test/repo", mock.Anything).Return(tt.out, tt.err)

			_, err := collect(t, New(mockClient, Options{}).History(ctx, src))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestExtractorOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("local path", func(t *testing.T) {
		dir := t.TempDir()
		mockClient := &contract.MockGitClient{}
		mockClient.On("GetRepoRoot", ctx, dir).Return(dir, nil)

		src, err := New(mockClient, Options{}).Open(ctx, dir)
		require.NoError(t, err)
		assert.Equal(t, dir, src.Path)
		assert.NoError(t, src.Close())
	})

	t.Run("missing path", func(t *testing.T) {
		_, err := New(&contract.MockGitClient{}, Options{}).Open(ctx, "/definitely/not/here")
		assert.ErrorIs(t, err, contract.ErrExtraction)
	})

	t.Run("clone failure", func(t *testing.T) {
		mockClient := &contract.MockGitClient{}
		mockClient.On("Clone", ctx, "https://example.com/private.git", mock.AnythingOfType("string")).Return(errors.New("authentication failed"))

		_, err := New(mockClient, Options{}).Open(ctx, "https://example.com/private.git")
		assert.ErrorIs(t, err, contract.ErrExtraction)
	})

	t.Run("clone success", func(t *testing.T) {
		mockClient := &contract.MockGitClient{}
		mockClient.On("Clone", ctx, "https://example.com/public.git", mock.AnythingOfType("string")).Return(nil)

		src, err := New(mockClient, Options{}).Open(ctx, "https://example.com/public.git")
		require.NoError(t, err)
		assert.NotEmpty(t, src.tempDir)
		require.NoError(t, src.Close())
		assert.NoDirExists(t, src.tempDir)
	})
}
