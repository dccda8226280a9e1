// Package contract provides interfaces and shared utilities for internal architecture.
package contract

import (
	"context"
	"time"

	"github.com/huangsam/busfactor/schema"
)

// GitClient defines the Git operations needed to mine a repository.
// This allows the core analysis logic to be tested without needing a real git executable.
type GitClient interface {
	// Run executes a git command against repoPath and returns its stdout.
	Run(ctx context.Context, repoPath string, args ...string) ([]byte, error)

	// GetRepoHash returns the current HEAD commit hash of the repository.
	GetRepoHash(ctx context.Context, repoPath string) (string, error)

	// GetRepoRoot returns the absolute path to the root of the Git repository
	// containing the given context path.
	GetRepoRoot(ctx context.Context, contextPath string) (string, error)

	// GetHistoryLog returns the raw numstat log, oldest commit first, merges excluded.
	GetHistoryLog(ctx context.Context, repoPath string, opts LogOptions) ([]byte, error)

	// Clone fetches a remote repository into dest without checking out a work tree.
	Clone(ctx context.Context, url, dest string) error
}

// LogOptions bounds the history read by GetHistoryLog.
type LogOptions struct {
	MaxCommits int       // 0 means no ceiling
	Since      time.Time // zero means the whole history
}

// NarrativeRequest carries the statistics handed to the narrative service.
type NarrativeRequest struct {
	Subject string         // "project", "contributor" or "knowledge_area"
	Facts   map[string]any // Plain statistics, JSON encoded on the wire
}

// Narrator turns statistics into prose. Every call is best-effort.
type Narrator interface {
	// Enabled reports whether calls can produce anything at all.
	Enabled() bool

	// Summarize returns a short prose summary for the request.
	Summarize(ctx context.Context, req NarrativeRequest) (string, error)

	// Recommend returns extra free-form recommendations.
	Recommend(ctx context.Context, req NarrativeRequest) ([]string, error)

	// Label returns a human label for a group of file paths.
	Label(ctx context.Context, paths []string) (string, error)
}

// JobStore mirrors job records into durable storage.
type JobStore interface {
	// SaveJob inserts or updates the record for job.
	SaveJob(job *schema.AnalysisJob) error

	// GetJob returns the stored record for id.
	GetJob(id string) (schema.JobRecord, error)

	// ListJobs returns the newest records first, at most limit of them.
	ListJobs(limit int) ([]schema.JobRecord, error)

	// DeleteJobsBefore removes terminal jobs created before cutoff and returns the count.
	DeleteJobsBefore(cutoff time.Time) (int64, error)

	// GetStatus returns status information about the store.
	GetStatus() (schema.StoreStatus, error)

	// Close closes the underlying connection.
	Close() error
}
