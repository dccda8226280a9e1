package schema

import "time"

// AnalysisJob is the pollable record of one analysis request.
type AnalysisJob struct {
	ID            string          `json:"id" yaml:"id"`
	WorkspaceID   string          `json:"workspace_id" yaml:"workspace_id"`
	RepoLocation  string          `json:"repo_location" yaml:"repo_location"`
	Status        JobStatus       `json:"status" yaml:"status"`
	Progress      int             `json:"progress" yaml:"progress"`
	CurrentStep   Step            `json:"current_step,omitempty" yaml:"current_step,omitempty"`
	Message       string          `json:"message" yaml:"message"`
	ErrorCategory string          `json:"error_category,omitempty" yaml:"error_category,omitempty"`
	CreatedAt     time.Time       `json:"created_at" yaml:"created_at"`
	StartedAt     *time.Time      `json:"started_at,omitempty" yaml:"started_at,omitempty"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
	Result        *AnalysisResult `json:"result,omitempty" yaml:"result,omitempty"`
}

// Clone returns a copy that shares no mutable state with j.
// The attached result is immutable, so it is shared by pointer.
func (j *AnalysisJob) Clone() *AnalysisJob {
	if j == nil {
		return nil
	}
	c := *j
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// JobRecord is a row of the busfactor_jobs table.
type JobRecord struct {
	JobID         string
	WorkspaceID   string
	RepoLocation  string
	Status        string
	Progress      int32
	CurrentStep   *string
	Message       *string
	ErrorCategory *string
	CreatedAt     time.Time
	StartedAt     *time.Time
	CompletedAt   *time.Time
	BusFactor     *int32
	TotalFiles    *int32
	TotalCommits  *int32
	ResultJSON    *string
}

// StoreStatus represents the status of the job store.
type StoreStatus struct {
	Backend       string           `json:"backend"`
	Connected     bool             `json:"connected"`
	TotalJobs     int              `json:"total_jobs"`
	FailedJobs    int              `json:"failed_jobs"`
	LastJobID     string           `json:"last_job_id"`
	LastJobTime   time.Time        `json:"last_job_time"`
	OldestJobTime time.Time        `json:"oldest_job_time"`
	TableSizes    map[string]int64 `json:"table_sizes"`
}
