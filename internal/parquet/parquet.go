// Package parquet provides data structures and functions for exporting
// analysis jobs and contributor profiles to Parquet files using
// github.com/parquet-go/parquet-go.
package parquet

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/huangsam/busfactor/schema"
	"github.com/parquet-go/parquet-go"
)

// JobRun represents a single analysis job.
// This struct maps to the busfactor_jobs database table.
type JobRun struct {
	// JobID is the UUID of the job
	JobID string `parquet:"job_id,snappy"`

	// WorkspaceID is the workspace that requested the analysis
	WorkspaceID string `parquet:"workspace_id,snappy"`

	// RepoLocation is the analyzed repository path or URL
	RepoLocation string `parquet:"repo_location,snappy"`

	// Status is the job state at export time
	Status string `parquet:"status,snappy"`

	Progress int32 `parquet:"progress,snappy"`

	CurrentStep   *string `parquet:"current_step,optional,snappy"`
	Message       *string `parquet:"message,optional,snappy"`
	ErrorCategory *string `parquet:"error_category,optional,snappy"`

	// CreatedAt is when the job was submitted (stored as TIMESTAMP with nanosecond precision)
	CreatedAt   time.Time  `parquet:"created_at,snappy"`
	StartedAt   *time.Time `parquet:"started_at,optional,snappy"`
	CompletedAt *time.Time `parquet:"completed_at,optional,snappy"`

	// Headline metrics of completed jobs (nullable)
	BusFactor    *int32 `parquet:"bus_factor,optional,snappy"`
	TotalFiles   *int32 `parquet:"total_files,optional,snappy"`
	TotalCommits *int32 `parquet:"total_commits,optional,snappy"`
}

// ContributorRisk is one contributor profile of one completed job.
type ContributorRisk struct {
	// JobID references the parent job, empty for ad-hoc analyses
	JobID string `parquet:"job_id,snappy"`

	Username string `parquet:"username,snappy"`
	Email    string `parquet:"email,snappy"`

	TotalCommits int32 `parquet:"total_commits,snappy"`
	LinesAdded   int32 `parquet:"lines_added,snappy"`
	LinesDeleted int32 `parquet:"lines_deleted,snappy"`
	ActiveDays   int32 `parquet:"active_days,snappy"`

	FirstCommitDate time.Time `parquet:"first_commit_date,snappy"`
	LastCommitDate  time.Time `parquet:"last_commit_date,snappy"`

	CommitFrequency float64 `parquet:"commit_frequency,snappy"`
	ExpertiseLevel  string  `parquet:"expertise_level,snappy"`
	ExpertiseScore  float64 `parquet:"expertise_score,snappy"`

	// BusFactorRisk is low, medium or high
	BusFactorRisk string `parquet:"bus_factor_risk,snappy"`

	// AtRiskFiles counts files only this contributor understands
	AtRiskFiles int32 `parquet:"at_risk_files,snappy"`

	// KnowledgeAreas is a comma-separated list
	KnowledgeAreas string `parquet:"knowledge_areas,snappy"`
}

// WriteJobRunsParquet writes a slice of JobRun structs to a Parquet file.
func WriteJobRunsParquet(data []JobRun, outputPath string) error {
	return writeFile(data, outputPath)
}

// WriteContributorRisksParquet writes a slice of ContributorRisk structs to a Parquet file.
func WriteContributorRisksParquet(data []ContributorRisk, outputPath string) error {
	return writeFile(data, outputPath)
}

// WriteContributorRisks writes contributor rows to w.
func WriteContributorRisks(w io.Writer, data []ContributorRisk) error {
	return write(w, data)
}

func writeFile[T any](data []T, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := write(file, data); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

// write derives the Parquet schema from the struct tags of T.
func write[T any](w io.Writer, data []T) error {
	writer := parquet.NewGenericWriter[T](w)
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write data to parquet file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	return nil
}

// ConvertJobRecords converts schema.JobRecord to JobRun for Parquet export.
func ConvertJobRecords(records []schema.JobRecord) []JobRun {
	result := make([]JobRun, len(records))
	for i, record := range records {
		result[i] = JobRun{
			JobID:         record.JobID,
			WorkspaceID:   record.WorkspaceID,
			RepoLocation:  record.RepoLocation,
			Status:        record.Status,
			Progress:      record.Progress,
			CurrentStep:   record.CurrentStep,
			Message:       record.Message,
			ErrorCategory: record.ErrorCategory,
			CreatedAt:     record.CreatedAt,
			StartedAt:     record.StartedAt,
			CompletedAt:   record.CompletedAt,
			BusFactor:     record.BusFactor,
			TotalFiles:    record.TotalFiles,
			TotalCommits:  record.TotalCommits,
		}
	}
	return result
}

// ConvertContributorProfiles flattens the profiles of one result.
func ConvertContributorProfiles(jobID string, profiles []schema.ContributorProfile) []ContributorRisk {
	result := make([]ContributorRisk, len(profiles))
	for i, p := range profiles {
		result[i] = ContributorRisk{
			JobID:           jobID,
			Username:        p.Username,
			Email:           p.Email,
			TotalCommits:    int32(p.TotalCommits),
			LinesAdded:      int32(p.LinesAdded),
			LinesDeleted:    int32(p.LinesDeleted),
			ActiveDays:      int32(p.ActiveDays),
			FirstCommitDate: p.FirstCommitDate,
			LastCommitDate:  p.LastCommitDate,
			CommitFrequency: p.CommitFrequency,
			ExpertiseLevel:  string(p.ExpertiseLevel),
			ExpertiseScore:  p.ExpertiseScore,
			BusFactorRisk:   string(p.BusFactorRisk),
			AtRiskFiles:     int32(len(p.AtRiskFiles)),
			KnowledgeAreas:  strings.Join(p.KnowledgeAreas, ","),
		}
	}
	return result
}

// ConvertStoredResults decodes the result of every completed record and
// flattens its contributors.
func ConvertStoredResults(records []schema.JobRecord) ([]ContributorRisk, error) {
	var out []ContributorRisk
	for _, record := range records {
		if record.ResultJSON == nil {
			continue
		}
		var result schema.AnalysisResult
		if err := json.Unmarshal([]byte(*record.ResultJSON), &result); err != nil {
			return nil, fmt.Errorf("failed to decode result of job %s: %w", record.JobID, err)
		}
		out = append(out, ConvertContributorProfiles(record.JobID, result.Contributors)...)
	}
	return out, nil
}
