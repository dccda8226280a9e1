package parquet

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/huangsam/busfactor/schema"
	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobRunStructTags(t *testing.T) {
	// Verify struct tags are properly defined for parquet schema inference
	s := parquet.SchemaOf(new(JobRun))
	for _, colName := range []string{
		"job_id", "workspace_id", "repo_location", "status", "progress", "current_step",
		"message", "error_category", "created_at", "started_at", "completed_at",
		"bus_factor", "total_files", "total_commits",
	} {
		_, ok := s.Lookup(colName)
		assert.True(t, ok, "Column %s should exist in schema", colName)
	}
}

func TestContributorRiskStructTags(t *testing.T) {
	s := parquet.SchemaOf(new(ContributorRisk))
	for _, colName := range []string{"job_id", "username", "bus_factor_risk", "at_risk_files", "knowledge_areas"} {
		_, ok := s.Lookup(colName)
		assert.True(t, ok, "Column %s should exist in schema", colName)
	}
}

func sampleRecords() []schema.JobRecord {
	created := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
	done := created.Add(time.Minute)
	bf := int32(2)
	result := `{"contributors":[{"username":"Alice","email":"alice@example.com","total_commits":12,"bus_factor_risk":"high","at_risk_files":["a.go","b.go"],"knowledge_areas":["core","api"]}],"codebase_health":{"bus_factor":2}}`
	return []schema.JobRecord{
		{JobID: "j1", WorkspaceID: "ws", RepoLocation: "/repo", Status: "completed", Progress: 100, CreatedAt: created, CompletedAt: &done, BusFactor: &bf, ResultJSON: &result},
		{JobID: "j2", WorkspaceID: "ws", RepoLocation: "/repo", Status: "queued", CreatedAt: created.Add(time.Hour)},
	}
}

func TestWriteJobRunsParquet(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "jobs.parquet")
	require.NoError(t, WriteJobRunsParquet(ConvertJobRecords(sampleRecords()), outputPath))

	rows, err := parquet.ReadFile[JobRun](outputPath)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "j1", rows[0].JobID)
	require.NotNil(t, rows[0].BusFactor)
	assert.Equal(t, int32(2), *rows[0].BusFactor)
	assert.Nil(t, rows[1].CompletedAt)
}

func TestConvertStoredResults(t *testing.T) {
	rows, err := ConvertStoredResults(sampleRecords())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "j1", rows[0].JobID)
	assert.Equal(t, "high", rows[0].BusFactorRisk)
	assert.Equal(t, int32(2), rows[0].AtRiskFiles)
	assert.Equal(t, "core,api", rows[0].KnowledgeAreas)

	bad := "{"
	_, err = ConvertStoredResults([]schema.JobRecord{{JobID: "x", ResultJSON: &bad}})
	assert.Error(t, err)
}

func TestWriteContributorRisks(t *testing.T) {
	var buf bytes.Buffer
	profiles := []schema.ContributorProfile{{Username: "Bob", TotalCommits: 3, BusFactorRisk: schema.LowRisk}}
	require.NoError(t, WriteContributorRisks(&buf, ConvertContributorProfiles("", profiles)))

	path := filepath.Join(t.TempDir(), "c.parquet")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	rows, err := parquet.ReadFile[ContributorRisk](path)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Bob", rows[0].Username)
	assert.Equal(t, int32(3), rows[0].TotalCommits)
}

func TestWriteToMissingDirectory(t *testing.T) {
	err := WriteJobRunsParquet(nil, filepath.Join(t.TempDir(), "missing", "x.parquet"))
	assert.Error(t, err)
}
