package jobstore

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	pq "github.com/parquet-go/parquet-go"

	"github.com/huangsam/busfactor/internal/parquet"
	"github.com/huangsam/busfactor/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportJobs(t *testing.T) {
	store, _ := newSQLiteStore(t)
	created := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	done := sampleJob("done", "ws-a", created)
	done.Status = schema.StatusCompleted
	done.Progress = 100
	result := schema.EmptyResult(created.Add(time.Minute))
	result.Contributors = []schema.ContributorProfile{
		{Username: "Ada", Email: "ada@example.com", TotalCommits: 12, ExpertiseLevel: schema.Expert, BusFactorRisk: schema.HighRisk, KnowledgeAreas: []string{"core"}},
		{Username: "Bob", Email: "bob@example.com", TotalCommits: 2, ExpertiseLevel: schema.Novice, BusFactorRisk: schema.LowRisk},
	}
	done.Result = result
	require.NoError(t, store.SaveJob(done))
	require.NoError(t, store.SaveJob(sampleJob("queued", "ws-b", created.Add(time.Hour))))

	base := filepath.Join(t.TempDir(), "export")
	var out bytes.Buffer
	require.NoError(t, ExportJobs(store, base, &out))
	assert.Contains(t, out.String(), "Exported 2 jobs")
	assert.Contains(t, out.String(), "Exported 2 contributor rows")

	runs, err := pq.ReadFile[parquet.JobRun](base + ".jobs.parquet")
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "queued", runs[0].JobID)

	rows, err := pq.ReadFile[parquet.ContributorRisk](base + ".contributors.parquet")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "done", rows[0].JobID)
	assert.Equal(t, "ada@example.com", rows[0].Email)
	assert.Equal(t, "core", rows[0].KnowledgeAreas)
}

func TestExportJobsErrors(t *testing.T) {
	store, _ := newSQLiteStore(t)
	var out bytes.Buffer

	assert.ErrorContains(t, ExportJobs(store, "", &out), "--output-file")
	assert.ErrorContains(t, ExportJobs(store, filepath.Join(t.TempDir(), "x"), &out), "no job data")
}
