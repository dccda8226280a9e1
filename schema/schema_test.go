package schema

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStepWeightsSumToHundred(t *testing.T) {
	total := 0
	for _, step := range AllSteps {
		total += StepWeights[step]
	}
	assert.Equal(t, 100, total)
	assert.Equal(t, 0, StepExtracting.Index())
	assert.Equal(t, 4, StepSynthesizing.Index())
	assert.Equal(t, -1, Step("bogus").Index())
}

func TestJobStatusIsTerminal(t *testing.T) {
	assert.False(t, StatusQueued.IsTerminal())
	assert.False(t, StatusProcessing.IsTerminal())
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
}

func TestAuthorKey(t *testing.T) {
	assert.Equal(t, "alice@example.com", Author{Name: "Alice", Email: " Alice@Example.com "}.Key())
	assert.Equal(t, "alice", Author{Name: "Alice"}.Key())
}

func TestFileOwnershipShare(t *testing.T) {
	f := NewFileOwnership("main.go")
	assert.Equal(t, 0.0, f.Share("a"))

	f.Lines["a"] = 30
	f.Lines["b"] = 10
	assert.Equal(t, 40, f.TotalLines())
	assert.InDelta(t, 0.75, f.Share("a"), 1e-9)
	assert.InDelta(t, 0.25, f.Share("b"), 1e-9)
}

func TestAnalysisJobClone(t *testing.T) {
	started := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	job := &AnalysisJob{ID: "1", Status: StatusProcessing, StartedAt: &started}

	c := job.Clone()
	c.Status = StatusFailed
	*c.StartedAt = started.Add(time.Hour)

	assert.Equal(t, StatusProcessing, job.Status)
	assert.Equal(t, started, *job.StartedAt)
	assert.Nil(t, (*AnalysisJob)(nil).Clone())
}

func TestEmptyResultMarshalsEmptyLists(t *testing.T) {
	data, err := json.Marshal(EmptyResult(time.Unix(0, 0).UTC()))
	require.NoError(t, err)
	s := string(data)
	assert.Contains(t, s, `"contributors":[]`)
	assert.Contains(t, s, `"hot_spots":[]`)
	assert.Contains(t, s, `"bus_factor":0`)
	assert.NotContains(t, s, "project_summary")
}

func TestAbbreviateName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Samuel Huang", "Samuel H"},
		{"  Ada  ", "Ada"},
		{"dependabot[bot]", "dependabot[bot]"},
		{"(Jean Luc Picard)", "Jean P"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, AbbreviateName(tt.in))
		})
	}
}
