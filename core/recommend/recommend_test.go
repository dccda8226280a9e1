package recommend

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/huangsam/busfactor/internal/contract"
	"github.com/huangsam/busfactor/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func sampleProfiles() []schema.ContributorProfile {
	return []schema.ContributorProfile{
		{Username: "Bob", BusFactorRisk: schema.HighRisk, AtRiskFiles: []string{"db.go"}},
		{Username: "Alice", BusFactorRisk: schema.HighRisk, AtRiskFiles: []string{"a.go", "b.go", "c.go", "d.go"}},
		{Username: "Carol", BusFactorRisk: schema.MediumRisk},
	}
}

func sampleHealth() schema.CodebaseHealth {
	return schema.CodebaseHealth{
		TotalFiles: 5,
		BusFactor:  1,
		HotSpots:   []string{"a.go", "shared.go"},
		HotSpotDetails: []schema.FileRisk{
			{Path: "a.go", Commits: 4, Contributors: 1, BusFactor: 1, PrimaryOwner: "Alice", PrimaryOwnerPct: 100},
			{Path: "shared.go", Commits: 9, Contributors: 3, BusFactor: 2, PrimaryOwner: "Carol", PrimaryOwnerPct: 45},
		},
	}
}

func TestSynthesizeDeterministic(t *testing.T) {
	recs := New(nil, time.Second).Synthesize(context.Background(), sampleProfiles(), sampleHealth())
	require.Len(t, recs, 3)

	assert.Equal(t, schema.KnowledgeTransfer, recs[0].Kind)
	assert.Equal(t, "Alice", recs[0].Contributor)
	assert.Contains(t, recs[0].Message, "a.go, b.go, c.go and 1 more files")
	assert.Equal(t, 1, recs[0].Priority)

	assert.Equal(t, "Bob", recs[1].Contributor)
	assert.Equal(t, []string{"db.go"}, recs[1].Files)

	assert.Equal(t, schema.SecondOwner, recs[2].Kind)
	assert.Equal(t, []string{"a.go"}, recs[2].Files)
	assert.Contains(t, recs[2].Message, "100% written by Alice")
	assert.Equal(t, 3, recs[2].Priority)
	for _, r := range recs {
		assert.Equal(t, schema.SourceEngine, r.Source)
	}
}

func TestSynthesizeAppendsNarrative(t *testing.T) {
	narrator := &contract.MockNarrator{}
	narrator.On("Enabled").Return(true)
	narrator.On("Recommend", mock.Anything, mock.Anything).Return([]string{"Rotate on-call reviews.", "  "}, nil)

	recs := New(narrator, time.Second).Synthesize(context.Background(), sampleProfiles(), sampleHealth())
	require.Len(t, recs, 4)
	last := recs[3]
	assert.Equal(t, schema.Narrative, last.Kind)
	assert.Equal(t, schema.SourceNarrative, last.Source)
	assert.Equal(t, 4, last.Priority)
	assert.Equal(t, "Rotate on-call reviews.", last.Message)
}

func TestSynthesizeNarrativeFailureKeepsEngineList(t *testing.T) {
	narrator := &contract.MockNarrator{}
	narrator.On("Enabled").Return(true)
	narrator.On("Recommend", mock.Anything, mock.Anything).Return(nil, errors.New("upstream 503"))

	recs := New(narrator, time.Second).Synthesize(context.Background(), sampleProfiles(), sampleHealth())
	assert.Len(t, recs, 3)
}

func TestSynthesizeNoRisk(t *testing.T) {
	recs := New(nil, time.Second).Synthesize(context.Background(), nil, schema.CodebaseHealth{})
	assert.Empty(t, recs)
}

func TestProjectSummary(t *testing.T) {
	assert.Nil(t, New(nil, time.Second).ProjectSummary(context.Background(), nil, sampleHealth(), nil))

	narrator := &contract.MockNarrator{}
	narrator.On("Enabled").Return(true)
	narrator.On("Summarize", mock.Anything, mock.MatchedBy(func(r contract.NarrativeRequest) bool {
		return r.Subject == "project" && r.Facts["bus_factor"] == 1
	})).Return(" A small Go service. ", nil)

	got := New(narrator, time.Second).ProjectSummary(context.Background(), sampleProfiles(), sampleHealth(), []string{"Go"})
	require.NotNil(t, got)
	assert.Equal(t, "A small Go service.", *got)

	failing := &contract.MockNarrator{}
	failing.On("Enabled").Return(true)
	failing.On("Summarize", mock.Anything, mock.Anything).Return("", context.DeadlineExceeded)
	assert.Nil(t, New(failing, time.Second).ProjectSummary(context.Background(), nil, sampleHealth(), nil))
}
