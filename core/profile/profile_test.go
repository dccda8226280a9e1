package profile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/huangsam/busfactor/core/ownership"
	"github.com/huangsam/busfactor/internal/contract"
	"github.com/huangsam/busfactor/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	alice = schema.Author{Name: "Alice", Email: "alice@example.com"}
	bob   = schema.Author{Name: "Bob", Email: "bob@example.com"}
	base  = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
)

func buildLedger(t *testing.T, commits ...schema.CommitDiff) *ownership.Ledger {
	t.Helper()
	agg := ownership.New(ownership.Options{})
	ledger := ownership.NewLedger()
	for _, c := range commits {
		require.NoError(t, agg.Fold(ledger, c))
	}
	return ledger
}

func at(day int, author schema.Author, changes ...schema.FileChange) schema.CommitDiff {
	return schema.CommitDiff{Hash: author.Name, Author: author, Timestamp: base.AddDate(0, 0, day), Changes: changes}
}

func TestProfile(t *testing.T) {
	ledger := buildLedger(t,
		at(0, alice, schema.FileChange{Path: "core/x.go", Added: 90}, schema.FileChange{Path: "core/y.go", Added: 100}),
		at(2, alice, schema.FileChange{Path: "main.go", Added: 10}),
		at(4, bob, schema.FileChange{Path: "core/x.go", Added: 10}),
	)

	profiles, err := New(contract.DefaultPolicy(), nil, time.Second).Profile(context.Background(), ledger)
	require.NoError(t, err)
	require.Len(t, profiles, 2)

	a := profiles[0]
	assert.Equal(t, "Alice", a.Username)
	assert.Equal(t, 2, a.TotalCommits)
	assert.Equal(t, 200, a.LinesAdded)
	assert.Equal(t, 2, a.ActiveDays)
	assert.InDelta(t, 1.0, a.CommitFrequency, 1e-9)
	assert.False(t, a.SingleDay)
	require.Len(t, a.FilesContributed, 3)
	assert.Equal(t, "main.go", a.FilesContributed[0].Path, "100% first, most recent on ties")
	assert.Equal(t, "core/y.go", a.FilesContributed[1].Path)
	assert.InDelta(t, 90.0, a.FilesContributed[2].OwnershipPct, 1e-9)
	assert.Equal(t, []string{"core", RootArea}, a.KnowledgeAreas)
	assert.Nil(t, a.ContributionSummary)

	b := profiles[1]
	assert.Equal(t, "Bob", b.Username)
	assert.True(t, b.SingleDay)
	assert.Equal(t, 0.0, b.CommitFrequency)
	assert.Equal(t, []string{"core"}, b.KnowledgeAreas)
	assert.Equal(t, schema.LowRisk, b.BusFactorRisk)
}

func TestExpertiseScoreAndBands(t *testing.T) {
	p := New(contract.DefaultPolicy(), nil, time.Second)

	assert.InDelta(t, 0.6+0.4, p.ExpertiseScore(150, 10, 10), 1e-9)
	assert.InDelta(t, 0.3+0.1, p.ExpertiseScore(50, 1, 4), 1e-9)
	assert.InDelta(t, 0.006, p.ExpertiseScore(1, 0, 0), 1e-9)

	assert.Equal(t, schema.Novice, p.Classify(0.1))
	assert.Equal(t, schema.Intermediate, p.Classify(0.25))
	assert.Equal(t, schema.Advanced, p.Classify(0.6))
	assert.Equal(t, schema.Expert, p.Classify(0.75))

	custom := contract.DefaultPolicy()
	custom.ExpertScore = 0.95
	assert.Equal(t, schema.Advanced, New(custom, nil, time.Second).Classify(0.8))
}

func TestCommitFrequency(t *testing.T) {
	freq, single := CommitFrequency(1, base, base.Add(3*time.Hour))
	assert.True(t, single)
	assert.Zero(t, freq)

	freq, single = CommitFrequency(3, base, base.AddDate(0, 0, 6))
	assert.False(t, single)
	assert.InDelta(t, 0.5, freq, 1e-9)
}

func TestAreaOf(t *testing.T) {
	assert.Equal(t, RootArea, AreaOf("main.go", 1))
	assert.Equal(t, "core", AreaOf("core/risk/risk.go", 1))
	assert.Equal(t, "core/risk", AreaOf("core/risk/risk.go", 2))
	assert.Equal(t, "core", AreaOf("core/x.go", 3))
}

func TestProfileWithNarrator(t *testing.T) {
	ledger := buildLedger(t,
		at(0, alice, schema.FileChange{Path: "api/handlers.go", Added: 10}, schema.FileChange{Path: "db/store.go", Added: 5}),
	)

	narrator := &contract.MockNarrator{}
	narrator.On("Enabled").Return(true)
	narrator.On("Label", mock.Anything, []string{"api/handlers.go"}).Return("HTTP API", nil)
	narrator.On("Label", mock.Anything, []string{"db/store.go"}).Return("", errors.New("deadline exceeded"))
	narrator.On("Summarize", mock.Anything, mock.MatchedBy(func(r contract.NarrativeRequest) bool {
		return r.Subject == "contributor"
	})).Return("Alice built the API.", nil)

	profiles, err := New(contract.DefaultPolicy(), narrator, time.Second).Profile(context.Background(), ledger)
	require.NoError(t, err)
	require.Len(t, profiles, 1)

	assert.Equal(t, []string{"HTTP API", "db"}, profiles[0].KnowledgeAreas)
	require.NotNil(t, profiles[0].ContributionSummary)
	assert.Equal(t, "Alice built the API.", *profiles[0].ContributionSummary)
	narrator.AssertExpectations(t)
}

func TestProfileNarratorFailureIsSwallowed(t *testing.T) {
	ledger := buildLedger(t, at(0, alice, schema.FileChange{Path: "a.go", Added: 1}))

	narrator := &contract.MockNarrator{}
	narrator.On("Enabled").Return(true)
	narrator.On("Label", mock.Anything, mock.Anything).Return("", context.DeadlineExceeded)
	narrator.On("Summarize", mock.Anything, mock.Anything).Return("", context.DeadlineExceeded)

	profiles, err := New(contract.DefaultPolicy(), narrator, time.Millisecond).Profile(context.Background(), ledger)
	require.NoError(t, err)
	assert.Equal(t, []string{RootArea}, profiles[0].KnowledgeAreas)
	assert.Nil(t, profiles[0].ContributionSummary)
}

func TestPrimaryLanguages(t *testing.T) {
	ledger := buildLedger(t,
		at(0, alice,
			schema.FileChange{Path: "main.go", Added: 100},
			schema.FileChange{Path: "core/a.go", Added: 50},
			schema.FileChange{Path: "web/app.py", Added: 80},
			schema.FileChange{Path: "vendor/lib/x.js", Added: 1000},
		),
	)
	assert.Equal(t, []string{"Go", "Python"}, PrimaryLanguages(ledger, 5))
	assert.Equal(t, []string{"Go"}, PrimaryLanguages(ledger, 1))
}
