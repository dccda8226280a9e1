//go:build integration

// Package integration contains integration tests for busfactor.
// These tests are excluded from normal test runs due to build tags.
// To run these tests: go test -tags integration ./integration
package integration

import (
	"encoding/json"
	"os/exec"
	"strconv"
	"strings"
	"testing"

	"github.com/huangsam/busfactor/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAnalyzeVerification runs busfactor analyze on this repository and
// checks the result against plain git plumbing.
func TestAnalyzeVerification(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	countOut, err := exec.Command("git", "-C", "..", "rev-list", "--count", "--no-merges", "HEAD").Output()
	if err != nil {
		t.Skip("not inside a git checkout")
	}
	gitCommits, err := strconv.Atoi(strings.TrimSpace(string(countOut)))
	require.NoError(t, err)

	out, err := runBusfactor(t, nil, "analyze", "--output", "json")
	require.NoError(t, err)

	var result schema.AnalysisResult
	require.NoError(t, json.Unmarshal(out, &result))

	health := result.CodebaseHealth
	assert.LessOrEqual(t, health.TotalCommits, gitCommits)
	assert.Positive(t, health.TotalFiles)
	assert.GreaterOrEqual(t, health.BusFactor, 1)
	assert.LessOrEqual(t, health.BusFactor, len(result.Contributors))

	sum := 0
	for _, c := range result.Contributors {
		sum += c.TotalCommits
		assert.NotEmpty(t, c.ExpertiseLevel, c.Email)
		assert.NotEmpty(t, c.BusFactorRisk, c.Email)
	}
	assert.Equal(t, health.TotalCommits, sum, "every commit belongs to exactly one contributor")
}
