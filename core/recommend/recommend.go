// Package recommend turns risk findings into ranked mitigation actions.
package recommend

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/huangsam/busfactor/internal/contract"
	"github.com/huangsam/busfactor/internal/logger"
	"github.com/huangsam/busfactor/schema"
)

// maxNamedFiles caps how many paths are spelled out in a message.
const maxNamedFiles = 3

// Synthesizer builds recommendations and the project summary.
type Synthesizer struct {
	narrator contract.Narrator
	timeout  time.Duration
}

// New returns a Synthesizer. narrator may be nil.
func New(narrator contract.Narrator, timeout time.Duration) *Synthesizer {
	return &Synthesizer{narrator: narrator, timeout: timeout}
}

// Synthesize returns the deterministic recommendations followed by any the
// narrator adds. Priorities are 1-based and follow list order.
func (s *Synthesizer) Synthesize(ctx context.Context, profiles []schema.ContributorProfile, health schema.CodebaseHealth) []schema.Recommendation {
	recs := KnowledgeTransfer(profiles)
	recs = append(recs, SecondOwners(health)...)
	recs = append(recs, s.narrate(ctx, profiles, health)...)
	for i := range recs {
		recs[i].Priority = i + 1
	}
	return recs
}

// KnowledgeTransfer emits one action per high-risk contributor, most
// at-risk files first.
func KnowledgeTransfer(profiles []schema.ContributorProfile) []schema.Recommendation {
	var high []schema.ContributorProfile
	for _, p := range profiles {
		if p.BusFactorRisk == schema.HighRisk {
			high = append(high, p)
		}
	}
	sort.SliceStable(high, func(i, j int) bool {
		if len(high[i].AtRiskFiles) != len(high[j].AtRiskFiles) {
			return len(high[i].AtRiskFiles) > len(high[j].AtRiskFiles)
		}
		return high[i].Username < high[j].Username
	})

	out := make([]schema.Recommendation, 0, len(high))
	for _, p := range high {
		out = append(out, schema.Recommendation{
			Kind:        schema.KnowledgeTransfer,
			Contributor: p.Username,
			Files:       p.AtRiskFiles,
			Source:      schema.SourceEngine,
			Message: fmt.Sprintf("%s is the only significant owner of %s. Pair a teammate with them and document these areas.",
				p.Username, describeFiles(p.AtRiskFiles)),
		})
	}
	return out
}

// SecondOwners emits one action per hot spot that a single person carries.
func SecondOwners(health schema.CodebaseHealth) []schema.Recommendation {
	var out []schema.Recommendation
	for _, spot := range health.HotSpotDetails {
		if spot.BusFactor != 1 {
			continue
		}
		out = append(out, schema.Recommendation{
			Kind:        schema.SecondOwner,
			Contributor: spot.PrimaryOwner,
			Files:       []string{spot.Path},
			Source:      schema.SourceEngine,
			Message: fmt.Sprintf("Assign a second owner to %s (%.0f%% written by %s across %d commits).",
				spot.Path, spot.PrimaryOwnerPct, spot.PrimaryOwner, spot.Commits),
		})
	}
	return out
}

func describeFiles(files []string) string {
	switch {
	case len(files) == 0:
		return "their files"
	case len(files) <= maxNamedFiles:
		return strings.Join(files, ", ")
	default:
		return fmt.Sprintf("%s and %d more files", strings.Join(files[:maxNamedFiles], ", "), len(files)-maxNamedFiles)
	}
}

func (s *Synthesizer) narrate(ctx context.Context, profiles []schema.ContributorProfile, health schema.CodebaseHealth) []schema.Recommendation {
	if s.narrator == nil || !s.narrator.Enabled() {
		return nil
	}
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	lines, err := s.narrator.Recommend(callCtx, contract.NarrativeRequest{
		Subject: "project",
		Facts:   projectFacts(profiles, health, nil),
	})
	if err != nil {
		logger.Debug().Err(contract.EnrichmentTimeout("recommend", err)).Msg("skipping narrative recommendations")
		return nil
	}

	var out []schema.Recommendation
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, schema.Recommendation{
			Kind:    schema.Narrative,
			Message: line,
			Source:  schema.SourceNarrative,
		})
	}
	return out
}

// ProjectSummary asks the narrator for a short description of the project.
// It returns nil when the narrator is unavailable or fails.
func (s *Synthesizer) ProjectSummary(ctx context.Context, profiles []schema.ContributorProfile, health schema.CodebaseHealth, languages []string) *string {
	if s.narrator == nil || !s.narrator.Enabled() {
		return nil
	}
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	text, err := s.narrator.Summarize(callCtx, contract.NarrativeRequest{
		Subject: "project",
		Facts:   projectFacts(profiles, health, languages),
	})
	text = strings.TrimSpace(text)
	if err != nil || text == "" {
		logger.Debug().Err(contract.EnrichmentTimeout("project_summary", err)).Msg("skipping project summary")
		return nil
	}
	return &text
}

func projectFacts(profiles []schema.ContributorProfile, health schema.CodebaseHealth, languages []string) map[string]any {
	top := make([]string, 0, 5)
	for i, p := range profiles {
		if i == 5 {
			break
		}
		top = append(top, p.Username)
	}
	facts := map[string]any{
		"total_files":         health.TotalFiles,
		"total_commits":       health.TotalCommits,
		"active_contributors": health.ActiveContributors,
		"bus_factor":          health.BusFactor,
		"hot_spots":           health.HotSpots,
		"top_contributors":    top,
	}
	if languages != nil {
		facts["primary_languages"] = languages
	}
	return facts
}
