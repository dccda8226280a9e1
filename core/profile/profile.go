// Package profile builds per-contributor profiles from an ownership ledger.
package profile

import (
	"context"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/huangsam/busfactor/core/ownership"
	"github.com/huangsam/busfactor/internal/contract"
	"github.com/huangsam/busfactor/internal/logger"
	"github.com/huangsam/busfactor/schema"
	"github.com/src-d/enry/v2"
)

// RootArea is the knowledge area of files at the top of the repository.
const RootArea = "root"

// Profiler turns a ledger into contributor profiles.
type Profiler struct {
	policy   contract.Policy
	narrator contract.Narrator
	timeout  time.Duration
}

// New returns a Profiler. narrator may be nil.
func New(policy contract.Policy, narrator contract.Narrator, timeout time.Duration) *Profiler {
	return &Profiler{policy: policy, narrator: narrator, timeout: timeout}
}

// Profile returns one profile per author, strongest expertise first.
// BusFactorRisk is left for the risk analyzer to fill in.
func (p *Profiler) Profile(ctx context.Context, ledger *ownership.Ledger) ([]schema.ContributorProfile, error) {
	shares := fileShares(ledger)
	touched := filesTouched(ledger)
	labels := make(map[string]string)

	profiles := make([]schema.ContributorProfile, 0, len(ledger.Authors))
	for _, key := range sortedKeys(ledger.Authors) {
		if err := ctx.Err(); err != nil {
			return nil, contract.ClassificationError("profile", err)
		}
		act := ledger.Authors[key]

		prof := schema.ContributorProfile{
			Username:         act.Name,
			Email:            act.Email,
			TotalCommits:     act.Commits,
			LinesAdded:       act.LinesAdded,
			LinesDeleted:     act.LinesDeleted,
			ActiveDays:       len(act.Days),
			FirstCommitDate:  act.First,
			LastCommitDate:   act.Last,
			FilesContributed: shares[key],
			BusFactorRisk:    schema.LowRisk,
		}
		if prof.FilesContributed == nil {
			prof.FilesContributed = []schema.FileShare{}
		}
		prof.CommitFrequency, prof.SingleDay = CommitFrequency(len(act.Days), act.First, act.Last)
		prof.ExpertiseScore = p.ExpertiseScore(act.Commits, touched[key], ledger.TotalFiles())
		prof.ExpertiseLevel = p.Classify(prof.ExpertiseScore)
		prof.KnowledgeAreas = p.knowledgeAreas(ctx, prof.FilesContributed, labels)
		prof.ContributionSummary = p.summarize(ctx, prof)

		profiles = append(profiles, prof)
	}

	sort.SliceStable(profiles, func(i, j int) bool {
		if profiles[i].ExpertiseScore != profiles[j].ExpertiseScore {
			return profiles[i].ExpertiseScore > profiles[j].ExpertiseScore
		}
		if profiles[i].TotalCommits != profiles[j].TotalCommits {
			return profiles[i].TotalCommits > profiles[j].TotalCommits
		}
		return profiles[i].Key() < profiles[j].Key()
	})
	return profiles, nil
}

// CommitFrequency is active days over the span in calendar days between the
// first and last commit. A zero span is reported as single-day with frequency 0.
func CommitFrequency(activeDays int, first, last time.Time) (float64, bool) {
	firstDay := first.UTC().Truncate(24 * time.Hour)
	lastDay := last.UTC().Truncate(24 * time.Hour)
	span := lastDay.Sub(firstDay).Hours() / 24
	if span <= 0 {
		return 0, true
	}
	return float64(activeDays) / span, false
}

// ExpertiseScore weighs commit volume against breadth of files touched.
func (p *Profiler) ExpertiseScore(commits, filesTouched, totalFiles int) float64 {
	commitPart := min(1, float64(commits)/float64(p.policy.CommitSaturation))
	breadthPart := 0.0
	if totalFiles > 0 {
		breadthPart = float64(filesTouched) / float64(totalFiles)
	}
	return p.policy.CommitWeight*commitPart + p.policy.BreadthWeight*breadthPart
}

// Classify maps a score onto the four expertise bands.
func (p *Profiler) Classify(score float64) schema.ExpertiseLevel {
	switch {
	case score >= p.policy.ExpertScore:
		return schema.Expert
	case score >= p.policy.AdvancedScore:
		return schema.Advanced
	case score >= p.policy.IntermediateScore:
		return schema.Intermediate
	default:
		return schema.Novice
	}
}

// fileShares lists, per contributor, the live files they own lines in,
// highest ownership first and most recently touched on ties.
func fileShares(ledger *ownership.Ledger) map[string][]schema.FileShare {
	type entry struct {
		share schema.FileShare
		last  time.Time
	}
	byKey := make(map[string][]entry)
	for _, f := range ledger.Live() {
		for _, o := range ownership.Owners(f) {
			byKey[o.Key] = append(byKey[o.Key], entry{
				share: schema.FileShare{Path: f.Path, Lines: o.Lines, OwnershipPct: o.Share * 100},
				last:  o.Last,
			})
		}
	}

	out := make(map[string][]schema.FileShare, len(byKey))
	for key, entries := range byKey {
		sort.SliceStable(entries, func(i, j int) bool {
			if entries[i].share.OwnershipPct != entries[j].share.OwnershipPct {
				return entries[i].share.OwnershipPct > entries[j].share.OwnershipPct
			}
			if !entries[i].last.Equal(entries[j].last) {
				return entries[i].last.After(entries[j].last)
			}
			return entries[i].share.Path < entries[j].share.Path
		})
		list := make([]schema.FileShare, len(entries))
		for i, e := range entries {
			list[i] = e.share
		}
		out[key] = list
	}
	return out
}

// filesTouched counts every file each contributor committed to, whatever its final state.
func filesTouched(ledger *ownership.Ledger) map[string]int {
	out := make(map[string]int)
	for _, f := range ledger.Files {
		for key := range f.Contributors {
			out[key]++
		}
	}
	return out
}

// AreaOf returns the directory prefix of p limited to depth components.
func AreaOf(p string, depth int) string {
	dir := path.Dir(p)
	if dir == "." || dir == "/" || dir == "" {
		return RootArea
	}
	parts := strings.Split(dir, "/")
	if len(parts) > depth {
		parts = parts[:depth]
	}
	return strings.Join(parts, "/")
}

// knowledgeAreas clusters the top owned files by directory prefix and ranks the
// clusters by summed ownership. Labels from the narrator replace directory tags
// when available; the result is never empty when shares exist.
func (p *Profiler) knowledgeAreas(ctx context.Context, shares []schema.FileShare, labels map[string]string) []string {
	if len(shares) == 0 {
		return []string{}
	}
	top := shares
	if len(top) > p.policy.KnowledgeTopFiles {
		top = top[:p.policy.KnowledgeTopFiles]
	}

	weight := make(map[string]float64)
	members := make(map[string][]string)
	for _, s := range top {
		area := AreaOf(s.Path, p.policy.KnowledgeDepth)
		weight[area] += s.OwnershipPct
		members[area] = append(members[area], s.Path)
	}
	areas := make([]string, 0, len(weight))
	for area := range weight {
		areas = append(areas, area)
	}
	sort.Slice(areas, func(i, j int) bool {
		if weight[areas[i]] != weight[areas[j]] {
			return weight[areas[i]] > weight[areas[j]]
		}
		return areas[i] < areas[j]
	})
	if p.policy.MaxKnowledgeAreas > 0 && len(areas) > p.policy.MaxKnowledgeAreas {
		areas = areas[:p.policy.MaxKnowledgeAreas]
	}

	out := make([]string, 0, len(areas))
	seen := make(map[string]struct{})
	for _, area := range areas {
		label := p.label(ctx, area, members[area], labels)
		if _, dup := seen[label]; dup {
			continue
		}
		seen[label] = struct{}{}
		out = append(out, label)
	}
	return out
}

// label asks the narrator for a human name of an area, once per area.
func (p *Profiler) label(ctx context.Context, area string, paths []string, cache map[string]string) string {
	if l, ok := cache[area]; ok {
		return l
	}
	if p.narrator == nil || !p.narrator.Enabled() {
		return area
	}
	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	l, err := p.narrator.Label(callCtx, paths)
	l = strings.TrimSpace(l)
	if err != nil || l == "" {
		logger.Debug().Err(contract.EnrichmentTimeout("label", err)).Str("area", area).Msg("falling back to directory tag")
		l = area
	}
	cache[area] = l
	return l
}

// summarize asks the narrator for a prose summary of a contributor.
func (p *Profiler) summarize(ctx context.Context, prof schema.ContributorProfile) *string {
	if p.narrator == nil || !p.narrator.Enabled() {
		return nil
	}
	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	text, err := p.narrator.Summarize(callCtx, contract.NarrativeRequest{
		Subject: "contributor",
		Facts: map[string]any{
			"username":        prof.Username,
			"total_commits":   prof.TotalCommits,
			"lines_added":     prof.LinesAdded,
			"lines_deleted":   prof.LinesDeleted,
			"active_days":     prof.ActiveDays,
			"expertise_level": prof.ExpertiseLevel,
			"knowledge_areas": prof.KnowledgeAreas,
			"files_owned":     len(prof.FilesContributed),
		},
	})
	text = strings.TrimSpace(text)
	if err != nil || text == "" {
		logger.Debug().Err(contract.EnrichmentTimeout("contribution_summary", err)).Str("contributor", prof.Username).Msg("skipping contribution summary")
		return nil
	}
	return &text
}

// PrimaryLanguages ranks languages of live files by attributed lines.
// Vendored paths and files without a detectable language are skipped.
func PrimaryLanguages(ledger *ownership.Ledger, limit int) []string {
	weight := make(map[string]int)
	for _, f := range ledger.Live() {
		if enry.IsVendor(f.Path) {
			continue
		}
		lang := enry.GetLanguage(path.Base(f.Path), nil)
		if lang == "" {
			continue
		}
		weight[lang] += f.TotalLines()
	}

	langs := make([]string, 0, len(weight))
	for lang := range weight {
		langs = append(langs, lang)
	}
	sort.Slice(langs, func(i, j int) bool {
		if weight[langs[i]] != weight[langs[j]] {
			return weight[langs[i]] > weight[langs[j]]
		}
		return langs[i] < langs[j]
	})
	if limit > 0 && len(langs) > limit {
		langs = langs[:limit]
	}
	return langs
}

func sortedKeys(m map[string]*ownership.AuthorActivity) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
