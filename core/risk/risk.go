// Package risk computes bus factor, per-contributor risk and hot spots.
package risk

import (
	"context"
	"fmt"
	"sort"

	"github.com/huangsam/busfactor/core/ownership"
	"github.com/huangsam/busfactor/internal/contract"
	"github.com/huangsam/busfactor/schema"
)

// MajorityShare is the share a single owner must exceed to "own" a file.
const MajorityShare = 0.5

// Analyzer derives codebase health from a ledger.
type Analyzer struct {
	policy contract.Policy
}

// New returns an Analyzer.
func New(policy contract.Policy) *Analyzer {
	return &Analyzer{policy: policy}
}

// Analyze computes codebase health and stamps each profile with its risk.
// The returned slice is a copy of profiles.
func (a *Analyzer) Analyze(ctx context.Context, ledger *ownership.Ledger, profiles []schema.ContributorProfile) (schema.CodebaseHealth, []schema.ContributorProfile, error) {
	live := ledger.Live()
	if err := checkInvariants(live); err != nil {
		return schema.CodebaseHealth{}, nil, err
	}
	if err := ctx.Err(); err != nil {
		return schema.CodebaseHealth{}, nil, contract.ClassificationError("analyze", err)
	}

	health := schema.CodebaseHealth{
		TotalFiles:         ledger.TotalFiles(),
		TotalCommits:       ledger.TotalCommits,
		ActiveContributors: a.ActiveContributors(ledger),
		BusFactor:          a.BusFactor(live),
	}
	health.HotSpotDetails = a.HotSpots(ledger, live)
	health.HotSpots = make([]string, len(health.HotSpotDetails))
	for i, d := range health.HotSpotDetails {
		health.HotSpots[i] = d.Path
	}

	levels, atRisk := a.ContributorRisk(live)
	out := make([]schema.ContributorProfile, len(profiles))
	for i, p := range profiles {
		key := p.Key()
		p.BusFactorRisk = schema.LowRisk
		if lvl, ok := levels[key]; ok {
			p.BusFactorRisk = lvl
		}
		p.AtRiskFiles = atRisk[key]
		out[i] = p
	}
	return health, out, nil
}

// checkInvariants guards the classification inputs against impossible ledgers.
func checkInvariants(files []*schema.FileOwnership) error {
	for _, f := range files {
		for key, n := range f.Lines {
			if n < 0 {
				return contract.ClassificationError("analyze", fmt.Errorf("negative ownership for %s on %s", key, f.Path))
			}
		}
	}
	return nil
}

// BusFactor is the number of contributors that must be removed, greedily by
// ownership footprint, before more than CoverageFraction of the files lose
// every majority owner. Shares are measured against the original totals.
// It returns 0 when there are no files to judge.
func (a *Analyzer) BusFactor(files []*schema.FileOwnership) int {
	if len(files) == 0 {
		return 0
	}

	owners := make([][]ownership.Owner, len(files))
	lines := make(map[string]int)
	for i, f := range files {
		owners[i] = ownership.Owners(f)
		for _, o := range owners[i] {
			lines[o.Key] += o.Lines
		}
	}

	removed := make(map[string]bool)
	for count := 1; ; count++ {
		footprint := make(map[string]float64)
		for _, fileOwners := range owners {
			for _, o := range fileOwners {
				if !removed[o.Key] {
					footprint[o.Key] += o.Share
				}
			}
		}
		if len(footprint) == 0 {
			return count - 1
		}
		removed[pickLargest(footprint, lines)] = true

		uncovered := 0
		for _, fileOwners := range owners {
			if !hasMajority(fileOwners, removed) {
				uncovered++
			}
		}
		if float64(uncovered)/float64(len(files)) > a.policy.CoverageFraction {
			return count
		}
	}
}

// pickLargest returns the contributor with the largest footprint, then most lines, then smallest key.
func pickLargest(footprint map[string]float64, lines map[string]int) string {
	best := ""
	for key, fp := range footprint {
		if best == "" {
			best = key
			continue
		}
		switch {
		case fp > footprint[best]:
			best = key
		case fp == footprint[best] && lines[key] > lines[best]:
			best = key
		case fp == footprint[best] && lines[key] == lines[best] && key < best:
			best = key
		}
	}
	return best
}

func hasMajority(owners []ownership.Owner, removed map[string]bool) bool {
	for _, o := range owners {
		if !removed[o.Key] && o.Share > MajorityShare {
			return true
		}
	}
	return false
}

// FileBusFactor is the smallest number of top owners whose combined share
// exceeds half of the file.
func FileBusFactor(f *schema.FileOwnership) int {
	sum := 0.0
	for i, o := range ownership.Owners(f) {
		sum += o.Share
		if sum > MajorityShare {
			return i + 1
		}
	}
	return 0
}

// ContributorRisk classifies each majority owner. A contributor is high risk
// when they own a file where nobody else holds more than MinorityThreshold,
// medium when every file they own has such a co-owner, and low otherwise.
// Contributors absent from the result are low risk.
func (a *Analyzer) ContributorRisk(files []*schema.FileOwnership) (map[string]schema.RiskLevel, map[string][]string) {
	levels := make(map[string]schema.RiskLevel)
	atRisk := make(map[string][]string)

	for _, f := range files {
		owners := ownership.Owners(f)
		if len(owners) == 0 || owners[0].Share <= MajorityShare {
			continue
		}
		top := owners[0]
		backed := len(owners) > 1 && owners[1].Share > a.policy.MinorityThreshold
		if backed {
			if levels[top.Key] != schema.HighRisk {
				levels[top.Key] = schema.MediumRisk
			}
			continue
		}
		levels[top.Key] = schema.HighRisk
		atRisk[top.Key] = append(atRisk[top.Key], f.Path)
	}
	for key := range atRisk {
		sort.Strings(atRisk[key])
	}
	return levels, atRisk
}

// HotSpots ranks live files by fewest contributors, then most commits, then path.
func (a *Analyzer) HotSpots(ledger *ownership.Ledger, files []*schema.FileOwnership) []schema.FileRisk {
	ranked := make([]*schema.FileOwnership, len(files))
	copy(ranked, files)
	sort.SliceStable(ranked, func(i, j int) bool {
		ci, cj := len(ranked[i].Contributors), len(ranked[j].Contributors)
		if ci != cj {
			return ci < cj
		}
		if ranked[i].Commits != ranked[j].Commits {
			return ranked[i].Commits > ranked[j].Commits
		}
		return ranked[i].Path < ranked[j].Path
	})
	if len(ranked) > a.policy.HotSpotLimit {
		ranked = ranked[:a.policy.HotSpotLimit]
	}

	out := make([]schema.FileRisk, 0, len(ranked))
	for _, f := range ranked {
		detail := schema.FileRisk{
			Path:         f.Path,
			Commits:      f.Commits,
			Contributors: len(f.Contributors),
			BusFactor:    FileBusFactor(f),
		}
		if owners := ownership.Owners(f); len(owners) > 0 {
			detail.PrimaryOwner = owners[0].Key
			if act, ok := ledger.Authors[owners[0].Key]; ok && act.Name != "" {
				detail.PrimaryOwner = act.Name
			}
			detail.PrimaryOwnerPct = owners[0].Share * 100
		}
		out = append(out, detail)
	}
	return out
}

// ActiveContributors counts authors whose last commit falls within
// ActiveWindow of the newest commit in the history.
func (a *Analyzer) ActiveContributors(ledger *ownership.Ledger) int {
	if ledger.Newest.IsZero() {
		return 0
	}
	cutoff := ledger.Newest.Add(-a.policy.ActiveWindow)
	n := 0
	for _, act := range ledger.Authors {
		if !act.Last.Before(cutoff) {
			n++
		}
	}
	return n
}
