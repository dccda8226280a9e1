// Package core wires the analysis stages into a single pipeline.
package core

import (
	"context"
	"errors"
	"iter"
	"time"

	"github.com/huangsam/busfactor/core/extract"
	"github.com/huangsam/busfactor/core/ownership"
	"github.com/huangsam/busfactor/core/profile"
	"github.com/huangsam/busfactor/core/recommend"
	"github.com/huangsam/busfactor/core/risk"
	"github.com/huangsam/busfactor/internal/contract"
	"github.com/huangsam/busfactor/internal/logger"
	"github.com/huangsam/busfactor/schema"
)

// ProgressFunc is told when a step starts and when it finishes.
type ProgressFunc func(step schema.Step, finished bool)

// Pipeline runs extraction through synthesis for one repository.
type Pipeline struct {
	cfg      *contract.Config
	client   contract.GitClient
	narrator contract.Narrator
	now      func() time.Time
}

// NewPipeline returns a Pipeline. narrator may be nil.
func NewPipeline(cfg *contract.Config, client contract.GitClient, narrator contract.Narrator) *Pipeline {
	return &Pipeline{cfg: cfg, client: client, narrator: narrator, now: time.Now}
}

// Run analyzes location. A repository without commits yields the
// zero-valued result rather than an error. report may be nil.
func (p *Pipeline) Run(ctx context.Context, location string, report ProgressFunc) (*schema.AnalysisResult, error) {
	if report == nil {
		report = func(schema.Step, bool) {}
	}
	narrator := guardNarrator(p.narrator)

	// Extracting
	report(schema.StepExtracting, false)
	ext := extract.New(p.client, extract.OptionsFromConfig(p.cfg))
	src, err := ext.Open(ctx, location)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := src.Close(); err != nil {
			logger.Warn().Err(err).Str("repo", location).Msg("failed to remove temporary clone")
		}
	}()
	commits, err := collect(ext.History(ctx, src))
	if errors.Is(err, contract.ErrEmptyHistory) {
		logger.Info().Str("repo", location).Msg("repository has no commits")
		return schema.EmptyResult(p.now().UTC()), nil
	}
	if err != nil {
		return nil, err
	}
	head := ext.Head(ctx, src)
	report(schema.StepExtracting, true)

	// Aggregating
	report(schema.StepAggregating, false)
	ledger, err := ownership.New(ownership.OptionsFromConfig(p.cfg)).Aggregate(ctx, replay(commits))
	if err != nil {
		return nil, err
	}
	report(schema.StepAggregating, true)

	// Profiling
	report(schema.StepProfiling, false)
	profiles, err := profile.New(p.cfg.Policy, narrator, p.cfg.Narrative.Timeout).Profile(ctx, ledger)
	if err != nil {
		return nil, err
	}
	languages := profile.PrimaryLanguages(ledger, p.cfg.Policy.MaxLanguages)
	report(schema.StepProfiling, true)

	// Analyzing risk
	report(schema.StepAnalyzingRisk, false)
	health, profiles, err := risk.New(p.cfg.Policy).Analyze(ctx, ledger, profiles)
	if err != nil {
		return nil, err
	}
	report(schema.StepAnalyzingRisk, true)

	// Synthesizing
	report(schema.StepSynthesizing, false)
	syn := recommend.New(narrator, p.cfg.Narrative.Timeout)
	result := &schema.AnalysisResult{
		PrimaryLanguages: languages,
		Contributors:     profiles,
		CodebaseHealth:   health,
		Recommendations:  syn.Synthesize(ctx, profiles, health),
		HeadCommit:       head,
		GeneratedAt:      p.now().UTC(),
	}
	result.ProjectSummary = syn.ProjectSummary(ctx, profiles, health, languages)
	if result.Recommendations == nil {
		result.Recommendations = []schema.Recommendation{}
	}
	report(schema.StepSynthesizing, true)

	return result, nil
}

// collect drains a history so the extracting step ends before folding begins.
func collect(seq iter.Seq2[schema.CommitDiff, error]) ([]schema.CommitDiff, error) {
	var out []schema.CommitDiff
	for c, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func replay(commits []schema.CommitDiff) iter.Seq2[schema.CommitDiff, error] {
	return func(yield func(schema.CommitDiff, error) bool) {
		for _, c := range commits {
			if !yield(c, nil) {
				return
			}
		}
	}
}
