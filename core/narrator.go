package core

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/huangsam/busfactor/internal/contract"
	"github.com/huangsam/busfactor/internal/logger"
)

// stallGuard wraps a narrator for one run. After the first call that runs
// out of time it reports itself disabled, so later stages skip the service.
type stallGuard struct {
	contract.Narrator
	stalled atomic.Bool
}

func guardNarrator(n contract.Narrator) contract.Narrator {
	if n == nil {
		return nil
	}
	return &stallGuard{Narrator: n}
}

func (g *stallGuard) Enabled() bool {
	return !g.stalled.Load() && g.Narrator.Enabled()
}

func (g *stallGuard) Summarize(ctx context.Context, req contract.NarrativeRequest) (string, error) {
	text, err := g.Narrator.Summarize(ctx, req)
	g.observe(ctx, err)
	return text, err
}

func (g *stallGuard) Recommend(ctx context.Context, req contract.NarrativeRequest) ([]string, error) {
	lines, err := g.Narrator.Recommend(ctx, req)
	g.observe(ctx, err)
	return lines, err
}

func (g *stallGuard) Label(ctx context.Context, paths []string) (string, error) {
	label, err := g.Narrator.Label(ctx, paths)
	g.observe(ctx, err)
	return label, err
}

func (g *stallGuard) observe(ctx context.Context, err error) {
	if err == nil {
		return
	}
	if !errors.Is(err, context.DeadlineExceeded) && !errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return
	}
	if g.stalled.CompareAndSwap(false, true) {
		logger.Warn().Err(contract.EnrichmentTimeout("narrative", err)).Msg("narrative service timed out, skipping it for the rest of the run")
	}
}
