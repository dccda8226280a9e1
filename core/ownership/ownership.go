// Package ownership folds commit diffs into per-file line ownership.
package ownership

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"maps"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/huangsam/busfactor/internal/contract"
	"github.com/huangsam/busfactor/schema"
)

// Options selects which paths are folded into the ledger.
type Options struct {
	Excludes   []string
	PathFilter string
}

// OptionsFromConfig derives aggregator options from the runtime config.
func OptionsFromConfig(cfg *contract.Config) Options {
	return Options{Excludes: cfg.Excludes, PathFilter: cfg.PathFilter}
}

// AuthorActivity is the per-author tally gathered while folding.
type AuthorActivity struct {
	Key          string
	Name         string // Most recent display name
	Email        string // Most recent email as written
	Commits      int
	LinesAdded   int
	LinesDeleted int
	Days         map[string]struct{} // UTC calendar dates with commits
	First        time.Time
	Last         time.Time
}

// Ledger is the ownership state after folding a history.
type Ledger struct {
	Files        map[string]*schema.FileOwnership
	Authors      map[string]*AuthorActivity
	TotalCommits int
	Newest       time.Time
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		Files:   make(map[string]*schema.FileOwnership),
		Authors: make(map[string]*AuthorActivity),
	}
}

// Owner is one contributor's stake in a file.
type Owner struct {
	Key   string
	Lines int
	Share float64
	Last  time.Time
}

// Aggregator folds commits into a Ledger.
type Aggregator struct {
	opts Options
}

// New returns an Aggregator.
func New(opts Options) *Aggregator {
	return &Aggregator{opts: opts}
}

// Aggregate consumes the whole sequence. Errors raised by the sequence are
// returned unchanged when already categorized, otherwise as aggregation errors.
func (a *Aggregator) Aggregate(ctx context.Context, commits iter.Seq2[schema.CommitDiff, error]) (*Ledger, error) {
	ledger := NewLedger()
	for commit, err := range commits {
		if err != nil {
			var ae *contract.AnalysisError
			if errors.As(err, &ae) {
				return nil, err
			}
			return nil, contract.AggregationError("read", err)
		}
		if err := ctx.Err(); err != nil {
			return nil, contract.AggregationError("fold", err)
		}
		if err := a.Fold(ledger, commit); err != nil {
			return nil, err
		}
	}
	return ledger, nil
}

// Fold applies one commit to the ledger. Changes are validated before any
// state is touched, so a rejected commit leaves the ledger unchanged.
func (a *Aggregator) Fold(l *Ledger, commit schema.CommitDiff) error {
	for _, ch := range commit.Changes {
		if ch.Path == "" {
			return contract.AggregationError(commit.Hash, errors.New("change without a path"))
		}
		if ch.Added < 0 || ch.Removed < 0 {
			return contract.ClassificationError(commit.Hash, fmt.Errorf("negative line count for %s (+%d -%d)", ch.Path, ch.Added, ch.Removed))
		}
	}

	key := commit.Author.Key()
	l.TotalCommits++
	if commit.Timestamp.After(l.Newest) {
		l.Newest = commit.Timestamp
	}
	act := l.author(key)
	act.Name = commit.Author.Name
	act.Email = commit.Author.Email
	act.Commits++
	act.Days[commit.Timestamp.UTC().Format(time.DateOnly)] = struct{}{}
	if act.First.IsZero() || commit.Timestamp.Before(act.First) {
		act.First = commit.Timestamp
	}
	if commit.Timestamp.After(act.Last) {
		act.Last = commit.Timestamp
	}

	for _, ch := range commit.Changes {
		if ch.RenamedFrom != "" && ch.RenamedFrom != ch.Path {
			l.rename(ch.RenamedFrom, ch.Path)
		}
		if !a.include(ch.Path) {
			delete(l.Files, ch.Path)
			continue
		}
		act.LinesAdded += ch.Added
		act.LinesDeleted += ch.Removed

		rec := l.Files[ch.Path]
		if rec != nil && rec.Deleted && !ch.Deleted {
			// A re-created path owns none of the deleted file's lines.
			rec = nil
		}
		if rec == nil {
			rec = schema.NewFileOwnership(ch.Path)
			l.Files[ch.Path] = rec
		}
		rec.Commits++
		rec.Contributors[key]++
		if commit.Timestamp.After(rec.LastModified) {
			rec.LastModified = commit.Timestamp
		}
		if commit.Timestamp.After(rec.LastContribution[key]) {
			rec.LastContribution[key] = commit.Timestamp
		}
		rec.Binary = ch.Binary
		rec.Deleted = ch.Deleted
		if !ch.Binary && ch.Added > 0 {
			rec.Lines[key] += ch.Added
		}
	}
	return nil
}

func (a *Aggregator) include(path string) bool {
	if a.opts.PathFilter != "" && !strings.HasPrefix(path, a.opts.PathFilter) {
		return false
	}
	return !contract.ShouldIgnore(path, a.opts.Excludes)
}

func (l *Ledger) author(key string) *AuthorActivity {
	act := l.Authors[key]
	if act == nil {
		act = &AuthorActivity{Key: key, Days: make(map[string]struct{})}
		l.Authors[key] = act
	}
	return act
}

// rename moves everything known about from onto to. A live file already at
// to is merged rather than overwritten; a deleted one is dropped.
func (l *Ledger) rename(from, to string) {
	rec, ok := l.Files[from]
	if !ok {
		return
	}
	delete(l.Files, from)
	rec.Aliases = append(rec.Aliases, from)
	rec.Path = to

	if existing, ok := l.Files[to]; ok && !existing.Deleted {
		mergeInto(rec, existing)
	}
	l.Files[to] = rec
}

// mergeInto folds src into dst.
func mergeInto(dst, src *schema.FileOwnership) {
	for k, n := range src.Lines {
		dst.Lines[k] += n
	}
	for k, n := range src.Contributors {
		dst.Contributors[k] += n
	}
	for k, t := range src.LastContribution {
		if t.After(dst.LastContribution[k]) {
			dst.LastContribution[k] = t
		}
	}
	if src.LastModified.After(dst.LastModified) {
		dst.LastModified = src.LastModified
	}
	dst.Commits += src.Commits
	dst.Aliases = append(dst.Aliases, src.Aliases...)
	dst.Aliases = append(dst.Aliases, src.Path)
}

// TotalFiles counts every path the history touched under its final identity,
// binary and deleted files included.
func (l *Ledger) TotalFiles() int {
	return len(l.Files)
}

// Live returns files that still exist and carry attributable lines, sorted by path.
func (l *Ledger) Live() []*schema.FileOwnership {
	var out []*schema.FileOwnership
	for _, f := range l.Files {
		if IsLive(f) {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// IsLive reports whether f participates in ownership percentages and hot spots.
func IsLive(f *schema.FileOwnership) bool {
	return !f.Deleted && !f.Binary && f.TotalLines() > 0
}

// Owners returns the contributors of f ordered by lines desc, then most recent
// contribution, then key.
func Owners(f *schema.FileOwnership) []Owner {
	owners := make([]Owner, 0, len(f.Lines))
	for _, k := range slices.Sorted(maps.Keys(f.Lines)) {
		n := f.Lines[k]
		if n <= 0 {
			continue
		}
		owners = append(owners, Owner{Key: k, Lines: n, Share: f.Share(k), Last: f.LastContribution[k]})
	}
	sort.SliceStable(owners, func(i, j int) bool {
		if owners[i].Lines != owners[j].Lines {
			return owners[i].Lines > owners[j].Lines
		}
		if !owners[i].Last.Equal(owners[j].Last) {
			return owners[i].Last.After(owners[j].Last)
		}
		return owners[i].Key < owners[j].Key
	})
	return owners
}
