// Package extract reads commit history out of a Git repository.
package extract

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/huangsam/busfactor/internal/contract"
	"github.com/huangsam/busfactor/internal/logger"
	"github.com/huangsam/busfactor/schema"
)

// Options bounds what the extractor reads.
type Options struct {
	MaxCommits  int
	Since       time.Time
	ExcludeBots bool
	IsBot       func(schema.Author) bool
}

// OptionsFromConfig derives extractor options from the runtime config.
func OptionsFromConfig(cfg *contract.Config) Options {
	return Options{
		MaxCommits:  cfg.MaxCommits,
		Since:       cfg.Since,
		ExcludeBots: cfg.ExcludeBots,
		IsBot:       cfg.IsBot,
	}
}

// Extractor turns a repository location into a sequence of CommitDiff values.
type Extractor struct {
	client contract.GitClient
	opts   Options
}

// New returns an Extractor backed by client.
func New(client contract.GitClient, opts Options) *Extractor {
	return &Extractor{client: client, opts: opts}
}

// Source is a readable checkout of a repository.
type Source struct {
	Location string // What the caller asked for
	Path     string // Local path git commands run against
	tempDir  string
}

// Close removes the temporary clone, if any.
func (s *Source) Close() error {
	if s.tempDir == "" {
		return nil
	}
	return os.RemoveAll(s.tempDir)
}

// Open makes location readable. Remote URLs are cloned without a work tree
// into a temporary directory owned by the returned Source.
func (e *Extractor) Open(ctx context.Context, location string) (*Source, error) {
	if location == "" {
		return nil, contract.ExtractionError("open", fmt.Errorf("repository location is empty"))
	}

	if !contract.IsRemoteLocation(location) {
		if _, err := os.Stat(location); err != nil {
			return nil, contract.ExtractionError("open", err)
		}
		root, err := e.client.GetRepoRoot(ctx, location)
		if err != nil {
			return nil, contract.ExtractionError("open", err)
		}
		return &Source{Location: location, Path: root}, nil
	}

	tempDir, err := os.MkdirTemp("", "busfactor-clone-*")
	if err != nil {
		return nil, contract.ExtractionError("clone", err)
	}
	dest := filepath.Join(tempDir, "repo")
	logger.Debug().Str("url", location).Str("dest", dest).Msg("cloning repository")
	if err := e.client.Clone(ctx, location, dest); err != nil {
		_ = os.RemoveAll(tempDir)
		return nil, contract.ExtractionError("clone", err)
	}
	return &Source{Location: location, Path: dest, tempDir: tempDir}, nil
}

// Head returns the HEAD commit of the source, or "" if it cannot be read.
func (e *Extractor) Head(ctx context.Context, src *Source) string {
	hash, err := e.client.GetRepoHash(ctx, src.Path)
	if err != nil {
		return ""
	}
	return hash
}

// History returns the commits of src, oldest first, merges excluded.
// Every range over the sequence re-runs git, so it can be consumed again.
// A failing read yields an extraction error; a history without commits
// yields an empty-history error; an undecodable stat line yields an
// aggregation error. Iteration stops after the first error.
func (e *Extractor) History(ctx context.Context, src *Source) iter.Seq2[schema.CommitDiff, error] {
	return func(yield func(schema.CommitDiff, error) bool) {
		out, err := e.client.GetHistoryLog(ctx, src.Path, contract.LogOptions{
			MaxCommits: e.opts.MaxCommits,
			Since:      e.opts.Since,
		})
		if err != nil {
			if isEmptyRepoError(err) {
				yield(schema.CommitDiff{}, contract.EmptyHistoryError(src.Location))
				return
			}
			yield(schema.CommitDiff{}, contract.ExtractionError("log", err))
			return
		}

		seen := 0
		for commit, err := range ParseLog(out) {
			if err != nil {
				yield(schema.CommitDiff{}, err)
				return
			}
			if e.opts.ExcludeBots && e.opts.IsBot != nil && e.opts.IsBot(commit.Author) {
				continue
			}
			seen++
			if !yield(commit, nil) {
				return
			}
		}
		if seen == 0 {
			yield(schema.CommitDiff{}, contract.EmptyHistoryError(src.Location))
		}
	}
}

// isEmptyRepoError detects git's complaint about a branch without commits.
func isEmptyRepoError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "does not have any commits yet") ||
		strings.Contains(msg, "bad default revision 'HEAD'")
}

// ParseLog decodes the output of GitClient.GetHistoryLog lazily.
func ParseLog(out []byte) iter.Seq2[schema.CommitDiff, error] {
	return func(yield func(schema.CommitDiff, error) bool) {
		scanner := bufio.NewScanner(bytes.NewReader(out))
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

		var current *schema.CommitDiff
		flush := func() bool {
			if current == nil {
				return true
			}
			c := *current
			current = nil
			return yield(c, nil)
		}

		lineNo := 0
		for scanner.Scan() {
			lineNo++
			line := strings.TrimRight(scanner.Text(), "\r")

			switch {
			case strings.TrimSpace(line) == "":
				continue
			case strings.HasPrefix(line, contract.LogHeaderPrefix):
				if !flush() {
					return
				}
				commit, err := parseCommitHeader(line)
				if err != nil {
					yield(schema.CommitDiff{}, contract.AggregationError(fmt.Sprintf("line %d", lineNo), err))
					return
				}
				current = &commit
			case strings.HasPrefix(line, " "):
				if current != nil {
					applySummaryLine(current, strings.TrimSpace(line))
				}
			default:
				if current == nil {
					yield(schema.CommitDiff{}, contract.AggregationError(fmt.Sprintf("line %d", lineNo), fmt.Errorf("stat line before any commit header: %q", line)))
					return
				}
				change, err := parseFileStatsLine(line)
				if err != nil {
					yield(schema.CommitDiff{}, contract.AggregationError(fmt.Sprintf("line %d", lineNo), err))
					return
				}
				current.Changes = append(current.Changes, change)
			}
		}
		if err := scanner.Err(); err != nil {
			yield(schema.CommitDiff{}, contract.AggregationError("scan", err))
			return
		}
		flush()
	}
}

// parseCommitHeader parses "--<hash>|<name>|<email>|<date>".
// Names may contain '|', so hash, email and date are taken from the ends.
func parseCommitHeader(line string) (schema.CommitDiff, error) {
	parts := strings.Split(strings.TrimPrefix(line, contract.LogHeaderPrefix), "|")
	if len(parts) < 4 {
		return schema.CommitDiff{}, fmt.Errorf("malformed commit header: %q", line)
	}
	n := len(parts)
	ts, err := time.Parse(time.RFC3339, strings.TrimSpace(parts[n-1]))
	if err != nil {
		return schema.CommitDiff{}, fmt.Errorf("malformed commit date in %q: %w", line, err)
	}
	return schema.CommitDiff{
		Hash: parts[0],
		Author: schema.Author{
			Name:  strings.Join(parts[1:n-2], "|"),
			Email: parts[n-2],
		},
		Timestamp: ts,
	}, nil
}

// parseFileStatsLine parses "<added>\t<removed>\t<path>". Binary files report "-".
func parseFileStatsLine(line string) (schema.FileChange, error) {
	parts := strings.SplitN(line, "\t", 3)
	if len(parts) != 3 {
		return schema.FileChange{}, fmt.Errorf("malformed numstat line: %q", line)
	}

	var change schema.FileChange
	if parts[0] == "-" && parts[1] == "-" {
		change.Binary = true
	} else {
		added, err := strconv.Atoi(parts[0])
		if err != nil {
			return schema.FileChange{}, fmt.Errorf("malformed added count in %q: %w", line, err)
		}
		removed, err := strconv.Atoi(parts[1])
		if err != nil {
			return schema.FileChange{}, fmt.Errorf("malformed removed count in %q: %w", line, err)
		}
		change.Added, change.Removed = added, removed
	}

	oldPath, newPath := ParseRenamePath(parts[2])
	change.Path = newPath
	if oldPath != newPath {
		change.RenamedFrom = oldPath
	}
	return change, nil
}

// ParseRenamePath splits a numstat path into its old and new form.
// It handles "old => new" and "pre{old => new}suf"; plain paths return twice.
func ParseRenamePath(path string) (string, string) {
	if !strings.Contains(path, " => ") {
		return path, path
	}

	braceStart := strings.Index(path, "{")
	braceEnd := strings.LastIndex(path, "}")
	if braceStart == -1 || braceEnd < braceStart {
		parts := strings.SplitN(path, " => ", 2)
		return parts[0], parts[1]
	}

	prefix := path[:braceStart]
	renamePart := path[braceStart+1 : braceEnd]
	suffix := path[braceEnd+1:]

	renameParts := strings.SplitN(renamePart, " => ", 2)
	if len(renameParts) != 2 {
		return path, path
	}
	oldPath := cleanJoinedPath(prefix + renameParts[0] + suffix)
	newPath := cleanJoinedPath(prefix + renameParts[1] + suffix)
	return oldPath, newPath
}

// cleanJoinedPath fixes the doubled slash left by an empty side such as "{ => sub}/f.go".
func cleanJoinedPath(p string) string {
	p = strings.ReplaceAll(p, "//", "/")
	return strings.TrimPrefix(p, "/")
}

// applySummaryLine records creations and deletions from --summary output.
func applySummaryLine(commit *schema.CommitDiff, line string) {
	var deleted bool
	switch {
	case strings.HasPrefix(line, "delete mode "):
		deleted = true
	case strings.HasPrefix(line, "create mode "):
		deleted = false
	default:
		return // rename and mode change lines carry nothing numstat lacks
	}

	// "<verb> mode <octal> <path>"
	fields := strings.SplitN(line, " ", 4)
	if len(fields) != 4 {
		return
	}
	path := fields[3]
	for i := range commit.Changes {
		if commit.Changes[i].Path == path {
			commit.Changes[i].Deleted = deleted
			return
		}
	}
	if deleted {
		commit.Changes = append(commit.Changes, schema.FileChange{Path: path, Deleted: true})
	}
}
