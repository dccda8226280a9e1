package schema

import "time"

// Author identifies the person behind a commit.
type Author struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Key returns the identity used to merge an author across commits.
// Email is preferred because display names drift between machines.
func (a Author) Key() string {
	return identityKey(a.Name, a.Email)
}

// FileChange is the numstat entry of one file inside one commit.
type FileChange struct {
	Path        string `json:"path"`
	Added       int    `json:"added"`
	Removed     int    `json:"removed"`
	RenamedFrom string `json:"renamed_from,omitempty"`
	Binary      bool   `json:"binary,omitempty"`
	Deleted     bool   `json:"deleted,omitempty"`
}

// CommitDiff is one non-merge commit with its per-file changes.
type CommitDiff struct {
	Hash      string       `json:"hash"`
	Author    Author       `json:"author"`
	Timestamp time.Time    `json:"timestamp"`
	Changes   []FileChange `json:"changes"`
}

// FileOwnership tracks who wrote the lines of a file, keyed by its current path.
type FileOwnership struct {
	Path             string               // Terminal identity after rename resolution
	Lines            map[string]int       // Contributor key to attributed lines
	LastContribution map[string]time.Time // Contributor key to their latest touch
	LastModified     time.Time
	Commits          int
	Contributors     map[string]int // Contributor key to commits touching the file
	Binary           bool
	Deleted          bool
	Aliases          []string // Earlier paths of the same file
}

// NewFileOwnership returns an empty ownership record for path.
func NewFileOwnership(path string) *FileOwnership {
	return &FileOwnership{
		Path:             path,
		Lines:            make(map[string]int),
		LastContribution: make(map[string]time.Time),
		Contributors:     make(map[string]int),
	}
}

// TotalLines returns the sum of attributed lines.
func (f *FileOwnership) TotalLines() int {
	total := 0
	for _, n := range f.Lines {
		total += n
	}
	return total
}

// Share returns the fraction of lines owned by contributor.
func (f *FileOwnership) Share(contributor string) float64 {
	total := f.TotalLines()
	if total == 0 {
		return 0
	}
	return float64(f.Lines[contributor]) / float64(total)
}

// FileShare is a contributor's stake in one file.
type FileShare struct {
	Path         string  `json:"path" yaml:"path"`
	Lines        int     `json:"lines" yaml:"lines"`
	OwnershipPct float64 `json:"ownership_pct" yaml:"ownership_pct"`
}
