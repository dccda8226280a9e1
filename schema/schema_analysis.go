package schema

import "time"

// ContributorProfile summarizes one contributor across the whole history.
type ContributorProfile struct {
	Username            string         `json:"username" yaml:"username"`
	Email               string         `json:"email" yaml:"email"`
	TotalCommits        int            `json:"total_commits" yaml:"total_commits"`
	LinesAdded          int            `json:"lines_added" yaml:"lines_added"`
	LinesDeleted        int            `json:"lines_deleted" yaml:"lines_deleted"`
	ActiveDays          int            `json:"active_days" yaml:"active_days"`
	FirstCommitDate     time.Time      `json:"first_commit_date" yaml:"first_commit_date"`
	LastCommitDate      time.Time      `json:"last_commit_date" yaml:"last_commit_date"`
	CommitFrequency     float64        `json:"commit_frequency" yaml:"commit_frequency"`
	SingleDay           bool           `json:"single_day,omitempty" yaml:"single_day,omitempty"`
	ExpertiseLevel      ExpertiseLevel `json:"expertise_level" yaml:"expertise_level"`
	ExpertiseScore      float64        `json:"expertise_score" yaml:"expertise_score"`
	FilesContributed    []FileShare    `json:"files_contributed" yaml:"files_contributed"`
	KnowledgeAreas      []string       `json:"knowledge_areas" yaml:"knowledge_areas"`
	ContributionSummary *string        `json:"contribution_summary,omitempty" yaml:"contribution_summary,omitempty"`
	BusFactorRisk       RiskLevel      `json:"bus_factor_risk" yaml:"bus_factor_risk"`
	AtRiskFiles         []string       `json:"at_risk_files,omitempty" yaml:"at_risk_files,omitempty"`
}

// Key returns the identity key for the profile.
func (p ContributorProfile) Key() string {
	return identityKey(p.Username, p.Email)
}

// FileRisk is the per-file detail behind a hot spot.
type FileRisk struct {
	Path            string  `json:"path" yaml:"path"`
	Commits         int     `json:"commits" yaml:"commits"`
	Contributors    int     `json:"contributors" yaml:"contributors"`
	BusFactor       int     `json:"bus_factor" yaml:"bus_factor"`
	PrimaryOwner    string  `json:"primary_owner" yaml:"primary_owner"`
	PrimaryOwnerPct float64 `json:"primary_owner_pct" yaml:"primary_owner_pct"`
}

// CodebaseHealth holds repository-wide risk metrics.
// BusFactor is 0 when it is undefined, which only happens for empty histories.
type CodebaseHealth struct {
	TotalFiles         int        `json:"total_files" yaml:"total_files"`
	TotalCommits       int        `json:"total_commits" yaml:"total_commits"`
	ActiveContributors int        `json:"active_contributors" yaml:"active_contributors"`
	BusFactor          int        `json:"bus_factor" yaml:"bus_factor"`
	HotSpots           []string   `json:"hot_spots" yaml:"hot_spots"`
	HotSpotDetails     []FileRisk `json:"hot_spot_details" yaml:"hot_spot_details"`
}

// Recommendation is a single mitigation action.
type Recommendation struct {
	Kind        RecommendationKind   `json:"kind" yaml:"kind"`
	Priority    int                  `json:"priority" yaml:"priority"`
	Message     string               `json:"message" yaml:"message"`
	Contributor string               `json:"contributor,omitempty" yaml:"contributor,omitempty"`
	Files       []string             `json:"files,omitempty" yaml:"files,omitempty"`
	Source      RecommendationSource `json:"source" yaml:"source"`
}

// AnalysisResult is the immutable output of a completed job.
type AnalysisResult struct {
	ProjectSummary   *string              `json:"project_summary,omitempty" yaml:"project_summary,omitempty"`
	PrimaryLanguages []string             `json:"primary_languages" yaml:"primary_languages"`
	Contributors     []ContributorProfile `json:"contributors" yaml:"contributors"`
	CodebaseHealth   CodebaseHealth       `json:"codebase_health" yaml:"codebase_health"`
	Recommendations  []Recommendation     `json:"recommendations" yaml:"recommendations"`
	HeadCommit       string               `json:"head_commit,omitempty" yaml:"head_commit,omitempty"`
	GeneratedAt      time.Time            `json:"generated_at" yaml:"generated_at"`
}

// EmptyResult is the zero-valued result reported for a repository without commits.
func EmptyResult(now time.Time) *AnalysisResult {
	return &AnalysisResult{
		PrimaryLanguages: []string{},
		Contributors:     []ContributorProfile{},
		CodebaseHealth: CodebaseHealth{
			HotSpots:       []string{},
			HotSpotDetails: []FileRisk{},
		},
		Recommendations: []Recommendation{},
		GeneratedAt:     now,
	}
}
