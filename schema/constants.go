package schema

// Custom string types for type safety.
type (
	// OutputMode represents the format of the output.
	OutputMode string

	// DatabaseBackend represents the database backend for the job store.
	DatabaseBackend string

	// JobStatus represents the lifecycle state of an analysis job.
	JobStatus string

	// Step represents a pipeline stage inside the processing state.
	Step string

	// ExpertiseLevel represents the expertise band of a contributor.
	ExpertiseLevel string

	// RiskLevel represents the bus-factor risk of a contributor.
	RiskLevel string

	// RecommendationKind represents the category of a recommendation.
	RecommendationKind string

	// RecommendationSource tells whether a recommendation came from the engine or the narrator.
	RecommendationSource string
)

// All output modes supported.
const (
	TextOut    OutputMode = "text" // default
	JSONOut    OutputMode = "json"
	YAMLOut    OutputMode = "yaml"
	CSVOut     OutputMode = "csv"
	ParquetOut OutputMode = "parquet"
)

// All job store backends supported.
const (
	SQLiteBackend     DatabaseBackend = "sqlite" // default
	MySQLBackend      DatabaseBackend = "mysql"
	PostgreSQLBackend DatabaseBackend = "postgresql"
	NoneBackend       DatabaseBackend = "none"
)

// Job lifecycle states.
const (
	StatusQueued     JobStatus = "queued"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// Pipeline steps, in execution order.
const (
	StepExtracting    Step = "extracting"
	StepAggregating   Step = "aggregating"
	StepProfiling     Step = "profiling"
	StepAnalyzingRisk Step = "analyzing_risk"
	StepSynthesizing  Step = "synthesizing"
)

// Expertise bands, ordered from lowest to highest.
const (
	Novice       ExpertiseLevel = "novice"
	Intermediate ExpertiseLevel = "intermediate"
	Advanced     ExpertiseLevel = "advanced"
	Expert       ExpertiseLevel = "expert"
)

// Bus-factor risk levels.
const (
	LowRisk    RiskLevel = "low"
	MediumRisk RiskLevel = "medium"
	HighRisk   RiskLevel = "high"
)

// Recommendation kinds.
const (
	KnowledgeTransfer RecommendationKind = "knowledge_transfer"
	SecondOwner       RecommendationKind = "second_owner"
	Narrative         RecommendationKind = "narrative"
)

// Recommendation sources.
const (
	SourceEngine    RecommendationSource = "engine"
	SourceNarrative RecommendationSource = "narrative"
)

// AllSteps lists the pipeline steps in the order they run.
var AllSteps = []Step{StepExtracting, StepAggregating, StepProfiling, StepAnalyzingRisk, StepSynthesizing}

// StepWeights is the progress each step contributes once it finishes. The weights sum to 100.
var StepWeights = map[Step]int{
	StepExtracting:    20,
	StepAggregating:   20,
	StepProfiling:     20,
	StepAnalyzingRisk: 25,
	StepSynthesizing:  15,
}

// ValidOutputModes lists all valid output modes.
var ValidOutputModes = map[OutputMode]struct{}{
	TextOut:    {},
	JSONOut:    {},
	YAMLOut:    {},
	CSVOut:     {},
	ParquetOut: {},
}

// ValidDatabaseBackends lists all valid job store backends.
var ValidDatabaseBackends = map[DatabaseBackend]struct{}{
	SQLiteBackend:     {},
	MySQLBackend:      {},
	PostgreSQLBackend: {},
	NoneBackend:       {},
}

// IsTerminal reports whether no further transitions are possible.
func (s JobStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Index returns the position of the step in AllSteps, or -1.
func (s Step) Index() int {
	for i, step := range AllSteps {
		if step == s {
			return i
		}
	}
	return -1
}

// Rank orders the expertise bands so they can be compared.
func (e ExpertiseLevel) Rank() int {
	switch e {
	case Intermediate:
		return 1
	case Advanced:
		return 2
	case Expert:
		return 3
	default:
		return 0
	}
}
