package contract

import (
	"errors"
	"fmt"
)

// Category tags an analysis failure for the polling contract.
type Category string

// Error categories raised by the pipeline.
const (
	CategoryExtraction        Category = "extraction"
	CategoryEmptyHistory      Category = "empty_history"
	CategoryAggregation       Category = "aggregation"
	CategoryClassification    Category = "classification"
	CategoryEnrichmentTimeout Category = "enrichment_timeout"
	CategoryInternal          Category = "internal"
)

// AnalysisError is a pipeline failure tagged with its category.
type AnalysisError struct {
	Category Category
	Op       string
	Err      error
}

func (e *AnalysisError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Category, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Category, e.Op, e.Err)
}

func (e *AnalysisError) Unwrap() error { return e.Err }

// Is matches any AnalysisError with the same category, so sentinels work with errors.Is.
func (e *AnalysisError) Is(target error) bool {
	t, ok := target.(*AnalysisError)
	return ok && t.Err == nil && t.Category == e.Category
}

// Sentinels for errors.Is checks against a category.
var (
	ErrExtraction        = &AnalysisError{Category: CategoryExtraction}
	ErrEmptyHistory      = &AnalysisError{Category: CategoryEmptyHistory}
	ErrAggregation       = &AnalysisError{Category: CategoryAggregation}
	ErrClassification    = &AnalysisError{Category: CategoryClassification}
	ErrEnrichmentTimeout = &AnalysisError{Category: CategoryEnrichmentTimeout}
)

// ExtractionError reports an unreachable, unauthorized or unreadable repository.
func ExtractionError(op string, err error) error {
	return &AnalysisError{Category: CategoryExtraction, Op: op, Err: err}
}

// EmptyHistoryError reports a repository without commits.
func EmptyHistoryError(location string) error {
	return &AnalysisError{Category: CategoryEmptyHistory, Err: fmt.Errorf("no commits found in %s", location)}
}

// AggregationError reports a corrupt or undecodable diff stream.
func AggregationError(op string, err error) error {
	return &AnalysisError{Category: CategoryAggregation, Op: op, Err: err}
}

// ClassificationError reports an invariant violation such as a negative line count.
func ClassificationError(op string, err error) error {
	return &AnalysisError{Category: CategoryClassification, Op: op, Err: err}
}

// EnrichmentTimeout reports a narrative call that failed or ran out of time.
func EnrichmentTimeout(op string, err error) error {
	return &AnalysisError{Category: CategoryEnrichmentTimeout, Op: op, Err: err}
}

// CategoryOf returns the category of err, or CategoryInternal if it is untagged.
func CategoryOf(err error) Category {
	var ae *AnalysisError
	if errors.As(err, &ae) {
		return ae.Category
	}
	return CategoryInternal
}
