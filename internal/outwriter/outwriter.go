// Package outwriter has output and writer logic.
package outwriter

import (
	"io"
	"time"

	"github.com/huangsam/busfactor/internal/contract"
	"github.com/huangsam/busfactor/schema"
)

// OutWriter provides a unified interface for all output operations.
// It encapsulates the various output formats and provides a clean API for the commands.
type OutWriter struct{}

// NewOutWriter creates a new instance of the output writer.
func NewOutWriter() *OutWriter {
	return &OutWriter{}
}

// WriteAnalysis prints an analysis result using the configured output format.
func (ow *OutWriter) WriteAnalysis(result *schema.AnalysisResult, cfg *contract.Config, duration time.Duration) error {
	return WriteAnalysisResult(result, cfg, duration)
}

// WriteJobs prints stored jobs using the configured output format.
func (ow *OutWriter) WriteJobs(records []schema.JobRecord, cfg *contract.Config) error {
	return WriteJobRecords(records, cfg)
}

// WriteStoreStatus prints the job store status.
func (ow *OutWriter) WriteStoreStatus(w io.Writer, status schema.StoreStatus) {
	PrintStoreStatus(w, status)
}
