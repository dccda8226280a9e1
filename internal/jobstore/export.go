package jobstore

import (
	"errors"
	"fmt"
	"io"

	"github.com/huangsam/busfactor/internal/contract"
	"github.com/huangsam/busfactor/internal/parquet"
)

// ExportJobs writes every stored job and the contributor rows of completed
// jobs to two Parquet files named after outputFile.
func ExportJobs(store contract.JobStore, outputFile string, out io.Writer) error {
	if outputFile == "" {
		return errors.New("--output-file is required for export command")
	}

	status, err := store.GetStatus()
	if err != nil {
		return fmt.Errorf("failed to get job store status: %w", err)
	}
	if status.TotalJobs == 0 {
		return errors.New("no job data found to export")
	}
	_, _ = fmt.Fprintf(out, "Exporting data from %s backend...\n", status.Backend)
	_, _ = fmt.Fprintf(out, "Total jobs: %d\n", status.TotalJobs)

	records, err := store.ListJobs(contract.MaxResultLimit)
	if err != nil {
		return fmt.Errorf("failed to retrieve jobs: %w", err)
	}
	contributors, err := parquet.ConvertStoredResults(records)
	if err != nil {
		return fmt.Errorf("failed to decode stored results: %w", err)
	}
	runs := parquet.ConvertJobRecords(records)

	jobsFile := outputFile + ".jobs.parquet"
	if err := parquet.WriteJobRunsParquet(runs, jobsFile); err != nil {
		return fmt.Errorf("failed to write jobs: %w", err)
	}
	_, _ = fmt.Fprintf(out, "Exported %d jobs to: %s\n", len(runs), jobsFile)

	contributorsFile := outputFile + ".contributors.parquet"
	if err := parquet.WriteContributorRisksParquet(contributors, contributorsFile); err != nil {
		return fmt.Errorf("failed to write contributors: %w", err)
	}
	_, _ = fmt.Fprintf(out, "Exported %d contributor rows to: %s\n", len(contributors), contributorsFile)
	return nil
}
