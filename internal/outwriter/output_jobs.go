package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/huangsam/busfactor/internal/contract"
	"github.com/huangsam/busfactor/schema"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// jobView is the serialized shape of a stored job, without the result payload.
type jobView struct {
	ID            string  `json:"id" yaml:"id"`
	WorkspaceID   string  `json:"workspace_id" yaml:"workspace_id"`
	RepoLocation  string  `json:"repo_location" yaml:"repo_location"`
	Status        string  `json:"status" yaml:"status"`
	Progress      int32   `json:"progress" yaml:"progress"`
	CurrentStep   string  `json:"current_step,omitempty" yaml:"current_step,omitempty"`
	Message       string  `json:"message,omitempty" yaml:"message,omitempty"`
	ErrorCategory string  `json:"error_category,omitempty" yaml:"error_category,omitempty"`
	BusFactor     *int32  `json:"bus_factor,omitempty" yaml:"bus_factor,omitempty"`
	CreatedAt     string  `json:"created_at" yaml:"created_at"`
	CompletedAt   *string `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
}

func toJobView(rec schema.JobRecord) jobView {
	v := jobView{
		ID:           rec.JobID,
		WorkspaceID:  rec.WorkspaceID,
		RepoLocation: rec.RepoLocation,
		Status:       rec.Status,
		Progress:     rec.Progress,
		BusFactor:    rec.BusFactor,
		CreatedAt:    rec.CreatedAt.Format(contract.DateTimeFormat),
	}
	if rec.CurrentStep != nil {
		v.CurrentStep = *rec.CurrentStep
	}
	if rec.Message != nil {
		v.Message = *rec.Message
	}
	if rec.ErrorCategory != nil {
		v.ErrorCategory = *rec.ErrorCategory
	}
	if rec.CompletedAt != nil {
		s := rec.CompletedAt.Format(contract.DateTimeFormat)
		v.CompletedAt = &s
	}
	return v
}

// WriteJobRecords outputs stored jobs, newest first, in the configured format.
func WriteJobRecords(records []schema.JobRecord, cfg *contract.Config) error {
	views := make([]jobView, len(records))
	for i, rec := range records {
		views[i] = toJobView(rec)
	}

	switch cfg.Output {
	case schema.JSONOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error { return writeJSON(w, views) }, "Wrote JSON")
	case schema.YAMLOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error { return writeYAML(w, views) }, "Wrote YAML")
	case schema.CSVOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error { return writeJobsCSV(w, views) }, "Wrote CSV")
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error { return writeJobTable(w, records) }, "Wrote table")
	}
}

func writeJobTable(w io.Writer, records []schema.JobRecord) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Job", "Workspace", "Status", "Progress", "Bus Factor", "Created"})
	table.Configure(func(c *tablewriter.Config) {
		c.Row.Alignment.Global = tw.AlignLeft
	})

	var data [][]string
	for _, rec := range records {
		id := rec.JobID
		if len(id) > 8 {
			id = id[:8]
		}
		bf := "-"
		if rec.BusFactor != nil {
			bf = strconv.Itoa(int(*rec.BusFactor))
		}
		data = append(data, []string{
			id,
			rec.WorkspaceID,
			rec.Status,
			fmt.Sprintf("%d%%", rec.Progress),
			bf,
			humanize.Time(rec.CreatedAt),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "Showing %d jobs\n", len(records))
	return err
}

func writeJobsCSV(w io.Writer, views []jobView) error {
	header := []string{"job_id", "workspace_id", "repo_location", "status", "progress", "current_step", "error_category", "bus_factor", "created_at", "completed_at"}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		for _, v := range views {
			bf, completed := "", ""
			if v.BusFactor != nil {
				bf = strconv.Itoa(int(*v.BusFactor))
			}
			if v.CompletedAt != nil {
				completed = *v.CompletedAt
			}
			rec := []string{
				v.ID, v.WorkspaceID, v.RepoLocation, v.Status, strconv.Itoa(int(v.Progress)),
				v.CurrentStep, v.ErrorCategory, bf, v.CreatedAt, completed,
			}
			if err := cw.Write(rec); err != nil {
				return fmt.Errorf("failed to write CSV record: %w", err)
			}
		}
		return nil
	})
}

// PrintStoreStatus prints job store status information.
func PrintStoreStatus(w io.Writer, status schema.StoreStatus) {
	_, _ = fmt.Fprintf(w, "Job Store Backend: %s\n", status.Backend)
	_, _ = fmt.Fprintf(w, "Connected: %t\n", status.Connected)
	if !status.Connected {
		return
	}
	_, _ = fmt.Fprintf(w, "Total Jobs: %s\n", humanize.Comma(int64(status.TotalJobs)))
	_, _ = fmt.Fprintf(w, "Failed Jobs: %s\n", humanize.Comma(int64(status.FailedJobs)))
	if status.TotalJobs > 0 {
		_, _ = fmt.Fprintf(w, "Last Job ID: %s\n", status.LastJobID)
		_, _ = fmt.Fprintf(w, "Last Job: %s\n", status.LastJobTime.Format("2006-01-02 15:04:05"))
		_, _ = fmt.Fprintf(w, "Oldest Job: %s\n", status.OldestJobTime.Format("2006-01-02 15:04:05"))
	}
	_, _ = fmt.Fprintln(w, "Table Sizes:")
	for _, table := range slices.Sorted(maps.Keys(status.TableSizes)) {
		_, _ = fmt.Fprintf(w, "  %s: %d rows\n", table, status.TableSizes[table])
	}
}
