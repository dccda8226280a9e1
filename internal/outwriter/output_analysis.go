package outwriter

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/huangsam/busfactor/internal/contract"
	"github.com/huangsam/busfactor/internal/parquet"
	"github.com/huangsam/busfactor/schema"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// WriteAnalysisResult outputs an analysis result, dispatching based on the output format configured.
func WriteAnalysisResult(result *schema.AnalysisResult, cfg *contract.Config, duration time.Duration) error {
	if result == nil {
		return errors.New("no analysis result to write")
	}

	switch cfg.Output {
	case schema.JSONOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, result)
		}, "Wrote JSON")
	case schema.YAMLOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeYAML(w, result)
		}, "Wrote YAML")
	case schema.CSVOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeContributorsCSV(w, result.Contributors, cfg.Precision)
		}, "Wrote CSV")
	case schema.ParquetOut:
		if cfg.OutputFile == "" {
			return errors.New("--output-file is required for parquet output")
		}
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return parquet.WriteContributorRisks(w, parquet.ConvertContributorProfiles("", result.Contributors))
		}, "Wrote Parquet")
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeAnalysisTables(w, result, cfg, duration)
		}, "Wrote table")
	}
}

// writeAnalysisTables renders the human-readable report.
func writeAnalysisTables(w io.Writer, result *schema.AnalysisResult, cfg *contract.Config, duration time.Duration) error {
	health := result.CodebaseHealth

	if result.ProjectSummary != nil {
		if _, err := fmt.Fprintf(w, "%s\n\n", *result.ProjectSummary); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "Bus factor: %s | Files: %s | Commits: %s | Active contributors: %s\n",
		busFactorLabel(health.BusFactor, cfg.UseColors),
		humanize.Comma(int64(health.TotalFiles)),
		humanize.Comma(int64(health.TotalCommits)),
		humanize.Comma(int64(health.ActiveContributors)),
	); err != nil {
		return err
	}
	if len(result.PrimaryLanguages) > 0 {
		if _, err := fmt.Fprintf(w, "Primary languages: %s\n", strings.Join(result.PrimaryLanguages, ", ")); err != nil {
			return err
		}
	}

	if len(result.Contributors) > 0 {
		if _, err := fmt.Fprintln(w, "\nContributors"); err != nil {
			return err
		}
		if err := writeContributorTable(w, result, cfg); err != nil {
			return err
		}
	}

	if len(health.HotSpotDetails) > 0 {
		if _, err := fmt.Fprintln(w, "\nHot spots"); err != nil {
			return err
		}
		if err := writeHotSpotTable(w, health.HotSpotDetails, cfg); err != nil {
			return err
		}
	}

	if len(result.Recommendations) > 0 {
		if _, err := fmt.Fprintln(w, "\nRecommendations"); err != nil {
			return err
		}
		for _, rec := range result.Recommendations {
			if _, err := fmt.Fprintf(w, "%d. [%s] %s\n", rec.Priority, rec.Kind, rec.Message); err != nil {
				return err
			}
		}
	}

	head := result.HeadCommit
	if len(head) > 8 {
		head = head[:8]
	}
	_, err := fmt.Fprintf(w, "\nAnalysis completed in %v with %d workers. Head commit: %s\n", duration, cfg.Workers, head)
	return err
}

// writeContributorTable lists at most cfg.ResultLimit contributors in result order.
func writeContributorTable(w io.Writer, result *schema.AnalysisResult, cfg *contract.Config) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Rank", "Contributor", "Commits", "Added", "Deleted", "Days", "Expertise", "Risk", "At Risk", "Last Commit"})
	table.Configure(func(c *tablewriter.Config) {
		c.Row.Alignment.Global = tw.AlignRight
	})

	limit := len(result.Contributors)
	if cfg.ResultLimit > 0 {
		limit = min(limit, cfg.ResultLimit)
	}

	var data [][]string
	for i, p := range result.Contributors[:limit] {
		data = append(data, []string{
			strconv.Itoa(i + 1),
			schema.AbbreviateName(p.Username),
			humanize.Comma(int64(p.TotalCommits)),
			humanize.Comma(int64(p.LinesAdded)),
			humanize.Comma(int64(p.LinesDeleted)),
			strconv.Itoa(p.ActiveDays),
			expertiseLabel(p.ExpertiseLevel, cfg.UseColors),
			riskLabel(p.BusFactorRisk, cfg.UseColors),
			strconv.Itoa(len(p.AtRiskFiles)),
			humanize.RelTime(p.LastCommitDate, result.GeneratedAt, "ago", "from now"),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

// writeHotSpotTable lists the hot spots with their primary owner.
func writeHotSpotTable(w io.Writer, spots []schema.FileRisk, cfg *contract.Config) error {
	_, fmtPct := createFormatters(cfg.Precision)
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Rank", "Path", "Commits", "Contrib", "Bus Factor", "Owner", "Share"})
	table.Configure(func(c *tablewriter.Config) {
		c.Row.Alignment.Global = tw.AlignRight
	})

	width := GetMaxTablePathWidth(cfg)
	var data [][]string
	for i, f := range spots {
		data = append(data, []string{
			strconv.Itoa(i + 1),
			contract.TruncatePath(f.Path, width),
			strconv.Itoa(f.Commits),
			strconv.Itoa(f.Contributors),
			strconv.Itoa(f.BusFactor),
			schema.AbbreviateName(f.PrimaryOwner),
			fmtPct(f.PrimaryOwnerPct),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

// writeContributorsCSV writes one row per contributor.
func writeContributorsCSV(w io.Writer, profiles []schema.ContributorProfile, precision int) error {
	fmtFloat, _ := createFormatters(precision)
	header := []string{
		"username",
		"email",
		"total_commits",
		"lines_added",
		"lines_deleted",
		"active_days",
		"first_commit",
		"last_commit",
		"commit_frequency",
		"expertise_level",
		"expertise_score",
		"bus_factor_risk",
		"at_risk_files",
		"knowledge_areas",
	}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		for _, p := range profiles {
			rec := []string{
				p.Username,
				p.Email,
				strconv.Itoa(p.TotalCommits),
				strconv.Itoa(p.LinesAdded),
				strconv.Itoa(p.LinesDeleted),
				strconv.Itoa(p.ActiveDays),
				p.FirstCommitDate.Format(contract.DateTimeFormat),
				p.LastCommitDate.Format(contract.DateTimeFormat),
				fmtFloat(p.CommitFrequency),
				string(p.ExpertiseLevel),
				fmtFloat(p.ExpertiseScore),
				string(p.BusFactorRisk),
				strings.Join(p.AtRiskFiles, "|"),
				strings.Join(p.KnowledgeAreas, "|"),
			}
			if err := cw.Write(rec); err != nil {
				return fmt.Errorf("failed to write CSV record: %w", err)
			}
		}
		return nil
	})
}
