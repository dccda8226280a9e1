// Package jobstore mirrors analysis jobs into a SQL database.
package jobstore

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/huangsam/busfactor/internal/contract"
	"github.com/huangsam/busfactor/schema"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	_ "modernc.org/sqlite"             // SQLite driver
)

// JobsTable holds one row per analysis job.
const JobsTable = "busfactor_jobs"

// sqliteTimeFormat is fixed-width so stored timestamps sort as text.
const sqliteTimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// ErrNotFound is returned when a job id has no stored record.
var ErrNotFound = errors.New("job record not found")

const jobColumns = `job_id, workspace_id, repo_location, status, progress, current_step, message,
	error_category, created_at, started_at, completed_at, bus_factor, total_files, total_commits, result_json`

// JobStoreImpl implements the JobStore interface.
type JobStoreImpl struct {
	db      *sql.DB
	backend schema.DatabaseBackend
}

var _ contract.JobStore = &JobStoreImpl{} // Compile-time check

// NewJobStore opens the store for backend and migrates it to the latest schema.
// The none backend yields a store that accepts and discards everything.
func NewJobStore(backend schema.DatabaseBackend, connStr string) (contract.JobStore, error) {
	switch backend {
	case schema.NoneBackend:
		return &JobStoreImpl{backend: backend}, nil
	case schema.SQLiteBackend, schema.MySQLBackend, schema.PostgreSQLBackend:
	default:
		return nil, fmt.Errorf("unsupported backend: %s", backend)
	}

	if err := Migrate(backend, connStr, -1, io.Discard); err != nil {
		return nil, fmt.Errorf("failed to prepare %s: %w", JobsTable, err)
	}
	db, err := openDB(backend, connStr)
	if err != nil {
		return nil, err
	}
	return &JobStoreImpl{db: db, backend: backend}, nil
}

// driverFor maps a backend onto its database/sql driver and DSN.
func driverFor(backend schema.DatabaseBackend, connStr string) (string, string, error) {
	switch backend {
	case schema.SQLiteBackend:
		if connStr == "" {
			connStr = contract.GetJobDBFilePath()
		}
		return "sqlite", connStr, nil
	case schema.MySQLBackend:
		cfg, err := mysql.ParseDSN(connStr)
		if err != nil {
			return "", "", fmt.Errorf("invalid MySQL connection string: %w", err)
		}
		cfg.ParseTime = true // DATETIME columns scan into time.Time
		return "mysql", cfg.FormatDSN(), nil
	case schema.PostgreSQLBackend:
		return "pgx", connStr, nil
	default:
		return "", "", fmt.Errorf("unsupported backend: %s", backend)
	}
}

func (s *JobStoreImpl) disabled() bool {
	return s.backend == schema.NoneBackend || s.db == nil
}

// SaveJob inserts or updates the record for job.
func (s *JobStoreImpl) SaveJob(job *schema.AnalysisJob) error {
	if s.disabled() {
		return nil
	}
	rec, err := ToRecord(job)
	if err != nil {
		return err
	}

	args := []any{
		rec.JobID, rec.WorkspaceID, rec.RepoLocation, rec.Status, rec.Progress, rec.CurrentStep, rec.Message,
		rec.ErrorCategory, s.formatTime(rec.CreatedAt), s.formatTimePtr(rec.StartedAt), s.formatTimePtr(rec.CompletedAt),
		rec.BusFactor, rec.TotalFiles, rec.TotalCommits, rec.ResultJSON,
	}
	if _, err := s.db.Exec(s.upsertQuery(), args...); err != nil {
		return fmt.Errorf("failed to save job %s: %w", rec.JobID, err)
	}
	return nil
}

func (s *JobStoreImpl) upsertQuery() string {
	table := quoteTableName(JobsTable, s.backend)
	updated := []string{"status", "progress", "current_step", "message", "error_category",
		"started_at", "completed_at", "bus_factor", "total_files", "total_commits", "result_json"}

	sets := make([]string, len(updated))
	switch s.backend {
	case schema.MySQLBackend:
		for i, col := range updated {
			sets[i] = fmt.Sprintf("%s = VALUES(%s)", col, col)
		}
		return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON DUPLICATE KEY UPDATE %s",
			table, jobColumns, placeholders(s.backend, 15), strings.Join(sets, ", "))
	default: // SQLite and PostgreSQL
		for i, col := range updated {
			sets[i] = fmt.Sprintf("%s = excluded.%s", col, col)
		}
		return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (job_id) DO UPDATE SET %s",
			table, jobColumns, placeholders(s.backend, 15), strings.Join(sets, ", "))
	}
}

// GetJob returns the stored record for id.
func (s *JobStoreImpl) GetJob(id string) (schema.JobRecord, error) {
	if s.disabled() {
		return schema.JobRecord{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE job_id = %s", jobColumns, quoteTableName(JobsTable, s.backend), placeholders(s.backend, 1))
	rec, err := s.scan(s.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return schema.JobRecord{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return schema.JobRecord{}, fmt.Errorf("failed to read job %s: %w", id, err)
	}
	return rec, nil
}

// ListJobs returns the newest records first, at most limit of them.
func (s *JobStoreImpl) ListJobs(limit int) ([]schema.JobRecord, error) {
	if s.disabled() {
		return nil, nil
	}
	if limit <= 0 {
		limit = contract.MaxResultLimit
	}
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY created_at DESC, job_id LIMIT %d", jobColumns, quoteTableName(JobsTable, s.backend), limit)
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []schema.JobRecord
	for rows.Next() {
		rec, err := s.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating jobs: %w", err)
	}
	return out, nil
}

// DeleteJobsBefore removes terminal jobs created before cutoff.
func (s *JobStoreImpl) DeleteJobsBefore(cutoff time.Time) (int64, error) {
	if s.disabled() {
		return 0, nil
	}
	ph := func(n int) string {
		if s.backend == schema.PostgreSQLBackend {
			return fmt.Sprintf("$%d", n)
		}
		return "?"
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE created_at < %s AND status IN (%s, %s)",
		quoteTableName(JobsTable, s.backend), ph(1), ph(2), ph(3))
	res, err := s.db.Exec(query, s.formatTime(cutoff), string(schema.StatusCompleted), string(schema.StatusFailed))
	if err != nil {
		return 0, fmt.Errorf("failed to delete jobs: %w", err)
	}
	return res.RowsAffected()
}

// GetStatus returns status information about the job store.
func (s *JobStoreImpl) GetStatus() (schema.StoreStatus, error) {
	status := schema.StoreStatus{
		Backend:    string(s.backend),
		Connected:  s.db != nil,
		TableSizes: make(map[string]int64),
	}
	if s.disabled() {
		return status, nil
	}

	table := quoteTableName(JobsTable, s.backend)
	if err := s.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&status.TotalJobs); err != nil {
		return status, fmt.Errorf("failed to count jobs: %w", err)
	}
	failedQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE status = %s", table, placeholders(s.backend, 1))
	if err := s.db.QueryRow(failedQuery, string(schema.StatusFailed)).Scan(&status.FailedJobs); err != nil {
		return status, fmt.Errorf("failed to count failed jobs: %w", err)
	}
	status.TableSizes[JobsTable] = int64(status.TotalJobs)

	if status.TotalJobs == 0 {
		return status, nil
	}

	var lastID string
	var lastTime, oldestTime any
	if err := s.db.QueryRow(fmt.Sprintf("SELECT job_id, created_at FROM %s ORDER BY created_at DESC LIMIT 1", table)).Scan(&lastID, &lastTime); err != nil {
		return status, fmt.Errorf("failed to get last job: %w", err)
	}
	if err := s.db.QueryRow(fmt.Sprintf("SELECT created_at FROM %s ORDER BY created_at ASC LIMIT 1", table)).Scan(&oldestTime); err != nil {
		return status, fmt.Errorf("failed to get oldest job: %w", err)
	}
	var err error
	status.LastJobID = lastID
	if status.LastJobTime, err = parseTime(lastTime); err != nil {
		return status, err
	}
	if status.OldestJobTime, err = parseTime(oldestTime); err != nil {
		return status, err
	}
	return status, nil
}

// Close closes the underlying connection.
func (s *JobStoreImpl) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *JobStoreImpl) scan(row rowScanner) (schema.JobRecord, error) {
	var rec schema.JobRecord
	var created, started, completed any
	if err := row.Scan(&rec.JobID, &rec.WorkspaceID, &rec.RepoLocation, &rec.Status, &rec.Progress,
		&rec.CurrentStep, &rec.Message, &rec.ErrorCategory, &created, &started, &completed,
		&rec.BusFactor, &rec.TotalFiles, &rec.TotalCommits, &rec.ResultJSON); err != nil {
		return rec, err
	}
	var err error
	if rec.CreatedAt, err = parseTime(created); err != nil {
		return rec, err
	}
	if rec.StartedAt, err = parseTimePtr(started); err != nil {
		return rec, err
	}
	if rec.CompletedAt, err = parseTimePtr(completed); err != nil {
		return rec, err
	}
	return rec, nil
}

// formatTime converts a time.Time to the appropriate format for the backend.
func (s *JobStoreImpl) formatTime(t time.Time) any {
	if s.backend == schema.SQLiteBackend {
		return t.UTC().Format(sqliteTimeFormat)
	}
	return t.UTC()
}

func (s *JobStoreImpl) formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return s.formatTime(*t)
}

// parseTime accepts both native timestamps and the RFC 3339 text SQLite stores.
func parseTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return time.Time{}, fmt.Errorf("failed to parse time %q: %w", t, err)
		}
		return parsed.UTC(), nil
	case []byte:
		return parseTime(string(t))
	default:
		return time.Time{}, fmt.Errorf("unexpected time value %T", v)
	}
}

func parseTimePtr(v any) (*time.Time, error) {
	if v == nil {
		return nil, nil
	}
	t, err := parseTime(v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ToRecord flattens a job into its table row.
func ToRecord(job *schema.AnalysisJob) (schema.JobRecord, error) {
	rec := schema.JobRecord{
		JobID:         job.ID,
		WorkspaceID:   job.WorkspaceID,
		RepoLocation:  job.RepoLocation,
		Status:        string(job.Status),
		Progress:      int32(job.Progress),
		CurrentStep:   optional(string(job.CurrentStep)),
		Message:       optional(job.Message),
		ErrorCategory: optional(job.ErrorCategory),
		CreatedAt:     job.CreatedAt,
		StartedAt:     job.StartedAt,
		CompletedAt:   job.CompletedAt,
	}
	if job.Result != nil {
		data, err := json.Marshal(job.Result)
		if err != nil {
			return rec, fmt.Errorf("failed to encode result of job %s: %w", job.ID, err)
		}
		text := string(data)
		rec.ResultJSON = &text
		health := job.Result.CodebaseHealth
		rec.BusFactor = int32Ptr(health.BusFactor)
		rec.TotalFiles = int32Ptr(health.TotalFiles)
		rec.TotalCommits = int32Ptr(health.TotalCommits)
	}
	return rec, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func int32Ptr(n int) *int32 {
	v := int32(n)
	return &v
}

// placeholders returns n bind parameters in the syntax of backend.
func placeholders(backend schema.DatabaseBackend, n int) string {
	ps := make([]string, n)
	for i := range ps {
		if backend == schema.PostgreSQLBackend {
			ps[i] = fmt.Sprintf("$%d", i+1)
		} else {
			ps[i] = "?"
		}
	}
	return strings.Join(ps, ", ")
}

// quoteTableName returns the properly quoted table name for the given backend.
func quoteTableName(name string, backend schema.DatabaseBackend) string {
	if backend == schema.MySQLBackend {
		return fmt.Sprintf("`%s`", name)
	}
	return fmt.Sprintf("%q", name)
}
