// Package store persists audit results in SQLite and serves the analytics
// queries behind reports and MCP tools.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// nowUTC returns the current UTC time as an ISO 8601 string.
func nowUTC() string { return time.Now().UTC().Format(time.RFC3339) }

// nullStr converts a sql.NullString to a plain string (empty if null).
func nullStr(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// nullFloat converts a sql.NullFloat64 to a plain float64 (0 if null).
func nullFloat(nf sql.NullFloat64) float64 {
	if nf.Valid {
		return nf.Float64
	}
	return 0
}

// Run is one Prow job run row.
type Run struct {
	ID            int64
	PRNumber      string
	JobName       string
	BuildNumber   string
	Timestamp     string
	OverallStatus string
	Result        string
	Passed        bool
	Revision      string
	Repo          string
	CreatedAt     string
}

// Stage is one stage row within a run.
type Stage struct {
	ID        int64
	RunID     int64
	StageName string
	Status    string
	Passed    bool
	Timestamp string
	Summary   string
	CreatedAt string
}

// Step is one step row within a stage.
type Step struct {
	ID             int64
	StageID        int64
	StepName       string
	Status         string
	FailureType    string
	LogPath        string
	LogSizeBytes   int64
	HasSidecarLogs bool
	CreatedAt      string
}

// StepAnalysis is the verdict recorded for one step. At most one per step.
type StepAnalysis struct {
	ID             int64
	StepID         int64
	AnalysisText   string
	RootCause      string
	ErrorCategory  string
	Confidence     float64
	NeedsAttention bool
	CreatedAt      string
}

// AuditMetadata records whole-scan statistics. The table holds at most one
// row; each save replaces the previous scan's metadata.
type AuditMetadata struct {
	TotalRunsScanned          int
	FailedRunsAnalyzed        int
	SuccessfulRunsCount       int
	ScanTimestamp             string
	FilterStage               string
	LLMModel                  string
	LLMProvider               string
	AnalysisDurationSeconds   int64
	SemanticClusteringEnabled bool
	SimilarityThreshold       float64
}

// SqlStore is the SQLite-backed audit store.
type SqlStore struct {
	db *sql.DB
}

// Open opens or creates a SQLite DB at path and applies the schema.
// Creates the parent directory if it does not exist.
func Open(path string) (*SqlStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	s := &SqlStore{db: db}
	return s, nil
}

// Close closes the database connection.
func (s *SqlStore) Close() error {
	return s.db.Close()
}

// CreateRun inserts a run, or returns the existing row's id when a run with
// the same (job_name, build_number) was already recorded.
func (s *SqlStore) CreateRun(r *Run) (int64, error) {
	if r == nil {
		return 0, errors.New("run is nil")
	}
	var existing int64
	err := s.db.QueryRow(
		"SELECT id FROM runs WHERE job_name = ? AND build_number = ? LIMIT 1",
		r.JobName, r.BuildNumber,
	).Scan(&existing)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("check existing run: %w", err)
	}

	res, err := s.db.Exec(
		`INSERT INTO runs(pr_number, job_name, build_number, timestamp, overall_status,
		                  result, passed, revision, repo, created_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.PRNumber, r.JobName, r.BuildNumber, r.Timestamp, r.OverallStatus,
		r.Result, r.Passed, emptyAsNull(r.Revision), emptyAsNull(r.Repo), nowUTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// GetRun returns the run by id, or nil if not found.
func (s *SqlStore) GetRun(runID int64) (*Run, error) {
	var r Run
	var revision, repo sql.NullString
	err := s.db.QueryRow(
		`SELECT id, pr_number, job_name, build_number, timestamp, overall_status,
		        result, passed, revision, repo, created_at
		 FROM runs WHERE id = ?`,
		runID,
	).Scan(&r.ID, &r.PRNumber, &r.JobName, &r.BuildNumber, &r.Timestamp,
		&r.OverallStatus, &r.Result, &r.Passed, &revision, &repo, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	r.Revision = nullStr(revision)
	r.Repo = nullStr(repo)
	return &r, nil
}

// CreateStage inserts a stage row and returns its id.
func (s *SqlStore) CreateStage(st *Stage) (int64, error) {
	if st == nil {
		return 0, errors.New("stage is nil")
	}
	res, err := s.db.Exec(
		`INSERT INTO stages(run_id, stage_name, status, passed, timestamp, summary, created_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?)`,
		st.RunID, st.StageName, st.Status, st.Passed,
		emptyAsNull(st.Timestamp), emptyAsNull(st.Summary), nowUTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert stage: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// StagesByRun returns all stages for a run, in insertion order.
func (s *SqlStore) StagesByRun(runID int64) ([]*Stage, error) {
	rows, err := s.db.Query(
		`SELECT id, run_id, stage_name, status, passed, timestamp, summary, created_at
		 FROM stages WHERE run_id = ? ORDER BY id`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list stages: %w", err)
	}
	defer rows.Close()
	var list []*Stage
	for rows.Next() {
		var st Stage
		var ts, summary sql.NullString
		if err := rows.Scan(&st.ID, &st.RunID, &st.StageName, &st.Status, &st.Passed,
			&ts, &summary, &st.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan stage: %w", err)
		}
		st.Timestamp = nullStr(ts)
		st.Summary = nullStr(summary)
		list = append(list, &st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list stages: %w", err)
	}
	return list, nil
}

// CreateStep inserts a step row and returns its id.
func (s *SqlStore) CreateStep(st *Step) (int64, error) {
	if st == nil {
		return 0, errors.New("step is nil")
	}
	res, err := s.db.Exec(
		`INSERT INTO steps(stage_id, step_name, status, failure_type, log_path,
		                   log_size_bytes, has_sidecar_logs, created_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		st.StageID, st.StepName, st.Status, emptyAsNull(st.FailureType),
		st.LogPath, st.LogSizeBytes, st.HasSidecarLogs, nowUTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert step: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// CreateStepAnalysis inserts the analysis row for a step.
func (s *SqlStore) CreateStepAnalysis(a *StepAnalysis) (int64, error) {
	if a == nil {
		return 0, errors.New("analysis is nil")
	}
	res, err := s.db.Exec(
		`INSERT INTO step_analysis(step_id, analysis_text, root_cause, error_category,
		                           confidence, needs_attention, created_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?)`,
		a.StepID, a.AnalysisText, emptyAsNull(a.RootCause), emptyAsNull(a.ErrorCategory),
		a.Confidence, a.NeedsAttention, nowUTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert step analysis: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// SaveAuditMetadata replaces the scan metadata row.
func (s *SqlStore) SaveAuditMetadata(m *AuditMetadata) error {
	if m == nil {
		return errors.New("metadata is nil")
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec("DELETE FROM audit_metadata"); err != nil {
		return fmt.Errorf("clear audit metadata: %w", err)
	}
	ts := m.ScanTimestamp
	if ts == "" {
		ts = nowUTC()
	}
	_, err = tx.Exec(
		`INSERT INTO audit_metadata(total_runs_scanned, failed_runs_analyzed, successful_runs_count,
		                            scan_timestamp, filter_stage, llm_model, llm_provider,
		                            analysis_duration_seconds, semantic_clustering_enabled, similarity_threshold)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.TotalRunsScanned, m.FailedRunsAnalyzed, m.SuccessfulRunsCount,
		ts, emptyAsNull(m.FilterStage), emptyAsNull(m.LLMModel), emptyAsNull(m.LLMProvider),
		m.AnalysisDurationSeconds, m.SemanticClusteringEnabled, m.SimilarityThreshold,
	)
	if err != nil {
		return fmt.Errorf("insert audit metadata: %w", err)
	}
	return tx.Commit()
}

// GetAuditMetadata returns the most recent scan metadata, or nil if no scan
// has been recorded.
func (s *SqlStore) GetAuditMetadata() (*AuditMetadata, error) {
	var m AuditMetadata
	var filterStage, model, provider sql.NullString
	var duration sql.NullInt64
	var threshold sql.NullFloat64
	err := s.db.QueryRow(
		`SELECT total_runs_scanned, failed_runs_analyzed, successful_runs_count,
		        scan_timestamp, filter_stage, llm_model, llm_provider,
		        analysis_duration_seconds, semantic_clustering_enabled, similarity_threshold
		 FROM audit_metadata ORDER BY scan_timestamp DESC LIMIT 1`,
	).Scan(&m.TotalRunsScanned, &m.FailedRunsAnalyzed, &m.SuccessfulRunsCount,
		&m.ScanTimestamp, &filterStage, &model, &provider,
		&duration, &m.SemanticClusteringEnabled, &threshold)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get audit metadata: %w", err)
	}
	m.FilterStage = nullStr(filterStage)
	m.LLMModel = nullStr(model)
	m.LLMProvider = nullStr(provider)
	m.AnalysisDurationSeconds = duration.Int64
	m.SimilarityThreshold = nullFloat(threshold)
	return &m, nil
}

// emptyAsNull stores empty strings as NULL so the analytics filters on
// IS NOT NULL behave.
func emptyAsNull(s string) any {
	if s == "" {
		return nil
	}
	return s
}
