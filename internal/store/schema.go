package store

// Audit database schema. One audit run owns the whole file; re-audits of the
// same tree reuse run rows keyed by (job_name, build_number).
const schema = `
CREATE TABLE IF NOT EXISTS audit_metadata (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    total_runs_scanned INTEGER NOT NULL,
    failed_runs_analyzed INTEGER NOT NULL,
    successful_runs_count INTEGER NOT NULL,
    scan_timestamp TEXT NOT NULL,
    filter_stage TEXT,
    llm_model TEXT,
    llm_provider TEXT,
    analysis_duration_seconds INTEGER,
    semantic_clustering_enabled INTEGER NOT NULL DEFAULT 0,
    similarity_threshold REAL
);

CREATE TABLE IF NOT EXISTS runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    pr_number TEXT NOT NULL,
    job_name TEXT NOT NULL,
    build_number TEXT NOT NULL,
    timestamp TEXT NOT NULL,
    overall_status TEXT NOT NULL,
    result TEXT NOT NULL,
    passed INTEGER NOT NULL,
    revision TEXT,
    repo TEXT,
    created_at TEXT NOT NULL,
    UNIQUE(job_name, build_number)
);
CREATE INDEX IF NOT EXISTS idx_runs_pr_number ON runs(pr_number);
CREATE INDEX IF NOT EXISTS idx_runs_job_name ON runs(job_name);

CREATE TABLE IF NOT EXISTS stages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    stage_name TEXT NOT NULL,
    status TEXT NOT NULL,
    passed INTEGER NOT NULL,
    timestamp TEXT,
    summary TEXT,
    created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_stages_run_id ON stages(run_id);
CREATE INDEX IF NOT EXISTS idx_stages_stage_name ON stages(stage_name);

CREATE TABLE IF NOT EXISTS steps (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    stage_id INTEGER NOT NULL REFERENCES stages(id) ON DELETE CASCADE,
    step_name TEXT NOT NULL,
    status TEXT NOT NULL,
    failure_type TEXT,
    log_path TEXT NOT NULL,
    log_size_bytes INTEGER,
    has_sidecar_logs INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_steps_stage_id ON steps(stage_id);
CREATE INDEX IF NOT EXISTS idx_steps_step_name ON steps(step_name);
CREATE INDEX IF NOT EXISTS idx_steps_failure_type ON steps(failure_type);

CREATE TABLE IF NOT EXISTS step_analysis (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    step_id INTEGER NOT NULL UNIQUE REFERENCES steps(id) ON DELETE CASCADE,
    analysis_text TEXT NOT NULL,
    root_cause TEXT,
    error_category TEXT,
    confidence REAL NOT NULL DEFAULT 0,
    needs_attention INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_step_analysis_error_category ON step_analysis(error_category);
`
