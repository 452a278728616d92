package store

import (
	"database/sql"
	"fmt"
)

// RootCauseCount is one root cause with its occurrence count.
type RootCauseCount struct {
	RootCause string
	Count     int
}

// CategoryCount is one error category with count and share of the total.
type CategoryCount struct {
	Category   string
	Count      int
	Percentage float64
}

// StageStat is a per-stage failure rate.
type StageStat struct {
	StageName   string
	Total       int
	Failed      int
	FailureRate float64
}

// TrendPoint is one calendar day's run totals.
type TrendPoint struct {
	Date        string
	TotalRuns   int
	FailedRuns  int
	FailureRate float64
}

// StepFailureDetail is one frequently-failing step with its top root causes.
type StepFailureDetail struct {
	StepName      string
	TotalFailures int
	TopRootCauses []StepRootCause
}

// StepRootCause is one (root cause, category) pair for a step.
type StepRootCause struct {
	RootCause     string
	ErrorCategory string
	Count         int
}

// SimilarFailure is one analyzed step matching a similarity filter.
type SimilarFailure struct {
	StepID        int64
	StepName      string
	FailureType   string
	ErrorCategory string
	RootCause     string
	Confidence    float64
}

// CorrelatedFailure is one failed step within a stage, with its analysis
// when one exists.
type CorrelatedFailure struct {
	StepName      string
	FailureType   string
	ErrorCategory string
	RootCause     string
}

// FailureStatistics are whole-database run and stage counts. Run counts come
// from audit metadata when present, since the database only holds analyzed
// (failed) runs while the scan saw all of them.
type FailureStatistics struct {
	TotalRuns      int
	FailedRuns     int
	SuccessfulRuns int
	TotalStages    int
	FailedStages   int
}

// RootCauseDistribution returns the most frequent root causes across all
// analyzed steps, most frequent first.
func (s *SqlStore) RootCauseDistribution(limit int) ([]RootCauseCount, error) {
	rows, err := s.db.Query(
		`SELECT root_cause, COUNT(id) AS n
		 FROM step_analysis
		 WHERE root_cause IS NOT NULL
		 GROUP BY root_cause
		 ORDER BY n DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("root cause distribution: %w", err)
	}
	defer rows.Close()
	var list []RootCauseCount
	for rows.Next() {
		var rc RootCauseCount
		if err := rows.Scan(&rc.RootCause, &rc.Count); err != nil {
			return nil, fmt.Errorf("scan root cause: %w", err)
		}
		list = append(list, rc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("root cause distribution: %w", err)
	}
	return list, nil
}

// ErrorCategoryBreakdown returns per-category counts with percentages of the
// analyzed total, most frequent first.
func (s *SqlStore) ErrorCategoryBreakdown() ([]CategoryCount, error) {
	rows, err := s.db.Query(
		`SELECT error_category, COUNT(id) AS n
		 FROM step_analysis
		 WHERE error_category IS NOT NULL
		 GROUP BY error_category
		 ORDER BY n DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("category breakdown: %w", err)
	}
	defer rows.Close()
	var list []CategoryCount
	var total int
	for rows.Next() {
		var cc CategoryCount
		if err := rows.Scan(&cc.Category, &cc.Count); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		total += cc.Count
		list = append(list, cc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("category breakdown: %w", err)
	}
	if total > 0 {
		for i := range list {
			list[i].Percentage = float64(list[i].Count) / float64(total) * 100
		}
	}
	return list, nil
}

// StageStatistics returns per-stage success/failure rates, busiest stage first.
func (s *SqlStore) StageStatistics() ([]StageStat, error) {
	rows, err := s.db.Query(
		`SELECT stage_name, COUNT(id) AS total,
		        SUM(CASE WHEN passed = 0 THEN 1 ELSE 0 END) AS failed
		 FROM stages
		 GROUP BY stage_name
		 ORDER BY total DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("stage statistics: %w", err)
	}
	defer rows.Close()
	var list []StageStat
	for rows.Next() {
		var st StageStat
		if err := rows.Scan(&st.StageName, &st.Total, &st.Failed); err != nil {
			return nil, fmt.Errorf("scan stage stat: %w", err)
		}
		if st.Total > 0 {
			st.FailureRate = float64(st.Failed) / float64(st.Total)
		}
		list = append(list, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("stage statistics: %w", err)
	}
	return list, nil
}

// FailureTrends returns per-day run totals and failure rates, oldest first.
func (s *SqlStore) FailureTrends() ([]TrendPoint, error) {
	rows, err := s.db.Query(
		`SELECT date(timestamp) AS d, COUNT(id) AS total,
		        SUM(CASE WHEN passed = 0 THEN 1 ELSE 0 END) AS failed
		 FROM runs
		 GROUP BY date(timestamp)
		 ORDER BY date(timestamp)`,
	)
	if err != nil {
		return nil, fmt.Errorf("failure trends: %w", err)
	}
	defer rows.Close()
	var list []TrendPoint
	for rows.Next() {
		var tp TrendPoint
		if err := rows.Scan(&tp.Date, &tp.TotalRuns, &tp.FailedRuns); err != nil {
			return nil, fmt.Errorf("scan trend point: %w", err)
		}
		if tp.TotalRuns > 0 {
			tp.FailureRate = float64(tp.FailedRuns) / float64(tp.TotalRuns)
		}
		list = append(list, tp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failure trends: %w", err)
	}
	return list, nil
}

// StepFailureAnalysis returns the most frequently failing steps with each
// step's top root causes (at most five).
func (s *SqlStore) StepFailureAnalysis(limit int) ([]StepFailureDetail, error) {
	rows, err := s.db.Query(
		`SELECT step_name, COUNT(id) AS n
		 FROM steps
		 WHERE status = 'FAILURE'
		 GROUP BY step_name
		 ORDER BY n DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("step failure analysis: %w", err)
	}
	defer rows.Close()
	var list []StepFailureDetail
	for rows.Next() {
		var d StepFailureDetail
		if err := rows.Scan(&d.StepName, &d.TotalFailures); err != nil {
			return nil, fmt.Errorf("scan step failure: %w", err)
		}
		list = append(list, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("step failure analysis: %w", err)
	}

	for i := range list {
		causes, err := s.topRootCauses(list[i].StepName)
		if err != nil {
			return nil, err
		}
		list[i].TopRootCauses = causes
	}
	return list, nil
}

func (s *SqlStore) topRootCauses(stepName string) ([]StepRootCause, error) {
	rows, err := s.db.Query(
		`SELECT a.root_cause, a.error_category, COUNT(a.id) AS n
		 FROM step_analysis a
		 JOIN steps st ON a.step_id = st.id
		 WHERE st.step_name = ? AND a.root_cause IS NOT NULL
		 GROUP BY a.root_cause, a.error_category
		 ORDER BY n DESC
		 LIMIT 5`,
		stepName,
	)
	if err != nil {
		return nil, fmt.Errorf("top root causes: %w", err)
	}
	defer rows.Close()
	var list []StepRootCause
	for rows.Next() {
		var rc StepRootCause
		var category sql.NullString
		if err := rows.Scan(&rc.RootCause, &category, &rc.Count); err != nil {
			return nil, fmt.Errorf("scan top root cause: %w", err)
		}
		rc.ErrorCategory = nullStr(category)
		list = append(list, rc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("top root causes: %w", err)
	}
	return list, nil
}

// FindSimilarFailures returns analyzed steps matching the given category
// and/or failure type. Empty filters match everything.
func (s *SqlStore) FindSimilarFailures(errorCategory, failureType string, limit int) ([]SimilarFailure, error) {
	q := `SELECT a.step_id, st.step_name, st.failure_type, a.error_category, a.root_cause, a.confidence
	      FROM step_analysis a
	      JOIN steps st ON a.step_id = st.id
	      WHERE 1=1`
	var args []any
	if errorCategory != "" {
		q += " AND a.error_category = ?"
		args = append(args, errorCategory)
	}
	if failureType != "" {
		q += " AND st.failure_type = ?"
		args = append(args, failureType)
	}
	q += " ORDER BY a.id LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("find similar failures: %w", err)
	}
	defer rows.Close()
	var list []SimilarFailure
	for rows.Next() {
		var f SimilarFailure
		var ftype, category, rootCause sql.NullString
		if err := rows.Scan(&f.StepID, &f.StepName, &ftype, &category, &rootCause, &f.Confidence); err != nil {
			return nil, fmt.Errorf("scan similar failure: %w", err)
		}
		f.FailureType = nullStr(ftype)
		f.ErrorCategory = nullStr(category)
		f.RootCause = nullStr(rootCause)
		list = append(list, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find similar failures: %w", err)
	}
	return list, nil
}

// CorrelateFailures returns all failed steps within the named stage along
// with their analyses, exposing failures that co-occur.
func (s *SqlStore) CorrelateFailures(stageName string) ([]CorrelatedFailure, error) {
	rows, err := s.db.Query(
		`SELECT st.step_name, st.failure_type, a.error_category, a.root_cause
		 FROM steps st
		 JOIN stages sg ON st.stage_id = sg.id
		 LEFT JOIN step_analysis a ON a.step_id = st.id
		 WHERE sg.stage_name = ? AND st.status = 'FAILURE'
		 ORDER BY st.id`,
		stageName,
	)
	if err != nil {
		return nil, fmt.Errorf("correlate failures: %w", err)
	}
	defer rows.Close()
	var list []CorrelatedFailure
	for rows.Next() {
		var f CorrelatedFailure
		var ftype, category, rootCause sql.NullString
		if err := rows.Scan(&f.StepName, &ftype, &category, &rootCause); err != nil {
			return nil, fmt.Errorf("scan correlated failure: %w", err)
		}
		f.FailureType = nullStr(ftype)
		f.ErrorCategory = nullStr(category)
		f.RootCause = nullStr(rootCause)
		list = append(list, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("correlate failures: %w", err)
	}
	return list, nil
}

// GetFailureStatistics returns whole-database counters, preferring scan
// metadata for run totals when available.
func (s *SqlStore) GetFailureStatistics() (*FailureStatistics, error) {
	stats := &FailureStatistics{}

	meta, err := s.GetAuditMetadata()
	if err != nil {
		return nil, err
	}
	if meta != nil {
		stats.TotalRuns = meta.TotalRunsScanned
		stats.FailedRuns = meta.FailedRunsAnalyzed
	} else {
		if err := s.db.QueryRow("SELECT COUNT(id) FROM runs").Scan(&stats.TotalRuns); err != nil {
			return nil, fmt.Errorf("count runs: %w", err)
		}
		if err := s.db.QueryRow("SELECT COUNT(id) FROM runs WHERE passed = 0").Scan(&stats.FailedRuns); err != nil {
			return nil, fmt.Errorf("count failed runs: %w", err)
		}
	}
	stats.SuccessfulRuns = stats.TotalRuns - stats.FailedRuns

	if err := s.db.QueryRow("SELECT COUNT(id) FROM stages").Scan(&stats.TotalStages); err != nil {
		return nil, fmt.Errorf("count stages: %w", err)
	}
	if err := s.db.QueryRow("SELECT COUNT(id) FROM stages WHERE passed = 0").Scan(&stats.FailedStages); err != nil {
		return nil, fmt.Errorf("count failed stages: %w", err)
	}
	return stats, nil
}
