package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/basin-data/erosion.report/internal/erosion"
	"github.com/basin-data/erosion.report/internal/timeutil"
)

// Run is the persisted record of one pipeline execution.
type Run struct {
	RunID       string          `json:"run_id"`
	Label       string          `json:"label,omitempty"`
	StartYear   int             `json:"start_year"`
	EndYear     int             `json:"end_year"`
	OptionsJSON json.RawMessage `json:"options_json,omitempty"`
	CreatedAt   int64           `json:"created_at"`
}

// YearStats is the persisted per-year statistics row.
type YearStats struct {
	RunID          string          `json:"run_id"`
	Year           int             `json:"year"`
	Degenerate     bool            `json:"degenerate"`
	Count          int             `json:"count"`
	Min            float64         `json:"min"`
	Max            float64         `json:"max"`
	Mean           float64         `json:"mean"`
	Median         float64         `json:"median"`
	StdDev         float64         `json:"std_dev"`
	P25            float64         `json:"p25"`
	P75            float64         `json:"p75"`
	P90            float64         `json:"p90"`
	P95            float64         `json:"p95"`
	ClassFractions map[int]float64 `json:"class_fractions,omitempty"`
}

// RunSummaries bundles the series-level products of a run.
type RunSummaries struct {
	Trend      *erosion.TrendSummary     `json:"trend,omitempty"`
	Change     *erosion.ChangeSummary    `json:"change,omitempty"`
	Literature *erosion.LiteratureReview `json:"literature,omitempty"`
}

// RunStore provides persistence for analysis runs.
type RunStore struct {
	db    *sql.DB
	clock timeutil.Clock
}

// NewRunStore creates a RunStore backed by db.
func NewRunStore(db *DB) *RunStore {
	return NewRunStoreWithClock(db, timeutil.NewRealClock())
}

// NewRunStoreWithClock creates a RunStore with an injected clock.
func NewRunStoreWithClock(db *DB, clock timeutil.Clock) *RunStore {
	return &RunStore{db: db.DB, clock: clock}
}

// InsertRun persists a new run record. If RunID is empty, a UUID is
// generated; if CreatedAt is zero, the current time is used.
func (s *RunStore) InsertRun(run *Run) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.CreatedAt == 0 {
		run.CreatedAt = s.clock.Now().UnixNano()
	}

	var optsStr interface{}
	if len(run.OptionsJSON) > 0 {
		optsStr = string(run.OptionsJSON)
	}

	return retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO analysis_runs (run_id, label, start_year, end_year, options_json, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			run.RunID, run.Label, run.StartYear, run.EndYear, optsStr, run.CreatedAt,
		)
		return err
	})
}

// GetRun returns a single run by ID.
func (s *RunStore) GetRun(runID string) (*Run, error) {
	row := s.db.QueryRow(`
		SELECT run_id, label, start_year, end_year, options_json, created_at
		FROM analysis_runs
		WHERE run_id = ?`, runID)

	var r Run
	var label, optsStr sql.NullString
	err := row.Scan(&r.RunID, &label, &r.StartYear, &r.EndYear, &optsStr, &r.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("run %s not found", runID)
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	r.Label = label.String
	if optsStr.Valid {
		r.OptionsJSON = json.RawMessage(optsStr.String)
	}
	return &r, nil
}

// ListRuns returns all runs ordered by creation time descending.
func (s *RunStore) ListRuns() ([]*Run, error) {
	rows, err := s.db.Query(`
		SELECT run_id, label, start_year, end_year, options_json, created_at
		FROM analysis_runs
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var r Run
		var label, optsStr sql.NullString
		if err := rows.Scan(&r.RunID, &label, &r.StartYear, &r.EndYear, &optsStr, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Label = label.String
		if optsStr.Valid {
			r.OptionsJSON = json.RawMessage(optsStr.String)
		}
		runs = append(runs, &r)
	}
	return runs, rows.Err()
}

// DeleteRun removes a run and, through foreign keys, its dependent rows.
func (s *RunStore) DeleteRun(runID string) error {
	return retryOnBusy(func() error {
		result, err := s.db.Exec(`DELETE FROM analysis_runs WHERE run_id = ?`, runID)
		if err != nil {
			return fmt.Errorf("delete run: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("run %s not found", runID)
		}
		return nil
	})
}

// InsertYearStats persists one year's statistics for a run.
func (s *RunStore) InsertYearStats(runID string, stats erosion.Stats) error {
	var fractionsStr interface{}
	if len(stats.ClassFractions) > 0 {
		b, err := json.Marshal(stats.ClassFractions)
		if err != nil {
			return fmt.Errorf("marshal class fractions: %w", err)
		}
		fractionsStr = string(b)
	}

	return retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO run_year_stats (
				run_id, year, degenerate, pixel_count,
				min_loss, max_loss, mean_loss, median_loss, std_dev,
				p25, p75, p90, p95, class_fractions_json
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, stats.Year, boolToInt(stats.Degenerate), stats.Count,
			stats.Min, stats.Max, stats.Mean, stats.Median, stats.StdDev,
			stats.P25, stats.P75, stats.P90, stats.P95, fractionsStr,
		)
		return err
	})
}

// YearStatsForRun returns a run's per-year statistics ordered by year.
func (s *RunStore) YearStatsForRun(runID string) ([]*YearStats, error) {
	rows, err := s.db.Query(`
		SELECT run_id, year, degenerate, pixel_count,
		       min_loss, max_loss, mean_loss, median_loss, std_dev,
		       p25, p75, p90, p95, class_fractions_json
		FROM run_year_stats
		WHERE run_id = ?
		ORDER BY year ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("query year stats: %w", err)
	}
	defer rows.Close()

	var out []*YearStats
	for rows.Next() {
		var ys YearStats
		var degenerate int
		var fractionsStr sql.NullString
		err := rows.Scan(
			&ys.RunID, &ys.Year, &degenerate, &ys.Count,
			&ys.Min, &ys.Max, &ys.Mean, &ys.Median, &ys.StdDev,
			&ys.P25, &ys.P75, &ys.P90, &ys.P95, &fractionsStr,
		)
		if err != nil {
			return nil, fmt.Errorf("scan year stats: %w", err)
		}
		ys.Degenerate = degenerate != 0
		if fractionsStr.Valid {
			if err := json.Unmarshal([]byte(fractionsStr.String), &ys.ClassFractions); err != nil {
				return nil, fmt.Errorf("unmarshal class fractions: %w", err)
			}
		}
		out = append(out, &ys)
	}
	return out, rows.Err()
}

// InsertFindings persists a run's validation findings.
func (s *RunStore) InsertFindings(runID string, findings []erosion.Finding) error {
	if len(findings) == 0 {
		return nil
	}
	return retryOnBusy(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin findings tx: %w", err)
		}
		defer tx.Rollback()

		stmt, err := tx.Prepare(`
			INSERT INTO run_findings (run_id, year, factor, check_kind, message)
			VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare findings insert: %w", err)
		}
		defer stmt.Close()

		for _, f := range findings {
			if _, err := stmt.Exec(runID, f.Year, string(f.Factor), string(f.Check), f.Message); err != nil {
				return fmt.Errorf("insert finding: %w", err)
			}
		}
		return tx.Commit()
	})
}

// FindingsForRun returns a run's validation findings.
func (s *RunStore) FindingsForRun(runID string) ([]erosion.Finding, error) {
	rows, err := s.db.Query(`
		SELECT year, factor, check_kind, message
		FROM run_findings
		WHERE run_id = ?
		ORDER BY year ASC, factor ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("query findings: %w", err)
	}
	defer rows.Close()

	var out []erosion.Finding
	for rows.Next() {
		var f erosion.Finding
		var factor, check string
		if err := rows.Scan(&f.Year, &factor, &check, &f.Message); err != nil {
			return nil, fmt.Errorf("scan finding: %w", err)
		}
		f.Factor = erosion.FactorKind(factor)
		f.Check = erosion.CheckKind(check)
		out = append(out, f)
	}
	return out, rows.Err()
}

// InsertSummaries persists the series-level products of a run. Absent
// products (for example when the run aborted before temporal analysis)
// are stored as NULL.
func (s *RunStore) InsertSummaries(runID string, sum RunSummaries) error {
	trendStr, err := nullableJSON(sum.Trend)
	if err != nil {
		return fmt.Errorf("marshal trend: %w", err)
	}
	changeStr, err := nullableJSON(sum.Change)
	if err != nil {
		return fmt.Errorf("marshal change: %w", err)
	}
	litStr, err := nullableJSON(sum.Literature)
	if err != nil {
		return fmt.Errorf("marshal literature: %w", err)
	}

	return retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO run_summaries (run_id, trend_json, change_json, literature_json)
			VALUES (?, ?, ?, ?)`,
			runID, trendStr, changeStr, litStr,
		)
		return err
	})
}

// SummariesForRun returns a run's series-level products, with nil fields
// for products that were not stored.
func (s *RunStore) SummariesForRun(runID string) (*RunSummaries, error) {
	row := s.db.QueryRow(`
		SELECT trend_json, change_json, literature_json
		FROM run_summaries
		WHERE run_id = ?`, runID)

	var trendStr, changeStr, litStr sql.NullString
	if err := row.Scan(&trendStr, &changeStr, &litStr); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("summaries for run %s not found", runID)
		}
		return nil, fmt.Errorf("scan summaries: %w", err)
	}

	var sum RunSummaries
	if trendStr.Valid {
		sum.Trend = &erosion.TrendSummary{}
		if err := json.Unmarshal([]byte(trendStr.String), sum.Trend); err != nil {
			return nil, fmt.Errorf("unmarshal trend: %w", err)
		}
	}
	if changeStr.Valid {
		sum.Change = &erosion.ChangeSummary{}
		if err := json.Unmarshal([]byte(changeStr.String), sum.Change); err != nil {
			return nil, fmt.Errorf("unmarshal change: %w", err)
		}
	}
	if litStr.Valid {
		sum.Literature = &erosion.LiteratureReview{}
		if err := json.Unmarshal([]byte(litStr.String), sum.Literature); err != nil {
			return nil, fmt.Errorf("unmarshal literature: %w", err)
		}
	}
	return &sum, nil
}

func nullableJSON(v interface{}) (interface{}, error) {
	switch t := v.(type) {
	case *erosion.TrendSummary:
		if t == nil {
			return nil, nil
		}
	case *erosion.ChangeSummary:
		if t == nil {
			return nil, nil
		}
	case *erosion.LiteratureReview:
		if t == nil {
			return nil, nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
