package sqlite

import (
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/searchlight-io/searchlight/internal/domain"
)

// ─── Runs ───────────────────────────────────────────────────────────────────

// InsertRun creates a run record.
func (d *DB) InsertRun(run domain.RunSummary) error {
	_, err := d.db.Exec(
		`INSERT INTO runs (id, site_id, day, status, started_at, anomaly_count, ticket_count,
		                   primary_hypothesis, primary_confidence, failed_sources)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.SiteID, run.Day, string(run.Status), run.StartedAt.Unix(),
		run.AnomalyCount, run.TicketCount,
		run.PrimaryHypothesis, string(run.PrimaryConfidence), joinStrings(run.FailedSources),
	)
	return err
}

// UpdateRunStatus transitions a run's status without touching the summary.
func (d *DB) UpdateRunStatus(id string, status domain.RunStatus) error {
	_, err := d.db.Exec(`UPDATE runs SET status = ? WHERE id = ?`, string(status), id)
	return err
}

// FinishRun writes the terminal status and summary of a run.
func (d *DB) FinishRun(run domain.RunSummary) error {
	_, err := d.db.Exec(
		`UPDATE runs SET status = ?, finished_at = ?, anomaly_count = ?, ticket_count = ?,
		        primary_hypothesis = ?, primary_confidence = ?, failed_sources = ?
		 WHERE id = ?`,
		string(run.Status), run.FinishedAt.Unix(), run.AnomalyCount, run.TicketCount,
		run.PrimaryHypothesis, string(run.PrimaryConfidence), joinStrings(run.FailedSources),
		run.ID,
	)
	return err
}

// GetRun retrieves a run by ID.
func (d *DB) GetRun(id string) (*domain.RunSummary, error) {
	row := d.db.QueryRow(
		`SELECT id, site_id, day, status, started_at, finished_at, anomaly_count, ticket_count,
		        primary_hypothesis, primary_confidence, failed_sources
		 FROM runs WHERE id = ?`, id,
	)
	return scanRun(row)
}

// RunForDay returns the most recent terminal run for (site, day), or nil.
// Failed runs do not count: a retry after total source failure is allowed.
func (d *DB) RunForDay(siteID, day string) (*domain.RunSummary, error) {
	row := d.db.QueryRow(
		`SELECT id, site_id, day, status, started_at, finished_at, anomaly_count, ticket_count,
		        primary_hypothesis, primary_confidence, failed_sources
		 FROM runs WHERE site_id = ? AND day = ? AND status IN ('completed', 'partial')
		 ORDER BY started_at DESC LIMIT 1`,
		siteID, day,
	)
	run, err := scanRun(row)
	if err == domain.ErrRunNotFound {
		return nil, nil
	}
	return run, err
}

// ListRuns returns recent runs for a site, newest first.
func (d *DB) ListRuns(siteID string, limit int) ([]domain.RunSummary, error) {
	rows, err := d.db.Query(
		`SELECT id, site_id, day, status, started_at, finished_at, anomaly_count, ticket_count,
		        primary_hypothesis, primary_confidence, failed_sources
		 FROM runs WHERE site_id = ? ORDER BY started_at DESC LIMIT ?`,
		siteID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []domain.RunSummary
	for rows.Next() {
		run, err := scanRunRows(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRunFrom(sc rowScanner) (*domain.RunSummary, error) {
	var run domain.RunSummary
	var status, confidence, failed string
	var startedAt int64
	var finishedAt sql.NullInt64
	err := sc.Scan(&run.ID, &run.SiteID, &run.Day, &status, &startedAt, &finishedAt,
		&run.AnomalyCount, &run.TicketCount, &run.PrimaryHypothesis, &confidence, &failed)
	if err == sql.ErrNoRows {
		return nil, domain.ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	run.Status = domain.RunStatus(status)
	run.PrimaryConfidence = domain.Confidence(confidence)
	run.StartedAt = time.Unix(startedAt, 0)
	if finishedAt.Valid {
		run.FinishedAt = time.Unix(finishedAt.Int64, 0)
	}
	run.FailedSources = splitStrings(failed)
	return &run, nil
}

func scanRun(row *sql.Row) (*domain.RunSummary, error)       { return scanRunFrom(row) }
func scanRunRows(rows *sql.Rows) (*domain.RunSummary, error) { return scanRunFrom(rows) }

// ─── Anomalies ──────────────────────────────────────────────────────────────

// InsertAnomaly persists an anomaly record and returns its ID.
func (d *DB) InsertAnomaly(a domain.AnomalyRecord) (int64, error) {
	var deltaPct any
	if a.DeltaPct != nil {
		deltaPct = *a.DeltaPct
	}
	result, err := d.db.Exec(
		`INSERT INTO anomalies (run_id, source, metric_key, current_value, baseline_mean,
		                        baseline_stddev, z_score, delta_pct, severity, start_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.RunID, string(a.Source), a.MetricKey, a.CurrentValue, a.BaselineMean,
		a.BaselineStddev, a.ZScore, deltaPct, string(a.Severity), domain.DayString(a.StartDate),
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// AnomaliesForRun returns all anomaly records for a run, oldest ID first.
func (d *DB) AnomaliesForRun(runID string) ([]domain.AnomalyRecord, error) {
	rows, err := d.db.Query(
		`SELECT id, run_id, source, metric_key, current_value, baseline_mean,
		        baseline_stddev, z_score, delta_pct, severity, start_date
		 FROM anomalies WHERE run_id = ? ORDER BY id ASC`, runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var anomalies []domain.AnomalyRecord
	for rows.Next() {
		var a domain.AnomalyRecord
		var source, severity, startDate string
		var deltaPct sql.NullFloat64
		err := rows.Scan(&a.ID, &a.RunID, &source, &a.MetricKey, &a.CurrentValue,
			&a.BaselineMean, &a.BaselineStddev, &a.ZScore, &deltaPct, &severity, &startDate)
		if err != nil {
			return nil, err
		}
		a.Source = domain.Source(source)
		a.Severity = domain.Severity(severity)
		if deltaPct.Valid {
			v := deltaPct.Float64
			a.DeltaPct = &v
		}
		if t, err := time.Parse("2006-01-02", startDate); err == nil {
			a.StartDate = t
		}
		anomalies = append(anomalies, a)
	}
	return anomalies, rows.Err()
}

// ─── Hypotheses ─────────────────────────────────────────────────────────────

// InsertHypotheses persists the ranked hypothesis list for a run.
func (d *DB) InsertHypotheses(hypotheses []domain.Hypothesis) error {
	for _, h := range hypotheses {
		_, err := d.db.Exec(
			`INSERT INTO hypotheses (run_id, rank_num, key, confidence, supporting_ids, missing_data)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			h.RunID, h.Rank, h.Key, string(h.Confidence),
			joinIDs(h.SupportingAnomalyIDs), joinStrings(h.MissingData),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// HypothesesForRun returns the ranked hypotheses for a run, rank 1 first.
func (d *DB) HypothesesForRun(runID string) ([]domain.Hypothesis, error) {
	rows, err := d.db.Query(
		`SELECT id, run_id, rank_num, key, confidence, supporting_ids, missing_data
		 FROM hypotheses WHERE run_id = ? ORDER BY rank_num ASC`, runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hypotheses []domain.Hypothesis
	for rows.Next() {
		var h domain.Hypothesis
		var confidence, supporting, missing string
		if err := rows.Scan(&h.ID, &h.RunID, &h.Rank, &h.Key, &confidence, &supporting, &missing); err != nil {
			return nil, err
		}
		h.Confidence = domain.Confidence(confidence)
		h.SupportingAnomalyIDs = splitIDs(supporting)
		h.MissingData = splitStrings(missing)
		hypotheses = append(hypotheses, h)
	}
	return hypotheses, rows.Err()
}

// ─── Encoding helpers ───────────────────────────────────────────────────────

func joinStrings(vals []string) string { return strings.Join(vals, ",") }

func splitStrings(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

func splitIDs(s string) []int64 {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		if id, err := strconv.ParseInt(p, 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}
