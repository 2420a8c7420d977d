package sqlite

import (
	"time"

	"github.com/searchlight-io/searchlight/internal/domain"
)

// ─── Metric Window Store ────────────────────────────────────────────────────

// UpsertSamples ingests daily samples. Rows are append-only: a day that
// already exists is left untouched so re-ingesting history is harmless.
func (d *DB) UpsertSamples(siteID string, source domain.Source, metricKey string, samples []domain.Sample) error {
	for _, s := range samples {
		_, err := d.db.Exec(
			`INSERT OR IGNORE INTO metric_samples (site_id, source, metric_key, day, value)
			 VALUES (?, ?, ?, ?, ?)`,
			siteID, string(source), metricKey, domain.DayString(s.Date), s.Value,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// SampleRange returns samples for [start, end] inclusive, oldest first.
func (d *DB) SampleRange(siteID string, source domain.Source, metricKey string, start, end time.Time) ([]domain.Sample, error) {
	rows, err := d.db.Query(
		`SELECT day, value FROM metric_samples
		 WHERE site_id = ? AND source = ? AND metric_key = ? AND day >= ? AND day <= ?
		 ORDER BY day ASC`,
		siteID, string(source), metricKey, domain.DayString(start), domain.DayString(end),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []domain.Sample
	for rows.Next() {
		var day string
		var s domain.Sample
		if err := rows.Scan(&day, &s.Value); err != nil {
			return nil, err
		}
		t, err := time.Parse("2006-01-02", day)
		if err != nil {
			return nil, err
		}
		s.Date = t
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

// SampleCount returns how many samples exist for a metric.
func (d *DB) SampleCount(siteID string, source domain.Source, metricKey string) (int, error) {
	var n int
	err := d.db.QueryRow(
		`SELECT COUNT(*) FROM metric_samples WHERE site_id = ? AND source = ? AND metric_key = ?`,
		siteID, string(source), metricKey,
	).Scan(&n)
	return n, err
}
