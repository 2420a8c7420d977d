package domain

import "time"

// ─── Severity ───────────────────────────────────────────────────────────────

// Severity grades how far a metric deviated from its baseline.
type Severity string

const (
	SevMild     Severity = "mild"     // |z| ≥ 1
	SevModerate Severity = "moderate" // |z| ≥ 2
	SevSevere   Severity = "severe"   // |z| ≥ 3
)

// Weight returns the numeric weight used for ticket priority mapping.
func (s Severity) Weight() int {
	switch s {
	case SevSevere:
		return 3
	case SevModerate:
		return 2
	case SevMild:
		return 1
	default:
		return 0
	}
}

// ─── Anomaly Record ─────────────────────────────────────────────────────────

// AnomalyRecord captures one metric that crossed a deviation threshold
// during a run. Immutable; belongs to exactly one run.
type AnomalyRecord struct {
	ID             int64     `json:"id"`
	RunID          string    `json:"run_id"`
	Source         Source    `json:"source"`
	MetricKey      string    `json:"metric_key"`
	CurrentValue   float64   `json:"current_value"`
	BaselineMean   float64   `json:"baseline_mean"`
	BaselineStddev float64   `json:"baseline_stddev"`
	ZScore         float64   `json:"z_score"`
	DeltaPct       *float64  `json:"delta_pct,omitempty"` // nil when baseline mean is 0
	Severity       Severity  `json:"severity"`
	StartDate      time.Time `json:"start_date"`
}

// Key returns the source-qualified metric key, e.g. "gsc/impressions".
func (a AnomalyRecord) Key() string {
	return string(a.Source) + "/" + a.MetricKey
}
