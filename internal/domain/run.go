package domain

import "time"

// ─── Run Status ─────────────────────────────────────────────────────────────

// RunStatus is the diagnostic-run state machine:
// queued → running → {completed | partial | failed}.
type RunStatus string

const (
	RunQueued    RunStatus = "queued"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunPartial   RunStatus = "partial"   // some sources failed; degraded confidence
	RunFailed    RunStatus = "failed"    // all sources failed
)

// Terminal reports whether the run reached a final state.
func (s RunStatus) Terminal() bool {
	return s == RunCompleted || s == RunPartial || s == RunFailed
}

// ─── Run Summary ────────────────────────────────────────────────────────────

// RunSummary is the persisted outcome of one diagnostic run. Completed and
// partial runs always carry a summary, even with zero anomalies.
type RunSummary struct {
	ID                string     `json:"run_id"`
	SiteID            string     `json:"site_id"`
	Day               string     `json:"day"` // YYYY-MM-DD, idempotency key
	Status            RunStatus  `json:"status"`
	StartedAt         time.Time  `json:"started_at"`
	FinishedAt        time.Time  `json:"finished_at,omitempty"`
	AnomalyCount      int        `json:"anomaly_count"`
	TicketCount       int        `json:"ticket_count"`
	PrimaryHypothesis string     `json:"primary_hypothesis,omitempty"`
	PrimaryConfidence Confidence `json:"primary_confidence,omitempty"`
	FailedSources     []string   `json:"failed_sources,omitempty"`
}
