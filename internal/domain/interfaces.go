package domain

import (
	"context"
	"time"
)

// ─── Collaborator Interfaces ────────────────────────────────────────────────
// These interfaces define boundaries between the engine and the outside
// world. Infrastructure implements them; the application layer depends
// on them. Every call takes a context and should carry its own timeout.

// MetricSource fetches daily numeric samples for one data provider.
type MetricSource interface {
	// Name identifies the source ("ga4", "gsc", ...).
	Name() Source

	// FetchDaily returns one sample per day in [start, end], inclusive.
	// Missing days are simply absent from the result.
	FetchDaily(ctx context.Context, siteID, metricKey string, start, end time.Time) ([]Sample, error)
}

// CorroborationResult is the answer to a secondary evidence check.
type CorroborationResult struct {
	Degraded bool   `json:"degraded"`
	Details  string `json:"details,omitempty"`
}

// CorroborationCheck asks an external collaborator whether a secondary
// signal (content changes, Core Web Vitals, ...) degraded in the window.
type CorroborationCheck interface {
	Run(ctx context.Context, siteID, topic string, windowDays int) (CorroborationResult, error)
}

// KnowledgeStore is the long-term learning record. Both operations are
// best-effort: failures degrade context but never block the caller.
type KnowledgeStore interface {
	// Query returns prior entries for a site/topic, newest first.
	// Empty topic or types match everything.
	Query(ctx context.Context, siteID, topic string, types []KnowledgeType, limit int) ([]KnowledgeEntry, error)

	// Write appends an entry and returns its ID.
	Write(ctx context.Context, entry KnowledgeEntry) (int64, error)
}

// ChangeExecutor applies approved remediation items. This is the only
// path through which the engine changes anything external.
type ChangeExecutor interface {
	Apply(ctx context.Context, planID string, items []PlanItem) (ChangeReceipt, error)
}
