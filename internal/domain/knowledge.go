package domain

import "time"

// ─── Knowledge Types ────────────────────────────────────────────────────────

// KnowledgeType categorizes long-term learning records.
type KnowledgeType string

const (
	KnowObservation    KnowledgeType = "observation"
	KnowRecommendation KnowledgeType = "recommendation"
	KnowFixResult      KnowledgeType = "fix_result"
	KnowExperiment     KnowledgeType = "experiment"
	KnowIncident       KnowledgeType = "incident"
)

// ─── Knowledge Entry ────────────────────────────────────────────────────────

// KnowledgeEntry is an append-only learning record. Written after every
// executed fix plan; queried (never mutated) before generating a new one.
type KnowledgeEntry struct {
	ID        int64         `json:"id"`
	SiteID    string        `json:"site_id"`
	Type      KnowledgeType `json:"type"`
	Topic     string        `json:"topic"`
	Title     string        `json:"title"`
	Evidence  string        `json:"evidence,omitempty"`
	Decision  string        `json:"decision,omitempty"`
	Outcome   string        `json:"outcome,omitempty"`
	Tags      []string      `json:"tags,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}
