package domain

import "time"

// ─── Plan Status ────────────────────────────────────────────────────────────

// PlanStatus is the fix-plan state machine:
// pending → {executed | expired | rejected}.
type PlanStatus string

const (
	PlanPending  PlanStatus = "pending"
	PlanExecuted PlanStatus = "executed"
	PlanExpired  PlanStatus = "expired"
	PlanRejected PlanStatus = "rejected"
)

// Terminal reports whether the plan reached a final state.
func (s PlanStatus) Terminal() bool {
	return s == PlanExecuted || s == PlanExpired || s == PlanRejected
}

// ─── Fix Plan ───────────────────────────────────────────────────────────────

// PlanItem is one bounded remediation step within a fix plan.
type PlanItem struct {
	Action    string `json:"action"`
	Target    string `json:"target"`
	Rationale string `json:"rationale,omitempty"`
}

// FixPlan is a time-boxed, size-bounded remediation plan for one
// (site, topic). At most one non-terminal plan exists per (site, topic).
type FixPlan struct {
	ID                    string     `json:"plan_id"`
	SiteID                string     `json:"site_id"`
	Topic                 string     `json:"topic"`
	GeneratedAt           time.Time  `json:"generated_at"`
	ExpiresAt             time.Time  `json:"expires_at"`
	CooldownAllowed       bool       `json:"cooldown_allowed"`
	CooldownNextAllowedAt time.Time  `json:"cooldown_next_allowed_at,omitempty"`
	Items                 []PlanItem `json:"items"`
	Status                PlanStatus `json:"status"`
	ExecutedAt            time.Time  `json:"executed_at,omitempty"`
	ExecutedItems         int        `json:"executed_items,omitempty"`
}

// ─── Execution ──────────────────────────────────────────────────────────────

// ChangeReceipt is what the external change executor returns after
// applying plan items.
type ChangeReceipt struct {
	Applied     bool   `json:"applied"`
	ReferenceID string `json:"reference_id,omitempty"`
	Details     string `json:"details,omitempty"`
}

// ExecutionResult summarizes one executePlan call for the caller.
type ExecutionResult struct {
	PlanID       string `json:"plan_id"`
	Applied      bool   `json:"applied"`
	ItemsApplied int    `json:"items_applied"`
	ReferenceID  string `json:"reference_id,omitempty"`
	Details      string `json:"details,omitempty"`
	Overridden   bool   `json:"overridden,omitempty"`
}
