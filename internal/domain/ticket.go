package domain

import "time"

// ─── Priority / Status ──────────────────────────────────────────────────────

// Priority orders operator attention: P0 is urgent, P3 is backlog.
type Priority string

const (
	P0 Priority = "P0"
	P1 Priority = "P1"
	P2 Priority = "P2"
	P3 Priority = "P3"
)

// TicketStatus is the operator-driven lifecycle of a ticket. Status is the
// only field mutated after creation.
type TicketStatus string

const (
	TicketOpen       TicketStatus = "open"
	TicketInProgress TicketStatus = "in_progress"
	TicketDone       TicketStatus = "done"
	TicketDismissed  TicketStatus = "dismissed"
)

// ValidTicketStatus reports whether s is a known status value.
func ValidTicketStatus(s TicketStatus) bool {
	switch s {
	case TicketOpen, TicketInProgress, TicketDone, TicketDismissed:
		return true
	}
	return false
}

// ─── Ticket ─────────────────────────────────────────────────────────────────

// Ticket is a human-actionable item derived from a hypothesis. Tickets with
// the same fingerprint collapse to one open ticket across runs.
type Ticket struct {
	ID            string       `json:"ticket_id"`
	RunID         string       `json:"run_id"`
	SiteID        string       `json:"site_id"`
	HypothesisKey string       `json:"hypothesis_key,omitempty"`
	Fingerprint   string       `json:"fingerprint"`
	IssueType     string       `json:"issue_type"`
	Target        string       `json:"target"`
	Title         string       `json:"title"`
	Priority      Priority     `json:"priority"`
	Status        TicketStatus `json:"status"`
	Owner         string       `json:"owner,omitempty"`
	Evidence      string       `json:"evidence,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	LastSeenAt    time.Time    `json:"last_seen_at"`
}
