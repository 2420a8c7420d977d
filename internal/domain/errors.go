package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure: no infrastructure dependency.
// Expected non-value outcomes (no data, no matching rule) are result
// variants, not errors; only genuine faults and state-machine misuse
// surface as errors to callers.

var (
	// Detector errors
	ErrInsufficientData = errors.New("insufficient samples to compute a baseline")

	// Run errors
	ErrSourceFetchFailed = errors.New("metric source fetch failed")
	ErrAllSourcesFailed  = errors.New("all metric sources failed: run aborted")
	ErrRunNotFound       = errors.New("run not found")

	// Ticket errors
	ErrTicketNotFound      = errors.New("ticket not found")
	ErrInvalidTicketStatus = errors.New("invalid ticket status")

	// Fix-plan errors
	ErrCooldownActive = errors.New("cooldown active: plan execution blocked")
	ErrPlanExpired    = errors.New("fix plan has expired")
	ErrInvalidState   = errors.New("fix plan is not in a valid state for this operation")
	ErrPlanNotFound   = errors.New("fix plan not found")

	// Knowledge store errors (best-effort; logged, never fatal)
	ErrKnowledgeStoreUnavailable = errors.New("knowledge store unavailable")
)
