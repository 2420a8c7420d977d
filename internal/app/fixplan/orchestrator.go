// Package fixplan turns approved diagnostic findings into time-boxed,
// size-bounded remediation plans and gates their execution.
//
// Plans follow a per-(site, topic) state machine:
//
//	pending → {executed | expired | rejected}
//
// with at most one non-terminal plan per pair. This package is the sole
// place automated changes can be triggered: it enforces the per-topic
// cooldown between executions and the item cap per execution, and it
// records every executed plan in the knowledge store.
package fixplan

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/searchlight-io/searchlight/internal/domain"
	"github.com/searchlight-io/searchlight/internal/infra/metrics"
)

// ─── Configuration ──────────────────────────────────────────────────────────

// Config holds plan lifecycle tuning. All durations are injectable, not
// scattered literals.
type Config struct {
	Cooldown         time.Duration // gap between executions per topic (default 72h)
	PlanTTL          time.Duration // pending plan expiry (default 24h)
	MaxItems         int           // hard cap on items per plan (default 5)
	KnowledgeTimeout time.Duration // best-effort query timeout (default 3s)
	KnowledgeLimit   int           // prior entries consulted (default 10)
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Cooldown:         72 * time.Hour,
		PlanTTL:          24 * time.Hour,
		MaxItems:         5,
		KnowledgeTimeout: 3 * time.Second,
		KnowledgeLimit:   10,
	}
}

// ─── Store Boundary ─────────────────────────────────────────────────────────

// Store is the persistence slice the orchestrator needs.
type Store interface {
	CreatePlanIfAbsent(p domain.FixPlan) (*domain.FixPlan, bool, error)
	GetPlan(id string) (*domain.FixPlan, error)
	MarkPlanExecuted(id string, executedAt time.Time, executedItems int) error
	MarkPlanRejected(id string) error
	ExpireStalePlans(now time.Time) (int64, error)
	LastExecutedAt(siteID, topic string) (time.Time, error)
	OpenTicketsForTopic(siteID, topic string) ([]domain.Ticket, error)
}

// ─── Orchestrator ───────────────────────────────────────────────────────────

// Orchestrator manages fix-plan generation, cooldown enforcement, and
// execution.
type Orchestrator struct {
	cfg       Config
	store     Store
	knowledge domain.KnowledgeStore
	executor  domain.ChangeExecutor
	now       func() time.Time // injectable clock for testing
}

// New creates an orchestrator.
func New(cfg Config, store Store, knowledge domain.KnowledgeStore, executor domain.ChangeExecutor) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		store:     store,
		knowledge: knowledge,
		executor:  executor,
		now:       time.Now,
	}
}

// GeneratePlan returns the pending plan for (site, topic), creating one
// when none exists. Idempotent: while a pending unexpired plan exists,
// repeated calls return it unchanged. The knowledge-store consultation is
// best-effort: its failure degrades the plan's context, never blocks it.
func (o *Orchestrator) GeneratePlan(ctx context.Context, siteID, topic string) (*domain.FixPlan, error) {
	now := o.now()

	// Lazily invalidate stale pending plans so they cannot satisfy the
	// idempotency check below.
	if _, err := o.store.ExpireStalePlans(now); err != nil {
		return nil, fmt.Errorf("expire stale plans: %w", err)
	}

	prior := o.consultKnowledge(ctx, siteID, topic)
	items, err := o.deriveItems(siteID, topic, prior)
	if err != nil {
		return nil, err
	}

	lastExec, err := o.store.LastExecutedAt(siteID, topic)
	if err != nil {
		return nil, fmt.Errorf("cooldown lookup for %s/%s: %w", siteID, topic, err)
	}
	allowed, nextAllowed := o.cooldownState(lastExec, now)

	candidate := domain.FixPlan{
		ID:                    uuid.NewString(),
		SiteID:                siteID,
		Topic:                 topic,
		GeneratedAt:           now,
		ExpiresAt:             now.Add(o.cfg.PlanTTL),
		CooldownAllowed:       allowed,
		CooldownNextAllowedAt: nextAllowed,
		Items:                 items,
		Status:                domain.PlanPending,
	}

	plan, created, err := o.store.CreatePlanIfAbsent(candidate)
	if err != nil {
		return nil, fmt.Errorf("create plan for %s/%s: %w", siteID, topic, err)
	}
	if !created {
		log.Printf("[fixplan] returning existing pending plan %s for %s/%s", plan.ID, siteID, topic)
	}
	return plan, nil
}

// ExecuteOptions modify one execution request.
type ExecuteOptions struct {
	MaxItems         int
	OverrideCooldown bool
	OverrideReason   string
}

// ExecutePlan applies a pending plan through the external change
// executor. Fails with ErrCooldownActive, ErrPlanExpired, or
// ErrInvalidState per the state machine; never re-applies an executed
// plan. On success it writes one fix_result knowledge entry with the
// outcome marked pending verification.
func (o *Orchestrator) ExecutePlan(ctx context.Context, planID string, opts ExecuteOptions) (*domain.ExecutionResult, error) {
	plan, err := o.store.GetPlan(planID)
	if err != nil {
		return nil, err
	}
	now := o.now()

	if plan.Status != domain.PlanPending {
		return nil, fmt.Errorf("plan %s is %s: %w", planID, plan.Status, domain.ErrInvalidState)
	}
	if now.After(plan.ExpiresAt) {
		return nil, fmt.Errorf("plan %s expired at %s: %w", planID, plan.ExpiresAt.Format(time.RFC3339), domain.ErrPlanExpired)
	}

	// Cooldown is re-derived from the last execution, not trusted from
	// the generation-time snapshot: another plan may have executed since.
	lastExec, err := o.store.LastExecutedAt(plan.SiteID, plan.Topic)
	if err != nil {
		return nil, fmt.Errorf("cooldown lookup: %w", err)
	}
	allowed, nextAllowed := o.cooldownState(lastExec, now)
	if !allowed {
		if !opts.OverrideCooldown || opts.OverrideReason == "" {
			metrics.PlansBlocked.Inc()
			return nil, fmt.Errorf("plan %s blocked until %s: %w",
				planID, nextAllowed.Format(time.RFC3339), domain.ErrCooldownActive)
		}
		log.Printf("[fixplan] cooldown override for plan %s: %s", planID, opts.OverrideReason)
	}

	items := plan.Items
	if opts.MaxItems > 0 && opts.MaxItems < len(items) {
		items = items[:opts.MaxItems]
	}

	receipt, err := o.executor.Apply(ctx, plan.ID, items)
	if err != nil {
		return nil, fmt.Errorf("apply plan %s: %w", planID, err)
	}

	if err := o.store.MarkPlanExecuted(plan.ID, now, len(items)); err != nil {
		return nil, err
	}

	o.recordOutcome(ctx, plan, items, receipt, opts)
	metrics.PlansExecuted.Inc()

	return &domain.ExecutionResult{
		PlanID:       plan.ID,
		Applied:      receipt.Applied,
		ItemsApplied: len(items),
		ReferenceID:  receipt.ReferenceID,
		Details:      receipt.Details,
		Overridden:   !allowed,
	}, nil
}

// RejectPlan dismisses a pending plan without executing it.
func (o *Orchestrator) RejectPlan(planID string) error {
	if _, err := o.store.GetPlan(planID); err != nil {
		return err
	}
	return o.store.MarkPlanRejected(planID)
}

// cooldownState computes whether execution is allowed now and when the
// next execution becomes allowed.
func (o *Orchestrator) cooldownState(lastExec, now time.Time) (bool, time.Time) {
	if lastExec.IsZero() {
		return true, time.Time{}
	}
	next := lastExec.Add(o.cfg.Cooldown)
	return !now.Before(next), next
}

// consultKnowledge queries prior outcomes for the topic, best-effort.
func (o *Orchestrator) consultKnowledge(ctx context.Context, siteID, topic string) []domain.KnowledgeEntry {
	if o.knowledge == nil {
		return nil
	}
	queryCtx, cancel := context.WithTimeout(ctx, o.cfg.KnowledgeTimeout)
	defer cancel()

	entries, err := o.knowledge.Query(queryCtx, siteID, topic,
		[]domain.KnowledgeType{domain.KnowFixResult, domain.KnowRecommendation}, o.cfg.KnowledgeLimit)
	if err != nil {
		log.Printf("[fixplan] knowledge query for %s/%s failed (continuing degraded): %v", siteID, topic, err)
		return nil
	}
	return entries
}

// deriveItems builds the bounded remediation list from the topic's open
// tickets, annotated with applicable prior learnings.
func (o *Orchestrator) deriveItems(siteID, topic string, prior []domain.KnowledgeEntry) ([]domain.PlanItem, error) {
	tickets, err := o.store.OpenTicketsForTopic(siteID, topic)
	if err != nil {
		return nil, fmt.Errorf("open tickets for %s/%s: %w", siteID, topic, err)
	}

	var items []domain.PlanItem
	for _, t := range tickets {
		if len(items) >= o.cfg.MaxItems {
			break
		}
		items = append(items, domain.PlanItem{
			Action:    "resolve_" + t.IssueType,
			Target:    t.Target,
			Rationale: t.Evidence,
		})
	}
	if len(items) == 0 {
		// No open evidence: fall back to a single investigation item so
		// the plan is still actionable.
		items = append(items, domain.PlanItem{
			Action:    "investigate",
			Target:    topic,
			Rationale: "no open tickets: manual investigation of " + topic,
		})
	}

	if note := priorNote(prior); note != "" {
		items[0].Rationale = strings.TrimSpace(items[0].Rationale + " | " + note)
	}
	return items, nil
}

// priorNote summarizes prior fix outcomes worth carrying into the plan.
func priorNote(entries []domain.KnowledgeEntry) string {
	if len(entries) == 0 {
		return ""
	}
	latest := entries[0]
	return fmt.Sprintf("prior %s (%s): %s", latest.Type, latest.CreatedAt.Format("2006-01-02"), latest.Title)
}

// recordOutcome appends the fix_result knowledge entry. Best-effort:
// a write failure is logged, never surfaced.
func (o *Orchestrator) recordOutcome(ctx context.Context, plan *domain.FixPlan, items []domain.PlanItem, receipt domain.ChangeReceipt, opts ExecuteOptions) {
	if o.knowledge == nil {
		return
	}

	var executed []string
	for _, item := range items {
		executed = append(executed, item.Action+":"+item.Target)
	}
	decision := "executed"
	if opts.OverrideCooldown {
		decision = "executed with cooldown override: " + opts.OverrideReason
	}

	entry := domain.KnowledgeEntry{
		SiteID:   plan.SiteID,
		Type:     domain.KnowFixResult,
		Topic:    plan.Topic,
		Title:    fmt.Sprintf("executed fix plan %s (%d items)", plan.ID, len(items)),
		Evidence: strings.Join(executed, "; "),
		Decision: decision,
		Outcome:  "pending verification",
		Tags:     []string{"fixplan", plan.Topic},
	}
	if receipt.ReferenceID != "" {
		entry.Evidence += "; ref=" + receipt.ReferenceID
	}

	writeCtx, cancel := context.WithTimeout(ctx, o.cfg.KnowledgeTimeout)
	defer cancel()
	if _, err := o.knowledge.Write(writeCtx, entry); err != nil {
		log.Printf("[fixplan] knowledge write for plan %s failed: %v", plan.ID, err)
	}
}
