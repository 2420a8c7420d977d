// Package ticket converts ranked hypotheses into deduplicated,
// prioritized, human-actionable items.
//
// Each hypothesis maps through a static action-template table; candidate
// tickets are fingerprinted and checked against open tickets so recurring
// issues collapse to one item instead of piling up run after run.
package ticket

import (
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/searchlight-io/searchlight/internal/domain"
	"github.com/searchlight-io/searchlight/internal/infra/metrics"
)

// ─── Action Templates ───────────────────────────────────────────────────────

// Template describes one candidate action for a hypothesis.
type Template struct {
	IssueType string
	Target    string
	Title     string
}

// templates is the static hypothesis → action table. Inconclusive runs
// still get a triage item; "no significant change" produces nothing.
var templates = map[string][]Template{
	domain.HypoSiteOutage: {
		{IssueType: "availability", Target: "origin server", Title: "Investigate elevated error rate and restore availability"},
	},
	domain.HypoVisibility: {
		{IssueType: "visibility", Target: "indexed pages", Title: "Audit search indexing: impressions collapsed"},
		{IssueType: "visibility", Target: "sitemap", Title: "Verify sitemap submission and robots directives"},
	},
	domain.HypoTrackingGap: {
		{IssueType: "tracking", Target: "analytics tag", Title: "Verify analytics tag installation: sessions dropped with stable search"},
	},
	domain.HypoPaidCampaign: {
		{IssueType: "paid", Target: "ad campaigns", Title: "Review campaign budgets and delivery status"},
	},
	domain.HypoContentChange: {
		{IssueType: "content", Target: "recently edited pages", Title: "Review recent content changes against ranking drop"},
	},
	domain.HypoInconclusive: {
		{IssueType: "triage", Target: "metric anomalies", Title: "Manually triage unexplained metric anomalies"},
	},
}

// ─── Store Boundary ─────────────────────────────────────────────────────────

// Store is the slice of persistence the generator needs. Each call is an
// independent transaction.
type Store interface {
	CreateOrRefreshTicket(t domain.Ticket) (bool, error)
}

// ─── Generator ──────────────────────────────────────────────────────────────

// Generator renders hypotheses into tickets.
type Generator struct {
	store Store
	now   func() time.Time // injectable clock for testing
}

// New creates a ticket generator.
func New(store Store) *Generator {
	return &Generator{store: store, now: time.Now}
}

// Result reports what one generation pass did.
type Result struct {
	Created   []domain.Ticket
	Refreshed int
	Failed    int
}

// Generate derives tickets for every hypothesis in the run, not just the
// primary, deduplicating by fingerprint against open tickets. A failed
// write is logged and counted but never rolls back tickets already
// written for the run.
func (g *Generator) Generate(runID, siteID string, hypotheses []domain.Hypothesis, anomalies []domain.AnomalyRecord) Result {
	var result Result
	now := g.now()

	for _, h := range hypotheses {
		severity := maxSeverity(h, anomalies)
		for _, tpl := range templates[h.Key] {
			t := domain.Ticket{
				ID:            uuid.NewString(),
				RunID:         runID,
				SiteID:        siteID,
				HypothesisKey: h.Key,
				Fingerprint:   Fingerprint(siteID, tpl.IssueType, tpl.Target),
				IssueType:     tpl.IssueType,
				Target:        tpl.Target,
				Title:         tpl.Title,
				Priority:      mapPriority(h.Confidence, severity),
				Status:        domain.TicketOpen,
				Evidence:      evidenceSummary(h, anomalies),
				CreatedAt:     now,
				LastSeenAt:    now,
			}

			created, err := g.store.CreateOrRefreshTicket(t)
			if err != nil {
				log.Printf("[ticket] write failed for %s/%s: %v", siteID, t.Fingerprint, err)
				result.Failed++
				continue
			}
			if created {
				result.Created = append(result.Created, t)
			} else {
				result.Refreshed++
				metrics.TicketsDeduplicated.Inc()
			}
		}
	}
	return result
}

// mapPriority combines hypothesis confidence with the worst supporting
// anomaly severity:
//
//	high   → P0 (severe) / P1
//	medium → P1 (severe) / P2
//	low    → P2 (severe) / P3
func mapPriority(conf domain.Confidence, severity domain.Severity) domain.Priority {
	severe := severity == domain.SevSevere
	switch conf {
	case domain.ConfHigh:
		if severe {
			return domain.P0
		}
		return domain.P1
	case domain.ConfMedium:
		if severe {
			return domain.P1
		}
		return domain.P2
	default:
		if severe {
			return domain.P2
		}
		return domain.P3
	}
}

// maxSeverity returns the worst severity among the hypothesis's
// supporting anomalies.
func maxSeverity(h domain.Hypothesis, anomalies []domain.AnomalyRecord) domain.Severity {
	byID := make(map[int64]domain.AnomalyRecord, len(anomalies))
	for _, a := range anomalies {
		byID[a.ID] = a
	}
	var worst domain.Severity
	for _, id := range h.SupportingAnomalyIDs {
		if a, ok := byID[id]; ok && a.Severity.Weight() > worst.Weight() {
			worst = a.Severity
		}
	}
	return worst
}

// evidenceSummary renders a compact evidence line for the ticket.
func evidenceSummary(h domain.Hypothesis, anomalies []domain.AnomalyRecord) string {
	byID := make(map[int64]domain.AnomalyRecord, len(anomalies))
	for _, a := range anomalies {
		byID[a.ID] = a
	}
	summary := fmt.Sprintf("%s (%s confidence)", h.Key, h.Confidence)
	for _, id := range h.SupportingAnomalyIDs {
		if a, ok := byID[id]; ok {
			summary += fmt.Sprintf("; %s z=%.1f %s", a.Key(), a.ZScore, a.Severity)
		}
	}
	if len(h.MissingData) > 0 {
		summary += fmt.Sprintf("; degraded, missing: %v", h.MissingData)
	}
	return summary
}
