// Package classifier turns a run's anomaly set into ranked root-cause
// hypotheses.
//
// Decision rules form an ordered list evaluated top to bottom; the first
// match becomes the rank-1 primary classification. Rules are mutually
// exclusive first: more specific compound rules sit above broader ones.
// When anomalies exist but nothing matches, the classifier fails closed
// to "inconclusive": it never invents a hypothesis.
package classifier

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/searchlight-io/searchlight/internal/domain"
)

// ─── Evidence Context ───────────────────────────────────────────────────────

// Evidence is everything a rule may inspect: the run's anomalies indexed
// by source-qualified metric key, and the per-source fetch statuses.
type Evidence struct {
	RunID     string
	SiteID    string
	Anomalies []domain.AnomalyRecord
	Statuses  domain.StatusMap

	byKey map[string]*domain.AnomalyRecord
}

// NewEvidence indexes the anomaly set for rule evaluation.
func NewEvidence(runID, siteID string, anomalies []domain.AnomalyRecord, statuses domain.StatusMap) *Evidence {
	ev := &Evidence{
		RunID:     runID,
		SiteID:    siteID,
		Anomalies: anomalies,
		Statuses:  statuses,
		byKey:     make(map[string]*domain.AnomalyRecord, len(anomalies)),
	}
	for i := range anomalies {
		ev.byKey[anomalies[i].Key()] = &anomalies[i]
	}
	return ev
}

// Anomaly returns the record for "source/metric", or nil.
func (ev *Evidence) Anomaly(source domain.Source, metricKey string) *domain.AnomalyRecord {
	return ev.byKey[string(source)+"/"+metricKey]
}

// SeverityAtLeast reports whether the metric has an anomaly at or above
// the given severity.
func (ev *Evidence) SeverityAtLeast(source domain.Source, metricKey string, min domain.Severity) bool {
	a := ev.Anomaly(source, metricKey)
	return a != nil && a.Severity.Weight() >= min.Weight()
}

// MildOrAbsent reports whether the metric is quiet: no anomaly, or at
// most a mild one. A failed source leaves no anomaly and therefore counts
// as quiet: the per-rule confidence downgrade covers that uncertainty.
func (ev *Evidence) MildOrAbsent(source domain.Source, metricKey string) bool {
	a := ev.Anomaly(source, metricKey)
	return a == nil || a.Severity == domain.SevMild
}

// Stable reports whether the metric shows no recorded anomaly. Like
// MildOrAbsent, missing data reads as absence of contrary evidence; the
// confidence downgrade accounts for the failed source.
func (ev *Evidence) Stable(source domain.Source, metricKey string) bool {
	return ev.Anomaly(source, metricKey) == nil
}

// OnlySource reports whether every anomaly in the run comes from the
// given source.
func (ev *Evidence) OnlySource(source domain.Source) bool {
	if len(ev.Anomalies) == 0 {
		return false
	}
	for _, a := range ev.Anomalies {
		if a.Source != source {
			return false
		}
	}
	return true
}

// IDsFor returns the anomaly IDs for the given source-qualified keys,
// skipping keys with no anomaly.
func (ev *Evidence) IDsFor(keys ...string) []int64 {
	var ids []int64
	for _, k := range keys {
		if a := ev.byKey[k]; a != nil {
			ids = append(ids, a.ID)
		}
	}
	return ids
}

// AllIDs returns every anomaly ID in the run.
func (ev *Evidence) AllIDs() []int64 {
	ids := make([]int64, len(ev.Anomalies))
	for i, a := range ev.Anomalies {
		ids[i] = a.ID
	}
	return ids
}

// ─── Rules ──────────────────────────────────────────────────────────────────

// Rule is one root-cause decision. Rules carry a declared base confidence
// and the sources their evidence depends on; confidence is downgraded one
// level per failed dependency, never upgraded.
type Rule interface {
	// Key is the hypothesis key this rule produces.
	Key() string

	// Priority orders evaluation; lower runs first.
	Priority() int

	// DependsOn lists the sources whose data this rule reads.
	DependsOn() []domain.Source

	// BaseConfidence is the confidence when all evidence is present.
	BaseConfidence() domain.Confidence

	// CorroborationTopic names an optional secondary check, or "".
	CorroborationTopic() string

	// Matches reports whether the evidence fits this hypothesis.
	Matches(ev *Evidence) bool

	// Build produces the hypothesis (rank and final confidence are
	// assigned by the classifier).
	Build(ev *Evidence) domain.Hypothesis
}

// ─── Classifier ─────────────────────────────────────────────────────────────

// Config holds classifier tuning.
type Config struct {
	CorroborationTimeout time.Duration // per-check timeout (default 5s)
	CorroborationWindow  int           // days handed to the check (default 7)
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		CorroborationTimeout: 5 * time.Second,
		CorroborationWindow:  7,
	}
}

// Classifier evaluates the ordered rule list over a run's evidence.
type Classifier struct {
	cfg      Config
	rules    []Rule
	corrobor domain.CorroborationCheck // optional
}

// New creates a classifier with the default rule set.
func New(cfg Config) *Classifier {
	return &Classifier{cfg: cfg, rules: DefaultRules()}
}

// SetCorroboration attaches an optional secondary-evidence collaborator.
func (c *Classifier) SetCorroboration(check domain.CorroborationCheck) {
	c.corrobor = check
}

// SetRules replaces the rule list (tests).
func (c *Classifier) SetRules(rules []Rule) { c.rules = rules }

// Classify produces the ranked hypothesis list for a run. It always
// returns at least one hypothesis: a matching rule, "inconclusive" when
// anomalies exist but nothing matched, or "no_significant_change" when
// the run is clean.
func (c *Classifier) Classify(ctx context.Context, ev *Evidence) []domain.Hypothesis {
	type match struct {
		rule Rule
		hypo domain.Hypothesis
	}

	var matches []match
	for _, rule := range c.rules {
		if !rule.Matches(ev) {
			continue
		}
		h := rule.Build(ev)
		h.RunID = ev.RunID
		h.Confidence = c.applyConfidence(rule, ev, &h)
		matches = append(matches, match{rule: rule, hypo: h})
	}

	if len(matches) == 0 {
		matches = append(matches, match{hypo: c.failClosed(ev)})
	}

	// Stable order: rule priority, then confidence descending, then key.
	sort.SliceStable(matches, func(i, j int) bool {
		pi, pj := matchPriority(matches[i].rule), matchPriority(matches[j].rule)
		if pi != pj {
			return pi < pj
		}
		if matches[i].hypo.Confidence.Rank() != matches[j].hypo.Confidence.Rank() {
			return matches[i].hypo.Confidence.Rank() > matches[j].hypo.Confidence.Rank()
		}
		return matches[i].hypo.Key < matches[j].hypo.Key
	})

	hypotheses := make([]domain.Hypothesis, 0, len(matches)+1)
	for _, m := range matches {
		hypotheses = append(hypotheses, m.hypo)
	}

	// Corroboration may promote confidence or surface a competing
	// hypothesis; it never changes the established rank order.
	if competing := c.corroborate(ctx, ev, matches[0].rule, &hypotheses[0]); competing != nil {
		hypotheses = append(hypotheses, *competing)
	}

	// Dense, unique ranks.
	for i := range hypotheses {
		hypotheses[i].Rank = i + 1
	}
	return hypotheses
}

func matchPriority(r Rule) int {
	if r == nil {
		return 1 << 30 // fail-closed fallback sorts last
	}
	return r.Priority()
}

// applyConfidence downgrades the rule's base confidence one level per
// failed source dependency and records what was missing.
func (c *Classifier) applyConfidence(rule Rule, ev *Evidence, h *domain.Hypothesis) domain.Confidence {
	conf := rule.BaseConfidence()
	for _, src := range rule.DependsOn() {
		if ev.Statuses.Failed(src) {
			conf = conf.Downgrade()
			h.MissingData = append(h.MissingData, string(src))
		}
	}
	return conf
}

// failClosed yields the least-specific outcome for the evidence: the
// anomaly list attached as "inconclusive", or "no_significant_change".
func (c *Classifier) failClosed(ev *Evidence) domain.Hypothesis {
	if len(ev.Anomalies) > 0 {
		return domain.Hypothesis{
			RunID:                ev.RunID,
			Key:                  domain.HypoInconclusive,
			Confidence:           domain.ConfLow,
			SupportingAnomalyIDs: ev.AllIDs(),
			MissingData:          sourcesToStrings(ev.Statuses.FailedSources()),
		}
	}
	conf := domain.ConfHigh
	for range ev.Statuses.FailedSources() {
		conf = conf.Downgrade()
	}
	return domain.Hypothesis{
		RunID:       ev.RunID,
		Key:         domain.HypoNoChange,
		Confidence:  conf,
		MissingData: sourcesToStrings(ev.Statuses.FailedSources()),
	}
}

// corroborate runs the primary rule's secondary check, if any. A clean
// check promotes medium → high; a degraded check attaches a competing
// hypothesis after the existing ranks. Check failures are logged and
// noted as missing data, never fatal.
func (c *Classifier) corroborate(ctx context.Context, ev *Evidence, rule Rule, primary *domain.Hypothesis) *domain.Hypothesis {
	if c.corrobor == nil || rule == nil || rule.CorroborationTopic() == "" {
		return nil
	}
	topic := rule.CorroborationTopic()

	checkCtx, cancel := context.WithTimeout(ctx, c.cfg.CorroborationTimeout)
	defer cancel()

	result, err := c.corrobor.Run(checkCtx, ev.SiteID, topic, c.cfg.CorroborationWindow)
	if err != nil {
		log.Printf("[classifier] corroboration %q failed: %v", topic, err)
		primary.MissingData = append(primary.MissingData, fmt.Sprintf("corroboration:%s", topic))
		return nil
	}

	if result.Degraded {
		return &domain.Hypothesis{
			RunID:                ev.RunID,
			Key:                  domain.HypoContentChange,
			Confidence:           domain.ConfMedium,
			SupportingAnomalyIDs: ev.AllIDs(),
		}
	}
	if primary.Confidence == domain.ConfMedium {
		primary.Confidence = domain.ConfHigh
	}
	return nil
}

func sourcesToStrings(sources []domain.Source) []string {
	if len(sources) == 0 {
		return nil
	}
	out := make([]string, len(sources))
	for i, s := range sources {
		out[i] = string(s)
	}
	return out
}
