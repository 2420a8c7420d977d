package classifier

import (
	"context"
	"errors"
	"testing"

	"github.com/searchlight-io/searchlight/internal/domain"
)

// ─── Helpers ────────────────────────────────────────────────────────────────

func anomaly(id int64, source domain.Source, metric string, sev domain.Severity, z float64) domain.AnomalyRecord {
	return domain.AnomalyRecord{
		ID: id, RunID: "run-1", Source: source, MetricKey: metric,
		Severity: sev, ZScore: z,
	}
}

func allOK() domain.StatusMap {
	m := domain.StatusMap{}
	for _, s := range domain.AllSources {
		m[s] = domain.FetchStatus{Source: s, OK: true}
	}
	return m
}

func withFailed(m domain.StatusMap, sources ...domain.Source) domain.StatusMap {
	for _, s := range sources {
		m[s] = domain.FetchStatus{Source: s, OK: false, Error: "connect timeout"}
	}
	return m
}

func classify(t *testing.T, anomalies []domain.AnomalyRecord, statuses domain.StatusMap) []domain.Hypothesis {
	t.Helper()
	c := New(DefaultConfig())
	ev := NewEvidence("run-1", "site-1", anomalies, statuses)
	got := c.Classify(context.Background(), ev)
	if len(got) == 0 {
		t.Fatal("Classify() returned no hypotheses")
	}
	return got
}

// stubCheck is a canned corroboration collaborator.
type stubCheck struct {
	result domain.CorroborationResult
	err    error
}

func (s stubCheck) Run(ctx context.Context, siteID, topic string, windowDays int) (domain.CorroborationResult, error) {
	return s.result, s.err
}

// ─── Primary Classification ─────────────────────────────────────────────────

func TestClassify_TrackingGap(t *testing.T) {
	// Organic sessions crater while search surfacing is stable: the tag
	// broke, not the traffic.
	got := classify(t, []domain.AnomalyRecord{
		anomaly(1, domain.SourceGA4, "sessions", domain.SevSevere, -3.4),
	}, allOK())

	if got[0].Key != domain.HypoTrackingGap {
		t.Fatalf("primary = %s, want %s", got[0].Key, domain.HypoTrackingGap)
	}
	if got[0].Confidence != domain.ConfHigh {
		t.Errorf("confidence = %s, want high", got[0].Confidence)
	}
	if got[0].Rank != 1 {
		t.Errorf("rank = %d, want 1", got[0].Rank)
	}
	if len(got[0].SupportingAnomalyIDs) != 1 || got[0].SupportingAnomalyIDs[0] != 1 {
		t.Errorf("supporting = %v, want [1]", got[0].SupportingAnomalyIDs)
	}
}

func TestClassify_TrackingGap_DowngradedOnFailedFetch(t *testing.T) {
	// Same evidence but the gsc fetch failed: same key, confidence down
	// one level, missing data recorded.
	got := classify(t, []domain.AnomalyRecord{
		anomaly(1, domain.SourceGA4, "sessions", domain.SevSevere, -3.4),
	}, withFailed(allOK(), domain.SourceGSC))

	if got[0].Key != domain.HypoTrackingGap {
		t.Fatalf("primary = %s, want %s", got[0].Key, domain.HypoTrackingGap)
	}
	if got[0].Confidence.Rank() > domain.ConfMedium.Rank() {
		t.Errorf("confidence = %s, want at most medium", got[0].Confidence)
	}
	if len(got[0].MissingData) == 0 || got[0].MissingData[0] != "gsc" {
		t.Errorf("missing data = %v, want [gsc]", got[0].MissingData)
	}
}

func TestClassify_VisibilityLoss(t *testing.T) {
	got := classify(t, []domain.AnomalyRecord{
		anomaly(1, domain.SourceGSC, "impressions", domain.SevSevere, -4.1),
		anomaly(2, domain.SourceGA4, "sessions", domain.SevMild, -1.2),
	}, allOK())

	if got[0].Key != domain.HypoVisibility {
		t.Fatalf("primary = %s, want %s", got[0].Key, domain.HypoVisibility)
	}
}

func TestClassify_SiteOutageBeatsVisibility(t *testing.T) {
	// Error-rate fire plus traffic drop is an outage even when search
	// metrics also moved: the more specific rule sits first.
	got := classify(t, []domain.AnomalyRecord{
		anomaly(1, domain.SourceUptime, "error_rate", domain.SevSevere, -5),
		anomaly(2, domain.SourceGA4, "sessions", domain.SevModerate, -2.4),
	}, allOK())

	if got[0].Key != domain.HypoSiteOutage {
		t.Fatalf("primary = %s, want %s", got[0].Key, domain.HypoSiteOutage)
	}
	if got[0].Confidence != domain.ConfHigh {
		t.Errorf("confidence = %s, want high", got[0].Confidence)
	}
}

func TestClassify_PaidCampaignIssue(t *testing.T) {
	got := classify(t, []domain.AnomalyRecord{
		anomaly(1, domain.SourceAds, "spend", domain.SevSevere, 4.8),
	}, allOK())

	if got[0].Key != domain.HypoPaidCampaign {
		t.Fatalf("primary = %s, want %s", got[0].Key, domain.HypoPaidCampaign)
	}
}

func TestClassify_PaidIssueNotAloneDoesNotMatch(t *testing.T) {
	// Spend anomaly plus an unrelated anomaly is no longer "the only
	// anomaly": with no compound rule it must fail closed.
	got := classify(t, []domain.AnomalyRecord{
		anomaly(1, domain.SourceAds, "spend", domain.SevSevere, 4.8),
		anomaly(2, domain.SourceGSC, "clicks", domain.SevModerate, -2.1),
	}, allOK())

	if got[0].Key != domain.HypoInconclusive {
		t.Fatalf("primary = %s, want %s", got[0].Key, domain.HypoInconclusive)
	}
}

// ─── Fail Closed ────────────────────────────────────────────────────────────

func TestClassify_FailClosed_Inconclusive(t *testing.T) {
	// Anomalies matching no rule: exactly one hypothesis, key
	// "inconclusive", confidence low, full anomaly list attached.
	got := classify(t, []domain.AnomalyRecord{
		anomaly(1, domain.SourceGSC, "clicks", domain.SevModerate, -2.2),
		anomaly(2, domain.SourceUptime, "error_rate", domain.SevMild, -1.1),
	}, allOK())

	if len(got) != 1 {
		t.Fatalf("len = %d, want exactly 1", len(got))
	}
	if got[0].Key != domain.HypoInconclusive {
		t.Errorf("key = %s, want inconclusive", got[0].Key)
	}
	if got[0].Confidence != domain.ConfLow {
		t.Errorf("confidence = %s, want low", got[0].Confidence)
	}
	if len(got[0].SupportingAnomalyIDs) != 2 {
		t.Errorf("supporting = %v, want both anomalies", got[0].SupportingAnomalyIDs)
	}
}

func TestClassify_ZeroAnomalies_NoChange(t *testing.T) {
	got := classify(t, nil, allOK())

	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0].Key != domain.HypoNoChange {
		t.Errorf("key = %s, want %s", got[0].Key, domain.HypoNoChange)
	}
	if got[0].Confidence != domain.ConfHigh {
		t.Errorf("confidence = %s, want high for a clean full-data run", got[0].Confidence)
	}
}

func TestClassify_ZeroAnomaliesWithFailures_DowngradedNoChange(t *testing.T) {
	got := classify(t, nil, withFailed(allOK(), domain.SourceGA4, domain.SourceGSC))

	if got[0].Key != domain.HypoNoChange {
		t.Fatalf("key = %s, want %s", got[0].Key, domain.HypoNoChange)
	}
	if got[0].Confidence != domain.ConfLow {
		t.Errorf("confidence = %s, want low with two sources missing", got[0].Confidence)
	}
}

// ─── Ranking ────────────────────────────────────────────────────────────────

func TestClassify_RanksAreDenseAndUnique(t *testing.T) {
	// Outage and paid problems at once: two matches, ranks 1..n.
	got := classify(t, []domain.AnomalyRecord{
		anomaly(1, domain.SourceUptime, "error_rate", domain.SevSevere, -5),
		anomaly(2, domain.SourceGA4, "sessions", domain.SevSevere, -4),
	}, allOK())

	seen := map[int]bool{}
	for i, h := range got {
		if h.Rank != i+1 {
			t.Errorf("hypothesis %d has rank %d, want %d", i, h.Rank, i+1)
		}
		if seen[h.Rank] {
			t.Errorf("duplicate rank %d", h.Rank)
		}
		seen[h.Rank] = true
	}
	if got[0].Key != domain.HypoSiteOutage {
		t.Errorf("primary = %s, want outage (lowest priority number)", got[0].Key)
	}
}

// ─── Corroboration ──────────────────────────────────────────────────────────

func TestClassify_CorroborationPromotesMediumToHigh(t *testing.T) {
	c := New(DefaultConfig())
	c.SetCorroboration(stubCheck{result: domain.CorroborationResult{Degraded: false}})

	ev := NewEvidence("run-1", "site-1", []domain.AnomalyRecord{
		anomaly(1, domain.SourceGSC, "impressions", domain.SevSevere, -4.1),
	}, allOK())
	got := c.Classify(context.Background(), ev)

	if got[0].Key != domain.HypoVisibility {
		t.Fatalf("primary = %s, want %s", got[0].Key, domain.HypoVisibility)
	}
	if got[0].Confidence != domain.ConfHigh {
		t.Errorf("confidence = %s, want high after clean corroboration", got[0].Confidence)
	}
}

func TestClassify_CorroborationSurfacesCompetingHypothesis(t *testing.T) {
	c := New(DefaultConfig())
	c.SetCorroboration(stubCheck{result: domain.CorroborationResult{
		Degraded: true, Details: "30 pages rewritten in window",
	}})

	ev := NewEvidence("run-1", "site-1", []domain.AnomalyRecord{
		anomaly(1, domain.SourceGSC, "impressions", domain.SevSevere, -4.1),
	}, allOK())
	got := c.Classify(context.Background(), ev)

	// Rank order is untouched; the competing hypothesis trails it.
	if got[0].Key != domain.HypoVisibility {
		t.Fatalf("primary = %s, want %s", got[0].Key, domain.HypoVisibility)
	}
	last := got[len(got)-1]
	if last.Key != domain.HypoContentChange {
		t.Errorf("trailing hypothesis = %s, want %s", last.Key, domain.HypoContentChange)
	}
}

func TestClassify_CorroborationFailureIsNonFatal(t *testing.T) {
	c := New(DefaultConfig())
	c.SetCorroboration(stubCheck{err: errors.New("collaborator down")})

	ev := NewEvidence("run-1", "site-1", []domain.AnomalyRecord{
		anomaly(1, domain.SourceGSC, "impressions", domain.SevSevere, -4.1),
	}, allOK())
	got := c.Classify(context.Background(), ev)

	if got[0].Key != domain.HypoVisibility {
		t.Fatalf("primary = %s, want %s", got[0].Key, domain.HypoVisibility)
	}
	found := false
	for _, m := range got[0].MissingData {
		if m == "corroboration:content" {
			found = true
		}
	}
	if !found {
		t.Errorf("missing data = %v, want corroboration noted", got[0].MissingData)
	}
}
