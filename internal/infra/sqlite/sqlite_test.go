package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/searchlight-io/searchlight/internal/domain"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func day(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

// ─── Metric Samples ─────────────────────────────────────────────────────────

func TestUpsertSamples_AppendOnly(t *testing.T) {
	db := newTestDB(t)

	samples := []domain.Sample{
		{Date: day("2026-08-01"), Value: 100},
		{Date: day("2026-08-02"), Value: 120},
	}
	if err := db.UpsertSamples("site-1", domain.SourceGA4, "sessions", samples); err != nil {
		t.Fatalf("UpsertSamples() error: %v", err)
	}

	// Re-ingesting the same day with a different value must not overwrite.
	again := []domain.Sample{{Date: day("2026-08-01"), Value: 999}}
	if err := db.UpsertSamples("site-1", domain.SourceGA4, "sessions", again); err != nil {
		t.Fatalf("UpsertSamples() second call error: %v", err)
	}

	got, err := db.SampleRange("site-1", domain.SourceGA4, "sessions", day("2026-08-01"), day("2026-08-02"))
	if err != nil {
		t.Fatalf("SampleRange() error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(samples) = %d, want 2", len(got))
	}
	if got[0].Value != 100 {
		t.Errorf("day 1 value = %v, want 100 (append-only)", got[0].Value)
	}
}

func TestSampleRange_Bounds(t *testing.T) {
	db := newTestDB(t)

	var samples []domain.Sample
	for i := 1; i <= 10; i++ {
		samples = append(samples, domain.Sample{
			Date:  day("2026-08-01").AddDate(0, 0, i-1),
			Value: float64(i),
		})
	}
	if err := db.UpsertSamples("site-1", domain.SourceGSC, "clicks", samples); err != nil {
		t.Fatalf("UpsertSamples() error: %v", err)
	}

	got, err := db.SampleRange("site-1", domain.SourceGSC, "clicks", day("2026-08-03"), day("2026-08-05"))
	if err != nil {
		t.Fatalf("SampleRange() error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0].Value != 3 || got[2].Value != 5 {
		t.Errorf("range = [%v..%v], want [3..5]", got[0].Value, got[2].Value)
	}
}

// ─── Runs ───────────────────────────────────────────────────────────────────

func TestRunLifecycle(t *testing.T) {
	db := newTestDB(t)

	run := domain.RunSummary{
		ID:        "run-1",
		SiteID:    "site-1",
		Day:       "2026-08-28",
		Status:    domain.RunRunning,
		StartedAt: time.Now(),
	}
	if err := db.InsertRun(run); err != nil {
		t.Fatalf("InsertRun() error: %v", err)
	}

	run.Status = domain.RunPartial
	run.FinishedAt = time.Now()
	run.AnomalyCount = 2
	run.TicketCount = 1
	run.PrimaryHypothesis = domain.HypoTrackingGap
	run.PrimaryConfidence = domain.ConfMedium
	run.FailedSources = []string{"gsc"}
	if err := db.FinishRun(run); err != nil {
		t.Fatalf("FinishRun() error: %v", err)
	}

	got, err := db.GetRun("run-1")
	if err != nil {
		t.Fatalf("GetRun() error: %v", err)
	}
	if got.Status != domain.RunPartial {
		t.Errorf("status = %s, want partial", got.Status)
	}
	if got.PrimaryHypothesis != domain.HypoTrackingGap {
		t.Errorf("primary = %s, want %s", got.PrimaryHypothesis, domain.HypoTrackingGap)
	}
	if len(got.FailedSources) != 1 || got.FailedSources[0] != "gsc" {
		t.Errorf("failed sources = %v, want [gsc]", got.FailedSources)
	}
}

func TestRunForDay_IgnoresFailedRuns(t *testing.T) {
	db := newTestDB(t)

	failed := domain.RunSummary{
		ID: "run-failed", SiteID: "site-1", Day: "2026-08-28",
		Status: domain.RunRunning, StartedAt: time.Now(),
	}
	if err := db.InsertRun(failed); err != nil {
		t.Fatalf("InsertRun() error: %v", err)
	}
	failed.Status = domain.RunFailed
	failed.FinishedAt = time.Now()
	if err := db.FinishRun(failed); err != nil {
		t.Fatalf("FinishRun() error: %v", err)
	}

	got, err := db.RunForDay("site-1", "2026-08-28")
	if err != nil {
		t.Fatalf("RunForDay() error: %v", err)
	}
	if got != nil {
		t.Errorf("RunForDay() = %v, want nil (failed runs allow retry)", got)
	}
}

func TestGetRun_NotFound(t *testing.T) {
	db := newTestDB(t)
	if _, err := db.GetRun("missing"); err != domain.ErrRunNotFound {
		t.Errorf("GetRun(missing) error = %v, want ErrRunNotFound", err)
	}
}

// ─── Anomalies & Hypotheses ─────────────────────────────────────────────────

func TestAnomalyRoundTrip(t *testing.T) {
	db := newTestDB(t)

	delta := -42.5
	a := domain.AnomalyRecord{
		RunID: "run-1", Source: domain.SourceGA4, MetricKey: "sessions",
		CurrentValue: 50, BaselineMean: 100, BaselineStddev: 10,
		ZScore: -5, DeltaPct: &delta, Severity: domain.SevSevere,
		StartDate: day("2026-08-25"),
	}
	id, err := db.InsertAnomaly(a)
	if err != nil {
		t.Fatalf("InsertAnomaly() error: %v", err)
	}
	if id < 1 {
		t.Fatalf("id = %d, want >= 1", id)
	}

	got, err := db.AnomaliesForRun("run-1")
	if err != nil {
		t.Fatalf("AnomaliesForRun() error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0].DeltaPct == nil || *got[0].DeltaPct != -42.5 {
		t.Errorf("delta_pct = %v, want -42.5", got[0].DeltaPct)
	}
	if got[0].Severity != domain.SevSevere {
		t.Errorf("severity = %s, want severe", got[0].Severity)
	}
}

func TestAnomaly_NilDeltaPct(t *testing.T) {
	db := newTestDB(t)

	a := domain.AnomalyRecord{
		RunID: "run-1", Source: domain.SourceUptime, MetricKey: "error_rate",
		CurrentValue: 0.5, ZScore: 3.2, Severity: domain.SevSevere,
		StartDate: day("2026-08-25"),
	}
	if _, err := db.InsertAnomaly(a); err != nil {
		t.Fatalf("InsertAnomaly() error: %v", err)
	}
	got, err := db.AnomaliesForRun("run-1")
	if err != nil {
		t.Fatalf("AnomaliesForRun() error: %v", err)
	}
	if got[0].DeltaPct != nil {
		t.Errorf("delta_pct = %v, want nil (zero baseline)", *got[0].DeltaPct)
	}
}

func TestHypothesesRoundTrip(t *testing.T) {
	db := newTestDB(t)

	hypotheses := []domain.Hypothesis{
		{RunID: "run-1", Rank: 1, Key: domain.HypoTrackingGap, Confidence: domain.ConfHigh,
			SupportingAnomalyIDs: []int64{3, 7}},
		{RunID: "run-1", Rank: 2, Key: domain.HypoVisibility, Confidence: domain.ConfLow,
			MissingData: []string{"gsc"}},
	}
	if err := db.InsertHypotheses(hypotheses); err != nil {
		t.Fatalf("InsertHypotheses() error: %v", err)
	}

	got, err := db.HypothesesForRun("run-1")
	if err != nil {
		t.Fatalf("HypothesesForRun() error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Rank != 1 || got[0].Key != domain.HypoTrackingGap {
		t.Errorf("rank 1 = %s, want %s", got[0].Key, domain.HypoTrackingGap)
	}
	if len(got[0].SupportingAnomalyIDs) != 2 || got[0].SupportingAnomalyIDs[1] != 7 {
		t.Errorf("supporting IDs = %v, want [3 7]", got[0].SupportingAnomalyIDs)
	}
	if len(got[1].MissingData) != 1 || got[1].MissingData[0] != "gsc" {
		t.Errorf("missing data = %v, want [gsc]", got[1].MissingData)
	}
}

// ─── Tickets ────────────────────────────────────────────────────────────────

func newTicket(id, fingerprint string) domain.Ticket {
	now := time.Now()
	return domain.Ticket{
		ID: id, RunID: "run-1", SiteID: "site-1",
		HypothesisKey: domain.HypoTrackingGap, Fingerprint: fingerprint,
		IssueType: "tracking", Target: "ga4 tag", Title: "Verify analytics tag",
		Priority: domain.P0, Status: domain.TicketOpen,
		CreatedAt: now, LastSeenAt: now,
	}
}

func TestCreateOrRefreshTicket_Dedup(t *testing.T) {
	db := newTestDB(t)

	created, err := db.CreateOrRefreshTicket(newTicket("t-1", "fp-1"))
	if err != nil {
		t.Fatalf("CreateOrRefreshTicket() error: %v", err)
	}
	if !created {
		t.Fatal("first insert should create")
	}

	// Same fingerprint while open → refresh, not create.
	dup := newTicket("t-2", "fp-1")
	dup.Evidence = "seen again"
	created, err = db.CreateOrRefreshTicket(dup)
	if err != nil {
		t.Fatalf("CreateOrRefreshTicket() dup error: %v", err)
	}
	if created {
		t.Error("duplicate fingerprint should not create a second open ticket")
	}

	open, err := db.ListTickets("site-1", domain.TicketOpen, 10)
	if err != nil {
		t.Fatalf("ListTickets() error: %v", err)
	}
	if len(open) != 1 {
		t.Fatalf("open tickets = %d, want 1", len(open))
	}
	if open[0].Evidence != "seen again" {
		t.Errorf("evidence = %q, want refreshed", open[0].Evidence)
	}
}

func TestCreateOrRefreshTicket_ReopensAfterDone(t *testing.T) {
	db := newTestDB(t)

	if _, err := db.CreateOrRefreshTicket(newTicket("t-1", "fp-1")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := db.UpdateTicketStatus("t-1", domain.TicketDone, "alex"); err != nil {
		t.Fatalf("UpdateTicketStatus() error: %v", err)
	}

	// Fingerprint dedup only applies to open tickets.
	created, err := db.CreateOrRefreshTicket(newTicket("t-2", "fp-1"))
	if err != nil {
		t.Fatalf("create after done: %v", err)
	}
	if !created {
		t.Error("closed fingerprint should allow a new ticket")
	}
}

func TestUpdateTicketStatus_NotFound(t *testing.T) {
	db := newTestDB(t)
	if err := db.UpdateTicketStatus("missing", domain.TicketDone, ""); err != domain.ErrTicketNotFound {
		t.Errorf("error = %v, want ErrTicketNotFound", err)
	}
}

// ─── Fix Plans ──────────────────────────────────────────────────────────────

func newPlan(id string) domain.FixPlan {
	now := time.Now()
	return domain.FixPlan{
		ID: id, SiteID: "site-1", Topic: "tracking",
		GeneratedAt: now, ExpiresAt: now.Add(24 * time.Hour),
		CooldownAllowed: true,
		Items: []domain.PlanItem{
			{Action: "verify_tag", Target: "ga4", Rationale: "sessions dropped with stable search"},
		},
		Status: domain.PlanPending,
	}
}

func TestCreatePlanIfAbsent_Idempotent(t *testing.T) {
	db := newTestDB(t)

	first, created, err := db.CreatePlanIfAbsent(newPlan("plan-1"))
	if err != nil {
		t.Fatalf("CreatePlanIfAbsent() error: %v", err)
	}
	if !created {
		t.Fatal("first call should create")
	}

	second, created, err := db.CreatePlanIfAbsent(newPlan("plan-2"))
	if err != nil {
		t.Fatalf("CreatePlanIfAbsent() second error: %v", err)
	}
	if created {
		t.Error("second call should return existing plan")
	}
	if second.ID != first.ID {
		t.Errorf("plan_id = %s, want %s (idempotent)", second.ID, first.ID)
	}
}

func TestMarkPlanExecuted_OnlyOnce(t *testing.T) {
	db := newTestDB(t)

	if _, _, err := db.CreatePlanIfAbsent(newPlan("plan-1")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := db.MarkPlanExecuted("plan-1", time.Now(), 1); err != nil {
		t.Fatalf("MarkPlanExecuted() error: %v", err)
	}
	if err := db.MarkPlanExecuted("plan-1", time.Now(), 1); err != domain.ErrInvalidState {
		t.Errorf("re-execute error = %v, want ErrInvalidState", err)
	}
}

func TestLastExecutedAt(t *testing.T) {
	db := newTestDB(t)

	got, err := db.LastExecutedAt("site-1", "tracking")
	if err != nil {
		t.Fatalf("LastExecutedAt() error: %v", err)
	}
	if !got.IsZero() {
		t.Errorf("LastExecutedAt() = %v, want zero before any execution", got)
	}

	if _, _, err := db.CreatePlanIfAbsent(newPlan("plan-1")); err != nil {
		t.Fatalf("create: %v", err)
	}
	executedAt := time.Now().Truncate(time.Second)
	if err := db.MarkPlanExecuted("plan-1", executedAt, 1); err != nil {
		t.Fatalf("execute: %v", err)
	}

	got, err = db.LastExecutedAt("site-1", "tracking")
	if err != nil {
		t.Fatalf("LastExecutedAt() error: %v", err)
	}
	if !got.Equal(executedAt) {
		t.Errorf("LastExecutedAt() = %v, want %v", got, executedAt)
	}
}

func TestExpireStalePlans(t *testing.T) {
	db := newTestDB(t)

	stale := newPlan("plan-1")
	stale.ExpiresAt = time.Now().Add(-time.Hour)
	if _, _, err := db.CreatePlanIfAbsent(stale); err != nil {
		t.Fatalf("create: %v", err)
	}

	n, err := db.ExpireStalePlans(time.Now())
	if err != nil {
		t.Fatalf("ExpireStalePlans() error: %v", err)
	}
	if n != 1 {
		t.Errorf("expired = %d, want 1", n)
	}

	got, err := db.GetPlan("plan-1")
	if err != nil {
		t.Fatalf("GetPlan() error: %v", err)
	}
	if got.Status != domain.PlanExpired {
		t.Errorf("status = %s, want expired", got.Status)
	}
}

// ─── Knowledge Store ────────────────────────────────────────────────────────

func TestKnowledgeWriteAndQuery(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	entries := []domain.KnowledgeEntry{
		{SiteID: "site-1", Type: domain.KnowFixResult, Topic: "tracking",
			Title: "re-installed tag", Outcome: "verified"},
		{SiteID: "site-1", Type: domain.KnowObservation, Topic: "content",
			Title: "seasonal dip"},
		{SiteID: "site-2", Type: domain.KnowFixResult, Topic: "tracking",
			Title: "other site"},
	}
	for _, e := range entries {
		if _, err := db.Write(ctx, e); err != nil {
			t.Fatalf("Write() error: %v", err)
		}
	}

	got, err := db.Query(ctx, "site-1", "tracking", []domain.KnowledgeType{domain.KnowFixResult}, 10)
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0].Title != "re-installed tag" {
		t.Errorf("title = %q", got[0].Title)
	}

	all, err := db.Query(ctx, "site-1", "", nil, 10)
	if err != nil {
		t.Fatalf("Query() all error: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("len = %d, want 2 (topic filter empty)", len(all))
	}
}
