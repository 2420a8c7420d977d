// Package run drives the daily diagnostic pipeline: fetch metrics from
// every source in parallel, score each metric against its baseline,
// classify the anomaly pattern into ranked hypotheses, and emit tickets.
//
// Runs follow queued → running → {completed | partial | failed} and are
// idempotent per calendar day: a completed or partial run for (site, day)
// short-circuits later triggers unless forced. Failed runs do not block a
// retry.
package run

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/searchlight-io/searchlight/internal/app/classifier"
	"github.com/searchlight-io/searchlight/internal/app/detector"
	"github.com/searchlight-io/searchlight/internal/app/ticket"
	"github.com/searchlight-io/searchlight/internal/domain"
	"github.com/searchlight-io/searchlight/internal/infra/metrics"
)

// ─── Configuration ──────────────────────────────────────────────────────────

// Config holds run-level tuning.
type Config struct {
	FetchDays    int           // days of history fetched per source (default 17)
	FetchTimeout time.Duration // per-source fetch budget (default 30s)
}

// DefaultConfig returns production defaults. FetchDays covers the
// baseline window plus the current window.
func DefaultConfig() Config {
	return Config{
		FetchDays:    17,
		FetchTimeout: 30 * time.Second,
	}
}

// ─── Store Boundary ─────────────────────────────────────────────────────────

// Store is the persistence slice the runner needs.
type Store interface {
	RunForDay(siteID, day string) (*domain.RunSummary, error)
	InsertRun(run domain.RunSummary) error
	UpdateRunStatus(id string, status domain.RunStatus) error
	FinishRun(run domain.RunSummary) error
	UpsertSamples(siteID string, source domain.Source, metricKey string, samples []domain.Sample) error
	InsertAnomaly(a domain.AnomalyRecord) (int64, error)
	InsertHypotheses(hypotheses []domain.Hypothesis) error
}

// Notifier pushes noteworthy run outcomes to an external channel.
// Implementations must be non-blocking from the runner's point of view.
type Notifier interface {
	TicketCreated(ctx context.Context, t domain.Ticket)
	RunFinished(ctx context.Context, run domain.RunSummary)
}

// ─── Runner ─────────────────────────────────────────────────────────────────

// Runner executes diagnostic runs end to end.
type Runner struct {
	cfg        Config
	store      Store
	sources    []domain.MetricSource
	detector   *detector.Detector
	classifier *classifier.Classifier
	tickets    *ticket.Generator
	notifier   Notifier // optional
	now        func() time.Time
}

// New creates a runner over the given collaborators. notifier may be nil.
func New(cfg Config, store Store, sources []domain.MetricSource, det *detector.Detector, cls *classifier.Classifier, gen *ticket.Generator, notifier Notifier) *Runner {
	return &Runner{
		cfg:        cfg,
		store:      store,
		sources:    sources,
		detector:   det,
		classifier: cls,
		tickets:    gen,
		notifier:   notifier,
		now:        time.Now,
	}
}

// Execute performs one diagnostic run for the site. When a completed or
// partial run already exists for today and force is false, that run is
// returned unchanged.
func (r *Runner) Execute(ctx context.Context, siteID string, force bool) (*domain.RunSummary, error) {
	day := domain.DayString(r.now())

	if !force {
		if existing, err := r.store.RunForDay(siteID, day); err != nil {
			return nil, fmt.Errorf("idempotency check: %w", err)
		} else if existing != nil {
			log.Printf("[run] %s already diagnosed for %s (run %s, %s)", siteID, day, existing.ID, existing.Status)
			return existing, nil
		}
	}

	run := domain.RunSummary{
		ID:        uuid.NewString(),
		SiteID:    siteID,
		Day:       day,
		Status:    domain.RunQueued,
		StartedAt: r.now(),
	}
	if err := r.store.InsertRun(run); err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	if err := r.store.UpdateRunStatus(run.ID, domain.RunRunning); err != nil {
		return nil, fmt.Errorf("start run %s: %w", run.ID, err)
	}
	log.Printf("[run] %s started for %s day=%s", run.ID, siteID, day)

	statuses := r.fetchAll(ctx, siteID)

	if statuses.AllFailed() {
		run.Status = domain.RunFailed
		run.FinishedAt = r.now()
		run.FailedSources = sourcesToStrings(statuses.FailedSources())
		if err := r.store.FinishRun(run); err != nil {
			return nil, fmt.Errorf("finish failed run %s: %w", run.ID, err)
		}
		metrics.RunsTotal.WithLabelValues(string(domain.RunFailed)).Inc()
		log.Printf("[run] %s aborted: every source fetch failed", run.ID)
		return &run, fmt.Errorf("run %s: %w", run.ID, domain.ErrAllSourcesFailed)
	}

	anomalies, err := r.detectAll(run.ID, siteID, statuses)
	if err != nil {
		return nil, err
	}

	evidence := classifier.NewEvidence(run.ID, siteID, anomalies, statuses)
	hypotheses := r.classifier.Classify(ctx, evidence)
	if err := r.store.InsertHypotheses(hypotheses); err != nil {
		return nil, fmt.Errorf("persist hypotheses for run %s: %w", run.ID, err)
	}

	result := r.tickets.Generate(run.ID, siteID, hypotheses, anomalies)
	r.notifyTickets(ctx, result.Created)

	run.Status = domain.RunCompleted
	if len(statuses.FailedSources()) > 0 {
		run.Status = domain.RunPartial
	}
	run.FinishedAt = r.now()
	run.AnomalyCount = len(anomalies)
	run.TicketCount = len(result.Created)
	run.FailedSources = sourcesToStrings(statuses.FailedSources())
	if len(hypotheses) > 0 {
		run.PrimaryHypothesis = hypotheses[0].Key
		run.PrimaryConfidence = hypotheses[0].Confidence
	}
	if err := r.store.FinishRun(run); err != nil {
		return nil, fmt.Errorf("finish run %s: %w", run.ID, err)
	}

	metrics.RunsTotal.WithLabelValues(string(run.Status)).Inc()
	if r.notifier != nil {
		r.notifier.RunFinished(ctx, run)
	}
	log.Printf("[run] %s finished %s: %d anomalies, %d new tickets, primary=%s",
		run.ID, run.Status, run.AnomalyCount, run.TicketCount, run.PrimaryHypothesis)
	return &run, nil
}

// fetchAll pulls every source's metrics concurrently and persists the
// samples. Fetch failures are recorded in the status map, never returned:
// partial data still produces a (degraded) run.
func (r *Runner) fetchAll(ctx context.Context, siteID string) domain.StatusMap {
	end := domain.Day(r.now())
	start := end.AddDate(0, 0, -(r.cfg.FetchDays - 1))

	type fetchOutcome struct {
		source domain.Source
		err    error
	}
	results := make([]fetchOutcome, len(r.sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range r.sources {
		i, src := i, src
		g.Go(func() error {
			results[i] = fetchOutcome{source: src.Name(), err: r.fetchSource(gctx, src, siteID, start, end)}
			return nil // failures are data, not group errors
		})
	}
	_ = g.Wait()

	statuses := make(domain.StatusMap, len(results))
	for _, res := range results {
		st := domain.FetchStatus{Source: res.source, OK: res.err == nil}
		if res.err != nil {
			st.Error = res.err.Error()
			metrics.FetchFailures.WithLabelValues(string(res.source)).Inc()
			log.Printf("[run] fetch %s for %s failed: %v", res.source, siteID, res.err)
		}
		statuses[res.source] = st
	}
	return statuses
}

// fetchSource fetches and persists every metric one source provides.
// Any metric failing marks the whole source failed for this run.
func (r *Runner) fetchSource(ctx context.Context, src domain.MetricSource, siteID string, start, end time.Time) error {
	fetchCtx, cancel := context.WithTimeout(ctx, r.cfg.FetchTimeout)
	defer cancel()

	name := src.Name()
	for _, metricKey := range domain.SourceMetrics[name] {
		began := time.Now()
		samples, err := src.FetchDaily(fetchCtx, siteID, metricKey, start, end)
		metrics.FetchDuration.WithLabelValues(string(name)).Observe(time.Since(began).Seconds())
		if err != nil {
			return fmt.Errorf("%s/%s: %w", name, metricKey, err)
		}
		if err := r.store.UpsertSamples(siteID, name, metricKey, samples); err != nil {
			return fmt.Errorf("persist %s/%s: %w", name, metricKey, err)
		}
	}
	return nil
}

// detectAll scores every (source, metric) pair and persists flagged
// anomalies. Insufficient-data and no-data outcomes are logged and
// skipped; they surface to classification via the status map instead.
func (r *Runner) detectAll(runID, siteID string, statuses domain.StatusMap) ([]domain.AnomalyRecord, error) {
	var anomalies []domain.AnomalyRecord
	for _, source := range domain.AllSources {
		for _, metricKey := range domain.SourceMetrics[source] {
			outcome, err := r.detector.Detect(runID, siteID, source, metricKey, !statuses.Failed(source))
			if err != nil {
				return nil, fmt.Errorf("detect %s/%s: %w", source, metricKey, err)
			}
			switch outcome.Kind {
			case detector.OutcomeAnomaly:
				id, err := r.store.InsertAnomaly(*outcome.Anomaly)
				if err != nil {
					return nil, fmt.Errorf("persist anomaly %s/%s: %w", source, metricKey, err)
				}
				outcome.Anomaly.ID = id
				anomalies = append(anomalies, *outcome.Anomaly)
				metrics.AnomaliesTotal.WithLabelValues(string(outcome.Anomaly.Severity)).Inc()
			case detector.OutcomeInsufficientData, detector.OutcomeNoData:
				log.Printf("[run] %s/%s skipped: %s", source, metricKey, outcome.Reason)
			}
		}
	}
	return anomalies, nil
}

// notifyTickets pushes newly created urgent tickets to the notifier.
func (r *Runner) notifyTickets(ctx context.Context, created []domain.Ticket) {
	for _, t := range created {
		metrics.TicketsCreated.WithLabelValues(string(t.Priority)).Inc()
		if r.notifier != nil && (t.Priority == domain.P0 || t.Priority == domain.P1) {
			r.notifier.TicketCreated(ctx, t)
		}
	}
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
