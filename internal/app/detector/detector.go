// Package detector implements statistical anomaly detection over daily
// metric windows.
//
// Each metric gets a rolling baseline (mean/stddev over a trailing window)
// and a current window. The baseline deliberately excludes the current
// window so the event being detected cannot contaminate its own baseline.
// Deviation is scored as a z-score and graded mild/moderate/severe.
//
// Missing data is never conflated with "no anomaly": a failed upstream
// fetch yields a distinct no-data outcome, and windows with too few
// samples yield insufficient-data. Both are result variants, not errors.
package detector

import (
	"fmt"
	"math"
	"time"

	"github.com/searchlight-io/searchlight/internal/domain"
)

// ─── Configuration ──────────────────────────────────────────────────────────

// Config holds every detection threshold. All values are injectable so
// nothing in the algorithm depends on scattered literals.
type Config struct {
	CurrentWindowDays  int     // most recent days under evaluation (default 3)
	BaselineWindowDays int     // trailing days before the current window (default 14)
	MinSamples         int     // minimum samples per window (default 3)
	Epsilon            float64 // stddev floor to guard division (default 1e-6)
	MildZ              float64 // |z| at or above → mild (default 1)
	ModerateZ          float64 // |z| at or above → moderate (default 2)
	SevereZ            float64 // |z| at or above → severe (default 3)

	// InvertedMetrics lists metrics where an increase is bad (error rates).
	// For these the z sign is flipped so "negative = bad" holds uniformly
	// downstream. Static configuration, never inferred.
	InvertedMetrics map[string]bool
}

// DefaultConfig returns production detection defaults.
func DefaultConfig() Config {
	return Config{
		CurrentWindowDays:  3,
		BaselineWindowDays: 14,
		MinSamples:         3,
		Epsilon:            1e-6,
		MildZ:              1,
		ModerateZ:          2,
		SevereZ:            3,
		InvertedMetrics: map[string]bool{
			"error_rate": true,
		},
	}
}

// ─── Outcome Variants ───────────────────────────────────────────────────────

// OutcomeKind distinguishes the non-error results of detection.
type OutcomeKind int

const (
	OutcomeNone             OutcomeKind = iota // metric is within baseline
	OutcomeAnomaly                             // threshold crossed
	OutcomeInsufficientData                    // too few samples for a baseline
	OutcomeNoData                              // upstream fetch failed
)

// String returns a human-readable outcome label.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeNone:
		return "NONE"
	case OutcomeAnomaly:
		return "ANOMALY"
	case OutcomeInsufficientData:
		return "INSUFFICIENT_DATA"
	case OutcomeNoData:
		return "NO_DATA"
	default:
		return "UNKNOWN"
	}
}

// Outcome is the result of scoring one metric. Anomaly is set only when
// Kind is OutcomeAnomaly.
type Outcome struct {
	Kind    OutcomeKind
	Anomaly *domain.AnomalyRecord
	Reason  string
}

// ─── Detector ───────────────────────────────────────────────────────────────

// SampleStore is the read side of the metric window store.
type SampleStore interface {
	SampleRange(siteID string, source domain.Source, metricKey string, start, end time.Time) ([]domain.Sample, error)
}

// Detector scores metric deviation against a rolling baseline. Pure over
// its inputs: it reads samples and returns an outcome, nothing else.
type Detector struct {
	cfg   Config
	store SampleStore
	now   func() time.Time // injectable clock for testing
}

// New creates a detector over the given sample store.
func New(store SampleStore, cfg Config) *Detector {
	return &Detector{cfg: cfg, store: store, now: time.Now}
}

// Detect scores one metric for the given run. fetchOK reports whether the
// source connector succeeded this run; when false the detector returns
// OutcomeNoData rather than silently treating missing days as normal.
func (d *Detector) Detect(runID, siteID string, source domain.Source, metricKey string, fetchOK bool) (Outcome, error) {
	if !fetchOK {
		return Outcome{
			Kind:   OutcomeNoData,
			Reason: fmt.Sprintf("%s fetch failed: cannot score %s", source, metricKey),
		}, nil
	}

	today := domain.Day(d.now())
	curStart := today.AddDate(0, 0, -(d.cfg.CurrentWindowDays - 1))
	baseEnd := curStart.AddDate(0, 0, -1)
	baseStart := baseEnd.AddDate(0, 0, -(d.cfg.BaselineWindowDays - 1))

	baseline, err := d.store.SampleRange(siteID, source, metricKey, baseStart, baseEnd)
	if err != nil {
		return Outcome{}, fmt.Errorf("baseline window %s/%s: %w", source, metricKey, err)
	}
	current, err := d.store.SampleRange(siteID, source, metricKey, curStart, today)
	if err != nil {
		return Outcome{}, fmt.Errorf("current window %s/%s: %w", source, metricKey, err)
	}

	if len(baseline) < d.cfg.MinSamples || len(current) < d.cfg.MinSamples {
		return Outcome{
			Kind: OutcomeInsufficientData,
			Reason: fmt.Sprintf("%s/%s: baseline=%d current=%d samples, need %d",
				source, metricKey, len(baseline), len(current), d.cfg.MinSamples),
		}, nil
	}

	baseMean, baseStddev := meanStddev(baseline)
	curMean, _ := meanStddev(current)

	z := (curMean - baseMean) / math.Max(baseStddev, d.cfg.Epsilon)
	if d.cfg.InvertedMetrics[metricKey] {
		z = -z // increase is bad for this metric; normalize to "negative = bad"
	}

	severity, flagged := d.grade(z)
	if !flagged {
		return Outcome{Kind: OutcomeNone}, nil
	}

	record := &domain.AnomalyRecord{
		RunID:          runID,
		Source:         source,
		MetricKey:      metricKey,
		CurrentValue:   curMean,
		BaselineMean:   baseMean,
		BaselineStddev: baseStddev,
		ZScore:         z,
		Severity:       severity,
		StartDate:      curStart,
	}
	if baseMean != 0 {
		deltaPct := (curMean - baseMean) / baseMean * 100
		record.DeltaPct = &deltaPct
	}
	return Outcome{Kind: OutcomeAnomaly, Anomaly: record}, nil
}

// grade maps |z| to a severity. Returns false below the mild cutoff.
func (d *Detector) grade(z float64) (domain.Severity, bool) {
	abs := math.Abs(z)
	switch {
	case abs >= d.cfg.SevereZ:
		return domain.SevSevere, true
	case abs >= d.cfg.ModerateZ:
		return domain.SevModerate, true
	case abs >= d.cfg.MildZ:
		return domain.SevMild, true
	default:
		return "", false
	}
}

// meanStddev returns the mean and sample standard deviation of the values.
func meanStddev(samples []domain.Sample) (float64, float64) {
	n := float64(len(samples))
	if n == 0 {
		return 0, 0
	}
	var sum float64
	for _, s := range samples {
		sum += s.Value
	}
	mean := sum / n

	if len(samples) < 2 {
		return mean, 0
	}
	var sq float64
	for _, s := range samples {
		d := s.Value - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / (n - 1))
}
