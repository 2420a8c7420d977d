// Package domain defines the core value types for the Searchlight
// diagnostics engine: metric samples, anomalies, hypotheses, tickets,
// fix plans, and knowledge entries. Domain types are pure: no
// infrastructure dependency.
package domain

import (
	"sort"
	"time"
)

// ─── Metric Sources ─────────────────────────────────────────────────────────

// Source identifies a metric data provider.
type Source string

const (
	SourceGA4    Source = "ga4"    // Organic traffic (sessions)
	SourceGSC    Source = "gsc"    // Search console (clicks, impressions)
	SourceAds    Source = "ads"    // Paid campaigns (spend)
	SourceUptime Source = "uptime" // Availability checks (error rate)
)

// AllSources lists every source a diagnostic run fetches.
var AllSources = []Source{SourceGA4, SourceGSC, SourceAds, SourceUptime}

// SourceMetrics maps each source to the daily metrics it provides.
var SourceMetrics = map[Source][]string{
	SourceGA4:    {"sessions"},
	SourceGSC:    {"clicks", "impressions"},
	SourceAds:    {"spend"},
	SourceUptime: {"error_rate"},
}

// ─── Samples ────────────────────────────────────────────────────────────────

// Sample is one daily reading returned by a source connector.
type Sample struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// MetricSample is a persisted daily reading. Append-only; one row per
// (site, source, metric, day).
type MetricSample struct {
	SiteID    string    `json:"site_id"`
	Source    Source    `json:"source"`
	MetricKey string    `json:"metric_key"`
	Date      time.Time `json:"date"`
	Value     float64   `json:"value"`
}

// ─── Fetch Status ───────────────────────────────────────────────────────────

// FetchStatus records the outcome of one source fetch within a run.
type FetchStatus struct {
	Source Source `json:"source"`
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
}

// StatusMap carries per-source fetch outcomes through a run. Failures are
// data, not errors: downstream stages use them to downgrade confidence.
type StatusMap map[Source]FetchStatus

// Failed reports whether the given source's fetch failed.
func (m StatusMap) Failed(s Source) bool {
	st, ok := m[s]
	return ok && !st.OK
}

// FailedSources returns the failed sources in stable lexical order.
func (m StatusMap) FailedSources() []Source {
	var failed []Source
	for s, st := range m {
		if !st.OK {
			failed = append(failed, s)
		}
	}
	sort.Slice(failed, func(i, j int) bool { return failed[i] < failed[j] })
	return failed
}

// AllFailed reports whether every source in the map failed.
func (m StatusMap) AllFailed() bool {
	if len(m) == 0 {
		return false
	}
	for _, st := range m {
		if st.OK {
			return false
		}
	}
	return true
}

// Day truncates a timestamp to its calendar day (UTC).
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DayString formats a timestamp as the canonical YYYY-MM-DD day key.
func DayString(t time.Time) string {
	return Day(t).Format("2006-01-02")
}
