// Package metrics provides Prometheus metrics for Searchlight: counters
// and histograms for diagnostic runs, source fetches, anomalies, tickets,
// and fix plans.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Runs ───────────────────────────────────────────────────────────────────

// RunsTotal counts finished diagnostic runs by terminal status.
var RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "searchlight",
	Name:      "runs_total",
	Help:      "Total finished diagnostic runs.",
}, []string{"status"})

// ─── Fetches ────────────────────────────────────────────────────────────────

// FetchDuration tracks source fetch duration in seconds.
var FetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "searchlight",
	Name:      "fetch_duration_seconds",
	Help:      "Metric source fetch duration in seconds.",
	Buckets:   prometheus.DefBuckets,
}, []string{"source"})

// FetchFailures counts failed source fetches.
var FetchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "searchlight",
	Name:      "fetch_failures_total",
	Help:      "Total failed metric source fetches.",
}, []string{"source"})

// ─── Anomalies ──────────────────────────────────────────────────────────────

// AnomaliesTotal counts detected anomalies by severity.
var AnomaliesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "searchlight",
	Name:      "anomalies_total",
	Help:      "Total detected anomalies.",
}, []string{"severity"})

// ─── Tickets ────────────────────────────────────────────────────────────────

// TicketsCreated counts newly created tickets by priority.
var TicketsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "searchlight",
	Name:      "tickets_created_total",
	Help:      "Total newly created tickets.",
}, []string{"priority"})

// TicketsDeduplicated counts ticket writes collapsed into an open ticket.
var TicketsDeduplicated = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "searchlight",
	Name:      "tickets_deduplicated_total",
	Help:      "Total ticket writes merged into an existing open ticket.",
})

// ─── Fix Plans ──────────────────────────────────────────────────────────────

// PlansExecuted counts executed fix plans.
var PlansExecuted = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "searchlight",
	Name:      "plans_executed_total",
	Help:      "Total executed fix plans.",
})

// PlansBlocked counts plan executions refused by the cooldown.
var PlansBlocked = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "searchlight",
	Name:      "plans_blocked_total",
	Help:      "Total plan executions blocked by an active cooldown.",
})
