// Package metrics defines the Prometheus collectors exposed at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "stayboost"

var evaluationBuckets = []float64{.001, .002, .005, .010, .025, .050, .100, .250, .500, 1}

var (
	// RuleEvaluations counts per-rule outcomes of the selector.
	RuleEvaluations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "targeting",
		Name:      "rule_evaluations_total",
		Help:      "Rules evaluated against visitors, by outcome",
	}, []string{"outcome"})

	// SelectionDuration measures one full selection over a shop's rules.
	SelectionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "targeting",
		Name:      "selection_seconds",
		Help:      "Time taken to select matching rules for a visitor",
		Buckets:   evaluationBuckets,
	})

	AuditWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "targeting",
		Name:      "audit_write_failures_total",
		Help:      "Execution audit rows that failed to persist",
	})

	// UsageWrites counts usage-stat increments by event type.
	UsageWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "templates",
		Name:      "usage_writes_total",
		Help:      "Template usage stat increments, by event",
	}, []string{"event"})

	BrandingLookups = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "branding",
		Name:      "lookups_total",
		Help:      "Branding reads served, from cache or database",
	})

	// BrandingLoads counts cache misses that read the database.
	BrandingLoads = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "branding",
		Name:      "loads_total",
		Help:      "Branding reads that went to the database",
	})

	// JobRuns counts background job runs by job and result.
	JobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "jobs",
		Name:      "runs_total",
		Help:      "Background job runs, by job and result",
	}, []string{"job", "result"})
)
