package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// EngineMetrics holds Prometheus metrics for the cart/wishlist engine.
// All metrics include the namespace label (cart or wishlist) where the
// distinction matters.
type EngineMetrics struct {
	// Mutations
	Mutations           *prometheus.CounterVec
	MutationFailures    *prometheus.CounterVec
	OptimisticRollbacks *prometheus.CounterVec

	// Sync orchestration
	SyncAttempts      *prometheus.CounterVec
	SyncRecordsSynced *prometheus.CounterVec
	SyncRecordsFailed *prometheus.CounterVec
	SyncDiscarded     prometheus.Counter
	SyncLockContended prometheus.Counter
	SyncDuration      prometheus.Histogram
}

// NewEngineMetrics creates and registers the engine metrics. A nil
// registerer falls back to the default registry; embedders running more
// than one engine in a process should pass their own.
func NewEngineMetrics(namespace string, reg prometheus.Registerer) *EngineMetrics {
	if namespace == "" {
		namespace = "lokestore"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	const subsystem = "engine"
	factory := promauto.With(reg)

	return &EngineMetrics{
		Mutations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "mutations_total",
				Help:      "Total cart/wishlist mutation commands",
			},
			[]string{"store", "command", "mode"}, // command: add, update, remove, refresh
		),
		MutationFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "mutation_failures_total",
				Help:      "Total mutation commits that failed and were reported",
			},
			[]string{"store", "command", "code"},
		),
		OptimisticRollbacks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "optimistic_rollbacks_total",
				Help:      "Total optimistic updates rolled back after a failed commit",
			},
			[]string{"store"},
		),
		SyncAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "sync_attempts_total",
				Help:      "Total guest-to-authenticated merge attempts by outcome",
			},
			[]string{"outcome"}, // outcome: success, partial, failed, skipped, discarded
		),
		SyncRecordsSynced: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "sync_records_synced_total",
				Help:      "Total guest records absorbed into the authoritative store",
			},
			[]string{"store"},
		),
		SyncRecordsFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "sync_records_failed_total",
				Help:      "Total guest records retained locally after a failed merge item",
			},
			[]string{"store"},
		),
		SyncDiscarded: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "sync_discarded_total",
				Help:      "Total guest record sets discarded due to an identity mismatch",
			},
		),
		SyncLockContended: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "sync_lock_contended_total",
				Help:      "Total sync detections dropped because a merge was already in flight",
			},
		),
		SyncDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "sync_duration_seconds",
				Help:      "Duration of complete merge attempts",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
		),
	}
}
