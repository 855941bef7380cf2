// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Execution metrics
	LegsAppended     prometheus.Counter
	ExecutionsFailed prometheus.Counter
	RollbacksTotal   prometheus.Counter

	// Reconciliation metrics
	CyclesMeasured  *prometheus.CounterVec // outcome: profitable|unprofitable
	ConversionTiers *prometheus.CounterVec // tier the currency conversion used
	ReconcileSkips  *prometheus.CounterVec // reason: missing_trade|missing_pair|missing_wallet|token_mismatch

	// Statistics metrics
	DailyRowsPruned prometheus.Counter

	// Database metrics
	DBRetriesTotal prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "radbot"
	}

	return &Metrics{
		LegsAppended: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "legs_appended_total",
			Help:      "Total number of flip legs appended to the ledger",
		}),
		ExecutionsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "executions_failed_total",
			Help:      "Total number of executions recorded with FAILED status",
		}),
		RollbacksTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "rollbacks_total",
			Help:      "Total number of trade state rollbacks after rejected executions",
		}),

		CyclesMeasured: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "cycles_measured_total",
			Help:      "Total number of completed flip cycles measured, by outcome",
		}, []string{"outcome"}),
		ConversionTiers: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "conversion_tier_total",
			Help:      "Currency conversions performed, by fallback tier",
		}, []string{"tier"}),
		ReconcileSkips: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "skips_total",
			Help:      "Reconciliations degraded to a logged no-op, by reason",
		}, []string{"reason"}),

		DailyRowsPruned: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "statistics",
			Name:      "daily_rows_pruned_total",
			Help:      "Daily statistics rows removed by retention pruning",
		}),

		DBRetriesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "retries_total",
			Help:      "Storage units of work retried after a transient lock",
		}),
	}
}

var (
	defaultMetrics *Metrics
	defaultOnce    sync.Once
)

// Default returns the process-wide metrics instance, creating it on first use.
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultMetrics = NewMetrics("radbot")
	})
	return defaultMetrics
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
