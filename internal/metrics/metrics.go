// Package metrics exposes the service's Prometheus collectors. Collectors
// register themselves on the default registry at init, so importing packages
// can record without extra wiring.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TransactionsPosted counts balance transactions written, by event kind.
	TransactionsPosted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "catarse",
		Subsystem: "balance",
		Name:      "transactions_posted_total",
		Help:      "Balance transactions written, labeled by event kind.",
	}, []string{"event_kind"})

	// DuplicatesSuppressed counts postings skipped because the event was
	// already recorded, by operation.
	DuplicatesSuppressed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "catarse",
		Subsystem: "balance",
		Name:      "duplicates_suppressed_total",
		Help:      "Postings skipped because the event was already recorded.",
	}, []string{"operation"})

	// SweepRuns counts executions of the expiration sweep.
	SweepRuns = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "catarse",
		Subsystem: "balance",
		Name:      "expiration_sweep_runs_total",
		Help:      "Executions of the refund expiration sweep.",
	})

	// SweepExpired counts refund credits reversed by the sweep.
	SweepExpired = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "catarse",
		Subsystem: "balance",
		Name:      "expiration_sweep_expired_total",
		Help:      "Refund credits reversed by the expiration sweep.",
	})

	// SweepFailures counts sweep candidates that failed to post.
	SweepFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "catarse",
		Subsystem: "balance",
		Name:      "expiration_sweep_failures_total",
		Help:      "Expiration candidates that failed to post.",
	})
)
