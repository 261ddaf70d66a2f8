// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the purge client's counters. A nil Registerer produces
// working but unregistered counters, so instrumented code never has to
// nil-check.
type Metrics struct {
	// RequestsTotal counts HTTP attempts, including retries.
	RequestsTotal prometheus.Counter

	// RetriesTotal counts retry triggers (non-created status or
	// connection failure).
	RetriesTotal prometheus.Counter

	// PurgesCompleted counts sub-requests whose completion estimate
	// elapsed.
	PurgesCompleted prometheus.Counter

	// PurgesFailed counts sub-requests that exhausted their retries.
	PurgesFailed prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "fastpurge",
			Name:      "requests_total",
			Help:      "HTTP purge attempts made, including retries.",
		}),
		RetriesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "fastpurge",
			Name:      "request_retries_total",
			Help:      "Purge attempts that failed and triggered a retry.",
		}),
		PurgesCompleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "fastpurge",
			Name:      "purges_completed_total",
			Help:      "Purge sub-requests whose completion estimate elapsed.",
		}),
		PurgesFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "fastpurge",
			Name:      "purges_failed_total",
			Help:      "Purge sub-requests that failed after exhausting retries.",
		}),
	}
}
