// Package metrics exposes the pipeline's run counters as Prometheus
// collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the counters the pipeline increments. Construct one per
// registry; tests pass their own prometheus.NewRegistry().
type Metrics struct {
	Seen      prometheus.Counter
	Accepted  prometheus.Counter
	Rejected  *prometheus.CounterVec
	Malformed *prometheus.CounterVec
}

// New registers the pipeline counters on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Seen: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "lexstream",
			Name:      "documents_seen_total",
			Help:      "Documents read from source adapters.",
		}),
		Accepted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "lexstream",
			Name:      "documents_accepted_total",
			Help:      "Documents that passed cleaning, scoring and dedup.",
		}),
		Rejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lexstream",
			Name:      "documents_rejected_total",
			Help:      "Documents rejected, by reason code.",
		}, []string{"reason"}),
		Malformed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lexstream",
			Name:      "records_malformed_total",
			Help:      "Source records skipped as unparseable, by source name.",
		}, []string{"source"}),
	}
}
