package audit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks ledger activity.
type Metrics struct {
	entriesRecorded *prometheus.CounterVec
	appendFailures  prometheus.Counter
}

func NewMetrics() *Metrics {
	return &Metrics{
		entriesRecorded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kycgate_audit_entries_total",
			Help: "Audit entries recorded, by action.",
		}, []string{"action"}),
		appendFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kycgate_audit_append_failures_total",
			Help: "Audit ledger writes that failed.",
		}),
	}
}

func (m *Metrics) IncEntriesRecorded(action string) {
	m.entriesRecorded.WithLabelValues(action).Inc()
}

func (m *Metrics) IncAppendFailures() {
	m.appendFailures.Inc()
}
