package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	transitions *prometheus.CounterVec
	submissions *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kycgate",
			Subsystem: "kyc",
			Name:      "transitions_total",
			Help:      "State machine transitions by tier and resulting status.",
		}, []string{"tier", "status"}),
		submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kycgate",
			Subsystem: "kyc",
			Name:      "submissions_total",
			Help:      "Synchronous submission outcomes by tier.",
		}, []string{"tier", "outcome"}),
	}
}

func (m *Metrics) ObserveTransition(tier, status string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(tier, status).Inc()
}

func (m *Metrics) ObserveSubmission(tier, outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(tier, outcome).Inc()
}
