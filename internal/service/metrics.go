package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts coordinator outcomes. A nil *Metrics records nothing.
type Metrics struct {
	operations *prometheus.CounterVec
	lockWait   *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "teamhub",
			Name:      "team_operations_total",
			Help:      "Team lifecycle operations by outcome.",
		}, []string{"op", "result"}),
		lockWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "teamhub",
			Name:      "lock_wait_seconds",
			Help:      "Time spent acquiring team and user locks.",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
		}, []string{"op"}),
	}

	reg.MustRegister(m.operations, m.lockWait)
	return m
}

func (m *Metrics) observe(op string, err *Error) {
	if m == nil {
		return
	}

	result := "ok"
	if err != nil {
		result = string(err.Code)
	}
	m.operations.WithLabelValues(op, result).Inc()
}

func (m *Metrics) observeLockWait(op string, d time.Duration) {
	if m == nil {
		return
	}
	m.lockWait.WithLabelValues(op).Observe(d.Seconds())
}
