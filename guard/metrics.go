package guard

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	resultAcquired = "acquired"
	resultTimeout  = "timeout"
	resultError    = "error"
)

type metrics struct {
	acquire *prometheus.CounterVec
	hold    *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		acquire: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arbiter_guard_acquire_total",
			Help: "Total number of lock acquisition attempts by model and result",
		}, []string{"model", "result"}),
		hold: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "arbiter_guard_hold_seconds",
			Help:    "Time guarded operations held their lock",
			Buckets: prometheus.DefBuckets,
		}, []string{"model"}),
	}
	reg.MustRegister(m.acquire, m.hold)
	return m
}

func (m *metrics) observeAcquire(model Model, acquired bool, err error) {
	if m == nil {
		return
	}
	result := resultAcquired
	switch {
	case err != nil:
		result = resultError
	case !acquired:
		result = resultTimeout
	}
	m.acquire.WithLabelValues(model.String(), result).Inc()
}

func (m *metrics) observeHold(model Model, held time.Duration) {
	if m == nil {
		return
	}
	m.hold.WithLabelValues(model.String()).Observe(held.Seconds())
}
