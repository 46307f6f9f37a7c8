// Package metrics holds the Prometheus collectors for the registry service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "reseller"

// Registration outcomes.
const (
	OutcomeSuccess      = "success"
	OutcomeUnauthorized = "unauthorized"
	OutcomeDuplicate    = "duplicate"
	OutcomeInvalid      = "invalid"
	OutcomeNotFound     = "not_found"
	OutcomeError        = "error"
)

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	deployments   prometheus.Counter
	registrations *prometheus.CounterVec
	opDuration    *prometheus.HistogramVec
	journalWrites *prometheus.CounterVec
	queueDepth    prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		deployments: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registries_deployed_total",
			Help:      "Total number of registries deployed",
		}),

		registrations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "seller_registrations_total",
			Help:      "Seller registration attempts by outcome",
		}, []string{"outcome"}),

		opDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Registry operation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),

		journalWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "journal_writes_total",
			Help:      "Journal writes by status",
		}, []string{"status"}),

		queueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "event_queue_depth",
			Help:      "Events waiting for the journal workers",
		}),
	}
}

func (m *Metrics) ObserveDeploy() {
	if m == nil {
		return
	}
	m.deployments.Inc()
}

func (m *Metrics) ObserveRegistration(outcome string) {
	if m == nil {
		return
	}
	m.registrations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveDuration(op string, d time.Duration) {
	if m == nil {
		return
	}
	m.opDuration.WithLabelValues(op).Observe(d.Seconds())
}

func (m *Metrics) ObserveJournalWrite(err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.journalWrites.WithLabelValues(status).Inc()
}

func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}
