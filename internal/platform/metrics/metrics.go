package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	RegistrationsCreated prometheus.Counter
	RegistrationRejected *prometheus.CounterVec
	TxAttempts           *prometheus.CounterVec
	TxDuration           prometheus.Histogram
	HTTPRequestDuration  *prometheus.HistogramVec
}

// New creates and registers all metrics on reg. Tests pass a fresh
// prometheus.NewRegistry() to avoid duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RegistrationsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "eventreg_registrations_created_total",
			Help: "Total number of registrations committed",
		}),
		RegistrationRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "eventreg_registration_rejected_total",
			Help: "Submissions rejected before or during persistence, by reason",
		}, []string{"reason"}), // reason: "validation", "persistence"

		TxAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "eventreg_tx_attempts_total",
			Help: "Sequence allocation transaction attempts by outcome",
		}, []string{"outcome"}), // outcome: "committed", "conflict", "failed"

		TxDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "eventreg_tx_duration_seconds",
			Help:    "Duration of sequence allocation including retries",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "eventreg_http_request_duration_seconds",
			Help:    "HTTP request latency by method, route pattern and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

// IncrementCreated counts a committed registration.
func (m *Metrics) IncrementCreated() {
	if m != nil {
		m.RegistrationsCreated.Inc()
	}
}

// IncrementRejected counts a rejected submission.
func (m *Metrics) IncrementRejected(reason string) {
	if m != nil {
		m.RegistrationRejected.WithLabelValues(reason).Inc()
	}
}

// ObserveTxAttempt records one transaction attempt outcome.
func (m *Metrics) ObserveTxAttempt(outcome string) {
	if m != nil {
		m.TxAttempts.WithLabelValues(outcome).Inc()
	}
}

// ObserveTxDuration records the total allocation time.
func (m *Metrics) ObserveTxDuration(d time.Duration) {
	if m != nil {
		m.TxDuration.Observe(d.Seconds())
	}
}

// ObserveHTTPRequest records request latency.
func (m *Metrics) ObserveHTTPRequest(method, route, status string, d time.Duration) {
	if m != nil {
		m.HTTPRequestDuration.WithLabelValues(method, route, status).Observe(d.Seconds())
	}
}
