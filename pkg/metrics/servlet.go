package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcomes recorded for each servlet call.
const (
	OutcomeOK        = "ok"
	OutcomeRejected  = "rejected"
	OutcomeTransport = "transport_error"
	OutcomeDecode    = "decode_error"
)

// ServletMetrics records latency and outcome for calls to the upstream servlets.
type ServletMetrics struct {
	duration *prometheus.HistogramVec
	calls    *prometheus.CounterVec
}

// NewServletMetrics registers the servlet call metrics on the provided registerer.
func NewServletMetrics(reg prometheus.Registerer) *ServletMetrics {
	if reg == nil {
		return &ServletMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "servlet_request_duration_seconds",
		Help:    "Latency of upstream servlet calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint", "action"})
	calls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "servlet_requests_total",
		Help: "Upstream servlet calls by outcome.",
	}, []string{"endpoint", "action", "outcome"})
	reg.MustRegister(duration, calls)
	return &ServletMetrics{duration: duration, calls: calls}
}

// Observe records one completed servlet call.
func (m *ServletMetrics) Observe(endpoint, action, outcome string, elapsed time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	endpoint, action = normalizeLabel(endpoint), normalizeLabel(action)
	m.duration.WithLabelValues(endpoint, action).Observe(elapsed.Seconds())
	m.calls.WithLabelValues(endpoint, action, normalizeLabel(outcome)).Inc()
}

// CheckoutMetrics counts payment attempts by terminal state.
type CheckoutMetrics struct {
	payments *prometheus.CounterVec
}

func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	payments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_payments_total",
		Help: "Payment attempts by terminal state.",
	}, []string{"state"})
	reg.MustRegister(payments)
	return &CheckoutMetrics{payments: payments}
}

// IncPayment increments the counter for the given terminal state.
func (m *CheckoutMetrics) IncPayment(state string) {
	if m == nil || m.payments == nil {
		return
	}
	m.payments.WithLabelValues(normalizeLabel(state)).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "none"
	}
	return v
}
