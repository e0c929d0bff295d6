package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// ClientMetrics exposes counters/histograms for the patient API client.
type ClientMetrics struct {
	requestsTotal      *prometheus.CounterVec
	requestLatency     *prometheus.HistogramVec
	refreshTotal       *prometheus.CounterVec
	refreshSharedTotal prometheus.Counter
	bookingsTotal      *prometheus.CounterVec
}

func NewClientMetrics(reg prometheus.Registerer) *ClientMetrics {
	m := &ClientMetrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medbook",
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total backend API requests",
		}, []string{"method", "route", "status"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "medbook",
			Subsystem: "api",
			Name:      "request_latency_seconds",
			Help:      "Latency of backend API requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		refreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medbook",
			Subsystem: "session",
			Name:      "token_refresh_total",
			Help:      "Access token refresh attempts by outcome",
		}, []string{"outcome"}),
		refreshSharedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "medbook",
			Subsystem: "session",
			Name:      "token_refresh_shared_total",
			Help:      "Callers that joined an in-flight refresh instead of starting one",
		}),
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medbook",
			Subsystem: "booking",
			Name:      "submissions_total",
			Help:      "Booking submissions by payment method and outcome",
		}, []string{"payment_method", "outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.requestsTotal, m.requestLatency, m.refreshTotal, m.refreshSharedTotal, m.bookingsTotal)
	return m
}

// ObserveRequest records one API round trip. status 0 means the request
// never produced a response.
func (m *ClientMetrics) ObserveRequest(method, route string, status int, seconds float64) {
	if m == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.requestsTotal.WithLabelValues(method, route, label).Inc()
	m.requestLatency.WithLabelValues(route).Observe(seconds)
}

func (m *ClientMetrics) ObserveRefresh(outcome string) {
	if m == nil {
		return
	}
	m.refreshTotal.WithLabelValues(outcome).Inc()
}

func (m *ClientMetrics) ObserveSharedRefresh() {
	if m == nil {
		return
	}
	m.refreshSharedTotal.Inc()
}

func (m *ClientMetrics) ObserveBooking(paymentMethod, outcome string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(paymentMethod, outcome).Inc()
}
