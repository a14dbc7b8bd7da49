// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns its registry so several instances can coexist (tests, embedded use).
type Metrics struct {
	registry *prometheus.Registry

	lookups   *prometheus.CounterVec
	generated *prometheus.CounterVec
	lostRaces prometheus.Counter

	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

func New(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "idempotency_lookups_total",
			Help:      "Idempotency cache lookups by result (hit, miss, corrupt, error).",
		}, []string{"result"}),
		generated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tracking_numbers_generated_total",
			Help:      "Tracking numbers stored by this process.",
		}, []string{"repaired"}),
		lostRaces: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "idempotency_lost_races_total",
			Help:      "Set-if-absent calls that found the key already taken.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Requests by transport, route and status.",
		}, []string{"transport", "route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Request latency in seconds.",
			Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"transport", "route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.lookups, m.generated, m.lostRaces, m.requests, m.latency,
	)
	return m
}

func (m *Metrics) ObserveLookup(result string) {
	m.lookups.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveGenerated(repaired bool) {
	m.generated.WithLabelValues(strconv.FormatBool(repaired)).Inc()
}

func (m *Metrics) ObserveLostRace() {
	m.lostRaces.Inc()
}

// ObserveRequest records one finished request; status is an HTTP code or a gRPC code name.
func (m *Metrics) ObserveRequest(transport, route, status string, d time.Duration) {
	m.requests.WithLabelValues(transport, route, status).Inc()
	m.latency.WithLabelValues(transport, route).Observe(d.Seconds())
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
