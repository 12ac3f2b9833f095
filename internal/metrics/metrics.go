// Package metrics wires the gateway's prometheus instrumentation: a small
// registry owned by the process, a counter/histogram pair for request
// outcomes, plus gauges for the live credential health-state mix.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	requestsTotal *prometheus.CounterVec
	latencyMs     *prometheus.HistogramVec
	credentials   *prometheus.GaugeVec
	selections    *prometheus.CounterVec
}

func New() *Metrics {
	r := prometheus.NewRegistry()
	m := &Metrics{
		registry: r,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "Total number of inbound chat requests handled.",
		}, []string{"path", "status"}),
		latencyMs: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gateway_request_latency_ms",
			Help:    "Inbound request latency in milliseconds.",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		}, []string{"path", "status"}),
		credentials: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gateway_credentials_by_health",
			Help: "Number of registered credentials currently in each health state.",
		}, []string{"health"}),
		selections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_selections_total",
			Help: "Total number of credential selections by policy and outcome.",
		}, []string{"policy", "outcome"}),
	}
	r.MustRegister(m.requestsTotal, m.latencyMs, m.credentials, m.selections)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveRequest(path string, status int, dur time.Duration) {
	s := strconv.Itoa(status)
	m.requestsTotal.WithLabelValues(path, s).Inc()
	m.latencyMs.WithLabelValues(path, s).Observe(float64(dur.Milliseconds()))
}

func (m *Metrics) SetHealthCounts(eligible, tripped, probing int) {
	m.credentials.WithLabelValues("eligible").Set(float64(eligible))
	m.credentials.WithLabelValues("tripped").Set(float64(tripped))
	m.credentials.WithLabelValues("probing").Set(float64(probing))
}

func (m *Metrics) ObserveSelection(policy, outcome string) {
	m.selections.WithLabelValues(policy, outcome).Inc()
}
