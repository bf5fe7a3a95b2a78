// Package metrics exposes Prometheus collectors for the HTTP layer and for
// order placement.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bookshop"

type Metrics struct {
	registry *prometheus.Registry

	Requests *prometheus.CounterVec
	Latency  *prometheus.HistogramVec

	placements        *prometheus.CounterVec
	placementDuration prometheus.Histogram
	txRetries         prometheus.Counter
}

// New registers every collector on a fresh registry together with the Go
// runtime and process collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: registry,
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		Latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method", "route"}),
		placements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_placements_total",
			Help:      "Order placement attempts by outcome.",
		}, []string{"outcome"}),
		placementDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "order_placement_duration_seconds",
			Help:      "Duration of order placement including retries.",
			Buckets:   prometheus.DefBuckets,
		}),
		txRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_tx_retries_total",
			Help:      "Order transactions restarted after a deadlock or serialization failure.",
		}),
	}

	registry.MustRegister(m.Requests, m.Latency, m.placements, m.placementDuration, m.txRetries)
	return m
}

// ObservePlacement implements ordering.Recorder.
func (m *Metrics) ObservePlacement(outcome string, duration time.Duration) {
	m.placements.WithLabelValues(outcome).Inc()
	m.placementDuration.Observe(duration.Seconds())
}

func (m *Metrics) ObserveTxRetry() {
	m.txRetries.Inc()
}

func (m *Metrics) ObserveRequest(method, route string, status int, duration time.Duration) {
	m.Requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.Latency.WithLabelValues(method, route).Observe(duration.Seconds())
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
