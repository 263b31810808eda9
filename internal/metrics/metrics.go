// Package metrics exports lens proxy request and upstream metrics in Prometheus format.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lensproxy"

var defaultBuckets = []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 20, 30, 60}

type Exporter struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec

	lensResults *prometheus.CounterVec

	upstreamCalls   *prometheus.CounterVec
	upstreamLatency *prometheus.HistogramVec
}

// New creates an exporter backed by its own registry, including Go runtime and process collectors.
func New() *Exporter {
	registry := prometheus.NewRegistry()

	e := &Exporter{registry: registry}

	e.httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	e.httpLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   defaultBuckets,
		},
		[]string{"method", "route"},
	)

	e.lensResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lens",
			Name:      "results_total",
			Help:      "Lens requests by outcome kind",
		},
		[]string{"outcome"},
	)

	e.upstreamCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "calls_total",
			Help:      "Total number of reference and inference calls",
		},
		[]string{"call", "name", "outcome"},
	)

	e.upstreamLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "call_duration_seconds",
			Help:      "Reference and inference call latency in seconds",
			Buckets:   defaultBuckets,
		},
		[]string{"call", "name"},
	)

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		e.httpRequests,
		e.httpLatency,
		e.lensResults,
		e.upstreamCalls,
		e.upstreamLatency,
	)

	return e
}

// RecordRequest records one served HTTP request. route is the matched pattern, not the raw path.
func (e *Exporter) RecordRequest(method, route string, status int, latency time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	e.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	e.httpLatency.WithLabelValues(method, route).Observe(latency.Seconds())
}

// RecordLens records the outcome of a POST to the lens endpoint: "ok" or an error kind.
func (e *Exporter) RecordLens(outcome string) {
	e.lensResults.WithLabelValues(outcome).Inc()
}

// ObserveUpstream satisfies lens.Observer.
func (e *Exporter) ObserveUpstream(call, name, outcome string, d time.Duration) {
	e.upstreamCalls.WithLabelValues(call, name, outcome).Inc()
	e.upstreamLatency.WithLabelValues(call, name).Observe(d.Seconds())
}

func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{Registry: e.registry})
}

func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}
