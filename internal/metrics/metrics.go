// Package metrics exposes Prometheus instruments for the API server.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "bess"
	subsystem = "engine"
)

// Result label values.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultCached  = "cached"
)

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	runs             *prometheus.CounterVec
	duration         *prometheus.HistogramVec
	daysSimulated    prometheus.Counter
	uploadedSamples  prometheus.Counter
	uploadWarnings   prometheus.Counter
	streamClients    prometheus.Gauge
	httpRequests     *prometheus.CounterVec
	httpRequestTimes *prometheus.HistogramVec
}

// New creates the instruments and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "runs_total",
				Help:      "Engine operations by kind (analyze, dimension, compare, simulate) and result",
			},
			[]string{"operation", "result"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "duration_seconds",
				Help:      "Wall time of engine operations",
				Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
			},
			[]string{"operation"},
		),
		daysSimulated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "days_simulated_total",
			Help:      "Calendar days replayed by the dispatch simulator",
		}),
		uploadedSamples: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "samples_total",
			Help:      "Demand samples accepted from uploads",
		}),
		uploadWarnings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "skipped_rows_total",
			Help:      "Upload rows skipped with a warning",
		}),
		streamClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "clients",
			Help:      "Connected websocket stream clients",
		}),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "HTTP requests by route and status code",
			},
			[]string{"route", "method", "code"},
		),
		httpRequestTimes: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request latency by route",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),
	}
	reg.MustRegister(
		m.runs, m.duration, m.daysSimulated,
		m.uploadedSamples, m.uploadWarnings, m.streamClients,
		m.httpRequests, m.httpRequestTimes,
	)
	return m
}

// ObserveRun counts one operation and records how long it took.
func (m *Metrics) ObserveRun(operation string, ok bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	result := ResultSuccess
	if !ok {
		result = ResultFailure
	}
	m.runs.WithLabelValues(operation, result).Inc()
	m.duration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

func (m *Metrics) CacheHit(operation string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(operation, ResultCached).Inc()
}

func (m *Metrics) AddDays(n int) {
	if m == nil {
		return
	}
	m.daysSimulated.Add(float64(n))
}

func (m *Metrics) ObserveUpload(samples, warnings int) {
	if m == nil {
		return
	}
	m.uploadedSamples.Add(float64(samples))
	m.uploadWarnings.Add(float64(warnings))
}

func (m *Metrics) StreamConnected() {
	if m == nil {
		return
	}
	m.streamClients.Inc()
}

func (m *Metrics) StreamDisconnected() {
	if m == nil {
		return
	}
	m.streamClients.Dec()
}

func (m *Metrics) ObserveHTTP(route, method, code string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, code).Inc()
	m.httpRequestTimes.WithLabelValues(route, method).Observe(elapsed.Seconds())
}
