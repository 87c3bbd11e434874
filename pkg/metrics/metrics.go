// Package metrics exposes the service's Prometheus collectors.
//
// A nil *Metrics is valid and records nothing, so components can take one
// optionally.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "revenue"

// Upload outcomes.
const (
	OutcomeOK         = "ok"
	OutcomeWarning    = "warning"
	OutcomeFormat     = "format_error"
	OutcomeEmpty      = "empty_batch"
	OutcomeBusy       = "busy"
	OutcomeStoreError = "store_error"
)

// Metrics holds every collector on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	uploads        *prometheus.CounterVec
	uploadDuration *prometheus.HistogramVec
	rowsDropped    *prometheus.CounterVec
	unitRevenue    *prometheus.GaugeVec
	resyncedUnits  prometheus.Counter
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
}

// New registers the collectors, plus the Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Report uploads by unit and outcome.",
		}, []string{"unit", "outcome"}),
		uploadDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upload_duration_seconds",
			Help:      "Time spent processing one report upload.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"unit"}),
		rowsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_dropped_total",
			Help:      "Report rows discarded while sanitizing, by reason.",
		}, []string{"reason"}),
		unitRevenue: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "unit_current_amount_brl",
			Help:      "Accumulated revenue of each unit after the last write.",
		}, []string{"unit"}),
		resyncedUnits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resynced_units_total",
			Help:      "Units pushed from the local cache back to the primary store.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.uploads,
		m.uploadDuration,
		m.rowsDropped,
		m.unitRevenue,
		m.resyncedUnits,
		m.httpRequests,
		m.httpDuration,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveUpload records one upload attempt.
func (m *Metrics) ObserveUpload(unit, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(unit, outcome).Inc()
	m.uploadDuration.WithLabelValues(unit).Observe(elapsed.Seconds())
}

// AddRowsDropped counts n rows discarded for reason.
func (m *Metrics) AddRowsDropped(reason string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.rowsDropped.WithLabelValues(reason).Add(float64(n))
}

// SetUnitRevenue publishes the current accumulated amount of a unit.
func (m *Metrics) SetUnitRevenue(unit string, amount float64) {
	if m == nil {
		return
	}
	m.unitRevenue.WithLabelValues(unit).Set(amount)
}

// AddResynced counts units pushed back to the primary store.
func (m *Metrics) AddResynced(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.resyncedUnits.Add(float64(n))
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
