// Package observability exposes MooseDB runtime metrics in Prometheus format.
package observability

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	merrors "github.com/moosedb/moosedb/internal/errors"
)

const metricsNamespace = "moosedb"

// Metrics holds the collectors for one server instance. Each instance owns its
// registry so tests and embedded servers do not collide on the global one.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	OperationsTotal *prometheus.CounterVec
	ErrorsTotal     *prometheus.CounterVec
}

// NewMetrics creates and registers the MooseDB collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "http_requests_total",
				Help:      "Number of handled HTTP requests.",
			},
			[]string{"route", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		OperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "operations_total",
				Help:      "Number of collection operations by outcome.",
			},
			[]string{"operation", "result"},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "errors_total",
				Help:      "Number of failed operations by error category.",
			},
			[]string{"category"},
		),
	}
	m.registry.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.OperationsTotal,
		m.ErrorsTotal,
		collectors.NewGoCollector(),
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRequest records one finished HTTP request.
func (m *Metrics) ObserveRequest(route string, status int, elapsed time.Duration) {
	m.RequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// ObserveOperation records the outcome of a named operation such as
// "create_collection". Failures are also counted by error category.
func (m *Metrics) ObserveOperation(op string, err error) {
	if err == nil {
		m.OperationsTotal.WithLabelValues(op, "ok").Inc()
		return
	}
	m.OperationsTotal.WithLabelValues(op, "error").Inc()
	category := string(merrors.GetCategory(err))
	if category == "" {
		category = string(merrors.ErrCategoryInternal)
	}
	m.ErrorsTotal.WithLabelValues(category).Inc()
}

// RegisterPoolStats publishes connection pool gauges read from stats on every scrape.
func (m *Metrics) RegisterPoolStats(stats func() sql.DBStats) {
	gauge := func(name, help string, read func(sql.DBStats) float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "pool",
			Name:      name,
			Help:      help,
		}, func() float64 { return read(stats()) })
	}
	m.registry.MustRegister(
		gauge("open_connections", "Open database connections.",
			func(s sql.DBStats) float64 { return float64(s.OpenConnections) }),
		gauge("in_use_connections", "Database connections currently borrowed.",
			func(s sql.DBStats) float64 { return float64(s.InUse) }),
		gauge("idle_connections", "Idle database connections.",
			func(s sql.DBStats) float64 { return float64(s.Idle) }),
		gauge("wait_count", "Total number of waits for a connection.",
			func(s sql.DBStats) float64 { return float64(s.WaitCount) }),
	)
}

// RegisterCacheStats publishes schema cache hit and miss counters.
func (m *Metrics) RegisterCacheStats(stats func() (hits, misses int64)) {
	m.registry.MustRegister(
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "schema_cache",
			Name:      "hits_total",
			Help:      "Schema cache hits.",
		}, func() float64 { h, _ := stats(); return float64(h) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "schema_cache",
			Name:      "misses_total",
			Help:      "Schema cache misses.",
		}, func() float64 { _, mi := stats(); return float64(mi) }),
	)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
