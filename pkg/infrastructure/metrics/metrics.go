package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"
)

// Metrics holds the bridge's ingestion metrics
type Metrics struct {
	registry *prometheus.Registry

	CyclesTotal    *prometheus.CounterVec
	CycleDuration  prometheus.Histogram
	FilesTotal     *prometheus.CounterVec
	OrdersTotal    *prometheus.CounterVec
	DecisionsTotal *prometheus.CounterVec
	DocumentsTotal *prometheus.CounterVec
	AlertsTotal    *prometheus.CounterVec

	CircuitBreakerState *prometheus.GaugeVec
	CircuitBreakerTrips *prometheus.CounterVec
}

// Config holds metrics configuration
type Config struct {
	Namespace string
}

// DefaultConfig returns default metrics configuration
func DefaultConfig() Config {
	return Config{Namespace: "vmi"}
}

// New creates a Metrics instance on its own registry
func New(config Config) *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{registry: registry}

	m.CyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "ingestion_cycles_total",
			Help:      "Total number of ingestion cycles",
		},
		[]string{"trigger", "status"},
	)

	m.CycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      "ingestion_cycle_duration_seconds",
			Help:      "Ingestion cycle duration in seconds",
			Buckets:   []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60, 300},
		},
	)

	m.FilesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "order_files_total",
			Help:      "Order files seen by outcome",
		},
		[]string{"status"},
	)

	m.OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "purchase_orders_total",
			Help:      "Purchase orders seen by outcome",
		},
		[]string{"status"},
	)

	m.DecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "coverage_decisions_total",
			Help:      "Coverage decisions by action and source",
		},
		[]string{"action", "source"},
	)

	m.DocumentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "documents_total",
			Help:      "Order-entry documents by kind and outcome",
		},
		[]string{"kind", "status"},
	)

	m.AlertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "alerts_total",
			Help:      "Alerts raised by kind",
		},
		[]string{"kind"},
	)

	m.CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: config.Namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	m.CircuitBreakerTrips = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "circuit_breaker_trips_total",
			Help:      "Total number of circuit breaker trips",
		},
		[]string{"name"},
	)

	registry.MustRegister(
		m.CyclesTotal,
		m.CycleDuration,
		m.FilesTotal,
		m.OrdersTotal,
		m.DecisionsTotal,
		m.DocumentsTotal,
		m.AlertsTotal,
		m.CircuitBreakerState,
		m.CircuitBreakerTrips,
	)
	return m
}

// Registry returns the registry the metrics are registered on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordCycle records a finished ingestion cycle
func (m *Metrics) RecordCycle(trigger, status string, duration time.Duration) {
	m.CyclesTotal.WithLabelValues(trigger, status).Inc()
	m.CycleDuration.Observe(duration.Seconds())
}

// RecordFile records the outcome of one order file
func (m *Metrics) RecordFile(status string) {
	m.FilesTotal.WithLabelValues(status).Inc()
}

// RecordOrders records n purchase orders with the given outcome
func (m *Metrics) RecordOrders(status string, n int) {
	m.OrdersTotal.WithLabelValues(status).Add(float64(n))
}

// RecordDecision records one coverage decision
func (m *Metrics) RecordDecision(action, source string) {
	m.DecisionsTotal.WithLabelValues(action, source).Inc()
}

// RecordDocument records one document write attempt
func (m *Metrics) RecordDocument(kind string, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	m.DocumentsTotal.WithLabelValues(kind, status).Inc()
}

// RecordAlert records one alert
func (m *Metrics) RecordAlert(kind string) {
	m.AlertsTotal.WithLabelValues(kind).Inc()
}

// ObserveBreaker tracks a breaker transition; it has the shape of a breaker state listener
func (m *Metrics) ObserveBreaker(name string, from, to gobreaker.State) {
	m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
	if to == gobreaker.StateOpen {
		m.CircuitBreakerTrips.WithLabelValues(name).Inc()
	}
}

// WriteTextfile writes every metric to path in the text exposition format,
// for collection by a node exporter textfile collector
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
