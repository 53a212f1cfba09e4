// Package metrics exposes Prometheus instrumentation for the cache engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "mediacache"

// Metrics holds the collectors shared by the store, collections and the
// sync worker. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	transactions   *prometheus.CounterVec
	statements     prometheus.Counter
	busyRetries    prometheus.Counter
	txDuration     *prometheus.HistogramVec
	queueDepth     prometheus.Gauge
	collectionLoad *prometheus.CounterVec
	syncPages      *prometheus.CounterVec
}

// New registers all collectors on registry. A nil registry gets a fresh one.
func New(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		transactions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "transactions_total",
				Help:      "Total number of executed transactions by outcome",
			},
			[]string{"status"},
		),
		statements: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "statements_total",
				Help:      "Total number of SQL statements issued",
			},
		),
		busyRetries: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "busy_retries_total",
				Help:      "Total number of commit retries caused by a busy database",
			},
		),
		txDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "transaction_duration_seconds",
				Help:      "Transaction execution duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"status"},
		),
		queueDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "queue_depth",
				Help:      "Number of tasks waiting on the serial queue",
			},
		),
		collectionLoad: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "collection",
				Name:      "loads_total",
				Help:      "Total number of collection item loads by source and outcome",
			},
			[]string{"source", "status"},
		),
		syncPages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sync",
				Name:      "pages_total",
				Help:      "Total number of library pages persisted per provider",
			},
			[]string{"provider"},
		),
	}
}

// Registry returns the registry the collectors live on
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveTransaction records one finished transaction
func (m *Metrics) ObserveTransaction(err error, statements int, elapsed time.Duration) {
	if m == nil {
		return
	}
	status := statusOf(err)
	m.transactions.WithLabelValues(status).Inc()
	m.statements.Add(float64(statements))
	m.txDuration.WithLabelValues(status).Observe(elapsed.Seconds())
}

// BusyRetry records one commit retry
func (m *Metrics) BusyRetry() {
	if m == nil {
		return
	}
	m.busyRetries.Inc()
}

// QueueDepth adjusts the pending task gauge by delta
func (m *Metrics) QueueDepth(delta int) {
	if m == nil {
		return
	}
	m.queueDepth.Add(float64(delta))
}

// CollectionLoad records a collection item load
func (m *Metrics) CollectionLoad(source string, err error) {
	if m == nil {
		return
	}
	m.collectionLoad.WithLabelValues(source, statusOf(err)).Inc()
}

// SyncPage records a persisted library page
func (m *Metrics) SyncPage(provider string) {
	if m == nil {
		return
	}
	m.syncPages.WithLabelValues(provider).Inc()
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
