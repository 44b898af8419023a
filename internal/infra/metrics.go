package infra

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "crypto_dash"

// Metrics groups the collectors the core reports to. A nil *Metrics is valid
// and records nothing, which keeps unit tests free of registry plumbing.
type Metrics struct {
	actionsProcessed *prometheus.CounterVec
	actionsDropped   *prometheus.CounterVec
	reduceLatency    prometheus.Histogram
	fetchErrors      *prometheus.CounterVec
	loadRetries      prometheus.Counter
	journalErrors    prometheus.Counter
	streamClients    prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		actionsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "actions_processed_total",
			Help:      "Actions reduced by the store, by action type.",
		}, []string{"type"}),
		actionsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "actions_dropped_total",
			Help:      "Superseded reaction results rejected before reduction.",
		}, []string{"type"}),
		reduceLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "reduce_duration_seconds",
			Help:      "Time spent reducing one action and notifying listeners.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 8),
		}),
		fetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "fetch_errors_total",
			Help:      "Market-data fetch failures, by operation.",
		}, []string{"op"}),
		loadRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "load_retries_total",
			Help:      "Retries scheduled by the load reaction.",
		}),
		journalErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "journal_errors_total",
			Help:      "Actions that could not be written to the journal.",
		}),
		streamClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "stream_clients",
			Help:      "Connected WebSocket clients.",
		}),
	}

	reg.MustRegister(
		m.actionsProcessed,
		m.actionsDropped,
		m.reduceLatency,
		m.fetchErrors,
		m.loadRetries,
		m.journalErrors,
		m.streamClients,
	)
	return m
}

// RecordAction records a reduced action with its processing latency.
func (m *Metrics) RecordAction(actionType string, d time.Duration) {
	if m == nil {
		return
	}
	m.actionsProcessed.WithLabelValues(actionType).Inc()
	m.reduceLatency.Observe(d.Seconds())
}

// RecordDropped records a stale action rejected by its guard.
func (m *Metrics) RecordDropped(actionType string) {
	if m == nil {
		return
	}
	m.actionsDropped.WithLabelValues(actionType).Inc()
}

// RecordFetchError records a failed call to the market-data API.
func (m *Metrics) RecordFetchError(op string) {
	if m == nil {
		return
	}
	m.fetchErrors.WithLabelValues(op).Inc()
}

// RecordRetry records a scheduled load retry.
func (m *Metrics) RecordRetry() {
	if m == nil {
		return
	}
	m.loadRetries.Inc()
}

// RecordJournalError records a journal write failure.
func (m *Metrics) RecordJournalError() {
	if m == nil {
		return
	}
	m.journalErrors.Inc()
}

// IncrementClients increments connected stream clients by 1.
func (m *Metrics) IncrementClients() {
	if m == nil {
		return
	}
	m.streamClients.Inc()
}

// DecrementClients decrements connected stream clients by 1.
func (m *Metrics) DecrementClients() {
	if m == nil {
		return
	}
	m.streamClients.Dec()
}
