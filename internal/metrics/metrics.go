// Package metrics provides Prometheus metrics for sous.
//
// All recording methods are safe on a nil *Metrics, so services can be
// constructed without metrics in tests.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for sous.
type Metrics struct {
	registry *prometheus.Registry

	// Ingestion metrics
	ReconcileTotal   *prometheus.CounterVec
	DocumentFailures prometheus.Counter

	// Index sync metrics
	FragmentsSynced *prometheus.CounterVec
	SyncFailures    *prometheus.CounterVec

	// Chat metrics
	ChatTurnsTotal *prometheus.CounterVec
	StageDuration  *prometheus.HistogramVec
}

// New creates metrics registered on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{registry: reg}

	m.ReconcileTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sous_reconcile_total",
			Help: "Total number of document reconciles by outcome",
		},
		[]string{"outcome"},
	)

	m.DocumentFailures = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "sous_document_failures_total",
			Help: "Total number of documents that failed to ingest",
		},
	)

	m.FragmentsSynced = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sous_fragments_synced_total",
			Help: "Total number of fragments written to or deleted from the vector index",
		},
		[]string{"op"},
	)

	m.SyncFailures = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sous_sync_failures_total",
			Help: "Total number of failed vector index batches",
		},
		[]string{"op"},
	)

	m.ChatTurnsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sous_chat_turns_total",
			Help: "Total number of chat turns by intent",
		},
		[]string{"intent"},
	)

	m.StageDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sous_chat_stage_duration_seconds",
			Help:    "Duration of chat pipeline stages in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"stage"},
	)

	return m
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Reconciled records one reconcile outcome.
func (m *Metrics) Reconciled(outcome string) {
	if m == nil {
		return
	}
	m.ReconcileTotal.WithLabelValues(outcome).Inc()
}

// DocumentFailed records one document that failed to ingest.
func (m *Metrics) DocumentFailed() {
	if m == nil {
		return
	}
	m.DocumentFailures.Inc()
}

// Synced records n fragments added or deleted.
func (m *Metrics) Synced(op string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.FragmentsSynced.WithLabelValues(op).Add(float64(n))
}

// SyncFailed records one failed batch.
func (m *Metrics) SyncFailed(op string) {
	if m == nil {
		return
	}
	m.SyncFailures.WithLabelValues(op).Inc()
}

// Turn records one chat turn.
func (m *Metrics) Turn(intent string) {
	if m == nil {
		return
	}
	m.ChatTurnsTotal.WithLabelValues(intent).Inc()
}

// ObserveStage records how long a chat stage took.
func (m *Metrics) ObserveStage(stage string, start time.Time) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
