// Package observability provides Prometheus metrics for the status server.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "medecho"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Connectivity metrics
	ProbesTotal        *prometheus.CounterVec
	OfflineTransitions prometheus.Counter
	OnlineTransitions  prometheus.Counter

	// Encounter metrics
	EncountersStarted   prometheus.Counter
	EncountersCompleted prometheus.Counter
	TranscriptionsTotal *prometheus.CounterVec
	PIIRedactions       *prometheus.CounterVec

	// Offline store metrics
	OfflineSavesTotal   *prometheus.CounterVec
	EncountersProcessed prometheus.Counter

	// Export metrics
	ExportsTotal     *prometheus.CounterVec
	ExportBytesTotal prometheus.Counter

	// LLM metrics
	GenerationsTotal *prometheus.CounterVec
}

// Default is the global metrics instance.
var Default = NewMetrics(prometheus.DefaultRegisterer)

// NewMetrics creates and registers all metrics against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ProbesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connectivity_probes_total",
			Help:      "Total connectivity probes by outcome",
		}, []string{"outcome"}),
		OfflineTransitions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "offline_transitions_total",
			Help:      "Total transitions into offline mode",
		}),
		OnlineTransitions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "online_transitions_total",
			Help:      "Total transitions back online",
		}),

		EncountersStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "encounters_started_total",
			Help:      "Total encounters started",
		}),
		EncountersCompleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "encounters_completed_total",
			Help:      "Total encounters completed end to end",
		}),
		TranscriptionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcriptions_total",
			Help:      "Total transcriptions by source",
		}, []string{"source"}),
		PIIRedactions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pii_redactions_total",
			Help:      "Total PII redactions by label",
		}, []string{"label"}),

		OfflineSavesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "offline_saves_total",
			Help:      "Total artifacts saved to the offline store by kind",
		}, []string{"kind"}),
		EncountersProcessed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "encounters_processed_total",
			Help:      "Total pending encounters marked processed",
		}),

		ExportsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exports_total",
			Help:      "Total encounter exports by encryption state",
		}, []string{"encrypted"}),
		ExportBytesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "export_bytes_total",
			Help:      "Total bytes of exported encounter data",
		}),

		GenerationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_generations_total",
			Help:      "Total LLM generations by backend",
		}, []string{"backend"}),
	}
}

// RecordProbe records one connectivity probe outcome.
func (m *Metrics) RecordProbe(online bool) {
	if online {
		m.ProbesTotal.WithLabelValues("online").Inc()
	} else {
		m.ProbesTotal.WithLabelValues("offline").Inc()
	}
}

// RecordTranscription records one transcription by winning source.
func (m *Metrics) RecordTranscription(source string) {
	m.TranscriptionsTotal.WithLabelValues(source).Inc()
}

// RecordRedactions records the labels hit while redacting one transcript.
func (m *Metrics) RecordRedactions(labels []string) {
	for _, l := range labels {
		m.PIIRedactions.WithLabelValues(l).Inc()
	}
}

// RecordOfflineSave records one artifact saved to the offline store.
func (m *Metrics) RecordOfflineSave(kind string) {
	m.OfflineSavesTotal.WithLabelValues(kind).Inc()
}

// RecordExport records one export and its size.
func (m *Metrics) RecordExport(encrypted bool, bytes int) {
	label := "false"
	if encrypted {
		label = "true"
	}
	m.ExportsTotal.WithLabelValues(label).Inc()
	m.ExportBytesTotal.Add(float64(bytes))
}

// RecordGeneration records one LLM generation by winning backend.
func (m *Metrics) RecordGeneration(backend string) {
	m.GenerationsTotal.WithLabelValues(backend).Inc()
}
