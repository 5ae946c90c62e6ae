// Package metrics exposes prometheus counters for synthesis runs.
package metrics

import (
	"errors"

	"github.com/poiesic/agentmatrix/governor"
	"github.com/poiesic/agentmatrix/synthesis"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "agentmatrix"

// Run outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeEmpty    = "empty"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// SynthesisMetrics is a synthesis.Monitor that counts what every run did.
type SynthesisMetrics struct {
	Runs          *prometheus.CounterVec
	URLs          *prometheus.CounterVec
	Partials      *prometheus.CounterVec
	Chunks        prometheus.Histogram
	DroppedURLs   prometheus.Counter
	DroppedChunks prometheus.Counter
	InFlight      prometheus.Gauge
}

var _ synthesis.Monitor = (*SynthesisMetrics)(nil)

// NewSynthesisMetrics registers the synthesis collectors with reg.
// A nil reg registers with prometheus.DefaultRegisterer.
func NewSynthesisMetrics(reg prometheus.Registerer) *SynthesisMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &SynthesisMetrics{
		Runs: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "synthesis",
				Name:      "runs_total",
				Help:      "Synthesis runs by outcome",
			},
			[]string{"outcome"},
		),
		URLs: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "synthesis",
				Name:      "urls_total",
				Help:      "URLs resolved by outcome",
			},
			[]string{"outcome"}, // "textual", "non_textual" or "failed"
		),
		Partials: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "synthesis",
				Name:      "partials_total",
				Help:      "Map-phase completion calls by status",
			},
			[]string{"status"},
		),
		Chunks: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "synthesis",
				Name:      "chunks",
				Help:      "Chunks mapped per run",
				Buckets:   []float64{1, 2, 4, 6, 8, 10, 12, 16, 24},
			},
		),
		DroppedURLs: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "synthesis",
				Name:      "dropped_urls_total",
				Help:      "URLs discarded by the per-request cap",
			},
		),
		DroppedChunks: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "synthesis",
				Name:      "dropped_chunks_total",
				Help:      "Chunks discarded by the partial cap",
			},
		),
		InFlight: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "synthesis",
				Name:      "in_flight",
				Help:      "Synthesis runs currently executing",
			},
		),
	}
}

func (m *SynthesisMetrics) Start(_ synthesis.Request) {
	m.InFlight.Inc()
}

func (m *SynthesisMetrics) URLResolved(_ string, textual bool, err error) {
	switch {
	case err != nil:
		m.URLs.WithLabelValues("failed").Inc()
	case textual:
		m.URLs.WithLabelValues("textual").Inc()
	default:
		m.URLs.WithLabelValues("non_textual").Inc()
	}
}

func (m *SynthesisMetrics) Chunked(chunks, droppedChunks int) {
	m.Chunks.Observe(float64(chunks))
	m.DroppedChunks.Add(float64(droppedChunks))
}

func (m *SynthesisMetrics) PartialDone(_ int, err error) {
	if err != nil {
		m.Partials.WithLabelValues("failed").Inc()
		return
	}
	m.Partials.WithLabelValues("ok").Inc()
}

func (m *SynthesisMetrics) Finish(result *synthesis.Result, err error) {
	m.InFlight.Dec()
	if result != nil {
		m.DroppedURLs.Add(float64(result.DroppedURLs))
	}
	m.Runs.WithLabelValues(Outcome(result, err)).Inc()
}

// Outcome classifies a finished run.
func Outcome(result *synthesis.Result, err error) string {
	switch {
	case errors.Is(err, governor.ErrPayloadTooLarge):
		return OutcomeRejected
	case err != nil:
		return OutcomeFailed
	case result != nil && result.Matrix == synthesis.EmptyCorpusMatrix:
		return OutcomeEmpty
	}
	return OutcomeOK
}

// WriteTextfile writes every metric gathered by g to path in the text
// exposition format, for node_exporter's textfile collector.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return prometheus.WriteToTextfile(path, g)
}
