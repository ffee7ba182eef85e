package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"

	ExtractionFenced   = "fenced"
	ExtractionFallback = "fallback"
	ExtractionEmpty    = "empty"
)

var latencyBucketsMs = []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000}

var (
	translationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askdb_translations_total",
			Help: "Total number of language model translation calls by outcome.",
		},
		[]string{"outcome"},
	)
	translationLatencyMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "askdb_translation_latency_ms",
			Help:    "Language model round-trip latency in milliseconds.",
			Buckets: latencyBucketsMs,
		},
	)
	extractionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askdb_extractions_total",
			Help: "Total number of statement extractions by path (fenced, fallback, empty).",
		},
		[]string{"path"},
	)
	executionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askdb_executions_total",
			Help: "Total number of statement executions by outcome.",
		},
		[]string{"outcome"},
	)
	executionLatencyMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "askdb_execution_latency_ms",
			Help:    "Statement execution latency in milliseconds, including connect.",
			Buckets: latencyBucketsMs,
		},
	)
	conversationTurns = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "askdb_conversation_turns",
			Help: "Current number of turns stored in the active conversation.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		translationsTotal,
		translationLatencyMs,
		extractionsTotal,
		executionsTotal,
		executionLatencyMs,
		conversationTurns,
	)
}

func ObserveTranslation(failed bool, elapsed time.Duration) {
	translationsTotal.WithLabelValues(outcome(failed)).Inc()
	translationLatencyMs.Observe(float64(elapsed.Milliseconds()))
}

func ObserveExtraction(path string) {
	extractionsTotal.WithLabelValues(path).Inc()
}

func ObserveExecution(failed bool, elapsed time.Duration) {
	executionsTotal.WithLabelValues(outcome(failed)).Inc()
	executionLatencyMs.Observe(float64(elapsed.Milliseconds()))
}

func SetConversationTurns(turns int) {
	if turns < 0 {
		turns = 0
	}
	conversationTurns.Set(float64(turns))
}

func outcome(failed bool) string {
	if failed {
		return OutcomeFailure
	}
	return OutcomeSuccess
}
