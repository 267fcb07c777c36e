package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "nlquery"

// Generation and pipeline Prometheus metrics.
var (
	GenerationRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_requests_total",
			Help:      "Total number of generative model requests",
		},
		[]string{"model", "status"},
	)

	GenerationRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_request_duration_seconds",
			Help:      "Generative model request duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"model"},
	)

	GenerationTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_tokens_total",
			Help:      "Total generation tokens consumed",
		},
		[]string{"model", "type"}, // "prompt" / "completion"
	)

	GenerationErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_errors_total",
			Help:      "Total generative model errors",
		},
		[]string{"model", "error_type"},
	)

	GenerationBudgetTokensRemaining = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "generation_budget_tokens_remaining",
			Help:      "Remaining generation token budget",
		},
		[]string{"period"},
	)

	GenerationCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_cache_total",
			Help:      "Generation cache lookups by result",
		},
		[]string{"result"}, // "hit", "miss", "rejected"
	)

	StructureOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "structure_outcomes_total",
			Help:      "Structured lines by outcome",
		},
		[]string{"outcome"}, // "ok" / "invalid" / "model_error"
	)

	TranslationOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "translation_outcomes_total",
			Help:      "Query translations by outcome",
		},
		[]string{"outcome"}, // "ok" / "degraded" / "match_all"
	)
)

var genOnce sync.Once

// RegisterGenerationMetrics registers generation and pipeline metrics. Safe to call repeatedly.
func RegisterGenerationMetrics() {
	genOnce.Do(func() {
		prometheus.MustRegister(
			GenerationRequestsTotal,
			GenerationRequestDuration,
			GenerationTokensTotal,
			GenerationErrorsTotal,
			GenerationBudgetTokensRemaining,
			GenerationCacheTotal,
			StructureOutcomesTotal,
			TranslationOutcomesTotal,
		)
	})
}
