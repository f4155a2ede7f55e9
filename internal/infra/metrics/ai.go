package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		aiCallsLatencyMs,
		aiContextTokens,
	)
}

var (
	aiCallsLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_calls_latency_ms",
			Help:    "AI reply latency distribution in milliseconds.",
			Buckets: []float64{10, 25, 50, 100, 200, 400, 800, 1600, 3000, 5000},
		},
		[]string{"provider", "model", "success"},
	)

	aiContextTokens = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_context_tokens",
			Help:    "Prompt tokens sent per reply after trimming.",
			Buckets: []float64{100, 250, 500, 1000, 2000, 3000, 4000, 8000},
		},
		[]string{"provider", "model"},
	)
)

func ObserveAICallLatency(provider, model string, ms float64, success bool) {
	aiCallsLatencyMs.WithLabelValues(norm(provider), norm(model), strconv.FormatBool(success)).Observe(ms)
}

func ObserveAIContextTokens(provider, model string, tokens int) {
	aiContextTokens.WithLabelValues(norm(provider), norm(model)).Observe(float64(tokens))
}
