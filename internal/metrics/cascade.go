package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(tierAttempts, tierSelected, illustrationOutcomes, exportTierOutcomes, chunkOutcomes)
}

var (
	tierAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recommend_tier_attempts_total",
			Help:      "Recommendation tier attempts by result.",
		},
		[]string{"tier", "result"},
	)

	tierSelected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recommend_tier_selected_total",
			Help:      "Which recommendation tier supplied the final result.",
		},
		[]string{"tier"},
	)

	illustrationOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "illustrations_total",
			Help:      "Illustration requests by status.",
		},
		[]string{"status"},
	)

	exportTierOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "export_tier_attempts_total",
			Help:      "Export tier attempts by result.",
		},
		[]string{"format", "tier", "result"},
	)

	chunkOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_chunks_total",
			Help:      "Generation chunks by result.",
		},
		[]string{"result"},
	)
)

// TierAttempt records one recommendation tier try. result is "hit", "empty", "error" or "rate_limited".
func TierAttempt(tier, result string) {
	tierAttempts.WithLabelValues(norm(tier), norm(result)).Inc()
}

// TierSelected records the tier that supplied recommendations.
func TierSelected(tier string) {
	tierSelected.WithLabelValues(norm(tier)).Inc()
}

// Illustration records one image outcome.
func Illustration(status string) {
	illustrationOutcomes.WithLabelValues(norm(status)).Inc()
}

// ExportTier records one export attempt.
func ExportTier(format, tier string, ok bool) {
	exportTierOutcomes.WithLabelValues(norm(format), norm(tier), outcome(ok)).Inc()
}

// Chunk records one generation chunk outcome ("ok" or "placeholder").
func Chunk(result string) {
	chunkOutcomes.WithLabelValues(norm(result)).Inc()
}
