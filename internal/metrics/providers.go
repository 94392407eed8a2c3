package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(providerLatency, providerTokens, providerRateLimited)
}

var (
	providerLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_call_seconds",
			Help:      "Model provider call latency.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32, 64, 128},
		},
		[]string{"provider", "model", "kind", "result"},
	)

	providerTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_tokens_total",
			Help:      "Tokens consumed per provider/model and direction.",
		},
		[]string{"provider", "model", "direction"},
	)

	providerRateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_rate_limited_total",
			Help:      "429 responses received per provider.",
		},
		[]string{"provider"},
	)
)

// ObserveProviderCall records one text or image call.
func ObserveProviderCall(provider, model, kind string, d time.Duration, ok bool) {
	providerLatency.WithLabelValues(norm(provider), norm(model), norm(kind), outcome(ok)).Observe(d.Seconds())
}

// ObserveTokens adds token usage.
func ObserveTokens(provider, model string, in, out int) {
	if in > 0 {
		providerTokens.WithLabelValues(norm(provider), norm(model), "in").Add(float64(in))
	}
	if out > 0 {
		providerTokens.WithLabelValues(norm(provider), norm(model), "out").Add(float64(out))
	}
}

// RateLimited counts a 429 from provider.
func RateLimited(provider string) {
	providerRateLimited.WithLabelValues(norm(provider)).Inc()
}
