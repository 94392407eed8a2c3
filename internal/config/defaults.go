package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// defaults lists every key with its default value. Durations are given as
// strings so the file written by WriteDefault stays readable.
func defaults() map[string]any {
	return map[string]any{
		"server.host":         "127.0.0.1",
		"server.port":         8080,
		"server.cors_origins": []string{"*"},

		"output.dir": "",

		"pipeline.max_concurrent_tasks": 4,
		"pipeline.task_timeout":         "30m",

		"generation.provider":     "gemini",
		"generation.chunk_budget": 4000,
		"generation.max_retries":  3,
		"generation.timeout":      "2m",
		"generation.plan_timeout": "90s",
		"generation.retry_delay":  "2s",
		"generation.temperature":  0.7,

		"illustration.provider":    "gemini",
		"illustration.count":       5,
		"illustration.concurrency": 5,
		"illustration.timeout":     "90s",
		"illustration.size":        "1024x1024",

		"recommend.limit":                    8,
		"recommend.semantic_scholar_key":     "${SEMANTIC_SCHOLAR_API_KEY}",
		"recommend.semantic_scholar_timeout": "10s",
		"recommend.arxiv_timeout":            "15s",
		"recommend.requests_per_second":      1.0,

		"fetch.email":               "${UNPAYWALL_EMAIL}",
		"fetch.user_agent":          "popsci/1.0 (+https://github.com/jackzampolin/popsci)",
		"fetch.max_size_mb":         50,
		"fetch.timeout":             "60s",
		"fetch.max_retries":         3,
		"fetch.retry_delay":         "2s",
		"fetch.requests_per_second": 2.0,

		"export.pdf_tiers": []string{"chromium", "weasyprint", "pandoc"},
		"export.timeout":   "2m",

		"providers.gemini.type":        "gemini",
		"providers.gemini.model":       "gemini-2.5-flash",
		"providers.gemini.image_model": "gemini-2.5-flash-image",
		"providers.gemini.api_key":     "${GEMINI_API_KEY}",
		"providers.gemini.rate_limit":  60,
		"providers.gemini.enabled":     true,

		"providers.openai.type":        "openai",
		"providers.openai.model":       "gpt-4o-mini",
		"providers.openai.image_model": "gpt-image-1",
		"providers.openai.api_key":     "${OPENAI_API_KEY}",
		"providers.openai.rate_limit":  60,
		"providers.openai.enabled":     true,

		"registry.backend":        "memory",
		"registry.redis_addr":     "localhost:6379",
		"registry.redis_password": "",
		"registry.redis_db":       0,
		"registry.prefix":         "popsci:",
		"registry.ttl":            "24h",

		"retention.max_age":  "24h",
		"retention.interval": "10m",
	}
}

func setDefaults(v *viper.Viper) {
	for key, value := range defaults() {
		v.SetDefault(key, value)
	}
}

// DefaultConfig returns the configuration used when no file or env overrides exist.
func DefaultConfig() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("config: invalid defaults: %v", err))
	}
	return &cfg
}

// nested turns dotted keys into the section maps written to config.yaml.
func nested(flat map[string]any) map[string]any {
	out := make(map[string]any)
	for key, value := range flat {
		parts := strings.Split(key, ".")
		m := out
		for _, p := range parts[:len(parts)-1] {
			next, ok := m[p].(map[string]any)
			if !ok {
				next = make(map[string]any)
				m[p] = next
			}
			m = next
		}
		m[parts[len(parts)-1]] = value
	}
	return out
}
