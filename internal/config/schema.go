package config

import "time"

// Config holds popsci configuration.
// Stored at: {home}/config.yaml
type Config struct {
	Server       ServerCfg              `mapstructure:"server" yaml:"server"`
	Output       OutputCfg              `mapstructure:"output" yaml:"output"`
	Pipeline     PipelineCfg            `mapstructure:"pipeline" yaml:"pipeline"`
	Generation   GenerationCfg          `mapstructure:"generation" yaml:"generation"`
	Illustration IllustrationCfg        `mapstructure:"illustration" yaml:"illustration"`
	Recommend    RecommendCfg           `mapstructure:"recommend" yaml:"recommend"`
	Fetch        FetchCfg               `mapstructure:"fetch" yaml:"fetch"`
	Export       ExportCfg              `mapstructure:"export" yaml:"export"`
	Providers    map[string]ProviderCfg `mapstructure:"providers" yaml:"providers"`
	Registry     RegistryCfg            `mapstructure:"registry" yaml:"registry"`
	Retention    RetentionCfg           `mapstructure:"retention" yaml:"retention"`
}

// ServerCfg configures the HTTP listener.
type ServerCfg struct {
	Host        string   `mapstructure:"host" yaml:"host"`
	Port        int      `mapstructure:"port" yaml:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// OutputCfg says where task directories live. Empty means {home}/tasks.
type OutputCfg struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// PipelineCfg bounds how many tasks run at once and for how long.
type PipelineCfg struct {
	MaxConcurrentTasks int           `mapstructure:"max_concurrent_tasks" yaml:"max_concurrent_tasks"`
	TaskTimeout        time.Duration `mapstructure:"task_timeout" yaml:"task_timeout"`
}

// GenerationCfg controls outline planning and article writing.
type GenerationCfg struct {
	Provider    string        `mapstructure:"provider" yaml:"provider"`         // Text provider name
	ChunkBudget int           `mapstructure:"chunk_budget" yaml:"chunk_budget"` // Tokens per writer chunk
	MaxRetries  int           `mapstructure:"max_retries" yaml:"max_retries"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`           // Per chunk
	PlanTimeout time.Duration `mapstructure:"plan_timeout" yaml:"plan_timeout"` // Per outline attempt
	RetryDelay  time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`
	Temperature float64       `mapstructure:"temperature" yaml:"temperature"`
}

// IllustrationCfg controls the image batch.
type IllustrationCfg struct {
	Provider    string        `mapstructure:"provider" yaml:"provider"` // Image provider name
	Count       int           `mapstructure:"count" yaml:"count"`
	Concurrency int           `mapstructure:"concurrency" yaml:"concurrency"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"` // Per image
	Size        string        `mapstructure:"size" yaml:"size"`
}

// RecommendCfg configures the related-reading cascade.
type RecommendCfg struct {
	Limit                  int           `mapstructure:"limit" yaml:"limit"`
	SemanticScholarKey     string        `mapstructure:"semantic_scholar_key" yaml:"semantic_scholar_key"` // Supports ${ENV_VAR}
	SemanticScholarTimeout time.Duration `mapstructure:"semantic_scholar_timeout" yaml:"semantic_scholar_timeout"`
	ArXivTimeout           time.Duration `mapstructure:"arxiv_timeout" yaml:"arxiv_timeout"`
	RequestsPerSecond      float64       `mapstructure:"requests_per_second" yaml:"requests_per_second"`
}

// FetchCfg configures paper acquisition.
type FetchCfg struct {
	Email             string        `mapstructure:"email" yaml:"email"` // Unpaywall contact
	UserAgent         string        `mapstructure:"user_agent" yaml:"user_agent"`
	MaxSizeMB         int           `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	Timeout           time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxRetries        int           `mapstructure:"max_retries" yaml:"max_retries"`
	RetryDelay        time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" yaml:"requests_per_second"`
}

// ExportCfg orders the PDF converters.
type ExportCfg struct {
	PDFTiers []string      `mapstructure:"pdf_tiers" yaml:"pdf_tiers"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"` // Per converter
}

// ProviderCfg configures a text/image provider.
type ProviderCfg struct {
	Type       string `mapstructure:"type" yaml:"type"` // "gemini", "openai", "mock"
	Model      string `mapstructure:"model" yaml:"model"`
	ImageModel string `mapstructure:"image_model" yaml:"image_model"`
	APIKey     string `mapstructure:"api_key" yaml:"api_key"` // Supports ${ENV_VAR}
	BaseURL    string `mapstructure:"base_url" yaml:"base_url"`
	RateLimit  int    `mapstructure:"rate_limit" yaml:"rate_limit"` // Requests per minute
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
}

// RegistryCfg selects the task registry backend.
type RegistryCfg struct {
	Backend       string        `mapstructure:"backend" yaml:"backend"` // "memory" or "redis"
	RedisAddr     string        `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password" yaml:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db" yaml:"redis_db"`
	Prefix        string        `mapstructure:"prefix" yaml:"prefix"`
	TTL           time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

// RetentionCfg configures the janitor that evicts old tasks.
type RetentionCfg struct {
	MaxAge   time.Duration `mapstructure:"max_age" yaml:"max_age"`
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
}
