package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jackzampolin/popsci/internal/config"
	"github.com/jackzampolin/popsci/internal/export"
	"github.com/jackzampolin/popsci/internal/extract"
	"github.com/jackzampolin/popsci/internal/fetch"
	"github.com/jackzampolin/popsci/internal/generate"
	"github.com/jackzampolin/popsci/internal/illustrate"
	"github.com/jackzampolin/popsci/internal/outline"
	"github.com/jackzampolin/popsci/internal/pipeline"
	"github.com/jackzampolin/popsci/internal/prompts"
	writerprompt "github.com/jackzampolin/popsci/internal/prompts/writer"
	"github.com/jackzampolin/popsci/internal/providers"
	"github.com/jackzampolin/popsci/internal/recommend"
	"github.com/jackzampolin/popsci/internal/task"
)

// newTaskRegistry builds the registry selected by registry.backend. The
// returned close func releases any connection it opened.
func newTaskRegistry(ctx context.Context, cfg config.RegistryCfg, logger *slog.Logger) (task.Registry, func() error, error) {
	switch cfg.Backend {
	case "", "memory":
		return task.NewMemoryRegistry(logger), func() error { return nil }, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: config.ResolveEnvVars(cfg.RedisPassword),
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("redis %s unreachable: %w", cfg.RedisAddr, err)
		}
		logger.Info("using redis task registry", "addr", cfg.RedisAddr, "prefix", cfg.Prefix)
		return task.NewRedisRegistry(client, task.RedisConfig{
			Prefix: cfg.Prefix,
			TTL:    cfg.TTL,
			Logger: logger,
		}), client.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown registry backend %q", cfg.Backend)
	}
}

// newPromptResolver registers every embedded prompt and layers the
// overrides found under dir.
func newPromptResolver(dir string, logger *slog.Logger) *prompts.Resolver {
	var store *prompts.Store
	if dir != "" {
		store = prompts.NewStore(dir, logger)
	}
	r := prompts.NewResolver(store, logger)
	outline.RegisterPrompts(r)
	writerprompt.RegisterPrompts(r)
	return r
}

// pipelineDeps are the shared pieces the stage services are built from.
type pipelineDeps struct {
	cfg        *config.Config
	providers  *providers.Registry
	prompts    *prompts.Resolver
	httpClient *http.Client
	logger     *slog.Logger
}

// newStageServices wires every stage collaborator from config.
func newStageServices(d pipelineDeps) (pipeline.Services, error) {
	cfg, logger := d.cfg, d.logger
	s2Key := config.ResolveEnvVars(cfg.Recommend.SemanticScholarKey)

	pdfTiers, err := export.Converters(cfg.Export.PDFTiers)
	if err != nil {
		return pipeline.Services{}, fmt.Errorf("export.pdf_tiers: %w", err)
	}

	fetcher := fetch.New(fetch.Config{
		HTTPClient:         d.httpClient,
		UserAgent:          cfg.Fetch.UserAgent,
		Email:              config.ResolveEnvVars(cfg.Fetch.Email),
		SemanticScholarKey: s2Key,
		MaxSizeMB:          cfg.Fetch.MaxSizeMB,
		Timeout:            cfg.Fetch.Timeout,
		Attempts:           uint(max(cfg.Fetch.MaxRetries, 1)),
		RetryDelay:         cfg.Fetch.RetryDelay,
		RequestsPerSecond:  cfg.Fetch.RequestsPerSecond,
		Logger:             logger,
	})

	planner := outline.New(outline.Config{
		Generator:   d.providers.DefaultText(),
		Prompts:     d.prompts,
		Timeout:     cfg.Generation.PlanTimeout,
		RetryDelay:  cfg.Generation.RetryDelay,
		Temperature: cfg.Generation.Temperature,
		Logger:      logger,
	})

	writer := generate.New(generate.Config{
		Generator:   d.providers.DefaultText(),
		Prompts:     d.prompts,
		Counter:     generate.NewCounter(logger),
		Budget:      cfg.Generation.ChunkBudget,
		Attempts:    uint(max(cfg.Generation.MaxRetries, 1)),
		Timeout:     cfg.Generation.Timeout,
		RetryDelay:  cfg.Generation.RetryDelay,
		Temperature: cfg.Generation.Temperature,
		Logger:      logger,
	})

	illustrator := illustrate.New(illustrate.Config{
		Generator:   d.providers.DefaultImage(),
		Concurrency: cfg.Illustration.Concurrency,
		Timeout:     cfg.Illustration.Timeout,
		Size:        cfg.Illustration.Size,
		Logger:      logger,
	})

	cascade := recommend.NewCascade(logger,
		recommend.NewSemanticScholar(recommend.SemanticScholarConfig{
			APIKey:     s2Key,
			HTTPClient: d.httpClient,
			Limiter:    recommend.NewLimiter(cfg.Recommend.RequestsPerSecond),
			UserAgent:  cfg.Fetch.UserAgent,
			Timeout:    cfg.Recommend.SemanticScholarTimeout,
		}),
		recommend.NewArXiv(recommend.ArXivConfig{
			HTTPClient: d.httpClient,
			Limiter:    recommend.NewLimiter(cfg.Recommend.RequestsPerSecond),
			UserAgent:  cfg.Fetch.UserAgent,
			Timeout:    cfg.Recommend.ArXivTimeout,
		}),
		recommend.KeywordLinks{},
	)

	return pipeline.Services{
		Fetcher:                 fetcher,
		Extractor:               extract.New(logger),
		Planner:                 planner,
		Writer:                  writer,
		Illustrator:             illustrator,
		Recommender:             cascade,
		Exporter:                export.New(export.Config{PDF: pdfTiers, Timeout: cfg.Export.Timeout, Logger: logger}),
		IllustrationCount:       cfg.Illustration.Count,
		IllustrationConcurrency: cfg.Illustration.Concurrency,
		RecommendLimit:          cfg.Recommend.Limit,
	}, nil
}

// taskDirFunc maps task ids to directories under root.
func taskDirFunc(root string) func(id string) string {
	return func(id string) string { return filepath.Join(root, id) }
}

// removeTaskDir is the janitor's artifact cleanup.
func removeTaskDir(taskDir func(string) string) func(id string) error {
	return func(id string) error { return os.RemoveAll(taskDir(id)) }
}
