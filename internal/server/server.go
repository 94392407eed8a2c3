package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jackzampolin/popsci/internal/api"
	"github.com/jackzampolin/popsci/internal/config"
	"github.com/jackzampolin/popsci/internal/home"
	"github.com/jackzampolin/popsci/internal/metrics"
	"github.com/jackzampolin/popsci/internal/pipeline"
	"github.com/jackzampolin/popsci/internal/prompts"
	"github.com/jackzampolin/popsci/internal/providers"
	"github.com/jackzampolin/popsci/internal/server/endpoints"
	"github.com/jackzampolin/popsci/internal/svcctx"
	"github.com/jackzampolin/popsci/internal/task"
)

// Server is the main popsci HTTP server. It owns the task registry, the
// pipeline runner and the retention janitor.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	tasks      task.Registry
	runner     *pipeline.Runner
	janitor    *task.Janitor
	registry   *providers.Registry
	prompts    *prompts.Resolver
	configMgr  *config.Manager
	logger     *slog.Logger

	closeTasks func() error

	// services holds all core services for context enrichment
	services *svcctx.Services

	// endpoints registry for HTTP routes
	endpointRegistry *api.Registry

	mu      sync.RWMutex
	running bool
}

// Config holds server configuration.
type Config struct {
	// ConfigManager provides configuration with hot-reload support.
	// Nil runs on DefaultConfig.
	ConfigManager *config.Manager
	// Home is the popsci home directory.
	Home *home.Dir
	// Logger is the structured logger to use
	Logger *slog.Logger

	// Tasks replaces the registry selected by registry.backend.
	Tasks task.Registry
	// Providers replaces the registry built from the providers section.
	Providers *providers.Registry
	// Services replaces the stage collaborators built from config.
	Services *pipeline.Services
	// HTTPClient is shared by acquisition and recommendation.
	HTTPClient *http.Client
}

// New creates a new Server with the given configuration.
func New(ctx context.Context, cfg Config) (*Server, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Home == nil {
		h, err := home.New("")
		if err != nil {
			return nil, err
		}
		cfg.Home = h
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}

	appCfg := config.DefaultConfig()
	if cfg.ConfigManager != nil {
		appCfg = cfg.ConfigManager.Get()
	}
	logger := cfg.Logger

	metrics.MustRegister()

	// Create provider registry
	registry := cfg.Providers
	if registry == nil {
		registry = providers.NewRegistry()
		registry.SetLogger(logger)
		registry.Reload(appCfg.ToProviderRegistryConfig())
	}

	// Watch for config changes
	if cfg.ConfigManager != nil {
		cfg.ConfigManager.OnChange(func(c *config.Config) {
			registry.Reload(c.ToProviderRegistryConfig())
			logger.Info("provider registry reloaded from config")
		})
	}

	tasksRoot, err := filepath.Abs(appCfg.TasksDir(cfg.Home.Path()))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve tasks directory: %w", err)
	}
	if err := os.MkdirAll(tasksRoot, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create tasks directory: %w", err)
	}
	taskDir := taskDirFunc(tasksRoot)

	tasks, closeTasks := cfg.Tasks, func() error { return nil }
	if tasks == nil {
		tasks, closeTasks, err = newTaskRegistry(ctx, appCfg.Registry, logger)
		if err != nil {
			return nil, err
		}
	}

	resolver := newPromptResolver(cfg.Home.PromptsPath(), logger)

	var svc pipeline.Services
	if cfg.Services != nil {
		svc = *cfg.Services
	} else {
		svc, err = newStageServices(pipelineDeps{
			cfg:        appCfg,
			providers:  registry,
			prompts:    resolver,
			httpClient: cfg.HTTPClient,
			logger:     logger,
		})
		if err != nil {
			closeTasks()
			return nil, err
		}
	}

	stages, err := pipeline.NewRegistry(pipeline.Stages(svc)...)
	if err != nil {
		closeTasks()
		return nil, err
	}
	runner := pipeline.NewRunner(pipeline.RunnerConfig{
		Executor:      pipeline.NewExecutor(stages, tasks, taskDir, logger),
		Tasks:         tasks,
		MaxConcurrent: appCfg.Pipeline.MaxConcurrentTasks,
		TaskTimeout:   appCfg.Pipeline.TaskTimeout,
		Logger:        logger,
	})

	s := &Server{
		tasks:      tasks,
		runner:     runner,
		registry:   registry,
		prompts:    resolver,
		configMgr:  cfg.ConfigManager,
		logger:     logger,
		closeTasks: closeTasks,
		janitor: task.NewJanitor(tasks, task.JanitorConfig{
			MaxAge:          appCfg.Retention.MaxAge,
			Interval:        appCfg.Retention.Interval,
			RemoveArtifacts: removeTaskDir(taskDir),
			Logger:          logger,
		}),
	}

	s.services = &svcctx.Services{
		Tasks:     tasks,
		Runner:    runner,
		Providers: registry,
		Prompts:   resolver,
		Config:    cfg.ConfigManager,
		Logger:    logger,
		Home:      cfg.Home,
		TaskDir:   taskDir,
	}

	// Create endpoint registry and register all endpoints
	s.endpointRegistry = api.NewRegistry()
	for _, ep := range endpoints.All() {
		s.endpointRegistry.Register(ep)
	}

	// Set up HTTP server
	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.requireInit)
	s.handler = withCORS(appCfg.Server.CORSOrigins, s.withServices(mux))

	s.httpServer = &http.Server{
		Addr:         appCfg.ListenAddr(),
		Handler:      s.handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// Start serves HTTP and runs the janitor.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	janitorCtx, stopJanitor := context.WithCancel(ctx)
	defer stopJanitor()
	go s.janitor.Run(janitorCtx)

	if s.configMgr != nil {
		s.configMgr.WatchConfig()
	}

	// Start HTTP server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr, "providers", s.registry.List())
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			_ = s.shutdown()
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	return s.shutdown()
}

// shutdown stops accepting requests, then cancels running tasks.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	s.Close()

	s.setNotRunning()
	s.logger.Info("server stopped")
	return nil
}

// Close cancels in-flight tasks, waits for their workers and releases the
// task registry. It is safe to call more than once.
func (s *Server) Close() {
	s.runner.Close()
	if s.closeTasks != nil {
		if err := s.closeTasks(); err != nil {
			s.logger.Error("task registry close error", "error", err)
		}
		s.closeTasks = nil
	}
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Handler returns the routed handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Tasks returns the task registry.
func (s *Server) Tasks() task.Registry {
	return s.tasks
}

// Runner returns the pipeline runner.
func (s *Server) Runner() *pipeline.Runner {
	return s.runner
}

// Registry returns the provider registry.
func (s *Server) Registry() *providers.Registry {
	return s.registry
}
