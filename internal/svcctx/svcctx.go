// Package svcctx provides service context for dependency injection via context.
// This package is separate from server to avoid import cycles with endpoints.
package svcctx

import (
	"context"
	"log/slog"

	"github.com/jackzampolin/popsci/internal/config"
	"github.com/jackzampolin/popsci/internal/home"
	"github.com/jackzampolin/popsci/internal/pipeline"
	"github.com/jackzampolin/popsci/internal/prompts"
	"github.com/jackzampolin/popsci/internal/providers"
	"github.com/jackzampolin/popsci/internal/task"
)

// Services holds all core services that flow through context.
// Components extract what they need via the individual extractors.
type Services struct {
	Tasks     task.Registry
	Runner    *pipeline.Runner
	Providers *providers.Registry
	Prompts   *prompts.Resolver
	Config    *config.Manager
	Logger    *slog.Logger
	Home      *home.Dir

	// TaskDir maps a task id to its artifact directory.
	TaskDir func(id string) string
}

type servicesKey struct{}

// WithServices returns a new context with services attached.
func WithServices(ctx context.Context, s *Services) context.Context {
	return context.WithValue(ctx, servicesKey{}, s)
}

// ServicesFrom extracts the full Services struct from context.
// Returns nil if not present.
func ServicesFrom(ctx context.Context) *Services {
	s, _ := ctx.Value(servicesKey{}).(*Services)
	return s
}

// TasksFrom extracts the task registry from context.
func TasksFrom(ctx context.Context) task.Registry {
	if s := ServicesFrom(ctx); s != nil {
		return s.Tasks
	}
	return nil
}

// RunnerFrom extracts the pipeline runner from context.
func RunnerFrom(ctx context.Context) *pipeline.Runner {
	if s := ServicesFrom(ctx); s != nil {
		return s.Runner
	}
	return nil
}

// ProvidersFrom extracts the provider registry from context.
func ProvidersFrom(ctx context.Context) *providers.Registry {
	if s := ServicesFrom(ctx); s != nil {
		return s.Providers
	}
	return nil
}

// PromptsFrom extracts the prompt resolver from context.
func PromptsFrom(ctx context.Context) *prompts.Resolver {
	if s := ServicesFrom(ctx); s != nil {
		return s.Prompts
	}
	return nil
}

// LoggerFrom extracts the logger from context.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if s := ServicesFrom(ctx); s != nil {
		return s.Logger
	}
	return nil
}

// HomeFrom extracts the home directory from context.
func HomeFrom(ctx context.Context) *home.Dir {
	if s := ServicesFrom(ctx); s != nil {
		return s.Home
	}
	return nil
}

// TaskDirFrom returns the directory holding id's artifacts, or "" when
// no services are attached.
func TaskDirFrom(ctx context.Context, id string) string {
	if s := ServicesFrom(ctx); s != nil && s.TaskDir != nil {
		return s.TaskDir(id)
	}
	return ""
}
