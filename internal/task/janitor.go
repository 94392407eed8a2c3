package task

import (
	"context"
	"log/slog"
	"time"
)

// JanitorConfig configures retention of finished tasks.
type JanitorConfig struct {
	MaxAge   time.Duration // Terminal tasks older than this are removed (0 disables)
	Interval time.Duration // Sweep period (default 10m)
	// RemoveArtifacts deletes on-disk output for a task. Optional.
	RemoveArtifacts func(id string) error
	Logger          *slog.Logger
}

// Janitor deletes terminal tasks once they age past the retention window.
// Queued and running tasks are never touched.
type Janitor struct {
	registry Registry
	cfg      JanitorConfig
	logger   *slog.Logger
	now      func() time.Time
}

// NewJanitor creates a janitor over registry.
func NewJanitor(registry Registry, cfg JanitorConfig) *Janitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Janitor{
		registry: registry,
		cfg:      cfg,
		logger:   cfg.Logger.With("component", "janitor"),
		now:      time.Now,
	}
}

// Run sweeps every interval until ctx ends.
func (j *Janitor) Run(ctx context.Context) {
	if j.cfg.MaxAge <= 0 {
		j.logger.Info("task retention disabled")
		return
	}
	ticker := time.NewTicker(j.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := j.Sweep(ctx); err != nil {
				j.logger.Warn("sweep failed", "error", err)
			}
		}
	}
}

// Sweep removes expired terminal tasks and returns how many were removed.
func (j *Janitor) Sweep(ctx context.Context) (int, error) {
	if j.cfg.MaxAge <= 0 {
		return 0, nil
	}
	cutoff := j.now().Add(-j.cfg.MaxAge)
	removed := 0

	for _, status := range []Status{StatusCompleted, StatusFailed} {
		tasks, err := j.registry.List(ctx, ListFilter{Status: status, Limit: 10000})
		if err != nil {
			return removed, err
		}
		for _, t := range tasks {
			if t.UpdatedAt.After(cutoff) {
				continue
			}
			if j.cfg.RemoveArtifacts != nil {
				if err := j.cfg.RemoveArtifacts(t.ID); err != nil {
					j.logger.Warn("failed to remove task artifacts", "id", t.ID, "error", err)
					continue
				}
			}
			if err := j.registry.Delete(ctx, t.ID); err != nil {
				return removed, err
			}
			removed++
		}
	}

	if removed > 0 {
		j.logger.Info("expired tasks removed", "count", removed)
	}
	return removed, nil
}
