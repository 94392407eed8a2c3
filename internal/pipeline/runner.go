package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackzampolin/popsci/internal/failure"
	"github.com/jackzampolin/popsci/internal/metrics"
	"github.com/jackzampolin/popsci/internal/task"
)

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	Executor *Executor
	Tasks    task.Registry
	// MaxConcurrent bounds running tasks (default 4). Excess tasks wait queued.
	MaxConcurrent int
	// TaskTimeout bounds one task's whole run (default 30m).
	TaskTimeout time.Duration
	Logger      *slog.Logger
}

// Runner accepts submissions and runs each task on its own goroutine.
type Runner struct {
	exec    *Executor
	tasks   task.Registry
	sem     chan struct{}
	timeout time.Duration
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("runner closed")

// NewRunner creates a Runner.
func NewRunner(cfg RunnerConfig) *Runner {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = 30 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		exec:    cfg.Executor,
		tasks:   cfg.Tasks,
		sem:     make(chan struct{}, cfg.MaxConcurrent),
		timeout: cfg.TaskTimeout,
		logger:  cfg.Logger.With("component", "runner"),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Submit creates a queued task for req and schedules it. Every call
// yields a new task.
func (r *Runner) Submit(ctx context.Context, req task.Request) (*task.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}

	t := task.New(req)
	if err := r.tasks.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	metrics.TaskSubmitted()
	r.logger.Info("task created", "task_id", t.ID, "url", req.URL)

	r.wg.Add(1)
	go r.run(t.Clone())
	return t, nil
}

func (r *Runner) run(t *task.Task) {
	defer r.wg.Done()

	select {
	case r.sem <- struct{}{}:
	case <-r.ctx.Done():
		err := failure.Errorf(failure.Internal, "run task", "server shutting down before the task started")
		if aerr := r.exec.Abort(context.Background(), t, err); aerr != nil {
			r.logger.Error("failed to abort queued task", "task_id", t.ID, "error", aerr)
		} else {
			r.logger.Warn("queued task aborted", "task_id", t.ID)
		}
		return
	}
	defer func() { <-r.sem }()

	ctx, cancel := context.WithTimeout(r.ctx, r.timeout)
	defer cancel()

	if err := r.exec.Run(ctx, t); err != nil {
		r.logger.Error("task run aborted", "task_id", t.ID, "error", err)
	}
}

// Close stops accepting tasks, cancels running ones and waits for their
// workers to record a terminal state.
func (r *Runner) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	r.cancel()
	r.wg.Wait()
}

// Wait blocks until every submitted task has finished. Used by tests
// and the one-shot CLI.
func (r *Runner) Wait() {
	r.wg.Wait()
}
