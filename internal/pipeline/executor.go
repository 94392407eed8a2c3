package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"time"

	"github.com/jackzampolin/popsci/internal/failure"
	"github.com/jackzampolin/popsci/internal/metrics"
	"github.com/jackzampolin/popsci/internal/paper"
	"github.com/jackzampolin/popsci/internal/task"
)

// DownloadPath is the API path serving one artifact of a task.
func DownloadPath(taskID, file string) string {
	return "/api/paper/download/" + taskID + "/" + file
}

// Executor runs every stage of one task in order and records each stage
// boundary in the task registry.
type Executor struct {
	stages  *Registry
	tasks   task.Registry
	taskDir func(id string) string
	logger  *slog.Logger
}

// NewExecutor creates an Executor. taskDir maps a task id to its output
// directory.
func NewExecutor(stages *Registry, tasks task.Registry, taskDir func(id string) string, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{stages: stages, tasks: tasks, taskDir: taskDir, logger: logger.With("component", "pipeline")}
}

// Run drives t from queued to a terminal state. The returned error is
// only for registry failures; stage failures are recorded on the task.
func (e *Executor) Run(ctx context.Context, t *task.Task) error {
	stages := e.stages.List()
	logger := e.logger.With("task_id", t.ID)
	s := &State{Task: t, Dir: e.taskDir(t.ID), Logger: logger}

	if err := e.update(ctx, t.ID, task.Update{Status: task.StatusRunning, Stage: stages[0].Name}); err != nil {
		return err
	}
	metrics.TaskTransition(string(task.StatusQueued), string(task.StatusRunning))
	logger.Info("task started", "url", t.Request.URL)

	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return e.fail(ctx, t.ID, stages[0].Name, failure.Wrap(failure.Internal, "create task dir", err))
	}

	progress := 0

	for i, st := range stages {
		if i > 0 {
			if err := e.update(ctx, t.ID, task.Update{Stage: st.Name}); err != nil {
				return err
			}
		}

		start := time.Now()
		s.Runner = st.runner()
		err := runStage(ctx, st, s)
		elapsed := time.Since(start)

		switch {
		case err != nil && (st.Fatal || isFatal(err)):
			metrics.ObserveStage(string(st.Name), "fatal", elapsed)
			logger.Error("stage failed", "stage", st.Name, "error", err)
			return e.fail(ctx, t.ID, st.Name, err)
		case err != nil:
			metrics.ObserveStage(string(st.Name), "degraded", elapsed)
			notes := notes(err)
			s.Degradations = append(s.Degradations, notes...)
			logger.Warn("stage degraded", "stage", st.Name, "notes", len(notes), "error", err)
		default:
			metrics.ObserveStage(string(st.Name), "ok", elapsed)
			logger.Debug("stage complete", "stage", st.Name, "duration", elapsed)
		}

		progress += st.Weight
		if i == len(stages)-1 {
			break
		}
		if err := e.update(ctx, t.ID, task.Update{Progress: progress}); err != nil {
			return err
		}
	}

	if err := writeMetadata(s); err != nil {
		s.Degradations = append(s.Degradations, "metadata: "+err.Error())
		logger.Warn("failed to write metadata", "error", err)
	}

	res := result(s)
	if err := e.update(ctx, t.ID, task.Update{Status: task.StatusCompleted, Progress: 100, Result: res}); err != nil {
		return err
	}
	metrics.TaskTransition(string(task.StatusRunning), string(task.StatusCompleted))
	logger.Info("task completed",
		"recommendation_tier", res.RecommendationTier,
		"export_tier", res.ExportTier,
		"degradations", len(res.Degradations),
	)
	return nil
}

// runStage turns a panic inside a stage into an Internal error, which the
// caller then treats by the stage's fatal/degradable rule.
func runStage(ctx context.Context, st Stage, s *State) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.Logger.Error("stage panicked", "stage", st.Name, "panic", r, "stack", string(debug.Stack()))
			err = failure.Errorf(failure.Internal, string(st.Name), "panic: %v", r)
		}
	}()
	return st.Run(ctx, s)
}

// Abort fails a task that never got a worker. The task passes through
// running so the transition stays legal.
func (e *Executor) Abort(ctx context.Context, t *task.Task, err error) error {
	stage := e.stages.List()[0].Name
	if uerr := e.update(ctx, t.ID, task.Update{Status: task.StatusRunning, Stage: stage}); uerr != nil {
		return uerr
	}
	metrics.TaskTransition(string(task.StatusQueued), string(task.StatusRunning))
	return e.fail(ctx, t.ID, stage, err)
}

// fail records err as the task's single error. Progress stays where the
// last completed stage left it.
func (e *Executor) fail(ctx context.Context, id string, stage task.Stage, err error) error {
	f := &task.Failure{Kind: string(failure.KindOf(err)), Message: err.Error()}
	if fe, ok := failure.As(err); ok {
		f.Message = fe.Message()
	}
	if uerr := e.update(ctx, id, task.Update{Status: task.StatusFailed, Stage: stage, Failure: f}); uerr != nil {
		return uerr
	}
	metrics.TaskTransition(string(task.StatusRunning), string(task.StatusFailed))
	return nil
}

// update writes to the registry even after ctx has expired, so a task
// that hit its deadline still reaches a terminal state.
func (e *Executor) update(ctx context.Context, id string, u task.Update) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if _, err := e.tasks.UpdateStage(ctx, id, u); err != nil {
		return fmt.Errorf("failed to update task %s: %w", id, err)
	}
	return nil
}

// notes flattens a joined error into one note per cause.
func notes(err error) []string {
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		var out []string
		for _, e := range j.Unwrap() {
			out = append(out, notes(e)...)
		}
		return out
	}
	return []string{err.Error()}
}

func result(s *State) *task.Result {
	r := &task.Result{Degradations: s.Degradations}
	if r.Degradations == nil {
		r.Degradations = []string{}
	}
	if s.Content != nil {
		r.PaperTitle = s.Content.Title
	}
	for _, il := range s.Illustrations {
		switch il.Status {
		case paper.IllustrationGenerated:
			r.IllustrationCount++
		case paper.IllustrationFailed:
			r.IllustrationsFailed++
		}
	}
	r.RecommendationTier = string(s.Related.Tier)
	r.RecommendationCount = len(s.Related.Items)

	if rep := s.Export; rep != nil {
		link := func(file string) *string {
			if file == "" {
				return nil
			}
			p := DownloadPath(s.Task.ID, file)
			return &p
		}
		r.HTMLURL = link(rep.HTML)
		r.PDFURL = link(rep.PDF)
		r.EPUBURL = link(rep.EPUB)
		r.MarkdownURL = link(rep.Markdown)
		r.ExportTier = rep.PDFTier
	}
	return r
}
