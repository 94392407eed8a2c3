// Package pipeline runs a task through the fixed sequence of stages that
// turns a paper reference into an illustrated article and its exports.
package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackzampolin/popsci/internal/bounded"
	"github.com/jackzampolin/popsci/internal/export"
	"github.com/jackzampolin/popsci/internal/fetch"
	"github.com/jackzampolin/popsci/internal/generate"
	"github.com/jackzampolin/popsci/internal/paper"
	"github.com/jackzampolin/popsci/internal/task"
)

// Mode is how a stage uses concurrency within one task.
type Mode string

const (
	ModeSequential Mode = "sequential"
	ModeFanOut     Mode = "fan-out-bounded"
)

// Stage is one step of the pipeline.
type Stage struct {
	Name task.Stage
	// Weight is the share of overall progress this stage accounts for.
	// Weights across a pipeline sum to 100.
	Weight int
	// Fatal stages fail the task on any error. Errors from other stages
	// become degradation notes, unless wrapped with Fatal.
	Fatal bool
	// Mode and Limit decide the bounded.Runner the executor hands the
	// stage in State.Runner. Limit bounds fan-out stages (0 means unbounded).
	Mode  Mode
	Limit int
	Run   func(ctx context.Context, s *State) error
}

// runner returns the unit runner for the stage's declared mode.
func (st Stage) runner() bounded.Runner {
	if st.Mode == ModeFanOut {
		return bounded.Pool(st.Limit)
	}
	return bounded.Sequential()
}

// State is what stages pass to one another within a task.
type State struct {
	Task   *task.Task
	Dir    string
	Logger *slog.Logger
	// Runner is set per stage from its Mode and Limit.
	Runner bounded.Runner

	Document      *fetch.Document
	Content       *paper.Content
	Outline       *paper.Outline
	Text          *generate.Result
	Illustrations []paper.Illustration
	Related       paper.Recommendations
	Export        *export.Report

	Degradations []string
}

type fatalError struct{ error }

func (e fatalError) Unwrap() error { return e.error }

// Fatal marks err as ending the task even when raised by a degradable stage.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return fatalError{err}
}

func isFatal(err error) bool {
	var fe fatalError
	return errors.As(err, &fe)
}
