// Package task holds the task state machine and the registry that maps task
// ids to immutable snapshots.
package task

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle state of a task.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Stage names one step of the pipeline.
type Stage string

const (
	StageAcquire        Stage = "acquire"
	StageExtract        Stage = "extract"
	StagePlan           Stage = "plan"
	StageGenerateText   Stage = "generate-text"
	StageGenerateImages Stage = "generate-images"
	StageRecommend      Stage = "recommend"
	StageRenderExport   Stage = "render-export"
)

// Request is what a client submitted.
type Request struct {
	URL string `json:"url"`
	// IllustrationCount is nil when the client left it to the server.
	IllustrationCount *int   `json:"illustration_count,omitempty"`
	Email             string `json:"email,omitempty"`
}

// Count returns a pointer to n, for setting IllustrationCount.
func Count(n int) *int { return &n }

func (r Request) clone() Request {
	if r.IllustrationCount != nil {
		r.IllustrationCount = Count(*r.IllustrationCount)
	}
	return r
}

// Result lists the produced artifacts. Link fields are nil when the stage
// that would have produced them degraded.
type Result struct {
	PaperTitle          string   `json:"paper_title"`
	HTMLURL             *string  `json:"html_url"`
	PDFURL              *string  `json:"pdf_url"`
	EPUBURL             *string  `json:"epub_url"`
	MarkdownURL         *string  `json:"markdown_url"`
	IllustrationCount   int      `json:"illustration_count"`
	IllustrationsFailed int      `json:"illustrations_failed"`
	RecommendationTier  string   `json:"recommendation_tier,omitempty"`
	RecommendationCount int      `json:"recommendation_count"`
	ExportTier          string   `json:"export_tier,omitempty"`
	Degradations        []string `json:"degradations"`
}

// Clone returns a deep copy.
func (r *Result) Clone() *Result {
	if r == nil {
		return nil
	}
	c := *r
	c.HTMLURL = cloneStr(r.HTMLURL)
	c.PDFURL = cloneStr(r.PDFURL)
	c.EPUBURL = cloneStr(r.EPUBURL)
	c.MarkdownURL = cloneStr(r.MarkdownURL)
	c.Degradations = slices.Clone(r.Degradations)
	if c.Degradations == nil {
		c.Degradations = []string{}
	}
	return &c
}

// Failure is the single top-level error reported by a failed task.
type Failure struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Task is an immutable snapshot of one submission's state.
type Task struct {
	ID           string    `json:"id"`
	Status       Status    `json:"status"`
	Progress     int       `json:"progress"`
	CurrentStage Stage     `json:"current_stage,omitempty"`
	Request      Request   `json:"request"`
	Result       *Result   `json:"result,omitempty"`
	Error        *Failure  `json:"error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// New creates a queued task with a fresh random id.
func New(req Request) *Task {
	now := time.Now().UTC()
	return &Task{
		ID:        uuid.New().String(),
		Status:    StatusQueued,
		Request:   req.clone(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy.
func (t *Task) Clone() *Task {
	c := *t
	c.Request = t.Request.clone()
	c.Result = t.Result.Clone()
	if t.Error != nil {
		e := *t.Error
		c.Error = &e
	}
	return &c
}

// Update is one stage's worth of change. Zero fields are left untouched.
type Update struct {
	Status   Status
	Stage    Stage
	Progress int
	Result   *Result
	Failure  *Failure
}

var (
	// ErrNotFound is returned for unknown task ids.
	ErrNotFound = errors.New("task not found")
	// ErrExists is returned when creating a task whose id is taken.
	ErrExists = errors.New("task already exists")
	// ErrInvalidTransition is returned when an update breaks the state machine.
	ErrInvalidTransition = errors.New("invalid task transition")
)

// Apply validates u against t and returns the resulting snapshot.
// t itself is never modified.
func (t *Task) Apply(u Update, now time.Time) (*Task, error) {
	if t.Status.Terminal() {
		return nil, fmt.Errorf("%w: task %s is %s", ErrInvalidTransition, t.ID, t.Status)
	}
	if u.Progress != 0 && u.Progress < t.Progress {
		return nil, fmt.Errorf("%w: progress %d -> %d", ErrInvalidTransition, t.Progress, u.Progress)
	}
	if u.Progress < 0 || u.Progress > 100 {
		return nil, fmt.Errorf("%w: progress %d out of range", ErrInvalidTransition, u.Progress)
	}

	next := t.Clone()
	if u.Status != "" && u.Status != t.Status {
		if !allowed(t.Status, u.Status) {
			return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, u.Status)
		}
		next.Status = u.Status
	}

	switch next.Status {
	case StatusCompleted:
		progress := max(u.Progress, t.Progress)
		if progress != 100 {
			return nil, fmt.Errorf("%w: completed with progress %d", ErrInvalidTransition, progress)
		}
		if u.Result == nil {
			return nil, fmt.Errorf("%w: completed without result", ErrInvalidTransition)
		}
	case StatusFailed:
		if u.Failure == nil {
			return nil, fmt.Errorf("%w: failed without error", ErrInvalidTransition)
		}
		if u.Progress > t.Progress {
			return nil, fmt.Errorf("%w: failure cannot advance progress", ErrInvalidTransition)
		}
	default:
		if u.Progress == 100 {
			return nil, fmt.Errorf("%w: progress 100 before completion", ErrInvalidTransition)
		}
		if u.Result != nil || u.Failure != nil {
			return nil, fmt.Errorf("%w: result or error on non-terminal task", ErrInvalidTransition)
		}
	}

	if u.Progress > next.Progress {
		next.Progress = u.Progress
	}
	if u.Stage != "" {
		next.CurrentStage = u.Stage
	}
	if u.Result != nil {
		next.Result = u.Result.Clone()
	}
	if u.Failure != nil {
		f := *u.Failure
		next.Error = &f
	}
	next.UpdatedAt = now.UTC()
	return next, nil
}

func allowed(from, to Status) bool {
	switch from {
	case StatusQueued:
		return to == StatusRunning
	case StatusRunning:
		return to == StatusCompleted || to == StatusFailed
	}
	return false
}

func cloneStr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
