package task

import (
	"errors"
	"testing"
	"time"
)

func strp(s string) *string { return &s }

func TestNew(t *testing.T) {
	a := New(Request{URL: "https://arxiv.org/abs/2312.00752"})
	b := New(Request{URL: "https://arxiv.org/abs/2312.00752"})

	if a.ID == "" || a.ID == b.ID {
		t.Fatalf("expected distinct non-empty ids, got %q and %q", a.ID, b.ID)
	}
	if a.Status != StatusQueued || a.Progress != 0 {
		t.Errorf("new task = %s/%d, want queued/0", a.Status, a.Progress)
	}
}

func TestApply(t *testing.T) {
	now := time.Now()
	running := &Task{ID: "t1", Status: StatusRunning, Progress: 30}
	queued := &Task{ID: "t1", Status: StatusQueued}
	done := &Task{ID: "t1", Status: StatusCompleted, Progress: 100}

	tests := []struct {
		name    string
		from    *Task
		update  Update
		wantErr bool
	}{
		{"claim", queued, Update{Status: StatusRunning, Stage: StageAcquire}, false},
		{"advance", running, Update{Stage: StagePlan, Progress: 40}, false},
		{"stage only", running, Update{Stage: StagePlan}, false},
		{"regress", running, Update{Progress: 20}, true},
		{"hundred before completion", running, Update{Progress: 100}, true},
		{"complete", running, Update{Status: StatusCompleted, Progress: 100, Result: &Result{HTMLURL: strp("/x")}}, false},
		{"complete without result", running, Update{Status: StatusCompleted, Progress: 100}, true},
		{"complete short of 100", running, Update{Status: StatusCompleted, Progress: 90, Result: &Result{}}, true},
		{"fail", running, Update{Status: StatusFailed, Failure: &Failure{Kind: "ExtractionError"}}, false},
		{"fail without error", running, Update{Status: StatusFailed}, true},
		{"fail advancing progress", running, Update{Status: StatusFailed, Progress: 50, Failure: &Failure{}}, true},
		{"queued to completed", queued, Update{Status: StatusCompleted, Progress: 100, Result: &Result{}}, true},
		{"leave terminal", done, Update{Status: StatusRunning}, true},
		{"touch terminal", done, Update{Stage: StagePlan}, true},
		{"result while running", running, Update{Result: &Result{}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := *tt.from
			next, err := tt.from.Apply(tt.update, now)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidTransition) {
					t.Fatalf("Apply() error = %v, want ErrInvalidTransition", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Apply() error = %v", err)
			}
			if next.Progress < before.Progress {
				t.Errorf("progress regressed %d -> %d", before.Progress, next.Progress)
			}
			if tt.from.Status != before.Status || tt.from.Progress != before.Progress {
				t.Error("Apply mutated the receiver")
			}
		})
	}
}

func TestResultClone(t *testing.T) {
	r := &Result{HTMLURL: strp("/a.html"), Degradations: []string{"x"}}
	c := r.Clone()
	*c.HTMLURL = "/b.html"
	c.Degradations[0] = "y"

	if *r.HTMLURL != "/a.html" || r.Degradations[0] != "x" {
		t.Error("Clone shares memory with the original")
	}
	if (&Result{}).Clone().Degradations == nil {
		t.Error("cloned degradations should never be nil")
	}
}
