package task

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestJanitor_Sweep(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRegistry(nil)

	old := time.Now().Add(-48 * time.Hour)
	r.now = func() time.Time { return old }

	finished := New(Request{URL: "done"})
	failed := New(Request{URL: "bad"})
	running := New(Request{URL: "busy"})
	for _, tk := range []*Task{finished, failed, running} {
		if err := r.Create(ctx, tk); err != nil {
			t.Fatal(err)
		}
		if _, err := r.UpdateStage(ctx, tk.ID, Update{Status: StatusRunning, Stage: StageAcquire}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := r.UpdateStage(ctx, finished.ID, Update{Status: StatusCompleted, Progress: 100, Result: &Result{}}); err != nil {
		t.Fatal(err)
	}
	if _, err := r.UpdateStage(ctx, failed.ID, Update{Status: StatusFailed, Failure: &Failure{Kind: "AcquisitionError"}}); err != nil {
		t.Fatal(err)
	}

	var removed []string
	j := NewJanitor(r, JanitorConfig{
		MaxAge: 24 * time.Hour,
		RemoveArtifacts: func(id string) error {
			removed = append(removed, id)
			return nil
		},
	})

	n, err := j.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if n != 2 || len(removed) != 2 {
		t.Errorf("Sweep() removed %d tasks (%d artifact dirs), want 2", n, len(removed))
	}
	if _, err := r.Get(ctx, running.ID); err != nil {
		t.Errorf("running task should survive: %v", err)
	}
	if _, err := r.Get(ctx, finished.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expired task still present: %v", err)
	}
}

func TestJanitor_Disabled(t *testing.T) {
	r := NewMemoryRegistry(nil)
	j := NewJanitor(r, JanitorConfig{})
	if n, err := j.Sweep(context.Background()); n != 0 || err != nil {
		t.Errorf("Sweep() = %d, %v; want 0, nil", n, err)
	}
}
