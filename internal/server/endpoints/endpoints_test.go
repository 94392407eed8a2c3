package endpoints

import (
	"testing"

	"github.com/jackzampolin/popsci/internal/task"
)

func TestArtifactName(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{"article.html", true},
		{"article.pdf", true},
		{"metadata.json", true},
		{"images/figure_01.png", true},
		{"", false},
		{"../secret", false},
		{"images/../../secret", false},
		{"/etc/passwd", false},
		{"images//x.png", false},
		{"images/", false},
		{"./article.html", false},
		{".env", false},
		{"images/.hidden", false},
		{"other/x.png", false},
		{"images/a/b.png", false},
		{`..\secret`, false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			_, ok := artifactName(tt.raw)
			if ok != tt.want {
				t.Errorf("artifactName(%q) ok = %v, want %v", tt.raw, ok, tt.want)
			}
		})
	}
}

func TestStatusResponseHidesPartialResult(t *testing.T) {
	tk := task.New(task.Request{URL: "https://arxiv.org/abs/2312.00752"})
	tk.Status = task.StatusRunning
	tk.Result = &task.Result{PaperTitle: "partial"}

	if resp := newStatusResponse(tk); resp.Result != nil {
		t.Error("running task must not expose a result")
	}

	tk.Status = task.StatusCompleted
	tk.Progress = 100
	if resp := newStatusResponse(tk); resp.Result == nil || resp.Result.PaperTitle != "partial" {
		t.Errorf("completed result = %+v", resp.Result)
	}
}

func TestEscapeArtifact(t *testing.T) {
	if got := escapeArtifact("images/fig 1.png"); got != "images/fig%201.png" {
		t.Errorf("escapeArtifact() = %q", got)
	}
}
