package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestClient(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("POST /api/paper/interpret", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body["url"] == "" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"url is required"}`))
			return
		}
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"task_id":"abc"}`))
	})
	mux.HandleFunc("DELETE /api/paper/tasks/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /api/paper/download/abc/article.html", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html></html>"))
	})
	mux.HandleFunc("GET /broken", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "plain failure", http.StatusInternalServerError)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	c := NewClient(ts.URL)
	ctx := context.Background()

	var health map[string]string
	if err := c.Get(ctx, "/api/health", &health); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if health["status"] != "ok" {
		t.Errorf("status = %q, want ok", health["status"])
	}

	var created struct {
		TaskID string `json:"task_id"`
	}
	if err := c.Post(ctx, "/api/paper/interpret", map[string]string{"url": "arXiv:2312.00752"}, &created); err != nil {
		t.Fatalf("Post() error = %v", err)
	}
	if created.TaskID != "abc" {
		t.Errorf("task_id = %q, want abc", created.TaskID)
	}

	err := c.Post(ctx, "/api/paper/interpret", map[string]string{"url": ""}, nil)
	if err == nil || err.Error() != "server error (400): url is required" {
		t.Errorf("Post() error = %v, want decoded server error", err)
	}

	if err := c.Delete(ctx, "/api/paper/tasks/abc"); err != nil {
		t.Errorf("Delete() error = %v", err)
	}

	var buf bytes.Buffer
	n, err := c.Download(ctx, "/api/paper/download/abc/article.html", &buf)
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if n != int64(buf.Len()) || buf.String() != "<html></html>" {
		t.Errorf("Download() = %d %q", n, buf.String())
	}

	if _, err := c.Download(ctx, "/broken", &buf); err == nil || !strings.Contains(err.Error(), "plain failure") {
		t.Errorf("Download() error = %v, want raw body in error", err)
	}
}

func TestOutputTo(t *testing.T) {
	data := map[string]any{"task_id": "abc", "progress": 40}

	var js bytes.Buffer
	if err := OutputTo(&js, OutputFormatJSON, data); err != nil {
		t.Fatalf("OutputTo(json) error = %v", err)
	}
	if !strings.Contains(js.String(), `"task_id": "abc"`) {
		t.Errorf("json output = %s", js.String())
	}

	var ym bytes.Buffer
	if err := OutputTo(&ym, OutputFormatYAML, data); err != nil {
		t.Fatalf("OutputTo(yaml) error = %v", err)
	}
	if !strings.Contains(ym.String(), "task_id: abc") || !strings.Contains(ym.String(), "progress: 40") {
		t.Errorf("yaml output = %s", ym.String())
	}

	if err := OutputTo(&ym, OutputFormat("xml"), data); err == nil {
		t.Error("OutputTo(xml) should fail")
	}
}

func TestSetOutputFormat(t *testing.T) {
	defer SetOutputFormat("yaml")

	SetOutputFormat("json")
	if GetOutputFormat() != OutputFormatJSON {
		t.Errorf("GetOutputFormat() = %s, want json", GetOutputFormat())
	}
	SetOutputFormat("bogus")
	if GetOutputFormat() != DefaultOutput {
		t.Errorf("GetOutputFormat() = %s, want default", GetOutputFormat())
	}
}
