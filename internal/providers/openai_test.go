package providers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jackzampolin/popsci/internal/failure"
)

func newOpenAITestServer(t *testing.T, handler http.HandlerFunc) *OpenAIClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOpenAIClient(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1/", Model: "gpt-test"})
}

func TestOpenAIGenerate(t *testing.T) {
	var gotBody map[string]any
	c := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id":"chatcmpl-1","object":"chat.completion","created":1,"model":"gpt-test",
			"choices":[{"index":0,"message":{"role":"assistant","content":"A friendly article."},"finish_reason":"stop"}],
			"usage":{"prompt_tokens":12,"completion_tokens":4,"total_tokens":16}
		}`))
	})

	res, err := c.Generate(context.Background(), &TextRequest{System: "be kind", Prompt: "write", MaxTokens: 100})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if res.Content != "A friendly article." {
		t.Errorf("Content = %q", res.Content)
	}
	if res.PromptTokens != 12 || res.CompletionTokens != 4 {
		t.Errorf("tokens = %d/%d", res.PromptTokens, res.CompletionTokens)
	}
	if res.ModelUsed != "gpt-test" {
		t.Errorf("ModelUsed = %q", res.ModelUsed)
	}
	msgs, _ := gotBody["messages"].([]any)
	if len(msgs) != 2 {
		t.Errorf("messages sent = %d, want 2 (system + user)", len(msgs))
	}
}

func TestOpenAIGenerate_RateLimited(t *testing.T) {
	c := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "2")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit_exceeded"}}`))
	})

	_, err := c.Generate(context.Background(), &TextRequest{Prompt: "x"})
	if err == nil {
		t.Fatal("expected error")
	}
	rle, ok := IsRateLimitError(err)
	if !ok {
		t.Fatalf("error %v is not a RateLimitError", err)
	}
	if rle.RetryAfter != 2*time.Second {
		t.Errorf("RetryAfter = %v, want 2s", rle.RetryAfter)
	}
	if !failure.IsRateLimited(err) {
		t.Error("failure.IsRateLimited = false")
	}
}

func TestOpenAIGenerate_ServerError(t *testing.T) {
	c := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad model"}}`))
	})

	_, err := c.Generate(context.Background(), &TextRequest{Prompt: "x"})
	if err == nil {
		t.Fatal("expected error")
	}
	if _, ok := IsRateLimitError(err); ok {
		t.Error("400 classified as rate limit")
	}
}

func TestOpenAIGenerateImage(t *testing.T) {
	c := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/images/generations") {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"created": 1,
			"data":    []map[string]any{{"b64_json": base64.StdEncoding.EncodeToString(mockPNG)}},
		})
	})

	res, err := c.GenerateImage(context.Background(), &ImageRequest{Prompt: "a robot reading"})
	if err != nil {
		t.Fatalf("GenerateImage() error = %v", err)
	}
	if res.MIMEType != "image/png" {
		t.Errorf("MIMEType = %q", res.MIMEType)
	}
	if len(res.Data) != len(mockPNG) {
		t.Errorf("len(Data) = %d, want %d", len(res.Data), len(mockPNG))
	}
}
