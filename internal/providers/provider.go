package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jackzampolin/popsci/internal/failure"
)

// TextGenerator produces text from a prompt.
type TextGenerator interface {
	// Name returns the provider identifier (e.g., "gemini").
	Name() string

	// Generate sends one completion request.
	Generate(ctx context.Context, req *TextRequest) (*TextResult, error)
}

// ImageGenerator produces one image from a prompt.
type ImageGenerator interface {
	// Name returns the provider identifier.
	Name() string

	// GenerateImage sends one image request.
	GenerateImage(ctx context.Context, req *ImageRequest) (*ImageResult, error)
}

// TextRequest is a request to a text model.
type TextRequest struct {
	System string
	Prompt string

	// Model selection (uses client default if empty)
	Model string

	Temperature float64
	MaxTokens   int

	// JSON asks the provider for a JSON response where supported.
	JSON bool
}

// TextResult is the response from a text model.
type TextResult struct {
	Content string `json:"content"`

	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`

	Provider      string        `json:"provider"`
	ModelUsed     string        `json:"model_used"`
	ExecutionTime time.Duration `json:"execution_time"`
}

// ImageRequest is a request to an image model.
type ImageRequest struct {
	Prompt string
	Model  string
	Size   string // e.g. "1024x1024" (provider default if empty)
}

// ImageResult holds generated image bytes.
type ImageResult struct {
	Data          []byte        `json:"-"`
	MIMEType      string        `json:"mime_type"`
	Provider      string        `json:"provider"`
	ModelUsed     string        `json:"model_used"`
	ExecutionTime time.Duration `json:"execution_time"`
}

// Extension returns a file extension for the image MIME type.
func (r *ImageResult) Extension() string {
	switch strings.ToLower(r.MIMEType) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}

// RateLimitError is returned when a provider answers 429.
type RateLimitError struct {
	Message    string
	RetryAfter time.Duration
	StatusCode int
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s (retry after %s)", e.Message, e.RetryAfter)
	}
	return e.Message
}

// IsRateLimitError returns the RateLimitError in err's chain, if any.
func IsRateLimitError(err error) (*RateLimitError, bool) {
	var rle *RateLimitError
	if errors.As(err, &rle) {
		return rle, true
	}
	return nil, false
}

// rateLimited classifies a 429 so the bounded call layer can honor RetryAfter.
func rateLimited(provider, message string, retryAfter time.Duration) error {
	return failure.RateLimit(provider, retryAfter, &RateLimitError{
		Message:    message,
		RetryAfter: retryAfter,
		StatusCode: http.StatusTooManyRequests,
	})
}

// parseRetryAfter reads a Retry-After header given in seconds or as an HTTP date.
func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
