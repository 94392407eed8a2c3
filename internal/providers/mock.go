package providers

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const MockClientName = "mock"

// MockText is a TextGenerator for testing.
type MockText struct {
	// Configurable behavior
	Latency      time.Duration
	ShouldFail   bool
	FailAfter    int // Fail after N requests (0 = never)
	ResponseText string

	// Respond, when set, overrides ResponseText and the failure switches.
	Respond func(req *TextRequest) (string, error)

	requestCount atomic.Int64

	mu      sync.Mutex
	prompts []string
}

// NewMockText creates a mock text generator with sensible defaults.
func NewMockText() *MockText {
	return &MockText{ResponseText: "mock response"}
}

func (c *MockText) Name() string { return MockClientName }

// Generate returns the configured response.
func (c *MockText) Generate(ctx context.Context, req *TextRequest) (*TextResult, error) {
	start := time.Now()
	count := c.requestCount.Add(1)

	c.mu.Lock()
	c.prompts = append(c.prompts, req.Prompt)
	c.mu.Unlock()

	if err := sleep(ctx, c.Latency); err != nil {
		return nil, err
	}

	var content string
	switch {
	case c.Respond != nil:
		out, err := c.Respond(req)
		if err != nil {
			return nil, err
		}
		content = out
	case c.ShouldFail:
		return nil, fmt.Errorf("mock client configured to fail")
	case c.FailAfter > 0 && int(count) > c.FailAfter:
		return nil, fmt.Errorf("mock client failed after %d requests", c.FailAfter)
	default:
		content = c.ResponseText
	}

	return &TextResult{
		Content:          content,
		PromptTokens:     (len(req.System) + len(req.Prompt)) / 4,
		CompletionTokens: len(content) / 4,
		Provider:         MockClientName,
		ModelUsed:        req.Model,
		ExecutionTime:    time.Since(start),
	}, nil
}

// RequestCount returns the number of requests made.
func (c *MockText) RequestCount() int64 {
	return c.requestCount.Load()
}

// Prompts returns the prompts received so far, in arrival order.
func (c *MockText) Prompts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.prompts...)
}

// MockImage is an ImageGenerator for testing.
type MockImage struct {
	Latency time.Duration

	// Fail, when set, decides per prompt whether the request errors.
	Fail func(prompt string) error

	requestCount atomic.Int64
}

// NewMockImage creates a mock image generator returning a tiny PNG.
func NewMockImage() *MockImage {
	return &MockImage{}
}

func (p *MockImage) Name() string { return MockClientName }

// GenerateImage returns a fixed PNG unless Fail rejects the prompt.
func (p *MockImage) GenerateImage(ctx context.Context, req *ImageRequest) (*ImageResult, error) {
	start := time.Now()
	p.requestCount.Add(1)

	if err := sleep(ctx, p.Latency); err != nil {
		return nil, err
	}
	if p.Fail != nil {
		if err := p.Fail(req.Prompt); err != nil {
			return nil, err
		}
	}
	return &ImageResult{
		Data:          append([]byte(nil), mockPNG...),
		MIMEType:      "image/png",
		Provider:      MockClientName,
		ModelUsed:     req.Model,
		ExecutionTime: time.Since(start),
	}, nil
}

// RequestCount returns the number of requests made.
func (p *MockImage) RequestCount() int64 {
	return p.requestCount.Load()
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// mockPNG is a 1x1 transparent PNG.
var mockPNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0d, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

var (
	_ TextGenerator  = (*MockText)(nil)
	_ ImageGenerator = (*MockImage)(nil)
)
