package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"
)

const (
	GeminiName              = "gemini"
	GeminiDefaultModel      = "gemini-2.5-flash"
	GeminiDefaultImageModel = "gemini-2.5-flash-image"
)

// GeminiConfig configures a Gemini API client.
type GeminiConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	ImageModel string
	HTTPClient *http.Client
}

// GeminiClient generates text and images with the Gemini API.
type GeminiClient struct {
	client     *genai.Client
	model      string
	imageModel string
}

// NewGeminiClient creates a Gemini client using the official SDK.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	if cfg.Model == "" {
		cfg.Model = GeminiDefaultModel
	}
	if cfg.ImageModel == "" {
		cfg.ImageModel = GeminiDefaultImageModel
	}

	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: cfg.BaseURL,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	return &GeminiClient{client: c, model: cfg.Model, imageModel: cfg.ImageModel}, nil
}

func (g *GeminiClient) Name() string { return GeminiName }

// Generate sends one GenerateContent request.
func (g *GeminiClient) Generate(ctx context.Context, req *TextRequest) (*TextResult, error) {
	start := time.Now()
	model := modelOrDefault(req.Model, g.model)

	cfg := &genai.GenerateContentConfig{}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.Temperature > 0 {
		t := float32(req.Temperature)
		cfg.Temperature = &t
	}
	if req.System != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}
	if req.JSON {
		cfg.ResponseMIMEType = "application/json"
	}

	resp, err := g.client.Models.GenerateContent(ctx, model, userContent(req.Prompt), cfg)
	if err != nil {
		return nil, mapGeminiError(err)
	}

	var text strings.Builder
	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, p := range resp.Candidates[0].Content.Parts {
			text.WriteString(p.Text)
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		return nil, errors.New("gemini: empty completion")
	}

	res := &TextResult{
		Content:       text.String(),
		Provider:      GeminiName,
		ModelUsed:     model,
		ExecutionTime: time.Since(start),
	}
	if resp.UsageMetadata != nil {
		res.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		res.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return res, nil
}

// GenerateImage asks an image-capable Gemini model for one picture.
func (g *GeminiClient) GenerateImage(ctx context.Context, req *ImageRequest) (*ImageResult, error) {
	start := time.Now()
	model := modelOrDefault(req.Model, g.imageModel)

	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE", "TEXT"},
	}
	resp, err := g.client.Models.GenerateContent(ctx, model, userContent(req.Prompt), cfg)
	if err != nil {
		return nil, mapGeminiError(err)
	}

	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, p := range cand.Content.Parts {
			if p.InlineData != nil && len(p.InlineData.Data) > 0 {
				return &ImageResult{
					Data:          p.InlineData.Data,
					MIMEType:      p.InlineData.MIMEType,
					Provider:      GeminiName,
					ModelUsed:     model,
					ExecutionTime: time.Since(start),
				}, nil
			}
		}
	}
	return nil, errors.New("gemini: response contained no image")
}

func userContent(prompt string) []*genai.Content {
	return []*genai.Content{{
		Role:  genai.RoleUser,
		Parts: []*genai.Part{{Text: prompt}},
	}}
}

// mapGeminiError detects quota exhaustion from the error text; the SDK
// does not expose response headers on failure.
func mapGeminiError(err error) error {
	msg := err.Error()
	if strings.Contains(msg, "429") || strings.Contains(msg, "RESOURCE_EXHAUSTED") {
		return rateLimited(GeminiName, "gemini: "+msg, 0)
	}
	return fmt.Errorf("gemini: %w", err)
}

var (
	_ TextGenerator  = (*GeminiClient)(nil)
	_ ImageGenerator = (*GeminiClient)(nil)
)
