package providers

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	OpenAIName              = "openai"
	OpenAIDefaultModel      = "gpt-4o-mini"
	OpenAIDefaultImageModel = "gpt-image-1"
)

// OpenAIConfig configures an OpenAI-compatible client.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	ImageModel string
	HTTPClient *http.Client
}

// OpenAIClient talks to the OpenAI chat and image APIs.
type OpenAIClient struct {
	client     openai.Client
	http       *http.Client
	model      string
	imageModel string
}

// NewOpenAIClient creates a client. Retries are left to the caller.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	if cfg.Model == "" {
		cfg.Model = OpenAIDefaultModel
	}
	if cfg.ImageModel == "" {
		cfg.ImageModel = OpenAIDefaultImageModel
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 5 * time.Minute}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(cfg.HTTPClient),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIClient{
		client:     openai.NewClient(opts...),
		http:       cfg.HTTPClient,
		model:      cfg.Model,
		imageModel: cfg.ImageModel,
	}
}

func (c *OpenAIClient) Name() string { return OpenAIName }

// Generate sends one chat completion.
func (c *OpenAIClient) Generate(ctx context.Context, req *TextRequest) (*TextResult, error) {
	start := time.Now()
	model := modelOrDefault(req.Model, c.model)

	var msgs []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		msgs = append(msgs, openai.SystemMessage(req.System))
	}
	msgs = append(msgs, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: msgs,
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, mapOpenAIError(err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return nil, errors.New("openai: empty completion")
	}

	return &TextResult{
		Content:          resp.Choices[0].Message.Content,
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		Provider:         OpenAIName,
		ModelUsed:        model,
		ExecutionTime:    time.Since(start),
	}, nil
}

// GenerateImage requests one image.
func (c *OpenAIClient) GenerateImage(ctx context.Context, req *ImageRequest) (*ImageResult, error) {
	start := time.Now()
	model := modelOrDefault(req.Model, c.imageModel)

	params := openai.ImageGenerateParams{
		Prompt: req.Prompt,
		Model:  openai.ImageModel(model),
		N:      openai.Int(1),
	}
	if req.Size != "" {
		params.Size = openai.ImageGenerateParamsSize(req.Size)
	}

	resp, err := c.client.Images.Generate(ctx, params)
	if err != nil {
		return nil, mapOpenAIError(err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("openai: no image returned")
	}

	img := resp.Data[0]
	var data []byte
	switch {
	case img.B64JSON != "":
		data, err = base64.StdEncoding.DecodeString(img.B64JSON)
		if err != nil {
			return nil, fmt.Errorf("openai: decode image: %w", err)
		}
	case img.URL != "":
		data, err = c.download(ctx, img.URL)
		if err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("openai: image has neither data nor url")
	}

	return &ImageResult{
		Data:          data,
		MIMEType:      http.DetectContentType(data),
		Provider:      OpenAIName,
		ModelUsed:     model,
		ExecutionTime: time.Since(start),
	}, nil
}

func (c *OpenAIClient) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai: fetch image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("openai: fetch image: status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// mapOpenAIError turns a 429 into a rate-limit error with the server's hint.
func mapOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
		var retryAfter time.Duration
		if apiErr.Response != nil {
			retryAfter = parseRetryAfter(apiErr.Response.Header.Get("Retry-After"))
		}
		return rateLimited(OpenAIName, "openai: rate limited", retryAfter)
	}
	return fmt.Errorf("openai: %w", err)
}

func modelOrDefault(model, def string) string {
	if strings.TrimSpace(model) != "" {
		return model
	}
	return def
}

var (
	_ TextGenerator  = (*OpenAIClient)(nil)
	_ ImageGenerator = (*OpenAIClient)(nil)
)
