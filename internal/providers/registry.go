package providers

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Registry holds the configured text and image generators.
// It supports config-driven instantiation, hot-reload, and provides thread-safe access.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry

	defaultText  string
	defaultImage string

	logger *slog.Logger
}

type entry struct {
	cfg   ProviderConfig
	text  TextGenerator
	image ImageGenerator
}

// RegistryConfig defines the providers to instantiate from config.
// This mirrors the config.Config structure for provider setup.
type RegistryConfig struct {
	// Providers maps provider names to their config, API keys resolved.
	Providers map[string]ProviderConfig

	// Text and Image name the providers used by default.
	Text  string
	Image string
}

// ProviderConfig matches config.ProviderCfg with resolved API key.
type ProviderConfig struct {
	Type       string // "gemini", "openai", "mock"
	Model      string
	ImageModel string
	APIKey     string
	BaseURL    string
	RateLimit  int // Requests per minute
	Enabled    bool
}

// NewRegistry creates a new empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*entry),
		logger:  slog.Default(),
	}
}

// NewRegistryFromConfig creates a registry with providers based on configuration.
// Only enabled providers with valid API keys will be registered.
func NewRegistryFromConfig(cfg RegistryConfig) *Registry {
	r := NewRegistry()
	r.Reload(cfg)
	return r
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger *slog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// Register installs generators under name, replacing any existing entry.
// Either generator may be nil. The first registration becomes the default.
func (r *Registry) Register(name string, text TextGenerator, image ImageGenerator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = &entry{text: text, image: image}
	if text != nil && r.defaultText == "" {
		r.defaultText = name
	}
	if image != nil && r.defaultImage == "" {
		r.defaultImage = name
	}
	if r.logger != nil {
		r.logger.Info("registered provider", "name", name)
	}
}

// Text returns the default text generator.
func (r *Registry) Text() (TextGenerator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.textLocked(r.defaultText)
}

// TextNamed returns a text generator by name.
func (r *Registry) TextNamed(name string) (TextGenerator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.textLocked(name)
}

func (r *Registry) textLocked(name string) (TextGenerator, error) {
	e, ok := r.entries[name]
	if !ok || e.text == nil {
		return nil, fmt.Errorf("text provider not found: %q", name)
	}
	return e.text, nil
}

// Image returns the default image generator.
func (r *Registry) Image() (ImageGenerator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[r.defaultImage]
	if !ok || e.image == nil {
		return nil, fmt.Errorf("image provider not found: %q", r.defaultImage)
	}
	return e.image, nil
}

// List returns all registered provider names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Reload updates the registry based on new configuration.
// Providers that are no longer configured will be unregistered.
// Providers with changed settings will be re-registered.
func (r *Registry) Reload(cfg RegistryConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	want := make(map[string]bool)
	for name, provCfg := range cfg.Providers {
		if !provCfg.Enabled || (provCfg.APIKey == "" && provCfg.Type != MockClientName) {
			continue
		}
		want[name] = true

		existing, hasExisting := r.entries[name]
		if hasExisting && existing.cfg == provCfg {
			continue
		}
		e, err := createEntry(provCfg)
		if err != nil {
			if r.logger != nil {
				r.logger.Warn("failed to create provider", "name", name, "type", provCfg.Type, "error", err)
			}
			continue
		}
		r.entries[name] = e
		if r.logger != nil {
			if hasExisting {
				r.logger.Info("updated provider", "name", name, "type", provCfg.Type)
			} else {
				r.logger.Info("registered provider", "name", name, "type", provCfg.Type)
			}
		}
	}

	// Remove providers that are no longer configured
	for name := range r.entries {
		if !want[name] {
			delete(r.entries, name)
			if r.logger != nil {
				r.logger.Info("unregistered provider", "name", name)
			}
		}
	}

	r.defaultText = cfg.Text
	r.defaultImage = cfg.Image
}

// createEntry builds rate-limited generators for one provider config.
func createEntry(cfg ProviderConfig) (*entry, error) {
	limiter := NewRateLimiter(cfg.RateLimit)
	e := &entry{cfg: cfg}

	switch cfg.Type {
	case GeminiName:
		c, err := NewGeminiClient(context.Background(), GeminiConfig{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			ImageModel: cfg.ImageModel,
		})
		if err != nil {
			return nil, err
		}
		e.text, e.image = WithTextLimit(c, limiter), WithImageLimit(c, limiter)
	case OpenAIName:
		c := NewOpenAIClient(OpenAIConfig{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			ImageModel: cfg.ImageModel,
		})
		e.text, e.image = WithTextLimit(c, limiter), WithImageLimit(c, limiter)
	case MockClientName:
		e.text, e.image = NewMockText(), NewMockImage()
	default:
		return nil, fmt.Errorf("unknown provider type %q", cfg.Type)
	}
	return e, nil
}

// DefaultText returns a TextGenerator that looks up the default text
// provider on every call, so a Reload applies to the next request.
func (r *Registry) DefaultText() TextGenerator { return defaultText{r} }

// DefaultImage is the image counterpart of DefaultText.
func (r *Registry) DefaultImage() ImageGenerator { return defaultImage{r} }

type defaultText struct{ r *Registry }

func (d defaultText) Name() string {
	d.r.mu.RLock()
	defer d.r.mu.RUnlock()
	return d.r.defaultText
}

func (d defaultText) Generate(ctx context.Context, req *TextRequest) (*TextResult, error) {
	g, err := d.r.Text()
	if err != nil {
		return nil, err
	}
	return g.Generate(ctx, req)
}

type defaultImage struct{ r *Registry }

func (d defaultImage) Name() string {
	d.r.mu.RLock()
	defer d.r.mu.RUnlock()
	return d.r.defaultImage
}

func (d defaultImage) GenerateImage(ctx context.Context, req *ImageRequest) (*ImageResult, error) {
	g, err := d.r.Image()
	if err != nil {
		return nil, err
	}
	return g.GenerateImage(ctx, req)
}
