package providers

import (
	"context"
	"testing"
)

func TestRegistryReload(t *testing.T) {
	r := NewRegistryFromConfig(RegistryConfig{
		Providers: map[string]ProviderConfig{
			"local":    {Type: MockClientName, Enabled: true},
			"disabled": {Type: MockClientName, Enabled: false},
			"nokey":    {Type: OpenAIName, Enabled: true},
		},
		Text:  "local",
		Image: "local",
	})

	if got := r.List(); len(got) != 1 || got[0] != "local" {
		t.Fatalf("List() = %v, want [local]", got)
	}
	if _, err := r.Text(); err != nil {
		t.Errorf("Text() error = %v", err)
	}
	if _, err := r.Image(); err != nil {
		t.Errorf("Image() error = %v", err)
	}

	first, _ := r.TextNamed("local")

	// Unchanged config keeps the same instance.
	r.Reload(RegistryConfig{
		Providers: map[string]ProviderConfig{"local": {Type: MockClientName, Enabled: true}},
		Text:      "local",
		Image:     "local",
	})
	second, _ := r.TextNamed("local")
	if first != second {
		t.Error("unchanged provider was recreated")
	}

	// Removed config unregisters.
	r.Reload(RegistryConfig{})
	if len(r.List()) != 0 {
		t.Errorf("List() after empty reload = %v", r.List())
	}
	if _, err := r.Text(); err == nil {
		t.Error("Text() should fail with no providers")
	}
}

func TestRegistryOpenAIWithKey(t *testing.T) {
	r := NewRegistryFromConfig(RegistryConfig{
		Providers: map[string]ProviderConfig{
			"oa": {Type: OpenAIName, APIKey: "sk-test", Enabled: true, RateLimit: 30},
		},
		Text: "oa",
	})
	g, err := r.Text()
	if err != nil {
		t.Fatalf("Text() error = %v", err)
	}
	if g.Name() != OpenAIName {
		t.Errorf("Name() = %q", g.Name())
	}
}

func TestRegistryUnknownType(t *testing.T) {
	r := NewRegistryFromConfig(RegistryConfig{
		Providers: map[string]ProviderConfig{"x": {Type: "nope", APIKey: "k", Enabled: true}},
	})
	if len(r.List()) != 0 {
		t.Errorf("unknown type registered: %v", r.List())
	}
}

func TestRegistryRegister(t *testing.T) {
	r := NewRegistry()
	r.Register("m", NewMockText(), nil)
	if _, err := r.Text(); err != nil {
		t.Errorf("Text() error = %v", err)
	}
	if _, err := r.Image(); err == nil {
		t.Error("Image() should fail when no image generator registered")
	}
}

func TestRegistryDefaultFollowsReload(t *testing.T) {
	a, b := NewMockText(), NewMockText()
	a.ResponseText, b.ResponseText = "from a", "from b"

	r := NewRegistry()
	r.Register("a", a, nil)
	r.Register("b", b, nil)

	gen := r.DefaultText()
	if gen.Name() != "a" {
		t.Fatalf("Name() = %q, want a", gen.Name())
	}
	res, err := gen.Generate(context.Background(), &TextRequest{Prompt: "hi"})
	if err != nil || res.Content != "from a" {
		t.Fatalf("Generate() = %v, %v", res, err)
	}

	r.mu.Lock()
	r.defaultText = "b"
	r.mu.Unlock()

	res, err = gen.Generate(context.Background(), &TextRequest{Prompt: "hi"})
	if err != nil || res.Content != "from b" {
		t.Fatalf("after switch Generate() = %v, %v", res, err)
	}

	if _, err := r.DefaultImage().GenerateImage(context.Background(), &ImageRequest{Prompt: "x"}); err == nil {
		t.Error("DefaultImage() should fail when no image provider is registered")
	}
}
