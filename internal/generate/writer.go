// Package generate writes the article text. Planned sections are grouped
// into token-bounded chunks, each chunk is one model call, and the outputs
// are assembled in chunk order.
package generate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackzampolin/popsci/internal/bounded"
	"github.com/jackzampolin/popsci/internal/failure"
	"github.com/jackzampolin/popsci/internal/metrics"
	"github.com/jackzampolin/popsci/internal/paper"
	"github.com/jackzampolin/popsci/internal/prompts"
	writerprompt "github.com/jackzampolin/popsci/internal/prompts/writer"
	"github.com/jackzampolin/popsci/internal/providers"
)

const tokensPerSection = 1200

// Config configures a Writer.
type Config struct {
	Generator providers.TextGenerator
	Prompts   *prompts.Resolver
	// Counter estimates tokens (default: the character heuristic).
	Counter Counter

	Budget      int           // tokens per chunk, default 4000
	Attempts    uint          // per chunk, default 3
	Timeout     time.Duration // per attempt, default 120s
	RetryDelay  time.Duration // backoff base, default 1s
	Temperature float64       // default 0.7

	Logger *slog.Logger
}

// Writer generates article sections from an outline.
type Writer struct {
	gen     providers.TextGenerator
	prompts *prompts.Resolver
	counter Counter
	budget  int
	policy  bounded.Policy
	temp    float64
	logger  *slog.Logger
}

// New creates a Writer.
func New(cfg Config) *Writer {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Prompts == nil {
		cfg.Prompts = prompts.NewResolver(nil, cfg.Logger)
		writerprompt.RegisterPrompts(cfg.Prompts)
	}
	if cfg.Counter == nil {
		cfg.Counter = Heuristic{}
	}
	if cfg.Budget <= 0 {
		cfg.Budget = DefaultBudget
	}
	if cfg.Attempts == 0 {
		cfg.Attempts = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.7
	}
	return &Writer{
		gen:     cfg.Generator,
		prompts: cfg.Prompts,
		counter: cfg.Counter,
		budget:  cfg.Budget,
		policy: bounded.Policy{
			Timeout:  cfg.Timeout,
			Attempts: cfg.Attempts,
			Delay:    cfg.RetryDelay,
			RetryIf: func(err error) bool {
				return !errors.Is(err, context.Canceled)
			},
		},
		temp:   cfg.Temperature,
		logger: cfg.Logger.With("component", "generate"),
	}
}

// Result is the generated article text.
type Result struct {
	// Sections starts with the paper_info section, followed by one
	// section per planned role in outline order.
	Sections   []paper.ArticleSection
	Chunks     []Chunk
	KeyNumbers []paper.KeyNumber
}

// Write generates every planned section. A chunk that exhausts its
// retries is replaced by default text and reported as a
// GenerationChunkError in the returned error. If the system prompt cannot
// be rendered no chunk is sent and every section gets default text. The
// result is complete either way.
func (w *Writer) Write(ctx context.Context, c *paper.Content, o *paper.Outline) (*Result, error) {
	numbers := KeyNumbers(c)
	planned := Split(briefs(c, o, numbers), w.budget, w.counter)
	w.logger.Info("generation planned", "sections", len(o.Sections), "chunks", len(planned), "budget", w.budget)

	texts := make(map[paper.Role]string, len(o.Sections))
	var errs []error
	run := planned
	system, err := w.prompts.Render(writerprompt.SystemPromptKey, nil)
	if err != nil {
		w.logger.Warn("system prompt failed to render, using default text", "error", err)
		errs = append(errs, failure.Wrap(failure.GenerationChunk, "render system prompt", err))
		run = nil
	}
	for _, ch := range run {
		out, err := w.chunk(ctx, system, c, o, ch)
		if err != nil {
			metrics.Chunk("placeholder")
			w.logger.Warn("chunk failed, using default text", "chunk", ch.Ordinal, "roles", ch.Roles, "error", err)
			errs = append(errs, failure.Wrap(failure.GenerationChunk, fmt.Sprintf("chunk %d", ch.Ordinal), err))
			continue
		}
		metrics.Chunk("ok")

		roles := make([]string, len(ch.Roles))
		for i, r := range ch.Roles {
			roles[i] = string(r)
		}
		parts := splitOutput(out, roles)
		for _, r := range ch.Roles {
			text := Clean(parts[string(r)])
			if text == "" {
				errs = append(errs, failure.Errorf(failure.GenerationChunk, fmt.Sprintf("chunk %d", ch.Ordinal), "section %s missing from output", r))
				continue
			}
			texts[r] = text
		}
	}

	res := &Result{
		Sections:   []paper.ArticleSection{PaperInfo(c)},
		Chunks:     planned,
		KeyNumbers: numbers,
	}
	for _, plan := range o.Sections {
		s := paper.ArticleSection{Role: plan.Role, Title: plan.Title, Body: texts[plan.Role]}
		if s.Body == "" {
			s.Body = defaultText(plan.Role, c, o, plan, numbers)
			s.Placeholder = true
		}
		if plan.Role == paper.RoleResults {
			s.KeyNumbers = numbers
		}
		res.Sections = append(res.Sections, s)
	}
	return res, errors.Join(errs...)
}

func (w *Writer) chunk(ctx context.Context, system string, c *paper.Content, o *paper.Outline, ch Chunk) (string, error) {
	if w.gen == nil {
		return "", errors.New("no text generator configured")
	}
	prompt, err := w.prompts.Render(writerprompt.ChunkPromptKey, writerprompt.ChunkPromptData{
		Title:          c.Title,
		CoreInnovation: o.CoreInnovation,
		AnalogyTheme:   o.AnalogyTheme,
		Sections:       ch.Briefs,
	})
	if err != nil {
		return "", err
	}

	policy := w.policy
	policy.OnRetry = func(n uint, err error) {
		w.logger.Debug("retrying chunk", "chunk", ch.Ordinal, "attempt", n+1, "error", err)
	}
	res, err := bounded.Call(ctx, policy, func(ctx context.Context) (*providers.TextResult, error) {
		return w.gen.Generate(ctx, &providers.TextRequest{
			System:      system,
			Prompt:      prompt,
			Temperature: w.temp,
			MaxTokens:   tokensPerSection * len(ch.Roles),
		})
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(res.Content) == "" {
		return "", errors.New("empty response")
	}
	return res.Content, nil
}
