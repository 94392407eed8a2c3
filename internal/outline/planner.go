// Package outline plans the popular-science article: its sections, their
// roles and the illustrations to request.
package outline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackzampolin/popsci/internal/bounded"
	"github.com/jackzampolin/popsci/internal/failure"
	"github.com/jackzampolin/popsci/internal/paper"
	"github.com/jackzampolin/popsci/internal/prompts"
	illustrationprompt "github.com/jackzampolin/popsci/internal/prompts/illustration"
	outlineprompt "github.com/jackzampolin/popsci/internal/prompts/outline"
	"github.com/jackzampolin/popsci/internal/providers"
)

const (
	maxSourceSections = 5
	maxExcerpt        = 500
	maxAbstract       = 1000
)

// Config configures a Planner.
type Config struct {
	Generator providers.TextGenerator
	Prompts   *prompts.Resolver

	Timeout     time.Duration // per call, default 120s
	Attempts    uint          // default 2
	RetryDelay  time.Duration
	Temperature float64 // default 0.7
	MaxTokens   int     // default 2000

	Logger *slog.Logger
}

// Planner turns extracted content into an article outline.
type Planner struct {
	gen     providers.TextGenerator
	prompts *prompts.Resolver
	policy  bounded.Policy
	temp    float64
	tokens  int
	logger  *slog.Logger
}

// New creates a Planner.
func New(cfg Config) *Planner {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Prompts == nil {
		cfg.Prompts = prompts.NewResolver(nil, cfg.Logger)
		RegisterPrompts(cfg.Prompts)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.Attempts == 0 {
		cfg.Attempts = 2
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.7
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2000
	}
	return &Planner{
		gen:     cfg.Generator,
		prompts: cfg.Prompts,
		policy:  bounded.Policy{Timeout: cfg.Timeout, Attempts: cfg.Attempts, Delay: cfg.RetryDelay},
		temp:    cfg.Temperature,
		tokens:  cfg.MaxTokens,
		logger:  cfg.Logger.With("component", "outline"),
	}
}

// RegisterPrompts registers every prompt the planner renders.
func RegisterPrompts(r *prompts.Resolver) {
	outlineprompt.RegisterPrompts(r)
	illustrationprompt.RegisterPrompts(r)
}

// Plan returns an outline for c. When the model fails or its output does
// not validate, Plan returns the default outline together with a
// PlanningError; the outline is never nil.
func (p *Planner) Plan(ctx context.Context, c *paper.Content) (*paper.Outline, error) {
	o, err := p.plan(ctx, c)
	if err != nil {
		p.logger.Warn("outline planning failed, using default", "error", err)
		o = Default(c)
		err = failure.Wrap(failure.Planning, "plan outline", err)
	} else {
		p.logger.Info("outline planned",
			"article_type", o.ArticleType,
			"sections", len(o.Sections),
			"analogy_theme", o.AnalogyTheme,
		)
	}
	o.Illustrations = p.illustrations(o, c)
	return o, err
}

type planResponse struct {
	ArticleType    string              `json:"article_type"`
	CoreInnovation string              `json:"core_innovation"`
	AnalogyTheme   string              `json:"analogy_theme"`
	Sections       []paper.SectionPlan `json:"sections"`
}

func (p *Planner) plan(ctx context.Context, c *paper.Content) (*paper.Outline, error) {
	if p.gen == nil {
		return nil, errors.New("no text generator configured")
	}

	system, err := p.prompts.Render(outlineprompt.SystemPromptKey, nil)
	if err != nil {
		return nil, err
	}
	user, err := p.prompts.Render(outlineprompt.UserPromptKey, promptData(c))
	if err != nil {
		return nil, err
	}

	raw, err := p.generate(ctx, system, user)
	if err != nil {
		return nil, err
	}
	parsed, err := parse(raw)
	if err != nil {
		p.logger.Debug("outline did not validate, asking for repair", "error", err)
		raw, err = p.generate(ctx, system, providers.RepairPrompt(outlineprompt.Schema, raw, err))
		if err != nil {
			return nil, err
		}
		if parsed, err = parse(raw); err != nil {
			return nil, err
		}
	}

	var resp planResponse
	if err := json.Unmarshal(parsed, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode outline: %w", err)
	}
	return normalize(resp, c), nil
}

func (p *Planner) generate(ctx context.Context, system, user string) (string, error) {
	res, err := bounded.Call(ctx, p.policy, func(ctx context.Context) (*providers.TextResult, error) {
		return p.gen.Generate(ctx, &providers.TextRequest{
			System:      system,
			Prompt:      user,
			Temperature: p.temp,
			MaxTokens:   p.tokens,
			JSON:        true,
		})
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate outline: %w", err)
	}
	return res.Content, nil
}

func parse(raw string) (json.RawMessage, error) {
	parsed, err := providers.ParseStructuredJSON(raw)
	if err != nil {
		return nil, err
	}
	if err := providers.ValidateJSON(outlineprompt.Schema, parsed); err != nil {
		return nil, err
	}
	return parsed, nil
}

func promptData(c *paper.Content) outlineprompt.UserPromptData {
	data := outlineprompt.UserPromptData{
		Title:    orDefault(c.Title, "Untitled paper"),
		Abstract: clip(c.Abstract, maxAbstract),
	}
	for i, s := range c.Sections {
		if i >= maxSourceSections {
			break
		}
		data.Sections = append(data.Sections, outlineprompt.SectionExcerpt{
			Title:   s.Title,
			Excerpt: clip(s.Body, maxExcerpt),
		})
	}
	return data
}

// normalize puts sections in article order, keeps the first section per
// role, and fills missing roles and fields from the default outline.
func normalize(resp planResponse, c *paper.Content) *paper.Outline {
	def := Default(c)
	byRole := make(map[paper.Role]paper.SectionPlan)
	for _, s := range resp.Sections {
		if _, seen := byRole[s.Role]; seen {
			continue
		}
		s.Title = strings.TrimSpace(s.Title)
		byRole[s.Role] = s
	}

	o := &paper.Outline{
		ArticleType:    orDefault(resp.ArticleType, def.ArticleType),
		CoreInnovation: orDefault(resp.CoreInnovation, def.CoreInnovation),
		AnalogyTheme:   orDefault(resp.AnalogyTheme, def.AnalogyTheme),
	}
	for _, d := range def.Sections {
		s, ok := byRole[d.Role]
		if !ok {
			o.Sections = append(o.Sections, d)
			continue
		}
		if s.Title == "" {
			s.Title = d.Title
		}
		if len(s.KeyPoints) == 0 {
			s.KeyPoints = d.KeyPoints
		}
		o.Sections = append(o.Sections, s)
	}
	return o
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return def
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && s[n]&0xC0 == 0x80 {
		n--
	}
	return s[:n]
}
