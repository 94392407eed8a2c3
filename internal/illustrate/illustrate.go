// Package illustrate requests the article's images in parallel. Each
// request succeeds or fails on its own; zero successes is a valid outcome.
package illustrate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jackzampolin/popsci/internal/bounded"
	"github.com/jackzampolin/popsci/internal/failure"
	"github.com/jackzampolin/popsci/internal/metrics"
	"github.com/jackzampolin/popsci/internal/paper"
	"github.com/jackzampolin/popsci/internal/providers"
)

// ImagesDir is the task subdirectory images are written to.
const ImagesDir = "images"

// DefaultCount is the number of illustrations requested when unset.
const DefaultCount = 5

// Config configures an Illustrator.
type Config struct {
	Generator providers.ImageGenerator
	// Concurrency bounds in-flight requests. Zero means unbounded.
	Concurrency int
	// Timeout caps each request (default 120s).
	Timeout time.Duration
	// Size is passed to the provider, e.g. "1024x1024".
	Size   string
	Logger *slog.Logger
}

// Illustrator generates one image per prompt.
type Illustrator struct {
	gen     providers.ImageGenerator
	runner  bounded.Runner
	timeout time.Duration
	size    string
	logger  *slog.Logger
}

// New creates an Illustrator.
func New(cfg Config) *Illustrator {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	return &Illustrator{
		gen:     cfg.Generator,
		runner:  bounded.Pool(cfg.Concurrency),
		timeout: cfg.Timeout,
		size:    cfg.Size,
		logger:  cfg.Logger.With("component", "illustrate"),
	}
}

// WithRunner returns a copy of il that schedules requests on r instead of
// its own pool. A nil r returns il unchanged.
func (il *Illustrator) WithRunner(r bounded.Runner) *Illustrator {
	if r == nil {
		return il
	}
	cp := *il
	cp.runner = r
	return &cp
}

// Generate requests the first count prompts and marks the rest skipped.
// Images land in dir/images. Results are in prompt order. The returned
// error joins the per-item ImageRequestErrors and never means the batch
// as a whole failed.
func (il *Illustrator) Generate(ctx context.Context, prompts []paper.IllustrationPrompt, count int, dir string) ([]paper.Illustration, error) {
	if count < 0 {
		count = 0
	}
	results := make([]paper.Illustration, len(prompts))
	for i, p := range prompts {
		results[i] = paper.Illustration{PromptID: p.ID, Role: p.Role, Status: paper.IllustrationSkipped}
	}
	n := min(count, len(prompts))
	if n == 0 {
		return results, nil
	}

	if err := os.MkdirAll(filepath.Join(dir, ImagesDir), 0o755); err != nil {
		return results, failure.Wrap(failure.ImageRequest, "create images dir", err)
	}

	var (
		mu   sync.Mutex
		errs []error
	)
	il.runner.Run(ctx, n, func(ctx context.Context, i int) {
		p := prompts[i]
		file, err := il.one(ctx, p, dir)

		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			results[i].Status = paper.IllustrationFailed
			results[i].Error = err.Error()
			errs = append(errs, failure.Wrap(failure.ImageRequest, string(p.Role), err))
			il.logger.Warn("illustration failed", "role", p.Role, "error", err)
		} else {
			results[i].Status = paper.IllustrationGenerated
			results[i].File = file
			il.logger.Debug("illustration generated", "role", p.Role, "file", file)
		}
		metrics.Illustration(string(results[i].Status))
	})
	for i := n; i < len(results); i++ {
		metrics.Illustration(string(paper.IllustrationSkipped))
	}

	generated := 0
	for _, r := range results {
		if r.Status == paper.IllustrationGenerated {
			generated++
		}
	}
	il.logger.Info("illustrations finished", "requested", n, "generated", generated, "failed", n-generated, "skipped", len(prompts)-n)
	return results, errors.Join(errs...)
}

// one requests a single image and writes it to images/<role><ext>,
// returning the path relative to dir.
func (il *Illustrator) one(ctx context.Context, p paper.IllustrationPrompt, dir string) (string, error) {
	if il.gen == nil {
		return "", errors.New("no image generator configured")
	}
	policy := bounded.Policy{
		Timeout:  il.timeout,
		Attempts: 2,
		RetryIf:  failure.IsRateLimited,
	}
	res, err := bounded.Call(ctx, policy, func(ctx context.Context) (*providers.ImageResult, error) {
		return il.gen.GenerateImage(ctx, &providers.ImageRequest{Prompt: p.Prompt, Size: il.size})
	})
	if err != nil {
		return "", err
	}
	if len(res.Data) == 0 {
		return "", errors.New("empty image")
	}

	rel := filepath.Join(ImagesDir, string(p.Role)+res.Extension())
	if err := os.WriteFile(filepath.Join(dir, rel), res.Data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write image: %w", err)
	}
	return filepath.ToSlash(rel), nil
}
