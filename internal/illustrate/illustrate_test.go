package illustrate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jackzampolin/popsci/internal/failure"
	"github.com/jackzampolin/popsci/internal/paper"
	"github.com/jackzampolin/popsci/internal/providers"
)

var roles = []paper.Role{paper.RoleHero, paper.RoleIntro, paper.RoleMethod, paper.RoleComparison, paper.RoleConclusion}

func prompts() []paper.IllustrationPrompt {
	var ps []paper.IllustrationPrompt
	for i, r := range roles {
		ps = append(ps, paper.IllustrationPrompt{ID: string(r), Role: r, Prompt: fmt.Sprintf("p%d", i+1)})
	}
	return ps
}

func count(results []paper.Illustration) map[paper.IllustrationStatus]int {
	out := make(map[paper.IllustrationStatus]int)
	for _, r := range results {
		out[r.Status]++
	}
	return out
}

func TestGenerateIsolatesFailures(t *testing.T) {
	gen := providers.NewMockImage()
	gen.Fail = func(prompt string) error {
		if prompt == "p2" || prompt == "p4" {
			return errors.New("content policy")
		}
		return nil
	}
	dir := t.TempDir()

	results, err := New(Config{Generator: gen, Concurrency: 2}).Generate(context.Background(), prompts(), 5, dir)
	require.Error(t, err)
	assert.Equal(t, failure.ImageRequest, failure.KindOf(err))

	require.Len(t, results, 5)
	assert.Equal(t, map[paper.IllustrationStatus]int{
		paper.IllustrationGenerated: 3,
		paper.IllustrationFailed:    2,
	}, count(results))

	for i, r := range results {
		assert.Equal(t, roles[i], r.Role, "results keep prompt order")
		switch r.Status {
		case paper.IllustrationGenerated:
			assert.Equal(t, "images/"+string(r.Role)+".png", r.File)
			assert.FileExists(t, filepath.Join(dir, r.File))
		case paper.IllustrationFailed:
			assert.Empty(t, r.File)
			assert.Contains(t, r.Error, "content policy")
		}
	}
	assert.Equal(t, paper.IllustrationFailed, results[1].Status)
	assert.Equal(t, paper.IllustrationFailed, results[3].Status)
}

func TestGenerateSkipsBeyondCount(t *testing.T) {
	gen := providers.NewMockImage()
	results, err := New(Config{Generator: gen}).Generate(context.Background(), prompts(), 2, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, map[paper.IllustrationStatus]int{
		paper.IllustrationGenerated: 2,
		paper.IllustrationSkipped:   3,
	}, count(results))
	assert.Equal(t, int64(2), gen.RequestCount())
}

func TestGenerateZeroSuccessesIsValid(t *testing.T) {
	results, err := New(Config{}).Generate(context.Background(), prompts(), 5, t.TempDir())
	require.Error(t, err)
	assert.Equal(t, 5, count(results)[paper.IllustrationFailed])
}

func TestGenerateTimeout(t *testing.T) {
	gen := &providers.MockImage{Latency: time.Second}
	results, err := New(Config{Generator: gen, Timeout: 10 * time.Millisecond}).Generate(context.Background(), prompts()[:1], 1, t.TempDir())
	require.Error(t, err)
	assert.Equal(t, paper.IllustrationFailed, results[0].Status)
}

type gauge struct {
	inflight, peak atomic.Int32
}

func (g *gauge) Name() string { return "gauge" }

func (g *gauge) GenerateImage(ctx context.Context, req *providers.ImageRequest) (*providers.ImageResult, error) {
	n := g.inflight.Add(1)
	defer g.inflight.Add(-1)
	for {
		p := g.peak.Load()
		if n <= p || g.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(20 * time.Millisecond)
	return &providers.ImageResult{Data: []byte("png"), MIMEType: "image/png"}, nil
}

func TestGenerateRespectsConcurrency(t *testing.T) {
	g := &gauge{}
	dir := t.TempDir()
	results, err := New(Config{Generator: g, Concurrency: 2}).Generate(context.Background(), prompts(), 5, dir)
	require.NoError(t, err)
	assert.Equal(t, 5, count(results)[paper.IllustrationGenerated])
	assert.LessOrEqual(t, g.peak.Load(), int32(2))

	entries, err := os.ReadDir(filepath.Join(dir, ImagesDir))
	require.NoError(t, err)
	assert.Len(t, entries, 5)
}
