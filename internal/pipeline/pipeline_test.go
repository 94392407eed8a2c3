package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jackzampolin/popsci/internal/export"
	"github.com/jackzampolin/popsci/internal/extract"
	"github.com/jackzampolin/popsci/internal/failure"
	"github.com/jackzampolin/popsci/internal/fetch"
	"github.com/jackzampolin/popsci/internal/generate"
	"github.com/jackzampolin/popsci/internal/illustrate"
	"github.com/jackzampolin/popsci/internal/outline"
	"github.com/jackzampolin/popsci/internal/paper"
	"github.com/jackzampolin/popsci/internal/pdf/pdftest"
	"github.com/jackzampolin/popsci/internal/providers"
	"github.com/jackzampolin/popsci/internal/recommend"
	"github.com/jackzampolin/popsci/internal/task"
)

const paperFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>http://arxiv.org/abs/2312.00752v2</id>
    <published>2023-12-01T18:01:34Z</published>
    <title>Mamba: Linear-Time Sequence Modeling with Selective State Spaces</title>
    <summary>Foundation models are now powering most applications in deep learning.</summary>
    <author><name>Albert Gu</name></author>
    <author><name>Tri Dao</name></author>
  </entry>
</feed>`

const searchFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>http://arxiv.org/abs/2111.00396v3</id>
    <published>2021-10-31T12:00:00Z</published>
    <title>Efficiently Modeling Long Sequences with Structured State Spaces</title>
    <summary>A central goal of sequence modeling.</summary>
    <author><name>Albert Gu</name></author>
  </entry>
</feed>`

const outlineJSON = `{
  "article_type": "architecture",
  "core_innovation": "Selective state spaces that decide what to remember.",
  "analogy_theme": "a busy kitchen",
  "sections": [
    {"type": "hero", "title": "Mamba Remembers Selectively"},
    {"type": "problem", "title": "Attention Is Expensive"},
    {"type": "method", "title": "How It Works", "key_points": ["selection", "scan"]}
  ]
}`

var marker = regexp.MustCompile(`(?m)^=== ([a-z_]+) ===$`)

// respond plays the planner for JSON requests and the writer otherwise.
func respond(req *providers.TextRequest) (string, error) {
	if req.JSON {
		return outlineJSON, nil
	}
	var b strings.Builder
	for _, m := range marker.FindAllStringSubmatch(req.Prompt, -1) {
		fmt.Fprintf(&b, "=== %s ===\nA plain explanation for %s.\n\n", m[1], m[1])
	}
	return b.String(), nil
}

type world struct {
	srv  *httptest.Server
	root string
	reg  *recorder
	pdf  []byte
}

func newWorld(t *testing.T) *world {
	t.Helper()
	w := &world{
		root: t.TempDir(),
		reg:  &recorder{Registry: task.NewMemoryRegistry(nil)},
		pdf: pdftest.Build("Mamba", []string{
			"Mamba: Linear-Time Sequence Modeling",
			"Carnegie Mellon University",
			"Abstract",
			"We present Mamba, a selective state space model.",
			"1 Introduction",
			"Mamba is 5x faster than Transformers.",
			"References",
			"[1] Attention is all you need.",
		}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/query", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "application/atom+xml")
		if r.URL.Query().Get("id_list") != "" {
			fmt.Fprint(rw, paperFeed)
			return
		}
		fmt.Fprint(rw, searchFeed)
	})
	mux.HandleFunc("/pdf/", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "application/pdf")
		rw.Write(w.pdf)
	})
	mux.HandleFunc("/s2/", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusTooManyRequests)
	})
	w.srv = httptest.NewServer(mux)
	t.Cleanup(w.srv.Close)
	return w
}

func (w *world) services(converters ...export.Converter) Services {
	text := &providers.MockText{Respond: respond}
	return Services{
		Fetcher: fetch.New(fetch.Config{
			Endpoints: fetch.Endpoints{
				ArXivAPI:        w.srv.URL + "/api/query",
				ArXivPDF:        w.srv.URL + "/pdf/",
				Unpaywall:       w.srv.URL + "/unpaywall/",
				OpenReview:      w.srv.URL + "/or",
				OpenReviewAPI:   w.srv.URL + "/or",
				SemanticScholar: w.srv.URL + "/s2/graph/v1",
			},
			RetryDelay:        time.Millisecond,
			RequestsPerSecond: 1000,
		}),
		Extractor:   extract.New(nil),
		Planner:     outline.New(outline.Config{Generator: text, RetryDelay: time.Millisecond}),
		Writer:      generate.New(generate.Config{Generator: text, RetryDelay: time.Millisecond}),
		Illustrator: illustrate.New(illustrate.Config{Generator: providers.NewMockImage(), Concurrency: 2}),
		Recommender: recommend.NewCascade(nil,
			recommend.NewSemanticScholar(recommend.SemanticScholarConfig{BaseURL: w.srv.URL + "/s2", Limiter: recommend.NewLimiter(0)}),
			recommend.NewArXiv(recommend.ArXivConfig{BaseURL: w.srv.URL + "/api/query", Limiter: recommend.NewLimiter(0)}),
			recommend.KeywordLinks{},
		),
		Exporter: export.New(export.Config{PDF: converters}),
	}
}

func (w *world) executor(t *testing.T, svc Services) *Executor {
	t.Helper()
	stages, err := NewRegistry(Stages(svc)...)
	require.NoError(t, err)
	return NewExecutor(stages, w.reg, w.taskDir, nil)
}

func (w *world) taskDir(id string) string { return filepath.Join(w.root, id) }

func (w *world) run(t *testing.T, exec *Executor, url string) *task.Task {
	t.Helper()
	return w.runRequest(t, exec, task.Request{URL: url, IllustrationCount: task.Count(5)})
}

func (w *world) runRequest(t *testing.T, exec *Executor, req task.Request) *task.Task {
	t.Helper()
	ctx := context.Background()
	tk := task.New(req)
	require.NoError(t, w.reg.Create(ctx, tk))
	require.NoError(t, exec.Run(ctx, tk))
	got, err := w.reg.Get(ctx, tk.ID)
	require.NoError(t, err)
	return got
}

// recorder keeps every snapshot the executor writes.
type recorder struct {
	task.Registry
	mu    sync.Mutex
	snaps []task.Task
}

func (r *recorder) UpdateStage(ctx context.Context, id string, u task.Update) (*task.Task, error) {
	t, err := r.Registry.UpdateStage(ctx, id, u)
	if err == nil {
		r.mu.Lock()
		r.snaps = append(r.snaps, *t.Clone())
		r.mu.Unlock()
	}
	return t, err
}

func (r *recorder) history(id string) []task.Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []task.Task
	for _, s := range r.snaps {
		if s.ID == id {
			out = append(out, s)
		}
	}
	return out
}

// pdfTier writes a fixed PDF.
type pdfTier struct{ data []byte }

func (pdfTier) Name() string { return "fake" }

func (p pdfTier) Convert(_ context.Context, _ export.Inputs, out string) error {
	return os.WriteFile(out, p.data, 0o644)
}

type brokenTier struct{}

func (brokenTier) Name() string { return "broken" }

func (brokenTier) Convert(context.Context, export.Inputs, string) error {
	return errors.New("renderer crashed")
}

func TestRunCompletesEndToEnd(t *testing.T) {
	w := newWorld(t)
	exec := w.executor(t, w.services(pdfTier{data: w.pdf}))

	got := w.run(t, exec, "https://arxiv.org/abs/2312.00752")
	require.Equal(t, task.StatusCompleted, got.Status, "error: %+v", got.Error)
	assert.Equal(t, 100, got.Progress)
	assert.Nil(t, got.Error)

	res := got.Result
	require.NotNil(t, res)
	require.NotNil(t, res.HTMLURL)
	assert.Equal(t, DownloadPath(got.ID, export.HTMLFile), *res.HTMLURL)
	require.NotNil(t, res.PDFURL)
	assert.NotNil(t, res.EPUBURL)
	assert.NotNil(t, res.MarkdownURL)
	assert.Equal(t, "fake", res.ExportTier)
	assert.Equal(t, "Mamba: Linear-Time Sequence Modeling with Selective State Spaces", res.PaperTitle)
	assert.Equal(t, 5, res.IllustrationCount)
	assert.Equal(t, string(paper.TierArXiv), res.RecommendationTier, "429 from the first tier falls through")
	assert.Equal(t, 1, res.RecommendationCount)

	dir := w.taskDir(got.ID)
	for _, f := range []string{export.HTMLFile, export.PDFFile, export.EPUBFile, export.MarkdownFile, fetch.SourceFile, "images/hero.png"} {
		assert.FileExists(t, filepath.Join(dir, f))
	}
	html, err := os.ReadFile(filepath.Join(dir, export.HTMLFile))
	require.NoError(t, err)
	assert.Contains(t, string(html), `<img src="images/comparison.png"`, "comparison image belongs to the problem section")
	assert.Contains(t, string(html), "Efficiently Modeling Long Sequences")

	meta, err := ReadMetadata(dir)
	require.NoError(t, err)
	assert.Equal(t, got.ID, meta.TaskID)
	assert.Equal(t, "pdfcpu-text", meta.Provenance.ExtractionStrategy)
	assert.Equal(t, paper.TierArXiv, meta.Provenance.RecommendationTier)
	assert.False(t, meta.Provenance.DefaultOutline)

	// Progress never regresses and reaches 100 only on completion.
	hist := w.reg.history(got.ID)
	require.NotEmpty(t, hist)
	prev := 0
	for _, s := range hist {
		assert.GreaterOrEqual(t, s.Progress, prev)
		prev = s.Progress
		if s.Progress == 100 {
			assert.Equal(t, task.StatusCompleted, s.Status)
		}
	}
	assert.Equal(t, task.StatusCompleted, hist[len(hist)-1].Status)
}

func TestExportFailureStillCompletes(t *testing.T) {
	w := newWorld(t)
	exec := w.executor(t, w.services(brokenTier{}))

	got := w.run(t, exec, "https://arxiv.org/abs/2312.00752")
	require.Equal(t, task.StatusCompleted, got.Status)
	require.NotNil(t, got.Result.HTMLURL)
	assert.Nil(t, got.Result.PDFURL)
	assert.Empty(t, got.Result.ExportTier)

	var found bool
	for _, d := range got.Result.Degradations {
		if strings.Contains(d, "renderer crashed") {
			found = true
		}
	}
	assert.True(t, found, "degradations = %v", got.Result.Degradations)
}

func TestMalformedURLFails(t *testing.T) {
	w := newWorld(t)
	exec := w.executor(t, w.services())

	got := w.run(t, exec, "not a url")
	require.Equal(t, task.StatusFailed, got.Status)
	require.NotNil(t, got.Error)
	assert.Equal(t, string(failure.Acquisition), got.Error.Kind)
	assert.Equal(t, 0, got.Progress)
	assert.Nil(t, got.Result)
	assert.Equal(t, task.StageAcquire, got.CurrentStage)

	for _, s := range w.reg.history(got.ID) {
		assert.Equal(t, 0, s.Progress)
	}
}

func TestDegradedAndFatalStages(t *testing.T) {
	w := newWorld(t)
	ok := func(context.Context, *State) error { return nil }

	stages, err := NewRegistry(
		Stage{Name: "one", Weight: 50, Run: func(context.Context, *State) error {
			return errors.Join(errors.New("first"), errors.New("second"))
		}},
		Stage{Name: "two", Weight: 50, Run: ok},
	)
	require.NoError(t, err)
	got := w.run(t, NewExecutor(stages, w.reg, w.taskDir, nil), "x")
	require.Equal(t, task.StatusCompleted, got.Status)
	assert.Equal(t, []string{"first", "second"}, got.Result.Degradations)

	stages, err = NewRegistry(
		Stage{Name: "one", Weight: 40, Run: ok},
		Stage{Name: "two", Weight: 60, Run: func(context.Context, *State) error {
			return Fatal(failure.Errorf(failure.ExportTier, "render html", "template broke"))
		}},
	)
	require.NoError(t, err)
	got = w.run(t, NewExecutor(stages, w.reg, w.taskDir, nil), "x")
	require.Equal(t, task.StatusFailed, got.Status)
	assert.Equal(t, 40, got.Progress)
	assert.Equal(t, string(failure.ExportTier), got.Error.Kind)
	assert.Equal(t, "render html: template broke", got.Error.Message)
}

func TestStagePanicIsRecovered(t *testing.T) {
	w := newWorld(t)
	ok := func(context.Context, *State) error { return nil }
	boom := func(context.Context, *State) error { panic("malformed xref table") }

	stages, err := NewRegistry(
		Stage{Name: "one", Weight: 30, Run: ok},
		Stage{Name: "two", Weight: 70, Fatal: true, Run: boom},
	)
	require.NoError(t, err)
	got := w.run(t, NewExecutor(stages, w.reg, w.taskDir, nil), "x")
	require.Equal(t, task.StatusFailed, got.Status)
	assert.Equal(t, 30, got.Progress)
	assert.Equal(t, string(failure.Internal), got.Error.Kind)
	assert.Contains(t, got.Error.Message, "panic: malformed xref table")

	stages, err = NewRegistry(
		Stage{Name: "one", Weight: 30, Run: boom},
		Stage{Name: "two", Weight: 70, Run: ok},
	)
	require.NoError(t, err)
	got = w.run(t, NewExecutor(stages, w.reg, w.taskDir, nil), "x")
	require.Equal(t, task.StatusCompleted, got.Status)
	require.Len(t, got.Result.Degradations, 1)
	assert.Contains(t, got.Result.Degradations[0], "panic: malformed xref table")
}

func TestFanOutPanicIsRecovered(t *testing.T) {
	w := newWorld(t)
	stages, err := NewRegistry(
		Stage{Name: "fan", Weight: 100, Mode: ModeFanOut, Limit: 2, Run: func(ctx context.Context, s *State) error {
			s.Runner.Run(ctx, 4, func(_ context.Context, i int) {
				if i == 2 {
					panic("worker blew up")
				}
			})
			return nil
		}},
	)
	require.NoError(t, err)
	got := w.run(t, NewExecutor(stages, w.reg, w.taskDir, nil), "x")
	require.Equal(t, task.StatusCompleted, got.Status)
	require.Len(t, got.Result.Degradations, 1)
	assert.Contains(t, got.Result.Degradations[0], "worker blew up")
}

func TestStageRunnerFollowsMode(t *testing.T) {
	w := newWorld(t)
	var seq, fan int
	stages, err := NewRegistry(
		Stage{Name: "seq", Weight: 50, Run: func(_ context.Context, s *State) error {
			seq = s.Runner.Limit()
			return nil
		}},
		Stage{Name: "fan", Weight: 50, Mode: ModeFanOut, Limit: 3, Run: func(_ context.Context, s *State) error {
			fan = s.Runner.Limit()
			return nil
		}},
	)
	require.NoError(t, err)
	got := w.run(t, NewExecutor(stages, w.reg, w.taskDir, nil), "x")
	require.Equal(t, task.StatusCompleted, got.Status)
	assert.Equal(t, 1, seq)
	assert.Equal(t, 3, fan)
}

func TestZeroIllustrationsSkipsAll(t *testing.T) {
	w := newWorld(t)
	exec := w.executor(t, w.services(pdfTier{data: w.pdf}))

	got := w.runRequest(t, exec, task.Request{URL: "https://arxiv.org/abs/2312.00752", IllustrationCount: task.Count(0)})
	require.Equal(t, task.StatusCompleted, got.Status, "error: %+v", got.Error)
	assert.Equal(t, 0, got.Result.IllustrationCount)
	assert.Equal(t, 0, got.Result.IllustrationsFailed)

	meta, err := ReadMetadata(w.taskDir(got.ID))
	require.NoError(t, err)
	require.NotEmpty(t, meta.Provenance.Illustrations)
	for _, il := range meta.Provenance.Illustrations {
		assert.Equal(t, paper.IllustrationSkipped, il.Status)
	}
	assert.NoDirExists(t, filepath.Join(w.taskDir(got.ID), illustrate.ImagesDir))
}

func TestRegistryValidation(t *testing.T) {
	ok := func(context.Context, *State) error { return nil }

	_, err := NewRegistry(Stage{Name: "a", Weight: 50, Run: ok}, Stage{Name: "b", Weight: 40, Run: ok})
	assert.ErrorIs(t, err, ErrInvalidWeights)

	_, err = NewRegistry(Stage{Name: "a", Weight: 100, Run: ok}, Stage{Name: "b", Weight: 0, Run: ok})
	assert.ErrorIs(t, err, ErrInvalidWeights)

	_, err = NewRegistry(Stage{Name: "a", Weight: 50, Run: ok}, Stage{Name: "a", Weight: 50, Run: ok})
	assert.ErrorIs(t, err, ErrStageAlreadyRegistered)

	r, err := NewRegistry(Stages(Services{})...)
	require.NoError(t, err)
	assert.Equal(t, []task.Stage{
		task.StageAcquire, task.StageExtract, task.StagePlan, task.StageGenerateText,
		task.StageGenerateImages, task.StageRecommend, task.StageRenderExport,
	}, r.Names())

	img, err := r.Get(task.StageGenerateImages)
	require.NoError(t, err)
	assert.Equal(t, ModeFanOut, img.Mode)
	acq, err := r.Get(task.StageAcquire)
	require.NoError(t, err)
	assert.True(t, acq.Fatal)
	assert.Equal(t, ModeSequential, acq.Mode)

	_, err = r.Get("nope")
	assert.ErrorIs(t, err, ErrStageNotFound)
}

func TestRunnerResubmitCreatesNewTask(t *testing.T) {
	w := newWorld(t)
	exec := w.executor(t, w.services(pdfTier{data: w.pdf}))
	r := NewRunner(RunnerConfig{Executor: exec, Tasks: w.reg, MaxConcurrent: 1})
	defer r.Close()

	ctx := context.Background()
	req := task.Request{URL: "https://arxiv.org/abs/2312.00752"}
	a, err := r.Submit(ctx, req)
	require.NoError(t, err)
	b, err := r.Submit(ctx, req)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, task.StatusQueued, a.Status)

	r.Wait()
	for _, id := range []string{a.ID, b.ID} {
		got, err := w.reg.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, task.StatusCompleted, got.Status)
	}

	r.Close()
	_, err = r.Submit(ctx, req)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestRunnerCloseFailsQueuedTasks(t *testing.T) {
	w := newWorld(t)
	stages, err := NewRegistry(
		Stage{Name: "block", Weight: 100, Fatal: true, Run: func(ctx context.Context, _ *State) error {
			<-ctx.Done()
			return ctx.Err()
		}},
	)
	require.NoError(t, err)
	r := NewRunner(RunnerConfig{Executor: NewExecutor(stages, w.reg, w.taskDir, nil), Tasks: w.reg, MaxConcurrent: 1})

	ctx := context.Background()
	a, err := r.Submit(ctx, task.Request{URL: "a"})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		got, err := w.reg.Get(ctx, a.ID)
		return err == nil && got.Status == task.StatusRunning
	}, 5*time.Second, 5*time.Millisecond)

	b, err := r.Submit(ctx, task.Request{URL: "b"})
	require.NoError(t, err)
	r.Close()

	for _, id := range []string{a.ID, b.ID} {
		got, err := w.reg.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, task.StatusFailed, got.Status, "task %s", id)
		require.NotNil(t, got.Error)
		assert.Equal(t, string(failure.Internal), got.Error.Kind)
	}
}

func TestExecutorAbort(t *testing.T) {
	w := newWorld(t)
	exec := w.executor(t, w.services())
	ctx := context.Background()

	tk := task.New(task.Request{URL: "queued"})
	require.NoError(t, w.reg.Create(ctx, tk))
	require.NoError(t, exec.Abort(ctx, tk, failure.Errorf(failure.Internal, "run task", "server shutting down")))

	got, err := w.reg.Get(ctx, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusFailed, got.Status)
	assert.Equal(t, 0, got.Progress)
	assert.Equal(t, task.StageAcquire, got.CurrentStage)
	assert.Equal(t, "run task: server shutting down", got.Error.Message)
}

func TestAttachImages(t *testing.T) {
	sections := []paper.ArticleSection{{Role: paper.RoleHero}, {Role: paper.RoleProblem}, {Role: paper.RoleMethod}}
	out := attachImages(sections, []paper.Illustration{
		{Role: paper.RoleHero, Status: paper.IllustrationGenerated, File: "images/hero.png"},
		{Role: paper.RoleComparison, Status: paper.IllustrationGenerated, File: "images/comparison.png"},
		{Role: paper.RoleMethod, Status: paper.IllustrationFailed},
	})

	assert.Equal(t, "images/hero.png", out[0].Image)
	assert.Equal(t, "images/comparison.png", out[1].Image)
	assert.Empty(t, out[2].Image)
	assert.Empty(t, sections[0].Image, "input must not be modified")
}
