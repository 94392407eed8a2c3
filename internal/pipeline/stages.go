package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/jackzampolin/popsci/internal/export"
	"github.com/jackzampolin/popsci/internal/extract"
	"github.com/jackzampolin/popsci/internal/fetch"
	"github.com/jackzampolin/popsci/internal/generate"
	"github.com/jackzampolin/popsci/internal/illustrate"
	"github.com/jackzampolin/popsci/internal/outline"
	"github.com/jackzampolin/popsci/internal/paper"
	"github.com/jackzampolin/popsci/internal/recommend"
	"github.com/jackzampolin/popsci/internal/render"
	"github.com/jackzampolin/popsci/internal/task"
)

// Services are the collaborators the stages call.
type Services struct {
	Fetcher     *fetch.Fetcher
	Extractor   *extract.Extractor
	Planner     *outline.Planner
	Writer      *generate.Writer
	Illustrator *illustrate.Illustrator
	Recommender *recommend.Cascade
	Exporter    *export.Exporter

	// IllustrationCount applies when a request does not set one (default 5).
	IllustrationCount int
	// IllustrationConcurrency is reported as the image stage's limit.
	IllustrationConcurrency int
	// RecommendLimit is the number of related papers asked of each tier.
	RecommendLimit int
}

// Stages returns the pipeline in execution order:
// acquire, extract, plan, generate-text, generate-images, recommend, render-export.
func Stages(svc Services) []Stage {
	if svc.IllustrationCount <= 0 {
		svc.IllustrationCount = illustrate.DefaultCount
	}
	return []Stage{
		{
			Name: task.StageAcquire, Weight: 15, Fatal: true,
			Run: func(ctx context.Context, s *State) error {
				doc, err := svc.Fetcher.Acquire(ctx, s.Task.Request.URL, s.Dir)
				if err != nil {
					return err
				}
				s.Document = doc
				return nil
			},
		},
		{
			Name: task.StageExtract, Weight: 15, Fatal: true,
			Run: func(ctx context.Context, s *State) error {
				c, err := svc.Extractor.Extract(ctx, extract.Input{
					Path:     s.Document.Path,
					Scratch:  filepath.Join(s.Dir, ".extract"),
					Metadata: s.Document.Metadata,
					PDFTitle: s.Document.PDFTitle,
				})
				if err != nil {
					return err
				}
				s.Content = c
				return nil
			},
		},
		{
			Name: task.StagePlan, Weight: 10,
			Run: func(ctx context.Context, s *State) error {
				o, err := svc.Planner.Plan(ctx, s.Content)
				s.Outline = o
				return err
			},
		},
		{
			Name: task.StageGenerateText, Weight: 25,
			Run: func(ctx context.Context, s *State) error {
				res, err := svc.Writer.Write(ctx, s.Content, s.Outline)
				s.Text = res
				return err
			},
		},
		{
			Name: task.StageGenerateImages, Weight: 15,
			Mode: ModeFanOut, Limit: svc.IllustrationConcurrency,
			Run: func(ctx context.Context, s *State) error {
				count := svc.IllustrationCount
				if n := s.Task.Request.IllustrationCount; n != nil {
					count = *n
				}
				ills, err := svc.Illustrator.WithRunner(s.Runner).Generate(ctx, s.Outline.Illustrations, count, s.Dir)
				s.Illustrations = ills
				return err
			},
		},
		{
			Name: task.StageRecommend, Weight: 5,
			Run: func(ctx context.Context, s *State) error {
				s.Related = svc.Recommender.Recommend(ctx, recommend.Query{
					Title:    s.Content.Title,
					Abstract: s.Content.Abstract,
					IDs:      s.Content.IDs,
					Limit:    svc.RecommendLimit,
				})
				return nil
			},
		},
		{
			Name: task.StageRenderExport, Weight: 15,
			Run: func(ctx context.Context, s *State) error {
				if s.Text == nil {
					return Fatal(fmt.Errorf("no generated text to render"))
				}
				sections := attachImages(s.Text.Sections, s.Illustrations)
				a := render.NewArticle(s.Content, s.Outline, sections, s.Related)
				rep, err := svc.Exporter.Export(ctx, a, s.Dir)
				if rep == nil {
					return Fatal(err)
				}
				s.Export = rep
				return err
			},
		},
	}
}

// attachImages returns a copy of sections with each generated illustration
// placed on the section of the same role. The comparison image goes with
// the problem section.
func attachImages(sections []paper.ArticleSection, ills []paper.Illustration) []paper.ArticleSection {
	files := make(map[paper.Role]string)
	for _, il := range ills {
		if il.Status != paper.IllustrationGenerated || il.File == "" {
			continue
		}
		role := il.Role
		if role == paper.RoleComparison {
			role = paper.RoleProblem
		}
		if _, taken := files[role]; !taken {
			files[role] = il.File
		}
	}

	out := make([]paper.ArticleSection, len(sections))
	copy(out, sections)
	for i := range out {
		if f, ok := files[out[i].Role]; ok {
			out[i].Image = f
		}
	}
	return out
}
