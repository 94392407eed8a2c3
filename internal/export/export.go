// Package export writes an article to disk in every supported format.
// The HTML render has no fallback; PDF tiers fall back in order; ePub and
// Markdown are independent of each other.
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackzampolin/popsci/internal/bounded"
	"github.com/jackzampolin/popsci/internal/epub"
	"github.com/jackzampolin/popsci/internal/failure"
	"github.com/jackzampolin/popsci/internal/metrics"
	"github.com/jackzampolin/popsci/internal/paper"
	"github.com/jackzampolin/popsci/internal/pdf"
	"github.com/jackzampolin/popsci/internal/render"
)

// Artifact file names inside a task directory.
const (
	HTMLFile     = "article.html"
	PDFFile      = "article.pdf"
	EPUBFile     = "article.epub"
	MarkdownFile = "article.md"
)

// Config configures an Exporter.
type Config struct {
	// PDF lists the PDF tiers in order. Nil means DefaultPDFTiers.
	PDF []Converter
	// Timeout bounds each PDF tier (default 2m).
	Timeout time.Duration
	Logger  *slog.Logger
}

// Exporter writes an article's formats.
type Exporter struct {
	pdf     []Converter
	timeout time.Duration
	logger  *slog.Logger
}

// New creates an Exporter.
func New(cfg Config) *Exporter {
	if cfg.PDF == nil {
		cfg.PDF, _ = Converters(DefaultPDFTiers)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Exporter{pdf: cfg.PDF, timeout: cfg.Timeout, logger: cfg.Logger.With("component", "export")}
}

// Tiers returns the configured PDF tier names in order.
func (e *Exporter) Tiers() []string {
	out := make([]string, len(e.pdf))
	for i, c := range e.pdf {
		out[i] = c.Name()
	}
	return out
}

// Report records which artifacts were written. Empty names were not.
type Report struct {
	HTML     string `json:"html"`
	PDF      string `json:"pdf,omitempty"`
	EPUB     string `json:"epub,omitempty"`
	Markdown string `json:"markdown,omitempty"`
	PDFTier  string `json:"pdf_tier,omitempty"`
}

// Export writes every format into dir. A nil Report means the HTML render
// failed and nothing usable was produced. Otherwise the returned error
// joins the degradable failures of the other formats.
func (e *Exporter) Export(ctx context.Context, a render.Article, dir string) (*Report, error) {
	htmlPath := filepath.Join(dir, HTMLFile)
	if err := render.WriteHTML(htmlPath, a); err != nil {
		metrics.ExportTier("html", "template", false)
		return nil, failure.Wrap(failure.ExportTier, "render html", err)
	}
	metrics.ExportTier("html", "template", true)
	rep := &Report{HTML: HTMLFile}

	var errs []error

	mdPath := filepath.Join(dir, MarkdownFile)
	if err := render.WriteMarkdown(mdPath, a); err != nil {
		errs = append(errs, failure.Wrap(failure.ExportTier, "markdown", err))
		metrics.ExportTier("markdown", "native", false)
	} else {
		rep.Markdown = MarkdownFile
		metrics.ExportTier("markdown", "native", true)
	}

	tier, err := e.exportPDF(ctx, Inputs{HTML: htmlPath, Markdown: mdPath, Dir: dir}, filepath.Join(dir, PDFFile))
	if err != nil {
		errs = append(errs, err)
	} else {
		rep.PDF, rep.PDFTier = PDFFile, tier
	}

	if err := buildEPUB(a, dir, filepath.Join(dir, EPUBFile)); err != nil {
		errs = append(errs, failure.Wrap(failure.ExportTier, "epub", err))
		metrics.ExportTier("epub", "native", false)
		e.logger.Warn("epub export failed", "error", err)
	} else {
		rep.EPUB = EPUBFile
		metrics.ExportTier("epub", "native", true)
	}

	return rep, errors.Join(errs...)
}

// exportPDF tries each tier in order and returns the first that produced
// a valid PDF.
func (e *Exporter) exportPDF(ctx context.Context, in Inputs, out string) (string, error) {
	var tried []string
	for _, c := range e.pdf {
		err := bounded.Do(ctx, bounded.Once(e.timeout), func(ctx context.Context) error {
			if err := c.Convert(ctx, in, out); err != nil {
				return err
			}
			if _, err := pdf.Validate(out); err != nil {
				return fmt.Errorf("output rejected: %w", err)
			}
			return nil
		})
		metrics.ExportTier("pdf", c.Name(), err == nil)
		if err == nil {
			e.logger.Info("pdf exported", "tier", c.Name(), "skipped_tiers", len(tried))
			return c.Name(), nil
		}
		_ = os.Remove(out)
		tried = append(tried, fmt.Sprintf("%s: %v", c.Name(), err))
		e.logger.Debug("pdf tier failed", "tier", c.Name(), "error", err)
	}
	if len(tried) == 0 {
		return "", failure.Errorf(failure.ExportTier, "pdf", "no pdf tiers configured")
	}
	e.logger.Warn("pdf export failed on every tier", "tiers", len(tried))
	return "", failure.Errorf(failure.ExportTier, "pdf", "all tiers failed (%s)", strings.Join(tried, "; "))
}

// buildEPUB maps article sections to chapters, with related work last.
func buildEPUB(a render.Article, dir, out string) error {
	var chapters []epub.Chapter
	for i, s := range a.Sections {
		ch := epub.Chapter{
			ID:    fmt.Sprintf("sec_%02d", i+1),
			Title: s.Title,
			Text:  sectionText(s),
		}
		if s.Image != "" {
			ch.Image = filepath.Join(dir, filepath.FromSlash(s.Image))
		}
		chapters = append(chapters, ch)
	}

	if groups := a.RelatedGroups(); len(groups) > 0 {
		var sb strings.Builder
		for _, g := range groups {
			fmt.Fprintf(&sb, "## %s\n\n", g.Heading)
			for _, it := range g.Items {
				sb.WriteString("- " + render.RelatedLine(it) + "\n")
			}
			sb.WriteString("\n")
		}
		chapters = append(chapters, epub.Chapter{ID: "related", Title: "Related Work", Text: sb.String()})
	}

	return epub.NewBuilder(epub.Book{
		Title:       a.Title,
		Author:      a.Authors,
		Description: a.Subtitle,
		CreatedAt:   a.GeneratedAt,
	}, chapters).Build(out)
}

func sectionText(s paper.ArticleSection) string {
	var sb strings.Builder
	for _, p := range render.Paragraphs(s.Body) {
		sb.WriteString(p + "\n\n")
	}
	for _, kn := range s.KeyNumbers {
		fmt.Fprintf(&sb, "- **%s** %s\n", kn.Value, kn.Label)
	}
	sb.WriteString("\n")
	for _, l := range s.Links {
		fmt.Fprintf(&sb, "- [%s](%s)\n", l.Label, l.URL)
	}
	return sb.String()
}
