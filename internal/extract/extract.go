// Package extract turns an acquired PDF into paper.Content. Strategies
// are tried in order of fidelity; the first to produce a title or text wins.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackzampolin/popsci/internal/failure"
	"github.com/jackzampolin/popsci/internal/paper"
)

// Input is what extraction starts from.
type Input struct {
	// Path is the acquired PDF.
	Path string
	// Scratch is a directory the strategy may use for intermediate files.
	Scratch string
	// Metadata is what acquisition learned from the source.
	Metadata paper.Metadata
	// PDFTitle is the document info title, if any.
	PDFTitle string
}

// Strategy is one way of producing content.
type Strategy interface {
	Name() string
	Extract(ctx context.Context, in Input) (*paper.Content, error)
}

// Extractor runs strategies in order.
type Extractor struct {
	strategies []Strategy
	logger     *slog.Logger
}

// New returns an Extractor over strategies, defaulting to the pdfcpu text
// strategy followed by the metadata-only fallback.
func New(logger *slog.Logger, strategies ...Strategy) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if len(strategies) == 0 {
		strategies = []Strategy{PDFText{}, MetadataOnly{}}
	}
	return &Extractor{strategies: strategies, logger: logger.With("component", "extract")}
}

// ErrEmpty is returned by a strategy that ran but found nothing usable.
var ErrEmpty = errors.New("no title or text")

// Extract returns the first usable content. Failure of every strategy is
// an ExtractionError.
func (e *Extractor) Extract(ctx context.Context, in Input) (*paper.Content, error) {
	var errs []error
	for _, s := range e.strategies {
		if err := ctx.Err(); err != nil {
			return nil, failure.Wrap(failure.Extraction, "extract", err)
		}
		c, err := s.Extract(ctx, in)
		if err == nil && !usable(c) {
			err = ErrEmpty
		}
		if err != nil {
			e.logger.Warn("extraction strategy failed", "strategy", s.Name(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}

		c.Strategy = s.Name()
		postProcess(c)
		e.logger.Info("content extracted",
			"strategy", c.Strategy,
			"sections", len(c.Sections),
			"figures", len(c.Figures),
			"references", c.ReferenceCount,
		)
		return c, nil
	}
	return nil, failure.Wrap(failure.Extraction, "extract", errors.Join(errs...))
}

func usable(c *paper.Content) bool {
	if c == nil {
		return false
	}
	if c.Title != "" {
		return true
	}
	for _, s := range c.Sections {
		if s.Body != "" {
			return true
		}
	}
	return false
}

// base seeds content with acquisition metadata.
func base(in Input) *paper.Content {
	return &paper.Content{
		Title:     in.Metadata.Title,
		Authors:   append([]string(nil), in.Metadata.Authors...),
		Abstract:  in.Metadata.Abstract,
		Published: in.Metadata.Published,
		IDs:       in.Metadata.IDs,
	}
}
