package extract

import (
	"context"

	"github.com/jackzampolin/popsci/internal/paper"
)

// MetadataOnly builds content from what acquisition already knows: the
// source's title, authors and abstract, or the PDF info title.
type MetadataOnly struct{}

func (MetadataOnly) Name() string { return "metadata" }

func (MetadataOnly) Extract(_ context.Context, in Input) (*paper.Content, error) {
	c := base(in)
	if c.Title == "" {
		c.Title = in.PDFTitle
	}
	if c.Title == "" {
		return nil, ErrEmpty
	}
	if c.Abstract != "" {
		c.Sections = []paper.Section{{Title: "Abstract", Body: c.Abstract, Level: 1}}
	}
	return c, nil
}
