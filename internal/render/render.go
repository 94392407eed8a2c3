// Package render turns a finished article into HTML and Markdown.
package render

import (
	"strings"
	"time"

	"github.com/jackzampolin/popsci/internal/paper"
)

// Article is everything the renderers and exporters need.
type Article struct {
	Title       string
	Subtitle    string
	Authors     string
	Sections    []paper.ArticleSection
	Related     paper.Recommendations
	GeneratedAt time.Time
}

// NewArticle assembles an article from the pipeline's outputs. The outline
// may be nil.
func NewArticle(c *paper.Content, o *paper.Outline, sections []paper.ArticleSection, rec paper.Recommendations) Article {
	a := Article{
		Title:       c.Title,
		Authors:     paper.AuthorLine(c.Authors),
		Sections:    sections,
		Related:     rec,
		GeneratedAt: time.Now().UTC(),
	}
	if o != nil {
		a.Subtitle = o.CoreInnovation
	}
	return a
}

// RelatedGroup is one relation's slice of the related work, with a heading.
type RelatedGroup struct {
	Relation paper.Relation
	Heading  string
	Items    []paper.Related
}

var relationHeadings = []struct {
	rel     paper.Relation
	heading string
}{
	{paper.RelationRecommended, "Recommended Reading"},
	{paper.RelationCitedBy, "Work Building on This Paper"},
	{paper.RelationCites, "Foundations This Paper Builds On"},
	{paper.RelationSimilarTopic, "Similar Research"},
	{paper.RelationManualSearch, "Explore Further"},
}

// RelatedGroups partitions the related work by relation in display order.
// Empty groups are omitted.
func (a Article) RelatedGroups() []RelatedGroup {
	by := a.Related.ByRelation()
	var out []RelatedGroup
	for _, rh := range relationHeadings {
		if items := by[rh.rel]; len(items) > 0 {
			out = append(out, RelatedGroup{Relation: rh.rel, Heading: rh.heading, Items: items})
		}
	}
	return out
}

// Paragraphs splits a section body on blank lines.
func Paragraphs(body string) []string {
	var out []string
	for _, p := range strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n\n") {
		if p = strings.Join(strings.Fields(p), " "); p != "" {
			out = append(out, p)
		}
	}
	return out
}
