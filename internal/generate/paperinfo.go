package generate

import (
	"strings"

	"github.com/jackzampolin/popsci/internal/paper"
)

// PaperInfo builds the bibliographic section that opens every article.
func PaperInfo(c *paper.Content) paper.ArticleSection {
	var lines []string
	add := func(label, value string) {
		if value != "" {
			lines = append(lines, label+": "+value)
		}
	}
	add("Title", c.Title)
	add("Authors", paper.AuthorLine(c.Authors))
	add("Institution", c.Institution)
	add("Published", c.Published)
	add("arXiv", c.IDs.ArXiv)
	add("DOI", c.IDs.DOI)

	var links []paper.Link
	if c.IDs.ArXiv != "" {
		links = append(links, paper.Link{Label: "arXiv", URL: "https://arxiv.org/abs/" + c.IDs.ArXiv})
	}
	if c.IDs.DOI != "" {
		links = append(links, paper.Link{Label: "DOI", URL: "https://doi.org/" + c.IDs.DOI})
	}
	if c.IDs.SemanticScholar != "" {
		links = append(links, paper.Link{Label: "Semantic Scholar", URL: "https://www.semanticscholar.org/paper/" + c.IDs.SemanticScholar})
	}
	if c.IDs.OpenReview != "" {
		links = append(links, paper.Link{Label: "OpenReview", URL: "https://openreview.net/forum?id=" + c.IDs.OpenReview})
	}

	return paper.ArticleSection{
		Role:  paper.RolePaperInfo,
		Title: "About the Paper",
		Body:  strings.Join(lines, "\n"),
		Links: links,
	}
}
