package recommend

import (
	"context"
	"net/url"
	"strings"

	"github.com/jackzampolin/popsci/internal/paper"
)

const linkTerms = 3

// KeywordLinks builds search links from title and abstract keywords. It
// needs no network.
type KeywordLinks struct{}

func (KeywordLinks) Name() paper.Tier { return paper.TierKeywordLinks }

func (KeywordLinks) Try(_ context.Context, q Query) ([]paper.Related, error) {
	kw := Keywords(q.Title + " " + q.Abstract)
	if len(kw) == 0 {
		return nil, nil
	}
	top := kw
	if len(top) > linkTerms {
		top = top[:linkTerms]
	}
	plus := escapeTerms(top, "+")

	return []paper.Related{
		{
			Title:    "Search Semantic Scholar for related papers",
			Abstract: "Keywords: " + strings.Join(kw, ", "),
			URL:      "https://www.semanticscholar.org/search?q=" + plus + "&sort=relevance",
			Relation: paper.RelationManualSearch,
		},
		{
			Title:    "Search Google Scholar for related papers",
			Abstract: "Google Scholar covers a wider range of academic literature.",
			URL:      "https://scholar.google.com/scholar?q=" + plus,
			Relation: paper.RelationManualSearch,
		},
		{
			Title:    "Search arXiv for related preprints",
			Abstract: "arXiv carries the latest preprints in computer science, physics and mathematics.",
			URL:      "https://arxiv.org/search/?query=" + escapeTerms(top, "+OR+") + "&searchtype=all",
			Relation: paper.RelationManualSearch,
		},
	}, nil
}

func escapeTerms(terms []string, sep string) string {
	out := make([]string, len(terms))
	for i, t := range terms {
		out[i] = url.QueryEscape(t)
	}
	return strings.Join(out, sep)
}

// Guidance is the last resort: fixed pointers for exploring by hand.
type Guidance struct{}

func (Guidance) Name() paper.Tier { return paper.TierGuidance }

func (Guidance) Try(context.Context, Query) ([]paper.Related, error) {
	return []paper.Related{
		{
			Title:    "Semantic Scholar",
			Abstract: "Search for the paper's title to browse its citation graph.",
			URL:      "https://www.semanticscholar.org/",
			Relation: paper.RelationManualSearch,
		},
		{
			Title:    "Google Scholar",
			Abstract: "Use \"Cited by\" to find newer work that builds on the paper.",
			URL:      "https://scholar.google.com/",
			Relation: paper.RelationManualSearch,
		},
		{
			Title:    "arXiv",
			Abstract: "For computer science and physics papers, look for related preprints.",
			URL:      "https://arxiv.org/",
			Relation: paper.RelationManualSearch,
		},
		{
			Title:    "The paper's references",
			Abstract: "The reference list of the original paper is the quickest map of its background.",
			Relation: paper.RelationManualSearch,
		},
	}, nil
}
