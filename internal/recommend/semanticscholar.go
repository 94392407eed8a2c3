package recommend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/jackzampolin/popsci/internal/bounded"
	"github.com/jackzampolin/popsci/internal/failure"
	"github.com/jackzampolin/popsci/internal/paper"
)

const (
	SemanticScholarAPI = "https://api.semanticscholar.org"
	paperFields        = "paperId,title,authors,year,citationCount,abstract,url,openAccessPdf"
	linkFields         = "paperId,title,year,citationCount,url"
)

// SemanticScholarConfig configures the Semantic Scholar tier.
type SemanticScholarConfig struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Limiter    *rate.Limiter
	UserAgent  string
	// Timeout bounds the whole tier (default 10s).
	Timeout time.Duration
}

// SemanticScholar asks the Semantic Scholar recommendations API, then adds
// the paper's citation neighborhood.
type SemanticScholar struct {
	base    string
	key     string
	client  client
	timeout time.Duration
}

// NewSemanticScholar creates the tier.
func NewSemanticScholar(cfg SemanticScholarConfig) *SemanticScholar {
	if cfg.BaseURL == "" {
		cfg.BaseURL = SemanticScholarAPI
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &SemanticScholar{
		base:    strings.TrimRight(cfg.BaseURL, "/"),
		key:     cfg.APIKey,
		client:  newClient(cfg.HTTPClient, cfg.Limiter, cfg.UserAgent),
		timeout: cfg.Timeout,
	}
}

func (s *SemanticScholar) Name() paper.Tier { return paper.TierSemanticScholar }

type s2Paper struct {
	PaperID       string `json:"paperId"`
	Title         string `json:"title"`
	Year          int    `json:"year"`
	CitationCount int    `json:"citationCount"`
	Abstract      string `json:"abstract"`
	URL           string `json:"url"`
	Authors       []struct {
		Name string `json:"name"`
	} `json:"authors"`
	OpenAccessPDF *struct {
		URL string `json:"url"`
	} `json:"openAccessPdf"`
}

func (p s2Paper) related(rel paper.Relation) paper.Related {
	names := make([]string, 0, len(p.Authors))
	for _, a := range p.Authors {
		names = append(names, a.Name)
	}
	r := paper.Related{
		ID:        p.PaperID,
		Title:     strings.TrimSpace(p.Title),
		Authors:   paper.AuthorLine(names),
		Year:      p.Year,
		Citations: p.CitationCount,
		Abstract:  Excerpt(p.Abstract),
		URL:       p.URL,
		Relation:  rel,
	}
	if r.URL == "" && p.PaperID != "" {
		r.URL = "https://www.semanticscholar.org/paper/" + p.PaperID
	}
	if p.OpenAccessPDF != nil {
		r.PDFURL = p.OpenAccessPDF.URL
	}
	return r
}

// Try returns recommended papers followed by citing and cited papers.
// Each of the three lists counts on its own; the tier is empty only when
// all three are. A 429 from any call fails the tier at once.
func (s *SemanticScholar) Try(ctx context.Context, q Query) ([]paper.Related, error) {
	return bounded.Call(ctx, bounded.Once(s.timeout), func(ctx context.Context) ([]paper.Related, error) {
		id, err := s.paperID(ctx, q)
		if err != nil {
			return nil, err
		}

		var (
			out      []paper.Related
			firstErr error
		)
		keep := func(items []paper.Related, err error) error {
			if err != nil {
				if failure.IsRateLimited(err) {
					return err
				}
				if firstErr == nil {
					firstErr = err
				}
				return nil
			}
			out = append(out, items...)
			return nil
		}

		if err := keep(s.recommendations(ctx, id, q.limit())); err != nil {
			return nil, err
		}
		n := max(1, q.limit()/2)
		for _, edge := range []struct {
			path, field string
			rel         paper.Relation
		}{
			{"citations", "citingPaper", paper.RelationCitedBy},
			{"references", "citedPaper", paper.RelationCites},
		} {
			if err := keep(s.neighbors(ctx, id, edge.path, edge.field, edge.rel, n)); err != nil {
				return nil, err
			}
		}
		if len(out) == 0 {
			return nil, firstErr
		}
		return out, nil
	})
}

// paperID picks the API identifier: the Semantic Scholar id, then arXiv,
// then DOI, then a title match.
func (s *SemanticScholar) paperID(ctx context.Context, q Query) (string, error) {
	switch {
	case q.IDs.SemanticScholar != "":
		return q.IDs.SemanticScholar, nil
	case q.IDs.ArXiv != "":
		return "arXiv:" + q.IDs.ArXiv, nil
	case q.IDs.DOI != "":
		return "DOI:" + q.IDs.DOI, nil
	case strings.TrimSpace(q.Title) == "":
		return "", errors.New("no identifier or title")
	}

	body, err := s.client.get(ctx, "semanticscholar match", s.base+"/graph/v1/paper/search/match?"+url.Values{
		"query":  {q.Title},
		"fields": {"paperId"},
	}.Encode(), s.header())
	if err != nil {
		return "", err
	}
	var resp struct {
		Data []s2Paper `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to decode title match: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].PaperID == "" {
		return "", errors.New("title not found")
	}
	return resp.Data[0].PaperID, nil
}

func (s *SemanticScholar) recommendations(ctx context.Context, id string, limit int) ([]paper.Related, error) {
	u := fmt.Sprintf("%s/recommendations/v1/papers/forpaper/%s?%s", s.base, url.PathEscape(id), url.Values{
		"limit":  {fmt.Sprint(limit)},
		"fields": {paperFields},
	}.Encode())
	body, err := s.client.get(ctx, "semanticscholar recommendations", u, s.header())
	if err != nil {
		return nil, err
	}
	var resp struct {
		RecommendedPapers []s2Paper `json:"recommendedPapers"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode recommendations: %w", err)
	}

	out := make([]paper.Related, 0, len(resp.RecommendedPapers))
	for _, p := range resp.RecommendedPapers {
		if p.Title != "" {
			out = append(out, p.related(paper.RelationRecommended))
		}
	}
	return out, nil
}

func (s *SemanticScholar) neighbors(ctx context.Context, id, path, field string, rel paper.Relation, limit int) ([]paper.Related, error) {
	u := fmt.Sprintf("%s/graph/v1/paper/%s/%s?%s", s.base, url.PathEscape(id), path, url.Values{
		"limit":  {fmt.Sprint(limit)},
		"fields": {linkFields},
	}.Encode())
	body, err := s.client.get(ctx, "semanticscholar "+path, u, s.header())
	if err != nil {
		return nil, err
	}
	var resp struct {
		Data []map[string]s2Paper `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	var out []paper.Related
	for _, d := range resp.Data {
		if p, ok := d[field]; ok && p.Title != "" {
			out = append(out, p.related(rel))
		}
	}
	return out, nil
}

func (s *SemanticScholar) header() http.Header {
	h := http.Header{}
	if s.key != "" {
		h.Set("x-api-key", s.key)
	}
	return h
}
