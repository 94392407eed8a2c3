package recommend

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/jackzampolin/popsci/internal/arxiv"
	"github.com/jackzampolin/popsci/internal/bounded"
	"github.com/jackzampolin/popsci/internal/paper"
)

const (
	ArXivAPI        = "https://export.arxiv.org/api/query"
	arxivQueryTerms = 3
)

// ArXivConfig configures the arXiv search tier.
type ArXivConfig struct {
	BaseURL    string
	HTTPClient *http.Client
	Limiter    *rate.Limiter
	UserAgent  string
	// Timeout bounds the tier (default 15s).
	Timeout time.Duration
}

// ArXiv searches arXiv with keywords from the title.
type ArXiv struct {
	base    string
	client  client
	timeout time.Duration
}

// NewArXiv creates the tier.
func NewArXiv(cfg ArXivConfig) *ArXiv {
	if cfg.BaseURL == "" {
		cfg.BaseURL = ArXivAPI
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &ArXiv{
		base:    cfg.BaseURL,
		client:  newClient(cfg.HTTPClient, cfg.Limiter, cfg.UserAgent),
		timeout: cfg.Timeout,
	}
}

func (a *ArXiv) Name() paper.Tier { return paper.TierArXiv }

// Try runs an OR query over the top title keywords, excluding the paper itself.
func (a *ArXiv) Try(ctx context.Context, q Query) ([]paper.Related, error) {
	kw := Keywords(q.Title)
	if len(kw) == 0 {
		return nil, ErrNoKeywords
	}
	if len(kw) > arxivQueryTerms {
		kw = kw[:arxivQueryTerms]
	}

	u := a.base + "?" + url.Values{
		"search_query": {"all:" + strings.Join(kw, " OR ")},
		"start":        {"0"},
		"max_results":  {strconv.Itoa(q.limit() + 1)},
		"sortBy":       {"relevance"},
		"sortOrder":    {"descending"},
	}.Encode()

	return bounded.Call(ctx, bounded.Once(a.timeout), func(ctx context.Context) ([]paper.Related, error) {
		body, err := a.client.get(ctx, "arxiv search", u, nil)
		if err != nil {
			return nil, err
		}
		feed, err := arxiv.Parse(bytes.NewReader(body))
		if err != nil {
			return nil, err
		}

		var out []paper.Related
		for _, e := range feed.Entries {
			id := e.ArXivID()
			if e.Title == "" || (q.IDs.ArXiv != "" && id == q.IDs.ArXiv) {
				continue
			}
			out = append(out, paper.Related{
				ID:       id,
				Title:    e.Title,
				Authors:  paper.AuthorLine(e.AuthorNames()),
				Year:     e.Year(),
				Abstract: Excerpt(e.Summary),
				URL:      e.AbsURL(),
				PDFURL:   e.PDFURL(),
				Relation: paper.RelationSimilarTopic,
			})
			if len(out) == q.limit() {
				break
			}
		}
		return out, nil
	})
}
