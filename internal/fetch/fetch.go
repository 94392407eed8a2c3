// Package fetch resolves a paper reference (arXiv, DOI, OpenReview,
// Semantic Scholar, direct PDF or landing page) to a validated local PDF
// plus whatever metadata the source exposes.
package fetch

import (
	"context"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"golang.org/x/time/rate"

	"github.com/jackzampolin/popsci/internal/failure"
	"github.com/jackzampolin/popsci/internal/paper"
)

// SourceFile is the name of the acquired document inside the task dir.
const SourceFile = "source.pdf"

// Endpoints are the base URLs of the metadata services.
type Endpoints struct {
	ArXivAPI        string
	ArXivPDF        string
	Unpaywall       string
	OpenReview      string
	OpenReviewAPI   string
	SemanticScholar string
}

// DefaultEndpoints returns the public service URLs.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		ArXivAPI:        "https://export.arxiv.org/api/query",
		ArXivPDF:        "https://arxiv.org/pdf/",
		Unpaywall:       "https://api.unpaywall.org/v2/",
		OpenReview:      "https://openreview.net",
		OpenReviewAPI:   "https://api.openreview.net",
		SemanticScholar: "https://api.semanticscholar.org/graph/v1",
	}
}

// Config configures a Fetcher.
type Config struct {
	HTTPClient *http.Client
	UserAgent  string

	// Email identifies us to Unpaywall.
	Email string
	// SemanticScholarKey is sent as x-api-key when set.
	SemanticScholarKey string

	MaxSizeMB int
	// Timeout bounds each HTTP attempt.
	Timeout time.Duration
	// Attempts is the download retry ceiling.
	Attempts uint
	// RetryDelay is the backoff base between download attempts.
	RetryDelay time.Duration
	// RequestsPerSecond throttles metadata API calls.
	RequestsPerSecond float64

	Endpoints Endpoints
	Logger    *slog.Logger
}

// Document is an acquired paper.
type Document struct {
	Path      string         `json:"path"`
	Link      LinkType       `json:"link_type"`
	SourceURL string         `json:"source_url"`
	PDFURL    string         `json:"pdf_url"`
	Metadata  paper.Metadata `json:"metadata"`
	Pages     int            `json:"pages"`
	PDFTitle  string         `json:"pdf_title,omitempty"`
}

// Fetcher acquires papers.
type Fetcher struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// New creates a Fetcher, filling zero config fields with defaults.
func New(cfg Config) *Fetcher {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "popsci/2.0 (+https://github.com/jackzampolin/popsci)"
	}
	if cfg.MaxSizeMB <= 0 {
		cfg.MaxSizeMB = 50
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Attempts == 0 {
		cfg.Attempts = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 1
	}
	if cfg.Endpoints == (Endpoints{}) {
		cfg.Endpoints = DefaultEndpoints()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Fetcher{
		cfg:     cfg,
		client:  cfg.HTTPClient,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		logger:  cfg.Logger.With("component", "fetch"),
	}
}

// Acquire resolves ref and downloads the paper into dir/source.pdf.
// Every error is an AcquisitionError.
func (f *Fetcher) Acquire(ctx context.Context, ref string, dir string) (*Document, error) {
	r, err := Parse(ref)
	if err != nil {
		return nil, failure.Wrap(failure.Acquisition, "parse reference", err)
	}
	logger := f.logger.With("link_type", r.Type, "ref", r.Raw)
	logger.Info("acquiring paper")

	res, err := f.resolve(ctx, r)
	if err != nil {
		return nil, failure.Wrap(failure.Acquisition, "resolve "+string(r.Type), err)
	}
	logger.Debug("resolved pdf", "pdf_url", res.pdfURL)

	dest := filepath.Join(dir, SourceFile)
	info, err := f.download(ctx, res.pdfURL, dest)
	if err != nil {
		return nil, failure.Wrap(failure.Acquisition, "download", err)
	}

	doc := &Document{
		Path:      dest,
		Link:      r.Type,
		SourceURL: r.Raw,
		PDFURL:    res.pdfURL,
		Metadata:  res.meta,
		Pages:     info.Pages,
		PDFTitle:  info.Title,
	}
	logger.Info("paper acquired", "pages", doc.Pages, "title", doc.Metadata.Title)
	return doc, nil
}

// resolved is a PDF location plus any metadata found on the way.
type resolved struct {
	pdfURL string
	meta   paper.Metadata
}

func (f *Fetcher) resolve(ctx context.Context, r *Reference) (*resolved, error) {
	switch r.Type {
	case LinkArXiv:
		return f.resolveArXiv(ctx, r.ID)
	case LinkDOI:
		return f.resolveDOI(ctx, r)
	case LinkOpenReview:
		return f.resolveOpenReview(ctx, r.ID)
	case LinkSemanticScholar:
		return f.resolveSemanticScholar(ctx, r.ID)
	case LinkPDF:
		return &resolved{pdfURL: r.URL.String()}, nil
	default:
		return f.resolveLanding(ctx, r.URL.String(), paper.Metadata{})
	}
}
