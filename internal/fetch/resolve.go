package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/jackzampolin/popsci/internal/arxiv"
	"github.com/jackzampolin/popsci/internal/paper"
)

func (f *Fetcher) resolveArXiv(ctx context.Context, id string) (*resolved, error) {
	res := &resolved{
		pdfURL: f.cfg.Endpoints.ArXivPDF + id + ".pdf",
		meta:   paper.Metadata{IDs: paper.ExternalIDs{ArXiv: id}},
	}

	entry, err := f.arxivEntry(ctx, id)
	if err != nil {
		// The PDF is still reachable without the feed.
		f.logger.Warn("arxiv metadata unavailable", "arxiv_id", id, "error", err)
		res.meta.Published = arxiv.Month("", id)
		return res, nil
	}
	res.meta.Title = entry.Title
	res.meta.Authors = entry.AuthorNames()
	res.meta.Abstract = entry.Summary
	res.meta.Published = arxiv.Month(entry.Published, id)
	res.meta.IDs.DOI = entry.DOI
	return res, nil
}

func (f *Fetcher) arxivEntry(ctx context.Context, id string) (*arxiv.Entry, error) {
	q := url.Values{"id_list": {id}}
	body, err := f.get(ctx, f.cfg.Endpoints.ArXivAPI+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	feed, err := arxiv.Parse(body)
	if err != nil {
		return nil, err
	}
	if len(feed.Entries) == 0 || feed.Entries[0].Title == "" {
		return nil, errors.New("arxiv feed has no entry")
	}
	return &feed.Entries[0], nil
}

type unpaywallResponse struct {
	Title          string `json:"title"`
	IsOA           bool   `json:"is_oa"`
	PublishedDate  string `json:"published_date"`
	BestOALocation *struct {
		URLForPDF string `json:"url_for_pdf"`
	} `json:"best_oa_location"`
	ZAuthors []struct {
		Given  string `json:"given"`
		Family string `json:"family"`
	} `json:"z_authors"`
}

func (f *Fetcher) resolveDOI(ctx context.Context, r *Reference) (*resolved, error) {
	meta := paper.Metadata{IDs: paper.ExternalIDs{DOI: r.ID}}

	var up unpaywallResponse
	q := url.Values{"email": {f.email()}}
	err := f.getJSON(ctx, f.cfg.Endpoints.Unpaywall+r.ID+"?"+q.Encode(), nil, &up)
	if err == nil {
		meta.Title = up.Title
		meta.Published = up.PublishedDate
		for _, a := range up.ZAuthors {
			if name := strings.TrimSpace(a.Given + " " + a.Family); name != "" {
				meta.Authors = append(meta.Authors, name)
			}
		}
		if up.IsOA && up.BestOALocation != nil && up.BestOALocation.URLForPDF != "" {
			return &resolved{pdfURL: up.BestOALocation.URLForPDF, meta: meta}, nil
		}
	} else {
		f.logger.Warn("unpaywall lookup failed", "doi", r.ID, "error", err)
	}

	// No open-access copy: try the publisher's landing page.
	return f.resolveLanding(ctx, r.URL.String(), meta)
}

type openReviewNotes struct {
	Notes []struct {
		Content map[string]json.RawMessage `json:"content"`
	} `json:"notes"`
}

func (f *Fetcher) resolveOpenReview(ctx context.Context, id string) (*resolved, error) {
	res := &resolved{
		pdfURL: f.cfg.Endpoints.OpenReview + "/pdf?id=" + url.QueryEscape(id),
		meta:   paper.Metadata{IDs: paper.ExternalIDs{OpenReview: id}},
	}

	var notes openReviewNotes
	q := url.Values{"id": {id}}
	if err := f.getJSON(ctx, f.cfg.Endpoints.OpenReviewAPI+"/notes?"+q.Encode(), nil, &notes); err != nil {
		f.logger.Warn("openreview metadata unavailable", "forum", id, "error", err)
		return res, nil
	}
	if len(notes.Notes) > 0 {
		c := notes.Notes[0].Content
		res.meta.Title = openReviewString(c["title"])
		res.meta.Abstract = openReviewString(c["abstract"])
		res.meta.Authors = openReviewStrings(c["authors"])
	}
	return res, nil
}

// openReviewString reads a content field in either the v1 (plain) or v2
// ({"value": ...}) shape.
func openReviewString(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var v struct {
		Value string `json:"value"`
	}
	if json.Unmarshal(raw, &v) == nil {
		return v.Value
	}
	return ""
}

func openReviewStrings(raw json.RawMessage) []string {
	var s []string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var v struct {
		Value []string `json:"value"`
	}
	if json.Unmarshal(raw, &v) == nil {
		return v.Value
	}
	return nil
}

type s2Paper struct {
	PaperID  string `json:"paperId"`
	Title    string `json:"title"`
	Abstract string `json:"abstract"`
	Year     int    `json:"year"`
	Authors  []struct {
		Name string `json:"name"`
	} `json:"authors"`
	OpenAccessPDF *struct {
		URL string `json:"url"`
	} `json:"openAccessPdf"`
	ExternalIDs map[string]any `json:"externalIds"`
}

func (f *Fetcher) resolveSemanticScholar(ctx context.Context, id string) (*resolved, error) {
	var p s2Paper
	q := url.Values{"fields": {"title,authors,abstract,year,openAccessPdf,externalIds"}}
	if err := f.getJSON(ctx, f.cfg.Endpoints.SemanticScholar+"/paper/"+url.PathEscape(id)+"?"+q.Encode(), f.s2Headers(), &p); err != nil {
		return nil, fmt.Errorf("semantic scholar lookup: %w", err)
	}

	meta := paper.Metadata{
		Title:    p.Title,
		Abstract: p.Abstract,
		IDs:      paper.ExternalIDs{SemanticScholar: id},
	}
	if p.Year > 0 {
		meta.Published = strconv.Itoa(p.Year)
	}
	for _, a := range p.Authors {
		meta.Authors = append(meta.Authors, a.Name)
	}
	if doi, ok := p.ExternalIDs["DOI"].(string); ok {
		meta.IDs.DOI = doi
	}
	arxivID, _ := p.ExternalIDs["ArXiv"].(string)
	meta.IDs.ArXiv = arxivID

	if p.OpenAccessPDF != nil && p.OpenAccessPDF.URL != "" {
		return &resolved{pdfURL: p.OpenAccessPDF.URL, meta: meta}, nil
	}
	if arxivID != "" {
		res, err := f.resolveArXiv(ctx, arxivID)
		if err != nil {
			return nil, err
		}
		res.meta.IDs.SemanticScholar = id
		return res, nil
	}
	return nil, errors.New("no open-access pdf on semantic scholar; try the arXiv or DOI link")
}

func (f *Fetcher) email() string {
	if f.cfg.Email != "" {
		return f.cfg.Email
	}
	return "popsci@example.com"
}

func (f *Fetcher) s2Headers() http.Header {
	h := http.Header{}
	if f.cfg.SemanticScholarKey != "" {
		h.Set("x-api-key", f.cfg.SemanticScholarKey)
	}
	return h
}

// get performs a throttled GET and returns the body of a 200 response.
func (f *Fetcher) get(ctx context.Context, u string, header http.Header) (io.ReadCloser, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		cancel()
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("%s returned %s", req.URL.Host, resp.Status)
	}
	return &cancelBody{ReadCloser: resp.Body, cancel: cancel}, nil
}

func (f *Fetcher) getJSON(ctx context.Context, u string, header http.Header, v any) error {
	body, err := f.get(ctx, u, header)
	if err != nil {
		return err
	}
	defer body.Close()
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// cancelBody releases the request context when the body is closed.
type cancelBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}
