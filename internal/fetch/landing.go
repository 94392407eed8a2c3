package fetch

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jackzampolin/popsci/internal/paper"
)

// Landing is what a publisher page says about the paper in its meta tags.
type Landing struct {
	PDFURL   string
	Title    string
	Authors  []string
	Abstract string
	DOI      string
	Date     string
}

// ParseLanding reads Highwire/Dublin Core/OpenGraph meta tags. Relative
// PDF links are resolved against base.
func ParseLanding(doc *goquery.Document, base *url.URL) Landing {
	meta := func(names ...string) string {
		for _, n := range names {
			sel := doc.Find(fmt.Sprintf(`meta[name="%s"], meta[property="%s"]`, n, n)).First()
			if v, ok := sel.Attr("content"); ok && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v)
			}
		}
		return ""
	}

	l := Landing{
		PDFURL:   meta("citation_pdf_url"),
		Title:    meta("citation_title", "dc.title", "og:title"),
		Abstract: meta("citation_abstract", "dc.description", "description", "og:description"),
		DOI:      meta("citation_doi", "dc.identifier"),
		Date:     meta("citation_publication_date", "citation_date", "dc.date"),
	}
	doc.Find(`meta[name="citation_author"]`).Each(func(_ int, s *goquery.Selection) {
		if v, ok := s.Attr("content"); ok && strings.TrimSpace(v) != "" {
			l.Authors = append(l.Authors, strings.TrimSpace(v))
		}
	})
	if l.Title == "" {
		l.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	if l.PDFURL != "" && base != nil {
		if u, err := base.Parse(l.PDFURL); err == nil {
			l.PDFURL = u.String()
		}
	}
	l.DOI = strings.TrimPrefix(l.DOI, "doi:")
	return l
}

// resolveLanding fetches a page and follows its citation_pdf_url. A page
// that is itself a PDF resolves to its own URL.
func (f *Fetcher) resolveLanding(ctx context.Context, pageURL string, meta paper.Metadata) (*resolved, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/pdf;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request landing page: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("landing page returned %s", resp.Status)
	}

	final := resp.Request.URL
	if mt, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); mt == "application/pdf" {
		return &resolved{pdfURL: final.String(), meta: meta}, nil
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse landing page: %w", err)
	}
	l := ParseLanding(doc, final)
	if l.PDFURL == "" {
		return nil, errors.New("landing page has no citation_pdf_url")
	}

	if meta.Title == "" {
		meta.Title = l.Title
	}
	if len(meta.Authors) == 0 {
		meta.Authors = l.Authors
	}
	if meta.Abstract == "" {
		meta.Abstract = l.Abstract
	}
	if meta.Published == "" {
		meta.Published = l.Date
	}
	if meta.IDs.DOI == "" {
		meta.IDs.DOI = l.DOI
	}
	return &resolved{pdfURL: l.PDFURL, meta: meta}, nil
}
