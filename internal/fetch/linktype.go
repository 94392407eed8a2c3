package fetch

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/jackzampolin/popsci/internal/arxiv"
)

// LinkType classifies a paper reference.
type LinkType string

const (
	LinkArXiv           LinkType = "arxiv"
	LinkDOI             LinkType = "doi"
	LinkOpenReview      LinkType = "openreview"
	LinkSemanticScholar LinkType = "semanticscholar"
	LinkPDF             LinkType = "pdf_direct"
	LinkGeneric         LinkType = "generic"
)

// ErrMalformed is returned for references that are neither a URL nor a DOI.
var ErrMalformed = errors.New("malformed reference")

// Reference is a parsed paper reference.
type Reference struct {
	Raw  string
	URL  *url.URL
	Type LinkType
	// ID is the normalized identifier for the link type (arXiv id, DOI,
	// OpenReview forum id, Semantic Scholar paper id). Empty for pdf/generic.
	ID string
}

var (
	bareDOI = regexp.MustCompile(`^10\.\d{4,9}/\S+$`)
	s2ID    = regexp.MustCompile(`/paper/(?:[^/]+/)?([0-9a-fA-F]{40}|[0-9a-fA-F]{32}|[^/]+)$`)
)

// Parse classifies raw into a Reference.
func Parse(raw string) (*Reference, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty", ErrMalformed)
	}

	doi := strings.TrimPrefix(strings.TrimPrefix(raw, "doi:"), "DOI:")
	if bareDOI.MatchString(doi) {
		u, _ := url.Parse("https://doi.org/" + doi)
		return &Reference{Raw: raw, URL: u, Type: LinkDOI, ID: doi}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q is not an http(s) URL or DOI", ErrMalformed, raw)
	}

	ref := &Reference{Raw: raw, URL: u, Type: LinkGeneric}
	host := strings.ToLower(strings.TrimPrefix(u.Hostname(), "www."))
	switch {
	case strings.HasSuffix(host, "arxiv.org"):
		if id, ok := arxiv.IDFromURL(host + u.Path); ok {
			ref.Type, ref.ID = LinkArXiv, id
		}
	case host == "doi.org" || host == "dx.doi.org":
		if id := strings.Trim(u.Path, "/"); bareDOI.MatchString(id) {
			ref.Type, ref.ID = LinkDOI, id
		}
	case strings.HasSuffix(host, "openreview.net"):
		if id := u.Query().Get("id"); id != "" {
			ref.Type, ref.ID = LinkOpenReview, id
		}
	case strings.HasSuffix(host, "semanticscholar.org"):
		if m := s2ID.FindStringSubmatch(strings.TrimSuffix(u.Path, "/")); m != nil {
			ref.Type, ref.ID = LinkSemanticScholar, m[1]
		}
	}
	if ref.Type == LinkGeneric && strings.EqualFold(path.Ext(u.Path), ".pdf") {
		ref.Type = LinkPDF
	}
	return ref, nil
}
