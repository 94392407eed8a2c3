// Package arxiv reads the arXiv Atom API used for paper metadata and
// keyword search.
package arxiv

import (
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// Feed is an arXiv Atom API response.
type Feed struct {
	Entries []Entry `xml:"entry"`
}

// Entry is one paper in a feed.
type Entry struct {
	ID        string   `xml:"id"`
	Title     string   `xml:"title"`
	Summary   string   `xml:"summary"`
	Published string   `xml:"published"`
	Authors   []Author `xml:"author"`
	Links     []Link   `xml:"link"`
	DOI       string   `xml:"http://arxiv.org/schemas/atom doi"`
}

// Author is an entry author.
type Author struct {
	Name string `xml:"name"`
}

// Link is an entry link; the PDF link carries title="pdf".
type Link struct {
	Href  string `xml:"href,attr"`
	Title string `xml:"title,attr"`
	Type  string `xml:"type,attr"`
}

// Parse decodes an Atom feed.
func Parse(r io.Reader) (*Feed, error) {
	var f Feed
	if err := xml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to decode arxiv feed: %w", err)
	}
	for i := range f.Entries {
		e := &f.Entries[i]
		e.Title = Squash(e.Title)
		e.Summary = Squash(e.Summary)
	}
	return &f, nil
}

var (
	idPattern   = regexp.MustCompile(`arxiv\.org/(?:abs|pdf)/(\d{4}\.\d{4,5})`)
	versionTail = regexp.MustCompile(`v\d+$`)
	spaces      = regexp.MustCompile(`\s+`)
)

// IDFromURL extracts a new-style arXiv id ("1706.03762") from a URL.
func IDFromURL(u string) (string, bool) {
	m := idPattern.FindStringSubmatch(u)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ArXivID returns the entry's id without version suffix.
func (e Entry) ArXivID() string {
	if id, ok := IDFromURL(e.ID); ok {
		return id
	}
	i := strings.LastIndex(e.ID, "/")
	return versionTail.ReplaceAllString(e.ID[i+1:], "")
}

// PDFURL returns the entry's PDF link, if any.
func (e Entry) PDFURL() string {
	for _, l := range e.Links {
		if l.Title == "pdf" || l.Type == "application/pdf" {
			return l.Href
		}
	}
	return ""
}

// AbsURL returns the entry's abstract page.
func (e Entry) AbsURL() string {
	if id := e.ArXivID(); id != "" {
		return "https://arxiv.org/abs/" + id
	}
	return e.ID
}

// AuthorNames returns author names in feed order.
func (e Entry) AuthorNames() []string {
	names := make([]string, 0, len(e.Authors))
	for _, a := range e.Authors {
		if n := Squash(a.Name); n != "" {
			names = append(names, n)
		}
	}
	return names
}

// Year returns the publication year, or 0.
func (e Entry) Year() int {
	var y int
	if len(e.Published) >= 4 {
		fmt.Sscanf(e.Published[:4], "%d", &y)
	}
	return y
}

// Month returns the publication month as "YYYY-MM", falling back to the
// date encoded in a new-style id ("2312.00001" is 2023-12).
func Month(published, id string) string {
	if len(published) >= 7 {
		return published[:7]
	}
	if len(id) >= 4 && id[0] >= '0' && id[0] <= '9' {
		return "20" + id[:2] + "-" + id[2:4]
	}
	return ""
}

// Squash collapses runs of whitespace.
func Squash(s string) string {
	return strings.TrimSpace(spaces.ReplaceAllString(s, " "))
}
