// Package paper defines the data passed between pipeline stages: the
// structured content of a paper, its outline, generated sections,
// illustrations and related work.
package paper

import "strings"

// ExternalIDs are normalized identifiers for a paper.
type ExternalIDs struct {
	ArXiv           string `json:"arxiv,omitempty"`
	DOI             string `json:"doi,omitempty"`
	SemanticScholar string `json:"semantic_scholar,omitempty"`
	OpenReview      string `json:"openreview,omitempty"`
}

// Empty reports whether no identifier is known.
func (e ExternalIDs) Empty() bool {
	return e.ArXiv == "" && e.DOI == "" && e.SemanticScholar == "" && e.OpenReview == ""
}

// Metadata is what can be learned about a paper without reading its body.
type Metadata struct {
	Title     string      `json:"title,omitempty"`
	Authors   []string    `json:"authors,omitempty"`
	Abstract  string      `json:"abstract,omitempty"`
	Published string      `json:"published,omitempty"`
	IDs       ExternalIDs `json:"ids"`
}

// Section is one heading and its body text in the source paper.
type Section struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Level int    `json:"level"`
}

// Content is the structured content extracted from a paper. It is
// produced once per task and not modified afterwards.
type Content struct {
	Title          string      `json:"title"`
	Authors        []string    `json:"authors"`
	Abstract       string      `json:"abstract"`
	Institution    string      `json:"institution,omitempty"`
	Published      string      `json:"published,omitempty"`
	IDs            ExternalIDs `json:"ids"`
	Sections       []Section   `json:"sections"`
	Figures        []string    `json:"figures"`
	ReferenceCount int         `json:"reference_count"`
	Strategy       string      `json:"strategy"`
}

// FullText joins all section bodies.
func (c *Content) FullText() string {
	var b strings.Builder
	for _, s := range c.Sections {
		if s.Title != "" {
			b.WriteString(s.Title)
			b.WriteString("\n")
		}
		b.WriteString(s.Body)
		b.WriteString("\n\n")
	}
	return b.String()
}

// Section returns the first section whose title contains any of the keywords.
func (c *Content) Section(keywords ...string) (Section, bool) {
	for _, s := range c.Sections {
		title := strings.ToLower(s.Title)
		for _, k := range keywords {
			if strings.Contains(title, k) {
				return s, true
			}
		}
	}
	return Section{}, false
}

// AuthorLine formats up to three authors, adding "et al." for more.
func AuthorLine(authors []string) string {
	if len(authors) == 0 {
		return ""
	}
	if len(authors) > 3 {
		return strings.Join(authors[:3], ", ") + " et al."
	}
	return strings.Join(authors, ", ")
}
