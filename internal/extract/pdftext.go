package extract

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/jackzampolin/popsci/internal/paper"
	"github.com/jackzampolin/popsci/internal/pdf"
)

// PDFText reads the text operators of every page and splits the result
// into sections at detected headings.
type PDFText struct{}

func (PDFText) Name() string { return "pdfcpu-text" }

func (PDFText) Extract(ctx context.Context, in Input) (*paper.Content, error) {
	scratch := in.Scratch
	if scratch == "" {
		scratch = filepath.Join(filepath.Dir(in.Path), ".extract")
	}
	pages, err := pdf.PageContents(in.Path, scratch)
	if err != nil {
		return nil, err
	}

	var lines []string
	for _, page := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		lines = append(lines, textLines(page)...)
	}
	if len(lines) == 0 {
		return nil, errors.New("pdf has no extractable text")
	}

	c := base(in)
	preamble, sections := splitSections(lines)
	c.Sections = sections

	if c.Title == "" {
		c.Title = guessTitle(preamble)
	}
	if c.Title == "" {
		c.Title = in.PDFTitle
	}
	if c.Abstract == "" {
		if s, ok := c.Section("abstract"); ok {
			c.Abstract = s.Body
		} else {
			c.Abstract = abstractFromText(strings.Join(preamble, "\n"))
		}
	}
	if c.Institution == "" {
		c.Institution = findInstitution(strings.Join(preamble, "\n"))
	}
	return c, nil
}

var (
	numberedHeading = regexp.MustCompile(`^(\d{1,2}(?:\.\d{1,2})*)\.?\s+([A-Z][^.!?]{1,80})$`)
	romanHeading    = regexp.MustCompile(`^([IVX]+)\.\s+([A-Z][^.!?]{1,80})$`)
	keywordHeading  = regexp.MustCompile(`(?i)^(abstract|introduction|background|related work|method(s|ology)?|approach|experiments?|results|evaluation|discussion|conclusions?|limitations|references|bibliography|acknowledge?ments?|appendix)\s*:?$`)
	level1Keywords  = []string{"introduction", "abstract", "conclusion", "references", "acknowledg", "related work", "experiments"}
)

// headingLevel returns the nesting level of line if it looks like a
// section heading, or 0.
func headingLevel(line string) int {
	line = strings.TrimSpace(line)
	if line == "" || len(line) > 90 {
		return 0
	}
	lower := strings.ToLower(line)

	if m := numberedHeading.FindStringSubmatch(line); m != nil {
		// Reject numbered prose and table rows.
		if len(strings.Fields(m[2])) > 10 {
			return 0
		}
		return strings.Count(m[1], ".") + 1
	}
	if romanHeading.MatchString(line) {
		return 1
	}
	if keywordHeading.MatchString(line) {
		for _, k := range level1Keywords {
			if strings.Contains(lower, k) {
				return 1
			}
		}
		return 2
	}
	return 0
}

// splitSections groups lines under headings. Lines before the first
// heading are returned as the preamble. With no headings the whole text
// becomes one section.
func splitSections(lines []string) (preamble []string, sections []paper.Section) {
	var (
		cur  *paper.Section
		body []string
	)
	closeSection := func() {
		if cur == nil {
			return
		}
		cur.Body = joinBody(body)
		sections = append(sections, *cur)
		body = nil
	}

	for _, l := range lines {
		if lvl := headingLevel(l); lvl > 0 {
			closeSection()
			cur = &paper.Section{Title: strings.TrimSpace(l), Level: lvl}
			continue
		}
		if cur == nil {
			preamble = append(preamble, l)
			continue
		}
		body = append(body, l)
	}
	closeSection()

	if len(sections) == 0 {
		sections = []paper.Section{{Title: "Full Text", Body: joinBody(preamble), Level: 1}}
	}
	return preamble, sections
}

// joinBody rejoins wrapped lines, mending words hyphenated across lines.
func joinBody(lines []string) string {
	var b strings.Builder
	for i, l := range lines {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		if strings.HasSuffix(l, "-") && i+1 < len(lines) {
			b.WriteString(strings.TrimSuffix(l, "-"))
			continue
		}
		b.WriteString(l)
		b.WriteByte('\n')
	}
	return strings.TrimSpace(b.String())
}

// guessTitle picks the first substantial preamble line that is not a
// venue or preprint banner.
func guessTitle(preamble []string) string {
	for i, l := range preamble {
		if i >= 10 {
			break
		}
		lower := strings.ToLower(l)
		if len(l) > 20 && !strings.Contains(lower, "arxiv") &&
			!strings.Contains(lower, "proceedings") && !strings.Contains(lower, "conference") {
			return l
		}
	}
	return ""
}

var inlineAbstract = regexp.MustCompile(`(?is)abstract[\s:.-]*(.+?)(?:\n\s*\n|\n\s*(?:1\.?\s+introduction|introduction|i\.\s))`)

func abstractFromText(text string) string {
	if m := inlineAbstract.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}
