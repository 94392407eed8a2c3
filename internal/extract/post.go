package extract

import (
	"regexp"
	"strings"

	"github.com/jackzampolin/popsci/internal/paper"
)

const (
	maxAbstract       = 3000
	institutionWindow = 2000
	minInstitutionLen = 6
	maxInstitutionLen = 99
)

var (
	spaceRun = regexp.MustCompile(`\s+`)

	institutionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)([^\n]*?(?:university|college|institute|laboratory|lab\b|研究所|大学|学院)[^\n]{0,50})`),
		regexp.MustCompile(`(?i)([^\n]*?(?:dept\.|department)[^\n]{0,50})`),
		regexp.MustCompile(`(?i)([^\n]*?(?:school of)[^\n]{0,50})`),
	}

	figureCaption = regexp.MustCompile(`(?m)^\s*(?:Figure|Fig\.)\s*(\d+)\s*[:.]\s*(.+)$`)
	bracketRef    = regexp.MustCompile(`(?m)^\s*\[\d+\]`)
	numberedRef   = regexp.MustCompile(`(?m)^\s*\d{1,3}\.\s+\S`)
)

func squash(s string) string {
	return strings.TrimSpace(spaceRun.ReplaceAllString(strings.ReplaceAll(s, "\x00", ""), " "))
}

// postProcess normalizes content in place.
func postProcess(c *paper.Content) {
	c.Title = squash(c.Title)

	authors := c.Authors[:0]
	for _, a := range c.Authors {
		if a = squash(a); a != "" {
			authors = append(authors, a)
		}
	}
	c.Authors = authors

	c.Abstract = squash(c.Abstract)
	if len(c.Abstract) > maxAbstract {
		c.Abstract = truncateRunes(c.Abstract, maxAbstract) + "..."
	}

	text := c.FullText()
	if c.Institution == "" {
		c.Institution = findInstitution(text)
	}
	c.Figures = figureCaptions(text)
	c.ReferenceCount = referenceCount(c)
}

func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8Start(s[n]) {
		n--
	}
	return s[:n]
}

func utf8Start(b byte) bool { return b&0xC0 != 0x80 }

func findInstitution(text string) string {
	if len(text) > institutionWindow {
		text = truncateRunes(text, institutionWindow)
	}
	for _, re := range institutionPatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			inst := squash(m[1])
			if len(inst) >= minInstitutionLen && len(inst) <= maxInstitutionLen {
				return inst
			}
		}
	}
	return ""
}

func figureCaptions(text string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range figureCaption.FindAllStringSubmatch(text, -1) {
		if seen[m[1]] {
			continue
		}
		seen[m[1]] = true
		out = append(out, "Figure "+m[1]+": "+squash(m[2]))
	}
	return out
}

func referenceCount(c *paper.Content) int {
	s, ok := c.Section("references", "bibliography")
	if !ok {
		return 0
	}
	if n := len(bracketRef.FindAllString(s.Body, -1)); n > 0 {
		return n
	}
	return len(numberedRef.FindAllString(s.Body, -1))
}
