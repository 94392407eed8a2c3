package generate

import (
	"regexp"

	"github.com/jackzampolin/popsci/internal/paper"
)

const (
	keyNumberWindow   = 5000
	keyNumbersPerKind = 2
)

var keyNumberPatterns = []struct {
	label  string
	suffix string
	re     *regexp.Regexp
}{
	{"Speedup", "× faster", regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*[×x]\s*faster`)},
	{"Accuracy", "% accuracy", regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*%\s*accuracy`)},
	{"Memory", " GB", regexp.MustCompile(`(\d+(?:\.\d+)?)\s*GB\b`)},
	{"Time", " s", regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s*(?:seconds?|s)\b`)},
}

// KeyNumbers pulls headline figures from the start of the paper text.
func KeyNumbers(c *paper.Content) []paper.KeyNumber {
	text := c.FullText()
	if len(text) > keyNumberWindow {
		text = text[:keyNumberWindow]
	}

	var out []paper.KeyNumber
	for _, p := range keyNumberPatterns {
		seen := make(map[string]bool)
		for _, m := range p.re.FindAllStringSubmatch(text, -1) {
			if len(seen) == keyNumbersPerKind {
				break
			}
			if seen[m[1]] {
				continue
			}
			seen[m[1]] = true
			out = append(out, paper.KeyNumber{Label: p.label, Value: m[1] + p.suffix})
		}
	}
	return out
}
