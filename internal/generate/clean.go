package generate

import (
	"regexp"
	"strings"
)

var cleanups = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile("^```\\w*\\n?"), ""},
	{regexp.MustCompile("\\n?```$"), ""},
	{regexp.MustCompile(`(?m)^#{1,6}\s*`), ""},
	{regexp.MustCompile(`\*\*([^*]+)\*\*`), "$1"},
	{regexp.MustCompile(`\*([^*\n]+)\*`), "$1"},
	{regexp.MustCompile(`__([^_]+)__`), "$1"},
	{regexp.MustCompile(`(^|\s)_([^_\n]+)_`), "$1$2"},
	{regexp.MustCompile(`(?m)^\s*[-*+]\s+`), ""},
	{regexp.MustCompile(`(?m)^\s*\d+\.\s+`), ""},
	{regexp.MustCompile(`\$\$[^$]*\$\$`), ""},
	{regexp.MustCompile(`\$[^$]*\$`), ""},
	{regexp.MustCompile(`(?m)^\s*>\s*`), ""},
	{regexp.MustCompile(`\n{3,}`), "\n\n"},
}

// Clean strips Markdown and LaTeX from model output.
func Clean(text string) string {
	text = strings.TrimSpace(text)
	for _, c := range cleanups {
		text = c.re.ReplaceAllString(text, c.repl)
	}
	return strings.TrimSpace(text)
}

var marker = regexp.MustCompile(`(?m)^[ \t]*=+[ \t]*([a-z_]+)[ \t]*=+[ \t]*$`)

// splitOutput maps each marked role in a chunk response to its text. A
// response without markers belongs to the chunk's only role.
func splitOutput(out string, roles []string) map[string]string {
	res := make(map[string]string)
	locs := marker.FindAllStringSubmatchIndex(out, -1)
	if len(locs) == 0 {
		if len(roles) == 1 {
			res[roles[0]] = out
		}
		return res
	}
	for i, loc := range locs {
		role := out[loc[2]:loc[3]]
		end := len(out)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		if _, dup := res[role]; dup {
			continue
		}
		res[role] = out[loc[1]:end]
	}
	return res
}
