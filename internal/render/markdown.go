package render

import (
	"fmt"
	"strings"

	"github.com/jackzampolin/popsci/internal/paper"
)

// Markdown returns the article as Markdown.
func Markdown(a Article) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# %s\n\n", a.Title)
	if a.Subtitle != "" {
		fmt.Fprintf(&sb, "*%s*\n\n", a.Subtitle)
	}
	if a.Authors != "" {
		fmt.Fprintf(&sb, "%s\n\n", a.Authors)
	}

	for _, s := range a.Sections {
		fmt.Fprintf(&sb, "## %s\n\n", s.Title)
		if s.Image != "" {
			fmt.Fprintf(&sb, "![%s](%s)\n\n", s.Title, s.Image)
		}
		for _, p := range Paragraphs(s.Body) {
			sb.WriteString(p)
			sb.WriteString("\n\n")
		}
		if len(s.KeyNumbers) > 0 {
			sb.WriteString("**Key numbers**\n\n")
			for _, kn := range s.KeyNumbers {
				fmt.Fprintf(&sb, "- **%s** %s\n", kn.Value, kn.Label)
			}
			sb.WriteString("\n")
		}
		for _, l := range s.Links {
			fmt.Fprintf(&sb, "- [%s](%s)\n", l.Label, l.URL)
		}
		if len(s.Links) > 0 {
			sb.WriteString("\n")
		}
	}

	if groups := a.RelatedGroups(); len(groups) > 0 {
		sb.WriteString("## Related Work\n\n")
		for _, g := range groups {
			fmt.Fprintf(&sb, "### %s\n\n", g.Heading)
			for _, it := range g.Items {
				sb.WriteString("- ")
				sb.WriteString(RelatedLine(it))
				sb.WriteString("\n")
			}
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// WriteMarkdown writes the Markdown rendering to path.
func WriteMarkdown(path string, a Article) error {
	return writeFile(path, []byte(Markdown(a)))
}

// RelatedLine formats one related work as a Markdown list entry body.
func RelatedLine(it paper.Related) string {
	line := it.Title
	if it.URL != "" {
		line = fmt.Sprintf("[%s](%s)", it.Title, it.URL)
	}
	var meta []string
	if it.Authors != "" {
		meta = append(meta, it.Authors)
	}
	if it.Year > 0 {
		meta = append(meta, fmt.Sprint(it.Year))
	}
	if len(meta) > 0 {
		line += " (" + strings.Join(meta, ", ") + ")"
	}
	if it.Abstract != "" {
		line += ": " + it.Abstract
	}
	return line
}
