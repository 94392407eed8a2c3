package epub

import (
	"regexp"
	"strings"
)

// generateChapterXHTML converts a chapter's text to XHTML.
func (b *Builder) generateChapterXHTML(ch Chapter) string {
	var sb strings.Builder

	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml">
<head>
  <title>`)
	sb.WriteString(escapeXML(ch.Title))
	sb.WriteString(`</title>
  <link rel="stylesheet" type="text/css" href="../styles/style.css"/>
</head>
<body>
<h1>`)
	sb.WriteString(escapeXML(ch.Title))
	sb.WriteString("</h1>\n")

	if name, ok := b.images[ch.ID]; ok {
		sb.WriteString(`<div class="figure"><img src="../images/`)
		sb.WriteString(name)
		sb.WriteString(`" alt=""/></div>` + "\n")
	}

	sb.WriteString(markdownToXHTML(ch.Text))
	sb.WriteString("</body>\n</html>\n")

	return sb.String()
}

// markdownToXHTML converts lightweight markdown to XHTML. Blank lines
// separate paragraphs; "- " lines form lists.
func markdownToXHTML(md string) string {
	var result strings.Builder
	var inParagraph, inList bool

	closeBlocks := func() {
		if inParagraph {
			result.WriteString("</p>\n")
			inParagraph = false
		}
		if inList {
			result.WriteString("</ul>\n")
			inList = false
		}
	}

	for _, line := range strings.Split(md, "\n") {
		trimmed := strings.TrimSpace(line)

		switch {
		case trimmed == "":
			closeBlocks()
		case strings.HasPrefix(trimmed, "## "):
			closeBlocks()
			result.WriteString("<h2>")
			result.WriteString(processInlineFormatting(strings.TrimPrefix(trimmed, "## ")))
			result.WriteString("</h2>\n")
		case strings.HasPrefix(trimmed, "- "):
			if inParagraph {
				result.WriteString("</p>\n")
				inParagraph = false
			}
			if !inList {
				result.WriteString("<ul>\n")
				inList = true
			}
			result.WriteString("<li>")
			result.WriteString(processInlineFormatting(strings.TrimPrefix(trimmed, "- ")))
			result.WriteString("</li>\n")
		case trimmed == "---":
			closeBlocks()
			result.WriteString("<hr/>\n")
		default:
			if inList {
				result.WriteString("</ul>\n")
				inList = false
			}
			if inParagraph {
				result.WriteString(" ")
			} else {
				result.WriteString("<p>")
				inParagraph = true
			}
			result.WriteString(processInlineFormatting(trimmed))
		}
	}
	closeBlocks()

	return result.String()
}

var (
	linkRe   = regexp.MustCompile(`\[([^\]]+)\]\(([^)\s]+)\)`)
	boldRe   = regexp.MustCompile(`\*\*(.+?)\*\*`)
	italicRe = regexp.MustCompile(`\*([^*]+)\*`)
)

// processInlineFormatting handles links, bold and italic.
func processInlineFormatting(text string) string {
	text = escapeXML(text)
	text = linkRe.ReplaceAllString(text, `<a href="$2">$1</a>`)
	text = boldRe.ReplaceAllString(text, "<strong>$1</strong>")
	text = italicRe.ReplaceAllString(text, "<em>$1</em>")
	return text
}
