package generate

import (
	"strings"

	"github.com/jackzampolin/popsci/internal/paper"
	writerprompt "github.com/jackzampolin/popsci/internal/prompts/writer"
)

const (
	sourceChars       = 1500
	methodSourceChars = 3000
)

var guidance = map[paper.Role]string{
	paper.RoleHero:       "Two or three sentences that make a newcomer want to read on.",
	paper.RoleIntro:      "Open with an everyday scene, ask the reader a question, and end by connecting the scene to the paper. 200 to 300 words.",
	paper.RoleProblem:    "Explain what goes wrong with existing methods using a household analogy, and end by asking what could be done. 300 to 400 words.",
	paper.RoleMethod:     "Walk through the new method step by step (first, then, finally) without numbered lists, using an everyday analogy. 400 to 500 words.",
	paper.RoleResults:    "Let the numbers speak and explain what each one means in daily terms, such as going from walking to driving. 200 to 300 words.",
	paper.RoleImpact:     "Describe three ways this could affect ordinary people, in flowing paragraphs. 300 to 400 words.",
	paper.RoleConclusion: "Restate the core idea in one sentence, pose an open question, and close with a memorable line. 150 to 200 words.",
}

// sourceKeywords picks the paper sections that feed each article role.
var sourceKeywords = map[paper.Role][]string{
	paper.RoleProblem:    {"introduction", "background", "related", "motivation"},
	paper.RoleMethod:     {"method", "approach", "model", "architecture", "design", "framework"},
	paper.RoleResults:    {"experiment", "result", "evaluation", "benchmark"},
	paper.RoleImpact:     {"discussion", "impact", "conclusion"},
	paper.RoleConclusion: {"conclusion", "discussion", "summary"},
}

func briefs(c *paper.Content, o *paper.Outline, numbers []paper.KeyNumber) []writerprompt.SectionBrief {
	out := make([]writerprompt.SectionBrief, 0, len(o.Sections))
	for _, s := range o.Sections {
		b := writerprompt.SectionBrief{
			Role:      string(s.Role),
			Title:     s.Title,
			KeyPoints: s.KeyPoints,
			Analogy:   s.Analogy,
			Guidance:  guidance[s.Role],
			Source:    source(c, s.Role),
		}
		if s.Role == paper.RoleResults && len(numbers) > 0 {
			var lines []string
			for _, n := range numbers {
				lines = append(lines, n.Label+": "+n.Value)
			}
			b.KeyPoints = append(append([]string(nil), b.KeyPoints...), lines...)
		}
		out = append(out, b)
	}
	return out
}

func source(c *paper.Content, role paper.Role) string {
	switch role {
	case paper.RoleHero, paper.RoleIntro:
		return clip(c.Abstract, sourceChars)
	case paper.RoleMethod:
		if s, ok := c.Section(sourceKeywords[role]...); ok {
			return clip(s.Body, methodSourceChars)
		}
		if len(c.Sections) > 2 {
			return clip(c.Sections[2].Body, methodSourceChars)
		}
		return clip(c.Abstract, methodSourceChars)
	}
	var parts []string
	if role == paper.RoleProblem && c.Abstract != "" {
		parts = append(parts, c.Abstract)
	}
	if s, ok := c.Section(sourceKeywords[role]...); ok {
		parts = append(parts, s.Body)
	}
	return clip(strings.Join(parts, "\n\n"), sourceChars)
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && s[n]&0xC0 == 0x80 {
		n--
	}
	return s[:n]
}
