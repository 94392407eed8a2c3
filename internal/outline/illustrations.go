package outline

import (
	"strings"

	"github.com/jackzampolin/popsci/internal/paper"
	illustrationprompt "github.com/jackzampolin/popsci/internal/prompts/illustration"
)

// illustrationOrder lists the image roles in request order, each with the
// section that must be planned for it to be drawn.
var illustrationOrder = []struct {
	role    paper.Role
	section paper.Role
}{
	{paper.RoleHero, paper.RoleHero},
	{paper.RoleIntro, paper.RoleIntro},
	{paper.RoleMethod, paper.RoleMethod},
	{paper.RoleComparison, paper.RoleProblem},
	{paper.RoleConclusion, paper.RoleConclusion},
}

func (p *Planner) illustrations(o *paper.Outline, c *paper.Content) []paper.IllustrationPrompt {
	planned := make(map[paper.Role]paper.SectionPlan, len(o.Sections))
	for _, s := range o.Sections {
		planned[s.Role] = s
	}

	title := clip(c.Title, 80)
	var out []paper.IllustrationPrompt
	for _, ill := range illustrationOrder {
		s, ok := planned[ill.section]
		if !ok && ill.role != paper.RoleHero {
			continue
		}
		topic := "the core method"
		if ill.role == paper.RoleMethod && len(s.KeyPoints) > 0 {
			n := min(2, len(s.KeyPoints))
			topic = strings.Join(s.KeyPoints[:n], " and ")
		}
		text, err := p.prompts.Render(illustrationprompt.PromptKey, illustrationprompt.PromptData{
			Role:  string(ill.role),
			Title: title,
			Topic: topic,
		})
		if err != nil {
			p.logger.Warn("failed to render illustration prompt", "role", ill.role, "error", err)
			continue
		}
		out = append(out, paper.IllustrationPrompt{
			ID:     string(ill.role),
			Role:   ill.role,
			Prompt: strings.TrimSpace(text),
		})
	}
	return out
}
