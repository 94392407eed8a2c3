package generate

import (
	"strings"

	"github.com/jackzampolin/popsci/internal/paper"
)

// defaultText is the stand-in body for a section whose chunk failed.
func defaultText(role paper.Role, c *paper.Content, o *paper.Outline, plan paper.SectionPlan, numbers []paper.KeyNumber) string {
	title := clip(c.Title, 80)
	switch role {
	case paper.RoleHero:
		return o.CoreInnovation
	case paper.RoleIntro:
		return "Scenes of " + o.AnalogyTheme + " are all around us. They are a good way into the research behind " + title +
			". So what does everyday life have to do with this paper? Let's find out."
	case paper.RoleProblem:
		pain := "existing methods have real limits"
		if len(plan.KeyPoints) > 0 {
			pain = plan.KeyPoints[0]
		}
		return "Before getting into the paper, it helps to understand one basic problem: " + pain +
			". Current approaches work in some settings, but in practice they are often slow or expensive, " +
			"like cutting vegetables with a blunt knife. Is there a better way?"
	case paper.RoleMethod:
		concepts := "a new way of approaching the problem"
		if len(plan.KeyPoints) > 0 {
			concepts = strings.Join(plan.KeyPoints[:min(3, len(plan.KeyPoints))], ", ")
		}
		return "This is where the paper comes in. The researchers propose a fresh approach built around " + concepts +
			". The design tackles the weak spot of earlier methods head on. By reworking the structure of the algorithm, " +
			"the new method stays accurate while becoming much more efficient, and it carries over to many related problems."
	case paper.RoleResults:
		if len(numbers) > 0 {
			var parts []string
			for _, n := range numbers[:min(3, len(numbers))] {
				parts = append(parts, strings.ToLower(n.Label)+" of "+n.Value)
			}
			return "The experiments show clear gains on the measures that matter, including " + strings.Join(parts, "; ") +
				". These numbers make a strong case for the method."
		}
		return "The experiments show a clear advantage over existing approaches, in both speed and accuracy."
	case paper.RoleImpact:
		return "The significance goes beyond the lab. First, tools built on this work can become faster and easier to use. " +
			"Second, lower costs mean more people can benefit. Third, it lays a foundation for the next round of ideas."
	case paper.RoleConclusion:
		question := "Where will this technology go next?"
		if len(plan.KeyPoints) > 0 {
			question = plan.KeyPoints[0]
		}
		return "Looking back, this work is more than a technical fix; it is a new way of thinking about the problem. " +
			question + " The answer may not be far away."
	}
	return ""
}
