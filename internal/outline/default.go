package outline

import "github.com/jackzampolin/popsci/internal/paper"

// Default is the outline used when planning fails.
func Default(c *paper.Content) *paper.Outline {
	title := c.Title
	if title == "" {
		title = "Inside a New Research Paper"
	}
	return &paper.Outline{
		ArticleType:    "technical innovation",
		CoreInnovation: "This article explains the core idea behind " + title + ".",
		AnalogyTheme:   "everyday life",
		Default:        true,
		Sections: []paper.SectionPlan{
			{Role: paper.RoleHero, Title: title, KeyPoints: []string{"A research result worth paying attention to"}},
			{Role: paper.RoleIntro, Title: "Starting From Everyday Life", Analogy: "This technology is closer to daily life than it looks"},
			{Role: paper.RoleProblem, Title: "The Problem", KeyPoints: []string{"Existing methods struggle with efficiency and accuracy"}},
			{Role: paper.RoleMethod, Title: "The Solution", KeyPoints: []string{"the core method", "the key technique"}},
			{Role: paper.RoleResults, Title: "The Results"},
			{Role: paper.RoleImpact, Title: "Why It Matters", KeyPoints: []string{"more efficient tools", "better everyday experiences"}},
			{Role: paper.RoleConclusion, Title: "Looking Ahead", KeyPoints: []string{"How will this change what comes next?"}},
		},
	}
}
