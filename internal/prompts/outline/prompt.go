// Package outline holds the prompts for article planning.
package outline

import (
	_ "embed"

	"github.com/jackzampolin/popsci/internal/prompts"
)

//go:embed system.tmpl
var systemPrompt string

//go:embed user.tmpl
var userPromptTmpl string

// Prompt keys
const (
	SystemPromptKey = "stages.outline.system"
	UserPromptKey   = "stages.outline.user"
)

// SectionExcerpt is one source section shown to the planner.
type SectionExcerpt struct {
	Title   string
	Excerpt string
}

// UserPromptData is the data for the user prompt template.
type UserPromptData struct {
	Title    string
	Abstract string
	Sections []SectionExcerpt
}

// RegisterPrompts registers the outline prompts with the resolver.
func RegisterPrompts(r *prompts.Resolver) {
	r.Register(prompts.EmbeddedPrompt{
		Key:         SystemPromptKey,
		Text:        systemPrompt,
		Description: "Outline planning system prompt - returns the article plan as JSON",
	})
	r.Register(prompts.EmbeddedPrompt{
		Key:         UserPromptKey,
		Text:        userPromptTmpl,
		Description: "Outline planning user prompt template",
	})
}
