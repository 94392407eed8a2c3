// Package illustration holds the image prompt templates.
package illustration

import (
	_ "embed"

	"github.com/jackzampolin/popsci/internal/prompts"
)

//go:embed illustration.tmpl
var promptTmpl string

// PromptKey is the key of the illustration prompt.
const PromptKey = "stages.illustration.prompt"

// PromptData is the data for the illustration template.
type PromptData struct {
	Role  string
	Title string
	Topic string
}

// RegisterPrompts registers the illustration prompt with the resolver.
func RegisterPrompts(r *prompts.Resolver) {
	r.Register(prompts.EmbeddedPrompt{
		Key:         PromptKey,
		Text:        promptTmpl,
		Description: "Illustration prompt, branching on the section role",
	})
}
