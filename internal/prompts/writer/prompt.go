// Package writer holds the prompts for article text generation.
package writer

import (
	_ "embed"

	"github.com/jackzampolin/popsci/internal/prompts"
)

//go:embed system.tmpl
var systemPrompt string

//go:embed chunk.tmpl
var chunkPromptTmpl string

// Prompt keys
const (
	SystemPromptKey = "stages.writer.system"
	ChunkPromptKey  = "stages.writer.chunk"
)

// SectionBrief is one section the model is asked to write.
type SectionBrief struct {
	Role      string
	Title     string
	KeyPoints []string
	Analogy   string
	Guidance  string
	Source    string
}

// ChunkPromptData is the data for the chunk prompt template.
type ChunkPromptData struct {
	Title          string
	CoreInnovation string
	AnalogyTheme   string
	Sections       []SectionBrief
}

// RegisterPrompts registers the writer prompts with the resolver.
func RegisterPrompts(r *prompts.Resolver) {
	r.Register(prompts.EmbeddedPrompt{
		Key:         SystemPromptKey,
		Text:        systemPrompt,
		Description: "Article writer system prompt - plain-language style rules",
	})
	r.Register(prompts.EmbeddedPrompt{
		Key:         ChunkPromptKey,
		Text:        chunkPromptTmpl,
		Description: "Article writer prompt for one chunk of sections",
	})
}
