// Package prompts provides prompt management with embedded defaults and
// on-disk overrides.
//
// Embedded .tmpl files in code are the source of truth for defaults. An
// operator may override any prompt by placing <key>.tmpl in the prompts
// directory under the popsci home.
//
// Resolution order:
//  1. Override file (if present)
//  2. Embedded default
package prompts

// EmbeddedPrompt represents a prompt loaded from an embedded .tmpl file.
type EmbeddedPrompt struct {
	Key         string   // Hierarchical key: stages.outline.system
	Text        string   // The prompt text (Go template)
	Description string   // Human-readable description
	Variables   []string // Extracted template variables
	Hash        string   // SHA256 hash of the text for change detection
}

// ResolvedPrompt is the result of resolving a prompt.
type ResolvedPrompt struct {
	Key        string   `json:"key"`
	Text       string   `json:"text"`
	Variables  []string `json:"variables,omitempty"`
	IsOverride bool     `json:"is_override"`
	Hash       string   `json:"hash"`
}
