package generate

import (
	"strings"

	"github.com/jackzampolin/popsci/internal/paper"
	writerprompt "github.com/jackzampolin/popsci/internal/prompts/writer"
)

// DefaultBudget is the token budget of one chunk.
const DefaultBudget = 4000

// Chunk is one generation request covering one or more whole sections.
type Chunk struct {
	Ordinal int                         `json:"ordinal"`
	Roles   []paper.Role                `json:"roles"`
	Briefs  []writerprompt.SectionBrief `json:"-"`
	Tokens  int                         `json:"tokens"`
}

// Split groups briefs into chunks of at most budget tokens, in order.
// Chunks break only between sections; a single section over budget forms
// its own chunk.
func Split(briefs []writerprompt.SectionBrief, budget int, counter Counter) []Chunk {
	if budget <= 0 {
		budget = DefaultBudget
	}
	if counter == nil {
		counter = Heuristic{}
	}

	var (
		chunks []Chunk
		cur    Chunk
	)
	for _, b := range briefs {
		t := counter.Count(briefText(b))
		if len(cur.Briefs) > 0 && cur.Tokens+t > budget {
			chunks = append(chunks, cur)
			cur = Chunk{Ordinal: len(chunks)}
		}
		cur.Briefs = append(cur.Briefs, b)
		cur.Roles = append(cur.Roles, paper.Role(b.Role))
		cur.Tokens += t
	}
	if len(cur.Briefs) > 0 {
		chunks = append(chunks, cur)
	}
	return chunks
}

func briefText(b writerprompt.SectionBrief) string {
	return strings.Join([]string{
		b.Role, b.Title, strings.Join(b.KeyPoints, "; "), b.Analogy, b.Guidance, b.Source,
	}, "\n")
}
