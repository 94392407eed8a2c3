package paper

// Role is the semantic purpose of an article section.
type Role string

const (
	RoleHero       Role = "hero"
	RoleIntro      Role = "intro"
	RoleProblem    Role = "problem"
	RoleMethod     Role = "method"
	RoleResults    Role = "results"
	RoleImpact     Role = "impact"
	RoleConclusion Role = "conclusion"

	// RolePaperInfo is the bibliographic section prepended to every article.
	RolePaperInfo Role = "paper_info"

	// RoleComparison keys the illustration contrasting old and new approaches.
	// It is drawn alongside the problem section.
	RoleComparison Role = "comparison"
)

// Roles lists section roles in article order.
var Roles = []Role{RoleHero, RoleIntro, RoleProblem, RoleMethod, RoleResults, RoleImpact, RoleConclusion}

// SectionPlan describes one article section to be written.
type SectionPlan struct {
	Role      Role     `json:"type"`
	Title     string   `json:"title"`
	KeyPoints []string `json:"key_points,omitempty"`
	Analogy   string   `json:"analogy,omitempty"`
}

// IllustrationPrompt is one image to request, keyed by section role.
type IllustrationPrompt struct {
	ID     string `json:"id"`
	Role   Role   `json:"role"`
	Prompt string `json:"prompt"`
}

// Outline is the article plan derived from the content.
type Outline struct {
	ArticleType    string               `json:"article_type"`
	CoreInnovation string               `json:"core_innovation"`
	AnalogyTheme   string               `json:"analogy_theme"`
	Sections       []SectionPlan        `json:"sections"`
	Illustrations  []IllustrationPrompt `json:"illustrations"`
	Default        bool                 `json:"default,omitempty"`
}

// ArticleSection is a generated section of the popular-science article.
type ArticleSection struct {
	Role        Role        `json:"role"`
	Title       string      `json:"title"`
	Body        string      `json:"body"`
	Placeholder bool        `json:"placeholder,omitempty"`
	Image       string      `json:"image,omitempty"`
	KeyNumbers  []KeyNumber `json:"key_numbers,omitempty"`
	Links       []Link      `json:"links,omitempty"`
}

// KeyNumber is a headline figure quoted from the paper.
type KeyNumber struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Link is a labeled URL shown with a section.
type Link struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// IllustrationStatus is the outcome of one image request.
type IllustrationStatus string

const (
	IllustrationGenerated IllustrationStatus = "generated"
	IllustrationFailed    IllustrationStatus = "failed"
	IllustrationSkipped   IllustrationStatus = "skipped"
)

// Illustration records the outcome of one prompt.
type Illustration struct {
	PromptID string             `json:"prompt_id"`
	Role     Role               `json:"role"`
	Status   IllustrationStatus `json:"status"`
	File     string             `json:"file,omitempty"`
	Error    string             `json:"error,omitempty"`
}
