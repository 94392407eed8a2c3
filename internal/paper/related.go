package paper

// Relation describes how a related work connects to the source paper.
type Relation string

const (
	RelationRecommended  Relation = "recommended"
	RelationCites        Relation = "cites"
	RelationCitedBy      Relation = "cited-by"
	RelationSimilarTopic Relation = "similar-topic"
	RelationManualSearch Relation = "manual-search-link"
)

// Tier names the recommendation strategy that produced an item.
type Tier string

const (
	TierSemanticScholar Tier = "semantic_scholar"
	TierArXiv           Tier = "arxiv"
	TierKeywordLinks    Tier = "keyword_links"
	TierGuidance        Tier = "generic_guidance"
)

// Related is one discovered related work.
type Related struct {
	ID        string   `json:"id,omitempty"`
	Title     string   `json:"title"`
	Authors   string   `json:"authors,omitempty"`
	Year      int      `json:"year,omitempty"`
	Citations int      `json:"citation_count,omitempty"`
	Abstract  string   `json:"abstract,omitempty"`
	URL       string   `json:"url,omitempty"`
	PDFURL    string   `json:"pdf_url,omitempty"`
	Source    Tier     `json:"source_tier"`
	Relation  Relation `json:"relation"`
}

// Recommendations is the cascade's output.
type Recommendations struct {
	Tier     Tier      `json:"tier"`
	Items    []Related `json:"items"`
	Keywords []string  `json:"keywords,omitempty"`
	// Attempts lists each tier tried before Tier, with the reason it was passed over.
	Attempts []TierAttempt `json:"attempts,omitempty"`
}

// TierAttempt records one tier that did not produce results.
type TierAttempt struct {
	Tier  Tier   `json:"tier"`
	Error string `json:"error"`
}

// ByRelation partitions items by relation, preserving order.
func (r *Recommendations) ByRelation() map[Relation][]Related {
	out := make(map[Relation][]Related)
	for _, it := range r.Items {
		out[it.Relation] = append(out[it.Relation], it)
	}
	return out
}
