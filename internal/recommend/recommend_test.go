package recommend

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/jackzampolin/popsci/internal/paper"
)

const mambaTitle = "Selective State Spaces for Sequence Modeling with Selective Scan"

const searchFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>http://arxiv.org/abs/2312.00752v2</id>
    <published>2023-12-01T18:01:34Z</published>
    <title>Mamba: Linear-Time Sequence Modeling</title>
    <summary>The paper itself.</summary>
    <author><name>Albert Gu</name></author>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/2111.00396v3</id>
    <published>2021-10-31T12:00:00Z</published>
    <title>Efficiently Modeling Long Sequences with Structured State Spaces</title>
    <summary>A central goal of sequence modeling is designing a single principled model.</summary>
    <author><name>Albert Gu</name></author>
    <author><name>Karan Goel</name></author>
    <link href="http://arxiv.org/pdf/2111.00396v3" title="pdf" type="application/pdf"/>
  </entry>
</feed>`

const s2Recs = `{"recommendedPapers":[
  {"paperId":"p1","title":"Hungry Hungry Hippos","year":2022,"citationCount":300,
   "authors":[{"name":"Dan Fu"},{"name":"Tri Dao"}],"abstract":"State space models.","url":"https://s2/p1"},
  {"paperId":"p2","title":"RWKV","year":2023,"authors":[{"name":"Bo Peng"}],
   "openAccessPdf":{"url":"https://s2/p2.pdf"}}
]}`

type stubs struct {
	*httptest.Server
	s2Hits    atomic.Int32
	arxivHits atomic.Int32

	s2Status    int
	arxivStatus int
	// emptyRecs makes the recommendations endpoint answer with no papers.
	emptyRecs bool
}

func newStubs(t *testing.T, s2Status, arxivStatus int) *stubs {
	t.Helper()
	s := &stubs{s2Status: s2Status, arxivStatus: arxivStatus}

	mux := http.NewServeMux()
	mux.HandleFunc("/recommendations/v1/papers/forpaper/", func(w http.ResponseWriter, r *http.Request) {
		s.s2Hits.Add(1)
		if s.s2Status != http.StatusOK {
			w.WriteHeader(s.s2Status)
			return
		}
		if !strings.HasSuffix(r.URL.Path, "/arXiv:2312.00752") {
			http.NotFound(w, r)
			return
		}
		if s.emptyRecs {
			fmt.Fprint(w, `{"recommendedPapers":[]}`)
			return
		}
		fmt.Fprint(w, s2Recs)
	})
	mux.HandleFunc("/graph/v1/paper/", func(w http.ResponseWriter, r *http.Request) {
		s.s2Hits.Add(1)
		if s.s2Status != http.StatusOK {
			w.WriteHeader(s.s2Status)
			return
		}
		switch {
		case strings.HasSuffix(r.URL.Path, "/citations"):
			fmt.Fprint(w, `{"data":[{"citingPaper":{"paperId":"c1","title":"Jamba","year":2024}}]}`)
		case strings.HasSuffix(r.URL.Path, "/references"):
			fmt.Fprint(w, `{"data":[{"citedPaper":{"paperId":"r1","title":"S4","year":2021}},{"citedPaper":{"paperId":"r2"}}]}`)
		default:
			http.NotFound(w, r)
		}
	})
	mux.HandleFunc("/api/query", func(w http.ResponseWriter, r *http.Request) {
		s.arxivHits.Add(1)
		if s.arxivStatus != http.StatusOK {
			w.WriteHeader(s.arxivStatus)
			return
		}
		fmt.Fprint(w, searchFeed)
	})

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func (s *stubs) cascade() *Cascade {
	return NewCascade(nil,
		NewSemanticScholar(SemanticScholarConfig{BaseURL: s.URL, Limiter: NewLimiter(0)}),
		NewArXiv(ArXivConfig{BaseURL: s.URL + "/api/query", Limiter: NewLimiter(0)}),
		KeywordLinks{},
	)
}

func mambaQuery() Query {
	return Query{
		Title:    mambaTitle,
		Abstract: "Foundation models are built on the Transformer architecture.",
		IDs:      paper.ExternalIDs{ArXiv: "2312.00752"},
	}
}

func TestCascadeOrder(t *testing.T) {
	c := NewCascade(nil, KeywordLinks{})
	got := c.Tiers()
	want := []paper.Tier{paper.TierKeywordLinks, paper.TierGuidance}
	if len(got) != len(want) {
		t.Fatalf("Tiers() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Tiers()[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if n := len(NewCascade(nil, Guidance{}).Tiers()); n != 1 {
		t.Errorf("guidance appended twice: %d tiers", n)
	}
}

func TestSemanticScholarSuccess(t *testing.T) {
	s := newStubs(t, http.StatusOK, http.StatusOK)

	rec := s.cascade().Recommend(context.Background(), mambaQuery())
	if rec.Tier != paper.TierSemanticScholar {
		t.Fatalf("Tier = %q, want %q (attempts %+v)", rec.Tier, paper.TierSemanticScholar, rec.Attempts)
	}
	if s.arxivHits.Load() != 0 {
		t.Errorf("arxiv called %d times after a hit", s.arxivHits.Load())
	}

	by := rec.ByRelation()
	if n := len(by[paper.RelationRecommended]); n != 2 {
		t.Errorf("recommended = %d, want 2", n)
	}
	if n := len(by[paper.RelationCitedBy]); n != 1 {
		t.Errorf("cited-by = %d, want 1", n)
	}
	if refs := by[paper.RelationCites]; len(refs) != 1 || refs[0].Title != "S4" {
		t.Errorf("cites = %+v, want only S4", refs)
	}

	first := rec.Items[0]
	if first.Title != "Hungry Hungry Hippos" || first.Authors != "Dan Fu, Tri Dao" || first.Citations != 300 {
		t.Errorf("first item = %+v", first)
	}
	if first.Source != paper.TierSemanticScholar {
		t.Errorf("Source = %q", first.Source)
	}
	if rec.Items[1].PDFURL != "https://s2/p2.pdf" {
		t.Errorf("PDFURL = %q", rec.Items[1].PDFURL)
	}
	if rec.Items[1].URL != "https://www.semanticscholar.org/paper/p2" {
		t.Errorf("fallback URL = %q", rec.Items[1].URL)
	}
}

func TestSemanticScholarNeighborsWithoutRecommendations(t *testing.T) {
	s := newStubs(t, http.StatusOK, http.StatusOK)
	s.emptyRecs = true

	rec := s.cascade().Recommend(context.Background(), mambaQuery())
	if rec.Tier != paper.TierSemanticScholar {
		t.Fatalf("Tier = %q, want %q (attempts %+v)", rec.Tier, paper.TierSemanticScholar, rec.Attempts)
	}
	if s.arxivHits.Load() != 0 {
		t.Errorf("arxiv called %d times after a hit", s.arxivHits.Load())
	}
	by := rec.ByRelation()
	if n := len(by[paper.RelationRecommended]); n != 0 {
		t.Errorf("recommended = %d, want 0", n)
	}
	if n := len(by[paper.RelationCitedBy]); n != 1 {
		t.Errorf("cited-by = %d, want 1", n)
	}
	if n := len(by[paper.RelationCites]); n != 1 {
		t.Errorf("cites = %d, want 1", n)
	}
}

func TestRateLimitedFallsThrough(t *testing.T) {
	s := newStubs(t, http.StatusTooManyRequests, http.StatusOK)

	rec := s.cascade().Recommend(context.Background(), mambaQuery())
	if rec.Tier != paper.TierArXiv {
		t.Fatalf("Tier = %q, want %q", rec.Tier, paper.TierArXiv)
	}
	if n := s.s2Hits.Load(); n != 1 {
		t.Errorf("semantic scholar hit %d times, want 1", n)
	}
	if len(rec.Attempts) != 1 || rec.Attempts[0].Tier != paper.TierSemanticScholar {
		t.Fatalf("Attempts = %+v", rec.Attempts)
	}
	if !strings.Contains(rec.Attempts[0].Error, "RateLimited") {
		t.Errorf("attempt error = %q, want rate limit", rec.Attempts[0].Error)
	}

	if len(rec.Items) != 1 {
		t.Fatalf("items = %+v, want the source paper excluded", rec.Items)
	}
	it := rec.Items[0]
	if it.ID != "2111.00396" || it.Relation != paper.RelationSimilarTopic || it.Year != 2021 {
		t.Errorf("item = %+v", it)
	}
	if it.Authors != "Albert Gu, Karan Goel" {
		t.Errorf("Authors = %q", it.Authors)
	}
}

func TestAllNetworkTiersDown(t *testing.T) {
	s := newStubs(t, http.StatusInternalServerError, http.StatusInternalServerError)

	rec := s.cascade().Recommend(context.Background(), mambaQuery())
	if rec.Tier != paper.TierKeywordLinks {
		t.Fatalf("Tier = %q, want %q", rec.Tier, paper.TierKeywordLinks)
	}
	if len(rec.Items) == 0 {
		t.Fatal("no items")
	}
	for _, it := range rec.Items {
		if it.Relation != paper.RelationManualSearch {
			t.Errorf("item %q relation = %q", it.Title, it.Relation)
		}
	}
	if len(rec.Attempts) != 2 {
		t.Errorf("Attempts = %+v, want two failed tiers", rec.Attempts)
	}
	if !strings.Contains(rec.Items[0].URL, "q=selective+state+spaces") {
		t.Errorf("search URL = %q", rec.Items[0].URL)
	}
	if !strings.Contains(rec.Items[2].URL, "query=selective+OR+state+OR+spaces") {
		t.Errorf("arxiv URL = %q", rec.Items[2].URL)
	}
}

func TestGuidanceWhenNothingToSearch(t *testing.T) {
	s := newStubs(t, http.StatusOK, http.StatusOK)

	rec := s.cascade().Recommend(context.Background(), Query{})
	if rec.Tier != paper.TierGuidance {
		t.Fatalf("Tier = %q, want %q", rec.Tier, paper.TierGuidance)
	}
	if len(rec.Items) == 0 {
		t.Fatal("guidance returned nothing")
	}
	if s.s2Hits.Load() != 0 || s.arxivHits.Load() != 0 {
		t.Errorf("network called without a query: s2=%d arxiv=%d", s.s2Hits.Load(), s.arxivHits.Load())
	}
}

func TestKeywords(t *testing.T) {
	tests := []struct {
		text string
		want []string
	}{
		{mambaTitle, []string{"selective", "state", "spaces", "sequence", "modeling"}},
		{"The model and the method", nil},
		{"GPT-4 beats 2023 baselines", []string{"beats", "baselines"}},
		{"graph graph neural neural neural networks", []string{"neural", "graph", "networks"}},
	}
	for _, tt := range tests {
		got := Keywords(tt.text)
		if strings.Join(got, ",") != strings.Join(tt.want, ",") {
			t.Errorf("Keywords(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestExcerpt(t *testing.T) {
	if got := Excerpt("  short\n abstract "); got != "short abstract" {
		t.Errorf("Excerpt = %q", got)
	}

	long := strings.Repeat("word ", 60)
	got := Excerpt(long)
	if !strings.HasSuffix(got, "...") {
		t.Errorf("Excerpt missing ellipsis: %q", got)
	}
	if body := strings.TrimSuffix(got, "..."); len(body) > maxExcerpt || strings.HasSuffix(body, " ") || strings.HasSuffix(body, "wor") {
		t.Errorf("Excerpt cut badly: %q", got)
	}
}
