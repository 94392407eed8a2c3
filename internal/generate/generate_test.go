package generate

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jackzampolin/popsci/internal/failure"
	"github.com/jackzampolin/popsci/internal/paper"
	"github.com/jackzampolin/popsci/internal/prompts"
	"github.com/jackzampolin/popsci/internal/providers"
)

func testContent() *paper.Content {
	return &paper.Content{
		Title:       "Mamba: Linear-Time Sequence Modeling with Selective State Spaces",
		Authors:     []string{"Albert Gu", "Tri Dao", "Third Author", "Fourth Author"},
		Abstract:    strings.Repeat("Foundation models power applications. ", 30),
		Institution: "Carnegie Mellon University",
		Published:   "2023-12",
		IDs:         paper.ExternalIDs{ArXiv: "2312.00752"},
		Sections: []paper.Section{
			{Title: "1 Introduction", Body: strings.Repeat("Transformers scale quadratically. ", 40)},
			{Title: "3 Method", Body: strings.Repeat("The selection mechanism filters inputs. ", 40)},
			{Title: "4 Experiments", Body: "Mamba is 5× faster at inference and reaches 92.5% accuracy using 16 GB in 3.2 seconds. " +
				strings.Repeat("More results follow. ", 40)},
			{Title: "6 Conclusion", Body: strings.Repeat("Selective models are promising. ", 40)},
		},
	}
}

func testOutline() *paper.Outline {
	o := &paper.Outline{
		ArticleType:    "architecture",
		CoreInnovation: "State spaces that choose what to remember.",
		AnalogyTheme:   "a restaurant kitchen",
	}
	for _, r := range paper.Roles {
		o.Sections = append(o.Sections, paper.SectionPlan{Role: r, Title: "Title " + string(r), KeyPoints: []string{"point " + string(r)}})
	}
	return o
}

var promptMarker = regexp.MustCompile(`(?m)^=== ([a-z_]+) ===$`)

// echo answers every marker in the prompt with a Markdown-decorated body.
func echo(req *providers.TextRequest) (string, error) {
	var b strings.Builder
	for _, m := range promptMarker.FindAllStringSubmatch(req.Prompt, -1) {
		b.WriteString("=== " + m[1] + " ===\n## Heading\n**Body** for " + m[1] + ".\n\n")
	}
	return b.String(), nil
}

func TestSplitPreservesSectionBoundaries(t *testing.T) {
	c, o := testContent(), testOutline()
	bs := briefs(c, o, nil)

	total := 0
	for _, b := range bs {
		total += Heuristic{}.Count(briefText(b))
	}
	budget := total / 3

	chunks := Split(bs, budget, Heuristic{})
	require.GreaterOrEqual(t, len(chunks), 3)

	var roles []paper.Role
	for i, ch := range chunks {
		assert.Equal(t, i, ch.Ordinal)
		assert.Len(t, ch.Briefs, len(ch.Roles))
		if len(ch.Roles) > 1 {
			assert.LessOrEqual(t, ch.Tokens, budget)
		}
		roles = append(roles, ch.Roles...)
	}
	assert.Equal(t, paper.Roles, roles)
}

func TestSplitOversizedSectionStandsAlone(t *testing.T) {
	c, o := testContent(), testOutline()
	chunks := Split(briefs(c, o, nil), 10, Heuristic{})
	assert.Len(t, chunks, len(paper.Roles))
	for _, ch := range chunks {
		assert.Len(t, ch.Roles, 1)
	}
}

func TestWriteAssemblesInOrder(t *testing.T) {
	mock := &providers.MockText{Respond: echo}
	w := New(Config{Generator: mock, Budget: 600})

	res, err := w.Write(context.Background(), testContent(), testOutline())
	require.NoError(t, err)
	require.Len(t, res.Sections, len(paper.Roles)+1)
	assert.GreaterOrEqual(t, len(res.Chunks), 2)
	assert.Equal(t, int64(len(res.Chunks)), mock.RequestCount())

	assert.Equal(t, paper.RolePaperInfo, res.Sections[0].Role)
	for i, r := range paper.Roles {
		s := res.Sections[i+1]
		assert.Equal(t, r, s.Role)
		assert.Equal(t, "Title "+string(r), s.Title)
		assert.Equal(t, "Heading\nBody for "+string(r)+".", s.Body)
		assert.False(t, s.Placeholder)
	}

	results := res.Sections[5]
	require.Equal(t, paper.RoleResults, results.Role)
	assert.Contains(t, results.KeyNumbers, paper.KeyNumber{Label: "Speedup", Value: "5× faster"})
}

func TestWritePlaceholderOnExhaustion(t *testing.T) {
	var methodCalls int
	mock := &providers.MockText{Respond: func(req *providers.TextRequest) (string, error) {
		if strings.Contains(req.Prompt, "=== method ===") {
			methodCalls++
			return "", errors.New("upstream unavailable")
		}
		return echo(req)
	}}
	w := New(Config{Generator: mock, Budget: 1, RetryDelay: time.Millisecond})

	res, err := w.Write(context.Background(), testContent(), testOutline())
	require.Error(t, err)
	assert.Equal(t, failure.GenerationChunk, failure.KindOf(err))
	assert.Equal(t, 3, methodCalls)

	require.Len(t, res.Sections, len(paper.Roles)+1)
	for _, s := range res.Sections[1:] {
		if s.Role == paper.RoleMethod {
			assert.True(t, s.Placeholder)
			assert.Contains(t, s.Body, "point method")
			continue
		}
		assert.False(t, s.Placeholder, s.Role)
	}
}

func TestWriteMissingSectionUsesDefault(t *testing.T) {
	mock := &providers.MockText{ResponseText: "=== hero ===\nOnly the hero came back."}
	res, err := New(Config{Generator: mock}).Write(context.Background(), testContent(), testOutline())
	require.Error(t, err)
	assert.Equal(t, failure.GenerationChunk, failure.KindOf(err))
	assert.Equal(t, "Only the hero came back.", res.Sections[1].Body)
	assert.True(t, res.Sections[2].Placeholder)
}

func TestWriteUnrenderablePromptUsesDefaults(t *testing.T) {
	mock := &providers.MockText{Respond: echo}
	// Nothing registered, so the system prompt is not found.
	w := New(Config{Generator: mock, Prompts: prompts.NewResolver(nil, nil)})

	res, err := w.Write(context.Background(), testContent(), testOutline())
	require.Error(t, err)
	assert.Equal(t, failure.GenerationChunk, failure.KindOf(err))
	require.NotNil(t, res)
	assert.Zero(t, mock.RequestCount())
	assert.NotEmpty(t, res.Chunks)

	require.Len(t, res.Sections, len(paper.Roles)+1)
	assert.Equal(t, paper.RolePaperInfo, res.Sections[0].Role)
	for _, s := range res.Sections[1:] {
		assert.True(t, s.Placeholder, s.Role)
		assert.NotEmpty(t, s.Body, s.Role)
	}
}

func TestClean(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"```markdown\nHello\n```", "Hello"},
		{"## Title\nBody", "Title\nBody"},
		{"This is **bold** and *italic* text.", "This is bold and italic text."},
		{"Keep snake_case_names but drop _emphasis_.", "Keep snake_case_names but drop emphasis."},
		{"- one\n- two\n1. three", "one\ntwo\nthree"},
		{"Cost is $O(n^2)$ per step.$$x$$", "Cost is  per step."},
		{"> quoted", "quoted"},
		{"a\n\n\n\nb", "a\n\nb"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Clean(tt.in), tt.in)
	}
}

func TestSplitOutputWithoutMarkers(t *testing.T) {
	parts := splitOutput("just text", []string{"intro"})
	assert.Equal(t, "just text", parts["intro"])
	assert.Empty(t, splitOutput("just text", []string{"intro", "problem"}))
}

func TestKeyNumbers(t *testing.T) {
	c := &paper.Content{Sections: []paper.Section{{Body: "We are 3x faster, then 4.5× faster, then 6x faster. 88% accuracy. Uses 40GB. Runs in 12 seconds over 2 steps."}}}
	got := KeyNumbers(c)
	assert.Equal(t, []paper.KeyNumber{
		{Label: "Speedup", Value: "3× faster"},
		{Label: "Speedup", Value: "4.5× faster"},
		{Label: "Accuracy", Value: "88% accuracy"},
		{Label: "Memory", Value: "40 GB"},
		{Label: "Time", Value: "12 s"},
	}, got)
}

func TestPaperInfo(t *testing.T) {
	s := PaperInfo(testContent())
	assert.Equal(t, paper.RolePaperInfo, s.Role)
	assert.Contains(t, s.Body, "Authors: Albert Gu, Tri Dao, Third Author et al.")
	assert.Contains(t, s.Body, "Institution: Carnegie Mellon University")
	require.Len(t, s.Links, 1)
	assert.Equal(t, "https://arxiv.org/abs/2312.00752", s.Links[0].URL)
}

func TestHeuristicCounter(t *testing.T) {
	assert.Equal(t, 0, Heuristic{}.Count(""))
	assert.Equal(t, 1, Heuristic{}.Count("abc"))
	assert.Equal(t, 2, Heuristic{}.Count("abcdefgh"))
}
