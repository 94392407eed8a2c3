package extract

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jackzampolin/popsci/internal/failure"
	"github.com/jackzampolin/popsci/internal/paper"
	"github.com/jackzampolin/popsci/internal/pdf/pdftest"
)

func samplePDF(t *testing.T) string {
	t.Helper()
	return pdftest.Write(t, filepath.Join(t.TempDir(), "source.pdf"), "Info Title",
		[]string{
			"Mamba: Linear-Time Sequence Modeling",
			"Albert Gu, Tri Dao",
			"Carnegie Mellon University",
			"Abstract",
			"Foundation models are now powering most applications.",
			"1 Introduction",
			"Transformers are slow on long sequences.",
			"Figure 1: Overview of the selective model.",
		},
		[]string{
			"3.1 Selective Scan",
			"We scan selec-",
			"tively.",
			"References",
			"[1] A. Vaswani. Attention is all you need.",
			"[2] B. Other. Another paper.",
		},
	)
}

func TestExtractPDFText(t *testing.T) {
	path := samplePDF(t)
	c, err := New(nil).Extract(context.Background(), Input{
		Path:     path,
		Scratch:  filepath.Join(t.TempDir(), "scratch"),
		Metadata: paper.Metadata{Authors: []string{"Albert Gu", " Tri  Dao "}, IDs: paper.ExternalIDs{ArXiv: "2312.00752"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "pdfcpu-text", c.Strategy)
	assert.Equal(t, "Mamba: Linear-Time Sequence Modeling", c.Title)
	assert.Equal(t, []string{"Albert Gu", "Tri Dao"}, c.Authors)
	assert.Equal(t, "Carnegie Mellon University", c.Institution)
	assert.Equal(t, "Foundation models are now powering most applications.", c.Abstract)
	assert.Equal(t, "2312.00752", c.IDs.ArXiv)

	var titles []string
	for _, s := range c.Sections {
		titles = append(titles, s.Title)
	}
	assert.Equal(t, []string{"Abstract", "1 Introduction", "3.1 Selective Scan", "References"}, titles)
	assert.Equal(t, 2, c.Sections[2].Level)

	scan, ok := c.Section("selective scan")
	require.True(t, ok)
	assert.Equal(t, "We scan selectively.", scan.Body)

	assert.Equal(t, []string{"Figure 1: Overview of the selective model."}, c.Figures)
	assert.Equal(t, 2, c.ReferenceCount)
}

func TestExtractPrefersSourceTitle(t *testing.T) {
	c, err := New(nil).Extract(context.Background(), Input{
		Path:     samplePDF(t),
		Metadata: paper.Metadata{Title: "Mamba (from arXiv)"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Mamba (from arXiv)", c.Title)
}

func TestExtractFallsBackToMetadata(t *testing.T) {
	path := filepath.Join(t.TempDir(), "source.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 truncated"), 0o644))

	c, err := New(nil).Extract(context.Background(), Input{
		Path:     path,
		Metadata: paper.Metadata{Title: "Known Title", Abstract: "Known abstract."},
	})
	require.NoError(t, err)
	assert.Equal(t, "metadata", c.Strategy)
	assert.Equal(t, "Known Title", c.Title)
	require.Len(t, c.Sections, 1)
	assert.Equal(t, "Known abstract.", c.Sections[0].Body)
}

func TestExtractFailsWithoutTitleOrText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "source.pdf")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o644))

	_, err := New(nil).Extract(context.Background(), Input{Path: path})
	require.Error(t, err)
	assert.Equal(t, failure.Extraction, failure.KindOf(err))
	assert.Contains(t, err.Error(), "metadata")
}

func TestHeadingLevel(t *testing.T) {
	tests := []struct {
		line string
		want int
	}{
		{"1 Introduction", 1},
		{"2. Related Work", 1},
		{"3.2 Hardware-aware Algorithm", 2},
		{"4.1.2 Details", 3},
		{"IV. Experiments", 1},
		{"Abstract", 1},
		{"References", 1},
		{"Acknowledgements", 1},
		{"Methods", 2},
		{"We show that our method works well.", 0},
		{"2017 Neural Information Processing Systems Conference Proceedings", 0},
		{"", 0},
	}
	for _, tt := range tests {
		if got := headingLevel(tt.line); got != tt.want {
			t.Errorf("headingLevel(%q) = %d, want %d", tt.line, got, tt.want)
		}
	}
}

func TestSplitSectionsWithoutHeadings(t *testing.T) {
	pre, secs := splitSections([]string{"just some text", "more text"})
	assert.Len(t, pre, 2)
	require.Len(t, secs, 1)
	assert.Equal(t, "Full Text", secs[0].Title)
	assert.Equal(t, "just some text\nmore text", secs[0].Body)
}

func TestPostProcess(t *testing.T) {
	c := &paper.Content{
		Title:    "  A   Title\n",
		Abstract: strings.Repeat("word ", 800),
		Sections: []paper.Section{
			{Title: "Intro", Body: "Department of Physics, Example College\nFig. 2. A caption here\nFigure 2: duplicate"},
			{Title: "References", Body: "1. First ref\n2. Second ref\n3. Third ref"},
		},
	}
	postProcess(c)

	assert.Equal(t, "A Title", c.Title)
	assert.Len(t, c.Abstract, maxAbstract+3)
	assert.True(t, strings.HasSuffix(c.Abstract, "..."))
	assert.Equal(t, "Department of Physics, Example College", c.Institution)
	assert.Equal(t, []string{"Figure 2: A caption here"}, c.Figures)
	assert.Equal(t, 3, c.ReferenceCount)
}
