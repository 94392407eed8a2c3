package arxiv

import (
	"strings"
	"testing"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom" xmlns:arxiv="http://arxiv.org/schemas/atom">
  <entry>
    <id>http://arxiv.org/abs/1706.03762v7</id>
    <published>2017-06-12T17:57:34Z</published>
    <title>Attention Is All
      You Need</title>
    <summary>  The dominant sequence transduction models are based on
      complex recurrent networks.</summary>
    <author><name>Ashish Vaswani</name></author>
    <author><name>Noam Shazeer</name></author>
    <arxiv:doi>10.48550/arXiv.1706.03762</arxiv:doi>
    <link href="http://arxiv.org/abs/1706.03762v7" rel="alternate" type="text/html"/>
    <link title="pdf" href="http://arxiv.org/pdf/1706.03762v7" rel="related" type="application/pdf"/>
  </entry>
</feed>`

func TestParse(t *testing.T) {
	f, err := Parse(strings.NewReader(sampleFeed))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(f.Entries) != 1 {
		t.Fatalf("len(Entries) = %d", len(f.Entries))
	}
	e := f.Entries[0]

	if e.Title != "Attention Is All You Need" {
		t.Errorf("Title = %q", e.Title)
	}
	if !strings.HasPrefix(e.Summary, "The dominant sequence") || strings.Contains(e.Summary, "\n") {
		t.Errorf("Summary = %q", e.Summary)
	}
	if e.ArXivID() != "1706.03762" {
		t.Errorf("ArXivID() = %q", e.ArXivID())
	}
	if e.PDFURL() != "http://arxiv.org/pdf/1706.03762v7" {
		t.Errorf("PDFURL() = %q", e.PDFURL())
	}
	if e.DOI != "10.48550/arXiv.1706.03762" {
		t.Errorf("DOI = %q", e.DOI)
	}
	if got := e.AuthorNames(); len(got) != 2 || got[1] != "Noam Shazeer" {
		t.Errorf("AuthorNames() = %v", got)
	}
	if e.Year() != 2017 {
		t.Errorf("Year() = %d", e.Year())
	}
}

func TestIDFromURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"https://arxiv.org/abs/2312.00752", "2312.00752", true},
		{"https://arxiv.org/pdf/2312.00752v2.pdf", "2312.00752", true},
		{"https://arxiv.org/list/cs.LG/recent", "", false},
	}
	for _, tt := range tests {
		got, ok := IDFromURL(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("IDFromURL(%q) = %q, %v", tt.in, got, ok)
		}
	}
}

func TestMonth(t *testing.T) {
	if got := Month("2017-06-12T17:57:34Z", "1706.03762"); got != "2017-06" {
		t.Errorf("Month() = %q", got)
	}
	if got := Month("", "2312.00752"); got != "2023-12" {
		t.Errorf("Month() from id = %q", got)
	}
}
