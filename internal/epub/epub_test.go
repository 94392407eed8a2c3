package epub

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func readZip(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("zip: %v", err)
	}
	files := make(map[string]string)
	for i, f := range zr.File {
		if i == 0 && (f.Name != "mimetype" || f.Method != zip.Store) {
			t.Errorf("first entry = %s (method %d), want stored mimetype", f.Name, f.Method)
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		b, _ := io.ReadAll(rc)
		rc.Close()
		files[f.Name] = string(b)
	}
	return files
}

func TestBuild(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "hero.png")
	if err := os.WriteFile(img, []byte("\x89PNG fake"), 0644); err != nil {
		t.Fatal(err)
	}

	b := NewBuilder(Book{
		ID:        "fixed-id",
		Title:     "Attention & You",
		Author:    "Ashish Vaswani et al.",
		CreatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}, []Chapter{
		{ID: "sec_01", Title: "Hook", Text: "First **bold** line\ncontinues.\n\nSecond.", Image: img},
		{ID: "sec_02", Title: "Related Work", Text: "- [BERT](https://example.org/bert) 2018\n- GPT"},
	})

	out := filepath.Join(dir, "out", "article.epub")
	if err := b.Build(out); err != nil {
		t.Fatalf("Build: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	files := readZip(t, data)

	if files["mimetype"] != "application/epub+zip" {
		t.Errorf("mimetype = %q", files["mimetype"])
	}
	opf := files["OEBPS/content.opf"]
	for _, want := range []string{
		"urn:uuid:fixed-id",
		"<dc:title>Attention &amp; You</dc:title>",
		"2024-01-02T03:04:05Z",
		`href="images/sec_01.png" media-type="image/png"`,
		`<itemref idref="sec_02"/>`,
	} {
		if !strings.Contains(opf, want) {
			t.Errorf("content.opf missing %q", want)
		}
	}
	if files["OEBPS/images/sec_01.png"] != "\x89PNG fake" {
		t.Error("image not embedded")
	}

	hook := files["OEBPS/chapters/sec_01.xhtml"]
	if !strings.Contains(hook, `<img src="../images/sec_01.png"`) {
		t.Error("chapter missing image")
	}
	if !strings.Contains(hook, "<p>First <strong>bold</strong> line continues.</p>\n<p>Second.</p>") {
		t.Errorf("paragraphs not converted:\n%s", hook)
	}

	related := files["OEBPS/chapters/sec_02.xhtml"]
	if !strings.Contains(related, `<ul>
<li><a href="https://example.org/bert">BERT</a> 2018</li>
<li>GPT</li>
</ul>`) {
		t.Errorf("list not converted:\n%s", related)
	}
	if !strings.Contains(files["OEBPS/nav.xhtml"], `<a href="chapters/sec_02.xhtml">Related Work</a>`) {
		t.Error("nav missing entry")
	}
}

func TestBuildErrors(t *testing.T) {
	if err := NewBuilder(Book{Title: "Empty"}, nil).WriteTo(io.Discard); err == nil {
		t.Error("expected error for no chapters")
	}

	b := NewBuilder(Book{Title: "Missing"}, []Chapter{{ID: "a", Title: "A", Image: "/nonexistent/x.png"}})
	if _, err := b.BuildToBuffer(); err == nil {
		t.Error("expected error for missing image")
	}
}
