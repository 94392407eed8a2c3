package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"

	"github.com/jackzampolin/popsci/internal/paper"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var articleTemplate = template.Must(template.New("article.html.tmpl").Funcs(template.FuncMap{
	"paragraphs": Paragraphs,
	"year": func(y int) string {
		if y == 0 {
			return ""
		}
		return fmt.Sprint(y)
	},
	"manual": func(r paper.Relation) bool { return r == paper.RelationManualSearch },
}).ParseFS(templateFS, "templates/article.html.tmpl"))

type htmlData struct {
	Article
	Groups []RelatedGroup
}

// HTML writes the article as a standalone HTML page.
func HTML(w io.Writer, a Article) error {
	if a.Title == "" {
		return fmt.Errorf("article has no title")
	}
	if err := articleTemplate.Execute(w, htmlData{Article: a, Groups: a.RelatedGroups()}); err != nil {
		return fmt.Errorf("failed to render html: %w", err)
	}
	return nil
}

// WriteHTML renders to path, writing through a temp file so a failed
// render never leaves a partial page.
func WriteHTML(path string, a Article) error {
	var buf bytes.Buffer
	if err := HTML(&buf, a); err != nil {
		return err
	}
	return writeFile(path, buf.Bytes())
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return os.Rename(tmp, path)
}
