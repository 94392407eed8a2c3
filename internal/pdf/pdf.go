// Package pdf wraps the pdfcpu calls shared by acquisition, extraction
// and export: validation, page counting, document info and page content
// streams.
package pdf

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

func init() {
	// Keep pdfcpu from writing a user config directory.
	model.ConfigPath = "disable"
}

// Header is the magic prefix every PDF starts with.
var Header = []byte("%PDF")

func config() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// HasHeader reports whether b starts like a PDF.
func HasHeader(b []byte) bool {
	return bytes.HasPrefix(b, Header)
}

// Info is what pdfcpu can tell about a document without extracting it.
type Info struct {
	Pages int
	Title string
}

// Validate checks the file's %PDF header and structure and returns its info.
func Validate(path string) (*Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}
	defer f.Close()

	head := make([]byte, len(Header))
	if _, err := io.ReadFull(f, head); err != nil || !HasHeader(head) {
		return nil, fmt.Errorf("not a pdf: missing %%PDF header")
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	ctx, err := api.ReadContext(f, config())
	if err != nil {
		return nil, fmt.Errorf("failed to read pdf: %w", err)
	}
	if err := api.ValidateContext(ctx); err != nil {
		return nil, fmt.Errorf("invalid pdf: %w", err)
	}
	return &Info{Pages: ctx.PageCount, Title: ctx.XRefTable.Title}, nil
}

var pageSuffix = regexp.MustCompile(`(\d+)\.txt$`)

// PageContents returns the decoded content stream of every page, in page
// order. scratch receives pdfcpu's intermediate files.
func PageContents(path, scratch string) ([]string, error) {
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create scratch dir: %w", err)
	}
	if err := api.ExtractContentFile(path, scratch, nil, config()); err != nil {
		return nil, fmt.Errorf("failed to extract content: %w", err)
	}

	entries, err := os.ReadDir(scratch)
	if err != nil {
		return nil, err
	}
	type page struct {
		n    int
		path string
	}
	var pages []page
	for _, e := range entries {
		m := pageSuffix.FindStringSubmatch(e.Name())
		if e.IsDir() || m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		pages = append(pages, page{n: n, path: filepath.Join(scratch, e.Name())})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].n < pages[j].n })

	out := make([]string, 0, len(pages))
	for _, p := range pages {
		b, err := os.ReadFile(p.path)
		if err != nil {
			return nil, err
		}
		out = append(out, string(b))
	}
	return out, nil
}
