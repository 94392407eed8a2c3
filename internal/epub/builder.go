// Package epub provides ePub 3.0 generation for articles.
package epub

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Book contains the metadata needed for epub generation.
type Book struct {
	ID          string
	Title       string
	Author      string
	Language    string // ISO 639-1 code (e.g., "en")
	Description string
	CreatedAt   time.Time
}

// Chapter is one section of the book.
type Chapter struct {
	ID    string // Unique identifier (e.g., "sec_01")
	Title string
	// Text is lightweight markdown: paragraphs, #-headings, lists and links.
	Text string
	// Image is an optional path on disk to an illustration shown under the title.
	Image string
}

// Builder creates ePub 3.0 files.
type Builder struct {
	book     Book
	chapters []Chapter
	images   map[string]string // chapter ID -> name inside OEBPS/images
}

// NewBuilder creates a new epub builder.
func NewBuilder(book Book, chapters []Chapter) *Builder {
	if book.ID == "" {
		book.ID = uuid.New().String()
	}
	b := &Builder{book: book, chapters: chapters, images: make(map[string]string)}
	for _, ch := range chapters {
		if ch.Image != "" {
			b.images[ch.ID] = ch.ID + strings.ToLower(filepath.Ext(ch.Image))
		}
	}
	return b
}

// Build generates the epub and writes it to the specified path.
func (b *Builder) Build(outputPath string) error {
	buf, err := b.BuildToBuffer()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(outputPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write epub: %w", err)
	}
	return nil
}

// BuildToBuffer generates the epub and returns it as a byte buffer.
func (b *Builder) BuildToBuffer() (*bytes.Buffer, error) {
	buf := new(bytes.Buffer)
	if err := b.WriteTo(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// WriteTo writes the epub to a writer.
func (b *Builder) WriteTo(w io.Writer) error {
	if len(b.chapters) == 0 {
		return fmt.Errorf("epub has no chapters")
	}
	zw := zip.NewWriter(w)

	steps := []func(*zip.Writer) error{
		b.writeMimetype,
		b.writeContainer,
		func(zw *zip.Writer) error { return writeEntry(zw, "OEBPS/content.opf", b.generatePackage()) },
		func(zw *zip.Writer) error { return writeEntry(zw, "OEBPS/nav.xhtml", b.generateNavigation()) },
		func(zw *zip.Writer) error { return writeEntry(zw, "OEBPS/toc.ncx", b.generateNCX()) },
		func(zw *zip.Writer) error { return writeEntry(zw, "OEBPS/styles/style.css", defaultStylesheet) },
	}
	for _, step := range steps {
		if err := step(zw); err != nil {
			zw.Close()
			return err
		}
	}

	for _, ch := range b.chapters {
		if err := b.writeChapter(zw, ch); err != nil {
			zw.Close()
			return fmt.Errorf("failed to write chapter %s: %w", ch.ID, err)
		}
	}
	return zw.Close()
}

// writeMimetype writes the mimetype file (must be first and uncompressed).
func (b *Builder) writeMimetype(zw *zip.Writer) error {
	w, err := zw.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	if err != nil {
		return fmt.Errorf("failed to create mimetype: %w", err)
	}
	_, err = w.Write([]byte("application/epub+zip"))
	return err
}

// writeContainer writes META-INF/container.xml.
func (b *Builder) writeContainer(zw *zip.Writer) error {
	return writeEntry(zw, "META-INF/container.xml", `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`)
}

// writeChapter writes a chapter's XHTML and, if present, its image.
func (b *Builder) writeChapter(zw *zip.Writer, ch Chapter) error {
	if name, ok := b.images[ch.ID]; ok {
		data, err := os.ReadFile(ch.Image)
		if err != nil {
			return fmt.Errorf("failed to read image: %w", err)
		}
		w, err := zw.Create("OEBPS/images/" + name)
		if err != nil {
			return err
		}
		if _, err := w.Write(data); err != nil {
			return err
		}
	}
	return writeEntry(zw, fmt.Sprintf("OEBPS/chapters/%s.xhtml", ch.ID), b.generateChapterXHTML(ch))
}

func writeEntry(zw *zip.Writer, name, content string) error {
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	_, err = io.WriteString(w, content)
	return err
}

// identifier returns the package's unique identifier.
func (b *Builder) identifier() string {
	return "urn:uuid:" + b.book.ID
}

const defaultStylesheet = `/* popsci ePub Stylesheet */

body {
  font-family: Georgia, "Times New Roman", serif;
  font-size: 1em;
  line-height: 1.6;
  margin: 1em;
}

h1, h2, h3 {
  font-family: "Helvetica Neue", Helvetica, Arial, sans-serif;
  font-weight: bold;
  margin-top: 1.5em;
  margin-bottom: 0.5em;
}

h1 {
  font-size: 1.6em;
  border-bottom: 1px solid #ccc;
  padding-bottom: 0.3em;
}

h2 {
  font-size: 1.3em;
}

p {
  margin: 0.6em 0;
}

img {
  max-width: 100%;
}

.figure {
  text-align: center;
  margin: 1em 0;
}

li {
  margin-bottom: 0.4em;
}
`
