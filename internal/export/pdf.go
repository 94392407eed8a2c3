package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// Converter turns the rendered article into a PDF. Each PDF tier is one
// Converter.
type Converter interface {
	Name() string
	Convert(ctx context.Context, in Inputs, out string) error
}

// Inputs are the already-written renderings a converter may start from.
type Inputs struct {
	HTML     string
	Markdown string
	// Dir is the task directory; relative image paths resolve against it.
	Dir string
}

// ErrNotInstalled is returned when none of a tier's binaries is on PATH.
var ErrNotInstalled = errors.New("converter not installed")

// Command is a Converter backed by an external program.
type Command struct {
	TierName string
	// Binaries are tried in order; the first found on PATH is used.
	Binaries []string
	Args     func(in Inputs, out string) []string
}

func (c Command) Name() string { return c.TierName }

// Convert runs the first available binary with the tier's arguments.
func (c Command) Convert(ctx context.Context, in Inputs, out string) error {
	bin, err := c.lookPath()
	if err != nil {
		return err
	}
	in, out, err = absInputs(in, out)
	if err != nil {
		return err
	}
	cmd := exec.CommandContext(ctx, bin, c.Args(in, out)...)
	cmd.Dir = in.Dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > 300 {
			msg = msg[len(msg)-300:]
		}
		if msg != "" {
			return fmt.Errorf("%s: %w: %s", filepath.Base(bin), err, msg)
		}
		return fmt.Errorf("%s: %w", filepath.Base(bin), err)
	}
	return nil
}

// absInputs resolves every path before the working directory moves to in.Dir.
func absInputs(in Inputs, out string) (Inputs, string, error) {
	for _, p := range []*string{&in.HTML, &in.Markdown, &in.Dir, &out} {
		if *p == "" {
			continue
		}
		abs, err := filepath.Abs(*p)
		if err != nil {
			return in, out, fmt.Errorf("failed to resolve %s: %w", *p, err)
		}
		*p = abs
	}
	return in, out, nil
}

func (c Command) lookPath() (string, error) {
	for _, b := range c.Binaries {
		if p, err := exec.LookPath(b); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: tried %s", ErrNotInstalled, strings.Join(c.Binaries, ", "))
}

// Chromium prints the HTML with a headless Chrome or Chromium.
func Chromium() Command {
	return Command{
		TierName: "chromium",
		Binaries: []string{"chromium", "chromium-browser", "google-chrome", "google-chrome-stable"},
		Args: func(in Inputs, out string) []string {
			abs, _ := filepath.Abs(in.HTML)
			return []string{
				"--headless", "--disable-gpu", "--no-sandbox",
				"--no-pdf-header-footer",
				"--print-to-pdf=" + out,
				"file://" + filepath.ToSlash(abs),
			}
		},
	}
}

// WeasyPrint renders the HTML with WeasyPrint.
func WeasyPrint() Command {
	return Command{
		TierName: "weasyprint",
		Binaries: []string{"weasyprint"},
		Args: func(in Inputs, out string) []string {
			return []string{in.HTML, out}
		},
	}
}

// Pandoc converts the Markdown rendering with pandoc's default PDF engine.
func Pandoc() Command {
	return Command{
		TierName: "pandoc",
		Binaries: []string{"pandoc"},
		Args: func(in Inputs, out string) []string {
			return []string{in.Markdown, "--resource-path", in.Dir, "-o", out}
		},
	}
}

// DefaultPDFTiers is the default PDF tier order.
var DefaultPDFTiers = []string{"chromium", "weasyprint", "pandoc"}

// Converters maps tier names to converters. Unknown names are an error.
func Converters(names []string) ([]Converter, error) {
	known := map[string]func() Command{
		"chromium":   Chromium,
		"weasyprint": WeasyPrint,
		"pandoc":     Pandoc,
	}
	out := make([]Converter, 0, len(names))
	for _, n := range names {
		mk, ok := known[strings.ToLower(strings.TrimSpace(n))]
		if !ok {
			return nil, fmt.Errorf("unknown pdf tier %q", n)
		}
		out = append(out, mk())
	}
	return out, nil
}
