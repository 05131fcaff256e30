package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/ferry/internal/presentation/tui"
	"github.com/aretw0/ferry/pkg/domain"
)

// Output formats.
const (
	FormatAuto     = "auto"
	FormatJSON     = "json"
	FormatYAML     = "yaml"
	FormatMarkdown = "markdown"
)

// Printer writes pages and history entries in one output format.
type Printer struct {
	out    io.Writer
	status io.Writer
	format string
	render func(string) (string, error)
}

// NewPrinter resolves format against out. Auto means rendered markdown on a
// terminal and JSON otherwise. Status lines go to status.
func NewPrinter(out, status io.Writer, format string) (*Printer, error) {
	p := &Printer{out: out, status: status, format: format}
	switch format {
	case "", FormatAuto:
		if isTerminal(out) {
			p.format = FormatMarkdown
			p.render = tui.NewRenderer()
		} else {
			p.format = FormatJSON
		}
	case FormatMarkdown:
		if isTerminal(out) {
			p.render = tui.NewRenderer()
		}
	case FormatJSON, FormatYAML:
	default:
		return nil, fmt.Errorf("unknown output format %q (want auto, json, yaml or markdown)", format)
	}
	return p, nil
}

// Format returns the resolved output format.
func (p *Printer) Format() string {
	return p.format
}

// Page prints a page.
func (p *Printer) Page(page *domain.Page) error {
	if p.format == FormatMarkdown {
		md := tui.PageMarkdown(page)
		if p.render != nil {
			rendered, err := p.render(md)
			if err == nil {
				md = rendered
			}
		}
		_, err := io.WriteString(p.out, md)
		return err
	}
	return p.value(page)
}

// Entries prints history entries, marking the one with the current key.
func (p *Printer) Entries(entries []*domain.Entry, current string) error {
	if p.format != FormatMarkdown {
		return p.value(entries)
	}
	if len(entries) == 0 {
		fmt.Fprintln(p.out, "No history entries found.")
		return nil
	}
	for _, e := range entries {
		marker := " "
		if e.Key == current {
			marker = "*"
		}
		component := "-"
		if e.Page != nil {
			component = e.Page.Component()
		}
		fmt.Fprintf(p.out, "%s %s  %-24s %s\n", marker, e.Key, component, e.URL())
	}
	return nil
}

// Entry prints one stored entry.
func (p *Printer) Entry(e *domain.Entry) error {
	if p.format == FormatYAML {
		return p.value(e)
	}
	// Markdown has no useful rendering of remembered state and scroll.
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}
	_, err = fmt.Fprintln(p.out, string(data))
	return err
}

// Status prints a status line.
func (p *Printer) Status(kind, format string, args ...any) {
	tui.Status(p.status, kind, format, args...)
}

func (p *Printer) value(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	if p.format == FormatYAML {
		// Round-trip through a generic value so yaml follows the JSON field names.
		var generic any
		if err := json.Unmarshal(data, &generic); err != nil {
			return err
		}
		enc := yaml.NewEncoder(p.out)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	}
	_, err = fmt.Fprintln(p.out, string(data))
	return err
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
