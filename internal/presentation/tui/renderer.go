package tui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/aretw0/ferry/pkg/domain"
)

// NewRenderer returns a function that renders markdown using glamour.
func NewRenderer() func(string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(), // Automatically detect light/dark background
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return func(markdown string) (string, error) { return markdown, nil }
	}
	return func(markdown string) (string, error) {
		return r.Render(markdown)
	}
}

// PageMarkdown describes a page as markdown: a heading with the component,
// the url and version, then one section per prop in key order.
func PageMarkdown(page *domain.Page) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", page.Component())
	fmt.Fprintf(&sb, "`%s` · version `%s`\n\n", page.URL(), page.Version().String())

	keys := page.PropKeys()
	if len(keys) == 0 {
		sb.WriteString("_No props._\n")
		return sb.String()
	}
	for _, k := range keys {
		raw, _ := page.Prop(k)
		fmt.Fprintf(&sb, "## %s\n\n```json\n%s\n```\n\n", k, indent(raw))
	}
	return sb.String()
}

func indent(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}
