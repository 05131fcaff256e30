package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/ferry/pkg/domain"
)

// Overlay contains live browser data to highlight on the graph.
type Overlay struct {
	// Current is the state key of the active browser entry.
	Current string
}

// HistoryMermaid produces a Mermaid flowchart of a tab's history entries,
// oldest first by last update. Shapes:
// - Entry with remembered state: [[Subroutine]]
// - Entry without a stored page: ((Circle))
// - Default: [Rectangle]
func HistoryMermaid(entries []*domain.Entry, overlay *Overlay) string {
	ordered := append([]*domain.Entry(nil), entries...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].UpdatedAt.Equal(ordered[j].UpdatedAt) {
			return ordered[i].Key < ordered[j].Key
		}
		return ordered[i].UpdatedAt.Before(ordered[j].UpdatedAt)
	})

	var sb strings.Builder
	sb.WriteString("graph LR\n")

	prev := ""
	for _, e := range ordered {
		id := sanitizeMermaidID(e.Key)

		opener, closer := "[", "]"
		switch {
		case e.Page == nil:
			opener, closer = "((", "))"
		case len(e.Remembered) > 0:
			opener, closer = "[[", "]]"
		}

		label := e.Key
		if e.Page != nil {
			label = fmt.Sprintf("%s <br/> %s", e.Page.Component(), e.Page.URL())
		}
		label = strings.ReplaceAll(label, "\"", "'")
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", id, opener, label, closer))

		if prev != "" {
			sb.WriteString(fmt.Sprintf("    %s --> %s\n", prev, id))
		}
		prev = id
	}

	if overlay != nil && overlay.Current != "" {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Black text keeps contrast on both themes.
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")
		sb.WriteString(fmt.Sprintf("    class %s current;\n", sanitizeMermaidID(overlay.Current)))
	}

	return sb.String()
}

func sanitizeMermaidID(key string) string {
	s := strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_", ":", "_", " ", "_").Replace(key)
	return "e_" + s
}
