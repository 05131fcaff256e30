package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner outputs the ferry banner.
func PrintBanner(w io.Writer, version string) {
	out := termenv.NewOutput(w)
	s1 := out.String("  ┌─┐┌─┐┬─┐┬─┐┬ ┬").Foreground(out.Color("#38bdf8"))
	s2 := out.String("  ├┤ ├┤ ├┬┘├┬┘└┬┘").Foreground(out.Color("#818cf8"))
	s3 := out.String("  └  └─┘┴└─┴└─ ┴ ").Foreground(out.Color("#c084fc"))
	v := out.String("v" + version).Faint()

	fmt.Fprintln(w)
	fmt.Fprintln(w, s1)
	fmt.Fprintln(w, s2)
	fmt.Fprintln(w, s3, v)
	fmt.Fprintln(w)
}

// Status kinds, one color each.
const (
	StatusOK      = "ok"
	StatusInfo    = "info"
	StatusWarn    = "warn"
	StatusFailure = "error"
)

var statusColors = map[string]string{
	StatusOK:      "#22c55e",
	StatusInfo:    "#38bdf8",
	StatusWarn:    "#f59e0b",
	StatusFailure: "#ef4444",
}

// Status prints a one-line status message prefixed by a colored tag.
// Colors are dropped when w is not a terminal.
func Status(w io.Writer, kind, format string, args ...any) {
	out := termenv.NewOutput(w)
	tag := out.String(fmt.Sprintf("[%s]", kind)).Bold()
	if c, ok := statusColors[kind]; ok {
		tag = tag.Foreground(out.Color(c))
	}
	fmt.Fprintf(w, "%s %s\n", tag, fmt.Sprintf(format, args...))
}
