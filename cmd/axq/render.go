package main

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	roleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7AA2F7"))
	detailStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#9ECE6A"))
	actionsStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#E0AF68"))
	noteStyle    = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("#565F89"))
)

// isTerminal reports whether w is a character device.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return stat.Mode()&os.ModeCharDevice != 0
}

// outlineLine is one describe line split for styling.
type outlineLine struct {
	indent  string
	role    string
	detail  string // name and attributes
	actions string // "[press,focus]" or empty
}

func splitOutlineLine(line string) outlineLine {
	var l outlineLine
	body := strings.TrimLeft(line, " ")
	l.indent = line[:len(line)-len(body)]

	if strings.HasSuffix(body, "]") {
		if i := strings.LastIndex(body, " ["); i >= 0 {
			l.actions = body[i+1:]
			body = body[:i]
		}
	}
	l.role, l.detail, _ = strings.Cut(body, " ")
	return l
}

// renderOutline styles each line of a describe outline when styled is set.
func renderOutline(text string, styled bool) string {
	if !styled {
		return text
	}
	var b strings.Builder
	for _, line := range strings.SplitAfter(text, "\n") {
		if line == "" {
			continue
		}
		nl := strings.HasSuffix(line, "\n")
		l := splitOutlineLine(strings.TrimSuffix(line, "\n"))

		b.WriteString(l.indent)
		b.WriteString(roleStyle.Render(l.role))
		if l.detail != "" {
			b.WriteString(" " + detailStyle.Render(l.detail))
		}
		if l.actions != "" {
			b.WriteString(" " + actionsStyle.Render(l.actions))
		}
		if nl {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func renderNote(s string, styled bool) string {
	if !styled {
		return s
	}
	return noteStyle.Render(s)
}
