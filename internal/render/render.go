// Package render prints highlighted, annotated files for the terminal.
package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/starford/marginalia/internal/highlight"
	"github.com/starford/marginalia/internal/models"
)

// Color palette.
var (
	colorDim    = lipgloss.Color("#6272a4")
	colorFg     = lipgloss.Color("#f8f8f2")
	colorBlue   = lipgloss.Color("#8be9fd")
	colorOrange = lipgloss.Color("#ffb86c")
	colorBorder = lipgloss.Color("#44475a")
)

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(colorBlue).
			Bold(true).
			Padding(0, 0, 1, 0)

	lineNumberStyle = lipgloss.NewStyle().
			Foreground(colorDim).
			Width(5).
			Align(lipgloss.Right)

	gutterStyle = lipgloss.NewStyle().
			Foreground(colorBorder)

	replyStyle = lipgloss.NewStyle().
			Foreground(colorFg).
			Italic(true)

	orphanHeaderStyle = lipgloss.NewStyle().
				Foreground(colorOrange).
				Bold(true).
				Padding(1, 0, 0, 0)
)

// File renders lines followed by the annotations anchored to each of them.
// Orphaned annotations are listed after the last line.
func File(name string, lines []highlight.Line, anns []models.Annotation) string {
	byLine := make(map[int][]models.Annotation)
	var orphans []models.Annotation
	for _, a := range anns {
		if a.Orphaned {
			orphans = append(orphans, a)
			continue
		}
		byLine[a.LineNumber] = append(byLine[a.LineNumber], a)
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(name))
	b.WriteString("\n")

	gutter := gutterStyle.Render(" │ ")
	for i, line := range lines {
		b.WriteString(lineNumberStyle.Render(fmt.Sprint(i + 1)))
		b.WriteString(gutter)
		b.WriteString(spans(line))
		b.WriteString("\n")
		for _, a := range byLine[i+1] {
			writeAnnotation(&b, a, "")
		}
	}

	if len(orphans) > 0 {
		b.WriteString(orphanHeaderStyle.Render(fmt.Sprintf("Orphaned (%d)", len(orphans))))
		b.WriteString("\n")
		for _, a := range orphans {
			writeAnnotation(&b, a, fmt.Sprintf("was L%d %q: ", a.LineNumber, strings.TrimSpace(firstLine(a.LineContent))))
		}
	}
	return b.String()
}

func spans(line highlight.Line) string {
	var b strings.Builder
	for _, s := range line.Spans {
		if s.Color == "" {
			b.WriteString(s.Text)
			continue
		}
		b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(s.Color)).Render(s.Text))
	}
	return b.String()
}

func writeAnnotation(b *strings.Builder, a models.Annotation, lead string) {
	tag := "[" + a.Type.Prefix()
	if a.IsBlock() {
		tag += fmt.Sprintf(" L%d-%d", a.LineNumber, a.EndLineNumber)
	}
	tag += "]"

	style := lipgloss.NewStyle().Foreground(lipgloss.Color(a.Type.Color())).Bold(true)
	b.WriteString(strings.Repeat(" ", 8))
	b.WriteString(style.Render(tag))
	b.WriteString(" " + lead + a.Content)
	if a.AddedBy != "" {
		b.WriteString(lipgloss.NewStyle().Foreground(colorDim).Render("  @" + a.AddedBy))
	}
	b.WriteString("\n")
	for _, r := range a.Replies {
		text := "↳ " + r.Content
		if r.AddedBy != "" {
			text += " (" + r.AddedBy + ")"
		}
		b.WriteString(strings.Repeat(" ", 10))
		b.WriteString(replyStyle.Render(text))
		b.WriteString("\n")
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
