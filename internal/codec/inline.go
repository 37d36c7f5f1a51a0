// Package codec converts annotated code to and from its two interchange
// forms: inline comment markers and markdown with a frontmatter header.
package codec

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/starford/marginalia/internal/anchor"
	"github.com/starford/marginalia/internal/models"
)

const markerIndent = "\t\t"

var markerRe = regexp.MustCompile(
	`^\s*//\s*An:(` + strings.Join(models.Prefixes(), "|") + `)(?:\[L(\d+)-(\d+)\])?:\s*(.*)$`,
)

// EncodeInline writes every annotation as a marker line directly below the
// line it is anchored to. Annotations sharing a line keep their order in
// anns. Annotations pointing past the end of code are not emitted.
func EncodeInline(code string, anns []models.Annotation) string {
	byLine := make(map[int][]models.Annotation, len(anns))
	for _, a := range anns {
		byLine[a.LineNumber] = append(byLine[a.LineNumber], a)
	}

	lines := strings.Split(code, "\n")
	out := make([]string, 0, len(lines)+len(anns))
	for i, line := range lines {
		out = append(out, line)
		for _, a := range byLine[i+1] {
			out = append(out, Marker(a))
		}
	}
	return strings.Join(out, "\n")
}

// Marker renders the inline comment line for a single annotation.
func Marker(a models.Annotation) string {
	span := ""
	if a.IsBlock() {
		span = fmt.Sprintf("[L%d-%d]", a.LineNumber, a.EndLineNumber)
	}
	return markerIndent + "//An:" + a.Type.Prefix() + span + ": " + escapeInline(a.Content)
}

// DecodeInline strips marker lines from text and attaches each marker to the
// closest code line above it. Markers seen before any code line are dropped.
// The returned drafts carry no file id.
func DecodeInline(text string) (string, []models.Draft) {
	var (
		code   []string
		drafts []models.Draft
	)
	for _, line := range strings.Split(text, "\n") {
		m := markerRe.FindStringSubmatch(strings.TrimSuffix(line, "\r"))
		if m == nil {
			code = append(code, line)
			continue
		}
		if len(code) == 0 {
			continue
		}
		typ, _ := models.TypeFromPrefix(m[1])
		d := models.Draft{
			LineNumber: len(code),
			Type:       typ,
			Content:    unescapeInline(m[4]),
		}
		if m[2] != "" {
			s, _ := strconv.Atoi(m[2])
			e, _ := strconv.Atoi(m[3])
			if e > s {
				d.EndLineNumber = d.LineNumber + (e - s)
			}
		}
		drafts = append(drafts, d)
	}

	clean := strings.Join(code, "\n")
	for i := range drafts {
		drafts[i].LineContent = anchor.Capture(clean, drafts[i].LineNumber, drafts[i].EndLineNumber)
	}
	return clean, drafts
}

// HasInlineMarkers reports whether text contains at least one marker line.
func HasInlineMarkers(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		if markerRe.MatchString(strings.TrimSuffix(line, "\r")) {
			return true
		}
	}
	return false
}

var (
	inlineEscaper   = strings.NewReplacer(`\`, `\\`, "\n", `\n`)
	inlineUnescaper = strings.NewReplacer(`\\`, `\`, `\n`, "\n", `\s`, " ", `\t`, "\t")
)

// escapeInline keeps content on one marker line. Leading blanks are written
// as \s and \t since the marker pattern skips blanks after the colon.
func escapeInline(s string) string {
	s = inlineEscaper.Replace(s)
	var lead strings.Builder
	i := 0
	for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
		if s[i] == ' ' {
			lead.WriteString(`\s`)
		} else {
			lead.WriteString(`\t`)
		}
		i++
	}
	return lead.String() + s[i:]
}

func unescapeInline(s string) string { return inlineUnescaper.Replace(s) }
