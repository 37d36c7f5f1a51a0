package codec

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/starford/marginalia/internal/anchor"
	"github.com/starford/marginalia/internal/models"
)

var (
	// ErrNotAnnotated means the document is markdown but not an annotated export.
	ErrNotAnnotated = errors.New("codec: document is not an annotated export")
	// ErrMalformed means the frontmatter could not be read.
	ErrMalformed = errors.New("codec: malformed frontmatter")
)

const (
	delim         = "---"
	fence         = "```"
	sentinelKey   = "annotated"
	sentinelValue = "true"
)

// Document is a parsed markdown export.
type Document struct {
	Name        string
	Language    string
	Code        string
	Annotations []models.Draft
}

// GenerateMarkdown renders code and its annotations as a markdown document
// with a frontmatter header. Ids and timestamps are not written.
func GenerateMarkdown(code string, anns []models.Annotation, name, lang string) string {
	var b strings.Builder
	b.WriteString(delim + "\n")
	field(&b, "", "title", name)
	field(&b, "", "language", lang)
	field(&b, "", sentinelKey, sentinelValue)
	if len(anns) > 0 {
		b.WriteString("annotations:\n")
		for _, a := range anns {
			b.WriteString("  - line: " + strconv.Itoa(a.LineNumber) + "\n")
			if a.IsBlock() {
				field(&b, "    ", "endLine", strconv.Itoa(a.EndLineNumber))
			}
			field(&b, "    ", "type", string(a.Type))
			field(&b, "    ", "content", a.Content)
			if a.AddedBy != "" {
				field(&b, "    ", "addedBy", a.AddedBy)
			}
		}
	}
	b.WriteString(delim + "\n\n")
	b.WriteString(fence + lang + "\n")
	b.WriteString(code)
	b.WriteString("\n" + fence + "\n")
	return b.String()
}

func field(b *strings.Builder, indent, key, value string) {
	b.WriteString(indent + key + ": " + quote(value) + "\n")
}

// ParseMarkdown reads a document produced by GenerateMarkdown. Annotations
// on lines beyond the code come back orphaned. It returns
// ErrNotAnnotated for any markdown lacking the annotated marker field and
// ErrMalformed when the header cannot be read.
func ParseMarkdown(doc string) (*Document, error) {
	doc = strings.ReplaceAll(doc, "\r\n", "\n")
	if !strings.HasPrefix(doc, delim) {
		return nil, ErrNotAnnotated
	}
	rest := doc[len(delim):]
	end := closingDelim(rest)
	if end < 0 {
		return nil, fmt.Errorf("%w: missing closing %s", ErrMalformed, delim)
	}
	header := rest[:end]
	body := strings.TrimPrefix(rest[end+1+len(delim):], "\n")

	fields, items, err := readHeader(header)
	if err != nil {
		return nil, err
	}
	if fields[sentinelKey] != sentinelValue {
		return nil, ErrNotAnnotated
	}

	out := &Document{
		Name:     fields["title"],
		Language: fields["language"],
		Code:     extractCode(body),
	}
	for i, it := range items {
		d, err := itemDraft(it)
		if err != nil {
			return nil, fmt.Errorf("%w: annotation %d: %v", ErrMalformed, i+1, err)
		}
		if anchor.InRange(out.Code, d.LineNumber, d.EndLineNumber) {
			d.LineContent = anchor.Capture(out.Code, d.LineNumber, d.EndLineNumber)
		} else {
			// Lines past the end of the code: keep the remark, detached.
			d.Orphaned = true
		}
		out.Annotations = append(out.Annotations, d)
	}
	return out, nil
}

// IsAnnotatedMarkdown reports whether doc carries the export marker.
func IsAnnotatedMarkdown(doc string) bool {
	_, err := ParseMarkdown(doc)
	return err == nil
}

// closingDelim finds the "\n---" line that ends the header.
func closingDelim(s string) int {
	from := 0
	for {
		i := strings.Index(s[from:], "\n"+delim)
		if i < 0 {
			return -1
		}
		i += from
		after := i + 1 + len(delim)
		if after == len(s) || s[after] == '\n' {
			return i
		}
		from = i + 1
	}
}

// extractCode returns the contents of the first fenced block. When the body
// ends with a fence, that fence closes the block, so code containing fence
// lines of its own survives. Otherwise the first bare fence line closes it
// and any prose after it is ignored.
func extractCode(body string) string {
	open := strings.Index(body, fence)
	if open < 0 {
		return body
	}
	nl := strings.IndexByte(body[open:], '\n')
	if nl < 0 {
		return body
	}
	rest := body[open+nl+1:]

	trimmed := strings.TrimRight(rest, " \t\n")
	if trimmed == fence {
		return ""
	}
	if strings.HasSuffix(trimmed, "\n"+fence) {
		return strings.TrimSuffix(trimmed, "\n"+fence)
	}

	lines := strings.Split(rest, "\n")
	for i, line := range lines {
		if strings.TrimRight(line, " \t") == fence {
			return strings.Join(lines[:i], "\n")
		}
	}
	return strings.TrimSuffix(rest, "\n")
}

func readHeader(header string) (map[string]string, []map[string]string, error) {
	fields := make(map[string]string)
	var (
		items   []map[string]string
		inItems bool
	)
	for n, line := range strings.Split(header, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		indented := line[0] == ' ' || line[0] == '\t'
		trimmed := strings.TrimSpace(line)

		if !indented {
			key, value, err := splitField(trimmed)
			if err != nil {
				return nil, nil, fmt.Errorf("%w: line %d: %v", ErrMalformed, n+1, err)
			}
			inItems = key == "annotations" && value == ""
			if !inItems {
				fields[key] = value
			}
			continue
		}

		if !inItems {
			return nil, nil, fmt.Errorf("%w: line %d: unexpected indentation", ErrMalformed, n+1)
		}
		if strings.HasPrefix(trimmed, "- ") {
			items = append(items, make(map[string]string))
			trimmed = strings.TrimSpace(trimmed[2:])
		}
		if len(items) == 0 {
			return nil, nil, fmt.Errorf("%w: line %d: field outside list item", ErrMalformed, n+1)
		}
		key, value, err := splitField(trimmed)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: line %d: %v", ErrMalformed, n+1, err)
		}
		items[len(items)-1][key] = value
	}
	return fields, items, nil
}

func splitField(s string) (string, string, error) {
	key, raw, ok := strings.Cut(s, ":")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", "", errors.New("expected key: value")
	}
	value, err := unquote(strings.TrimSpace(raw))
	if err != nil {
		return "", "", err
	}
	return key, value, nil
}

func itemDraft(it map[string]string) (models.Draft, error) {
	line, err := strconv.Atoi(it["line"])
	if err != nil || line < 1 {
		return models.Draft{}, fmt.Errorf("invalid line %q", it["line"])
	}
	d := models.Draft{
		LineNumber: line,
		Content:    it["content"],
		AddedBy:    it["addedBy"],
		Type:       models.TypeObservation,
	}
	if t, ok := models.ParseAnnotationType(it["type"]); ok {
		d.Type = t
	}
	if raw, ok := it["endLine"]; ok {
		end, err := strconv.Atoi(raw)
		if err != nil || end < line {
			return models.Draft{}, fmt.Errorf("invalid endLine %q", raw)
		}
		if end > line {
			d.EndLineNumber = end
		}
	}
	return d, nil
}

// quote wraps s in double quotes when it contains a character the header
// reader treats specially, or whitespace it would otherwise trim.
func quote(s string) string {
	if s != "" && s == strings.TrimSpace(s) && !strings.ContainsAny(s, ":\n'\"#\\") {
		return s
	}
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '"', '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
	return b.String()
}

func unquote(s string) (string, error) {
	if !strings.HasPrefix(s, `"`) {
		return s, nil
	}
	var b strings.Builder
	for i := 1; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"':
			if strings.TrimSpace(s[i+1:]) != "" {
				return "", errors.New("trailing text after quoted value")
			}
			return b.String(), nil
		case c == '\\' && i+1 < len(s):
			i++
			switch s[i] {
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case 't':
				b.WriteByte('\t')
			default:
				b.WriteByte(s[i])
			}
		default:
			b.WriteByte(c)
		}
	}
	return "", errors.New("unterminated quoted value")
}
