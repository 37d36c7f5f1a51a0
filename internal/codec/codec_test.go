package codec

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/starford/marginalia/internal/models"
)

const sample = "R PROGRAM\n      X = 1\n      W'R X .G. 0\n        PRINT X\n      E'L\n      END OF PROGRAM"

func sampleAnnotations() []models.Annotation {
	return []models.Annotation{
		{ID: "1", LineNumber: 2, LineContent: "      X = 1", Type: models.TypeObservation, Content: "initial value"},
		{ID: "2", LineNumber: 3, EndLineNumber: 5, LineContent: "      W'R X .G. 0\n        PRINT X\n      E'L", Type: models.TypePattern, Content: "guarded print", AddedBy: "Ada"},
		{ID: "3", LineNumber: 3, LineContent: "      W'R X .G. 0", Type: models.TypeQuestion, Content: "why: \"G\" and not #GE?"},
		{ID: "4", LineNumber: 6, LineContent: "      END OF PROGRAM", Type: models.TypeCritique, Content: "two\nlines with \\ slash"},
	}
}

type shape struct {
	Line, End        int
	Type             models.AnnotationType
	Content, AddedBy string
}

func shapesOf(anns []models.Annotation) []shape {
	out := make([]shape, len(anns))
	for i, a := range anns {
		out[i] = shape{a.LineNumber, a.EndLineNumber, a.Type, a.Content, a.AddedBy}
	}
	return out
}

func shapesOfDrafts(ds []models.Draft) []shape {
	out := make([]shape, len(ds))
	for i, d := range ds {
		out[i] = shape{d.LineNumber, d.EndLineNumber, d.Type, d.Content, d.AddedBy}
	}
	return out
}

func TestEncodeInlineLayout(t *testing.T) {
	got := EncodeInline("A\nB", []models.Annotation{
		{LineNumber: 1, Type: models.TypeContext, Content: "first"},
		{LineNumber: 1, EndLineNumber: 2, Type: models.TypeMetaphor, Content: "second"},
		{LineNumber: 9, Type: models.TypeContext, Content: "past the end"},
	})
	assert.Equal(t, "A\n\t\t//An:CTX: first\n\t\t//An:META[L1-2]: second\nB", got)
}

func TestInlineRoundTrip(t *testing.T) {
	anns := sampleAnnotations()
	code, drafts := DecodeInline(EncodeInline(sample, anns))
	assert.Equal(t, sample, code)

	// Inline markers do not carry the author.
	want := shapesOf(anns)
	for i := range want {
		want[i].AddedBy = ""
	}
	assert.Equal(t, want, shapesOfDrafts(drafts))
	assert.Equal(t, anns[1].LineContent, drafts[1].LineContent)
}

func TestInlineRoundTripKeepsTrailingNewline(t *testing.T) {
	code := "A\nB\n"
	text := EncodeInline(code, []models.Annotation{{LineNumber: 3, Type: models.TypeObservation, Content: "eof"}})
	got, drafts := DecodeInline(text)
	assert.Equal(t, code, got)
	require.Len(t, drafts, 1)
	assert.Equal(t, 3, drafts[0].LineNumber)
}

func TestInlineRoundTripKeepsLeadingBlanks(t *testing.T) {
	anns := []models.Annotation{
		{LineNumber: 1, Type: models.TypeObservation, Content: "  indented note"},
		{LineNumber: 1, Type: models.TypeContext, Content: "\t tab then space"},
		{LineNumber: 1, Type: models.TypeQuestion, Content: `literal \s and \t stay`},
	}
	text := EncodeInline("x = 1", anns)
	assert.Contains(t, text, `//An:OBS: \s\sindented note`)

	code, drafts := DecodeInline(text)
	assert.Equal(t, "x = 1", code)
	require.Len(t, drafts, 3)
	for i, a := range anns {
		assert.Equal(t, a.Content, drafts[i].Content, "annotation %d", i)
	}
}

func TestDecodeInlineAttachesToLineAbove(t *testing.T) {
	text := strings.Join([]string{
		"//An:OBS: orphan marker is dropped",
		"A",
		"  // An:QUES:   spaced out",
		"B",
		"\t\t//An:CRIT[L7-9]: block moved by hand",
		"// An ordinary comment",
		"//An:XYZ: unknown prefix stays code",
	}, "\n")
	code, drafts := DecodeInline(text)
	assert.Equal(t, "A\nB\n// An ordinary comment\n//An:XYZ: unknown prefix stays code", code)
	require.Len(t, drafts, 2)
	assert.Equal(t, 1, drafts[0].LineNumber)
	assert.Equal(t, models.TypeQuestion, drafts[0].Type)
	assert.Equal(t, "spaced out", drafts[0].Content)
	assert.Equal(t, "A", drafts[0].LineContent)

	assert.Equal(t, 2, drafts[1].LineNumber)
	assert.Equal(t, 4, drafts[1].EndLineNumber)
	assert.Equal(t, "B\n// An ordinary comment\n//An:XYZ: unknown prefix stays code", drafts[1].LineContent)
	assert.True(t, HasInlineMarkers(text))
	assert.False(t, HasInlineMarkers(code))
}

func TestMarkdownRoundTrip(t *testing.T) {
	anns := sampleAnnotations()
	doc := GenerateMarkdown(sample, anns, "f.x", "lang")

	parsed, err := ParseMarkdown(doc)
	require.NoError(t, err)
	assert.Equal(t, sample, parsed.Code)
	assert.Equal(t, "f.x", parsed.Name)
	assert.Equal(t, "lang", parsed.Language)
	assert.Equal(t, shapesOf(anns), shapesOfDrafts(parsed.Annotations))
	for i, d := range parsed.Annotations {
		assert.Equal(t, anns[i].LineContent, d.LineContent, "annotation %d", i)
	}
}

func TestMarkdownEscaping(t *testing.T) {
	content := `ratio: 3 "quoted" #tag it's`
	doc := GenerateMarkdown("X", []models.Annotation{{LineNumber: 1, Type: models.TypeObservation, Content: content}}, "a.mad", "mad")
	assert.Contains(t, doc, `content: "ratio: 3 \"quoted\" #tag it's"`)

	parsed, err := ParseMarkdown(doc)
	require.NoError(t, err)
	require.Len(t, parsed.Annotations, 1)
	assert.Equal(t, content, parsed.Annotations[0].Content)
}

func TestMarkdownQuotesBlanksAndBackslash(t *testing.T) {
	cases := map[string]string{
		"  padded ":  `"  padded "`,
		`C:\path`:    `"C:\\path"`,
		`back\slash`: `"back\\slash"`,
	}
	for content, want := range cases {
		doc := GenerateMarkdown("X", []models.Annotation{{LineNumber: 1, Type: models.TypeObservation, Content: content}}, "a.mad", "mad")
		assert.Contains(t, doc, "content: "+want+"\n", content)

		parsed, err := ParseMarkdown(doc)
		require.NoError(t, err)
		require.Len(t, parsed.Annotations, 1)
		assert.Equal(t, content, parsed.Annotations[0].Content)
	}
}

func TestMarkdownBareValues(t *testing.T) {
	doc := GenerateMarkdown("X", []models.Annotation{{LineNumber: 1, Type: models.TypeContext, Content: "plain words", AddedBy: "AB"}}, "a.mad", "mad")
	assert.Contains(t, doc, "    content: plain words\n")
	assert.Contains(t, doc, "    addedBy: AB\n")
	assert.NotContains(t, doc, "endLine")
}

func TestMarkdownHeaderIsYAML(t *testing.T) {
	doc := GenerateMarkdown(sample, sampleAnnotations(), "f.x", "lang")
	end := strings.Index(doc[3:], "\n---\n")
	require.Positive(t, end)

	var header struct {
		Title       string `yaml:"title"`
		Annotated   bool   `yaml:"annotated"`
		Annotations []struct {
			Line    int    `yaml:"line"`
			EndLine int    `yaml:"endLine"`
			Type    string `yaml:"type"`
			Content string `yaml:"content"`
		} `yaml:"annotations"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(doc[3:3+end]), &header))
	assert.True(t, header.Annotated)
	assert.Equal(t, "f.x", header.Title)
	require.Len(t, header.Annotations, 4)
	assert.Equal(t, 5, header.Annotations[1].EndLine)
	assert.Equal(t, "why: \"G\" and not #GE?", header.Annotations[2].Content)
	assert.Equal(t, "two\nlines with \\ slash", header.Annotations[3].Content)
}

func TestMarkdownEmptyAndEdgeCode(t *testing.T) {
	for _, code := range []string{"", "\n", "a\n", "```\nnested fence\n```"} {
		parsed, err := ParseMarkdown(GenerateMarkdown(code, nil, "x", ""))
		require.NoError(t, err, "%q", code)
		assert.Equal(t, code, parsed.Code, "%q", code)
		assert.Empty(t, parsed.Annotations)
	}
}

func TestParseMarkdownRejectsPlainMarkdown(t *testing.T) {
	cases := map[string]string{
		"no frontmatter":  "# Title\n\ntext",
		"no sentinel":     "---\ntitle: x\n---\n\nbody",
		"sentinel false":  "---\nannotated: false\n---\n\nbody",
		"sentinel nested": "---\nannotations:\n  - annotated: true\n    line: 1\n---\n",
	}
	for name, doc := range cases {
		_, err := ParseMarkdown(doc)
		assert.ErrorIs(t, err, ErrNotAnnotated, name)
	}
}

func TestParseMarkdownMalformed(t *testing.T) {
	cases := map[string]string{
		"unclosed":      "---\nannotated: true\n",
		"bad line":      "---\nannotated: true\nannotations:\n  - line: zero\n    type: question\n---\n",
		"no key":        "---\nannotated: true\njust text\n---\n",
		"open quote":    "---\nannotated: true\ntitle: \"abc\n---\n",
		"stray indent":  "---\nannotated: true\n  line: 1\n---\n",
		"end < start":   "---\nannotated: true\nannotations:\n  - line: 4\n    endLine: 2\n---\n",
		"orphan fields": "---\nannotated: true\nannotations:\n    line: 1\n---\n",
	}
	for name, doc := range cases {
		_, err := ParseMarkdown(doc)
		assert.True(t, errors.Is(err, ErrMalformed), "%s: %v", name, err)
	}
}

func TestParseMarkdownLenientBody(t *testing.T) {
	doc := "---\nannotated: true\nannotations:\n  - line: 1\n    type: rant\n    content: hi\n---\n\nno fence here\n"
	parsed, err := ParseMarkdown(doc)
	require.NoError(t, err)
	assert.Equal(t, "no fence here\n", parsed.Code)
	require.Len(t, parsed.Annotations, 1)
	assert.Equal(t, models.TypeObservation, parsed.Annotations[0].Type)
	assert.Equal(t, "no fence here", parsed.Annotations[0].LineContent)
	assert.True(t, IsAnnotatedMarkdown(doc))
	assert.False(t, IsAnnotatedMarkdown("# hi"))
}

func TestParseMarkdownOrphansLinesPastTheEnd(t *testing.T) {
	doc := GenerateMarkdown("A\nB\n", []models.Annotation{
		{LineNumber: 2, Type: models.TypeContext, Content: "fits"},
		{LineNumber: 99, Type: models.TypeContext, Content: "gone"},
		{LineNumber: 2, EndLineNumber: 5, Type: models.TypePattern, Content: "runs off"},
	}, "f.x", "lang")

	parsed, err := ParseMarkdown(doc)
	require.NoError(t, err)
	require.Len(t, parsed.Annotations, 3)

	assert.False(t, parsed.Annotations[0].Orphaned)
	assert.Equal(t, "B", parsed.Annotations[0].LineContent)
	for _, d := range parsed.Annotations[1:] {
		assert.True(t, d.Orphaned, "%q", d.Content)
		assert.Empty(t, d.LineContent)
	}
}

func TestParseMarkdownStopsAtFirstBlockBeforeProse(t *testing.T) {
	doc := "---\nannotated: true\n---\n\n```python\na = 1\n```\n\nNotes:\n\n```\nunrelated"
	parsed, err := ParseMarkdown(doc)
	require.NoError(t, err)
	assert.Equal(t, "a = 1", parsed.Code)
}

func TestMarkdownRoundTripCodeWithFences(t *testing.T) {
	code := "text = '''\n```\nnot a fence\n```\n'''"
	parsed, err := ParseMarkdown(GenerateMarkdown(code, nil, "doc.py", "python"))
	require.NoError(t, err)
	assert.Equal(t, code, parsed.Code)
}

func TestExportFilename(t *testing.T) {
	assert.Equal(t, "prog.annotated.mad", ExportFilename("prog.mad", "mad", FormatInline))
	assert.Equal(t, "prog.annotated.md", ExportFilename("dir/prog.mad", "mad", FormatMarkdown))
	assert.Equal(t, "prog.annotated.py", ExportFilename("prog", "Python", FormatInline))
	assert.Equal(t, "prog.annotated.txt", ExportFilename("prog", "klingon", FormatInline))
	assert.Equal(t, ".bashrc.annotated.sh", ExportFilename(".bashrc", "bash", FormatInline))
}

func TestExtensionTables(t *testing.T) {
	assert.Equal(t, ".txt", ExtensionFor(""))
	assert.Equal(t, ".cpp", ExtensionFor("C++"))
	lang, ok := LanguageForExtension("cpp")
	require.True(t, ok)
	assert.Equal(t, "cpp", lang)
	assert.Equal(t, "mad", LanguageForPath("src/PROG.MAD"))
	assert.Equal(t, "", LanguageForPath("README"))
	assert.GreaterOrEqual(t, len(languageExtensions), 40)
}

func TestParseFormat(t *testing.T) {
	f, ok := ParseFormat("MD")
	assert.True(t, ok)
	assert.Equal(t, FormatMarkdown, f)
	_, ok = ParseFormat("pdf")
	assert.False(t, ok)
}
