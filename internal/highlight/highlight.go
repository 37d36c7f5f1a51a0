// Package highlight turns source text into colored spans for display. Card
// dialect files go through the lexer package; every other language is
// tokenized by chroma. Both share one category vocabulary and one style.
package highlight

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/starford/marginalia/internal/checksum"
	"github.com/starford/marginalia/internal/lexer"
)

const (
	DefaultStyle     = "dracula"
	DefaultCacheSize = 256
)

// Span is a run of text with one category. Category is empty for
// whitespace and unclassified text.
type Span struct {
	Text     string         `json:"text"`
	Category lexer.Category `json:"category,omitempty"`
	Color    string         `json:"color,omitempty"`
}

// Line holds the spans of one source line.
type Line struct {
	Spans []Span `json:"spans"`
}

// Plain returns the concatenated text of all spans.
func (l Line) Plain() string {
	var b strings.Builder
	for _, s := range l.Spans {
		b.WriteString(s.Text)
	}
	return b.String()
}

// Highlighter produces highlighted lines and caches results by content.
type Highlighter struct {
	style     *chroma.Style
	dialect   *lexer.Dialect
	cacheSize int
	cache     *lru.Cache[string, []Line]
}

// Option configures a Highlighter.
type Option func(*Highlighter)

// WithStyle selects a chroma style by name. Unknown names keep the default.
func WithStyle(name string) Option {
	return func(h *Highlighter) {
		if s := styles.Get(name); s != nil && s.Name == name {
			h.style = s
		}
	}
}

// WithDialect replaces the card dialect used for files of that language.
func WithDialect(d *lexer.Dialect) Option {
	return func(h *Highlighter) { h.dialect = d }
}

// WithCacheSize sets the number of highlighted texts kept in memory. Zero
// or less keeps the default.
func WithCacheSize(n int) Option {
	return func(h *Highlighter) { h.cacheSize = n }
}

// New creates a Highlighter.
func New(opts ...Option) (*Highlighter, error) {
	h := &Highlighter{
		style:     styles.Get(DefaultStyle),
		dialect:   lexer.MAD(),
		cacheSize: DefaultCacheSize,
	}
	for _, o := range opts {
		o(h)
	}
	if h.style == nil {
		h.style = styles.Fallback
	}
	if h.cacheSize <= 0 {
		h.cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, []Line](h.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("highlight: cache: %w", err)
	}
	h.cache = cache
	return h, nil
}

// Highlight returns one Line per line of text. lang takes precedence over the
// file name when choosing a tokenizer. The returned slice is shared with the
// cache and must not be modified.
func (h *Highlighter) Highlight(name, lang, text string) []Line {
	key := strings.ToLower(lang) + "\x00" + strings.ToLower(filepath.Ext(name)) + "\x00" + checksum.Sum([]byte(text))
	if lines, ok := h.cache.Get(key); ok {
		return lines
	}

	var lines []Line
	if h.isDialect(name, lang) {
		lines = h.dialectLines(text)
	} else {
		lines = h.chromaLines(name, lang, text)
	}
	h.cache.Add(key, lines)
	return lines
}

// Color returns the style color for a category, or "" when the style leaves
// it at the default.
func (h *Highlighter) Color(c lexer.Category) string {
	tt, ok := categoryTokens[c]
	if !ok {
		return ""
	}
	return h.tokenColor(tt)
}

func (h *Highlighter) isDialect(name, lang string) bool {
	if lang != "" {
		return strings.EqualFold(lang, h.dialect.Name())
	}
	return strings.EqualFold(filepath.Ext(name), "."+h.dialect.Name())
}

func (h *Highlighter) dialectLines(text string) []Line {
	raw := strings.Split(text, "\n")
	out := make([]Line, len(raw))
	for i, l := range raw {
		l = strings.TrimSuffix(l, "\r")
		toks, _ := h.dialect.Line(l, lexer.State{})
		var spans []Span
		pos := 0
		for _, t := range toks {
			if t.Start > pos {
				spans = append(spans, Span{Text: l[pos:t.Start]})
			}
			spans = append(spans, Span{Text: t.Text, Category: t.Category, Color: h.Color(t.Category)})
			pos = t.Start + len(t.Text)
		}
		if pos < len(l) {
			spans = append(spans, Span{Text: l[pos:]})
		}
		out[i] = Line{Spans: spans}
	}
	return out
}

func (h *Highlighter) chromaLines(name, lang, text string) []Line {
	raw := strings.Split(text, "\n")
	lex := lexerFor(name, lang)
	if lex == nil {
		return plainLines(raw)
	}
	it, err := lex.Tokenise(nil, text)
	if err != nil {
		return plainLines(raw)
	}

	out := make([]Line, 0, len(raw))
	var current Line
	for _, tok := range it.Tokens() {
		// Tokens may span several lines.
		parts := strings.Split(tok.Value, "\n")
		for i, part := range parts {
			if i > 0 {
				out = append(out, current)
				current = Line{}
			}
			if part == "" {
				continue
			}
			cat := categoryOf(tok.Type)
			span := Span{Text: part, Category: cat}
			if cat != "" {
				span.Color = h.tokenColor(tok.Type)
			}
			current.Spans = append(current.Spans, span)
		}
	}
	out = append(out, current)

	// Some lexers drop or add a trailing newline; keep line counts aligned.
	for len(out) < len(raw) {
		out = append(out, Line{})
	}
	return out[:len(raw)]
}

func plainLines(raw []string) []Line {
	out := make([]Line, len(raw))
	for i, l := range raw {
		if l != "" {
			out[i] = Line{Spans: []Span{{Text: l}}}
		}
	}
	return out
}

func lexerFor(name, lang string) chroma.Lexer {
	var lex chroma.Lexer
	if lang != "" {
		lex = lexers.Get(lang)
	}
	if lex == nil && name != "" {
		lex = lexers.Match(filepath.Base(name))
	}
	if lex == nil {
		return nil
	}
	return chroma.Coalesce(lex)
}

func (h *Highlighter) tokenColor(tt chroma.TokenType) string {
	entry := h.style.Get(tt)
	if entry.Colour.IsSet() {
		return entry.Colour.String()
	}
	return ""
}

var categoryTokens = map[lexer.Category]chroma.TokenType{
	lexer.Keyword:        chroma.Keyword,
	lexer.Identifier:     chroma.Name,
	lexer.Operator:       chroma.Operator,
	lexer.String:         chroma.LiteralString,
	lexer.Comment:        chroma.Comment,
	lexer.Label:          chroma.NameLabel,
	lexer.Number:         chroma.LiteralNumber,
	lexer.FunctionCall:   chroma.NameFunction,
	lexer.ArrayReference: chroma.NameVariable,
	lexer.Meta:           chroma.CommentPreproc,
	lexer.SequenceMeta:   chroma.CommentSpecial,
}

func categoryOf(tt chroma.TokenType) lexer.Category {
	switch {
	case tt.InCategory(chroma.Keyword):
		return lexer.Keyword
	case tt.InSubCategory(chroma.CommentPreproc):
		return lexer.Meta
	case tt.InCategory(chroma.Comment):
		return lexer.Comment
	case tt.InSubCategory(chroma.LiteralString):
		return lexer.String
	case tt.InSubCategory(chroma.LiteralNumber):
		return lexer.Number
	case tt.InCategory(chroma.Operator), tt.InCategory(chroma.Punctuation):
		return lexer.Operator
	case tt == chroma.NameFunction, tt == chroma.NameBuiltin, tt == chroma.NameFunctionMagic:
		return lexer.FunctionCall
	case tt == chroma.NameLabel:
		return lexer.Label
	case tt.InCategory(chroma.Name):
		return lexer.Identifier
	}
	return ""
}
