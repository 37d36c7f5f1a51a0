// Package lexer classifies the tokens of one line of a fixed-column card
// language for syntax highlighting. It never fails: characters that match no
// rule are skipped.
package lexer

import (
	"regexp"
	"strings"
)

// Category is the lexical class of a token.
type Category string

const (
	Keyword        Category = "keyword"
	Identifier     Category = "identifier"
	Operator       Category = "operator"
	String         Category = "string"
	Comment        Category = "comment"
	Label          Category = "label"
	Number         Category = "number"
	FunctionCall   Category = "function-call"
	ArrayReference Category = "array-reference"
	Meta           Category = "meta"
	SequenceMeta   Category = "sequence-meta"
)

// Token is one classified slice of a line. Start is the byte offset.
type Token struct {
	Text     string   `json:"text"`
	Category Category `json:"category"`
	Start    int      `json:"start"`
}

// State is the scan state carried between calls on the same line.
type State struct {
	// ExpectingLabel is set after a transfer construct; the next identifier
	// is the transfer target.
	ExpectingLabel bool
}

var sequenceTail = regexp.MustCompile(`^\s*\d{5,8}\s*$`)

// Next scans one token starting at pos. It returns the token, the advanced
// offset and the new state; ok is false when nothing was emitted (whitespace
// or an unrecognised character). The returned offset is always > pos while
// pos < len(line).
func (d *Dialect) Next(line string, pos int, st State) (tok Token, next int, out State, ok bool) {
	n := len(line)
	if pos >= n {
		return Token{}, pos, st, false
	}
	emit := func(end int, c Category) (Token, int, State, bool) {
		return Token{Text: line[pos:end], Category: c, Start: pos}, end, st, true
	}

	if pos >= d.sequenceColumn && sequenceTail.MatchString(line[pos:]) {
		return emit(n, SequenceMeta)
	}

	if pos == 0 {
		// A remark card owns the whole line, label field included.
		if d.isComment(line) {
			return emit(n, Comment)
		}
		if d.isContinuation(line) {
			return emit(d.labelWidth, Meta)
		}
		if isLetter(line[0]) {
			return emit(scanWord(line, 0), Label)
		}
		end := 0
		for end < n && end < d.labelWidth && isSpace(line[end]) {
			end++
		}
		if end > 0 {
			return emit(end, Meta)
		}
	}

	c := line[pos]

	if isSpace(c) {
		end := pos
		for end < n && isSpace(line[end]) {
			end++
		}
		return Token{}, end, st, false
	}

	if c == d.stringDelimiter {
		end := n
		if i := strings.IndexByte(line[pos+1:], d.stringDelimiter); i >= 0 {
			end = pos + 1 + i + 1
		}
		return emit(end, String)
	}

	if isDigit(c) {
		return emit(d.scanNumber(line, pos), Number)
	}

	if strings.IndexByte(d.operators, c) >= 0 {
		return emit(pos+1, Operator)
	}

	if c == '.' {
		j := pos + 1
		for j < n && isLetter(line[j]) {
			j++
		}
		if j > pos+1 && j < n && line[j] == '.' {
			if _, found := d.dotted[strings.ToUpper(line[pos:j+1])]; found {
				return emit(j+1, Keyword)
			}
		}
		return emit(pos+1, Operator)
	}

	if isLetter(c) && pos+2 < n && line[pos+1] == '\'' && isLetter(line[pos+2]) {
		if transfer, found := d.apostrophe[strings.ToUpper(line[pos:pos+3])]; found {
			if transfer {
				st.ExpectingLabel = true
			}
			return emit(pos+3, Keyword)
		}
	}

	if isLetter(c) {
		return d.scanIdentifier(line, pos, st)
	}

	return Token{}, pos + 1, st, false
}

func (d *Dialect) scanIdentifier(line string, pos int, st State) (Token, int, State, bool) {
	n := len(line)
	end := scanWord(line, pos)
	word := strings.ToUpper(line[pos:end])
	emit := func(end int, c Category) (Token, int, State, bool) {
		return Token{Text: line[pos:end], Category: c, Start: pos}, end, st, true
	}

	for _, p := range d.phrases[word] {
		if stop, matched := matchPhrase(line, end, p.rest); matched {
			if p.transfer {
				st.ExpectingLabel = true
			}
			return emit(stop, Keyword)
		}
	}

	if _, found := d.keywords[word]; found {
		return emit(end, Keyword)
	}

	if end+1 < n && line[end] == '.' && line[end+1] == '(' {
		if _, found := d.builtins[word]; found {
			return emit(end+1, Keyword)
		}
		return emit(end+1, FunctionCall)
	}

	if end < n && line[end] == '(' {
		return emit(end, ArrayReference)
	}

	if st.ExpectingLabel {
		st.ExpectingLabel = false
		return emit(end, Label)
	}

	return emit(end, Identifier)
}

// matchPhrase checks that words follow pos, each separated by whitespace.
func matchPhrase(line string, pos int, words []string) (int, bool) {
	for _, w := range words {
		j := pos
		for j < len(line) && isSpace(line[j]) {
			j++
		}
		if j == pos {
			return 0, false
		}
		end := scanWord(line, j)
		if end == j || !strings.EqualFold(line[j:end], w) {
			return 0, false
		}
		pos = end
	}
	return pos, true
}

func (d *Dialect) scanNumber(line string, pos int) int {
	n := len(line)
	end := pos
	for end < n && isDigit(line[end]) {
		end++
	}
	if end < n && upper(line[end]) == d.octalSuffix {
		return end + 1
	}
	// A dot followed by a letter starts a dotted operator, not a fraction.
	if end < n && line[end] == '.' && (end+1 >= n || !isLetter(line[end+1])) {
		end++
		for end < n && isDigit(line[end]) {
			end++
		}
	}
	if end < n && (line[end] == 'E' || line[end] == 'e') {
		j := end + 1
		if j < n && (line[j] == '+' || line[j] == '-') {
			j++
		}
		if j < n && isDigit(line[j]) {
			for j < n && isDigit(line[j]) {
				j++
			}
			end = j
		}
	}
	return end
}

func (d *Dialect) isComment(line string) bool {
	if len(line) < 2 || upper(line[0]) != d.commentLetter {
		return false
	}
	return line[1] == '*' || isSpace(line[1])
}

func (d *Dialect) isContinuation(line string) bool {
	w := d.labelWidth
	if len(line) < w || w < 1 {
		return false
	}
	if strings.TrimLeft(line[:w-1], " ") != "" {
		return false
	}
	c := line[w-1]
	return c >= '1' && c <= '9'
}

// Line tokenizes a whole line. The incoming state is discarded: every line
// starts with ExpectingLabel cleared.
func (d *Dialect) Line(line string, _ State) ([]Token, State) {
	var (
		out []Token
		st  State
		pos int
	)
	line = strings.TrimSuffix(line, "\r")
	for pos < len(line) {
		tok, next, nst, ok := d.Next(line, pos, st)
		st = nst
		if ok {
			out = append(out, tok)
		}
		pos = next
	}
	return out, st
}

// Lines tokenizes every line of text.
func (d *Dialect) Lines(text string) [][]Token {
	lines := strings.Split(text, "\n")
	out := make([][]Token, len(lines))
	var st State
	for i, l := range lines {
		out[i], st = d.Line(l, st)
	}
	return out
}

func isDigit(b byte) bool  { return b >= '0' && b <= '9' }
func isLetter(b byte) bool { return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') }
func isSpace(b byte) bool  { return b == ' ' || b == '\t' }

func upper(b byte) byte {
	if b >= 'a' && b <= 'z' {
		return b - 'a' + 'A'
	}
	return b
}

func scanWord(line string, pos int) int {
	end := pos
	for end < len(line) && (isLetter(line[end]) || isDigit(line[end])) {
		end++
	}
	return end
}
