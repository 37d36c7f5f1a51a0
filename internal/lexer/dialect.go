package lexer

import "strings"

// Dialect holds the fixed vocabulary and column layout of one card-format
// language. A Dialect is immutable after construction and safe to share.
type Dialect struct {
	name            string
	commentLetter   byte
	stringDelimiter byte
	octalSuffix     byte
	labelWidth      int
	sequenceColumn  int
	operators       string

	keywords   map[string]struct{}
	dotted     map[string]struct{}
	apostrophe map[string]bool // value: the construct transfers control
	builtins   map[string]struct{}
	phrases    map[string][]phrase
}

// phrase is a multi-word keyword keyed by its first word.
type phrase struct {
	rest     []string
	transfer bool
}

// DialectOption customises a Dialect derived from the MAD defaults.
type DialectOption func(*Dialect)

// WithCommentLetter sets the letter that introduces a full-line remark.
func WithCommentLetter(c byte) DialectOption {
	return func(d *Dialect) { d.commentLetter = upper(c) }
}

// WithStringDelimiter sets the character that opens and closes literals.
func WithStringDelimiter(c byte) DialectOption {
	return func(d *Dialect) { d.stringDelimiter = c }
}

// WithColumns sets the label-field width and the first sequence column.
func WithColumns(labelWidth, sequenceColumn int) DialectOption {
	return func(d *Dialect) {
		d.labelWidth = labelWidth
		d.sequenceColumn = sequenceColumn
	}
}

// WithName renames the derived dialect.
func WithName(name string) DialectOption {
	return func(d *Dialect) { d.name = name }
}

// NewDialect returns a copy of the MAD dialect with opts applied. The keyword
// tables are shared with MAD since they are never mutated.
func NewDialect(opts ...DialectOption) *Dialect {
	d := *mad
	for _, opt := range opts {
		opt(&d)
	}
	return &d
}

// MAD returns the default dialect.
func MAD() *Dialect { return mad }

// Name returns the dialect name.
func (d *Dialect) Name() string { return d.name }

var mad = &Dialect{
	name:            "mad",
	commentLetter:   'R',
	stringDelimiter: '$',
	octalSuffix:     'K',
	labelWidth:      8,
	sequenceColumn:  65,
	operators:       "+-*/=(),<>",

	keywords: set(
		"BOOLEAN", "COMMENT", "COMMON", "CONDITIONAL", "CONTINUE", "DATA",
		"DEFINE", "DIMENSION", "END", "ENTRY", "EQUIVALENCE", "ERASABLE",
		"EXECUTE", "EXTERNAL", "FLOATING", "FOR", "FORMAT", "FUNCTION",
		"INTEGER", "INTERNAL", "IS", "LABEL", "LIST", "LOOP", "MODE", "NORMAL",
		"OF", "OR", "OTHERWISE", "PARAMETER", "PAUSE", "POINT", "PRINT",
		"PROGRAM", "PUNCH", "READ", "RESULTS", "RETURN", "SET", "STATEMENT",
		"THROUGH", "TO", "TRANSFER", "VALUES", "VECTOR", "WHENEVER",
	),

	dotted: set(
		".A.", ".ABS.", ".AND.", ".E.", ".EQ.", ".EQV.", ".EXOR.", ".G.",
		".GE.", ".GR.", ".GRE.", ".L.", ".LE.", ".LS.", ".LSE.", ".N.", ".NE.",
		".NOT.", ".OR.", ".P.", ".RS.", ".THEN.", ".V.",
	),

	apostrophe: map[string]bool{
		"B'N": false, // BOOLEAN
		"D'N": false, // DIMENSION
		"E'L": false, // END OF CONDITIONAL
		"E'M": false, // END OF PROGRAM
		"E'N": false, // END OF FUNCTION
		"F'N": false, // FUNCTION RETURN
		"I'R": false, // INTEGER
		"O'E": false, // OTHERWISE
		"O'R": false, // OR WHENEVER
		"P'S": false, // PRINT COMMENT
		"P'T": false, // PRINT RESULTS
		"R'D": false, // READ DATA
		"T'H": false, // THROUGH
		"T'O": true,  // TRANSFER TO
		"V'S": false, // VECTOR VALUES
		"W'R": false, // WHENEVER
	},

	builtins: set(
		"ATAN", "COS", "ELOG", "EXP", "LOG", "MAX", "MIN", "RNDM", "SETEOF",
		"SETERR", "SIN", "SQRT", "TAN", "TIME", "XMAX", "XMIN",
	),

	phrases: phraseTable(
		phraseDef{"END OF CONDITIONAL", false},
		phraseDef{"END OF FUNCTION", false},
		phraseDef{"END OF LOOP", false},
		phraseDef{"END OF PROGRAM", false},
		phraseDef{"ENTRY TO", false},
		phraseDef{"EXTERNAL FUNCTION", false},
		phraseDef{"FLOATING POINT", false},
		phraseDef{"FUNCTION RETURN", false},
		phraseDef{"INTERNAL FUNCTION", false},
		phraseDef{"NORMAL MODE IS", false},
		phraseDef{"NORMAL MODE", false},
		phraseDef{"OR WHENEVER", false},
		phraseDef{"PRINT COMMENT", false},
		phraseDef{"PRINT FORMAT", false},
		phraseDef{"PRINT RESULTS", false},
		phraseDef{"PROGRAM COMMON", false},
		phraseDef{"READ DATA", false},
		phraseDef{"READ FORMAT", false},
		phraseDef{"STATEMENT LABEL", false},
		phraseDef{"TRANSFER TO", true},
		phraseDef{"VECTOR VALUES", false},
	),
}

type phraseDef struct {
	text     string
	transfer bool
}

// phraseTable indexes phrases by first word, longest phrase first so the
// scanner prefers "NORMAL MODE IS" over "NORMAL MODE".
func phraseTable(defs ...phraseDef) map[string][]phrase {
	out := make(map[string][]phrase)
	for _, def := range defs {
		words := strings.Fields(def.text)
		head := words[0]
		p := phrase{rest: words[1:], transfer: def.transfer}
		list := append(out[head], p)
		for i := len(list) - 1; i > 0 && len(list[i].rest) > len(list[i-1].rest); i-- {
			list[i], list[i-1] = list[i-1], list[i]
		}
		out[head] = list
	}
	return out
}

func set(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
