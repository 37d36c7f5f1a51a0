package lexer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pair is a compact (text, category) view of a token for assertions.
type pair struct {
	Text string
	Cat  Category
}

func scan(t *testing.T, line string) []pair {
	t.Helper()
	toks, _ := MAD().Line(line, State{})
	out := make([]pair, len(toks))
	for i, tok := range toks {
		out[i] = pair{tok.Text, tok.Category}
	}
	return out
}

func padTo(s string, col int) string {
	if len(s) >= col {
		return s
	}
	return s + strings.Repeat(" ", col-len(s))
}

func TestSequenceNumberWinsOverNumber(t *testing.T) {
	line := padTo("        X = 1", 72) + "000123"
	got := scan(t, line)
	require.NotEmpty(t, got)
	assert.Equal(t, pair{"000123", SequenceMeta}, got[len(got)-1])
	for _, p := range got {
		assert.NotEqual(t, pair{"000123", Number}, p)
	}
}

func TestSequenceNumberWithTrailingSpace(t *testing.T) {
	line := padTo("        X = 1", 70) + "12345678  "
	got := scan(t, line)
	assert.Equal(t, SequenceMeta, got[len(got)-1].Cat)
	assert.Equal(t, "12345678  ", got[len(got)-1].Text)
}

func TestDigitsBeforeSequenceColumnAreNumbers(t *testing.T) {
	got := scan(t, "        X = 000123")
	assert.Equal(t, pair{"000123", Number}, got[len(got)-1])
}

func TestShortDigitRunInSequenceColumnIsNumber(t *testing.T) {
	line := padTo("        X = 1", 70) + "123"
	got := scan(t, line)
	assert.Equal(t, pair{"123", Number}, got[len(got)-1])
}

func TestLabelField(t *testing.T) {
	got := scan(t, "START   X = 1")
	assert.Equal(t, []pair{
		{"START", Label},
		{"X", Identifier},
		{"=", Operator},
		{"1", Number},
	}, got)
}

func TestContinuationCard(t *testing.T) {
	got := scan(t, "       1  A, B")
	require.NotEmpty(t, got)
	assert.Equal(t, pair{"       1", Meta}, got[0])
	assert.Equal(t, pair{"A", Identifier}, got[1])
}

func TestPaddingIsMeta(t *testing.T) {
	got := scan(t, "        X = 1")
	assert.Equal(t, pair{"        ", Meta}, got[0])
}

func TestRemarkCard(t *testing.T) {
	assert.Equal(t, []pair{{"R* COMPUTE THE ROOTS", Comment}}, scan(t, "R* COMPUTE THE ROOTS"))
	assert.Equal(t, []pair{{"r  lower case remark", Comment}}, scan(t, "r  lower case remark"))
	// R followed by a letter is an ordinary label.
	assert.Equal(t, pair{"RESULT", Label}, scan(t, "RESULT  X = 1")[0])
}

func TestConfigurableCommentLetter(t *testing.T) {
	fortran := NewDialect(WithCommentLetter('c'), WithName("fixed"))
	toks, _ := fortran.Line("C     FORTRAN STYLE", State{})
	require.Len(t, toks, 1)
	assert.Equal(t, Comment, toks[0].Category)
	assert.Equal(t, "fixed", fortran.Name())

	// The default dialect is unchanged.
	assert.Equal(t, Label, scan(t, "C     FORTRAN STYLE")[0].Cat)
}

func TestStrings(t *testing.T) {
	got := scan(t, "        PRINT FORMAT $HELLO$, X")
	assert.Equal(t, []pair{
		{"        ", Meta},
		{"PRINT FORMAT", Keyword},
		{"$HELLO$", String},
		{",", Operator},
		{"X", Identifier},
	}, got)

	got = scan(t, "        V'S F = $UNTERMINATED")
	assert.Equal(t, pair{"$UNTERMINATED", String}, got[len(got)-1])
}

func TestNumbers(t *testing.T) {
	cases := map[string]string{
		"        X = 777K":   "777K",
		"        X = 1.5E-3": "1.5E-3",
		"        X = 2.":     "2.",
		"        X = 3e10":   "3e10",
	}
	for line, want := range cases {
		got := scan(t, line)
		assert.Equal(t, pair{want, Number}, got[len(got)-1], line)
	}
}

func TestNumberFollowedByDottedOperator(t *testing.T) {
	got := scan(t, "        W'R 1.EQ.2")
	assert.Equal(t, []pair{
		{"        ", Meta},
		{"W'R", Keyword},
		{"1", Number},
		{".EQ.", Keyword},
		{"2", Number},
	}, got)
}

func TestDottedOperators(t *testing.T) {
	got := scan(t, "        W'R X .G. 0 .AND. Y .NE. 1")
	assert.Contains(t, got, pair{".G.", Keyword})
	assert.Contains(t, got, pair{".AND.", Keyword})
	assert.Contains(t, got, pair{".NE.", Keyword})

	// Unknown dotted word backtracks to a bare operator.
	got = scan(t, "        X = A .FOO. B")
	assert.Equal(t, []pair{
		{"        ", Meta},
		{"X", Identifier},
		{"=", Operator},
		{"A", Identifier},
		{".", Operator},
		{"FOO", Identifier},
		{".", Operator},
		{"B", Identifier},
	}, got)
}

func TestTransferTargetIsLabel(t *testing.T) {
	got := scan(t, "        T'O ALPHA")
	assert.Equal(t, []pair{
		{"        ", Meta},
		{"T'O", Keyword},
		{"ALPHA", Label},
	}, got)

	got = scan(t, "        TRANSFER TO BETA")
	assert.Equal(t, pair{"TRANSFER TO", Keyword}, got[1])
	assert.Equal(t, pair{"BETA", Label}, got[2])

	// Only the first identifier after the transfer is a label.
	got = scan(t, "        T'O ALPHA  X")
	assert.Equal(t, pair{"X", Identifier}, got[len(got)-1])
}

func TestStateResetsEveryLine(t *testing.T) {
	_, st := MAD().Line("        T'O", State{})
	assert.True(t, st.ExpectingLabel)

	toks, st := MAD().Line("        ALPHA = 1", State{ExpectingLabel: true})
	assert.Equal(t, Identifier, toks[1].Category)
	assert.False(t, st.ExpectingLabel)
}

func TestMultiWordKeywords(t *testing.T) {
	cases := []string{
		"END OF PROGRAM", "END OF FUNCTION", "END OF LOOP",
		"END OF CONDITIONAL", "FUNCTION RETURN", "NORMAL MODE",
		"FLOATING POINT",
	}
	for _, kw := range cases {
		got := scan(t, "        "+kw)
		assert.Equal(t, []pair{{"        ", Meta}, {kw, Keyword}}, got, kw)
	}

	got := scan(t, "        NORMAL MODE IS INTEGER")
	assert.Equal(t, pair{"NORMAL MODE IS", Keyword}, got[1])
	assert.Equal(t, pair{"INTEGER", Keyword}, got[2])

	// Partial phrases fall back to the single keyword.
	got = scan(t, "        END OF X")
	assert.Equal(t, pair{"END", Keyword}, got[1])
	assert.Equal(t, pair{"OF", Keyword}, got[2])
}

func TestCallsAndArrays(t *testing.T) {
	got := scan(t, "        Y = SQRT.(X) + DISC.(A) + V(I)")
	assert.Contains(t, got, pair{"SQRT.", Keyword})
	assert.Contains(t, got, pair{"DISC.", FunctionCall})
	assert.Contains(t, got, pair{"V", ArrayReference})
	assert.Contains(t, got, pair{"I", Identifier})
}

func TestUnknownCharactersAreSkipped(t *testing.T) {
	got := scan(t, "        X ; Y")
	assert.Equal(t, []pair{{"        ", Meta}, {"X", Identifier}, {"Y", Identifier}}, got)
}

func TestNextAlwaysAdvances(t *testing.T) {
	line := "A'  .  $ 1E+ ;;'\t~R*" + string([]byte{0xff})
	pos := 0
	st := State{}
	for pos < len(line) {
		_, next, nst, _ := MAD().Next(line, pos, st)
		require.Greater(t, next, pos)
		pos, st = next, nst
	}
}

func TestTokenOffsets(t *testing.T) {
	line := "LOOP    X = A(3)"
	toks, _ := MAD().Line(line, State{})
	for _, tok := range toks {
		assert.Equal(t, tok.Text, line[tok.Start:tok.Start+len(tok.Text)])
	}
}

func TestLinesSplitsText(t *testing.T) {
	lines := MAD().Lines("R  HEADER\n        T'O ALPHA\nALPHA   E'M\r\n")
	require.Len(t, lines, 4)
	assert.Equal(t, Comment, lines[0][0].Category)
	assert.Equal(t, Label, lines[1][len(lines[1])-1].Category)
	assert.Equal(t, pair{"E'M", Keyword}, pair{lines[2][1].Text, lines[2][1].Category})
	assert.Empty(t, lines[3])
}
