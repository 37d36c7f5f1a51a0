// Package anchor re-attaches annotations to lines after the underlying text
// has been edited. Matching uses the captured line content only: a line
// matches when its trimmed text equals the trimmed snapshot.
//
// When the snapshot text occurs on several lines the candidate nearest to the
// previous line number wins, lower line first on ties. Identical lines are
// therefore indistinguishable and an annotation can land on the "wrong" copy;
// that is a known limitation of content-only anchoring.
package anchor

import (
	"strings"

	"github.com/starford/marginalia/internal/models"
)

// Result is the outcome of relocating one annotation.
type Result struct {
	Annotation models.Annotation
	// Moved is set when the start line changed.
	Moved bool
	// Orphaned is set when no matching line exists in the new text.
	Orphaned bool
	// Recovered is set when a previously orphaned annotation matched again.
	Recovered bool
}

// SplitLines splits text into lines, dropping carriage returns.
func SplitLines(text string) []string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// LineCount returns the number of lines in text. A final newline ends the
// last line rather than starting an empty one.
func LineCount(text string) int {
	if text == "" {
		return 0
	}
	return len(SplitLines(strings.TrimSuffix(text, "\n")))
}

// InRange reports whether [start, end] (end 0 for a single line) lies
// within text.
func InRange(text string, start, end int) bool {
	n := LineCount(text)
	if end < start {
		end = start
	}
	return start >= 1 && end <= n
}

// Capture returns the text of lines [start, end] (1-based, inclusive) joined
// by newlines. end <= start captures a single line. Out-of-range starts
// capture nothing.
func Capture(text string, start, end int) string {
	return capture(SplitLines(text), start, end)
}

func capture(lines []string, start, end int) string {
	if start < 1 || start > len(lines) {
		return ""
	}
	if end < start {
		end = start
	}
	if end > len(lines) {
		end = len(lines)
	}
	return strings.Join(lines[start-1:end], "\n")
}

// Relocate computes the new position of a in text. It never changes the id,
// type, content or replies of the annotation.
func Relocate(text string, a models.Annotation) Result {
	return relocate(SplitLines(text), a)
}

// RelocateAll relocates every annotation independently against the same text.
func RelocateAll(text string, anns []models.Annotation) []Result {
	lines := SplitLines(text)
	out := make([]Result, len(anns))
	for i, a := range anns {
		out[i] = relocate(lines, a)
	}
	return out
}

// Annotations extracts the relocated annotations from results.
func Annotations(results []Result) []models.Annotation {
	out := make([]models.Annotation, len(results))
	for i, r := range results {
		out[i] = r.Annotation
	}
	return out
}

// Summary counts the outcomes of a relocation pass.
type Summary struct {
	Total     int `json:"total"`
	Moved     int `json:"moved"`
	Orphaned  int `json:"orphaned"`
	Recovered int `json:"recovered"`
}

// Summarize tallies results.
func Summarize(results []Result) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		if r.Moved {
			s.Moved++
		}
		if r.Orphaned {
			s.Orphaned++
		}
		if r.Recovered {
			s.Recovered++
		}
	}
	return s
}

func relocate(lines []string, a models.Annotation) Result {
	out := a.Clone()

	// An orphan without a snapshot has nothing to match; blank lines must
	// not claim it.
	if a.Orphaned && strings.TrimSpace(a.LineContent) == "" {
		return Result{Annotation: out, Orphaned: true}
	}

	// A block matches as a whole: every captured line must match, in order,
	// at consecutive positions.
	target := strings.Split(a.LineContent, "\n")
	for i, t := range target {
		target[i] = strings.TrimSpace(strings.TrimSuffix(t, "\r"))
	}
	span := len(target)

	best, bestDist := -1, 0
	for i := 0; i+span <= len(lines); i++ {
		if !windowMatches(lines, i, target) {
			continue
		}
		dist := abs(i + 1 - a.LineNumber)
		if best < 0 || dist < bestDist {
			best, bestDist = i, dist
		}
	}

	if best < 0 {
		out.Orphaned = true
		return Result{Annotation: out, Orphaned: true}
	}

	start := best + 1
	out.LineNumber = start
	switch {
	case span > 1:
		out.EndLineNumber = start + span - 1
	case a.IsBlock():
		// Snapshot holds only the first line; keep the original extent.
		out.EndLineNumber = start + (a.EndLineNumber - a.LineNumber)
	default:
		out.EndLineNumber = 0
	}
	out.LineContent = strings.Join(lines[best:best+span], "\n")
	out.Orphaned = false

	return Result{
		Annotation: out,
		Moved:      start != a.LineNumber,
		Recovered:  a.Orphaned,
	}
}

func windowMatches(lines []string, at int, target []string) bool {
	for j, t := range target {
		if strings.TrimSpace(lines[at+j]) != t {
			return false
		}
	}
	return true
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
