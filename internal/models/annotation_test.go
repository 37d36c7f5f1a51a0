package models

import (
	"testing"
)

func TestTypeTablesAreClosed(t *testing.T) {
	types := AnnotationTypes()
	if len(types) != 6 {
		t.Fatalf("len(types) = %d, want 6", len(types))
	}
	seen := map[string]bool{}
	for _, typ := range types {
		p := typ.Prefix()
		if len(p) < 3 || len(p) > 4 {
			t.Errorf("%s prefix %q should be 3-4 letters", typ, p)
		}
		if seen[p] {
			t.Errorf("duplicate prefix %q", p)
		}
		seen[p] = true
		back, ok := TypeFromPrefix(p)
		if !ok || back != typ {
			t.Errorf("TypeFromPrefix(%q) = %q, %v", p, back, ok)
		}
		if typ.Color() == "" || typ.Label() == "" {
			t.Errorf("%s missing color or label", typ)
		}
	}
}

func TestParseAnnotationType(t *testing.T) {
	if typ, ok := ParseAnnotationType(" Critique "); !ok || typ != TypeCritique {
		t.Errorf("got %q, %v", typ, ok)
	}
	if _, ok := ParseAnnotationType("rant"); ok {
		t.Error("unknown type should not parse")
	}
}

func TestPrefixesLongestFirst(t *testing.T) {
	ps := Prefixes()
	for i := 1; i < len(ps); i++ {
		if len(ps[i]) > len(ps[i-1]) {
			t.Fatalf("prefixes not ordered by length: %v", ps)
		}
	}
}

func TestCloneIsDeep(t *testing.T) {
	a := Annotation{ID: "a", Replies: []Reply{{ID: "r1", Content: "x"}}}
	c := a.Clone()
	c.Replies[0].Content = "changed"
	if a.Replies[0].Content != "x" {
		t.Error("clone shares reply storage with original")
	}
}

func TestBlockHelpers(t *testing.T) {
	single := Annotation{LineNumber: 4}
	if single.IsBlock() || single.EndLine() != 4 {
		t.Errorf("single: IsBlock=%v EndLine=%d", single.IsBlock(), single.EndLine())
	}
	same := Annotation{LineNumber: 4, EndLineNumber: 4}
	if same.IsBlock() {
		t.Error("equal end line is not a block")
	}
	block := Annotation{LineNumber: 4, EndLineNumber: 7}
	if !block.IsBlock() || block.EndLine() != 7 {
		t.Errorf("block: IsBlock=%v EndLine=%d", block.IsBlock(), block.EndLine())
	}
}
