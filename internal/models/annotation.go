// Package models defines the domain types for Marginalia.
package models

import (
	"strings"
	"time"
)

// AnnotationType is the closed set of annotation categories.
type AnnotationType string

const (
	TypeObservation AnnotationType = "observation"
	TypeQuestion    AnnotationType = "question"
	TypeMetaphor    AnnotationType = "metaphor"
	TypePattern     AnnotationType = "pattern"
	TypeContext     AnnotationType = "context"
	TypeCritique    AnnotationType = "critique"
)

type typeInfo struct {
	prefix string
	label  string
	color  string
}

var typeTable = map[AnnotationType]typeInfo{
	TypeObservation: {prefix: "OBS", label: "Observation", color: "#3b82f6"},
	TypeQuestion:    {prefix: "QUES", label: "Question", color: "#f59e0b"},
	TypeMetaphor:    {prefix: "META", label: "Metaphor", color: "#a855f7"},
	TypePattern:     {prefix: "PATT", label: "Pattern", color: "#10b981"},
	TypeContext:     {prefix: "CTX", label: "Context", color: "#64748b"},
	TypeCritique:    {prefix: "CRIT", label: "Critique", color: "#ef4444"},
}

var prefixTable = func() map[string]AnnotationType {
	m := make(map[string]AnnotationType, len(typeTable))
	for t, info := range typeTable {
		m[info.prefix] = t
	}
	return m
}()

// AnnotationTypes lists every type in display order.
func AnnotationTypes() []AnnotationType {
	return []AnnotationType{
		TypeObservation, TypeQuestion, TypeMetaphor,
		TypePattern, TypeContext, TypeCritique,
	}
}

// Valid reports whether t is one of the six known types.
func (t AnnotationType) Valid() bool {
	_, ok := typeTable[t]
	return ok
}

// Prefix returns the short marker code used in inline comments (e.g. "OBS").
func (t AnnotationType) Prefix() string { return typeTable[t].prefix }

// Label returns the human-readable name.
func (t AnnotationType) Label() string { return typeTable[t].label }

// Color returns the display color as a hex string.
func (t AnnotationType) Color() string { return typeTable[t].color }

// ParseAnnotationType accepts a type name in any case.
func ParseAnnotationType(s string) (AnnotationType, bool) {
	t := AnnotationType(strings.ToLower(strings.TrimSpace(s)))
	return t, t.Valid()
}

// TypeFromPrefix resolves an inline marker prefix. Prefixes are upper case.
func TypeFromPrefix(prefix string) (AnnotationType, bool) {
	t, ok := prefixTable[prefix]
	return t, ok
}

// Prefixes returns every marker prefix, longest first so that alternations
// built from them never match a shorter prefix early.
func Prefixes() []string {
	out := make([]string, 0, len(typeTable))
	for _, t := range AnnotationTypes() {
		out = append(out, t.Prefix())
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && len(out[j]) > len(out[j-1]); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// Reply is a sub-annotation in a discussion thread.
type Reply struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	AddedBy   string    `json:"addedBy,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Annotation is a typed remark attached to one line or a contiguous block.
type Annotation struct {
	ID            string         `json:"id"`
	FileID        string         `json:"fileId"`
	LineNumber    int            `json:"lineNumber"`
	EndLineNumber int            `json:"endLineNumber,omitempty"` // 0 when single-line
	LineContent   string         `json:"lineContent"`
	Type          AnnotationType `json:"type"`
	Content       string         `json:"content"`
	Orphaned      bool           `json:"orphaned"`
	CreatedAt     time.Time      `json:"createdAt"`
	AddedBy       string         `json:"addedBy,omitempty"`
	Replies       []Reply        `json:"replies"`
}

// IsBlock reports whether the annotation spans more than one line.
func (a Annotation) IsBlock() bool {
	return a.EndLineNumber != 0 && a.EndLineNumber != a.LineNumber
}

// EndLine returns the last covered line (LineNumber for single-line annotations).
func (a Annotation) EndLine() int {
	if a.IsBlock() {
		return a.EndLineNumber
	}
	return a.LineNumber
}

// Clone returns a deep copy.
func (a Annotation) Clone() Annotation {
	c := a
	if a.Replies != nil {
		c.Replies = make([]Reply, len(a.Replies))
		copy(c.Replies, a.Replies)
	}
	return c
}

// Draft carries the user-supplied fields of a new annotation.
type Draft struct {
	FileID        string         `json:"fileId"`
	LineNumber    int            `json:"lineNumber"`
	EndLineNumber int            `json:"endLineNumber,omitempty"`
	LineContent   string         `json:"lineContent"`
	Type          AnnotationType `json:"type"`
	Content       string         `json:"content"`
	AddedBy       string         `json:"addedBy,omitempty"`
	// Orphaned creates the annotation already detached from its line.
	Orphaned bool `json:"orphaned,omitempty"`
}

// Patch is a partial update; nil fields are left untouched.
type Patch struct {
	Type    *AnnotationType `json:"type,omitempty"`
	Content *string         `json:"content,omitempty"`
	AddedBy *string         `json:"addedBy,omitempty"`
}

// ReplyDraft carries the user-supplied fields of a new reply.
type ReplyDraft struct {
	Content string `json:"content"`
	AddedBy string `json:"addedBy,omitempty"`
}

// SourceFile is a named text buffer with a display language tag.
type SourceFile struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Language string `json:"language"`
}

// FileMetadata is the lightweight representation returned by storage listings.
type FileMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}
