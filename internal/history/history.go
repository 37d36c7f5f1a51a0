// Package history keeps per-file undo/redo stacks of annotation snapshots.
// Undo and redo restore whole snapshots; no mutation is ever reversed.
package history

import (
	"sync"

	"github.com/starford/marginalia/internal/annotation"
)

// DefaultDepth bounds each undo stack when no depth is configured.
const DefaultDepth = 50

// History holds undo/redo stacks keyed by file id.
type History struct {
	mu     sync.Mutex
	depth  int
	past   map[string][]annotation.Snapshot
	future map[string][]annotation.Snapshot
}

// New creates a History keeping at most depth undo steps per file.
func New(depth int) *History {
	if depth <= 0 {
		depth = DefaultDepth
	}
	return &History{
		depth:  depth,
		past:   make(map[string][]annotation.Snapshot),
		future: make(map[string][]annotation.Snapshot),
	}
}

// Record pushes the state before a change. Any redo steps are discarded.
func (h *History) Record(before annotation.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	stack := append(h.past[before.FileID], before)
	if len(stack) > h.depth {
		stack = stack[len(stack)-h.depth:]
	}
	h.past[before.FileID] = stack
	delete(h.future, before.FileID)
}

// Undo pops the latest recorded snapshot and remembers current for Redo.
func (h *History) Undo(current annotation.Snapshot) (annotation.Snapshot, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	prev, ok := pop(h.past, current.FileID)
	if !ok {
		return annotation.Snapshot{}, false
	}
	h.future[current.FileID] = append(h.future[current.FileID], current)
	return prev, true
}

// Redo reapplies the latest undone snapshot and remembers current for Undo.
func (h *History) Redo(current annotation.Snapshot) (annotation.Snapshot, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	next, ok := pop(h.future, current.FileID)
	if !ok {
		return annotation.Snapshot{}, false
	}
	h.past[current.FileID] = append(h.past[current.FileID], current)
	return next, true
}

// CancelUndo reverses an Undo whose snapshot could not be applied: prev
// goes back on the undo stack and the redo entry Undo pushed is dropped.
func (h *History) CancelUndo(prev annotation.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	pop(h.future, prev.FileID)
	h.past[prev.FileID] = append(h.past[prev.FileID], prev)
}

// CancelRedo reverses a Redo whose snapshot could not be applied.
func (h *History) CancelRedo(next annotation.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	pop(h.past, next.FileID)
	h.future[next.FileID] = append(h.future[next.FileID], next)
}

// CanUndo reports whether an undo step exists for the file.
func (h *History) CanUndo(fileID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.past[fileID]) > 0
}

// CanRedo reports whether a redo step exists for the file.
func (h *History) CanRedo(fileID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.future[fileID]) > 0
}

// Clear drops both stacks of a file.
func (h *History) Clear(fileID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.past, fileID)
	delete(h.future, fileID)
}

func pop(m map[string][]annotation.Snapshot, key string) (annotation.Snapshot, bool) {
	stack := m[key]
	if len(stack) == 0 {
		return annotation.Snapshot{}, false
	}
	top := stack[len(stack)-1]
	m[key] = stack[:len(stack)-1]
	return top, true
}
