package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/marginalia/internal/annotation"
	"github.com/starford/marginalia/internal/models"
)

func TestUndoRedoWithStore(t *testing.T) {
	s := annotation.NewStore()
	s.RegisterFile(models.SourceFile{ID: "f"})
	h := New(10)

	h.Record(s.Snapshot("f"))
	_, err := s.Add(models.Draft{FileID: "f", LineNumber: 1, Type: models.TypeQuestion, Content: "why?"})
	require.NoError(t, err)
	require.Len(t, s.Query("f"), 1)

	prev, ok := h.Undo(s.Snapshot("f"))
	require.True(t, ok)
	require.NoError(t, s.Restore(prev))
	assert.Empty(t, s.Query("f"))
	assert.True(t, h.CanRedo("f"))

	next, ok := h.Redo(s.Snapshot("f"))
	require.True(t, ok)
	require.NoError(t, s.Restore(next))
	assert.Len(t, s.Query("f"), 1)
	assert.True(t, h.CanUndo("f"))
	assert.False(t, h.CanRedo("f"))
}

func TestRecordClearsRedo(t *testing.T) {
	h := New(10)
	h.Record(annotation.Snapshot{FileID: "f"})
	_, ok := h.Undo(annotation.Snapshot{FileID: "f"})
	require.True(t, ok)
	require.True(t, h.CanRedo("f"))

	h.Record(annotation.Snapshot{FileID: "f"})
	assert.False(t, h.CanRedo("f"))
}

func TestDepthIsBounded(t *testing.T) {
	h := New(2)
	for i := 0; i < 5; i++ {
		h.Record(annotation.Snapshot{FileID: "f", Annotations: []models.Annotation{{LineNumber: i + 1}}})
	}
	first, ok := h.Undo(annotation.Snapshot{FileID: "f"})
	require.True(t, ok)
	assert.Equal(t, 5, first.Annotations[0].LineNumber)
	second, ok := h.Undo(annotation.Snapshot{FileID: "f"})
	require.True(t, ok)
	assert.Equal(t, 4, second.Annotations[0].LineNumber)
	_, ok = h.Undo(annotation.Snapshot{FileID: "f"})
	assert.False(t, ok)
}

func TestFilesAreIndependent(t *testing.T) {
	h := New(0)
	h.Record(annotation.Snapshot{FileID: "a"})
	assert.True(t, h.CanUndo("a"))
	assert.False(t, h.CanUndo("b"))
	h.Clear("a")
	assert.False(t, h.CanUndo("a"))
}

func TestCancelRestoresStacks(t *testing.T) {
	h := New(10)
	before := annotation.Snapshot{FileID: "f", Annotations: []models.Annotation{{ID: "a"}}}
	h.Record(before)

	prev, ok := h.Undo(annotation.Snapshot{FileID: "f"})
	require.True(t, ok)
	h.CancelUndo(prev)
	assert.True(t, h.CanUndo("f"))
	assert.False(t, h.CanRedo("f"))

	prev, ok = h.Undo(annotation.Snapshot{FileID: "f"})
	require.True(t, ok)
	assert.Equal(t, before, prev)

	next, ok := h.Redo(prev)
	require.True(t, ok)
	h.CancelRedo(next)
	assert.True(t, h.CanRedo("f"))
	assert.False(t, h.CanUndo("f"))
}
