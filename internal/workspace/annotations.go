package workspace

import (
	"context"
	"fmt"

	"github.com/starford/marginalia/internal/anchor"
	"github.com/starford/marginalia/internal/annotation"
	"github.com/starford/marginalia/internal/apperr"
	"github.com/starford/marginalia/internal/models"
)

// Annotations returns a file's annotations ordered by line.
func (s *Service) Annotations(_ context.Context, p string) ([]models.Annotation, error) {
	p, err := cleanPath(p)
	if err != nil {
		return nil, err
	}
	if _, ok := s.anns.File(p); !ok {
		return nil, fmt.Errorf("workspace: annotations of %s: %w", p, apperr.ErrNotFound)
	}
	anns := s.anns.Query(p)
	annotation.SortByLine(anns)
	return anns, nil
}

// Annotation returns one annotation by id.
func (s *Service) Annotation(_ context.Context, id string) (models.Annotation, error) {
	a, ok := s.anns.Get(id)
	if !ok {
		return models.Annotation{}, fmt.Errorf("workspace: annotation %s: %w", id, apperr.ErrNotFound)
	}
	return a, nil
}

// AddAnnotation stores a new annotation. Its lines must exist in the file.
// When the draft carries no line content it is captured from the file text.
func (s *Service) AddAnnotation(ctx context.Context, d models.Draft) (models.Annotation, error) {
	p, err := cleanPath(d.FileID)
	if err != nil {
		return models.Annotation{}, err
	}
	d.FileID = p
	d.Orphaned = false

	var id string
	err = s.mutate(p, func() error {
		data, err := s.read(p)
		if err != nil {
			return err
		}
		text := string(data)
		if !anchor.InRange(text, d.LineNumber, d.EndLineNumber) {
			return fmt.Errorf("%w: lines %d-%d outside %s (%d lines)",
				apperr.ErrInvalid, d.LineNumber, max(d.LineNumber, d.EndLineNumber), p, anchor.LineCount(text))
		}
		if d.LineContent == "" {
			d.LineContent = anchor.Capture(text, d.LineNumber, d.EndLineNumber)
		}
		var addErr error
		id, addErr = s.anns.Add(d)
		return addErr
	})
	if err != nil {
		return models.Annotation{}, err
	}
	return s.Annotation(ctx, id)
}

// UpdateAnnotation applies a partial update.
func (s *Service) UpdateAnnotation(ctx context.Context, id string, patch models.Patch) (models.Annotation, error) {
	a, err := s.Annotation(ctx, id)
	if err != nil {
		return models.Annotation{}, err
	}
	if err := s.mutate(a.FileID, func() error { return s.anns.Update(id, patch) }); err != nil {
		return models.Annotation{}, err
	}
	return s.Annotation(ctx, id)
}

// DeleteAnnotation removes an annotation and its replies.
func (s *Service) DeleteAnnotation(ctx context.Context, id string) error {
	a, err := s.Annotation(ctx, id)
	if err != nil {
		return err
	}
	return s.mutate(a.FileID, func() error {
		s.anns.Remove(id)
		return nil
	})
}

// AddReply appends a reply to an annotation's thread.
func (s *Service) AddReply(ctx context.Context, annotationID string, d models.ReplyDraft) (models.Reply, error) {
	a, err := s.Annotation(ctx, annotationID)
	if err != nil {
		return models.Reply{}, err
	}
	var replyID string
	err = s.mutate(a.FileID, func() error {
		var addErr error
		replyID, addErr = s.anns.AddReply(annotationID, d)
		return addErr
	})
	if err != nil {
		return models.Reply{}, err
	}
	a, err = s.Annotation(ctx, annotationID)
	if err != nil {
		return models.Reply{}, err
	}
	for _, r := range a.Replies {
		if r.ID == replyID {
			return r, nil
		}
	}
	return models.Reply{}, fmt.Errorf("workspace: reply %s: %w", replyID, apperr.ErrNotFound)
}

// DeleteReply removes one reply from an annotation's thread.
func (s *Service) DeleteReply(ctx context.Context, annotationID, replyID string) error {
	a, err := s.Annotation(ctx, annotationID)
	if err != nil {
		return err
	}
	found := false
	for _, r := range a.Replies {
		if r.ID == replyID {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("workspace: reply %s: %w", replyID, apperr.ErrNotFound)
	}
	return s.mutate(a.FileID, func() error {
		s.anns.RemoveReply(annotationID, replyID)
		return nil
	})
}

// Undo restores the annotations of p to their state before the last change.
func (s *Service) Undo(ctx context.Context, p string) ([]models.Annotation, error) {
	return s.step(ctx, p, "undo", s.history.Undo, s.history.CancelUndo)
}

// Redo reapplies the last undone change of p.
func (s *Service) Redo(ctx context.Context, p string) ([]models.Annotation, error) {
	return s.step(ctx, p, "redo", s.history.Redo, s.history.CancelRedo)
}

// step moves one entry along the history with pop. If the target state
// cannot be applied, cancel puts the entry back.
func (s *Service) step(
	ctx context.Context, p, op string,
	pop func(annotation.Snapshot) (annotation.Snapshot, bool),
	cancel func(annotation.Snapshot),
) ([]models.Annotation, error) {
	p, err := cleanPath(p)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	if _, ok := s.anns.File(p); !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("workspace: %s %s: %w", op, p, apperr.ErrNotFound)
	}
	current := s.anns.Snapshot(p)
	target, ok := pop(current)
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("workspace: nothing to %s for %s: %w", op, p, apperr.ErrConflict)
	}
	if err := s.anns.Restore(target); err != nil {
		cancel(target)
		s.mu.Unlock()
		return nil, err
	}
	if err := s.db.SaveAnnotations(p, target.Annotations); err != nil {
		_ = s.anns.Restore(current)
		cancel(target)
		s.mu.Unlock()
		return nil, err
	}
	s.mu.Unlock()

	s.publishAnnotations(p, len(target.Annotations))
	return s.Annotations(ctx, p)
}

// mutate runs fn against the store for file p, persists the file's
// collection and records the prior state for undo. On any failure the
// collection is restored and nothing is recorded.
func (s *Service) mutate(p string, fn func() error) error {
	s.mu.Lock()
	if _, ok := s.anns.File(p); !ok {
		s.mu.Unlock()
		return fmt.Errorf("workspace: file %s: %w", p, apperr.ErrNotFound)
	}
	before := s.anns.Snapshot(p)
	if err := fn(); err != nil {
		_ = s.anns.Restore(before)
		s.mu.Unlock()
		return err
	}
	after := s.anns.Query(p)
	if err := s.db.SaveAnnotations(p, after); err != nil {
		_ = s.anns.Restore(before)
		s.mu.Unlock()
		return err
	}
	s.history.Record(before)
	s.mu.Unlock()

	s.publishAnnotations(p, len(after))
	return nil
}
