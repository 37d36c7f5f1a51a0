// Package annotation implements the in-memory annotation collection for one
// open workspace. Every public method takes the store lock for its whole
// duration, so no partial effect of a call is ever observable.
package annotation

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/starford/marginalia/internal/apperr"
	"github.com/starford/marginalia/internal/models"
)

// Store holds annotations keyed by file id.
type Store struct {
	mu sync.Mutex

	files     map[string]models.SourceFile
	fileOrder []string

	byID  map[string]*models.Annotation
	order map[string][]string // file id -> annotation ids in creation order

	now   func() time.Time
	newID func() string
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the creation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator overrides id generation.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		files: make(map[string]models.SourceFile),
		byID:  make(map[string]*models.Annotation),
		order: make(map[string][]string),
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterFile makes a file known to the store. Re-registering updates the
// file's name and language and keeps its annotations.
func (s *Store) RegisterFile(f models.SourceFile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[f.ID]; !ok {
		s.fileOrder = append(s.fileOrder, f.ID)
	}
	s.files[f.ID] = f
}

// File returns a registered file.
func (s *Store) File(id string) (models.SourceFile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[id]
	return f, ok
}

// Files lists registered files in registration order.
func (s *Store) Files() []models.SourceFile {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.SourceFile, 0, len(s.fileOrder))
	for _, id := range s.fileOrder {
		out = append(out, s.files[id])
	}
	return out
}

// RemoveFile forgets a file and every annotation attached to it.
func (s *Store) RemoveFile(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[id]; !ok {
		return 0
	}
	delete(s.files, id)
	for i, fid := range s.fileOrder {
		if fid == id {
			s.fileOrder = append(s.fileOrder[:i], s.fileOrder[i+1:]...)
			break
		}
	}
	return s.removeAllLocked(id)
}

// Add validates a draft and stores a new annotation, returning its id.
func (s *Store) Add(d models.Draft) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := validateDraft(d); err != nil {
		return "", fmt.Errorf("%w: %v", apperr.ErrInvalid, err)
	}
	if _, ok := s.files[d.FileID]; !ok {
		return "", fmt.Errorf("%w: unknown file %q", apperr.ErrInvalid, d.FileID)
	}

	a := &models.Annotation{
		ID:            s.newID(),
		FileID:        d.FileID,
		LineNumber:    d.LineNumber,
		EndLineNumber: normalizeEnd(d.LineNumber, d.EndLineNumber),
		LineContent:   d.LineContent,
		Type:          d.Type,
		Content:       d.Content,
		CreatedAt:     s.now(),
		AddedBy:       d.AddedBy,
		Orphaned:      d.Orphaned,
		Replies:       []models.Reply{},
	}
	s.byID[a.ID] = a
	s.order[a.FileID] = append(s.order[a.FileID], a.ID)
	return a.ID, nil
}

// Update applies a patch. An unknown id is a no-op; an invalid patch is
// rejected without applying any field.
func (s *Store) Update(id string, p models.Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok {
		return nil
	}
	if p.Type != nil && !p.Type.Valid() {
		return fmt.Errorf("%w: unknown annotation type %q", apperr.ErrInvalid, *p.Type)
	}
	if p.Content != nil && strings.TrimSpace(*p.Content) == "" {
		return fmt.Errorf("%w: content must not be blank", apperr.ErrInvalid)
	}
	if p.Type != nil {
		a.Type = *p.Type
	}
	if p.Content != nil {
		a.Content = *p.Content
	}
	if p.AddedBy != nil {
		a.AddedBy = *p.AddedBy
	}
	return nil
}

// Remove deletes an annotation. Removing an unknown id is a no-op.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok {
		return
	}
	delete(s.byID, id)
	ids := s.order[a.FileID]
	for i, v := range ids {
		if v == id {
			s.order[a.FileID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
}

// RemoveAllForFile deletes every annotation of a file and reports how many.
func (s *Store) RemoveAllForFile(fileID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeAllLocked(fileID)
}

func (s *Store) removeAllLocked(fileID string) int {
	ids := s.order[fileID]
	for _, id := range ids {
		delete(s.byID, id)
	}
	delete(s.order, fileID)
	return len(ids)
}

// Get returns a copy of one annotation.
func (s *Store) Get(id string) (models.Annotation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[id]
	if !ok {
		return models.Annotation{}, false
	}
	return a.Clone(), true
}

// Query returns copies of a file's annotations in creation order.
func (s *Store) Query(fileID string) []models.Annotation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryLocked(fileID)
}

func (s *Store) queryLocked(fileID string) []models.Annotation {
	ids := s.order[fileID]
	out := make([]models.Annotation, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.byID[id].Clone())
	}
	return out
}

// AddReply appends a reply to an annotation's thread.
func (s *Store) AddReply(annotationID string, d models.ReplyDraft) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[annotationID]
	if !ok {
		return "", apperr.ErrNotFound
	}
	if strings.TrimSpace(d.Content) == "" {
		return "", fmt.Errorf("%w: reply content must not be blank", apperr.ErrInvalid)
	}
	r := models.Reply{
		ID:        s.newID(),
		Content:   d.Content,
		AddedBy:   d.AddedBy,
		CreatedAt: s.now(),
	}
	a.Replies = append(a.Replies, r)
	return r.ID, nil
}

// RemoveReply deletes one reply. Unknown ids are a no-op.
func (s *Store) RemoveReply(annotationID, replyID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[annotationID]
	if !ok {
		return
	}
	for i, r := range a.Replies {
		if r.ID == replyID {
			a.Replies = append(a.Replies[:i:i], a.Replies[i+1:]...)
			return
		}
	}
}

// Reposition writes the position fields (line range, captured content and
// orphaned flag) of the given annotations. Every other field is ignored.
// It returns the number of annotations updated.
func (s *Store) Reposition(fileID string, anns []models.Annotation) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, in := range anns {
		a, ok := s.byID[in.ID]
		if !ok || a.FileID != fileID {
			continue
		}
		a.LineNumber = in.LineNumber
		a.EndLineNumber = normalizeEnd(in.LineNumber, in.EndLineNumber)
		a.LineContent = in.LineContent
		a.Orphaned = in.Orphaned
		n++
	}
	return n
}

// Load replaces a file's collection with anns, as read from persistence.
func (s *Store) Load(fileID string, anns []models.Annotation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[fileID]; !ok {
		return fmt.Errorf("%w: unknown file %q", apperr.ErrInvalid, fileID)
	}
	s.replaceLocked(fileID, anns)
	return nil
}

func (s *Store) replaceLocked(fileID string, anns []models.Annotation) {
	s.removeAllLocked(fileID)
	ids := make([]string, 0, len(anns))
	for _, in := range anns {
		a := in.Clone()
		a.FileID = fileID
		if a.Replies == nil {
			a.Replies = []models.Reply{}
		}
		s.byID[a.ID] = &a
		ids = append(ids, a.ID)
	}
	s.order[fileID] = ids
}

// Snapshot is an immutable copy of one file's annotation collection.
type Snapshot struct {
	FileID      string
	Annotations []models.Annotation
}

// Snapshot captures the current collection of a file.
func (s *Store) Snapshot(fileID string) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{FileID: fileID, Annotations: s.queryLocked(fileID)}
}

// Restore replaces a file's collection with a snapshot.
func (s *Store) Restore(snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[snap.FileID]; !ok {
		return fmt.Errorf("%w: unknown file %q", apperr.ErrInvalid, snap.FileID)
	}
	s.replaceLocked(snap.FileID, snap.Annotations)
	return nil
}

// SortByLine orders annotations by start line, keeping creation order for
// annotations on the same line.
func SortByLine(anns []models.Annotation) {
	sort.SliceStable(anns, func(i, j int) bool {
		return anns[i].LineNumber < anns[j].LineNumber
	})
}

func normalizeEnd(start, end int) int {
	if end == start {
		return 0
	}
	return end
}

var errBlank = errors.New("must not be blank")

func validateDraft(d models.Draft) error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.FileID, validation.Required),
		validation.Field(&d.LineNumber, validation.Required, validation.Min(1)),
		validation.Field(&d.EndLineNumber,
			validation.When(d.EndLineNumber != 0, validation.Min(d.LineNumber))),
		validation.Field(&d.Type, validation.Required, validation.By(func(v interface{}) error {
			if t, _ := v.(models.AnnotationType); !t.Valid() {
				return errors.New("must be one of observation, question, metaphor, pattern, context, critique")
			}
			return nil
		})),
		validation.Field(&d.Content, validation.By(func(v interface{}) error {
			if s, _ := v.(string); strings.TrimSpace(s) == "" {
				return errBlank
			}
			return nil
		})),
	)
}
