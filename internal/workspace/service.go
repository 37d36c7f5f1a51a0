// Package workspace coordinates the annotation store, its undo history, the
// workspace files on disk and the SQLite index behind one service.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/starford/marginalia/internal/anchor"
	"github.com/starford/marginalia/internal/annotation"
	"github.com/starford/marginalia/internal/apperr"
	"github.com/starford/marginalia/internal/checksum"
	"github.com/starford/marginalia/internal/codec"
	"github.com/starford/marginalia/internal/highlight"
	"github.com/starford/marginalia/internal/history"
	"github.com/starford/marginalia/internal/index"
	"github.com/starford/marginalia/internal/models"
	"github.com/starford/marginalia/internal/sse"
	"github.com/starford/marginalia/internal/storage"
)

// Publisher receives change notifications. *sse.Broker satisfies it.
type Publisher interface {
	PublishFileEvent(kind, path string)
	Publish(event sse.Event)
}

// FileDetail is the full representation of an annotated file.
type FileDetail struct {
	Path        string              `json:"path"`
	Name        string              `json:"name"`
	Language    string              `json:"language"`
	Content     string              `json:"content"`
	Checksum    string              `json:"checksum"`
	Annotations []models.Annotation `json:"annotations"`
	CanUndo     bool                `json:"can_undo"`
	CanRedo     bool                `json:"can_redo"`
	Relocation  *anchor.Summary     `json:"relocation,omitempty"`
}

// FileListItem is a lightweight item in a list response.
type FileListItem struct {
	Path        string    `json:"path"`
	Name        string    `json:"name"`
	Language    string    `json:"language"`
	Checksum    string    `json:"checksum"`
	Annotations int       `json:"annotations"`
	Orphaned    int       `json:"orphaned"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Service is the single dispatch point for every workspace mutation.
type Service struct {
	// mu serializes snapshot, mutate and persist sequences.
	mu sync.Mutex

	files   storage.Provider
	db      *index.DB
	anns    *annotation.Store
	history *history.History
	hl      *highlight.Highlighter
	pub     Publisher
	logger  *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithHistoryDepth bounds the per-file undo stack.
func WithHistoryDepth(depth int) Option {
	return func(s *Service) { s.history = history.New(depth) }
}

// WithHighlighter sets the highlighter used by Highlight and Render.
func WithHighlighter(h *highlight.Highlighter) Option {
	return func(s *Service) { s.hl = h }
}

// WithPublisher sets where change events are sent.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.pub = p }
}

// WithStore replaces the annotation store, e.g. one with a fixed clock.
func WithStore(st *annotation.Store) Option {
	return func(s *Service) { s.anns = st }
}

// NewService creates a workspace service over files and db.
func NewService(files storage.Provider, db *index.DB, opts ...Option) (*Service, error) {
	s := &Service{
		files:   files,
		db:      db,
		anns:    annotation.NewStore(),
		history: history.New(history.DefaultDepth),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.hl == nil {
		hl, err := highlight.New()
		if err != nil {
			return nil, fmt.Errorf("workspace: highlighter: %w", err)
		}
		s.hl = hl
	}
	return s, nil
}

// Load registers every indexed file and loads its stored annotations.
// It is meant to run once after index.Sync.
func (s *Service) Load(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.ListFiles()
	if err != nil {
		return fmt.Errorf("workspace: load: %w", err)
	}
	total := 0
	for _, r := range rows {
		n, err := s.reloadLocked(r)
		if err != nil {
			return err
		}
		total += n
	}
	s.logger.Info("workspace: loaded",
		slog.Int("files", len(rows)),
		slog.Int("annotations", total))
	return nil
}

// Refresh brings the in-memory state of one file in line with the index
// after the watcher changed it. Its signature matches index.EventCallback.
func (s *Service) Refresh(kind, p string) {
	s.mu.Lock()
	if _, known := s.anns.File(p); !known && kind == "deleted" {
		// Directory removals and untracked files.
		s.mu.Unlock()
		return
	}
	count, err := s.refreshLocked(kind, p)
	s.mu.Unlock()
	if err != nil {
		s.logger.Warn("workspace: refresh failed",
			slog.String("path", p),
			slog.String("kind", kind),
			slog.String("error", err.Error()))
		return
	}
	s.publishFile(kind, p)
	if kind != "deleted" {
		s.publishAnnotations(p, count)
	}
}

func (s *Service) refreshLocked(kind, p string) (int, error) {
	if kind == "deleted" {
		s.anns.RemoveFile(p)
		s.history.Clear(p)
		return 0, nil
	}
	rows, err := s.db.ListFiles()
	if err != nil {
		return 0, err
	}
	for _, r := range rows {
		if r.Path != p {
			continue
		}
		if _, known := s.anns.File(p); known {
			// Relocation by an external edit can be undone like any other change.
			s.history.Record(s.anns.Snapshot(p))
		}
		return s.reloadLocked(r)
	}
	return 0, fmt.Errorf("workspace: refresh %s: %w", p, apperr.ErrNotFound)
}

func (s *Service) reloadLocked(r index.FileRow) (int, error) {
	s.anns.RegisterFile(models.SourceFile{ID: r.Path, Name: r.Name, Language: r.Language})
	anns, err := s.db.LoadAnnotations(r.Path)
	if err != nil {
		return 0, fmt.Errorf("workspace: load %s: %w", r.Path, err)
	}
	if err := s.anns.Load(r.Path, anns); err != nil {
		return 0, err
	}
	return len(anns), nil
}

// ListFiles returns every indexed file with its annotation counts.
func (s *Service) ListFiles(_ context.Context) ([]FileListItem, error) {
	rows, err := s.db.ListFiles()
	if err != nil {
		return nil, err
	}
	items := make([]FileListItem, 0, len(rows))
	for _, r := range rows {
		item := FileListItem{
			Path:      r.Path,
			Name:      r.Name,
			Language:  r.Language,
			Checksum:  r.Checksum,
			UpdatedAt: r.UpdatedAt,
		}
		for _, a := range s.anns.Query(r.Path) {
			item.Annotations++
			if a.Orphaned {
				item.Orphaned++
			}
		}
		items = append(items, item)
	}
	return items, nil
}

// GetFile reads a file and returns it with its annotations in line order.
func (s *Service) GetFile(_ context.Context, p string) (*FileDetail, error) {
	p, err := cleanPath(p)
	if err != nil {
		return nil, err
	}
	data, err := s.read(p)
	if err != nil {
		return nil, err
	}
	return s.detail(p, data), nil
}

// CreateFile writes a new workspace file and indexes it.
func (s *Service) CreateFile(_ context.Context, p string, content []byte) (*FileDetail, error) {
	p, err := cleanPath(p)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	if _, err := s.files.Read(p); err == nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("workspace: create %s: %w", p, apperr.ErrAlreadyExists)
	}
	if err := s.commitLocked(p, content, nil); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.register(p)
	s.anns.RemoveAllForFile(p)
	s.history.Clear(p)
	s.mu.Unlock()

	s.publishFile("created", p)
	return s.detail(p, content), nil
}

// UpdateFile replaces a file's text and relocates its annotations against
// it. ifMatch is an If-Match value; it must admit the current checksum.
func (s *Service) UpdateFile(_ context.Context, p string, content []byte, ifMatch string) (*FileDetail, error) {
	p, err := cleanPath(p)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	existing, err := s.read(p)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if !checksum.Matches(ifMatch, checksum.Sum(existing)) {
		s.mu.Unlock()
		return nil, fmt.Errorf("workspace: update %s: %w", p, apperr.ErrConflict)
	}
	s.register(p)
	sum, err := s.relocateLocked(p, content, true)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	s.publishFile("updated", p)
	s.publishAnnotations(p, sum.Total)
	d := s.detail(p, content)
	d.Relocation = &sum
	return d, nil
}

// DeleteFile removes a file from disk, the index and the store.
func (s *Service) DeleteFile(_ context.Context, p string) error {
	p, err := cleanPath(p)
	if err != nil {
		return err
	}
	s.mu.Lock()
	if err := s.files.Delete(p); err != nil {
		s.mu.Unlock()
		return notFound(err)
	}
	err = s.db.DeleteFile(p)
	s.anns.RemoveFile(p)
	s.history.Clear(p)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.publishFile("deleted", p)
	return nil
}

// MoveFile renames a file; its annotations follow it.
func (s *Service) MoveFile(_ context.Context, from, to string) (*FileDetail, error) {
	from, err := cleanPath(from)
	if err != nil {
		return nil, err
	}
	to, err = cleanPath(to)
	if err != nil {
		return nil, err
	}
	if from == to {
		return nil, fmt.Errorf("%w: source and destination are the same", apperr.ErrInvalid)
	}

	s.mu.Lock()
	data, err := s.read(from)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if err := s.files.Move(from, to); err != nil {
		s.mu.Unlock()
		if errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("workspace: move to %s: %w", to, apperr.ErrAlreadyExists)
		}
		return nil, err
	}
	anns := s.anns.Query(from)
	if err := s.db.MoveFile(from, to); err != nil && !errors.Is(err, apperr.ErrNotFound) {
		s.mu.Unlock()
		return nil, err
	}
	if err := s.db.SaveFile(index.NewFileRow(to, checksum.Sum(data)), anns); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.anns.RemoveFile(from)
	s.history.Clear(from)
	s.register(to)
	err = s.anns.Load(to, anns)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	s.publishFile("deleted", from)
	s.publishFile("created", to)
	return s.detail(to, data), nil
}

// Relocate reattaches a file's annotations to its current text on disk.
func (s *Service) Relocate(_ context.Context, p string) (anchor.Summary, error) {
	p, err := cleanPath(p)
	if err != nil {
		return anchor.Summary{}, err
	}
	s.mu.Lock()
	data, err := s.read(p)
	if err != nil {
		s.mu.Unlock()
		return anchor.Summary{}, err
	}
	s.register(p)
	sum, err := s.relocateLocked(p, data, false)
	s.mu.Unlock()
	if err != nil {
		return anchor.Summary{}, err
	}
	s.publishAnnotations(p, sum.Total)
	return sum, nil
}

// relocateLocked runs a relocation pass over p against content and
// persists the result together with the file row. With write set the
// content is also written to disk.
func (s *Service) relocateLocked(p string, content []byte, write bool) (anchor.Summary, error) {
	before := s.anns.Snapshot(p)
	results := anchor.RelocateAll(string(content), before.Annotations)
	s.anns.Reposition(p, anchor.Annotations(results))

	var err error
	if write {
		err = s.commitLocked(p, content, s.anns.Query(p))
	} else {
		err = s.db.SaveFile(index.NewFileRow(p, checksum.Sum(content)), s.anns.Query(p))
	}
	if err != nil {
		_ = s.anns.Restore(before)
		return anchor.Summary{}, err
	}
	sum := anchor.Summarize(results)
	if sum.Moved > 0 || sum.Orphaned > 0 || sum.Recovered > 0 {
		s.history.Record(before)
	}
	s.logger.Debug("workspace: relocated",
		slog.String("path", p),
		slog.Int("annotations", sum.Total),
		slog.Int("moved", sum.Moved),
		slog.Int("orphaned", sum.Orphaned),
		slog.Int("recovered", sum.Recovered))
	return sum, nil
}

// commitLocked indexes content and anns for p and then writes content to
// disk, so the watcher finds the new checksum already indexed. A failed
// write puts the previous index state back.
func (s *Service) commitLocked(p string, content []byte, anns []models.Annotation) error {
	prevSum, err := s.db.GetChecksum(p)
	if err != nil {
		return err
	}
	var prev []models.Annotation
	if prevSum != "" {
		if prev, err = s.db.LoadAnnotations(p); err != nil {
			return err
		}
	}
	if err := s.db.SaveFile(index.NewFileRow(p, checksum.Sum(content)), anns); err != nil {
		return err
	}
	if err := s.files.Write(p, content); err != nil {
		var rbErr error
		if prevSum == "" {
			rbErr = s.db.DeleteFile(p)
		} else {
			rbErr = s.db.SaveFile(index.NewFileRow(p, prevSum), prev)
		}
		if rbErr != nil {
			s.logger.Error("workspace: index rollback failed",
				slog.String("path", p),
				slog.String("error", rbErr.Error()))
		}
		return err
	}
	return nil
}

// Highlight returns display lines for a file.
func (s *Service) Highlight(_ context.Context, p string) ([]highlight.Line, error) {
	p, err := cleanPath(p)
	if err != nil {
		return nil, err
	}
	data, err := s.read(p)
	if err != nil {
		return nil, err
	}
	return s.hl.Highlight(path.Base(p), codec.LanguageForPath(p), string(data)), nil
}

// Search runs a full-text query over annotation content and replies.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return []index.SearchResult{}, nil
	}
	return s.db.Search(query, limit)
}

func (s *Service) read(p string) ([]byte, error) {
	data, err := s.files.Read(p)
	if err != nil {
		return nil, notFound(err)
	}
	return data, nil
}

// register makes p known to the store with its derived name and language.
func (s *Service) register(p string) {
	s.anns.RegisterFile(models.SourceFile{ID: p, Name: path.Base(p), Language: codec.LanguageForPath(p)})
}

func (s *Service) detail(p string, data []byte) *FileDetail {
	anns := s.anns.Query(p)
	annotation.SortByLine(anns)
	return &FileDetail{
		Path:        p,
		Name:        path.Base(p),
		Language:    codec.LanguageForPath(p),
		Content:     string(data),
		Checksum:    checksum.Sum(data),
		Annotations: anns,
		CanUndo:     s.history.CanUndo(p),
		CanRedo:     s.history.CanRedo(p),
	}
}

func (s *Service) publishFile(kind, p string) {
	if s.pub != nil {
		s.pub.PublishFileEvent(kind, p)
	}
}

func (s *Service) publishAnnotations(p string, count int) {
	if s.pub != nil {
		s.pub.Publish(sse.Event{
			Type: sse.TypeAnnotationsUpdated,
			Path: p,
			Data: map[string]any{"path": p, "count": count},
		})
	}
}

// cleanPath normalizes a workspace-relative path and rejects paths outside
// the workspace or inside hidden directories.
func cleanPath(p string) (string, error) {
	p = strings.TrimPrefix(path.Clean("/"+strings.ReplaceAll(p, "\\", "/")), "/")
	if p == "" || p == "." {
		return "", fmt.Errorf("%w: path is required", apperr.ErrInvalid)
	}
	if storage.Hidden(p) {
		return "", fmt.Errorf("%w: hidden path %q", apperr.ErrInvalid, p)
	}
	return p, nil
}

func notFound(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %v", apperr.ErrNotFound, err)
	}
	return err
}
