package workspace

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/starford/marginalia/internal/annotation"
	"github.com/starford/marginalia/internal/apperr"
	"github.com/starford/marginalia/internal/codec"
	"github.com/starford/marginalia/internal/models"
	"github.com/starford/marginalia/internal/render"
)

// Export is a rendered interchange document and its suggested file name.
type Export struct {
	Filename string       `json:"filename"`
	Format   codec.Format `json:"format"`
	Content  string       `json:"content"`
}

// Export renders a file with its annotations in the requested format.
func (s *Service) Export(_ context.Context, p string, f codec.Format) (*Export, error) {
	p, err := cleanPath(p)
	if err != nil {
		return nil, err
	}
	data, err := s.read(p)
	if err != nil {
		return nil, err
	}
	anns := s.anns.Query(p)
	lang := codec.LanguageForPath(p)
	name := path.Base(p)

	out := &Export{Filename: codec.ExportFilename(name, lang, f), Format: f}
	switch f {
	case codec.FormatMarkdown:
		annotation.SortByLine(anns)
		out.Content = codec.GenerateMarkdown(string(data), anns, name, lang)
	case codec.FormatInline:
		out.Content = codec.EncodeInline(string(data), anns)
	default:
		return nil, fmt.Errorf("%w: unknown format %q", apperr.ErrInvalid, f)
	}
	return out, nil
}

// ApplyInline takes a file text carrying inline markers, writes the text
// without markers and replaces the file's annotations with the decoded
// ones. A decoded marker whose type and content match an existing
// annotation keeps that annotation's id, author, timestamp and replies.
func (s *Service) ApplyInline(_ context.Context, p, text string) (*FileDetail, error) {
	p, err := cleanPath(p)
	if err != nil {
		return nil, err
	}
	code, drafts := codec.DecodeInline(text)

	s.mu.Lock()
	if _, err := s.read(p); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.register(p)
	before := s.anns.Snapshot(p)

	used := make(map[string]bool)
	final := make([]models.Annotation, 0, len(drafts))
	for _, d := range drafts {
		if a, ok := reuse(before.Annotations, used, d); ok {
			final = append(final, a)
			continue
		}
		d.FileID = p
		id, err := s.anns.Add(d)
		if err != nil {
			_ = s.anns.Restore(before)
			s.mu.Unlock()
			return nil, err
		}
		a, _ := s.anns.Get(id)
		final = append(final, a)
	}
	if err := s.anns.Load(p, final); err != nil {
		_ = s.anns.Restore(before)
		s.mu.Unlock()
		return nil, err
	}
	if err := s.commitLocked(p, []byte(code), final); err != nil {
		_ = s.anns.Restore(before)
		s.mu.Unlock()
		return nil, err
	}
	s.history.Record(before)
	s.mu.Unlock()

	s.publishFile("updated", p)
	s.publishAnnotations(p, len(final))
	return s.detail(p, []byte(code)), nil
}

func reuse(existing []models.Annotation, used map[string]bool, d models.Draft) (models.Annotation, bool) {
	for _, a := range existing {
		if used[a.ID] || a.Type != d.Type || a.Content != d.Content {
			continue
		}
		used[a.ID] = true
		a = a.Clone()
		a.LineNumber = d.LineNumber
		a.EndLineNumber = d.EndLineNumber
		a.LineContent = d.LineContent
		a.Orphaned = false
		return a, true
	}
	return models.Annotation{}, false
}

// ImportMarkdown reads an annotated markdown export into the workspace.
// When p is empty the path is derived from the document title and
// language. An existing file is overwritten and its previous annotations
// can be restored with Undo.
func (s *Service) ImportMarkdown(_ context.Context, p, doc string) (*FileDetail, error) {
	parsed, err := codec.ParseMarkdown(doc)
	if err != nil {
		if errors.Is(err, codec.ErrNotAnnotated) || errors.Is(err, codec.ErrMalformed) {
			return nil, fmt.Errorf("%w: %v", apperr.ErrInvalid, err)
		}
		return nil, err
	}
	if strings.TrimSpace(p) == "" {
		p = importPath(parsed)
	}
	p, err = cleanPath(p)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	_, existed := s.anns.File(p)
	s.register(p)
	before := s.anns.Snapshot(p)
	s.anns.RemoveAllForFile(p)
	for _, d := range parsed.Annotations {
		d.FileID = p
		if _, err := s.anns.Add(d); err != nil {
			_ = s.anns.Restore(before)
			s.mu.Unlock()
			return nil, err
		}
	}
	anns := s.anns.Query(p)
	code := []byte(parsed.Code)
	if err := s.commitLocked(p, code, anns); err != nil {
		_ = s.anns.Restore(before)
		if !existed {
			s.anns.RemoveFile(p)
		}
		s.mu.Unlock()
		return nil, err
	}
	if existed {
		s.history.Record(before)
	}
	s.mu.Unlock()

	if existed {
		s.publishFile("updated", p)
	} else {
		s.publishFile("created", p)
	}
	s.publishAnnotations(p, len(anns))
	return s.detail(p, code), nil
}

func importPath(doc *codec.Document) string {
	name := strings.TrimSpace(doc.Name)
	if name == "" {
		name = "untitled"
	}
	if path.Ext(name) == "" {
		name += codec.ExtensionFor(doc.Language)
	}
	return name
}

// Render returns a terminal rendering of a file with its annotations.
func (s *Service) Render(ctx context.Context, p string) (string, error) {
	lines, err := s.Highlight(ctx, p)
	if err != nil {
		return "", err
	}
	anns, err := s.Annotations(ctx, p)
	if err != nil {
		return "", err
	}
	p, _ = cleanPath(p)
	return render.File(p, lines, anns), nil
}
