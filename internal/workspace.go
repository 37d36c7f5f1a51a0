package internal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/starford/marginalia/internal/highlight"
	"github.com/starford/marginalia/internal/index"
	"github.com/starford/marginalia/internal/storage"
	"github.com/starford/marginalia/internal/workspace"
)

// Workspace bundles the components every command needs: the file tree,
// its index and the annotation service loaded from it.
type Workspace struct {
	Root    string
	Files   storage.Provider
	DB      *index.DB
	Service *workspace.Service
}

// Close releases the index.
func (w *Workspace) Close() error {
	return w.DB.Close()
}

// NewLogger builds the JSON logger used by every command.
func NewLogger(cfg *Config, out io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
}

// OpenWorkspace creates the workspace directory if needed, opens the index,
// reconciles it with the files on disk and loads every annotation.
func OpenWorkspace(ctx context.Context, cfg *Config, logger *slog.Logger, opts ...workspace.Option) (*Workspace, error) {
	if err := os.MkdirAll(cfg.Workspace.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace dir: %w", err)
	}

	files, err := storage.NewFS(cfg.Workspace.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	if err := index.Sync(db, files, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	hl, err := highlight.New(
		highlight.WithStyle(cfg.Highlight.Style),
		highlight.WithCacheSize(cfg.Highlight.CacheSize),
	)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init highlighter: %w", err)
	}

	base := []workspace.Option{
		workspace.WithLogger(logger),
		workspace.WithHighlighter(hl),
		workspace.WithHistoryDepth(cfg.History.Depth),
	}
	svc, err := workspace.NewService(files, db, append(base, opts...)...)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init workspace: %w", err)
	}
	if err := svc.Load(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("load annotations: %w", err)
	}

	return &Workspace{
		Root:    cfg.Workspace.Path,
		Files:   files,
		DB:      db,
		Service: svc,
	}, nil
}
