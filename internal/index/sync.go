package index

import (
	"log/slog"
	"path"
	"sort"
	"time"

	"github.com/starford/marginalia/internal/anchor"
	"github.com/starford/marginalia/internal/checksum"
	"github.com/starford/marginalia/internal/codec"
	"github.com/starford/marginalia/internal/storage"
)

// EventCallback is called after a watcher-driven index change.
// kind is one of "created", "updated", "deleted".
type EventCallback func(kind string, path string)

// Sync walks the workspace and brings the index up to date:
//   - changed files are re-indexed and their annotations relocated
//   - files that moved unchanged keep their annotations under the new path
//   - files removed from disk are deleted from the index
func Sync(db *DB, store storage.Provider, logger *slog.Logger) error {
	return reconcile(db, store, logger, nil)
}

func reconcile(db *DB, store storage.Provider, logger *slog.Logger, cb EventCallback) error {
	metas, err := store.List("")
	if err != nil {
		return err
	}
	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]string, len(metas))
	var fresh []string
	for _, m := range metas {
		disk[m.Path] = m.Checksum
		if _, known := checksums[m.Path]; !known {
			fresh = append(fresh, m.Path)
		}
	}
	var stale []string
	for p := range checksums {
		if _, ok := disk[p]; !ok {
			stale = append(stale, p)
		}
	}
	sort.Strings(fresh)
	sort.Strings(stale)

	// A stale entry whose content reappears under a new path was renamed.
	claimed := make(map[string]bool)
	for _, old := range stale {
		target := ""
		for _, p := range fresh {
			if !claimed[p] && disk[p] == checksums[old] {
				target = p
				break
			}
		}
		if target == "" {
			if err := db.DeleteFile(old); err != nil {
				logger.Warn("sync: delete failed", slog.String("path", old), slog.String("error", err.Error()))
				continue
			}
			logger.Debug("sync: removed stale", slog.String("path", old))
			notify(cb, "deleted", old)
			continue
		}
		claimed[target] = true
		if err := db.MoveFile(old, target); err != nil {
			logger.Warn("sync: move failed", slog.String("from", old), slog.String("to", target), slog.String("error", err.Error()))
			continue
		}
		if err := db.UpsertFile(NewFileRow(target, disk[target])); err != nil {
			logger.Warn("sync: update moved failed", slog.String("path", target), slog.String("error", err.Error()))
		}
		logger.Debug("sync: moved", slog.String("from", old), slog.String("to", target))
		notify(cb, "deleted", old)
		notify(cb, "created", target)
	}

	paths := make([]string, 0, len(disk))
	for p := range disk {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		if claimed[p] || checksums[p] == disk[p] {
			continue
		}
		data, err := store.Read(p)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		_, known := checksums[p]
		if _, err := indexFile(db, p, data, logger); err != nil {
			logger.Warn("sync: index failed", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		if known {
			notify(cb, "updated", p)
		} else {
			notify(cb, "created", p)
		}
	}

	return nil
}

// indexFile upserts the file row and relocates its stored annotations
// against data. It reports whether anything changed.
func indexFile(db *DB, p string, data []byte, logger *slog.Logger) (bool, error) {
	cs := checksum.Sum(data)
	prev, err := db.GetChecksum(p)
	if err != nil {
		return false, err
	}
	if prev == cs {
		return false, nil
	}

	anns, err := db.LoadAnnotations(p)
	if err != nil {
		return false, err
	}
	results := anchor.RelocateAll(string(data), anns)
	if err := db.SaveFile(NewFileRow(p, cs), anchor.Annotations(results)); err != nil {
		return false, err
	}

	sum := anchor.Summarize(results)
	logger.Debug("sync: indexed",
		slog.String("path", p),
		slog.Int("annotations", sum.Total),
		slog.Int("moved", sum.Moved),
		slog.Int("orphaned", sum.Orphaned),
		slog.Int("recovered", sum.Recovered))
	return true, nil
}

// NewFileRow builds the row stored for the workspace file p with checksum cs.
func NewFileRow(p, cs string) FileRow {
	return FileRow{
		Path:      p,
		Name:      path.Base(p),
		Language:  codec.LanguageForPath(p),
		Checksum:  cs,
		UpdatedAt: time.Now().UTC(),
	}
}

func notify(cb EventCallback, kind, p string) {
	if cb != nil {
		cb(kind, p)
	}
}
