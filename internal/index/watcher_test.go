package index

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/marginalia/internal/checksum"
	"github.com/starford/marginalia/internal/models"
	"github.com/starford/marginalia/internal/storage"
)

// watcherTestEnv sets up a workspace dir, storage, and DB for watcher tests.
func watcherTestEnv(t *testing.T) (string, storage.Provider, *DB) {
	t.Helper()
	root := t.TempDir()
	store, err := storage.NewFS(root)
	if err != nil {
		t.Fatal(err)
	}
	return root, store, testDB(t)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

// annotate stores one annotation on line for an already synced file.
func annotate(t *testing.T, db *DB, path string, line int, content string) {
	t.Helper()
	err := db.SaveAnnotations(path, []models.Annotation{{
		ID: "w1", FileID: path, LineNumber: line, LineContent: content,
		Type: models.TypeObservation, Content: "note", CreatedAt: time.Now().UTC(),
	}})
	if err != nil {
		t.Fatal(err)
	}
}

func TestSyncIndexesAndRemoves(t *testing.T) {
	root, store, db := watcherTestEnv(t)
	_ = os.WriteFile(filepath.Join(root, "a.mad"), []byte("A"), 0o644)
	_ = os.WriteFile(filepath.Join(root, "b.py"), []byte("B"), 0o644)
	_ = os.MkdirAll(filepath.Join(root, ".marginalia"), 0o755)
	_ = os.WriteFile(filepath.Join(root, ".marginalia", "state"), []byte("x"), 0o644)

	if err := Sync(db, store, quietLogger()); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	files, _ := db.ListFiles()
	if len(files) != 2 || files[0].Language != "mad" || files[1].Language != "python" {
		t.Fatalf("files = %+v", files)
	}

	_ = os.Remove(filepath.Join(root, "b.py"))
	_ = Sync(db, store, quietLogger())
	if cs, _ := db.GetChecksum("b.py"); cs != "" {
		t.Error("removed file still indexed")
	}
}

func TestSyncRelocatesChangedFile(t *testing.T) {
	root, store, db := watcherTestEnv(t)
	p := filepath.Join(root, "prog.mad")
	_ = os.WriteFile(p, []byte("A\nTARGET\nB"), 0o644)
	_ = Sync(db, store, quietLogger())
	annotate(t, db, "prog.mad", 2, "TARGET")

	_ = os.WriteFile(p, []byte("NEW\nA\nB\n  TARGET"), 0o644)
	_ = Sync(db, store, quietLogger())

	got, _ := db.LoadAnnotations("prog.mad")
	if len(got) != 1 || got[0].LineNumber != 4 || got[0].Orphaned {
		t.Fatalf("annotation not relocated: %+v", got)
	}
	if cs, _ := db.GetChecksum("prog.mad"); cs != checksum.Sum([]byte("NEW\nA\nB\n  TARGET")) {
		t.Error("checksum not updated")
	}

	_ = os.WriteFile(p, []byte("NOTHING LEFT"), 0o644)
	_ = Sync(db, store, quietLogger())
	got, _ = db.LoadAnnotations("prog.mad")
	if len(got) != 1 || !got[0].Orphaned || got[0].LineNumber != 4 {
		t.Fatalf("annotation should be orphaned in place: %+v", got)
	}
}

func TestSyncPairsRenamedFile(t *testing.T) {
	root, store, db := watcherTestEnv(t)
	_ = os.WriteFile(filepath.Join(root, "old.mad"), []byte("X\nY"), 0o644)
	_ = Sync(db, store, quietLogger())
	annotate(t, db, "old.mad", 2, "Y")

	_ = os.Rename(filepath.Join(root, "old.mad"), filepath.Join(root, "new.mad"))
	_ = Sync(db, store, quietLogger())

	if cs, _ := db.GetChecksum("old.mad"); cs != "" {
		t.Error("old path should be gone")
	}
	got, _ := db.LoadAnnotations("new.mad")
	if len(got) != 1 || got[0].ID != "w1" {
		t.Errorf("annotations did not follow rename: %+v", got)
	}
}

func TestWatcher_NewFileIndexed(t *testing.T) {
	root, store, db := watcherTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var events []string

	go Watch(ctx, db, store, root, quietLogger(), func(kind, path string) {
		mu.Lock()
		events = append(events, kind+":"+path)
		mu.Unlock()
	})

	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(root, "new.mad"), []byte("R NEW"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("new.mad")
		return cs != ""
	}, "new file not indexed by watcher")

	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, e := range events {
			if e == "created:new.mad" {
				return true
			}
		}
		return false
	}, "expected created:new.mad callback")
}

func TestWatcher_EditRelocates(t *testing.T) {
	root, store, db := watcherTestEnv(t)
	p := filepath.Join(root, "edit.mad")
	_ = os.WriteFile(p, []byte("ONE\nTWO"), 0o644)
	_ = Sync(db, store, quietLogger())
	annotate(t, db, "edit.mad", 2, "TWO")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Watch(ctx, db, store, root, quietLogger(), nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(p, []byte("ZERO\nONE\nTWO"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		got, _ := db.LoadAnnotations("edit.mad")
		return len(got) == 1 && got[0].LineNumber == 3
	}, "annotation not relocated after edit")
}

func TestWatcher_NewDirWatched(t *testing.T) {
	root, store, db := watcherTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, store, root, quietLogger(), nil)

	time.Sleep(100 * time.Millisecond)

	subDir := filepath.Join(root, "subdir")
	_ = os.MkdirAll(subDir, 0o755)
	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(subDir, "deep.mad"), []byte("R DEEP"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("subdir/deep.mad")
		return cs != ""
	}, "file in new subdir not indexed by watcher")
}

func TestWatcher_DeleteRemovesFromIndex(t *testing.T) {
	root, store, db := watcherTestEnv(t)

	_ = os.WriteFile(filepath.Join(root, "del.mad"), []byte("R DELETE ME"), 0o644)
	_ = Sync(db, store, quietLogger())

	cs, _ := db.GetChecksum("del.mad")
	if cs == "" {
		t.Fatal("precondition: file should be indexed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, store, root, quietLogger(), nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.Remove(filepath.Join(root, "del.mad"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("del.mad")
		return cs == ""
	}, "deleted file still in index")
}

func TestWatcher_RenameKeepsAnnotations(t *testing.T) {
	root, store, db := watcherTestEnv(t)

	_ = os.WriteFile(filepath.Join(root, "old.mad"), []byte("R RENAME\nBODY"), 0o644)
	_ = Sync(db, store, quietLogger())
	annotate(t, db, "old.mad", 2, "BODY")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, store, root, quietLogger(), nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.Rename(filepath.Join(root, "old.mad"), filepath.Join(root, "renamed.mad"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		oldCS, _ := db.GetChecksum("old.mad")
		got, _ := db.LoadAnnotations("renamed.mad")
		return oldCS == "" && len(got) == 1
	}, "rename reconciliation failed: annotations should follow the file")
}
