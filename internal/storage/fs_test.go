package storage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/starford/marginalia/internal/checksum"
)

func tempWorkspace(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	store, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return store
}

func TestWriteAndRead(t *testing.T) {
	s := tempWorkspace(t)
	content := []byte("R HELLO\n      PRINT COMMENT $HI$\n")
	if err := s.Write("hello.mad", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("hello.mad")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestWriteCreatesSubdirs(t *testing.T) {
	s := tempWorkspace(t)
	if err := s.Write("a/b/c.mad", []byte("deep")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("a/b/c.mad")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "deep" {
		t.Errorf("content = %q", got)
	}
}

func TestDelete(t *testing.T) {
	s := tempWorkspace(t)
	_ = s.Write("del.mad", []byte("bye"))
	if err := s.Delete("del.mad"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Read("del.mad"); err == nil {
		t.Error("expected error reading deleted file")
	}
}

func TestMove(t *testing.T) {
	s := tempWorkspace(t)
	_ = s.Write("old.mad", []byte("data"))
	if err := s.Move("old.mad", "sub/new.mad"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	got, err := s.Read("sub/new.mad")
	if err != nil {
		t.Fatalf("Read after move: %v", err)
	}
	if string(got) != "data" {
		t.Errorf("content = %q", got)
	}
	if _, err := s.Read("old.mad"); err == nil {
		t.Error("old path should not exist")
	}
}

func TestListSkipsHidden(t *testing.T) {
	s := tempWorkspace(t)
	_ = s.Write("a.mad", []byte("a"))
	_ = s.Write("sub/b.py", []byte("b"))
	_ = s.Write(".env", []byte("SECRET=1"))
	_ = s.Write(".marginalia/index.db", []byte("db"))

	items, err := s.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var paths []string
	for _, it := range items {
		paths = append(paths, it.Path)
	}
	sort.Strings(paths)
	if len(paths) != 2 || paths[0] != "a.mad" || paths[1] != "sub/b.py" {
		t.Errorf("paths = %v", paths)
	}
	for _, it := range items {
		if it.Path == "a.mad" && it.Checksum != checksum.Sum([]byte("a")) {
			t.Errorf("checksum = %s", it.Checksum)
		}
	}
}

func TestHidden(t *testing.T) {
	cases := map[string]bool{
		"a.mad":                false,
		"sub/b.mad":            false,
		".env":                 true,
		".marginalia/index.db": true,
		"sub/.cache/x":         true,
	}
	for p, want := range cases {
		if got := Hidden(p); got != want {
			t.Errorf("Hidden(%q) = %v, want %v", p, got, want)
		}
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempWorkspace(t)

	cases := []string{
		"../../etc/passwd",
		"../outside.mad",
		"/etc/shadow",
	}
	for _, p := range cases {
		if _, err := s.Read(p); err == nil {
			t.Errorf("expected error for path %q", p)
		}
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
	}
}

func TestAtomicWriteNoCorruption(t *testing.T) {
	s := tempWorkspace(t)
	_ = s.Write("atomic.mad", []byte("original content"))

	updated := []byte("updated content")
	if err := s.Write("atomic.mad", updated); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("atomic.mad")
	if string(got) != string(updated) {
		t.Errorf("expected updated content, got %q", got)
	}

	// Confirm no leftover temp files.
	matches, _ := filepath.Glob(filepath.Join(s.root, tempPrefix+"*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS(filepath.Join(t.TempDir(), "does-not-exist"))
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "marginalia-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	_, err := NewFS(f.Name())
	if err == nil {
		t.Error("expected error when root is a file")
	}
}

func TestListSkipsBinaryAndLarge(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFS(dir, WithMaxFileSize(16))
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	_ = s.Write("prog.mad", []byte("R SHORT"))
	_ = s.Write("image.png", []byte{0x89, 'P', 'N', 'G', 0, 0, 1})
	_ = s.Write("big.f", []byte("      PROGRAM LONGER THAN SIXTEEN BYTES"))

	items, err := s.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 1 || items[0].Path != "prog.mad" {
		t.Errorf("items = %+v", items)
	}
}

func TestBinary(t *testing.T) {
	if Binary([]byte("      PRINT X\n")) {
		t.Error("text reported as binary")
	}
	if !Binary([]byte{'a', 0, 'b'}) {
		t.Error("NUL byte not detected")
	}
}

func TestWriteKeepsMode(t *testing.T) {
	s := tempWorkspace(t)
	_ = s.Write("run.sh", []byte("#!/bin/sh\n"))
	abs := filepath.Join(s.root, "run.sh")
	if err := os.Chmod(abs, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := s.Write("run.sh", []byte("#!/bin/sh\necho hi\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o755 {
		t.Errorf("mode = %v, want 0755", info.Mode().Perm())
	}
}

func TestMoveRefusesOverwrite(t *testing.T) {
	s := tempWorkspace(t)
	_ = s.Write("a.mad", []byte("a"))
	_ = s.Write("b.mad", []byte("b"))
	err := s.Move("a.mad", "b.mad")
	if !errors.Is(err, fs.ErrExist) {
		t.Fatalf("Move err = %v, want ErrExist", err)
	}
	got, _ := s.Read("b.mad")
	if string(got) != "b" {
		t.Errorf("destination overwritten: %q", got)
	}
}

func TestDeletePrunesEmptyDirs(t *testing.T) {
	s := tempWorkspace(t)
	_ = s.Write("a/b/c.mad", []byte("x"))
	_ = s.Write("a/keep.mad", []byte("y"))
	if err := s.Delete("a/b/c.mad"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(filepath.Join(s.root, "a", "b")); !os.IsNotExist(err) {
		t.Errorf("empty dir a/b not removed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(s.root, "a")); err != nil {
		t.Errorf("non-empty dir a removed: %v", err)
	}
	if err := s.Delete(""); err == nil {
		t.Error("expected error deleting the root")
	}
}
