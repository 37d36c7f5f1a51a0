//go:build sqlite_fts5

package index

import (
	"testing"
)

func TestFTS5_TableExists(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM annotations_fts`).Scan(&count); err != nil {
		t.Fatalf("annotations_fts table missing: %v", err)
	}
}

func TestFTS5_SearchWithSnippet(t *testing.T) {
	db := testDB(t)
	anns := sampleAnnotations("fts.mad")
	anns[0].Content = "The loop provides powerful iteration."
	if err := db.SaveFile(FileRow{Path: "fts.mad", Checksum: "f1"}, anns); err != nil {
		t.Fatalf("SaveFile: %v", err)
	}

	results, err := db.Search("powerful", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Path != "fts.mad" || results[0].AnnotationID != "a2" {
		t.Errorf("result = %+v", results[0])
	}
	if results[0].Snippet == "" {
		t.Error("expected non-empty snippet")
	}
}

func TestFTS5_DeleteRemovesFromFTS(t *testing.T) {
	db := testDB(t)
	anns := sampleAnnotations("gone.mad")
	anns[0].Content = "vanishing content"
	_ = db.SaveFile(FileRow{Path: "gone.mad", Checksum: "g"}, anns)
	_ = db.DeleteFile("gone.mad")

	results, _ := db.Search("vanishing", 10)
	if len(results) != 0 {
		t.Errorf("deleted file still in FTS index: %+v", results)
	}
}

func TestFTS5_SaveReplacesContent(t *testing.T) {
	db := testDB(t)
	anns := sampleAnnotations("evo.mad")
	anns[0].Content = "original text"
	_ = db.SaveFile(FileRow{Path: "evo.mad", Checksum: "1"}, anns)
	anns[0].Content = "replacement text"
	_ = db.SaveAnnotations("evo.mad", anns)

	results, _ := db.Search("original", 10)
	if len(results) != 0 {
		t.Error("old FTS content should be gone")
	}
	results, _ = db.Search("replacement", 10)
	if len(results) != 1 {
		t.Errorf("FTS not updated: %+v", results)
	}
}

func TestFTS5_MoveFollowsFile(t *testing.T) {
	db := testDB(t)
	anns := sampleAnnotations("a.mad")
	anns[0].Content = "wandering note"
	_ = db.SaveFile(FileRow{Path: "a.mad", Checksum: "1"}, anns)
	if err := db.MoveFile("a.mad", "b.mad"); err != nil {
		t.Fatalf("MoveFile: %v", err)
	}
	results, _ := db.Search("wandering", 10)
	if len(results) != 1 || results[0].Path != "b.mad" {
		t.Errorf("results = %+v", results)
	}
}
