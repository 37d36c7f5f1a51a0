package index

import (
	"database/sql"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/starford/marginalia/internal/apperr"
	"github.com/starford/marginalia/internal/models"
)

// FileRow represents a row in the files table.
type FileRow struct {
	Path      string
	Name      string
	Language  string
	Checksum  string
	UpdatedAt time.Time
}

// SearchResult represents one matching annotation.
type SearchResult struct {
	Path         string                `json:"path"`
	AnnotationID string                `json:"annotation_id"`
	LineNumber   int                   `json:"line_number"`
	Type         models.AnnotationType `json:"type"`
	Snippet      string                `json:"snippet"`
}

// UpsertFile inserts or replaces a file row. Annotations are left untouched.
func (db *DB) UpsertFile(f FileRow) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if err := upsertFileTx(tx, f); err != nil {
		return err
	}
	return tx.Commit()
}

// SaveFile upserts the file row and replaces its annotations in one
// transaction.
func (db *DB) SaveFile(f FileRow, anns []models.Annotation) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := upsertFileTx(tx, f); err != nil {
		return err
	}
	if err := replaceAnnotationsTx(tx, f.Path, anns); err != nil {
		return err
	}
	return tx.Commit()
}

// SaveAnnotations replaces every annotation of an indexed file. Order in
// anns is kept as the stored creation order.
func (db *DB) SaveAnnotations(path string, anns []models.Annotation) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var exists int
	if err := tx.QueryRow(`SELECT count(*) FROM files WHERE path = ?`, path).Scan(&exists); err != nil {
		return fmt.Errorf("index: lookup file: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("index: save annotations %s: %w", path, apperr.ErrNotFound)
	}
	if err := replaceAnnotationsTx(tx, path, anns); err != nil {
		return err
	}
	return tx.Commit()
}

func upsertFileTx(tx *sql.Tx, f FileRow) error {
	if f.Name == "" {
		f.Name = path.Base(f.Path)
	}
	if f.UpdatedAt.IsZero() {
		f.UpdatedAt = time.Now().UTC()
	}
	_, err := tx.Exec(`
		INSERT INTO files (path, name, language, checksum, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			name       = excluded.name,
			language   = excluded.language,
			checksum   = excluded.checksum,
			updated_at = excluded.updated_at
	`, f.Path, f.Name, f.Language, f.Checksum, f.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert file: %w", err)
	}
	return nil
}

func replaceAnnotationsTx(tx *sql.Tx, path string, anns []models.Annotation) error {
	// Replies go with their annotations through the cascade.
	if _, err := tx.Exec(`DELETE FROM annotations WHERE file_path = ?`, path); err != nil {
		return fmt.Errorf("index: clear annotations: %w", err)
	}
	if len(anns) > 0 {
		annStmt, err := tx.Prepare(`
			INSERT INTO annotations (id, file_path, position, line_number, end_line_number,
				line_content, type, content, orphaned, added_by, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("index: prepare annotation insert: %w", err)
		}
		defer annStmt.Close()
		replyStmt, err := tx.Prepare(`
			INSERT INTO replies (id, annotation_id, position, content, added_by, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("index: prepare reply insert: %w", err)
		}
		defer replyStmt.Close()

		for i, a := range anns {
			if _, err := annStmt.Exec(a.ID, path, i, a.LineNumber, a.EndLineNumber,
				a.LineContent, string(a.Type), a.Content, a.Orphaned, a.AddedBy, a.CreatedAt); err != nil {
				return fmt.Errorf("index: insert annotation %s: %w", a.ID, err)
			}
			for j, r := range a.Replies {
				if _, err := replyStmt.Exec(r.ID, a.ID, j, r.Content, r.AddedBy, r.CreatedAt); err != nil {
					return fmt.Errorf("index: insert reply %s: %w", r.ID, err)
				}
			}
		}
	}
	// FTS replace (no-op when FTS5 tag is absent).
	return ftsReplace(tx, path, anns)
}

// LoadAnnotations returns the stored annotations of a file in creation
// order, replies included.
func (db *DB) LoadAnnotations(path string) ([]models.Annotation, error) {
	rows, err := db.conn.Query(`
		SELECT id, line_number, end_line_number, line_content, type, content,
		       orphaned, added_by, created_at
		FROM annotations
		WHERE file_path = ?
		ORDER BY position
	`, path)
	if err != nil {
		return nil, fmt.Errorf("index: load annotations: %w", err)
	}
	defer rows.Close()

	out := []models.Annotation{}
	byID := make(map[string]int)
	for rows.Next() {
		a := models.Annotation{FileID: path, Replies: []models.Reply{}}
		var typ string
		if err := rows.Scan(&a.ID, &a.LineNumber, &a.EndLineNumber, &a.LineContent, &typ,
			&a.Content, &a.Orphaned, &a.AddedBy, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("index: scan annotation: %w", err)
		}
		a.Type = models.AnnotationType(typ)
		byID[a.ID] = len(out)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}

	rrows, err := db.conn.Query(`
		SELECT r.id, r.annotation_id, r.content, r.added_by, r.created_at
		FROM replies r
		JOIN annotations a ON a.id = r.annotation_id
		WHERE a.file_path = ?
		ORDER BY r.annotation_id, r.position
	`, path)
	if err != nil {
		return nil, fmt.Errorf("index: load replies: %w", err)
	}
	defer rrows.Close()
	for rrows.Next() {
		var (
			r     models.Reply
			annID string
		)
		if err := rrows.Scan(&r.ID, &annID, &r.Content, &r.AddedBy, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("index: scan reply: %w", err)
		}
		if i, ok := byID[annID]; ok {
			out[i].Replies = append(out[i].Replies, r)
		}
	}
	return out, rrows.Err()
}

// DeleteFile removes a file row together with its annotations and replies.
func (db *DB) DeleteFile(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, path)
	if _, err := tx.Exec(`DELETE FROM files WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: delete file: %w", err)
	}
	return tx.Commit()
}

// MoveFile renames a file row; its annotations follow through the cascade.
func (db *DB) MoveFile(oldPath, newPath string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, newPath)
	if _, err := tx.Exec(`DELETE FROM files WHERE path = ?`, newPath); err != nil {
		return fmt.Errorf("index: clear move target: %w", err)
	}
	res, err := tx.Exec(`UPDATE files SET path = ?, name = ? WHERE path = ?`, newPath, path.Base(newPath), oldPath)
	if err != nil {
		return fmt.Errorf("index: move file: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("index: move %s: %w", oldPath, apperr.ErrNotFound)
	}
	if err := ftsMove(tx, oldPath, newPath); err != nil {
		return err
	}
	return tx.Commit()
}

// GetChecksum returns the stored checksum for a file, or empty string if not found.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM files WHERE path = ?`, path).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: get checksum: %w", err)
	}
	return cs, nil
}

// ListFiles returns every file row ordered by path.
func (db *DB) ListFiles() ([]FileRow, error) {
	rows, err := db.conn.Query(`SELECT path, name, language, checksum, updated_at FROM files ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("index: list files: %w", err)
	}
	defer rows.Close()
	var out []FileRow
	for rows.Next() {
		var f FileRow
		if err := rows.Scan(&f.Path, &f.Name, &f.Language, &f.Checksum, &f.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// AllChecksums returns path → checksum for every indexed file.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM files`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}
