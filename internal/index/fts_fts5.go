//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/starford/marginalia/internal/models"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS annotations_fts USING fts5(
			id UNINDEXED,
			file_path UNINDEXED,
			content,
			line_content,
			replies,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsReplace(tx *sql.Tx, path string, anns []models.Annotation) error {
	ftsDelete(tx, path)
	for _, a := range anns {
		replies := make([]string, len(a.Replies))
		for i, r := range a.Replies {
			replies[i] = r.Content
		}
		_, err := tx.Exec(`INSERT INTO annotations_fts (id, file_path, content, line_content, replies) VALUES (?, ?, ?, ?, ?)`,
			a.ID, path, a.Content, a.LineContent, strings.Join(replies, "\n"))
		if err != nil {
			return fmt.Errorf("index: upsert fts: %w", err)
		}
	}
	return nil
}

func ftsDelete(tx *sql.Tx, path string) {
	_, _ = tx.Exec(`DELETE FROM annotations_fts WHERE file_path = ?`, path)
}

func ftsMove(tx *sql.Tx, oldPath, newPath string) error {
	if _, err := tx.Exec(`UPDATE annotations_fts SET file_path = ? WHERE file_path = ?`, newPath, oldPath); err != nil {
		return fmt.Errorf("index: move fts: %w", err)
	}
	return nil
}

// Search performs an FTS5 full-text search over annotations and returns
// matching results with snippets.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT f.file_path,
		       f.id,
		       a.line_number,
		       a.type,
		       snippet(annotations_fts, 2, '<b>', '</b>', '...', 32)
		FROM annotations_fts f
		JOIN annotations a ON a.id = f.id
		WHERE annotations_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	out := []SearchResult{}
	for rows.Next() {
		var (
			r   SearchResult
			typ string
		)
		if err := rows.Scan(&r.Path, &r.AnnotationID, &r.LineNumber, &typ, &r.Snippet); err != nil {
			return nil, err
		}
		r.Type = models.AnnotationType(typ)
		out = append(out, r)
	}
	return out, rows.Err()
}
