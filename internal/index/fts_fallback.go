//go:build !sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/starford/marginalia/internal/models"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; search uses LIKE over the annotations table.
	return nil
}

func ftsReplace(_ *sql.Tx, _ string, _ []models.Annotation) error {
	// Content is already stored in the annotations table; nothing extra to do.
	return nil
}

func ftsDelete(_ *sql.Tx, _ string) {}

func ftsMove(_ *sql.Tx, _, _ string) error { return nil }

// Search performs a LIKE-based search over annotation content, replies and
// anchored line text (fallback when FTS5 is not compiled in).
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	like := likePattern(query)
	rows, err := db.conn.Query(`
		SELECT a.file_path, a.id, a.line_number, a.type, substr(a.content, 1, 200)
		FROM annotations a
		WHERE a.content LIKE ? ESCAPE '\'
		   OR a.line_content LIKE ? ESCAPE '\'
		   OR EXISTS (SELECT 1 FROM replies r WHERE r.annotation_id = a.id AND r.content LIKE ? ESCAPE '\')
		ORDER BY a.file_path, a.line_number
		LIMIT ?
	`, like, like, like, limit)
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

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePattern(q string) string {
	return "%" + likeEscaper.Replace(q) + "%"
}
