package index

import "github.com/starford/marginalia/internal/models"

// FileIndex defines the persistence operations used by the workspace.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type FileIndex interface {
	UpsertFile(f FileRow) error
	SaveFile(f FileRow, anns []models.Annotation) error
	SaveAnnotations(path string, anns []models.Annotation) error
	LoadAnnotations(path string) ([]models.Annotation, error)
	DeleteFile(path string) error
	MoveFile(oldPath, newPath string) error
	GetChecksum(path string) (string, error)
	ListFiles() ([]FileRow, error)
	AllChecksums() (map[string]string, error)
	Search(query string, limit int) ([]SearchResult, error)
	Close() error
}

// Verify *DB satisfies FileIndex at compile time.
var _ FileIndex = (*DB)(nil)
