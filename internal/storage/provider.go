// Package storage defines the workspace file-system abstraction.
package storage

import "github.com/starford/marginalia/internal/models"

// Provider is the interface for workspace source file operations.
type Provider interface {
	// List returns metadata for every visible file under dir (relative to the workspace root).
	List(dir string) ([]models.FileMetadata, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
	// Move renames oldPath to newPath. An existing newPath is an error wrapping fs.ErrExist.
	Move(oldPath, newPath string) error
}
