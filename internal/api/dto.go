package api

import (
	"github.com/starford/marginalia/internal/index"
	"github.com/starford/marginalia/internal/workspace"
)

// CreateFileRequest is the request body for creating a file.
type CreateFileRequest struct {
	Path    string `json:"path" example:"src/prog.mad" validate:"required"`
	Content string `json:"content" example:"R PROGRAM\n      END OF PROGRAM"`
}

// UpdateFileRequest is the request body for updating a file.
type UpdateFileRequest struct {
	Content string `json:"content" example:"R PROGRAM\n      END OF PROGRAM"`
}

// MoveFileRequest is the request body for renaming a file.
type MoveFileRequest struct {
	From string `json:"from" example:"prog.mad" validate:"required"`
	To   string `json:"to" example:"lib/prog.mad" validate:"required"`
}

// ImportRequest carries an annotated markdown export. Path is optional.
type ImportRequest struct {
	Path    string `json:"path,omitempty" example:"prog.mad"`
	Content string `json:"content" validate:"required"`
}

// ApplyInlineRequest carries file text with inline annotation markers.
type ApplyInlineRequest struct {
	Content string `json:"content" validate:"required"`
}

// FileDetail is the full file response type (aliased from the domain layer).
type FileDetail = workspace.FileDetail

// FileListItem is a lightweight item in a list response (aliased from the domain layer).
type FileListItem = workspace.FileListItem

// FileListResponse wraps file listings.
type FileListResponse struct {
	Files []FileListItem `json:"files" validate:"required"`
	Total int            `json:"total" example:"3" validate:"required"`
}

// SearchResult is a single search hit (aliased from the index layer).
type SearchResult = index.SearchResult

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []SearchResult `json:"results" validate:"required"`
}
