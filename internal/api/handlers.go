package api

import (
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/marginalia/internal/checksum"
	"github.com/starford/marginalia/internal/codec"
	"github.com/starford/marginalia/internal/workspace"
)

const maxBody = 10 << 20

// Handler holds API route handlers.
type Handler struct {
	svc *workspace.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *workspace.Service) *Handler {
	return &Handler{svc: svc}
}

// filePath extracts the file path from the URL (everything after /api/files/).
// Supports encoded slashes from OpenAPI clients (e.g. src%2Fprog.mad).
func filePath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// fileParam returns the ?file= query parameter, writing a 400 when absent.
func fileParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	p := r.URL.Query().Get("file")
	if p == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'file' is required"))
		return "", false
	}
	return p, true
}

// ListFiles handles GET /api/files.
//
//	@Summary		List workspace files with annotation counts
//	@Tags			files
//	@Produce		json
//	@Success		200	{object}	FileListResponse
//	@Router			/files [get]
func (h *Handler) ListFiles(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListFiles(r.Context())
	if err != nil {
		writeError(w, "list files", err)
		return
	}
	writeJSON(w, http.StatusOK, FileListResponse{Files: items, Total: len(items)})
}

// GetFile handles GET /api/files/*.
//
//	@Summary		Get a file with its annotations
//	@Tags			files
//	@Produce		json
//	@Param			path	path		string	true	"File path"
//	@Success		200		{object}	FileDetail
//	@Failure		404		{object}	errResponse
//	@Router			/files/{path} [get]
func (h *Handler) GetFile(w http.ResponseWriter, r *http.Request) {
	path := filePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	f, err := h.svc.GetFile(r.Context(), path)
	if err != nil {
		writeError(w, "get file", err, slog.String("path", path))
		return
	}
	w.Header().Set("ETag", checksum.ETag(f.Checksum))
	writeJSON(w, http.StatusOK, f)
}

// CreateFile handles POST /api/files.
//
//	@Summary		Create a new file
//	@Tags			files
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateFileRequest	true	"File to create"
//	@Success		201		{object}	FileDetail
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Router			/files [post]
func (h *Handler) CreateFile(w http.ResponseWriter, r *http.Request) {
	var req CreateFileRequest
	if !decodeBody(w, r, maxBody, &req) {
		return
	}
	if req.Path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	f, err := h.svc.CreateFile(r.Context(), req.Path, []byte(req.Content))
	if err != nil {
		writeError(w, "create file", err, slog.String("path", req.Path))
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

// UpdateFile handles PUT /api/files/*. Annotations are relocated against
// the new text.
//
//	@Summary		Update a file with optimistic concurrency
//	@Tags			files
//	@Accept			json
//	@Produce		json
//	@Param			path		path		string				true	"File path"
//	@Param			If-Match	header		string				false	"SHA-256 checksum for optimistic concurrency"
//	@Param			body		body		UpdateFileRequest	true	"Updated content"
//	@Success		200			{object}	FileDetail
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Router			/files/{path} [put]
func (h *Handler) UpdateFile(w http.ResponseWriter, r *http.Request) {
	path := filePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	var req UpdateFileRequest
	if !decodeBody(w, r, maxBody, &req) {
		return
	}

	f, err := h.svc.UpdateFile(r.Context(), path, []byte(req.Content), r.Header.Get("If-Match"))
	if err != nil {
		writeError(w, "update file", err, slog.String("path", path))
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// DeleteFile handles DELETE /api/files/*.
//
//	@Summary		Delete a file and its annotations
//	@Tags			files
//	@Param			path	path	string	true	"File path"
//	@Success		204		"File deleted"
//	@Failure		404		{object}	errResponse
//	@Router			/files/{path} [delete]
func (h *Handler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	path := filePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	if err := h.svc.DeleteFile(r.Context(), path); err != nil {
		writeError(w, "delete file", err, slog.String("path", path))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MoveFile handles POST /api/files-ops/move.
//
//	@Summary		Rename a file; annotations follow
//	@Tags			files
//	@Accept			json
//	@Produce		json
//	@Param			body	body		MoveFileRequest	true	"Source and destination"
//	@Success		200		{object}	FileDetail
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Router			/files-ops/move [post]
func (h *Handler) MoveFile(w http.ResponseWriter, r *http.Request) {
	var req MoveFileRequest
	if !decodeBody(w, r, 1<<20, &req) {
		return
	}
	f, err := h.svc.MoveFile(r.Context(), req.From, req.To)
	if err != nil {
		writeError(w, "move file", err, slog.String("from", req.From), slog.String("to", req.To))
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// Relocate handles POST /api/files-ops/relocate?file=.
//
//	@Summary		Reattach annotations to the current file text
//	@Tags			files
//	@Produce		json
//	@Param			file	query		string	true	"File path"
//	@Success		200		{object}	anchor.Summary
//	@Router			/files-ops/relocate [post]
func (h *Handler) Relocate(w http.ResponseWriter, r *http.Request) {
	path, ok := fileParam(w, r)
	if !ok {
		return
	}
	sum, err := h.svc.Relocate(r.Context(), path)
	if err != nil {
		writeError(w, "relocate", err, slog.String("path", path))
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// Undo handles POST /api/files-ops/undo?file=.
//
//	@Summary		Undo the last annotation change of a file
//	@Tags			history
//	@Produce		json
//	@Param			file	query		string	true	"File path"
//	@Success		200		{array}		models.Annotation
//	@Failure		409		{object}	errResponse
//	@Router			/files-ops/undo [post]
func (h *Handler) Undo(w http.ResponseWriter, r *http.Request) {
	path, ok := fileParam(w, r)
	if !ok {
		return
	}
	anns, err := h.svc.Undo(r.Context(), path)
	if err != nil {
		writeError(w, "undo", err, slog.String("path", path))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"annotations": anns})
}

// Redo handles POST /api/files-ops/redo?file=.
//
//	@Summary		Redo the last undone annotation change of a file
//	@Tags			history
//	@Produce		json
//	@Param			file	query		string	true	"File path"
//	@Success		200		{array}		models.Annotation
//	@Failure		409		{object}	errResponse
//	@Router			/files-ops/redo [post]
func (h *Handler) Redo(w http.ResponseWriter, r *http.Request) {
	path, ok := fileParam(w, r)
	if !ok {
		return
	}
	anns, err := h.svc.Redo(r.Context(), path)
	if err != nil {
		writeError(w, "redo", err, slog.String("path", path))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"annotations": anns})
}

// Export handles GET /api/files-ops/export?file=&format=. With raw=1 the
// document itself is sent as an attachment.
//
//	@Summary		Export a file with its annotations
//	@Tags			interchange
//	@Produce		json
//	@Param			file	query		string	true	"File path"
//	@Param			format	query		string	false	"Export format"	Enums(inline, markdown)
//	@Param			raw		query		bool	false	"Send the document as an attachment"
//	@Success		200		{object}	workspace.Export
//	@Router			/files-ops/export [get]
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	path, ok := fileParam(w, r)
	if !ok {
		return
	}
	format, ok := codec.ParseFormat(r.URL.Query().Get("format"))
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("format must be inline or markdown"))
		return
	}
	out, err := h.svc.Export(r.Context(), path, format)
	if err != nil {
		writeError(w, "export", err, slog.String("path", path))
		return
	}
	if raw, _ := strconv.ParseBool(r.URL.Query().Get("raw")); raw {
		contentType := "text/plain; charset=utf-8"
		if format == codec.FormatMarkdown {
			contentType = "text/markdown; charset=utf-8"
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": out.Filename}))
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, out.Content)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// ApplyInline handles POST /api/files-ops/apply-inline?file=.
//
//	@Summary		Replace file text and annotations from inline markers
//	@Tags			interchange
//	@Accept			json
//	@Produce		json
//	@Param			file	query		string				true	"File path"
//	@Param			body	body		ApplyInlineRequest	true	"Text with inline markers"
//	@Success		200		{object}	FileDetail
//	@Router			/files-ops/apply-inline [post]
func (h *Handler) ApplyInline(w http.ResponseWriter, r *http.Request) {
	path, ok := fileParam(w, r)
	if !ok {
		return
	}
	var req ApplyInlineRequest
	if !decodeBody(w, r, maxBody, &req) {
		return
	}
	f, err := h.svc.ApplyInline(r.Context(), path, req.Content)
	if err != nil {
		writeError(w, "apply inline", err, slog.String("path", path))
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// Import handles POST /api/files-ops/import.
//
//	@Summary		Import an annotated markdown export
//	@Tags			interchange
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ImportRequest	true	"Markdown document"
//	@Success		201		{object}	FileDetail
//	@Failure		400		{object}	errResponse
//	@Router			/files-ops/import [post]
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	var req ImportRequest
	if !decodeBody(w, r, maxBody, &req) {
		return
	}
	f, err := h.svc.ImportMarkdown(r.Context(), req.Path, req.Content)
	if err != nil {
		writeError(w, "import", err, slog.String("path", req.Path))
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

// Highlight handles GET /api/files-ops/highlight?file=.
//
//	@Summary		Get display tokens for a file
//	@Tags			files
//	@Produce		json
//	@Param			file	query		string	true	"File path"
//	@Success		200		{array}		highlight.Line
//	@Router			/files-ops/highlight [get]
func (h *Handler) Highlight(w http.ResponseWriter, r *http.Request) {
	path, ok := fileParam(w, r)
	if !ok {
		return
	}
	lines, err := h.svc.Highlight(r.Context(), path)
	if err != nil {
		writeError(w, "highlight", err, slog.String("path", path))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"lines": lines})
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across annotations and replies
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, "search", err, slog.String("query", q))
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}
