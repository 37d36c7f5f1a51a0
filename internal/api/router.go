package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/marginalia/internal/workspace"
)

// NewRouter creates a chi router with all API routes mounted.
// sseHandler, if non-nil, is mounted at GET /events.
func NewRouter(svc *workspace.Service, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()

	// Files CRUD.
	r.Get("/files", h.ListFiles)
	r.Post("/files", h.CreateFile)
	r.Get("/files/*", h.GetFile)
	r.Put("/files/*", h.UpdateFile)
	r.Delete("/files/*", h.DeleteFile)

	// Whole-file operations, addressed by ?file=.
	r.Route("/files-ops", func(r chi.Router) {
		r.Post("/move", h.MoveFile)
		r.Post("/relocate", h.Relocate)
		r.Post("/undo", h.Undo)
		r.Post("/redo", h.Redo)
		r.Get("/export", h.Export)
		r.Post("/apply-inline", h.ApplyInline)
		r.Post("/import", h.Import)
		r.Get("/highlight", h.Highlight)
	})

	// Annotations and their reply threads.
	r.Get("/annotations", h.ListAnnotations)
	r.Post("/annotations", h.CreateAnnotation)
	r.Route("/annotations/{id}", func(r chi.Router) {
		r.Get("/", h.GetAnnotation)
		r.Patch("/", h.UpdateAnnotation)
		r.Delete("/", h.DeleteAnnotation)
		r.Post("/replies", h.CreateReply)
		r.Delete("/replies/{replyID}", h.DeleteReply)
	})

	// Search.
	r.Get("/search", h.Search)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
