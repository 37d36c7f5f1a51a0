package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/marginalia/internal/models"
)

// ListAnnotations handles GET /api/annotations?file=.
//
//	@Summary		List the annotations of a file in line order
//	@Tags			annotations
//	@Produce		json
//	@Param			file	query		string	true	"File path"
//	@Success		200		{array}		models.Annotation
//	@Failure		404		{object}	errResponse
//	@Router			/annotations [get]
func (h *Handler) ListAnnotations(w http.ResponseWriter, r *http.Request) {
	path, ok := fileParam(w, r)
	if !ok {
		return
	}
	anns, err := h.svc.Annotations(r.Context(), path)
	if err != nil {
		writeError(w, "list annotations", err, slog.String("path", path))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"annotations": anns})
}

// CreateAnnotation handles POST /api/annotations.
//
//	@Summary		Annotate a line or a block of lines
//	@Tags			annotations
//	@Accept			json
//	@Produce		json
//	@Param			body	body		models.Draft	true	"New annotation"
//	@Success		201		{object}	models.Annotation
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Router			/annotations [post]
func (h *Handler) CreateAnnotation(w http.ResponseWriter, r *http.Request) {
	var d models.Draft
	if !decodeBody(w, r, 1<<20, &d) {
		return
	}
	a, err := h.svc.AddAnnotation(r.Context(), d)
	if err != nil {
		writeError(w, "create annotation", err, slog.String("file", d.FileID))
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// GetAnnotation handles GET /api/annotations/{id}.
//
//	@Summary		Get one annotation
//	@Tags			annotations
//	@Produce		json
//	@Param			id	path		string	true	"Annotation id"
//	@Success		200	{object}	models.Annotation
//	@Failure		404	{object}	errResponse
//	@Router			/annotations/{id} [get]
func (h *Handler) GetAnnotation(w http.ResponseWriter, r *http.Request) {
	a, err := h.svc.Annotation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get annotation", err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// UpdateAnnotation handles PATCH /api/annotations/{id}.
//
//	@Summary		Change the type, content or author of an annotation
//	@Tags			annotations
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Annotation id"
//	@Param			body	body		models.Patch	true	"Fields to change"
//	@Success		200		{object}	models.Annotation
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Router			/annotations/{id} [patch]
func (h *Handler) UpdateAnnotation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var p models.Patch
	if !decodeBody(w, r, 1<<20, &p) {
		return
	}
	a, err := h.svc.UpdateAnnotation(r.Context(), id, p)
	if err != nil {
		writeError(w, "update annotation", err, slog.String("id", id))
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// DeleteAnnotation handles DELETE /api/annotations/{id}.
//
//	@Summary		Delete an annotation and its replies
//	@Tags			annotations
//	@Param			id	path	string	true	"Annotation id"
//	@Success		204	"Annotation deleted"
//	@Failure		404	{object}	errResponse
//	@Router			/annotations/{id} [delete]
func (h *Handler) DeleteAnnotation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.DeleteAnnotation(r.Context(), id); err != nil {
		writeError(w, "delete annotation", err, slog.String("id", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateReply handles POST /api/annotations/{id}/replies.
//
//	@Summary		Reply to an annotation
//	@Tags			annotations
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Annotation id"
//	@Param			body	body		models.ReplyDraft	true	"Reply"
//	@Success		201		{object}	models.Reply
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Router			/annotations/{id}/replies [post]
func (h *Handler) CreateReply(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var d models.ReplyDraft
	if !decodeBody(w, r, 1<<20, &d) {
		return
	}
	reply, err := h.svc.AddReply(r.Context(), id, d)
	if err != nil {
		writeError(w, "create reply", err, slog.String("id", id))
		return
	}
	writeJSON(w, http.StatusCreated, reply)
}

// DeleteReply handles DELETE /api/annotations/{id}/replies/{replyID}.
//
//	@Summary		Delete one reply
//	@Tags			annotations
//	@Param			id		path	string	true	"Annotation id"
//	@Param			replyID	path	string	true	"Reply id"
//	@Success		204		"Reply deleted"
//	@Failure		404		{object}	errResponse
//	@Router			/annotations/{id}/replies/{replyID} [delete]
func (h *Handler) DeleteReply(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	replyID := chi.URLParam(r, "replyID")
	if err := h.svc.DeleteReply(r.Context(), id, replyID); err != nil {
		writeError(w, "delete reply", err, slog.String("id", id), slog.String("reply_id", replyID))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
