package api

import (
	"net/http"

	"github.com/starford/inkwell/internal/apperr"
	"github.com/starford/inkwell/internal/editor"
	"github.com/starford/inkwell/internal/notes"
)

func (h *Handler) writeSession(w http.ResponseWriter, op string, sess notes.Session, cursor *editor.Position, err error) {
	if err != nil {
		writeError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{Session: sess, Cursor: cursor})
}

// GetSession handles GET /session.
func (h *Handler) GetSession(w http.ResponseWriter, _ *http.Request) {
	sess, ok := h.notes.Session()
	if !ok {
		writeError(w, "get session", apperr.ErrNoSession)
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{Session: sess})
}

// SetSessionTitle handles PUT /session/title.
func (h *Handler) SetSessionTitle(w http.ResponseWriter, r *http.Request) {
	var req TitleRequest
	if !decode(w, r, &req) {
		return
	}
	sess, err := h.notes.SetDraftTitle(req.Title)
	h.writeSession(w, "set title", sess, nil, err)
}

// SetSessionContent handles PUT /session/content.
func (h *Handler) SetSessionContent(w http.ResponseWriter, r *http.Request) {
	var req ContentRequest
	if !decode(w, r, &req) {
		return
	}
	sess, err := h.notes.SetDraftContent(req.Content)
	h.writeSession(w, "set content", sess, nil, err)
}

// EditSession handles POST /session/edit.
func (h *Handler) EditSession(w http.ResponseWriter, r *http.Request) {
	var req EditRequest
	if !decode(w, r, &req) {
		return
	}
	cursor, sess, err := h.notes.EditDraft(req.NoteID, req.Range, req.Text)
	h.writeSession(w, "edit", sess, &cursor, err)
}

// SaveSession handles POST /session/save.
func (h *Handler) SaveSession(w http.ResponseWriter, r *http.Request) {
	if _, err := h.notes.SaveSession(r.Context()); err != nil {
		writeError(w, "save session", err)
		return
	}
	h.GetSession(w, r)
}

// UndoSession handles POST /session/undo.
func (h *Handler) UndoSession(w http.ResponseWriter, _ *http.Request) {
	cursor, sess, err := h.notes.Undo()
	h.writeSession(w, "undo", sess, &cursor, err)
}

// RedoSession handles POST /session/redo.
func (h *Handler) RedoSession(w http.ResponseWriter, _ *http.Request) {
	cursor, sess, err := h.notes.Redo()
	h.writeSession(w, "redo", sess, &cursor, err)
}

// TrackSelection handles POST /session/selection. It reports where the
// floating controls go and whether they need redrawing.
func (h *Handler) TrackSelection(w http.ResponseWriter, r *http.Request) {
	var req SelectionRequest
	if !decode(w, r, &req) {
		return
	}
	sess, ok := h.notes.Session()
	if !ok {
		writeError(w, "track selection", apperr.ErrNoSession)
		return
	}
	snap, changed := h.selection.Track(sess.NoteID, sess.Revision, editor.NewDocument(sess.Content), req.Range, req.Cursor, req.Viewport)
	writeJSON(w, http.StatusOK, SelectionResponse{Selection: snap, Changed: changed})
}
