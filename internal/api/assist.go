package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/inkwell/internal/apperr"
	"github.com/starford/inkwell/internal/transform"
)

// GetCredential handles GET /credential.
func (h *Handler) GetCredential(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, CredentialResponse{Registered: h.credential.HasCredential()})
}

// PutCredential handles PUT /credential. The key is tried against the
// provider before it is stored.
func (h *Handler) PutCredential(w http.ResponseWriter, r *http.Request) {
	var req CredentialRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.credential.SaveCredential(r.Context(), req.APIKey); err != nil {
		writeError(w, "save credential", err)
		return
	}
	writeJSON(w, http.StatusOK, CredentialResponse{Registered: true})
}

func (h *Handler) writeChat(w http.ResponseWriter, status int) {
	writeJSON(w, status, ChatResponse{Messages: h.chat.Messages(), Snippets: h.chat.Snippets()})
}

// GetChat handles GET /chat.
func (h *Handler) GetChat(w http.ResponseWriter, _ *http.Request) {
	h.writeChat(w, http.StatusOK)
}

// SendChat handles POST /chat/messages.
func (h *Handler) SendChat(w http.ResponseWriter, r *http.Request) {
	var req ChatMessageRequest
	if !decode(w, r, &req) {
		return
	}
	if _, err := h.chat.Send(r.Context(), req.Text); err != nil {
		if _, _, known := statusOf(err); !known {
			slog.Warn("chat request failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusBadGateway, errorBody("assistant request failed"))
			return
		}
		writeError(w, "send chat", err)
		return
	}
	h.writeChat(w, http.StatusOK)
}

// AddSnippet handles POST /chat/snippets. Without text it takes the
// current selection of the open draft.
func (h *Handler) AddSnippet(w http.ResponseWriter, r *http.Request) {
	var req SnippetRequest
	if !decode(w, r, &req) {
		return
	}
	text := req.Text
	if text == "" {
		snap := h.selection.Last()
		if sess, ok := h.notes.Session(); ok && snap.Visible && snap.Belongs(sess.NoteID, sess.Revision) {
			text = snap.Text
		}
	}
	if _, err := h.chat.AddSnippet(text); err != nil {
		writeError(w, "add snippet", err)
		return
	}
	h.writeChat(w, http.StatusCreated)
}

// RemoveSnippet handles DELETE /chat/snippets/{id}.
func (h *Handler) RemoveSnippet(w http.ResponseWriter, r *http.Request) {
	if err := h.chat.RemoveSnippet(chi.URLParam(r, "id")); err != nil {
		writeError(w, "remove snippet", err)
		return
	}
	h.writeChat(w, http.StatusOK)
}

// ClearChat handles DELETE /chat.
func (h *Handler) ClearChat(w http.ResponseWriter, _ *http.Request) {
	h.chat.Clear()
	w.WriteHeader(http.StatusNoContent)
}

// BeginTransform handles POST /transform. The tracked selection, if any, is
// handed over to the workflow.
func (h *Handler) BeginTransform(w http.ResponseWriter, r *http.Request) {
	var req TransformBeginRequest
	if !decode(w, r, &req) {
		return
	}
	sess, ok := h.notes.Session()
	if !ok {
		writeError(w, "begin transform", apperr.ErrNoSession)
		return
	}
	wf, err := h.transforms.Begin(req.Surface, sess, h.selection.Consume())
	if err != nil {
		writeError(w, "begin transform", err)
		return
	}
	writeJSON(w, http.StatusCreated, wf.State())
}

// GetTransform handles GET /transform?surface=.
func (h *Handler) GetTransform(w http.ResponseWriter, r *http.Request) {
	wf, err := h.transforms.Get(r.URL.Query().Get("surface"))
	if err != nil {
		writeError(w, "get transform", err)
		return
	}
	writeJSON(w, http.StatusOK, wf.State())
}

// SubmitTransform handles POST /transform/submit.
func (h *Handler) SubmitTransform(w http.ResponseWriter, r *http.Request) {
	var req TransformSubmitRequest
	if !decode(w, r, &req) {
		return
	}
	wf, err := h.transforms.Get(req.Surface)
	if err != nil {
		writeError(w, "submit transform", err)
		return
	}
	st, err := wf.Submit(r.Context(), req.Instruction)
	if err != nil {
		if errors.Is(err, apperr.ErrNoCredential) {
			// The workflow is already cancelled with its notice.
			writeJSON(w, http.StatusPreconditionRequired, st)
			return
		}
		writeError(w, "submit transform", err)
		return
	}
	if req.Wait && st.Phase == transform.AwaitingResult {
		if st, err = wf.Wait(r.Context()); err != nil {
			writeJSON(w, http.StatusAccepted, st)
			return
		}
	}
	status := http.StatusOK
	if st.Phase == transform.AwaitingResult {
		status = http.StatusAccepted
	}
	writeJSON(w, status, st)
}

// ApplyTransform handles POST /transform/apply.
func (h *Handler) ApplyTransform(w http.ResponseWriter, r *http.Request) {
	h.finishTransform(w, r, "apply transform", (*transform.Workflow).Apply)
}

// CancelTransform handles POST /transform/cancel.
func (h *Handler) CancelTransform(w http.ResponseWriter, r *http.Request) {
	h.finishTransform(w, r, "cancel transform", (*transform.Workflow).Cancel)
}

func (h *Handler) finishTransform(w http.ResponseWriter, r *http.Request, op string, step func(*transform.Workflow) (transform.State, error)) {
	var req TransformSurfaceRequest
	if !decode(w, r, &req) {
		return
	}
	wf, err := h.transforms.Get(req.Surface)
	if err != nil {
		writeError(w, op, err)
		return
	}
	st, err := step(wf)
	if err != nil {
		writeError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
