package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/inkwell/internal/chat"
	"github.com/starford/inkwell/internal/notes"
	"github.com/starford/inkwell/internal/selection"
	"github.com/starford/inkwell/internal/transform"
)

// Credential registers the provider key.
type Credential interface {
	HasCredential() bool
	SaveCredential(ctx context.Context, key string) error
}

// Deps are the components the API serves.
type Deps struct {
	Notes      *notes.Controller
	Selection  *selection.Tracker
	Transforms *transform.Manager
	Chat       *chat.Panel
	Credential Credential
	// Events, if non-nil, is mounted at GET /events.
	Events http.Handler
}

// Handler holds API route handlers.
type Handler struct {
	notes      *notes.Controller
	selection  *selection.Tracker
	transforms *transform.Manager
	chat       *chat.Panel
	credential Credential
}

// NewHandler creates a new Handler.
func NewHandler(d Deps) *Handler {
	sel := d.Selection
	if sel == nil {
		sel = &selection.Tracker{}
	}
	return &Handler{
		notes:      d.Notes,
		selection:  sel,
		transforms: d.Transforms,
		chat:       d.Chat,
		credential: d.Credential,
	}
}

// confirmer answers discard prompts from the discard query parameter.
func confirmer(r *http.Request) notes.Confirmer {
	ok, _ := strconv.ParseBool(r.URL.Query().Get("discard"))
	return notes.Answer(ok)
}

// ListNotes handles GET /notes.
func (h *Handler) ListNotes(w http.ResponseWriter, _ *http.Request) {
	list := h.notes.Notes()
	writeJSON(w, http.StatusOK, NoteListResponse{
		Notes:    list,
		Selected: h.notes.Selected(),
		Total:    len(list),
	})
}

// CreateNote handles POST /notes. The new note becomes the selected one.
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	n, err := h.notes.Add(r.Context(), confirmer(r))
	if err != nil {
		writeError(w, "create note", err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

// GetNote handles GET /notes/{id}.
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	n, ok := h.notes.Note(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// PatchNote handles PATCH /notes/{id}.
func (h *Handler) PatchNote(w http.ResponseWriter, r *http.Request) {
	var req PatchNoteRequest
	if !decode(w, r, &req) {
		return
	}
	n, err := h.notes.Update(r.Context(), chi.URLParam(r, "id"), req.Patch())
	if err != nil {
		writeError(w, "update note", err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// DeleteNote handles DELETE /notes/{id}. The file goes to the trash.
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	if err := h.notes.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, "delete note", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RefreshNotes handles POST /notes/refresh.
func (h *Handler) RefreshNotes(w http.ResponseWriter, r *http.Request) {
	if err := h.notes.Refresh(r.Context()); err != nil {
		writeError(w, "refresh notes", err)
		return
	}
	h.ListNotes(w, r)
}

// ListTrash handles GET /trash.
func (h *Handler) ListTrash(w http.ResponseWriter, r *http.Request) {
	entries, err := h.notes.Trashed(r.Context())
	if err != nil {
		writeError(w, "list trash", err)
		return
	}
	writeJSON(w, http.StatusOK, TrashResponse{Entries: entries})
}

// RestoreTrash handles POST /trash/{trashID}/restore.
func (h *Handler) RestoreTrash(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "trashID"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid trash id"))
		return
	}
	n, err := h.notes.Restore(r.Context(), id)
	if err != nil {
		writeError(w, "restore note", err)
		return
	}
	writeJSON(w, http.StatusOK, RestoreResponse{Note: n})
}

// ListTabs handles GET /tabs.
func (h *Handler) ListTabs(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, TabsResponse{Tabs: h.notes.Tabs(), Selected: h.notes.Selected()})
}

// SelectTab handles POST /tabs/{id}/select.
func (h *Handler) SelectTab(w http.ResponseWriter, r *http.Request) {
	sess, err := h.notes.Select(r.Context(), chi.URLParam(r, "id"), confirmer(r))
	if err != nil {
		writeError(w, "select note", err)
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{Session: sess})
}

// CloseTab handles DELETE /tabs/{id}.
func (h *Handler) CloseTab(w http.ResponseWriter, r *http.Request) {
	if err := h.notes.Close(r.Context(), chi.URLParam(r, "id"), confirmer(r)); err != nil {
		writeError(w, "close tab", err)
		return
	}
	h.ListTabs(w, r)
}

// GetStorageRoot handles GET /storage/root.
func (h *Handler) GetStorageRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, StorageRootResponse{Path: h.notes.StorageRoot()})
}

// SetStorageRoot handles PUT /storage/root.
func (h *Handler) SetStorageRoot(w http.ResponseWriter, r *http.Request) {
	var req StorageRootRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.notes.SetStorageRoot(r.Context(), req.Path, confirmer(r)); err != nil {
		writeError(w, "set storage root", err)
		return
	}
	h.transforms.CancelAll()
	h.GetStorageRoot(w, r)
}

// ResetStorageRoot handles DELETE /storage/root.
func (h *Handler) ResetStorageRoot(w http.ResponseWriter, r *http.Request) {
	if err := h.notes.ResetStorageRoot(r.Context(), confirmer(r)); err != nil {
		writeError(w, "reset storage root", err)
		return
	}
	h.transforms.CancelAll()
	h.GetStorageRoot(w, r)
}
