package api

import (
	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
func NewRouter(d Deps, authEnabled bool, token string) chi.Router {
	h := NewHandler(d)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Route("/notes", func(r chi.Router) {
		r.Get("/", h.ListNotes)
		r.Post("/", h.CreateNote)
		r.Post("/refresh", h.RefreshNotes)
		r.Get("/{id}", h.GetNote)
		r.Patch("/{id}", h.PatchNote)
		r.Delete("/{id}", h.DeleteNote)
	})

	r.Get("/trash", h.ListTrash)
	r.Post("/trash/{trashID}/restore", h.RestoreTrash)

	r.Get("/tabs", h.ListTabs)
	r.Post("/tabs/{id}/select", h.SelectTab)
	r.Delete("/tabs/{id}", h.CloseTab)

	r.Route("/session", func(r chi.Router) {
		r.Get("/", h.GetSession)
		r.Put("/title", h.SetSessionTitle)
		r.Put("/content", h.SetSessionContent)
		r.Post("/edit", h.EditSession)
		r.Post("/save", h.SaveSession)
		r.Post("/undo", h.UndoSession)
		r.Post("/redo", h.RedoSession)
		r.Post("/selection", h.TrackSelection)
	})

	r.Get("/storage/root", h.GetStorageRoot)
	r.Put("/storage/root", h.SetStorageRoot)
	r.Delete("/storage/root", h.ResetStorageRoot)

	r.Get("/credential", h.GetCredential)
	r.Put("/credential", h.PutCredential)

	r.Route("/chat", func(r chi.Router) {
		r.Get("/", h.GetChat)
		r.Delete("/", h.ClearChat)
		r.Post("/messages", h.SendChat)
		r.Post("/snippets", h.AddSnippet)
		r.Delete("/snippets/{id}", h.RemoveSnippet)
	})

	r.Route("/transform", func(r chi.Router) {
		r.Get("/", h.GetTransform)
		r.Post("/", h.BeginTransform)
		r.Post("/submit", h.SubmitTransform)
		r.Post("/apply", h.ApplyTransform)
		r.Post("/cancel", h.CancelTransform)
	})

	// SSE endpoint (protected by same auth middleware).
	if d.Events != nil {
		r.Get("/events", d.Events.ServeHTTP)
	}

	return r
}
