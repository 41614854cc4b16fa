package notes

import (
	"context"

	"github.com/starford/inkwell/internal/apperr"
	"github.com/starford/inkwell/internal/editor"
	"github.com/starford/inkwell/internal/models"
)

// Session is a copy of the open editor session.
type Session struct {
	NoteID   string `json:"note_id"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	Dirty    bool   `json:"dirty"`
	Revision uint64 `json:"revision"`
	CanUndo  bool   `json:"can_undo"`
	CanRedo  bool   `json:"can_redo"`
}

type session struct {
	noteID string
	title  string
	doc    *editor.Document
	dirty  bool
	rev    uint64 // bumped by every draft mutation
}

func newSession(n models.Note) *session {
	return &session{noteID: n.ID, title: n.Title, doc: editor.NewDocument(n.Content)}
}

func (s *session) touch() {
	s.rev++
	s.dirty = true
}

func (s *session) snapshot() Session {
	return Session{
		NoteID:   s.noteID,
		Title:    s.title,
		Content:  s.doc.Text(),
		Dirty:    s.dirty,
		Revision: s.rev,
		CanUndo:  s.doc.CanUndo(),
		CanRedo:  s.doc.CanRedo(),
	}
}

// Session returns the open session, if any.
func (c *Controller) Session() (Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return Session{}, false
	}
	return c.sess.snapshot(), true
}

// draft runs fn against the open session and marks it dirty when fn
// reports a change. noteID, when set, must match the open session.
func (c *Controller) draft(noteID string, fn func(s *session) bool) (Session, error) {
	return c.draftAt(noteID, nil, fn)
}

// draftAt is draft that, when rev is set, also requires the session to
// still be at that revision.
func (c *Controller) draftAt(noteID string, rev *uint64, fn func(s *session) bool) (Session, error) {
	c.mu.Lock()
	s := c.sess
	if s == nil || (noteID != "" && s.noteID != noteID) {
		c.mu.Unlock()
		return Session{}, apperr.ErrNoSession
	}
	if rev != nil && s.rev != *rev {
		snap := s.snapshot()
		c.mu.Unlock()
		return snap, apperr.ErrSessionChanged
	}
	if fn(s) {
		s.touch()
	}
	snap := s.snapshot()
	c.mu.Unlock()

	c.emit(Event{Kind: EventSession, NoteID: snap.NoteID})
	return snap, nil
}

// SetDraftTitle replaces the title draft.
func (c *Controller) SetDraftTitle(title string) (Session, error) {
	return c.draft("", func(s *session) bool {
		s.title = title
		return true
	})
}

// SetDraftContent replaces the content draft as one undoable edit.
func (c *Controller) SetDraftContent(content string) (Session, error) {
	return c.draft("", func(s *session) bool {
		s.doc.SetText(content)
		return true
	})
}

// EditDraft replaces the text in r with text as one undoable edit and
// returns the cursor after the insertion. An empty noteID means whichever
// note is open.
func (c *Controller) EditDraft(noteID string, r editor.Range, text string) (editor.Position, Session, error) {
	var cursor editor.Position
	snap, err := c.draft(noteID, func(s *session) bool {
		cursor = s.doc.Replace(r, text)
		return true
	})
	return cursor, snap, err
}

// EditDraftAt is EditDraft on note noteID that fails with
// apperr.ErrSessionChanged unless the session is still at revision rev.
func (c *Controller) EditDraftAt(noteID string, rev uint64, r editor.Range, text string) (editor.Position, Session, error) {
	var cursor editor.Position
	snap, err := c.draftAt(noteID, &rev, func(s *session) bool {
		cursor = s.doc.Replace(r, text)
		return true
	})
	return cursor, snap, err
}

// Undo reverts the last content edit of the open session.
func (c *Controller) Undo() (editor.Position, Session, error) {
	var cursor editor.Position
	snap, err := c.draft("", func(s *session) bool {
		var ok bool
		cursor, ok = s.doc.Undo()
		return ok
	})
	return cursor, snap, err
}

// Redo re-applies the last undone content edit.
func (c *Controller) Redo() (editor.Position, Session, error) {
	var cursor editor.Position
	snap, err := c.draft("", func(s *session) bool {
		var ok bool
		cursor, ok = s.doc.Redo()
		return ok
	})
	return cursor, snap, err
}

// SaveSession persists the open drafts through Update.
func (c *Controller) SaveSession(ctx context.Context) (*models.Note, error) {
	c.mu.Lock()
	s := c.sess
	if s == nil {
		c.mu.Unlock()
		return nil, apperr.ErrNoSession
	}
	id, title, content, rev := s.noteID, s.title, s.doc.Text(), s.rev
	c.mu.Unlock()

	return c.update(ctx, id, models.NotePatch{Title: &title, Content: &content}, &rev)
}
