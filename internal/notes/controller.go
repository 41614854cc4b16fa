// Package notes owns the in-memory note collection, the open tabs, the
// selected note and its editor session, and funnels every write through
// a single merge-then-write path.
package notes

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/inkwell/internal/apperr"
	"github.com/starford/inkwell/internal/models"
	"github.com/starford/inkwell/internal/storage"
	"github.com/starford/inkwell/internal/trash"
)

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// Controller is the note collection and its editor state.
type Controller struct {
	store  storage.Provider
	logger *slog.Logger
	now    func() time.Time

	// gate is held for reading by every store write and for writing by
	// storage root switches.
	gate sync.RWMutex

	mu       sync.Mutex
	notes    []models.Note
	selected string
	tabs     []string // opening order
	sess     *session
	locks    map[string]*sync.Mutex

	obsMu     sync.Mutex
	observers []func(Event)
}

// New creates a controller over store. Call Refresh to load the collection.
func New(store storage.Provider, opts ...Option) *Controller {
	c := &Controller{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
		locks:  make(map[string]*sync.Mutex),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// lockNote serializes read-merge-write for one note id.
func (c *Controller) lockNote(id string) func() {
	c.mu.Lock()
	l, ok := c.locks[id]
	if !ok {
		l = &sync.Mutex{}
		c.locks[id] = l
	}
	c.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// stamp returns the current time, strictly after prev.
func (c *Controller) stamp(prev time.Time) time.Time {
	t := c.now().UTC()
	if !t.After(prev) {
		t = prev.Add(time.Nanosecond)
	}
	return t
}

func (c *Controller) indexOf(id string) int {
	return slices.IndexFunc(c.notes, func(n models.Note) bool { return n.ID == id })
}

// Notes returns a copy of the collection in load order.
func (c *Controller) Notes() []models.Note {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.notes)
}

// Note returns one note from the collection.
func (c *Controller) Note(id string) (models.Note, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.indexOf(id); i >= 0 {
		return c.notes[i], true
	}
	return models.Note{}, false
}

// Selected returns the selected note id, or "".
func (c *Controller) Selected() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected
}

// Tabs returns the open note ids in the order they were opened.
func (c *Controller) Tabs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.tabs)
}

// StorageRoot returns the directory notes are read from.
func (c *Controller) StorageRoot() string { return c.store.StorageRoot() }

// Refresh reloads the collection from the store. A selected note that no
// longer exists is deselected and its session dropped; tabs are pruned.
func (c *Controller) Refresh(ctx context.Context) error {
	list, err := c.store.List(ctx)
	if err != nil {
		return fmt.Errorf("notes: refresh: %w", err)
	}

	c.mu.Lock()
	c.notes = list
	c.tabs = slices.DeleteFunc(c.tabs, func(id string) bool { return c.indexOf(id) < 0 })
	if c.selected != "" && c.indexOf(c.selected) < 0 {
		c.logger.Info("notes: selected note disappeared", slog.String("id", c.selected))
		c.selected = ""
		c.sess = nil
	}
	c.mu.Unlock()

	c.emit(Event{Kind: EventNotesChanged})
	return nil
}

// confirmDiscard asks confirm when the open session is dirty and does not
// belong to keep.
func (c *Controller) confirmDiscard(ctx context.Context, confirm Confirmer, keep string) error {
	c.mu.Lock()
	var dirty string
	if c.sess != nil && c.sess.dirty && c.sess.noteID != keep {
		dirty = c.sess.noteID
	}
	c.mu.Unlock()

	if dirty == "" {
		return nil
	}
	if confirm == nil || !confirm.ConfirmDiscard(ctx, dirty) {
		return apperr.ErrDiscardDeclined
	}
	return nil
}

// open makes id the selected note with a clean session. Callers hold mu.
func (c *Controller) open(n models.Note) {
	if !slices.Contains(c.tabs, n.ID) {
		c.tabs = append(c.tabs, n.ID)
	}
	c.selected = n.ID
	c.sess = newSession(n)
}

// Add creates, persists and selects a new empty note.
func (c *Controller) Add(ctx context.Context, confirm Confirmer) (*models.Note, error) {
	if err := c.confirmDiscard(ctx, confirm, ""); err != nil {
		return nil, err
	}

	now := c.now().UTC()
	id := uuid.NewString()
	n := models.Note{
		ID:        id,
		Title:     models.DefaultTitle,
		Filename:  id,
		CreatedAt: now,
		UpdatedAt: now,
	}

	c.gate.RLock()
	err := c.store.Save(ctx, n)
	c.gate.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("notes: add: %w", err)
	}

	c.mu.Lock()
	c.notes = append(c.notes, n)
	c.open(n)
	c.mu.Unlock()

	c.logger.Info("notes: created", slog.String("id", id))
	c.emit(Event{Kind: EventNoteCreated, NoteID: id})
	c.emit(Event{Kind: EventSelection, NoteID: id})
	return &n, nil
}

// Select opens id in a tab (if needed) and starts a clean session for it.
// Selecting the note that is already selected keeps its session.
func (c *Controller) Select(ctx context.Context, id string, confirm Confirmer) (Session, error) {
	if _, ok := c.Note(id); !ok {
		return Session{}, apperr.ErrNotFound
	}
	if err := c.confirmDiscard(ctx, confirm, id); err != nil {
		return Session{}, err
	}

	c.mu.Lock()
	i := c.indexOf(id)
	if i < 0 {
		c.mu.Unlock()
		return Session{}, apperr.ErrNotFound
	}
	if c.selected != id || c.sess == nil {
		c.open(c.notes[i])
	}
	snap := c.sess.snapshot()
	c.mu.Unlock()

	c.emit(Event{Kind: EventSelection, NoteID: id})
	return snap, nil
}

// Close removes id from the open tabs. Closing the selected tab moves the
// selection to the most recently opened remaining tab.
func (c *Controller) Close(ctx context.Context, id string, confirm Confirmer) error {
	c.mu.Lock()
	isOpen := slices.Contains(c.tabs, id)
	selected := c.selected == id
	c.mu.Unlock()
	if !isOpen {
		return apperr.ErrNotFound
	}
	if selected {
		if err := c.confirmDiscard(ctx, confirm, ""); err != nil {
			return err
		}
	}

	c.mu.Lock()
	c.tabs = slices.DeleteFunc(c.tabs, func(t string) bool { return t == id })
	if c.selected == id {
		c.selected = ""
		c.sess = nil
		if n := len(c.tabs); n > 0 {
			if i := c.indexOf(c.tabs[n-1]); i >= 0 {
				c.open(c.notes[i])
			}
		}
	}
	next := c.selected
	c.mu.Unlock()

	c.emit(Event{Kind: EventSelection, NoteID: next})
	return nil
}

// Update merges patch into the note, stamps UpdatedAt and persists it.
// If the note is open, the patched fields replace their drafts and other
// unsaved drafts are kept. On failure nothing in memory changes.
func (c *Controller) Update(ctx context.Context, id string, patch models.NotePatch) (*models.Note, error) {
	return c.update(ctx, id, patch, nil)
}

// update implements Update. rev, when set, is the session revision the
// patch was taken from; otherwise the revision current at merge time is used.
// The session is left alone if a draft edit arrived since then, and is
// only marked clean when its drafts match what was written.
func (c *Controller) update(ctx context.Context, id string, patch models.NotePatch, rev *uint64) (*models.Note, error) {
	if err := storage.ValidateID(id); err != nil {
		return nil, err
	}
	unlock := c.lockNote(id)
	defer unlock()
	c.gate.RLock()
	defer c.gate.RUnlock()

	c.mu.Lock()
	i := c.indexOf(id)
	if i < 0 {
		c.mu.Unlock()
		return nil, apperr.ErrNotFound
	}
	cur := c.notes[i]
	var seen uint64
	if rev != nil {
		seen = *rev
	} else if c.sess != nil && c.sess.noteID == id {
		seen = c.sess.rev
	}
	c.mu.Unlock()

	merged := patch.Apply(cur)
	merged.UpdatedAt = c.stamp(cur.UpdatedAt)

	if err := c.store.Save(ctx, merged); err != nil {
		c.logger.Error("notes: save failed", slog.String("id", id), slog.String("error", err.Error()))
		return nil, fmt.Errorf("notes: update %s: %w", id, err)
	}

	c.mu.Lock()
	if i := c.indexOf(id); i >= 0 {
		c.notes[i] = merged
	}
	if s := c.sess; s != nil && s.noteID == id && s.rev == seen {
		if rev == nil {
			// Only the patched fields reach the drafts; other unsaved
			// drafts survive and keep the session dirty.
			changed := false
			if patch.Title != nil && s.title != merged.Title {
				s.title = merged.Title
				changed = true
			}
			if patch.Content != nil && s.doc.Text() != merged.Content {
				s.doc.SetText(merged.Content)
				changed = true
			}
			if changed {
				s.rev++
			}
		}
		s.dirty = s.title != merged.Title || s.doc.Text() != merged.Content
	}
	c.mu.Unlock()

	c.emit(Event{Kind: EventNoteUpdated, NoteID: id})
	return &merged, nil
}

// Delete moves the note to the trash and drops it from memory. If it was
// selected, the first remaining note is opened instead.
func (c *Controller) Delete(ctx context.Context, id string) error {
	if err := storage.ValidateID(id); err != nil {
		return err
	}
	unlock := c.lockNote(id)
	defer unlock()

	c.gate.RLock()
	err := c.store.Delete(ctx, id)
	c.gate.RUnlock()
	if err != nil {
		return fmt.Errorf("notes: delete %s: %w", id, err)
	}

	c.mu.Lock()
	c.notes = slices.DeleteFunc(c.notes, func(n models.Note) bool { return n.ID == id })
	c.tabs = slices.DeleteFunc(c.tabs, func(t string) bool { return t == id })
	if c.selected == id {
		c.selected = ""
		c.sess = nil
		if len(c.notes) > 0 {
			c.open(c.notes[0])
		}
	}
	next := c.selected
	c.mu.Unlock()

	c.logger.Info("notes: moved to trash", slog.String("id", id))
	c.emit(Event{Kind: EventNoteDeleted, NoteID: id})
	c.emit(Event{Kind: EventSelection, NoteID: next})
	return nil
}

// Trashed lists notes in the trash, newest first.
func (c *Controller) Trashed(ctx context.Context) ([]trash.Entry, error) {
	return c.store.Trashed(ctx)
}

// Restore brings a trashed note back and reloads the collection.
func (c *Controller) Restore(ctx context.Context, trashID int64) (*models.Note, error) {
	c.gate.RLock()
	e, err := c.store.Restore(ctx, trashID)
	c.gate.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("notes: restore %d: %w", trashID, err)
	}
	if err := c.Refresh(ctx); err != nil {
		return nil, err
	}
	n, ok := c.Note(e.NoteID)
	if !ok {
		// Restored into a root other than the current one.
		return nil, nil
	}
	return &n, nil
}

// SetStorageRoot switches to path after any dirty session is confirmed
// away. Selection, tabs and session are cleared and the collection reloaded.
func (c *Controller) SetStorageRoot(ctx context.Context, path string, confirm Confirmer) error {
	return c.switchRoot(ctx, confirm, func() error { return c.store.SetStorageRoot(ctx, path) })
}

// ResetStorageRoot switches back to the default root.
func (c *Controller) ResetStorageRoot(ctx context.Context, confirm Confirmer) error {
	return c.switchRoot(ctx, confirm, func() error { return c.store.ResetStorageRoot(ctx) })
}

func (c *Controller) switchRoot(ctx context.Context, confirm Confirmer, change func() error) error {
	if err := c.confirmDiscard(ctx, confirm, ""); err != nil {
		return err
	}

	c.gate.Lock()
	if err := change(); err != nil {
		c.gate.Unlock()
		return fmt.Errorf("notes: switch storage root: %w", err)
	}
	c.mu.Lock()
	c.notes = nil
	c.tabs = nil
	c.selected = ""
	c.sess = nil
	c.mu.Unlock()
	c.gate.Unlock()

	c.emit(Event{Kind: EventStorageRootMove})
	c.emit(Event{Kind: EventSelection})
	return c.Refresh(ctx)
}
