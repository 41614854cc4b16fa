package notes

// EventKind names a controller state change.
type EventKind string

const (
	EventNotesChanged    EventKind = "notes.changed"
	EventNoteCreated     EventKind = "note.created"
	EventNoteUpdated     EventKind = "note.updated"
	EventNoteDeleted     EventKind = "note.deleted"
	EventSelection       EventKind = "selection.changed"
	EventSession         EventKind = "session.changed"
	EventStorageRootMove EventKind = "storage.root_changed"
)

// Event is delivered to observers after the change has been applied.
type Event struct {
	Kind   EventKind `json:"kind"`
	NoteID string    `json:"note_id,omitempty"`
}

// OnChange registers fn to be called for every event. Observers run on the
// goroutine that made the change and must not block.
func (c *Controller) OnChange(fn func(Event)) {
	c.obsMu.Lock()
	c.observers = append(c.observers, fn)
	c.obsMu.Unlock()
}

func (c *Controller) emit(ev Event) {
	c.obsMu.Lock()
	obs := append([]func(Event){}, c.observers...)
	c.obsMu.Unlock()
	for _, fn := range obs {
		fn(ev)
	}
}
