package transform

import (
	"log/slog"
	"sync"

	"github.com/starford/inkwell/internal/apperr"
	"github.com/starford/inkwell/internal/editor"
	"github.com/starford/inkwell/internal/notes"
	"github.com/starford/inkwell/internal/selection"
)

// DefaultSurface names the single editor of a window.
const DefaultSurface = "main"

// Manager keeps at most one live workflow per editor surface.
type Manager struct {
	assistant Assistant
	editor    Editor
	logger    *slog.Logger

	mu        sync.Mutex
	workflows map[string]*Workflow
	observers []func(State)
}

// NewManager creates a manager whose workflows ask assistant and edit through ed.
func NewManager(assistant Assistant, ed Editor, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		assistant: assistant,
		editor:    ed,
		logger:    logger,
		workflows: make(map[string]*Workflow),
	}
}

// OnChange registers fn for every workflow state change.
func (m *Manager) OnChange(fn func(State)) {
	m.mu.Lock()
	m.observers = append(m.observers, fn)
	m.mu.Unlock()
}

func (m *Manager) notify(s State) {
	m.mu.Lock()
	obs := append([]func(State){}, m.observers...)
	m.mu.Unlock()
	for _, fn := range obs {
		fn(s)
	}
}

// Begin starts a workflow on surface for the open session. A visible
// selection becomes the target; otherwise the text from the cursor to the
// end of the note does. A snapshot taken from another note or an older
// draft revision is ignored.
func (m *Manager) Begin(surface string, sess notes.Session, sel selection.Snapshot) (*Workflow, error) {
	if surface == "" {
		surface = DefaultSurface
	}
	if !sel.Belongs(sess.NoteID, sess.Revision) {
		if sel.NoteID != "" {
			m.logger.Debug("transform: ignoring stale selection",
				slog.String("note_id", sess.NoteID), slog.String("selection_note_id", sel.NoteID))
		}
		sel = selection.Snapshot{}
	}

	m.mu.Lock()
	if w, ok := m.workflows[surface]; ok && !w.State().Phase.Terminal() {
		m.mu.Unlock()
		return nil, apperr.ErrWorkflowActive
	}

	doc := editor.NewDocument(sess.Content)
	w := &Workflow{
		assistant:   m.assistant,
		editor:      m.editor,
		logger:      m.logger,
		notify:      m.notify,
		surface:     surface,
		noteID:      sess.NoteID,
		revision:    sess.Revision,
		noteContext: sess.Content,
		cursor:      doc.Clamp(sel.Cursor),
		phase:       Composing,
	}
	if sel.Visible && !sel.Range.Empty() {
		w.selection = true
		w.target = sel.Range.Normalized()
		w.targetText = doc.ValueInRange(w.target)
	} else {
		rest := selection.SelectToEnd(doc, w.cursor, selection.Viewport{})
		w.target = rest.Range
		w.targetText = rest.Text
	}
	m.workflows[surface] = w
	m.mu.Unlock()

	m.logger.Debug("transform: begin",
		slog.String("surface", surface), slog.String("note_id", sess.NoteID),
		slog.Bool("selection", w.selection))
	m.notify(w.State())
	return w, nil
}

// Get returns the latest workflow on surface, live or finished.
func (m *Manager) Get(surface string) (*Workflow, error) {
	if surface == "" {
		surface = DefaultSurface
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.workflows[surface]
	if !ok {
		return nil, apperr.ErrNoWorkflow
	}
	return w, nil
}

// CancelAll cancels every live workflow, as when the note set is replaced.
func (m *Manager) CancelAll() {
	m.mu.Lock()
	live := make([]*Workflow, 0, len(m.workflows))
	for _, w := range m.workflows {
		live = append(live, w)
	}
	m.mu.Unlock()
	for _, w := range live {
		_, _ = w.Cancel()
	}
}
