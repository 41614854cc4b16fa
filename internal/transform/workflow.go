// Package transform drives the inline "rewrite this" flow: capture a target
// text, send an instruction to the assistant, preview the reply and either
// splice it into the note or drop it.
package transform

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/MakeNowJust/heredoc/v2"

	"github.com/starford/inkwell/internal/apperr"
	"github.com/starford/inkwell/internal/editor"
	"github.com/starford/inkwell/internal/models"
	"github.com/starford/inkwell/internal/notes"
)

// Phase is the workflow state.
type Phase string

const (
	Composing      Phase = "composing"
	AwaitingResult Phase = "awaiting_result"
	Previewing     Phase = "previewing"
	Applied        Phase = "applied"
	Cancelled      Phase = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (p Phase) Terminal() bool { return p == Applied || p == Cancelled }

// NoticeCredentialRequired is shown when a request is attempted without a key.
const NoticeCredentialRequired = "credential required"

// NoticeRequestFailed is shown when the assistant request errors.
const NoticeRequestFailed = "request failed"

// Assistant answers the rewrite request.
type Assistant interface {
	HasCredential() bool
	Complete(ctx context.Context, messages []models.ChatMessage, noteContext string) (string, error)
}

// Editor receives the accepted result.
type Editor interface {
	EditDraftAt(noteID string, rev uint64, r editor.Range, text string) (editor.Position, notes.Session, error)
}

var promptTemplate = heredoc.Doc(`
	Rewrite the text below according to the instruction.
	Reply with the rewritten text only.

	Instruction: %s

	Text:
`)

// State is a copy of the workflow fields.
type State struct {
	Surface      string          `json:"surface"`
	NoteID       string          `json:"note_id"`
	Phase        Phase           `json:"phase"`
	TargetText   string          `json:"target_text"`
	Target       editor.Range    `json:"target"`
	HasSelection bool            `json:"has_selection"`
	Cursor       editor.Position `json:"cursor"`
	Instruction  string          `json:"instruction,omitempty"`
	DraftResult  string          `json:"draft_result,omitempty"`
	Notice       string          `json:"notice,omitempty"`
	Error        string          `json:"error,omitempty"`
}

// Workflow is one inline transform on one editor surface.
type Workflow struct {
	assistant Assistant
	editor    Editor
	logger    *slog.Logger
	notify    func(State)

	mu          sync.Mutex
	surface     string
	noteID      string
	revision    uint64 // session draft revision the target was taken from
	noteContext string
	target      editor.Range
	targetText  string
	selection   bool
	cursor      editor.Position
	instruction string
	draft       string
	phase       Phase
	err         error
	notice      string
	gen         uint64        // bumped on every phase change; stale replies compare against it
	done        chan struct{} // closed when AwaitingResult is left
}

// State returns a copy of the current state.
func (w *Workflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stateLocked()
}

func (w *Workflow) stateLocked() State {
	s := State{
		Surface:      w.surface,
		NoteID:       w.noteID,
		Phase:        w.phase,
		TargetText:   w.targetText,
		Target:       w.target,
		HasSelection: w.selection,
		Cursor:       w.cursor,
		Instruction:  w.instruction,
		DraftResult:  w.draft,
		Notice:       w.notice,
	}
	if w.err != nil {
		s.Error = w.err.Error()
	}
	return s
}

// Err returns the failure that cancelled the workflow, if any.
func (w *Workflow) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

func (w *Workflow) changed(s State) {
	if w.notify != nil {
		w.notify(s)
	}
}

// Submit sends instruction to the assistant. A blank instruction is ignored.
// Without a credential the workflow is cancelled with a notice.
func (w *Workflow) Submit(ctx context.Context, instruction string) (State, error) {
	w.mu.Lock()
	if w.phase != Composing {
		s := w.stateLocked()
		w.mu.Unlock()
		return s, apperr.ErrInvalidTransition
	}
	if strings.TrimSpace(instruction) == "" {
		s := w.stateLocked()
		w.mu.Unlock()
		return s, nil
	}
	w.instruction = instruction
	if !w.assistant.HasCredential() {
		w.phase = Cancelled
		w.notice = NoticeCredentialRequired
		w.gen++
		s := w.stateLocked()
		w.mu.Unlock()
		w.changed(s)
		return s, apperr.ErrNoCredential
	}

	w.phase = AwaitingResult
	w.gen++
	w.done = make(chan struct{})
	gen := w.gen
	msgs := []models.ChatMessage{{
		Role:    models.RoleUser,
		Content: fmt.Sprintf(promptTemplate, instruction) + w.targetText,
	}}
	noteContext := w.noteContext
	s := w.stateLocked()
	w.mu.Unlock()

	w.changed(s)
	// The request outlives the caller; a cancel discards its reply instead.
	go w.await(context.WithoutCancel(ctx), gen, msgs, noteContext)
	return s, nil
}

func (w *Workflow) await(ctx context.Context, gen uint64, msgs []models.ChatMessage, noteContext string) {
	reply, err := w.assistant.Complete(ctx, msgs, noteContext)

	w.mu.Lock()
	if w.gen != gen || w.phase != AwaitingResult {
		w.mu.Unlock()
		w.logger.Debug("transform: discarding late reply", slog.String("surface", w.surface))
		return
	}
	if err != nil {
		w.phase = Cancelled
		w.err = err
		w.notice = NoticeRequestFailed
		w.logger.Warn("transform: request failed",
			slog.String("surface", w.surface), slog.String("error", err.Error()))
	} else {
		w.phase = Previewing
		w.draft = reply
	}
	w.gen++
	close(w.done)
	s := w.stateLocked()
	w.mu.Unlock()

	w.changed(s)
}

// Apply inserts the previewed reply after the selection, or at the original
// cursor when there was none, as one undoable edit. If the draft was edited
// since Begin the positions are stale: Apply fails with
// apperr.ErrSessionChanged and the preview stays up.
func (w *Workflow) Apply() (State, error) {
	w.mu.Lock()
	if w.phase != Previewing {
		s := w.stateLocked()
		w.mu.Unlock()
		return s, apperr.ErrInvalidTransition
	}
	at := w.cursor
	if w.selection {
		at = w.target.End
	}
	if _, _, err := w.editor.EditDraftAt(w.noteID, w.revision, editor.Range{Start: at, End: at}, w.draft); err != nil {
		s := w.stateLocked()
		w.mu.Unlock()
		return s, err
	}
	w.phase = Applied
	w.gen++
	s := w.stateLocked()
	w.mu.Unlock()

	w.changed(s)
	return s, nil
}

// Cancel abandons the workflow without touching the document. The returned
// state carries the cursor to restore focus to.
func (w *Workflow) Cancel() (State, error) {
	w.mu.Lock()
	if w.phase.Terminal() {
		s := w.stateLocked()
		w.mu.Unlock()
		return s, apperr.ErrInvalidTransition
	}
	if w.phase == AwaitingResult {
		close(w.done)
	}
	w.phase = Cancelled
	w.draft = ""
	w.gen++
	s := w.stateLocked()
	w.mu.Unlock()

	w.changed(s)
	return s, nil
}

// Escape is Cancel bound to the escape key.
func (w *Workflow) Escape() (State, error) { return w.Cancel() }

// Wait blocks until the workflow is no longer awaiting a reply.
func (w *Workflow) Wait(ctx context.Context) (State, error) {
	w.mu.Lock()
	done := w.done
	w.mu.Unlock()
	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return w.State(), ctx.Err()
		}
	}
	return w.State(), nil
}

// Modifiers are the modifier keys held with a key press.
type Modifiers struct {
	Shift bool `json:"shift"`
	Alt   bool `json:"alt"`
	Ctrl  bool `json:"ctrl"`
	Meta  bool `json:"meta"`
}

// KeySubmit reports whether a key press in the instruction field submits:
// Enter with no modifier. Shift+Enter inserts a newline instead.
func KeySubmit(key string, m Modifiers) bool {
	return key == "Enter" && !m.Shift && !m.Alt && !m.Ctrl && !m.Meta
}
