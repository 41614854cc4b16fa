// Package selection turns editor selections into the text they cover and
// the viewport point where floating controls are drawn.
package selection

import (
	"strings"
	"sync"

	"github.com/starford/inkwell/internal/editor"
)

// AnchorOffset places the control one line below the cursor's line top.
const AnchorOffset = 20.0

// Default glyph metrics used when the viewport reports none.
const (
	DefaultLineHeight  = 20.0
	DefaultColumnWidth = 8.0
)

// Rect is the editor's bounding box in viewport coordinates.
type Rect struct {
	Top    float64 `json:"top"`
	Left   float64 `json:"left"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Viewport describes where the editor sits and how it is scrolled.
type Viewport struct {
	Editor      Rect    `json:"editor"`
	ScrollTop   float64 `json:"scroll_top"`
	ScrollLeft  float64 `json:"scroll_left"`
	LineHeight  float64 `json:"line_height"`
	ColumnWidth float64 `json:"column_width"`
}

func (v Viewport) metrics() (line, col float64) {
	line, col = v.LineHeight, v.ColumnWidth
	if line <= 0 {
		line = DefaultLineHeight
	}
	if col <= 0 {
		col = DefaultColumnWidth
	}
	return line, col
}

// Anchor is a point in viewport coordinates.
type Anchor struct {
	Top  float64 `json:"top"`
	Left float64 `json:"left"`
}

// Snapshot is the projection of one selection state. NoteID and Revision
// name the session draft it was taken from.
type Snapshot struct {
	Text     string          `json:"text"`
	Anchor   Anchor          `json:"anchor"`
	Visible  bool            `json:"visible"`
	Range    editor.Range    `json:"range"`
	Cursor   editor.Position `json:"cursor"`
	NoteID   string          `json:"note_id,omitempty"`
	Revision uint64          `json:"revision"`
}

// Belongs reports whether s was taken from note noteID at draft revision rev.
func (s Snapshot) Belongs(noteID string, rev uint64) bool {
	return noteID != "" && s.NoteID == noteID && s.Revision == rev
}

// Project computes the snapshot for sel with the cursor at its active end.
// Selections that are empty or only whitespace are not visible.
func Project(doc *editor.Document, sel editor.Range, cursor editor.Position, v Viewport) Snapshot {
	sel = sel.Normalized()
	cursor = doc.Clamp(cursor)
	snap := Snapshot{Range: sel, Cursor: cursor}
	text := doc.ValueInRange(sel)
	if strings.TrimSpace(text) == "" {
		return snap
	}
	snap.Text = text
	snap.Visible = true
	snap.Anchor = anchorAt(cursor, v)
	return snap
}

// SelectToEnd selects from cursor to the end of the document. It is used
// when a transform is started without a selection.
func SelectToEnd(doc *editor.Document, cursor editor.Position, v Viewport) Snapshot {
	cursor = doc.Clamp(cursor)
	r := editor.Range{Start: cursor, End: doc.End()}
	text := doc.ValueInRange(r)
	return Snapshot{
		Text:    text,
		Anchor:  anchorAt(cursor, v),
		Visible: strings.TrimSpace(text) != "",
		Range:   r,
		Cursor:  cursor,
	}
}

func anchorAt(p editor.Position, v Viewport) Anchor {
	lineHeight, colWidth := v.metrics()
	a := Anchor{
		Top:  v.Editor.Top + float64(p.Line)*lineHeight - v.ScrollTop + AnchorOffset,
		Left: v.Editor.Left + float64(p.Column)*colWidth - v.ScrollLeft,
	}
	if v.Editor.Height > 0 {
		a.Top = clamp(a.Top, v.Editor.Top, v.Editor.Top+v.Editor.Height)
	}
	if v.Editor.Width > 0 {
		a.Left = clamp(a.Left, v.Editor.Left, v.Editor.Left+v.Editor.Width)
	}
	return a
}

func clamp(x, lo, hi float64) float64 {
	return min(max(x, lo), hi)
}

// Tracker remembers the last projection so callers only redraw on change.
type Tracker struct {
	mu   sync.Mutex
	last Snapshot
}

// Track projects sel on revision rev of note noteID and reports whether the
// visible control changed.
func (t *Tracker) Track(noteID string, rev uint64, doc *editor.Document, sel editor.Range, cursor editor.Position, v Viewport) (Snapshot, bool) {
	snap := Project(doc, sel, cursor, v)
	snap.NoteID, snap.Revision = noteID, rev

	t.mu.Lock()
	defer t.mu.Unlock()
	changed := snap.Visible != t.last.Visible ||
		(snap.Visible && (snap.Anchor != t.last.Anchor || snap.Text != t.last.Text || snap.NoteID != t.last.NoteID))
	t.last = snap
	return snap, changed
}

// Last returns the most recent snapshot.
func (t *Tracker) Last() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

// Reset forgets the last snapshot, as when the session it came from ends.
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.last = Snapshot{}
	t.mu.Unlock()
}

// Consume returns the last snapshot and hides it, as when a workflow
// takes the selection over.
func (t *Tracker) Consume() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.last
	t.last = Snapshot{}
	return s
}
