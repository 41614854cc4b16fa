// Package editor holds the text buffer behind an open note: line/column
// positions, ranged edits and snapshot-based undo/redo.
//
// A Document is not safe for concurrent use; callers own the locking.
package editor

import (
	"strings"
	"unicode/utf8"
)

// DefaultMaxHistory bounds the undo stack.
const DefaultMaxHistory = 200

// Position is a zero-based line and column. Columns count runes.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Before reports whether p sorts before q.
func (p Position) Before(q Position) bool {
	if p.Line != q.Line {
		return p.Line < q.Line
	}
	return p.Column < q.Column
}

// Range spans Start (inclusive) to End (exclusive).
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Empty reports whether the range covers no text.
func (r Range) Empty() bool { return r.Start == r.End }

// Normalized returns r with Start not after End.
func (r Range) Normalized() Range {
	if r.End.Before(r.Start) {
		return Range{Start: r.End, End: r.Start}
	}
	return r
}

type snapshot struct {
	text   string
	cursor Position
}

// Document is an editable text buffer with bounded undo history.
type Document struct {
	text       string
	maxHistory int
	undo       []snapshot
	redo       []snapshot
}

// NewDocument returns a document holding text with empty history.
func NewDocument(text string) *Document {
	return &Document{
		text:       text,
		maxHistory: DefaultMaxHistory,
		undo:       make([]snapshot, 0, 16),
	}
}

// Text returns the full buffer.
func (d *Document) Text() string { return d.text }

func (d *Document) lines() []string { return strings.Split(d.text, "\n") }

// LineCount returns the number of lines; an empty document has one.
func (d *Document) LineCount() int { return strings.Count(d.text, "\n") + 1 }

// Line returns line i without its terminator, or "" when out of range.
func (d *Document) Line(i int) string {
	lines := d.lines()
	if i < 0 || i >= len(lines) {
		return ""
	}
	return lines[i]
}

// End is the position just past the last character.
func (d *Document) End() Position {
	lines := d.lines()
	last := len(lines) - 1
	return Position{Line: last, Column: utf8.RuneCountInString(lines[last])}
}

// Clamp moves p onto the nearest valid position.
func (d *Document) Clamp(p Position) Position {
	lines := d.lines()
	if p.Line < 0 {
		return Position{}
	}
	if p.Line >= len(lines) {
		return d.End()
	}
	if p.Column < 0 {
		p.Column = 0
	}
	if n := utf8.RuneCountInString(lines[p.Line]); p.Column > n {
		p.Column = n
	}
	return p
}

// Offset converts p (clamped) to a byte offset into Text.
func (d *Document) Offset(p Position) int {
	p = d.Clamp(p)
	off := 0
	for i, line := range d.lines() {
		if i == p.Line {
			return off + runeOffset(line, p.Column)
		}
		off += len(line) + 1
	}
	return len(d.text)
}

func runeOffset(s string, col int) int {
	for i := range s {
		if col == 0 {
			return i
		}
		col--
	}
	return len(s)
}

// PositionAt converts a byte offset into a position.
func (d *Document) PositionAt(offset int) Position {
	if offset <= 0 {
		return Position{}
	}
	if offset >= len(d.text) {
		return d.End()
	}
	before := d.text[:offset]
	line := strings.Count(before, "\n")
	lineStart := strings.LastIndexByte(before, '\n') + 1
	return Position{Line: line, Column: utf8.RuneCountInString(before[lineStart:])}
}

// ValueInRange returns the text covered by r.
func (d *Document) ValueInRange(r Range) string {
	r = r.Normalized()
	return d.text[d.Offset(r.Start):d.Offset(r.End)]
}

// Replace substitutes the text covered by r with text as one undoable edit
// and returns the position just after the inserted text.
func (d *Document) Replace(r Range, text string) Position {
	r = r.Normalized()
	start, end := d.Offset(r.Start), d.Offset(r.End)
	if start == end && text == "" {
		return d.PositionAt(start)
	}
	d.push(snapshot{text: d.text, cursor: d.PositionAt(start)})
	d.text = d.text[:start] + text + d.text[end:]
	return d.PositionAt(start + len(text))
}

// Insert places text at p as one undoable edit.
func (d *Document) Insert(p Position, text string) Position {
	return d.Replace(Range{Start: p, End: p}, text)
}

// SetText replaces the whole buffer as one undoable edit. Setting the same
// text again records nothing.
func (d *Document) SetText(text string) {
	if text == d.text {
		return
	}
	d.Replace(Range{End: d.End()}, text)
}

func (d *Document) push(s snapshot) {
	d.undo = append(d.undo, s)
	if len(d.undo) > d.maxHistory {
		d.undo = d.undo[1:]
	}
	d.redo = d.redo[:0]
}

// CanUndo reports whether Undo would change the buffer.
func (d *Document) CanUndo() bool { return len(d.undo) > 0 }

// CanRedo reports whether Redo would change the buffer.
func (d *Document) CanRedo() bool { return len(d.redo) > 0 }

// Undo reverts the last edit and returns the cursor to restore.
func (d *Document) Undo() (Position, bool) {
	if len(d.undo) == 0 {
		return Position{}, false
	}
	last := d.undo[len(d.undo)-1]
	d.undo = d.undo[:len(d.undo)-1]
	d.redo = append(d.redo, snapshot{text: d.text, cursor: last.cursor})
	d.text = last.text
	return last.cursor, true
}

// Redo re-applies the last undone edit.
func (d *Document) Redo() (Position, bool) {
	if len(d.redo) == 0 {
		return Position{}, false
	}
	last := d.redo[len(d.redo)-1]
	d.redo = d.redo[:len(d.redo)-1]
	d.undo = append(d.undo, snapshot{text: d.text, cursor: last.cursor})
	d.text = last.text
	return last.cursor, true
}

// Reset replaces the buffer and drops all history.
func (d *Document) Reset(text string) {
	d.text = text
	d.undo = d.undo[:0]
	d.redo = d.redo[:0]
}
