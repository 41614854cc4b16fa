// Package models defines the domain types for Inkwell.
package models

import "time"

// DefaultTitle is given to notes created from the UI.
const DefaultTitle = "Untitled"

// Note is a single persisted document addressed by a stable ID.
type Note struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Filename  string    `json:"filename"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DisplayName returns the title, or the filename when the title is empty.
func (n Note) DisplayName() string {
	if n.Title != "" {
		return n.Title
	}
	return n.Filename
}

// NotePatch carries the fields an update merges into a note.
// Nil fields are left untouched.
type NotePatch struct {
	Title   *string `json:"title,omitempty"`
	Content *string `json:"content,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p NotePatch) Empty() bool {
	return p.Title == nil && p.Content == nil
}

// Apply returns n with the patch fields merged in.
func (p NotePatch) Apply(n Note) Note {
	if p.Title != nil {
		n.Title = *p.Title
	}
	if p.Content != nil {
		n.Content = *p.Content
	}
	return n
}

// Chat roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ChatMessage is one entry of a conversation sent to the completion provider.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
